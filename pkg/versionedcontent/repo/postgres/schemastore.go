package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Content type rows (schema.Store). A (id, status) pair addresses one
// stored revision of a type; field definitions hang off the same pair.
// Field definition ids come from a single global sequence so id-based
// schema diffing stays sound across types and revisions.

const typeColumns = `
	id, status, identifier, remote_id, creator_id, modifier_id,
	created, modified, names, descriptions`

func (r *Repository) scanType(row pgx.Row) (*vc.ContentType, error) {
	var t vc.ContentType
	err := row.Scan(
		&t.ID, &t.Status, &t.Identifier, &t.RemoteID, &t.CreatorID, &t.ModifierID,
		&t.Created, &t.Modified, &t.Names, &t.Descriptions)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) InsertType(ctx context.Context, t *vc.ContentType) error {
	return r.inTx(ctx, func(tx *Repository) error {
		query := `
			INSERT INTO content_type (
				id, status, identifier, remote_id, creator_id, modifier_id,
				created, modified, names, descriptions
			) VALUES (
				COALESCE(NULLIF($1, 0::bigint), nextval('content_type_id_seq')),
				$2, $3, $4, $5, $6, $7, $8, $9, $10
			)
			RETURNING id`

		err := tx.db.QueryRow(ctx, query,
			t.ID, t.Status, t.Identifier, t.RemoteID, t.CreatorID, t.ModifierID,
			t.Created, t.Modified, t.Names, t.Descriptions).Scan(&t.ID)
		if err != nil {
			return tx.handlePostgresError("insert type", err)
		}

		for i := range t.FieldDefinitions {
			if err := tx.insertFieldDefinition(ctx, t.ID, t.Status, &t.FieldDefinitions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) UpdateType(ctx context.Context, t *vc.ContentType) error {
	query := `
		UPDATE content_type SET
			identifier = $3, remote_id = $4, creator_id = $5, modifier_id = $6,
			modified = $7, names = $8, descriptions = $9
		WHERE id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query,
		t.ID, t.Status, t.Identifier, t.RemoteID, t.CreatorID, t.ModifierID,
		t.Modified, t.Names, t.Descriptions)
	if err != nil {
		return r.handlePostgresError("update type", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrTypeNotFound
	}
	return nil
}

func (r *Repository) LoadType(ctx context.Context, id int64, status vc.TypeStatus) (*vc.ContentType, error) {
	query := `SELECT` + typeColumns + ` FROM content_type WHERE id = $1 AND status = $2`

	t, err := r.scanType(r.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrTypeNotFound
		}
		return nil, r.handlePostgresError("load type", err)
	}
	if t.FieldDefinitions, err = r.loadFieldDefinitions(ctx, t.ID, t.Status); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repository) LoadTypeByIdentifier(ctx context.Context, identifier string, status vc.TypeStatus) (*vc.ContentType, error) {
	query := `SELECT` + typeColumns + ` FROM content_type WHERE identifier = $1 AND status = $2`

	t, err := r.scanType(r.db.QueryRow(ctx, query, identifier, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrTypeNotFound
		}
		return nil, r.handlePostgresError("load type by identifier", err)
	}
	if t.FieldDefinitions, err = r.loadFieldDefinitions(ctx, t.ID, t.Status); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repository) ListTypes(ctx context.Context, status vc.TypeStatus) ([]*vc.ContentType, error) {
	query := `SELECT` + typeColumns + ` FROM content_type WHERE status = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, r.handlePostgresError("list types", err)
	}
	defer rows.Close()

	var out []*vc.ContentType
	for rows.Next() {
		t, err := r.scanType(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan type", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate type rows", err)
	}
	for _, t := range out {
		if t.FieldDefinitions, err = r.loadFieldDefinitions(ctx, t.ID, t.Status); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) DeleteType(ctx context.Context, id int64, status vc.TypeStatus) error {
	return r.inTx(ctx, func(tx *Repository) error {
		if _, err := tx.db.Exec(ctx,
			`DELETE FROM field_definition WHERE type_id = $1 AND status = $2`, id, status); err != nil {
			return tx.handlePostgresError("delete type", err)
		}
		tag, err := tx.db.Exec(ctx,
			`DELETE FROM content_type WHERE id = $1 AND status = $2`, id, status)
		if err != nil {
			return tx.handlePostgresError("delete type", err)
		}
		if tag.RowsAffected() == 0 {
			return vc.ErrTypeNotFound
		}
		return nil
	})
}

const fieldDefColumns = `
	id, identifier, field_type, position, names, descriptions,
	is_translatable, is_required, is_searchable, default_value`

func (r *Repository) loadFieldDefinitions(ctx context.Context, typeID int64, status vc.TypeStatus) ([]vc.FieldDefinition, error) {
	query := `SELECT` + fieldDefColumns + `
		FROM field_definition
		WHERE type_id = $1 AND status = $2
		ORDER BY position, id`

	rows, err := r.db.Query(ctx, query, typeID, status)
	if err != nil {
		return nil, r.handlePostgresError("load field definitions", err)
	}
	defer rows.Close()

	var out []vc.FieldDefinition
	for rows.Next() {
		var def vc.FieldDefinition
		err := rows.Scan(
			&def.ID, &def.Identifier, &def.FieldType, &def.Position,
			&def.Names, &def.Descriptions,
			&def.IsTranslatable, &def.IsRequired, &def.IsSearchable, &def.DefaultValue)
		if err != nil {
			return nil, r.handlePostgresError("scan field definition", err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate field definitions", err)
	}
	return out, nil
}

func (r *Repository) InsertFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error {
	return r.insertFieldDefinition(ctx, typeID, status, def)
}

func (r *Repository) insertFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error {
	query := `
		INSERT INTO field_definition (
			id, type_id, status, identifier, field_type, position,
			names, descriptions, is_translatable, is_required, is_searchable,
			default_value
		) VALUES (
			COALESCE(NULLIF($1, 0::bigint), nextval('field_definition_id_seq')),
			$2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		def.ID, typeID, status, def.Identifier, def.FieldType, def.Position,
		def.Names, def.Descriptions, def.IsTranslatable, def.IsRequired, def.IsSearchable,
		def.DefaultValue).Scan(&def.ID)
	if err != nil {
		return r.handlePostgresError("insert field definition", err)
	}
	return nil
}

func (r *Repository) UpdateFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def vc.FieldDefinition) error {
	query := `
		UPDATE field_definition SET
			identifier = $4, field_type = $5, position = $6,
			names = $7, descriptions = $8,
			is_translatable = $9, is_required = $10, is_searchable = $11,
			default_value = $12
		WHERE id = $1 AND type_id = $2 AND status = $3`

	tag, err := r.db.Exec(ctx, query,
		def.ID, typeID, status,
		def.Identifier, def.FieldType, def.Position,
		def.Names, def.Descriptions,
		def.IsTranslatable, def.IsRequired, def.IsSearchable,
		def.DefaultValue)
	if err != nil {
		return r.handlePostgresError("update field definition", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrFieldDefinitionNotFound
	}
	return nil
}

func (r *Repository) DeleteFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, fieldDefinitionID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM field_definition WHERE id = $1 AND type_id = $2 AND status = $3`,
		fieldDefinitionID, typeID, status)
	if err != nil {
		return r.handlePostgresError("delete field definition", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrFieldDefinitionNotFound
	}
	return nil
}

func (r *Repository) PromoteType(ctx context.Context, typeID int64, from vc.TypeStatus) error {
	return r.inTx(ctx, func(tx *Repository) error {
		statements := []struct {
			query string
			args  []interface{}
		}{
			{`DELETE FROM field_definition WHERE type_id = $1 AND status = $2`,
				[]interface{}{typeID, vc.TypeStatusDefined}},
			{`DELETE FROM content_type WHERE id = $1 AND status = $2`,
				[]interface{}{typeID, vc.TypeStatusDefined}},
			{`UPDATE field_definition SET status = $3 WHERE type_id = $1 AND status = $2`,
				[]interface{}{typeID, from, vc.TypeStatusDefined}},
		}
		for _, stmt := range statements {
			if _, err := tx.db.Exec(ctx, stmt.query, stmt.args...); err != nil {
				return tx.handlePostgresError("promote type", err)
			}
		}
		tag, err := tx.db.Exec(ctx,
			`UPDATE content_type SET status = $3 WHERE id = $1 AND status = $2`,
			typeID, from, vc.TypeStatusDefined)
		if err != nil {
			return tx.handlePostgresError("promote type", err)
		}
		if tag.RowsAffected() == 0 {
			return vc.ErrTypeNotFound
		}
		return nil
	})
}
