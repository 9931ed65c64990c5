package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Field rows

const fieldColumns = `
	id, content_id, version_no, field_definition_id, field_type, language_code,
	data_float, data_int, data_text, sort_key_int, sort_key_string`

func (r *Repository) scanField(row pgx.Row) (vc.Field, error) {
	var f vc.Field
	err := row.Scan(
		&f.ID, &f.ContentID, &f.VersionNo, &f.FieldDefinitionID, &f.Type, &f.LanguageCode,
		&f.Value.DataFloat, &f.Value.DataInt, &f.Value.DataText,
		&f.Value.SortKeyInt, &f.Value.SortKeyString)
	return f, err
}

func (r *Repository) InsertFields(ctx context.Context, fields []vc.Field) ([]vc.Field, error) {
	query := `
		INSERT INTO content_field (
			id, content_id, version_no, field_definition_id, field_type, language_code,
			data_float, data_int, data_text, sort_key_int, sort_key_string
		) VALUES (
			COALESCE(NULLIF($1, 0::bigint), nextval('content_field_id_seq')),
			$2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING id`

	out := make([]vc.Field, len(fields))
	for i, f := range fields {
		err := r.db.QueryRow(ctx, query,
			f.ID, f.ContentID, f.VersionNo, f.FieldDefinitionID, f.Type, f.LanguageCode,
			f.Value.DataFloat, f.Value.DataInt, f.Value.DataText,
			f.Value.SortKeyInt, f.Value.SortKeyString).Scan(&f.ID)
		if err != nil {
			return nil, r.handlePostgresError("insert field", err)
		}
		out[i] = f
	}
	return out, nil
}

func (r *Repository) InsertExistingField(ctx context.Context, field vc.Field) error {
	if field.ID == 0 {
		return fmt.Errorf("%w: existing field requires an id", vc.ErrInvalidArgument)
	}
	query := `
		INSERT INTO content_field (
			id, content_id, version_no, field_definition_id, field_type, language_code,
			data_float, data_int, data_text, sort_key_int, sort_key_string
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		field.ID, field.ContentID, field.VersionNo, field.FieldDefinitionID,
		field.Type, field.LanguageCode,
		field.Value.DataFloat, field.Value.DataInt, field.Value.DataText,
		field.Value.SortKeyInt, field.Value.SortKeyString)
	if err != nil {
		return r.handlePostgresError("insert existing field", err)
	}
	return nil
}

func (r *Repository) UpdateField(ctx context.Context, field vc.Field) error {
	query := `
		UPDATE content_field SET
			field_definition_id = $4, field_type = $5,
			data_float = $6, data_int = $7, data_text = $8,
			sort_key_int = $9, sort_key_string = $10
		WHERE id = $1 AND version_no = $2 AND language_code = $3`

	tag, err := r.db.Exec(ctx, query,
		field.ID, field.VersionNo, field.LanguageCode,
		field.FieldDefinitionID, field.Type,
		field.Value.DataFloat, field.Value.DataInt, field.Value.DataText,
		field.Value.SortKeyInt, field.Value.SortKeyString)
	if err != nil {
		return r.handlePostgresError("update field", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrFieldNotFound
	}
	return nil
}

func (r *Repository) LoadFields(ctx context.Context, contentID int64, versionNo int) ([]vc.Field, error) {
	query := `SELECT` + fieldColumns + `
		FROM content_field
		WHERE content_id = $1 AND version_no = $2
		ORDER BY id, language_code`

	rows, err := r.db.Query(ctx, query, contentID, versionNo)
	if err != nil {
		return nil, r.handlePostgresError("load fields", err)
	}
	defer rows.Close()

	var out []vc.Field
	for rows.Next() {
		f, err := r.scanField(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan field", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate field rows", err)
	}
	return out, nil
}

func (r *Repository) DeleteFields(ctx context.Context, contentID int64, versionNo int, languageCode string) error {
	query := `
		DELETE FROM content_field
		WHERE content_id = $1
		  AND ($2 < 0 OR version_no = $2)
		  AND ($3 = '' OR language_code = $3)`

	_, err := r.db.Exec(ctx, query, contentID, versionNo, languageCode)
	if err != nil {
		return r.handlePostgresError("delete fields", err)
	}
	return nil
}

func (r *Repository) DeleteFieldsByDefinition(ctx context.Context, contentID int64, fieldDefinitionID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM content_field WHERE content_id = $1 AND field_definition_id = $2`,
		contentID, fieldDefinitionID)
	if err != nil {
		return r.handlePostgresError("delete fields by definition", err)
	}
	return nil
}

func (r *Repository) FieldRefsByType(ctx context.Context, contentID int64) (map[string][]vc.FieldRef, error) {
	query := `
		SELECT field_type, id, version_no, language_code
		FROM content_field
		WHERE content_id = $1
		ORDER BY id, version_no, language_code`

	rows, err := r.db.Query(ctx, query, contentID)
	if err != nil {
		return nil, r.handlePostgresError("field refs by type", err)
	}
	defer rows.Close()

	out := make(map[string][]vc.FieldRef)
	for rows.Next() {
		var fieldType string
		ref := vc.FieldRef{ContentID: contentID}
		if err := rows.Scan(&fieldType, &ref.FieldID, &ref.VersionNo, &ref.LanguageCode); err != nil {
			return nil, r.handlePostgresError("scan field ref", err)
		}
		out[fieldType] = append(out[fieldType], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate field refs", err)
	}
	return out, nil
}

// Name rows

func (r *Repository) SetName(ctx context.Context, contentID int64, versionNo int, languageCode, name string) error {
	query := `
		INSERT INTO content_name (content_id, version_no, language_code, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_id, version_no, language_code)
		DO UPDATE SET name = EXCLUDED.name`

	_, err := r.db.Exec(ctx, query, contentID, versionNo, languageCode, name)
	if err != nil {
		return r.handlePostgresError("set name", err)
	}
	return nil
}

func (r *Repository) DeleteNames(ctx context.Context, contentID int64, versionNo int, languageCode string) error {
	query := `
		DELETE FROM content_name
		WHERE content_id = $1
		  AND ($2 < 0 OR version_no = $2)
		  AND ($3 = '' OR language_code = $3)`

	_, err := r.db.Exec(ctx, query, contentID, versionNo, languageCode)
	if err != nil {
		return r.handlePostgresError("delete names", err)
	}
	return nil
}

func (r *Repository) LoadNames(ctx context.Context, contentID int64, versionNo int) (map[string]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT language_code, name FROM content_name WHERE content_id = $1 AND version_no = $2`,
		contentID, versionNo)
	if err != nil {
		return nil, r.handlePostgresError("load names", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, r.handlePostgresError("scan name", err)
		}
		out[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate name rows", err)
	}
	return out, nil
}

// Relation rows

const relationColumns = `
	id, source_content_id, source_version_no, field_definition_id, relation_type, dest_content_id`

func (r *Repository) scanRelation(row pgx.Row) (vc.Relation, error) {
	var rel vc.Relation
	var mask int64
	err := row.Scan(
		&rel.ID, &rel.SourceContentID, &rel.SourceVersionNo,
		&rel.FieldDefinitionID, &mask, &rel.DestContentID)
	rel.Type = vc.RelationTypeMask(mask)
	return rel, err
}

func (r *Repository) InsertRelation(ctx context.Context, rel *vc.Relation) error {
	query := `
		INSERT INTO content_relation (
			source_content_id, source_version_no, field_definition_id,
			relation_type, dest_content_id
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		rel.SourceContentID, rel.SourceVersionNo, rel.FieldDefinitionID,
		int64(rel.Type), rel.DestContentID).Scan(&rel.ID)
	if err != nil {
		return r.handlePostgresError("insert relation", err)
	}
	return nil
}

func (r *Repository) DeleteRelation(ctx context.Context, relationID int64, kind vc.RelationTypeMask) error {
	// Clears the kind bits; the row goes away only once no kind remains.
	var remaining int64
	err := r.db.QueryRow(ctx,
		`UPDATE content_relation SET relation_type = relation_type & ~$2::bigint WHERE id = $1 RETURNING relation_type`,
		relationID, int64(kind)).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return vc.ErrRelationNotFound
		}
		return r.handlePostgresError("delete relation", err)
	}
	if remaining == 0 {
		if _, err := r.db.Exec(ctx, `DELETE FROM content_relation WHERE id = $1`, relationID); err != nil {
			return r.handlePostgresError("delete relation", err)
		}
	}
	return nil
}

func (r *Repository) LoadRelation(ctx context.Context, relationID int64) (*vc.Relation, error) {
	query := `SELECT` + relationColumns + ` FROM content_relation WHERE id = $1`

	rel, err := r.scanRelation(r.db.QueryRow(ctx, query, relationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrRelationNotFound
		}
		return nil, r.handlePostgresError("load relation", err)
	}
	return &rel, nil
}

func (r *Repository) queryRelations(ctx context.Context, operation, query string, args ...interface{}) ([]vc.Relation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var out []vc.Relation
	for rows.Next() {
		rel, err := r.scanRelation(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan relation", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate relation rows", err)
	}
	return out, nil
}

func (r *Repository) LoadRelations(ctx context.Context, contentID int64, versionNo int, kind vc.RelationTypeMask) ([]vc.Relation, error) {
	query := `SELECT` + relationColumns + `
		FROM content_relation
		WHERE source_content_id = $1
		  AND ($2 < 0 OR source_version_no = $2)
		  AND ($3 = 0 OR relation_type & $3::bigint <> 0)
		ORDER BY id`
	return r.queryRelations(ctx, "load relations", query, contentID, versionNo, int64(kind))
}

func (r *Repository) LoadReverseRelations(ctx context.Context, destContentID int64, kind vc.RelationTypeMask) ([]vc.Relation, error) {
	query := `SELECT` + relationColumns + `
		FROM content_relation
		WHERE dest_content_id = $1
		  AND ($2 = 0 OR relation_type & $2::bigint <> 0)
		ORDER BY id`
	return r.queryRelations(ctx, "load reverse relations", query, destContentID, int64(kind))
}

func (r *Repository) CopyRelations(ctx context.Context, srcContentID, dstContentID int64) error {
	query := `
		INSERT INTO content_relation (
			source_content_id, source_version_no, field_definition_id,
			relation_type, dest_content_id
		)
		SELECT $2, source_version_no, field_definition_id, relation_type, dest_content_id
		FROM content_relation
		WHERE source_content_id = $1`

	if _, err := r.db.Exec(ctx, query, srcContentID, dstContentID); err != nil {
		return r.handlePostgresError("copy relations", err)
	}
	return nil
}

func (r *Repository) DeleteRelations(ctx context.Context, contentID int64, versionNo int) error {
	query := `
		DELETE FROM content_relation
		WHERE source_content_id = $1 AND ($2 < 0 OR source_version_no = $2)`

	if _, err := r.db.Exec(ctx, query, contentID, versionNo); err != nil {
		return r.handlePostgresError("delete relations", err)
	}
	return nil
}

// Language rows

func (r *Repository) InsertLanguage(ctx context.Context, lang *vc.Language) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO language (id, code) VALUES ($1, $2)`,
		lang.ID, lang.Code)
	if err != nil {
		return r.handlePostgresError("insert language", err)
	}
	return nil
}

func (r *Repository) ListLanguages(ctx context.Context) ([]vc.Language, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code FROM language ORDER BY id`)
	if err != nil {
		return nil, r.handlePostgresError("list languages", err)
	}
	defer rows.Close()

	var out []vc.Language
	for rows.Next() {
		var lang vc.Language
		if err := rows.Scan(&lang.ID, &lang.Code); err != nil {
			return nil, r.handlePostgresError("scan language", err)
		}
		out = append(out, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate language rows", err)
	}
	return out, nil
}
