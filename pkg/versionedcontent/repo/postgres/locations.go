package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Locations and node assignments

func (r *Repository) CreateNodeAssignment(ctx context.Context, a *vc.NodeAssignment) error {
	query := `
		INSERT INTO node_assignment (content_id, version_no, parent_location_id, is_main)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, a.ContentID, a.VersionNo, a.ParentLocationID, a.IsMain); err != nil {
		return r.handlePostgresError("create node assignment", err)
	}
	return nil
}

func (r *Repository) ListNodeAssignments(ctx context.Context, contentID int64, versionNo int) ([]vc.NodeAssignment, error) {
	query := `
		SELECT content_id, version_no, parent_location_id, is_main
		FROM node_assignment
		WHERE content_id = $1 AND ($2 < 0 OR version_no = $2)
		ORDER BY parent_location_id`

	rows, err := r.db.Query(ctx, query, contentID, versionNo)
	if err != nil {
		return nil, r.handlePostgresError("list node assignments", err)
	}
	defer rows.Close()

	var out []vc.NodeAssignment
	for rows.Next() {
		var a vc.NodeAssignment
		if err := rows.Scan(&a.ContentID, &a.VersionNo, &a.ParentLocationID, &a.IsMain); err != nil {
			return nil, r.handlePostgresError("scan node assignment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate node assignments", err)
	}
	return out, nil
}

func (r *Repository) DeleteNodeAssignments(ctx context.Context, contentID int64, versionNo int) error {
	query := `DELETE FROM node_assignment WHERE content_id = $1 AND ($2 < 0 OR version_no = $2)`

	if _, err := r.db.Exec(ctx, query, contentID, versionNo); err != nil {
		return r.handlePostgresError("delete node assignments", err)
	}
	return nil
}

const locationColumns = `id, parent_id, content_id, main_location_id, depth, hidden`

func (r *Repository) scanLocation(row pgx.Row) (*vc.Location, error) {
	var loc vc.Location
	err := row.Scan(&loc.ID, &loc.ParentID, &loc.ContentID, &loc.MainLocationID, &loc.Depth, &loc.Hidden)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *Repository) InsertLocation(ctx context.Context, loc *vc.Location) error {
	// A location created as its content's first placement becomes its own
	// main location.
	query := `
		INSERT INTO location (parent_id, content_id, main_location_id, depth, hidden)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		loc.ParentID, loc.ContentID, loc.MainLocationID, loc.Depth, loc.Hidden).Scan(&loc.ID)
	if err != nil {
		return r.handlePostgresError("insert location", err)
	}
	if loc.MainLocationID == 0 {
		loc.MainLocationID = loc.ID
		if _, err := r.db.Exec(ctx,
			`UPDATE location SET main_location_id = $1 WHERE id = $1`, loc.ID); err != nil {
			return r.handlePostgresError("insert location", err)
		}
	}
	return nil
}

func (r *Repository) LoadLocation(ctx context.Context, id int64) (*vc.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM location WHERE id = $1`

	loc, err := r.scanLocation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrLocationNotFound
		}
		return nil, r.handlePostgresError("load location", err)
	}
	return loc, nil
}

func (r *Repository) queryLocations(ctx context.Context, operation, query string, args ...interface{}) ([]*vc.Location, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var out []*vc.Location
	for rows.Next() {
		loc, err := r.scanLocation(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan location", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate location rows", err)
	}
	return out, nil
}

func (r *Repository) LocationsByContent(ctx context.Context, contentID int64) ([]*vc.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM location WHERE content_id = $1 ORDER BY id`
	return r.queryLocations(ctx, "locations by content", query, contentID)
}

func (r *Repository) Children(ctx context.Context, locationID int64) ([]*vc.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM location WHERE parent_id = $1 ORDER BY id`
	return r.queryLocations(ctx, "location children", query, locationID)
}

func (r *Repository) FallbackMainLocation(ctx context.Context, contentID int64, excludeLocationID int64) (*vc.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM location
		WHERE content_id = $1 AND id <> $2
		ORDER BY id
		LIMIT 1`

	loc, err := r.scanLocation(r.db.QueryRow(ctx, query, contentID, excludeLocationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrLocationNotFound
		}
		return nil, r.handlePostgresError("fallback main location", err)
	}
	return loc, nil
}

func (r *Repository) SetMainLocation(ctx context.Context, contentID int64, locationID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE location SET main_location_id = $2 WHERE content_id = $1`,
		contentID, locationID)
	if err != nil {
		return r.handlePostgresError("set main location", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrLocationNotFound
	}
	return nil
}

func (r *Repository) DeleteLocation(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM location WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete location", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrLocationNotFound
	}
	return nil
}
