// Package postgres provides a PostgreSQL gateway built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	"github.com/structcms/versioned-content/pkg/versionedcontent/schema"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements versionedcontent.Gateway and schema.Store using
// PostgreSQL.
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a repository over an existing connection or transaction.
// Repositories created this way cannot open their own transactions.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

var (
	_ vc.Gateway   = (*Repository)(nil)
	_ schema.Store = (*Repository)(nil)
)

// InTransaction runs fn against a transaction-scoped repository. A
// repository that is already transaction-scoped joins the ambient
// transaction instead of opening a new one.
func (r *Repository) InTransaction(ctx context.Context, fn func(tx vc.Gateway) error) error {
	return r.inTx(ctx, func(txRepo *Repository) error { return fn(txRepo) })
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return r.handlePostgresError("commit transaction", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "remote_id") {
				return &vc.GatewayError{Op: operation, Err: fmt.Errorf("remote id already in use")}
			}
			return &vc.GatewayError{Op: operation, Err: fmt.Errorf("duplicate entry")}
		case "23503": // foreign_key_violation
			return &vc.GatewayError{Op: operation, Err: fmt.Errorf("referenced record not found")}
		case "23502": // not_null_violation
			return &vc.GatewayError{Op: operation, Err: fmt.Errorf("required column %s is missing", pgErr.ColumnName)}
		case "42P01": // undefined_table
			return &vc.GatewayError{Op: operation, Err: fmt.Errorf("table does not exist - database migration required")}
		default:
			return &vc.GatewayError{Op: operation, Err: fmt.Errorf("%s (code: %s)", pgErr.Message, pgErr.Code)}
		}
	}
	return &vc.GatewayError{Op: operation, Err: err}
}

// Content rows

func (r *Repository) InsertContent(ctx context.Context, info *vc.ContentInfo) error {
	query := `
		INSERT INTO content (
			name, type_id, section_id, owner_id, current_version_no,
			main_language_code, remote_id, created, modified, published,
			status, language_mask, is_hidden
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		info.Name, info.TypeID, info.SectionID, info.OwnerID, info.CurrentVersionNo,
		info.MainLanguageCode, info.RemoteID, info.Created, info.Modified, info.Published,
		info.Status, int64(info.LanguageMask), info.IsHidden).Scan(&info.ID)
	if err != nil {
		return r.handlePostgresError("insert content", err)
	}
	return nil
}

func (r *Repository) UpdateContent(ctx context.Context, info *vc.ContentInfo) error {
	query := `
		UPDATE content SET
			name = $2, type_id = $3, section_id = $4, owner_id = $5,
			current_version_no = $6, main_language_code = $7, remote_id = $8,
			modified = $9, published = $10, status = $11, language_mask = $12,
			is_hidden = $13
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		info.ID, info.Name, info.TypeID, info.SectionID, info.OwnerID,
		info.CurrentVersionNo, info.MainLanguageCode, info.RemoteID,
		info.Modified, info.Published, info.Status, int64(info.LanguageMask), info.IsHidden)
	if err != nil {
		return r.handlePostgresError("update content", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrContentNotFound
	}
	return nil
}

const contentColumns = `
	id, name, type_id, section_id, owner_id, current_version_no,
	main_language_code, remote_id, created, modified, published,
	status, language_mask, is_hidden`

func (r *Repository) scanContent(row pgx.Row) (*vc.ContentInfo, error) {
	var info vc.ContentInfo
	var mask int64
	err := row.Scan(
		&info.ID, &info.Name, &info.TypeID, &info.SectionID, &info.OwnerID,
		&info.CurrentVersionNo, &info.MainLanguageCode, &info.RemoteID,
		&info.Created, &info.Modified, &info.Published,
		&info.Status, &mask, &info.IsHidden)
	if err != nil {
		return nil, err
	}
	info.LanguageMask = vc.LanguageMask(mask)
	return &info, nil
}

func (r *Repository) LoadContentInfo(ctx context.Context, id int64) (*vc.ContentInfo, error) {
	query := `SELECT` + contentColumns + ` FROM content WHERE id = $1`

	info, err := r.scanContent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrContentNotFound
		}
		return nil, r.handlePostgresError("load content", err)
	}
	return info, nil
}

func (r *Repository) LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*vc.ContentInfo, error) {
	query := `SELECT` + contentColumns + ` FROM content WHERE remote_id = $1`

	info, err := r.scanContent(r.db.QueryRow(ctx, query, remoteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrContentNotFound
		}
		return nil, r.handlePostgresError("load content by remote id", err)
	}
	return info, nil
}

func (r *Repository) LoadContentInfoList(ctx context.Context, ids []int64) ([]*vc.ContentInfo, error) {
	query := `SELECT` + contentColumns + ` FROM content WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, r.handlePostgresError("load content list", err)
	}
	defer rows.Close()

	var out []*vc.ContentInfo
	for rows.Next() {
		info, err := r.scanContent(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan content", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate content rows", err)
	}
	return out, nil
}

func (r *Repository) SetContentStatus(ctx context.Context, id int64, status vc.ContentStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE content SET status = $2, modified = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return r.handlePostgresError("set content status", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrContentNotFound
	}
	return nil
}

func (r *Repository) ContentIDsByTypeID(ctx context.Context, typeID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM content WHERE type_id = $1 ORDER BY id`, typeID)
	if err != nil {
		return nil, r.handlePostgresError("content ids by type", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, r.handlePostgresError("scan content id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate content ids", err)
	}
	return ids, nil
}

func (r *Repository) DeleteContentRows(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *Repository) error {
		statements := []string{
			`DELETE FROM content_relation WHERE source_content_id = $1 OR dest_content_id = $1`,
			`DELETE FROM content_name WHERE content_id = $1`,
			`DELETE FROM content_field WHERE content_id = $1`,
			`DELETE FROM node_assignment WHERE content_id = $1`,
			`DELETE FROM content_version WHERE content_id = $1`,
		}
		for _, stmt := range statements {
			if _, err := tx.db.Exec(ctx, stmt, id); err != nil {
				return tx.handlePostgresError("delete content rows", err)
			}
		}
		tag, err := tx.db.Exec(ctx, `DELETE FROM content WHERE id = $1`, id)
		if err != nil {
			return tx.handlePostgresError("delete content", err)
		}
		if tag.RowsAffected() == 0 {
			return vc.ErrContentNotFound
		}
		return nil
	})
}

// Version rows

func (r *Repository) InsertVersion(ctx context.Context, v *vc.VersionInfo) error {
	query := `
		INSERT INTO content_version (
			content_id, version_no, creator_id, created, modified,
			status, initial_language_code, language_mask
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		v.ContentID, v.VersionNo, v.CreatorID, v.Created, v.Modified,
		v.Status, v.InitialLanguageCode, int64(v.LanguageMask))
	if err != nil {
		return r.handlePostgresError("insert version", err)
	}
	return r.upsertNames(ctx, v)
}

func (r *Repository) UpdateVersion(ctx context.Context, v *vc.VersionInfo) error {
	query := `
		UPDATE content_version SET
			creator_id = $3, modified = $4, status = $5,
			initial_language_code = $6, language_mask = $7
		WHERE content_id = $1 AND version_no = $2`

	tag, err := r.db.Exec(ctx, query,
		v.ContentID, v.VersionNo, v.CreatorID, v.Modified, v.Status,
		v.InitialLanguageCode, int64(v.LanguageMask))
	if err != nil {
		return r.handlePostgresError("update version", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrVersionNotFound
	}
	return r.upsertNames(ctx, v)
}

func (r *Repository) upsertNames(ctx context.Context, v *vc.VersionInfo) error {
	for code, name := range v.Names {
		if err := r.SetName(ctx, v.ContentID, v.VersionNo, code, name); err != nil {
			return err
		}
	}
	return nil
}

const versionColumns = `
	content_id, version_no, creator_id, created, modified,
	status, initial_language_code, language_mask`

func (r *Repository) scanVersion(row pgx.Row) (*vc.VersionInfo, error) {
	var v vc.VersionInfo
	var mask int64
	err := row.Scan(
		&v.ContentID, &v.VersionNo, &v.CreatorID, &v.Created, &v.Modified,
		&v.Status, &v.InitialLanguageCode, &mask)
	if err != nil {
		return nil, err
	}
	v.LanguageMask = vc.LanguageMask(mask)
	return &v, nil
}

func (r *Repository) LoadVersionInfo(ctx context.Context, contentID int64, versionNo int) (*vc.VersionInfo, error) {
	query := `SELECT` + versionColumns + ` FROM content_version WHERE content_id = $1 AND version_no = $2`

	v, err := r.scanVersion(r.db.QueryRow(ctx, query, contentID, versionNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrVersionNotFound
		}
		return nil, r.handlePostgresError("load version", err)
	}
	if v.Names, err = r.LoadNames(ctx, contentID, versionNo); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Repository) LoadPublishedVersionInfo(ctx context.Context, contentID int64) (*vc.VersionInfo, error) {
	query := `SELECT` + versionColumns + ` FROM content_version WHERE content_id = $1 AND status = $2`

	v, err := r.scanVersion(r.db.QueryRow(ctx, query, contentID, vc.VersionStatusPublished))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vc.ErrVersionNotFound
		}
		return nil, r.handlePostgresError("load published version", err)
	}
	if v.Names, err = r.LoadNames(ctx, contentID, v.VersionNo); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Repository) queryVersions(ctx context.Context, operation, query string, args ...interface{}) ([]*vc.VersionInfo, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var out []*vc.VersionInfo
	for rows.Next() {
		v, err := r.scanVersion(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan version", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate version rows", err)
	}
	for _, v := range out {
		if v.Names, err = r.LoadNames(ctx, v.ContentID, v.VersionNo); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) ListVersions(ctx context.Context, contentID int64, filter vc.VersionFilter) ([]*vc.VersionInfo, error) {
	query := `SELECT` + versionColumns + ` FROM content_version WHERE content_id = $1`
	args := []interface{}{contentID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ModifiedBefore != nil {
		args = append(args, *filter.ModifiedBefore)
		query += fmt.Sprintf(" AND modified < $%d", len(args))
	}
	query += " ORDER BY version_no"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryVersions(ctx, "list versions", query, args...)
}

func (r *Repository) ListVersionsForUser(ctx context.Context, userID int64, status vc.VersionStatus) ([]*vc.VersionInfo, error) {
	query := `SELECT` + versionColumns + ` FROM content_version WHERE creator_id = $1`
	args := []interface{}{userID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY content_id, version_no"
	return r.queryVersions(ctx, "list versions for user", query, args...)
}

func (r *Repository) ListVersionsByStatus(ctx context.Context, status vc.VersionStatus, modifiedBefore time.Time, limit int) ([]*vc.VersionInfo, error) {
	query := `SELECT` + versionColumns + ` FROM content_version WHERE status = $1`
	args := []interface{}{status}
	if !modifiedBefore.IsZero() {
		args = append(args, modifiedBefore)
		query += fmt.Sprintf(" AND modified < $%d", len(args))
	}
	query += " ORDER BY modified"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryVersions(ctx, "list versions by status", query, args...)
}

func (r *Repository) SetVersionStatus(ctx context.Context, contentID int64, versionNo int, status vc.VersionStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE content_version SET status = $3, modified = $4 WHERE content_id = $1 AND version_no = $2`,
		contentID, versionNo, status, time.Now().UTC())
	if err != nil {
		return r.handlePostgresError("set version status", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrVersionNotFound
	}
	return nil
}

func (r *Repository) NextVersionNo(ctx context.Context, contentID int64) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_no), 0) + 1 FROM content_version WHERE content_id = $1`,
		contentID).Scan(&next)
	if err != nil {
		return 0, r.handlePostgresError("next version number", err)
	}
	return next, nil
}

func (r *Repository) DeleteVersionRow(ctx context.Context, contentID int64, versionNo int) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM content_version WHERE content_id = $1 AND version_no = $2`,
		contentID, versionNo)
	if err != nil {
		return r.handlePostgresError("delete version", err)
	}
	if tag.RowsAffected() == 0 {
		return vc.ErrVersionNotFound
	}
	return nil
}

func (r *Repository) MarkPublished(ctx context.Context, contentID int64, versionNo int, at time.Time) error {
	return r.inTx(ctx, func(tx *Repository) error {
		// The conditional write is the sole guard against concurrent
		// publishers: it affects zero rows when another version already
		// holds published status.
		query := `
			UPDATE content_version SET status = $3, modified = $4
			WHERE content_id = $1 AND version_no = $2
			  AND NOT EXISTS (
				SELECT 1 FROM content_version o
				WHERE o.content_id = $1 AND o.version_no <> $2 AND o.status = $3
			  )`

		tag, err := tx.db.Exec(ctx, query, contentID, versionNo, vc.VersionStatusPublished, at)
		if err != nil {
			return tx.handlePostgresError("mark published", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			err := tx.db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM content_version WHERE content_id = $1 AND version_no = $2)`,
				contentID, versionNo).Scan(&exists)
			if err != nil {
				return tx.handlePostgresError("mark published", err)
			}
			if !exists {
				return vc.ErrVersionNotFound
			}
			return vc.ErrPublishConflict
		}

		tag, err = tx.db.Exec(ctx,
			`UPDATE content SET status = $2, current_version_no = $3, published = $4, modified = $4 WHERE id = $1`,
			contentID, vc.ContentStatusPublished, versionNo, at)
		if err != nil {
			return tx.handlePostgresError("mark published", err)
		}
		if tag.RowsAffected() == 0 {
			return vc.ErrContentNotFound
		}
		return nil
	})
}
