package versionedcontent

import (
	"context"
	"time"
)

// Gateway defines raw row operations against the relational schema. It
// carries no domain interpretation: implementations accept and return
// row-shaped records and keep every mutation single-statement or
// single-transaction. Multi-statement sequences are composed by callers
// inside InTransaction.
type Gateway interface {
	// InTransaction runs fn against a transaction-scoped gateway,
	// committing on nil and rolling back every step on error.
	InTransaction(ctx context.Context, fn func(tx Gateway) error) error

	// Content rows
	InsertContent(ctx context.Context, info *ContentInfo) error
	UpdateContent(ctx context.Context, info *ContentInfo) error
	LoadContentInfo(ctx context.Context, id int64) (*ContentInfo, error)
	LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*ContentInfo, error)
	// LoadContentInfoList returns the rows found for ids; absent ids are
	// simply omitted (bulk NotFound recovery happens in the caller).
	LoadContentInfoList(ctx context.Context, ids []int64) ([]*ContentInfo, error)
	SetContentStatus(ctx context.Context, id int64, status ContentStatus) error
	ContentIDsByTypeID(ctx context.Context, typeID int64) ([]int64, error)
	// DeleteContentRows removes the content row and every version, field,
	// name and relation row (forward and reverse) belonging to it.
	DeleteContentRows(ctx context.Context, id int64) error

	// Version rows
	InsertVersion(ctx context.Context, v *VersionInfo) error
	UpdateVersion(ctx context.Context, v *VersionInfo) error
	LoadVersionInfo(ctx context.Context, contentID int64, versionNo int) (*VersionInfo, error)
	LoadPublishedVersionInfo(ctx context.Context, contentID int64) (*VersionInfo, error)
	ListVersions(ctx context.Context, contentID int64, filter VersionFilter) ([]*VersionInfo, error)
	ListVersionsForUser(ctx context.Context, userID int64, status VersionStatus) ([]*VersionInfo, error)
	// ListVersionsByStatus lists versions across all content, optionally
	// bounded by modification age. Feeds the archived-version pruner.
	ListVersionsByStatus(ctx context.Context, status VersionStatus, modifiedBefore time.Time, limit int) ([]*VersionInfo, error)
	SetVersionStatus(ctx context.Context, contentID int64, versionNo int, status VersionStatus) error
	NextVersionNo(ctx context.Context, contentID int64) (int, error)
	DeleteVersionRow(ctx context.Context, contentID int64, versionNo int) error

	// MarkPublished atomically sets the version's status to Published and
	// the content row's status and current version, guarded by a
	// conditional write that affects zero rows when any other version of
	// the content is already Published. Zero affected rows surface as
	// ErrPublishConflict. This is the sole concurrency control point of
	// the publish state machine.
	MarkPublished(ctx context.Context, contentID int64, versionNo int, at time.Time) error

	// Field rows
	InsertFields(ctx context.Context, fields []Field) ([]Field, error)
	// InsertExistingField re-inserts a field row preserving its field id
	// under a new version number (draft-from-version cloning).
	InsertExistingField(ctx context.Context, field Field) error
	UpdateField(ctx context.Context, field Field) error
	LoadFields(ctx context.Context, contentID int64, versionNo int) ([]Field, error)
	// DeleteFields removes field rows. versionNo < 0 matches all
	// versions; an empty languageCode matches every language.
	DeleteFields(ctx context.Context, contentID int64, versionNo int, languageCode string) error
	DeleteFieldsByDefinition(ctx context.Context, contentID int64, fieldDefinitionID int64) error
	// FieldRefsByType returns, per field type, the external-storage refs
	// of every field row of the content. Feeds storage dispatch on purge.
	FieldRefsByType(ctx context.Context, contentID int64) (map[string][]FieldRef, error)

	// Name rows
	SetName(ctx context.Context, contentID int64, versionNo int, languageCode, name string) error
	// DeleteNames removes name rows. versionNo < 0 matches all versions;
	// an empty languageCode matches every language.
	DeleteNames(ctx context.Context, contentID int64, versionNo int, languageCode string) error
	LoadNames(ctx context.Context, contentID int64, versionNo int) (map[string]string, error)

	// Relation rows
	InsertRelation(ctx context.Context, rel *Relation) error
	// DeleteRelation clears the given kind bits from the relation's type
	// mask via bitwise AND with the complement; the row itself is deleted
	// only when the resulting mask is zero.
	DeleteRelation(ctx context.Context, relationID int64, kind RelationTypeMask) error
	LoadRelation(ctx context.Context, relationID int64) (*Relation, error)
	// LoadRelations lists forward relations; kind 0 matches every kind.
	LoadRelations(ctx context.Context, contentID int64, versionNo int, kind RelationTypeMask) ([]Relation, error)
	LoadReverseRelations(ctx context.Context, destContentID int64, kind RelationTypeMask) ([]Relation, error)
	// CopyRelations bulk-copies every relation row of the source content
	// onto the destination content, preserving version numbers.
	CopyRelations(ctx context.Context, srcContentID, dstContentID int64) error
	DeleteRelations(ctx context.Context, contentID int64, versionNo int) error

	// Language rows
	InsertLanguage(ctx context.Context, lang *Language) error
	ListLanguages(ctx context.Context) ([]Language, error)

	// Locations and node assignments
	CreateNodeAssignment(ctx context.Context, a *NodeAssignment) error
	ListNodeAssignments(ctx context.Context, contentID int64, versionNo int) ([]NodeAssignment, error)
	// DeleteNodeAssignments removes assignments; versionNo < 0 means all
	// versions.
	DeleteNodeAssignments(ctx context.Context, contentID int64, versionNo int) error
	InsertLocation(ctx context.Context, loc *Location) error
	LoadLocation(ctx context.Context, id int64) (*Location, error)
	LocationsByContent(ctx context.Context, contentID int64) ([]*Location, error)
	Children(ctx context.Context, locationID int64) ([]*Location, error)
	// FallbackMainLocation deterministically elects the content's next
	// main location when the current one goes away: the remaining
	// location with the lowest id, excluding the given one.
	FallbackMainLocation(ctx context.Context, contentID int64, excludeLocationID int64) (*Location, error)
	// SetMainLocation points every location row of the content at the new
	// main location id.
	SetMainLocation(ctx context.Context, contentID int64, locationID int64) error
	DeleteLocation(ctx context.Context, id int64) error
}

// LanguageRegistry resolves registered languages by id and code.
type LanguageRegistry interface {
	ByID(id int64) (Language, error)
	ByCode(code string) (Language, error)
	All() []Language
}

// FieldStorage is a per-field-type backend for payloads that cannot live
// in the generic field table. Backends are not transactional with the
// primary row store; failures are reported, never silently absorbed.
type FieldStorage interface {
	StoreFieldData(ctx context.Context, ref FieldRef, data []byte) error
	GetFieldData(ctx context.Context, ref FieldRef) ([]byte, error)
	CopyFieldData(ctx context.Context, src, dst FieldRef) error
	DeleteFieldData(ctx context.Context, ref FieldRef) error
}

// TypeSource loads content-type definitions for content assembly and
// validation. Implemented by the schema engine.
type TypeSource interface {
	LoadTypeByID(ctx context.Context, id int64) (*ContentType, error)
}
