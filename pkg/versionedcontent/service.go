package versionedcontent

import (
	"context"
)

// Service is the content orchestration handler. It composes gateway row
// operations, the language-mask codec and external field storage dispatch
// into the content lifecycle: create, publish, draft, copy, delete and
// translation removal.
type Service interface {
	// Content operations
	CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error)
	// CreateDraftFromVersion clones the given version into a new draft,
	// preserving field ids; versionNo 0 drafts from the current version.
	CreateDraftFromVersion(ctx context.Context, contentID int64, versionNo int, creatorID int64) (*Content, error)
	// LoadContent assembles a content item; versionNo 0 loads the current
	// version. External field payloads are resolved, and field slots the
	// type declares but no row covers are filled via the missing-field
	// resolver.
	LoadContent(ctx context.Context, contentID int64, versionNo int) (*Content, error)
	LoadContentInfo(ctx context.Context, contentID int64) (*ContentInfo, error)
	LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*ContentInfo, error)
	// LoadContentInfoList recovers per-item NotFound locally: absent items
	// are dropped from the result, not surfaced.
	LoadContentInfoList(ctx context.Context, ids []int64) ([]*ContentInfo, error)
	UpdateMetadata(ctx context.Context, contentID int64, req UpdateMetadataRequest) (*ContentInfo, error)
	UpdateContent(ctx context.Context, contentID int64, versionNo int, req UpdateContentRequest) (*Content, error)
	// PublishVersion runs the publish state machine: archive the prior
	// published version, materialize pending placements, merge the
	// version's language mask into the content row, and atomically flip
	// statuses guarded against concurrent publishers (ErrPublishConflict
	// on a lost race).
	PublishVersion(ctx context.Context, contentID int64, versionNo int) (*Content, error)
	CopyContent(ctx context.Context, contentID int64, req CopyContentRequest) (*Content, error)
	DeleteVersion(ctx context.Context, contentID int64, versionNo int) error
	// DeleteContent removes a content item. Content without locations is
	// purged directly; placed content is removed by cascading subtree
	// deletion through the tree handler.
	DeleteContent(ctx context.Context, contentID int64) error
	// PurgeContent removes every row and external payload of a content
	// item without consulting placements. The tree handler calls this
	// once the last location is gone.
	PurgeContent(ctx context.Context, contentID int64) error
	DeleteTranslationFromContent(ctx context.Context, contentID int64, languageCode string) error
	DeleteTranslationFromDraft(ctx context.Context, contentID int64, versionNo int, languageCode string) error
	ListVersions(ctx context.Context, contentID int64, filter VersionFilter) ([]*VersionInfo, error)
	ListVersionsForUser(ctx context.Context, userID int64, status VersionStatus) ([]*VersionInfo, error)

	// Relation operations
	AddRelation(ctx context.Context, req AddRelationRequest) (*Relation, error)
	RemoveRelation(ctx context.Context, relationID int64, kind RelationTypeMask) error
	LoadRelations(ctx context.Context, contentID int64, versionNo int, kind RelationTypeMask) ([]Relation, error)
	LoadReverseRelations(ctx context.Context, destContentID int64, kind RelationTypeMask) ([]Relation, error)

	// Schema-change actions, driven per content instance by the
	// content-type updater when a type is republished.
	AddFieldForDefinition(ctx context.Context, contentID int64, def FieldDefinition) error
	RemoveFieldByDefinition(ctx context.Context, contentID int64, fieldType string, fieldDefinitionID int64) error

	// Tree returns the placement tree handler bound to this service.
	Tree() *TreeService

	// Languages returns the language registry the service encodes and
	// decodes masks against.
	Languages() LanguageRegistry
}
