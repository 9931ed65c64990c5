// Package schema is the content-type schema engine: it stores type
// definitions by status (defined/draft/modified), promotes drafts on
// publish, and propagates the resulting field-definition delta to every
// stored content instance of the type.
package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Store defines raw row operations for content types and their field
// definitions. A (type id, status) pair addresses one stored revision of
// a type; field definition ids come from a single global sequence.
type Store interface {
	InsertType(ctx context.Context, t *vc.ContentType) error
	UpdateType(ctx context.Context, t *vc.ContentType) error
	LoadType(ctx context.Context, id int64, status vc.TypeStatus) (*vc.ContentType, error)
	LoadTypeByIdentifier(ctx context.Context, identifier string, status vc.TypeStatus) (*vc.ContentType, error)
	ListTypes(ctx context.Context, status vc.TypeStatus) ([]*vc.ContentType, error)
	DeleteType(ctx context.Context, id int64, status vc.TypeStatus) error
	InsertFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error
	UpdateFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def vc.FieldDefinition) error
	DeleteFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, fieldDefinitionID int64) error
	// PromoteType atomically deletes the type's Defined rows (if any) and
	// re-statuses the rows under from to Defined.
	PromoteType(ctx context.Context, typeID int64, from vc.TypeStatus) error
}

// Service is the schema engine's operation surface.
type Service interface {
	vc.TypeSource

	CreateType(ctx context.Context, t *vc.ContentType) (*vc.ContentType, error)
	CreateDraftOfType(ctx context.Context, typeID int64, modifierID int64) (*vc.ContentType, error)
	UpdateType(ctx context.Context, t *vc.ContentType) error
	DeleteType(ctx context.Context, typeID int64, status vc.TypeStatus) error
	LoadType(ctx context.Context, typeID int64, status vc.TypeStatus) (*vc.ContentType, error)
	LoadTypeByIdentifier(ctx context.Context, identifier string, status vc.TypeStatus) (*vc.ContentType, error)
	ListTypes(ctx context.Context, status vc.TypeStatus) ([]*vc.ContentType, error)

	AddFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error
	UpdateFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def vc.FieldDefinition) error
	RemoveFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, fieldDefinitionID int64) error

	// CopyType duplicates a Defined type into a fresh Draft type. Field
	// definition ids are nulled so storage assigns new ones.
	CopyType(ctx context.Context, typeID int64, creatorID int64) (*vc.ContentType, error)

	// Publish promotes the type's draft rows to Defined and applies the
	// field-definition delta against every content instance of the type.
	Publish(ctx context.Context, typeID int64) error
}

type service struct {
	store   Store
	updater *Updater
}

// NewService creates the schema engine. The updater may be nil, in which
// case publishing a type skips retroactive content migration.
func NewService(store Store, updater *Updater) Service {
	return &service{store: store, updater: updater}
}

func (s *service) LoadTypeByID(ctx context.Context, id int64) (*vc.ContentType, error) {
	return s.store.LoadType(ctx, id, vc.TypeStatusDefined)
}

func (s *service) CreateType(ctx context.Context, t *vc.ContentType) (*vc.ContentType, error) {
	if t.Identifier == "" {
		return nil, fmt.Errorf("%w: type identifier is required", vc.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	t.Status = vc.TypeStatusDraft
	t.Created = now
	t.Modified = now
	if t.RemoteID == "" {
		t.RemoteID = uuid.NewString()
	}
	if err := s.store.InsertType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) CreateDraftOfType(ctx context.Context, typeID int64, modifierID int64) (*vc.ContentType, error) {
	defined, err := s.store.LoadType(ctx, typeID, vc.TypeStatusDefined)
	if err != nil {
		return nil, err
	}

	draft := *defined
	draft.Status = vc.TypeStatusModified
	draft.ModifierID = modifierID
	draft.Modified = time.Now().UTC()
	draft.FieldDefinitions = cloneDefinitions(defined.FieldDefinitions)
	if err := s.store.InsertType(ctx, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *service) UpdateType(ctx context.Context, t *vc.ContentType) error {
	if t.Status == vc.TypeStatusDefined {
		return fmt.Errorf("%w: defined types are immutable, draft the type first", vc.ErrInvalidArgument)
	}
	t.Modified = time.Now().UTC()
	return s.store.UpdateType(ctx, t)
}

func (s *service) DeleteType(ctx context.Context, typeID int64, status vc.TypeStatus) error {
	return s.store.DeleteType(ctx, typeID, status)
}

func (s *service) LoadType(ctx context.Context, typeID int64, status vc.TypeStatus) (*vc.ContentType, error) {
	return s.store.LoadType(ctx, typeID, status)
}

func (s *service) LoadTypeByIdentifier(ctx context.Context, identifier string, status vc.TypeStatus) (*vc.ContentType, error) {
	return s.store.LoadTypeByIdentifier(ctx, identifier, status)
}

func (s *service) ListTypes(ctx context.Context, status vc.TypeStatus) ([]*vc.ContentType, error) {
	return s.store.ListTypes(ctx, status)
}

func (s *service) AddFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error {
	if status == vc.TypeStatusDefined {
		return fmt.Errorf("%w: defined types are immutable, draft the type first", vc.ErrInvalidArgument)
	}
	if def.Identifier == "" || def.FieldType == "" {
		return fmt.Errorf("%w: field definition identifier and field type are required", vc.ErrInvalidArgument)
	}
	return s.store.InsertFieldDefinition(ctx, typeID, status, def)
}

func (s *service) UpdateFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def vc.FieldDefinition) error {
	if status == vc.TypeStatusDefined {
		return fmt.Errorf("%w: defined types are immutable, draft the type first", vc.ErrInvalidArgument)
	}
	return s.store.UpdateFieldDefinition(ctx, typeID, status, def)
}

func (s *service) RemoveFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, fieldDefinitionID int64) error {
	if status == vc.TypeStatusDefined {
		return fmt.Errorf("%w: defined types are immutable, draft the type first", vc.ErrInvalidArgument)
	}
	return s.store.DeleteFieldDefinition(ctx, typeID, status, fieldDefinitionID)
}

func (s *service) CopyType(ctx context.Context, typeID int64, creatorID int64) (*vc.ContentType, error) {
	src, err := s.store.LoadType(ctx, typeID, vc.TypeStatusDefined)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dup := *src
	dup.ID = 0
	dup.Status = vc.TypeStatusDraft
	dup.Identifier = fmt.Sprintf("copy_of_%s_%d", src.Identifier, now.Unix())
	dup.RemoteID = uuid.NewString()
	dup.CreatorID = creatorID
	dup.ModifierID = creatorID
	dup.Created = now
	dup.Modified = now
	dup.FieldDefinitions = cloneDefinitions(src.FieldDefinitions)
	// Copied definitions must receive fresh globally-unique ids, so
	// id-based delta computation can never confuse a copy's field with
	// the original's.
	for i := range dup.FieldDefinitions {
		dup.FieldDefinitions[i].ID = 0
	}
	if err := s.store.InsertType(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

func (s *service) Publish(ctx context.Context, typeID int64) error {
	old, err := s.store.LoadType(ctx, typeID, vc.TypeStatusDefined)
	if err != nil && !errors.Is(err, vc.ErrTypeNotFound) {
		return err
	}

	from := vc.TypeStatusModified
	draft, err := s.store.LoadType(ctx, typeID, from)
	if errors.Is(err, vc.ErrTypeNotFound) {
		from = vc.TypeStatusDraft
		draft, err = s.store.LoadType(ctx, typeID, from)
	}
	if err != nil {
		return err
	}

	if err := s.store.PromoteType(ctx, typeID, from); err != nil {
		return err
	}

	if old == nil || s.updater == nil {
		return nil
	}
	actions := DetermineActions(old, draft)
	if len(actions) == 0 {
		return nil
	}
	return s.updater.Apply(ctx, typeID, actions)
}

func cloneDefinitions(defs []vc.FieldDefinition) []vc.FieldDefinition {
	out := make([]vc.FieldDefinition, len(defs))
	copy(out, defs)
	for i := range out {
		out[i].Names = cloneMap(defs[i].Names)
		out[i].Descriptions = cloneMap(defs[i].Descriptions)
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
