package schema

import (
	"context"
	"fmt"
	"log/slog"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// ActionKind discriminates schema delta actions.
type ActionKind string

// Delta action kinds.
const (
	ActionRemoveField ActionKind = "remove_field"
	ActionAddField    ActionKind = "add_field"
)

// Action is one step of a schema delta: remove a field definition's rows
// from every content instance, or add rows for a new definition.
type Action struct {
	Kind ActionKind

	// Definition is the added definition for ActionAddField, and the old
	// definition for ActionRemoveField (its id and field type drive row
	// deletion and storage dispatch).
	Definition vc.FieldDefinition
}

// DetermineActions computes the structural delta between the old and new
// revision of a type: a RemoveField for every old definition id absent
// from the new type, then an AddField for every new definition id absent
// from the old type. Matching is by definition id, never by identifier
// string, and source order is preserved: all removals in the old type's
// definition order, then all additions in the new type's order. An
// add/remove pair sharing an identifier but carrying different ids stays
// two distinct actions.
func DetermineActions(old, new *vc.ContentType) []Action {
	oldIDs := make(map[int64]struct{}, len(old.FieldDefinitions))
	for _, def := range old.FieldDefinitions {
		oldIDs[def.ID] = struct{}{}
	}
	newIDs := make(map[int64]struct{}, len(new.FieldDefinitions))
	for _, def := range new.FieldDefinitions {
		newIDs[def.ID] = struct{}{}
	}

	var actions []Action
	for _, def := range old.FieldDefinitions {
		if _, ok := newIDs[def.ID]; !ok {
			actions = append(actions, Action{Kind: ActionRemoveField, Definition: def})
		}
	}
	for _, def := range new.FieldDefinitions {
		if _, ok := oldIDs[def.ID]; !ok {
			actions = append(actions, Action{Kind: ActionAddField, Definition: def})
		}
	}
	return actions
}

// FieldUpdater applies one schema action to one content instance.
// Satisfied by the content orchestration service.
type FieldUpdater interface {
	AddFieldForDefinition(ctx context.Context, contentID int64, def vc.FieldDefinition) error
	RemoveFieldByDefinition(ctx context.Context, contentID int64, fieldType string, fieldDefinitionID int64) error
}

// ContentLister resolves the content instances of a type. Satisfied by
// the storage gateway.
type ContentLister interface {
	ContentIDsByTypeID(ctx context.Context, typeID int64) ([]int64, error)
}

// Updater applies a computed schema delta to every stored content
// instance of a type. There is no cross-content rollback: when a step
// fails, actions applied to earlier content instances remain applied and
// the error names the content where application stopped, so operators
// can resume from there.
type Updater struct {
	contents FieldUpdater
	lister   ContentLister
	logger   *slog.Logger
}

// NewUpdater creates a schema updater over the given content service and
// content lister.
func NewUpdater(contents FieldUpdater, lister ContentLister, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{contents: contents, lister: lister, logger: logger}
}

// Apply runs the actions, in order, against every content instance of
// the type.
func (u *Updater) Apply(ctx context.Context, typeID int64, actions []Action) error {
	ids, err := u.lister.ContentIDsByTypeID(ctx, typeID)
	if err != nil {
		return err
	}

	for _, contentID := range ids {
		for _, action := range actions {
			if err := u.applyOne(ctx, contentID, action); err != nil {
				return fmt.Errorf("schema delta for type %d partially applied, stopped at content %d: %w",
					typeID, contentID, err)
			}
		}
		u.logger.Debug("schema delta applied", "type_id", typeID, "content_id", contentID, "actions", len(actions))
	}
	return nil
}

func (u *Updater) applyOne(ctx context.Context, contentID int64, action Action) error {
	switch action.Kind {
	case ActionRemoveField:
		return u.contents.RemoveFieldByDefinition(ctx, contentID, action.Definition.FieldType, action.Definition.ID)
	case ActionAddField:
		return u.contents.AddFieldForDefinition(ctx, contentID, action.Definition)
	default:
		return fmt.Errorf("%w: unknown action kind %q", vc.ErrInvalidArgument, action.Kind)
	}
}
