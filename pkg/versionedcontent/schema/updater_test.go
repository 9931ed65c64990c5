package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

func typeWithDefs(defs ...vc.FieldDefinition) *vc.ContentType {
	return &vc.ContentType{ID: 1, Identifier: "article", FieldDefinitions: defs}
}

func def(id int64, identifier string) vc.FieldDefinition {
	return vc.FieldDefinition{ID: id, Identifier: identifier, FieldType: "ezstring"}
}

func TestDetermineActions(t *testing.T) {
	t.Run("identical revisions yield no actions", func(t *testing.T) {
		old := typeWithDefs(def(1, "title"), def(2, "body"))
		assert.Nil(t, DetermineActions(old, old))
	})

	t.Run("removed definition", func(t *testing.T) {
		old := typeWithDefs(def(1, "title"), def(2, "body"))
		new := typeWithDefs(def(1, "title"))

		actions := DetermineActions(old, new)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionRemoveField, actions[0].Kind)
		assert.Equal(t, int64(2), actions[0].Definition.ID)
	})

	t.Run("added definition", func(t *testing.T) {
		old := typeWithDefs(def(1, "title"))
		new := typeWithDefs(def(1, "title"), def(3, "teaser"))

		actions := DetermineActions(old, new)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionAddField, actions[0].Kind)
		assert.Equal(t, int64(3), actions[0].Definition.ID)
	})

	t.Run("removals precede additions", func(t *testing.T) {
		old := typeWithDefs(def(1, "title"), def(2, "body"), def(3, "teaser"))
		new := typeWithDefs(def(1, "title"), def(4, "intro"), def(5, "outro"))

		actions := DetermineActions(old, new)
		require.Len(t, actions, 4)
		assert.Equal(t, ActionRemoveField, actions[0].Kind)
		assert.Equal(t, int64(2), actions[0].Definition.ID)
		assert.Equal(t, ActionRemoveField, actions[1].Kind)
		assert.Equal(t, int64(3), actions[1].Definition.ID)
		assert.Equal(t, ActionAddField, actions[2].Kind)
		assert.Equal(t, int64(4), actions[2].Definition.ID)
		assert.Equal(t, ActionAddField, actions[3].Kind)
		assert.Equal(t, int64(5), actions[3].Definition.ID)
	})

	t.Run("same identifier different id is a remove and an add", func(t *testing.T) {
		old := typeWithDefs(def(1, "title"))
		new := typeWithDefs(def(9, "title"))

		actions := DetermineActions(old, new)
		require.Len(t, actions, 2)
		assert.Equal(t, ActionRemoveField, actions[0].Kind)
		assert.Equal(t, int64(1), actions[0].Definition.ID)
		assert.Equal(t, ActionAddField, actions[1].Kind)
		assert.Equal(t, int64(9), actions[1].Definition.ID)
	})
}

type recordedCall struct {
	contentID int64
	kind      ActionKind
	defID     int64
}

type recordingUpdater struct {
	calls  []recordedCall
	failOn int64 // content id whose first action fails; 0 disables
}

func (f *recordingUpdater) AddFieldForDefinition(ctx context.Context, contentID int64, def vc.FieldDefinition) error {
	if contentID == f.failOn {
		return errors.New("add failed")
	}
	f.calls = append(f.calls, recordedCall{contentID, ActionAddField, def.ID})
	return nil
}

func (f *recordingUpdater) RemoveFieldByDefinition(ctx context.Context, contentID int64, fieldType string, fieldDefinitionID int64) error {
	if contentID == f.failOn {
		return errors.New("remove failed")
	}
	f.calls = append(f.calls, recordedCall{contentID, ActionRemoveField, fieldDefinitionID})
	return nil
}

type staticLister struct {
	ids []int64
}

func (l *staticLister) ContentIDsByTypeID(ctx context.Context, typeID int64) ([]int64, error) {
	return l.ids, nil
}

func TestUpdaterApply(t *testing.T) {
	contents := &recordingUpdater{}
	u := NewUpdater(contents, &staticLister{ids: []int64{10, 20}}, nil)

	actions := []Action{
		{Kind: ActionRemoveField, Definition: def(2, "body")},
		{Kind: ActionAddField, Definition: def(4, "intro")},
	}
	require.NoError(t, u.Apply(context.Background(), 1, actions))

	// All actions run per content instance, in order.
	assert.Equal(t, []recordedCall{
		{10, ActionRemoveField, 2},
		{10, ActionAddField, 4},
		{20, ActionRemoveField, 2},
		{20, ActionAddField, 4},
	}, contents.calls)
}

func TestUpdaterApplyPartialFailure(t *testing.T) {
	contents := &recordingUpdater{failOn: 20}
	u := NewUpdater(contents, &staticLister{ids: []int64{10, 20, 30}}, nil)

	actions := []Action{{Kind: ActionAddField, Definition: def(4, "intro")}}
	err := u.Apply(context.Background(), 1, actions)
	require.Error(t, err)
	// The error names where application stopped; earlier instances stay
	// migrated.
	assert.Contains(t, err.Error(), "stopped at content 20")
	assert.Equal(t, []recordedCall{{10, ActionAddField, 4}}, contents.calls)
}

func TestUpdaterApplyUnknownAction(t *testing.T) {
	u := NewUpdater(&recordingUpdater{}, &staticLister{ids: []int64{10}}, nil)
	err := u.Apply(context.Background(), 1, []Action{{Kind: ActionKind("mutate")}})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)
}
