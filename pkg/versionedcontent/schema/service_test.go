package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	memrepo "github.com/structcms/versioned-content/pkg/versionedcontent/repo/memory"
	"github.com/structcms/versioned-content/pkg/versionedcontent/schema"
)

// newSchemaStack wires the schema engine, the content service and the
// memory repository into the shape the server runs them in.
func newSchemaStack(t *testing.T) (schema.Service, vc.Service, *memrepo.Repository) {
	t.Helper()

	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(
		vc.Language{ID: 2, Code: "eng-GB"},
		vc.Language{ID: 4, Code: "ger-DE"},
	)
	require.NoError(t, err)

	svc, err := vc.New(vc.WithGateway(repo), vc.WithLanguages(reg))
	require.NoError(t, err)

	updater := schema.NewUpdater(svc, repo, nil)
	return schema.NewService(repo, updater), svc, repo
}

func articleType() *vc.ContentType {
	return &vc.ContentType{
		Identifier: "article",
		CreatorID:  14,
		Names:      map[string]string{"eng-GB": "Article"},
		FieldDefinitions: []vc.FieldDefinition{
			{Identifier: "title", FieldType: "ezstring", Position: 1, IsTranslatable: true},
			{Identifier: "body", FieldType: "ezrichtext", Position: 2, IsTranslatable: true},
		},
	}
}

func TestCreateType(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.NotEmpty(t, created.RemoteID)
	assert.Equal(t, vc.TypeStatusDraft, created.Status)
	for _, def := range created.FieldDefinitions {
		assert.NotZero(t, def.ID)
	}

	_, err = engine.CreateType(ctx, &vc.ContentType{})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)
}

func TestLoadTypeByIdentifier(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)

	loaded, err := engine.LoadTypeByIdentifier(ctx, "article", vc.TypeStatusDraft)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)

	_, err = engine.LoadTypeByIdentifier(ctx, "article", vc.TypeStatusDefined)
	assert.ErrorIs(t, err, vc.ErrTypeNotFound)
}

func TestPublishPromotesDraft(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)

	require.NoError(t, engine.Publish(ctx, created.ID))

	defined, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, vc.TypeStatusDefined, defined.Status)
	assert.Len(t, defined.FieldDefinitions, 2)

	// The draft revision is consumed by the promotion.
	_, err = engine.LoadType(ctx, created.ID, vc.TypeStatusDraft)
	assert.ErrorIs(t, err, vc.ErrTypeNotFound)

	// Publishing again with no pending revision fails.
	err = engine.Publish(ctx, created.ID)
	assert.ErrorIs(t, err, vc.ErrTypeNotFound)
}

func TestDefinedTypesAreImmutable(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	defined, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)

	err = engine.UpdateType(ctx, defined)
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)

	err = engine.AddFieldDefinition(ctx, created.ID, vc.TypeStatusDefined,
		&vc.FieldDefinition{Identifier: "teaser", FieldType: "ezstring"})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)

	err = engine.RemoveFieldDefinition(ctx, created.ID, vc.TypeStatusDefined, defined.FieldDefinitions[0].ID)
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)
}

func TestCreateDraftOfType(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	draft, err := engine.CreateDraftOfType(ctx, created.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, created.ID, draft.ID)
	assert.Equal(t, vc.TypeStatusModified, draft.Status)
	assert.Equal(t, int64(42), draft.ModifierID)

	// Drafting keeps the defined revision's field definition ids.
	defined, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, draft.FieldDefinitions, len(defined.FieldDefinitions))
	for i := range draft.FieldDefinitions {
		assert.Equal(t, defined.FieldDefinitions[i].ID, draft.FieldDefinitions[i].ID)
	}
}

func TestCopyTypeAssignsFreshDefinitionIDs(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	defined, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)

	dup, err := engine.CopyType(ctx, created.ID, 42)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, dup.ID)
	assert.Equal(t, vc.TypeStatusDraft, dup.Status)
	assert.NotEqual(t, defined.RemoteID, dup.RemoteID)
	assert.Contains(t, dup.Identifier, "copy_of_article")

	existing := make(map[int64]bool)
	for _, def := range defined.FieldDefinitions {
		existing[def.ID] = true
	}
	for _, def := range dup.FieldDefinitions {
		assert.False(t, existing[def.ID], "copied definition reused id %d", def.ID)
	}
}

func TestPublishAppliesDeltaToContent(t *testing.T) {
	engine, svc, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	defined, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	titleID := defined.FieldDefinitions[0].ID
	bodyID := defined.FieldDefinitions[1].ID

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              created.ID,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: titleID, Type: "ezstring", LanguageCode: "eng-GB", Value: vc.FieldValue{DataText: "A title"}},
			{FieldDefinitionID: bodyID, Type: "ezrichtext", LanguageCode: "eng-GB", Value: vc.FieldValue{DataText: "A body"}},
		},
	})
	require.NoError(t, err)

	// Rework the type: drop body, add teaser with a default value.
	draft, err := engine.CreateDraftOfType(ctx, created.ID, 14)
	require.NoError(t, err)
	require.NoError(t, engine.RemoveFieldDefinition(ctx, created.ID, draft.Status, bodyID))
	teaser := &vc.FieldDefinition{
		Identifier:     "teaser",
		FieldType:      "ezstring",
		Position:       2,
		IsTranslatable: true,
		DefaultValue:   vc.FieldValue{DataText: "fresh teaser"},
	}
	require.NoError(t, engine.AddFieldDefinition(ctx, created.ID, draft.Status, teaser))

	require.NoError(t, engine.Publish(ctx, created.ID))

	loaded, err := svc.LoadContent(ctx, content.Info.ID, 1)
	require.NoError(t, err)

	byDef := make(map[int64]vc.Field)
	for _, f := range loaded.Fields {
		byDef[f.FieldDefinitionID] = f
	}
	assert.Contains(t, byDef, titleID)
	assert.NotContains(t, byDef, bodyID)
	require.Contains(t, byDef, teaser.ID)
	assert.Equal(t, "fresh teaser", byDef[teaser.ID].Value.DataText)
}

func TestPublishPrefersModifiedOverDraft(t *testing.T) {
	engine, _, _ := newSchemaStack(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	// A Modified revision with an extra field.
	_, err = engine.CreateDraftOfType(ctx, created.ID, 14)
	require.NoError(t, err)
	require.NoError(t, engine.AddFieldDefinition(ctx, created.ID, vc.TypeStatusModified,
		&vc.FieldDefinition{Identifier: "teaser", FieldType: "ezstring"}))

	require.NoError(t, engine.Publish(ctx, created.ID))

	defined, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, defined.FieldDefinitions, 3)
}
