package versionedcontent_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	memrepo "github.com/structcms/versioned-content/pkg/versionedcontent/repo/memory"
)

func newTestService(t *testing.T, opts ...vc.Option) (vc.Service, *memrepo.Repository) {
	t.Helper()

	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(
		vc.Language{ID: 2, Code: "eng-GB"},
		vc.Language{ID: 4, Code: "ger-DE"},
	)
	require.NoError(t, err)

	all := append([]vc.Option{vc.WithGateway(repo), vc.WithLanguages(reg)}, opts...)
	svc, err := vc.New(all...)
	require.NoError(t, err)
	return svc, repo
}

func createTestContent(t *testing.T, svc vc.Service) *vc.Content {
	t.Helper()

	content, err := svc.CreateContent(context.Background(), vc.CreateContentRequest{
		TypeID:              1,
		OwnerID:             14,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "eng-GB", Value: vc.FieldValue{DataText: "Hello"}},
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "ger-DE", Value: vc.FieldValue{DataText: "Hallo"}},
		},
		Names: map[string]string{"eng-GB": "Hello", "ger-DE": "Hallo"},
	})
	require.NoError(t, err)
	return content
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := vc.New()
	assert.Error(t, err)
}

func TestCreateContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)

	assert.NotZero(t, content.Info.ID)
	assert.NotEmpty(t, content.Info.RemoteID)
	assert.Equal(t, vc.ContentStatusDraft, content.Info.Status)
	assert.Equal(t, 1, content.Info.CurrentVersionNo)
	assert.Equal(t, vc.VersionStatusDraft, content.Version.Status)
	assert.Equal(t, "eng-GB", content.Version.InitialLanguageCode)
	assert.Equal(t, vc.LanguageMask(2|4), content.Version.LanguageMask)
	assert.Len(t, content.Fields, 2)
	for _, f := range content.Fields {
		assert.NotZero(t, f.ID)
	}

	loaded, err := svc.LoadContent(ctx, content.Info.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, content.Info.ID, loaded.Info.ID)
	assert.Equal(t, "Hello", loaded.Version.Names["eng-GB"])
}

func TestCreateContentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateContent(ctx, vc.CreateContentRequest{InitialLanguageCode: "eng-GB"})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)

	_, err = svc.CreateContent(ctx, vc.CreateContentRequest{TypeID: 1})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)

	_, err = svc.CreateContent(ctx, vc.CreateContentRequest{TypeID: 1, InitialLanguageCode: "nor-NO"})
	assert.ErrorIs(t, err, vc.ErrLanguageNotFound)
}

func TestLoadContentByRemoteID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)

	info, err := svc.LoadContentInfoByRemoteID(ctx, content.Info.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, content.Info.ID, info.ID)

	_, err = svc.LoadContentInfoByRemoteID(ctx, "no-such-remote-id")
	assert.ErrorIs(t, err, vc.ErrContentNotFound)
}

func TestLoadContentInfoListDropsMissing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := createTestContent(t, svc)
	b := createTestContent(t, svc)

	infos, err := svc.LoadContentInfoList(ctx, []int64{a.Info.ID, 9999, b.Info.ID})
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestPublishVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)

	published, err := svc.PublishVersion(ctx, content.Info.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, vc.VersionStatusPublished, published.Version.Status)
	assert.Equal(t, 1, published.Info.CurrentVersionNo)
	assert.False(t, published.Info.Published.IsZero())
	assert.Equal(t, "Hello", published.Info.Name)

	// A second publish of the same version requires a draft.
	_, err = svc.PublishVersion(ctx, content.Info.ID, 1)
	assert.ErrorIs(t, err, vc.ErrVersionNotDraft)
}

func TestPublishArchivesPriorVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID

	_, err := svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)

	draft, err := svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)
	assert.Equal(t, 2, draft.Version.VersionNo)

	published, err := svc.PublishVersion(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, published.Info.CurrentVersionNo)

	v1, err := svc.ListVersions(ctx, id, vc.VersionFilter{})
	require.NoError(t, err)
	require.Len(t, v1, 2)
	assert.Equal(t, vc.VersionStatusArchived, v1[0].Status)
	assert.Equal(t, vc.VersionStatusPublished, v1[1].Status)
}

// stalePublishedGateway simulates a publisher whose snapshot of the
// published version is stale: the pre-transaction read reports no
// published version while another one already exists underneath.
type stalePublishedGateway struct {
	vc.Gateway
}

func (g *stalePublishedGateway) LoadPublishedVersionInfo(ctx context.Context, contentID int64) (*vc.VersionInfo, error) {
	return nil, vc.ErrVersionNotFound
}

func TestPublishConflictOnStaleSnapshot(t *testing.T) {
	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(vc.Language{ID: 2, Code: "eng-GB"})
	require.NoError(t, err)
	svc, err := vc.New(vc.WithGateway(&stalePublishedGateway{Gateway: repo}), vc.WithLanguages(reg))
	require.NoError(t, err)
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "eng-GB",
	})
	require.NoError(t, err)
	id := content.Info.ID

	draft, err := svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)

	// Version 1 becomes published behind the service's back.
	require.NoError(t, repo.MarkPublished(ctx, id, 1, content.Info.Created))

	_, err = svc.PublishVersion(ctx, id, draft.Version.VersionNo)
	assert.ErrorIs(t, err, vc.ErrPublishConflict)
	assert.True(t, vc.IsBadState(err))
}

func TestConcurrentPublishLeavesOnePublished(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID
	draft, err := svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, versionNo := range []int{1, draft.Version.VersionNo} {
		wg.Add(1)
		go func(i, versionNo int) {
			defer wg.Done()
			_, errs[i] = svc.PublishVersion(ctx, id, versionNo)
		}(i, versionNo)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, vc.ErrPublishConflict)
		}
	}

	versions, err := svc.ListVersions(ctx, id, vc.VersionFilter{})
	require.NoError(t, err)
	var publishedCount int
	for _, v := range versions {
		if v.Status == vc.VersionStatusPublished {
			publishedCount++
		}
	}
	assert.Equal(t, 1, publishedCount)
}

func TestCreateDraftFromVersion(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID

	dest := createTestContent(t, svc)
	_, err := svc.AddRelation(ctx, vc.AddRelationRequest{
		SourceContentID:   id,
		SourceVersionNo:   1,
		DestContentID:     dest.Info.ID,
		Kind:              vc.RelationField,
		FieldDefinitionID: 100,
	})
	require.NoError(t, err)
	_, err = svc.AddRelation(ctx, vc.AddRelationRequest{
		SourceContentID: id,
		SourceVersionNo: 1,
		DestContentID:   dest.Info.ID,
		Kind:            vc.RelationCommon,
	})
	require.NoError(t, err)

	draft, err := svc.CreateDraftFromVersion(ctx, id, 1, 27)
	require.NoError(t, err)
	assert.Equal(t, 2, draft.Version.VersionNo)
	assert.Equal(t, vc.VersionStatusDraft, draft.Version.Status)
	assert.Equal(t, int64(27), draft.Version.CreatorID)
	assert.Equal(t, content.Version.LanguageMask, draft.Version.LanguageMask)
	assert.Equal(t, content.Version.Names, draft.Version.Names)

	// Field ids are preserved across the draft.
	srcIDs := make(map[int64]bool)
	for _, f := range content.Fields {
		srcIDs[f.ID] = true
	}
	require.Len(t, draft.Fields, len(content.Fields))
	for _, f := range draft.Fields {
		assert.True(t, srcIDs[f.ID], "field id %d not carried over", f.ID)
		assert.Equal(t, 2, f.VersionNo)
	}

	// Field relations follow the draft; common relations stay behind.
	rels, err := repo.LoadRelations(ctx, id, 2, 0)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, rels[0].Type.Has(vc.RelationField))
}

func TestUpdateContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID

	updated, err := svc.UpdateContent(ctx, id, 1, vc.UpdateContentRequest{
		ModifierID: 14,
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "eng-GB", Value: vc.FieldValue{DataText: "Changed"}},
		},
		Names: map[string]string{"eng-GB": "Changed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Changed", updated.Version.Names["eng-GB"])

	var found bool
	for _, f := range updated.Fields {
		if f.LanguageCode == "eng-GB" && f.FieldDefinitionID == 100 {
			found = true
			assert.Equal(t, "Changed", f.Value.DataText)
		}
	}
	assert.True(t, found)

	_, err = svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)

	_, err = svc.UpdateContent(ctx, id, 1, vc.UpdateContentRequest{ModifierID: 14})
	assert.ErrorIs(t, err, vc.ErrVersionNotDraft)
}

func TestUpdateMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID

	section := int64(3)
	hidden := true
	info, err := svc.UpdateMetadata(ctx, id, vc.UpdateMetadataRequest{
		SectionID: &section,
		IsHidden:  &hidden,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.SectionID)
	assert.True(t, info.IsHidden)

	main := "ger-DE"
	info, err = svc.UpdateMetadata(ctx, id, vc.UpdateMetadataRequest{MainLanguageCode: &main})
	require.NoError(t, err)
	assert.Equal(t, "ger-DE", info.MainLanguageCode)

	// Switching the main language to one the content does not carry is
	// rejected.
	missing := "eng-GB"
	stripped, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "ger-DE",
	})
	require.NoError(t, err)
	_, err = svc.UpdateMetadata(ctx, stripped.Info.ID, vc.UpdateMetadataRequest{MainLanguageCode: &missing})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)
}

func TestCopyContentAllVersions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID
	_, err := svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)
	_, err = svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)

	dup, err := svc.CopyContent(ctx, id, vc.CopyContentRequest{OwnerID: 99})
	require.NoError(t, err)
	assert.NotEqual(t, id, dup.Info.ID)
	assert.NotEqual(t, content.Info.RemoteID, dup.Info.RemoteID)
	assert.Equal(t, int64(99), dup.Info.OwnerID)
	assert.Equal(t, vc.ContentStatusDraft, dup.Info.Status)
	assert.True(t, dup.Info.Published.IsZero())

	versions, err := svc.ListVersions(ctx, dup.Info.ID, vc.VersionFilter{})
	require.NoError(t, err)
	require.Len(t, versions, 2)
	// A copy has no published version.
	for _, v := range versions {
		assert.NotEqual(t, vc.VersionStatusPublished, v.Status)
	}
}

func TestCopyContentSingleVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID
	_, err := svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)
	_, err = svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)

	versionNo := 2
	dup, err := svc.CopyContent(ctx, id, vc.CopyContentRequest{VersionNo: &versionNo})
	require.NoError(t, err)

	versions, err := svc.ListVersions(ctx, dup.Info.ID, vc.VersionFilter{})
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNo)
	assert.Equal(t, vc.VersionStatusDraft, versions[0].Status)
	assert.Len(t, dup.Fields, len(content.Fields))
}

func TestDeleteVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID
	_, err := svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)
	_, err = svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)

	err = svc.DeleteVersion(ctx, id, 1)
	assert.ErrorIs(t, err, vc.ErrVersionPublished)

	require.NoError(t, svc.DeleteVersion(ctx, id, 2))
	_, err = svc.LoadContent(ctx, id, 2)
	assert.ErrorIs(t, err, vc.ErrVersionNotFound)
}

func TestDeleteContentWithoutLocations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID

	require.NoError(t, svc.DeleteContent(ctx, id))
	_, err := svc.LoadContentInfo(ctx, id)
	assert.ErrorIs(t, err, vc.ErrContentNotFound)
}

func TestDeleteTranslationFromContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID

	// The main translation is protected.
	err := svc.DeleteTranslationFromContent(ctx, id, "eng-GB")
	assert.ErrorIs(t, err, vc.ErrMainTranslation)

	require.NoError(t, svc.DeleteTranslationFromContent(ctx, id, "ger-DE"))

	loaded, err := svc.LoadContent(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, vc.LanguageMask(2), loaded.Version.LanguageMask)
	for _, f := range loaded.Fields {
		assert.NotEqual(t, "ger-DE", f.LanguageCode)
	}
	assert.NotContains(t, loaded.Version.Names, "ger-DE")

	// Removing an absent translation is a no-op.
	require.NoError(t, svc.DeleteTranslationFromContent(ctx, id, "ger-DE"))
}

func TestDeleteTranslationFromDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	id := content.Info.ID
	_, err := svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)
	draft, err := svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)
	no := draft.Version.VersionNo

	// Published versions are immutable.
	err = svc.DeleteTranslationFromDraft(ctx, id, 1, "ger-DE")
	assert.ErrorIs(t, err, vc.ErrVersionNotDraft)

	err = svc.DeleteTranslationFromDraft(ctx, id, no, "eng-GB")
	assert.ErrorIs(t, err, vc.ErrMainTranslation)

	require.NoError(t, svc.DeleteTranslationFromDraft(ctx, id, no, "ger-DE"))

	reloaded, err := svc.LoadContent(ctx, id, no)
	require.NoError(t, err)
	assert.Equal(t, vc.LanguageMask(2), reloaded.Version.LanguageMask)

	// The published version keeps its translation.
	published, err := svc.LoadContent(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, vc.LanguageMask(2|4), published.Version.LanguageMask)
}

func TestRelations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	src := createTestContent(t, svc)
	dst := createTestContent(t, svc)

	rel, err := svc.AddRelation(ctx, vc.AddRelationRequest{
		SourceContentID: src.Info.ID,
		SourceVersionNo: 1,
		DestContentID:   dst.Info.ID,
		Kind:            vc.RelationCommon | vc.RelationLink,
	})
	require.NoError(t, err)
	assert.NotZero(t, rel.ID)

	_, err = svc.AddRelation(ctx, vc.AddRelationRequest{
		SourceContentID: src.Info.ID,
		SourceVersionNo: 1,
		DestContentID:   9999,
		Kind:            vc.RelationCommon,
	})
	assert.ErrorIs(t, err, vc.ErrContentNotFound)

	_, err = svc.AddRelation(ctx, vc.AddRelationRequest{
		SourceContentID: src.Info.ID,
		SourceVersionNo: 1,
		DestContentID:   dst.Info.ID,
	})
	assert.ErrorIs(t, err, vc.ErrInvalidArgument)

	reverse, err := svc.LoadReverseRelations(ctx, dst.Info.ID, vc.RelationLink)
	require.NoError(t, err)
	assert.Len(t, reverse, 1)

	// Removing one kind keeps the row alive with the rest of the mask.
	require.NoError(t, svc.RemoveRelation(ctx, rel.ID, vc.RelationLink))
	rels, err := svc.LoadRelations(ctx, src.Info.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, vc.RelationCommon, rels[0].Type)

	// Removing the last kind removes the row.
	require.NoError(t, svc.RemoveRelation(ctx, rel.ID, vc.RelationCommon))
	rels, err = svc.LoadRelations(ctx, src.Info.ID, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestListVersionsForUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	content := createTestContent(t, svc)
	_, err := svc.PublishVersion(ctx, content.Info.ID, 1)
	require.NoError(t, err)
	_, err = svc.CreateDraftFromVersion(ctx, content.Info.ID, 1, 42)
	require.NoError(t, err)

	drafts, err := svc.ListVersionsForUser(ctx, 42, vc.VersionStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, 2, drafts[0].VersionNo)
}

type staticTypeSource struct {
	t *vc.ContentType
}

func (s *staticTypeSource) LoadTypeByID(ctx context.Context, id int64) (*vc.ContentType, error) {
	if s.t == nil || s.t.ID != id {
		return nil, vc.ErrTypeNotFound
	}
	return s.t, nil
}

func TestLifecycleHooks(t *testing.T) {
	var created, published, deleted int
	var errOps []string

	hooks := &vc.Hooks{
		AfterContentCreate: []vc.AfterContentCreateHook{
			func(ctx context.Context, content *vc.Content) error {
				created++
				return nil
			},
		},
		AfterPublish: []vc.AfterPublishHook{
			func(ctx context.Context, info *vc.ContentInfo, versionNo int) error {
				published++
				return nil
			},
		},
		AfterContentDelete: []vc.AfterContentDeleteHook{
			func(ctx context.Context, contentID int64) error {
				deleted++
				return nil
			},
		},
		OnError: []vc.ErrorHook{
			func(ctx context.Context, operation string, err error) {
				errOps = append(errOps, operation)
			},
		},
	}

	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(vc.Language{ID: 2, Code: "eng-GB"})
	require.NoError(t, err)
	svc, err := vc.New(
		vc.WithGateway(&stalePublishedGateway{Gateway: repo}),
		vc.WithLanguages(reg),
		vc.WithHooks(hooks),
	)
	require.NoError(t, err)
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		OwnerID:             14,
		InitialLanguageCode: "eng-GB",
		Names:               map[string]string{"eng-GB": "Hook fodder"},
	})
	require.NoError(t, err)
	id := content.Info.ID
	assert.Equal(t, 1, created)

	_, err = svc.PublishVersion(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	// A publish losing the conditional write reaches the error hook,
	// not the publish hook.
	draft, err := svc.CreateDraftFromVersion(ctx, id, 1, 14)
	require.NoError(t, err)
	_, err = svc.PublishVersion(ctx, id, draft.Version.VersionNo)
	require.ErrorIs(t, err, vc.ErrPublishConflict)
	assert.Contains(t, errOps, "publish")
	assert.Equal(t, 1, published)

	require.NoError(t, svc.DeleteContent(ctx, id))
	assert.Equal(t, 1, deleted)
}

func TestMissingFieldResolution(t *testing.T) {
	contentType := &vc.ContentType{
		ID:         7,
		Identifier: "article",
		Status:     vc.TypeStatusDefined,
		FieldDefinitions: []vc.FieldDefinition{
			{ID: 100, Identifier: "title", FieldType: "ezstring", IsTranslatable: true},
			{ID: 101, Identifier: "teaser", FieldType: "ezstring", IsTranslatable: true,
				DefaultValue: vc.FieldValue{DataText: "no teaser yet"}},
		},
	}

	svc, _ := newTestService(t, vc.WithTypeSource(&staticTypeSource{t: contentType}))
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              7,
		OwnerID:             14,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "eng-GB", Value: vc.FieldValue{DataText: "Hello"}},
		},
		Names: map[string]string{"eng-GB": "Hello"},
	})
	require.NoError(t, err)

	loaded, err := svc.LoadContent(ctx, content.Info.ID, 0)
	require.NoError(t, err)
	require.Len(t, loaded.Fields, 2)

	var teaser *vc.Field
	for i := range loaded.Fields {
		if loaded.Fields[i].FieldDefinitionID == 101 {
			teaser = &loaded.Fields[i]
		}
	}
	require.NotNil(t, teaser)
	assert.Equal(t, "no teaser yet", teaser.Value.DataText)
}

func TestMissingFieldResolverOverride(t *testing.T) {
	contentType := &vc.ContentType{
		ID:         7,
		Identifier: "article",
		Status:     vc.TypeStatusDefined,
		FieldDefinitions: []vc.FieldDefinition{
			{ID: 100, Identifier: "title", FieldType: "ezstring", IsTranslatable: true},
		},
	}

	resolver := vc.MissingFieldResolverFunc(func(ctx context.Context, def vc.FieldDefinition, languageCode string) (vc.FieldValue, error) {
		return vc.FieldValue{DataText: "resolved:" + def.Identifier + ":" + languageCode}, nil
	})

	svc, _ := newTestService(t,
		vc.WithTypeSource(&staticTypeSource{t: contentType}),
		vc.WithMissingFieldResolver(resolver),
	)
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              7,
		OwnerID:             14,
		InitialLanguageCode: "eng-GB",
		Names:               map[string]string{"eng-GB": "Empty"},
	})
	require.NoError(t, err)

	loaded, err := svc.LoadContent(ctx, content.Info.ID, 0)
	require.NoError(t, err)
	require.Len(t, loaded.Fields, 1)
	assert.Equal(t, "resolved:title:eng-GB", loaded.Fields[0].Value.DataText)
}
