package versionedcontent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	memstorage "github.com/structcms/versioned-content/pkg/versionedcontent/storage/memory"
)

// countingBackend wraps the in-memory backend and counts write
// operations, so dispatch multiplicity can be asserted.
type countingBackend struct {
	*memstorage.Backend
	stores int
	copies int
}

func (b *countingBackend) StoreFieldData(ctx context.Context, ref vc.FieldRef, data []byte) error {
	b.stores++
	return b.Backend.StoreFieldData(ctx, ref, data)
}

func (b *countingBackend) CopyFieldData(ctx context.Context, src, dst vc.FieldRef) error {
	b.copies++
	return b.Backend.CopyFieldData(ctx, src, dst)
}

func newExternalService(t *testing.T) (vc.Service, *countingBackend) {
	t.Helper()
	backend := &countingBackend{Backend: memstorage.New()}
	svc, _ := newTestService(t,
		vc.WithFieldStorage("ezimage", backend),
		vc.WithFieldTypeAlias("ezimagealias", "ezimage"),
	)
	return svc, backend
}

func TestExternalFieldRoundTrip(t *testing.T) {
	svc, backend := newExternalService(t)
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 200, Type: "ezimage", LanguageCode: "eng-GB",
				Value: vc.FieldValue{DataText: "logo.png", ExternalData: []byte("binary image data")}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.stores)
	assert.Equal(t, 1, backend.Len())

	loaded, err := svc.LoadContent(ctx, content.Info.ID, 1)
	require.NoError(t, err)
	require.Len(t, loaded.Fields, 1)
	assert.Equal(t, []byte("binary image data"), loaded.Fields[0].Value.ExternalData)
}

func TestExternalFieldAlias(t *testing.T) {
	svc, backend := newExternalService(t)
	ctx := context.Background()

	// The legacy identifier routes to the canonical backend.
	_, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 200, Type: "ezimagealias", LanguageCode: "eng-GB",
				Value: vc.FieldValue{ExternalData: []byte("aliased")}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.stores)
}

func TestExternalFieldFollowsDraft(t *testing.T) {
	svc, backend := newExternalService(t)
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 200, Type: "ezimage", LanguageCode: "eng-GB",
				Value: vc.FieldValue{ExternalData: []byte("v1 payload")}},
		},
	})
	require.NoError(t, err)

	draft, err := svc.CreateDraftFromVersion(ctx, content.Info.ID, 1, 14)
	require.NoError(t, err)

	// The payload is duplicated, not re-stored.
	assert.Equal(t, 1, backend.stores)
	assert.Equal(t, 1, backend.copies)
	assert.Equal(t, 2, backend.Len())
	require.Len(t, draft.Fields, 1)
	assert.Equal(t, []byte("v1 payload"), draft.Fields[0].Value.ExternalData)
}

func TestExternalFieldDeletedWithVersion(t *testing.T) {
	svc, backend := newExternalService(t)
	ctx := context.Background()

	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "eng-GB",
		Fields: []vc.FieldInput{
			{FieldDefinitionID: 200, Type: "ezimage", LanguageCode: "eng-GB",
				Value: vc.FieldValue{ExternalData: []byte("payload")}},
		},
	})
	require.NoError(t, err)

	_, err = svc.CreateDraftFromVersion(ctx, content.Info.ID, 1, 14)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Len())

	require.NoError(t, svc.DeleteVersion(ctx, content.Info.ID, 2))
	assert.Equal(t, 1, backend.Len())

	require.NoError(t, svc.PurgeContent(ctx, content.Info.ID))
	assert.Equal(t, 0, backend.Len())
}
