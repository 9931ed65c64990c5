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

// spyCache is a map-backed schema.Cache that records invalidations.
type spyCache struct {
	data    map[string]any
	deletes []string
	clears  int
}

func newSpyCache() *spyCache {
	return &spyCache{data: map[string]any{}}
}

func (c *spyCache) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *spyCache) Set(key string, value any) {
	c.data[key] = value
}

func (c *spyCache) Delete(key string) {
	c.deletes = append(c.deletes, key)
	delete(c.data, key)
}

func (c *spyCache) Clear() {
	c.clears++
	c.data = map[string]any{}
}

func newCachedEngine(t *testing.T) (schema.Service, *spyCache) {
	t.Helper()
	repo := memrepo.New()
	cache := newSpyCache()
	return schema.NewCached(schema.NewService(repo, nil), cache), cache
}

func TestCachedLoadsDefinedTypesOnce(t *testing.T) {
	engine, cache := newCachedEngine(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	first, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, cache.data, 1)

	// The second load is served from the cache.
	second, err := engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCachedSkipsDraftRevisions(t *testing.T) {
	engine, cache := newCachedEngine(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)

	_, err = engine.LoadType(ctx, created.ID, vc.TypeStatusDraft)
	require.NoError(t, err)
	assert.Empty(t, cache.data)

	_, err = engine.LoadTypeByIdentifier(ctx, "article", vc.TypeStatusDraft)
	require.NoError(t, err)
	assert.Empty(t, cache.data)
}

func TestCachedDraftMutationInvalidatesNarrowly(t *testing.T) {
	engine, cache := newCachedEngine(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)

	err = engine.AddFieldDefinition(ctx, created.ID, vc.TypeStatusDraft,
		&vc.FieldDefinition{Identifier: "teaser", FieldType: "ezstring"})
	require.NoError(t, err)

	assert.Zero(t, cache.clears)
	assert.NotEmpty(t, cache.deletes)
}

func TestCachedPublishClearsEverything(t *testing.T) {
	engine, cache := newCachedEngine(t)
	ctx := context.Background()

	a, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, a.ID))

	b, err := engine.CreateType(ctx, &vc.ContentType{Identifier: "folder"})
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, b.ID))

	_, err = engine.LoadTypeByID(ctx, a.ID)
	require.NoError(t, err)
	_, err = engine.LoadTypeByID(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, cache.data, 2)

	// A new revision of one type flushes the whole Defined cache.
	_, err = engine.CreateDraftOfType(ctx, a.ID, 14)
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, a.ID))

	assert.Empty(t, cache.data)
	assert.GreaterOrEqual(t, cache.clears, 1)
}

func TestCachedIdentifierLookup(t *testing.T) {
	engine, cache := newCachedEngine(t)
	ctx := context.Background()

	created, err := engine.CreateType(ctx, articleType())
	require.NoError(t, err)
	require.NoError(t, engine.Publish(ctx, created.ID))

	first, err := engine.LoadTypeByIdentifier(ctx, "article", vc.TypeStatusDefined)
	require.NoError(t, err)
	second, err := engine.LoadTypeByIdentifier(ctx, "article", vc.TypeStatusDefined)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Id and identifier lookups cache under distinct keys.
	_, err = engine.LoadTypeByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, cache.data, 2)
}
