package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	memrepo "github.com/structcms/versioned-content/pkg/versionedcontent/repo/memory"
)

func newPruneFixture(t *testing.T) (vc.Service, *memrepo.Repository, int64) {
	t.Helper()

	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(vc.Language{ID: 2, Code: "eng-GB"})
	require.NoError(t, err)
	svc, err := vc.New(vc.WithGateway(repo), vc.WithLanguages(reg))
	require.NoError(t, err)

	ctx := context.Background()
	content, err := svc.CreateContent(ctx, vc.CreateContentRequest{
		TypeID:              1,
		OwnerID:             14,
		InitialLanguageCode: "eng-GB",
		Names:               map[string]string{"eng-GB": "First"},
	})
	require.NoError(t, err)

	// Publishing twice archives version 1.
	_, err = svc.PublishVersion(ctx, content.Info.ID, 1)
	require.NoError(t, err)
	draft, err := svc.CreateDraftFromVersion(ctx, content.Info.ID, 1, 14)
	require.NoError(t, err)
	_, err = svc.PublishVersion(ctx, content.Info.ID, draft.Version.VersionNo)
	require.NoError(t, err)

	return svc, repo, content.Info.ID
}

func TestPruneRemovesAgedArchivedVersions(t *testing.T) {
	svc, repo, contentID := newPruneFixture(t)

	// A negative retention places the cutoff in the future, so the
	// just-archived version falls inside the prune window.
	s := New(svc, repo, "@hourly", -time.Hour, 0, nil)
	require.NoError(t, s.pruneArchivedVersions())

	ctx := context.Background()
	_, err := svc.LoadContent(ctx, contentID, 1)
	assert.ErrorIs(t, err, vc.ErrVersionNotFound)

	// The published version survives.
	content, err := svc.LoadContent(ctx, contentID, 0)
	require.NoError(t, err)
	assert.Equal(t, vc.VersionStatusPublished, content.Version.Status)
}

func TestPruneRespectsRetentionWindow(t *testing.T) {
	svc, repo, contentID := newPruneFixture(t)

	s := New(svc, repo, "@hourly", 24*time.Hour, 0, nil)
	require.NoError(t, s.pruneArchivedVersions())

	content, err := svc.LoadContent(context.Background(), contentID, 1)
	require.NoError(t, err)
	assert.Equal(t, vc.VersionStatusArchived, content.Version.Status)
}

func TestPruneKeepsMinimumPerContent(t *testing.T) {
	svc, repo, contentID := newPruneFixture(t)

	// One archived version exists and keepMin is one, so nothing may go.
	s := New(svc, repo, "@hourly", -time.Hour, 1, nil)
	require.NoError(t, s.pruneArchivedVersions())

	content, err := svc.LoadContent(context.Background(), contentID, 1)
	require.NoError(t, err)
	assert.Equal(t, vc.VersionStatusArchived, content.Version.Status)
}

func TestPruneKeepMinDeletesOldestFirst(t *testing.T) {
	svc, repo, contentID := newPruneFixture(t)
	ctx := context.Background()

	// Archive a second version so one candidate exceeds the minimum.
	draft, err := svc.CreateDraftFromVersion(ctx, contentID, 0, 14)
	require.NoError(t, err)
	_, err = svc.PublishVersion(ctx, contentID, draft.Version.VersionNo)
	require.NoError(t, err)

	s := New(svc, repo, "@hourly", -time.Hour, 1, nil)
	require.NoError(t, s.pruneArchivedVersions())

	// Version 1 archived first, so it is the one pruned.
	_, err = svc.LoadContent(ctx, contentID, 1)
	assert.ErrorIs(t, err, vc.ErrVersionNotFound)
	content, err := svc.LoadContent(ctx, contentID, 2)
	require.NoError(t, err)
	assert.Equal(t, vc.VersionStatusArchived, content.Version.Status)
}

func TestPruneWithNothingArchived(t *testing.T) {
	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(vc.Language{ID: 2, Code: "eng-GB"})
	require.NoError(t, err)
	svc, err := vc.New(vc.WithGateway(repo), vc.WithLanguages(reg))
	require.NoError(t, err)

	s := New(svc, repo, "@hourly", time.Hour, 0, nil)
	assert.NoError(t, s.pruneArchivedVersions())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc, repo, _ := newPruneFixture(t)

	s := New(svc, repo, "not a schedule", time.Hour, 0, nil)
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	svc, repo, _ := newPruneFixture(t)

	s := New(svc, repo, "@hourly", time.Hour, 0, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
