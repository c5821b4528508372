package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRecordedForKnownUsers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultConfig(), nil)
	ctx := context.Background()
	user := domain.UserID(7)

	_, err := f.svc.Ingest(ctx, UploadRequest{
		Reader:   strings.NewReader(fcsBody("3.0", 100)),
		Filename: "tube.fcs",
		IsPublic: false,
		Owner:    domain.OwnedBy(user),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetVisibility(ctx, "Slug0001", true, user))

	listed, err := f.svc.ListVisible(ctx, domain.OwnedBy(user))
	require.NoError(t, err)
	require.Len(t, listed, 1)

	entries := f.activities.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, domain.ActivityFileUpload, entries[0].Type)
	assert.Equal(t, "Uploaded file: tube.fcs (private)", entries[0].Description)
	assert.Equal(t, domain.ActivityVisibilityChange, entries[1].Type)
	assert.Equal(t, "Changed file visibility to public: tube.fcs", entries[1].Description)
	assert.Equal(t, domain.ActivityFileAccess, entries[2].Type)
	assert.Equal(t, "Listed 1 visible files", entries[2].Description)
	for _, e := range entries {
		assert.Equal(t, user, e.UserID)
		assert.False(t, e.OccurredAt.IsZero())
	}
}

func TestActivityNotRecordedForAnonymousCallers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultConfig(), nil)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, UploadRequest{
		Reader:   strings.NewReader(fcsBody("3.1", 80)),
		Filename: "anon.fcs",
		IsPublic: true,
		Owner:    domain.Anonymous(),
	})
	require.NoError(t, err)

	_, err = f.svc.ListVisible(ctx, domain.Anonymous())
	require.NoError(t, err)

	assert.Empty(t, f.activities.Entries())
}

func TestActivityNotRecordedOnFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultConfig(), nil)
	seedFile(t, f, "Owned001", domain.OwnedBy(1), false, 10)

	err := f.svc.SetVisibility(context.Background(), "Owned001", true, 2)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Ingest(context.Background(), UploadRequest{
		Reader:   strings.NewReader("x"),
		Filename: "notes.txt",
		Owner:    domain.OwnedBy(2),
	})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Empty(t, f.activities.Entries())
}

func TestActivityWriteFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	f := newFixture(t, defaultConfig(), log)
	f.activities.AppendFn = func(ctx context.Context, a *domain.Activity) error {
		return errors.New("activity table unavailable")
	}

	desc, err := f.svc.Ingest(context.Background(), UploadRequest{
		Reader:   strings.NewReader(fcsBody("3.1", 64)),
		Filename: "kept.fcs",
		IsPublic: true,
		Owner:    domain.OwnedBy(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Slug0001", desc.Slug)
	assert.Equal(t, 1, f.files.Len())

	logger.AssertLogContains(t, buf, "failed to record activity")
	logger.AssertLogContains(t, buf, "activity table unavailable")
}

func TestActivities(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultConfig(), nil)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		a, err := domain.NewActivity(5, domain.ActivityFileAccess, "entry", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, f.activities.Append(ctx, a))
	}

	all, err := f.svc.Activities(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].OccurredAt.After(all[2].OccurredAt), "newest first")

	var gotLimit int
	f.activities.ListByUserFn = func(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error) {
		gotLimit = limit
		return nil, nil
	}
	_, err = f.svc.Activities(ctx, 5, MaxActivityLimit+1)
	require.NoError(t, err)
	assert.Equal(t, MaxActivityLimit, gotLimit)

	_, err = f.svc.Activities(ctx, 5, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultActivityLimit, gotLimit)
}

func TestActivitiesWithoutStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultConfig(), nil)
	svc, err := NewService(f.files, nil, f.blobs, f.refs, defaultConfig(), nil)
	require.NoError(t, err)

	entries, err := svc.Activities(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
