package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/model"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, *stepClock) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	clock := &stepClock{t: fixedNow}
	st.now = clock.now
	return st, clock
}

func saveTestProfile(t *testing.T, st *SQLiteStore, id string) *model.ProfileRecord {
	t.Helper()
	rec := &model.ProfileRecord{
		ID:          id,
		CompanyName: "Acme Analytics",
		Website:     "https://acme.example",
		Mode:        model.ExtractionModeRegex,
		Profile: model.ExtractedProfile{
			Industry:    "Fintech",
			Competitors: []string{"Stripe", "Plaid"},
			Sections:    map[string]string{"overview": "Acme builds analytics."},
		},
		Report:  "## Overview\nAcme builds analytics.",
		Sources: []string{"https://acme.example/about"},
		Usage:   model.TokenUsage{InputTokens: 120, OutputTokens: 80, Queries: 3},
		Cost:    0.042,
	}
	require.NoError(t, st.SaveProfile(context.Background(), rec))
	return rec
}

func TestSQLite_Profile_SaveAndGet(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	saved := saveTestProfile(t, st, "acme")
	assert.Equal(t, fixedNow, saved.CreatedAt)

	got, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Analytics", got.CompanyName)
	assert.Equal(t, model.ExtractionModeRegex, got.Mode)
	assert.Equal(t, "Fintech", got.Profile.Industry)
	assert.Equal(t, []string{"Stripe", "Plaid"}, got.Profile.Competitors)
	assert.Equal(t, "Acme builds analytics.", got.Profile.Sections["overview"])
	assert.Equal(t, []string{"https://acme.example/about"}, got.Sources)
	assert.Equal(t, 3, got.Usage.Queries)
	assert.InDelta(t, 0.042, got.Cost, 1e-9)
	assert.Equal(t, fixedNow, got.CreatedAt)
}

func TestSQLite_Profile_UpsertKeepsCreatedAt(t *testing.T) {
	st, clock := newTestSQLiteStore(t)
	saveTestProfile(t, st, "acme")

	clock.t = fixedNow.Add(time.Hour)
	rec := &model.ProfileRecord{ID: "acme", CompanyName: "Acme Inc", Mode: model.ExtractionModeAI}
	require.NoError(t, st.SaveProfile(context.Background(), rec))
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.Equal(t, clock.t, rec.UpdatedAt)

	got, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", got.CompanyName)
	assert.Equal(t, model.ExtractionModeAI, got.Mode)
	assert.Empty(t, got.Profile.Industry)
}

func TestSQLite_Profile_NotFound(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	_, err := st.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListProfiles(t *testing.T) {
	st, clock := newTestSQLiteStore(t)
	saveTestProfile(t, st, "first")
	clock.t = fixedNow.Add(time.Minute)
	saveTestProfile(t, st, "second")

	got, err := st.ListProfiles(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].ID)

	got, err = st.ListProfiles(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].ID)
}

func createTestPosts(t *testing.T, st *SQLiteStore, n int) []model.Post {
	t.Helper()
	posts := make([]model.Post, n)
	for i := range posts {
		posts[i] = model.Post{ProfileID: "acme", Platform: model.PlatformLinkedIn, Content: "draft"}
	}
	require.NoError(t, st.CreatePosts(context.Background(), posts))
	return posts
}

func TestSQLite_Posts_CreateAndList(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	saveTestProfile(t, st, "acme")
	saveTestProfile(t, st, "other")

	posts := createTestPosts(t, st, 2)
	require.NoError(t, st.CreatePosts(context.Background(), []model.Post{
		{ProfileID: "other", Platform: model.PlatformTwitter, Content: "short"},
	}))

	for _, p := range posts {
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, model.PostStatusDraft, p.Status)
	}

	got, err := st.GetPost(context.Background(), posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Content)
	assert.Nil(t, got.ScheduledAt)

	list, err := st.ListPosts(context.Background(), PostFilter{ProfileID: "acme"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = st.ListPosts(context.Background(), PostFilter{Status: model.PostStatusDraft})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = st.ListPosts(context.Background(), PostFilter{Status: model.PostStatusPublished})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLite_GetPost_NotFound(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	_, err := st.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SchedulePost(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	saveTestProfile(t, st, "acme")
	posts := createTestPosts(t, st, 1)
	at := fixedNow.Add(30 * time.Minute)

	p, err := st.SchedulePost(context.Background(), posts[0].ID, at)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusScheduled, p.Status)
	require.NotNil(t, p.ScheduledAt)
	assert.Equal(t, at, *p.ScheduledAt)

	require.NoError(t, st.UpdatePostStatus(context.Background(), posts[0].ID, PostUpdate{
		Status: model.PostStatusPublished, ExternalID: "ext-1", PublishedAt: &at,
	}))
	_, err = st.SchedulePost(context.Background(), posts[0].ID, at)
	assert.ErrorIs(t, err, ErrNotSchedulable)

	_, err = st.SchedulePost(context.Background(), "missing", at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ClaimDuePosts(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()
	saveTestProfile(t, st, "acme")
	posts := createTestPosts(t, st, 4)

	_, err := st.SchedulePost(ctx, posts[0].ID, fixedNow.Add(-time.Minute))
	require.NoError(t, err)
	_, err = st.SchedulePost(ctx, posts[1].ID, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	_, err = st.SchedulePost(ctx, posts[2].ID, fixedNow.Add(time.Hour))
	require.NoError(t, err)

	claimed, err := st.ClaimDuePosts(ctx, fixedNow, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, posts[1].ID, claimed[0].ID, "oldest due first")
	assert.Equal(t, posts[0].ID, claimed[1].ID)
	for _, p := range claimed {
		assert.Equal(t, model.PostStatusPublishing, p.Status)
		assert.Equal(t, 1, p.Attempts)
	}

	again, err := st.ClaimDuePosts(ctx, fixedNow, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed posts are not handed out twice")
}

func TestSQLite_ClaimDuePosts_ReclaimsExpiredLease(t *testing.T) {
	st, clock := newTestSQLiteStore(t)
	ctx := context.Background()
	saveTestProfile(t, st, "acme")
	posts := createTestPosts(t, st, 1)

	_, err := st.SchedulePost(ctx, posts[0].ID, fixedNow.Add(-time.Minute))
	require.NoError(t, err)
	claimed, err := st.ClaimDuePosts(ctx, fixedNow, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// The worker never records an outcome. Within the lease the post stays put.
	later := fixedNow.Add(PublishLease - time.Second)
	clock.t = later
	again, err := st.ClaimDuePosts(ctx, later, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	expired := fixedNow.Add(PublishLease)
	clock.t = expired
	again, err = st.ClaimDuePosts(ctx, expired, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, posts[0].ID, again[0].ID)
	assert.Equal(t, model.PostStatusPublishing, again[0].Status)
	assert.Equal(t, 2, again[0].Attempts)
	assert.Equal(t, expired, again[0].UpdatedAt)
}

func TestSQLite_ClaimDuePosts_RespectsLimit(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()
	saveTestProfile(t, st, "acme")
	posts := createTestPosts(t, st, 3)
	for i, p := range posts {
		_, err := st.SchedulePost(ctx, p.ID, fixedNow.Add(-time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
	}

	claimed, err := st.ClaimDuePosts(ctx, fixedNow, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestSQLite_UpdatePostStatus(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()
	saveTestProfile(t, st, "acme")
	posts := createTestPosts(t, st, 1)

	require.NoError(t, st.UpdatePostStatus(ctx, posts[0].ID, PostUpdate{
		Status: model.PostStatusFailed, Error: "webhook: unexpected status 500",
	}))
	got, err := st.GetPost(ctx, posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusFailed, got.Status)
	assert.Equal(t, "webhook: unexpected status 500", got.Error)
	assert.Nil(t, got.PublishedAt)

	// A failed post can be rescheduled and clears its error.
	p, err := st.SchedulePost(ctx, posts[0].ID, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, p.Error)

	err = st.UpdatePostStatus(ctx, "missing", PostUpdate{Status: model.PostStatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Ping(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLiteTime_RoundTripAndOrdering(t *testing.T) {
	a := time.Date(2026, 1, 1, 9, 0, 0, 5, time.UTC)
	b := a.Add(time.Second)
	assert.Less(t, formatTime(a), formatTime(b))

	got, err := parseTime(formatTime(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, formatTime(a), formatTime(a.In(est)))
}
