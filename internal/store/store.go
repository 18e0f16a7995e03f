// Package store persists brand profiles and generated posts.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-research/internal/model"
)

var (
	// ErrNotFound is returned when a profile or post id does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrNotSchedulable is returned when scheduling a post that is already
	// publishing or published.
	ErrNotSchedulable = eris.New("store: post cannot be scheduled")
)

// PostFilter specifies criteria for listing posts.
type PostFilter struct {
	ProfileID string           `json:"profile_id,omitempty"`
	Status    model.PostStatus `json:"status,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Offset    int              `json:"offset,omitempty"`
}

// PostUpdate is the outcome of one publish attempt.
type PostUpdate struct {
	Status      model.PostStatus
	ExternalID  string
	Error       string
	PublishedAt *time.Time
}

// Store defines persistence for profiles and posts.
type Store interface {
	// Profiles
	SaveProfile(ctx context.Context, rec *model.ProfileRecord) error
	GetProfile(ctx context.Context, id string) (*model.ProfileRecord, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]model.ProfileRecord, error)

	// Posts
	CreatePosts(ctx context.Context, posts []model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	SchedulePost(ctx context.Context, id string, at time.Time) (*model.Post, error)
	ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]model.Post, error)
	UpdatePostStatus(ctx context.Context, id string, update PostUpdate) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// PublishLease is how long a claimed post may stay in publishing before
// ClaimDuePosts hands it out again. It covers a worker that died between
// claiming a post and recording the outcome.
const PublishLease = 10 * time.Minute

func listLimit(n int) int {
	if n <= 0 || n > 1000 {
		return defaultListLimit
	}
	return n
}

// schedulable lists the states a post may be (re)scheduled from.
var schedulable = []model.PostStatus{model.PostStatusDraft, model.PostStatusScheduled, model.PostStatusFailed}

// prepareNewPosts assigns ids, draft status and timestamps in place.
func prepareNewPosts(posts []model.Post, now time.Time, newID func() string) {
	for i := range posts {
		if posts[i].ID == "" {
			posts[i].ID = newID()
		}
		if posts[i].Status == "" {
			posts[i].Status = model.PostStatusDraft
		}
		posts[i].CreatedAt = now
		posts[i].UpdatedAt = now
	}
}
