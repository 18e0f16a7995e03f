package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/store"
)

// scanPageSize is the page size used when walking posts and profiles.
const scanPageSize = 500

// maxScanned bounds how many rows one Collect call reads per listing.
const maxScanned = 10000

// MetricsSnapshot holds a point-in-time view of publishing and research
// activity.
type MetricsSnapshot struct {
	// Publish metrics (posts updated within the lookback window).
	PostsPublished  int     `json:"posts_published"`
	PostsFailed     int     `json:"posts_failed"`
	PublishFailRate float64 `json:"publish_fail_rate"`

	// Scheduled posts whose time has passed but were never claimed, plus
	// publishing posts whose claim lease has expired.
	OverduePosts int `json:"overdue_posts"`

	// Research metrics (profiles updated within the lookback window).
	ProfilesResearched int     `json:"profiles_researched"`
	ResearchCostUSD    float64 `json:"research_cost_usd"`
	ResearchTokens     int     `json:"research_tokens"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Source is the subset of store.Store the collector reads from.
type Source interface {
	ListProfiles(ctx context.Context, limit, offset int) ([]model.ProfileRecord, error)
	ListPosts(ctx context.Context, filter store.PostFilter) ([]model.Post, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	src Source
	now func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	var err error
	if snap.PostsPublished, err = c.countPosts(ctx, model.PostStatusPublished, func(p model.Post) bool {
		return !p.UpdatedAt.Before(cutoff)
	}); err != nil {
		return nil, err
	}
	if snap.PostsFailed, err = c.countPosts(ctx, model.PostStatusFailed, func(p model.Post) bool {
		return !p.UpdatedAt.Before(cutoff)
	}); err != nil {
		return nil, err
	}
	if finished := snap.PostsPublished + snap.PostsFailed; finished > 0 {
		snap.PublishFailRate = float64(snap.PostsFailed) / float64(finished)
	}

	if snap.OverduePosts, err = c.countPosts(ctx, model.PostStatusScheduled, func(p model.Post) bool {
		return p.ScheduledAt != nil && p.ScheduledAt.Before(now)
	}); err != nil {
		return nil, err
	}
	stranded, err := c.countPosts(ctx, model.PostStatusPublishing, func(p model.Post) bool {
		return !p.UpdatedAt.After(now.Add(-store.PublishLease))
	})
	if err != nil {
		return nil, err
	}
	snap.OverduePosts += stranded

	for offset := 0; offset < maxScanned; offset += scanPageSize {
		recs, err := c.src.ListProfiles(ctx, scanPageSize, offset)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list profiles")
		}
		for _, r := range recs {
			if r.UpdatedAt.Before(cutoff) {
				continue
			}
			snap.ProfilesResearched++
			snap.ResearchCostUSD += r.Cost
			snap.ResearchTokens += r.Usage.InputTokens + r.Usage.OutputTokens
		}
		if len(recs) < scanPageSize {
			break
		}
	}

	return snap, nil
}

func (c *Collector) countPosts(ctx context.Context, status model.PostStatus, match func(model.Post) bool) (int, error) {
	n := 0
	for offset := 0; offset < maxScanned; offset += scanPageSize {
		posts, err := c.src.ListPosts(ctx, store.PostFilter{Status: status, Limit: scanPageSize, Offset: offset})
		if err != nil {
			return 0, eris.Wrapf(err, "monitoring: list %s posts", status)
		}
		for _, p := range posts {
			if match(p) {
				n++
			}
		}
		if len(posts) < scanPageSize {
			break
		}
	}
	return n, nil
}
