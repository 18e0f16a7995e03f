package publish

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/resilience"
	"github.com/sells-group/brand-research/internal/store"
)

// WorkerConfig tunes the publish loop.
type WorkerConfig struct {
	BatchSize   int
	Interval    time.Duration
	Concurrency int
	Retry       resilience.RetryConfig
}

// DefaultWorkerConfig returns the settings used when none are configured.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:   20,
		Interval:    time.Minute,
		Concurrency: 4,
		Retry:       resilience.DefaultRetryConfig(),
	}
}

// Result summarizes one pass over the queue.
type Result struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Worker claims due posts and hands them to a Publisher.
type Worker struct {
	store store.Store
	pub   Publisher
	cfg   WorkerConfig
	now   func() time.Time
}

// NewWorker creates a Worker. Zero config fields take their defaults.
func NewWorker(st store.Store, pub Publisher, cfg WorkerConfig) *Worker {
	def := DefaultWorkerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger(webhookService, "publish")
	}
	return &Worker{store: st, pub: pub, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// RunOnce publishes every post due now, up to BatchSize. Per-post failures
// are recorded on the post; only a failure to claim is returned.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	posts, err := w.store.ClaimDuePosts(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return Result{}, eris.Wrap(err, "publish: claim due posts")
	}
	res := Result{Claimed: len(posts)}
	if len(posts) == 0 {
		return res, nil
	}

	var published, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, p := range posts {
		g.Go(func() error {
			if w.publishOne(gctx, p) {
				published.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Published = int(published.Load())
	res.Failed = int(failed.Load())
	zap.L().Info("publish: batch complete",
		zap.Int("claimed", res.Claimed),
		zap.Int("published", res.Published),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (w *Worker) publishOne(ctx context.Context, p model.Post) bool {
	log := zap.L().With(zap.String("post_id", p.ID), zap.String("platform", string(p.Platform)))

	externalID, err := resilience.DoVal(ctx, w.cfg.Retry, func(ctx context.Context) (string, error) {
		return w.pub.Publish(ctx, p)
	})

	// The status update must land even when the batch context is cancelled.
	updCtx := context.WithoutCancel(ctx)
	if err != nil {
		log.Warn("publish: post failed", zap.Error(err))
		if uerr := w.store.UpdatePostStatus(updCtx, p.ID, store.PostUpdate{
			Status: model.PostStatusFailed,
			Error:  err.Error(),
		}); uerr != nil {
			log.Error("publish: record failure", zap.Error(uerr))
		}
		return false
	}

	now := w.now()
	if uerr := w.store.UpdatePostStatus(updCtx, p.ID, store.PostUpdate{
		Status:      model.PostStatusPublished,
		ExternalID:  externalID,
		PublishedAt: &now,
	}); uerr != nil {
		log.Error("publish: record success", zap.Error(uerr))
	}
	log.Debug("publish: post published", zap.String("external_id", externalID))
	return true
}

// Run calls RunOnce every Interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	zap.L().Info("publish: worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize),
	)
	for {
		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Error("publish: run", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			zap.L().Info("publish: worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}
