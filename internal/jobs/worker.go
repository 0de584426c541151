// Package jobs runs background work off the SQLite job queue: warming the
// place-search cache for a newly visited location and pruning stale cache
// rows.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/concierge/internal/places"
	"github.com/kalambet/concierge/internal/storage"
)

// Job types.
const (
	TypePlacesPrefetch = "places_prefetch"
	TypeCachePrune     = "cache_prune"
)

// prefetchConcurrency caps parallel searches per prefetch job.
const prefetchConcurrency = 3

// Queue abstracts the job queue operations.
type Queue interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// Pruner deletes cache rows older than maxAge.
type Pruner interface {
	PruneCache(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Worker processes places_prefetch and cache_prune jobs.
type Worker struct {
	queue    Queue
	finder   places.Finder
	pruner   Pruner
	cacheTTL time.Duration
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. finder should be the caching finder so that
// prefetched results land in the cache. If pollInterval is <= 0, it
// defaults to 500ms.
func NewWorker(queue Queue, finder places.Finder, pruner Pruner, cacheTTL, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		queue:    queue,
		finder:   finder,
		pruner:   pruner,
		cacheTTL: cacheTTL,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNextJob(ctx, []string{TypePlacesPrefetch, TypeCachePrune})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.queue.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.queue.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// PrefetchPayload is the body of a places_prefetch job.
type PrefetchPayload struct {
	Location string   `json:"location"`
	Keywords []string `json:"keywords"`
	Radius   int      `json:"radius"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case TypePlacesPrefetch:
		var payload PrefetchPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.prefetch(ctx, payload)
	case TypeCachePrune:
		n, err := w.pruner.PruneCache(ctx, w.cacheTTL)
		if err != nil {
			return fmt.Errorf("pruning cache: %w", err)
		}
		w.logger.Debug("cache pruned", "rows", n)
		return nil
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// prefetch runs every keyword search concurrently. Searches that succeed
// are cached by the finder even if a sibling fails, so a retry only repeats
// the failed ones.
func (w *Worker) prefetch(ctx context.Context, p PrefetchPayload) error {
	if p.Location == "" {
		return errors.New("prefetch payload has no location")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	errs := make([]error, len(p.Keywords))
	for i, kw := range p.Keywords {
		g.Go(func() error {
			if _, err := w.finder.Find(gctx, p.Location, kw, p.Radius); err != nil {
				errs[i] = fmt.Errorf("%s: %w", kw, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if errors.Is(err, places.ErrNoAPIKey) {
		w.logger.Debug("prefetch skipped", "location", p.Location, "reason", places.ErrNoAPIKey)
		return nil
	}
	return err
}

// EnqueuePrefetch schedules a cache warm-up of the keyword searches around
// location. keywords and radius must match what the later lookups ask for,
// since the cache key includes both.
func EnqueuePrefetch(ctx context.Context, q Enqueuer, location string, keywords []string, radius int) error {
	payload, err := json.Marshal(PrefetchPayload{
		Location: location,
		Keywords: keywords,
		Radius:   radius,
	})
	if err != nil {
		return err
	}
	return q.EnqueueJob(ctx, storage.Job{
		ID:          uuid.New().String(),
		Type:        TypePlacesPrefetch,
		PayloadJSON: string(payload),
	})
}

// EnqueuePrune schedules a cache prune.
func EnqueuePrune(ctx context.Context, q Enqueuer) error {
	return q.EnqueueJob(ctx, storage.Job{
		ID:          uuid.New().String(),
		Type:        TypeCachePrune,
		MaxAttempts: 1,
	})
}

// SchedulePrune enqueues a prune job every interval until ctx is cancelled.
func SchedulePrune(ctx context.Context, q Enqueuer, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := EnqueuePrune(ctx, q); err != nil {
				slog.Warn("scheduling cache prune failed", "error", err)
			}
		}
	}
}
