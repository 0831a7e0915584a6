package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultSweepInterval = 5 * time.Second
	DefaultSweepBatch    = 100
	sweepTimeout         = 30 * time.Second
)

// Sweeper closes open attempts whose deadline has passed.
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker periodically finalizes attempts nobody submitted. With Redis
// configured, replicas share a lease so only one of them sweeps per tick.
type ExpiryWorker struct {
	sweeper  Sweeper
	rdb      *redis.Client
	interval time.Duration
	batch    int
	holder   string
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker. rdb may be nil.
func NewExpiryWorker(cfg *config.Config, sweeper Sweeper, rdb *redis.Client, log zerolog.Logger) *ExpiryWorker {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	batch := cfg.SweepBatch
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	return &ExpiryWorker{
		sweeper:  sweeper,
		rdb:      rdb,
		interval: interval,
		batch:    batch,
		holder:   uuid.NewString(),
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Sweep failed")
			}
		}
	}
}

// SweepOnce runs a single sweep, draining batches until a short one comes
// back. It returns the number of attempts expired. When another replica
// holds the lease it returns 0 without sweeping.
func (w *ExpiryWorker) SweepOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	acquired, err := w.acquireLease(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		return 0, nil
	}

	total := 0
	for {
		n, err := w.sweeper.SweepExpired(ctx, w.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < w.batch {
			break
		}
	}

	if total > 0 {
		w.log.Info().Int("expired", total).Msg("Expired attempts finalized")
	}
	return total, nil
}

// acquireLease takes the sweep lease for one interval. The lease is never
// released explicitly; it lapses before the next tick.
func (w *ExpiryWorker) acquireLease(ctx context.Context) (bool, error) {
	if w.rdb == nil {
		return true, nil
	}

	key := config.CacheKey.ExpirySweepLockKey()
	ok, err := w.rdb.SetNX(ctx, key, w.holder, w.interval).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	// Renew when this replica already holds it.
	holder, err := w.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if holder != w.holder {
		return false, nil
	}
	return true, w.rdb.Expire(ctx, key, w.interval).Err()
}
