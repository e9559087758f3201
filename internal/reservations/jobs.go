package reservations

import (
	"context"
	"time"

	"eventreg/pkg/logger"
)

// ReaperConfig controls the hold sweeper
type ReaperConfig struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval:  5 * time.Minute,
		Retention: 7 * 24 * time.Hour,
		BatchSize: 500,
	}
}

// Reaper keeps the reservations table small. Capacity never depends on it:
// every count already ignores stale holds.
type Reaper struct {
	store *Store
	cfg   ReaperConfig
	done  chan struct{}
	log   *logger.Logger
}

func NewReaper(store *Store, cfg ReaperConfig, log *logger.Logger) *Reaper {
	def := DefaultReaperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Reaper{store: store, cfg: cfg, done: make(chan struct{}), log: log.WithComponent("reaper")}
}

func (r *Reaper) Start(ctx context.Context) {
	r.log.Info("starting reservation reaper", "interval", r.cfg.Interval.String(), "retention", r.cfg.Retention.String())
	go r.loop(ctx)
}

func (r *Reaper) Stop() {
	close(r.done)
	r.log.Info("reservation reaper stopped")
}

func (r *Reaper) loop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) RunOnce(ctx context.Context) {
	expired, purged, err := r.store.PurgeExpired(ctx, r.cfg.Retention, r.cfg.BatchSize)
	if err != nil {
		r.log.WithError(err).Error("reservation sweep failed")
		return
	}
	if expired > 0 || purged > 0 {
		r.log.Info("reservation sweep", "expired", expired, "purged", purged)
	}
}
