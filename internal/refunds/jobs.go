package refunds

import (
	"context"
	"time"

	"eventreg/pkg/logger"

	"gorm.io/gorm"
)

// RetryProcessor re-runs compensations that failed and are due again.
type RetryProcessor struct {
	db          *gorm.DB
	compensator *Compensator
	interval    time.Duration
	batchSize   int
	done        chan struct{}
	log         *logger.Logger
}

func NewRetryProcessor(db *gorm.DB, compensator *Compensator, interval time.Duration, batchSize int, log *logger.Logger) *RetryProcessor {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RetryProcessor{
		db:          db,
		compensator: compensator,
		interval:    interval,
		batchSize:   batchSize,
		done:        make(chan struct{}),
		log:         log.WithComponent("refund-retry"),
	}
}

// Start runs the retry loop until Stop is called or ctx ends
func (p *RetryProcessor) Start(ctx context.Context) {
	p.log.Info("starting compensation retry processor", "interval", p.interval.String())
	go p.loop(ctx)
}

func (p *RetryProcessor) Stop() {
	close(p.done)
	p.log.Info("compensation retry processor stopped")
}

func (p *RetryProcessor) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			resolved, err := p.RunOnce(ctx)
			if err != nil {
				p.log.WithError(err).Error("compensation retry pass failed")
				continue
			}
			if resolved > 0 {
				p.log.Info("compensation retries resolved", "count", resolved)
			}
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce retries every due PENDING failure and reports how many were refunded
func (p *RetryProcessor) RunOnce(ctx context.Context) (int, error) {
	var due []CompensationFailure
	err := p.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", FailurePending, p.compensator.now()).
		Order("next_attempt_at ASC").
		Limit(p.batchSize).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.compensator.Compensate(ctx, due[i].request()); err == nil {
			resolved++
		}
	}
	return resolved, nil
}
