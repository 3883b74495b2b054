// Package housekeeping runs periodic maintenance jobs next to the server.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/limiter"
)

const pruneTimeout = 30 * time.Second

// Config controls the limiter prune job.
type Config struct {
	Every     time.Duration // run interval
	Retention time.Duration // rows untouched for longer are deleted
}

// Housekeeper owns the scheduler.
type Housekeeper struct {
	sched     gocron.Scheduler
	pruner    limiter.Pruner
	retention time.Duration
	clk       clockwork.Clock
	log       *zap.Logger
}

// New schedules the jobs; call Start to run them.
func New(pruner limiter.Pruner, cfg Config, clk clockwork.Clock, log *zap.Logger) (*Housekeeper, error) {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Every <= 0 || cfg.Retention <= 0 {
		return nil, fmt.Errorf("housekeeping: interval and retention must be positive")
	}
	sched, err := gocron.NewScheduler(gocron.WithClock(clk), gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("housekeeping: scheduler: %w", err)
	}
	h := &Housekeeper{sched: sched, pruner: pruner, retention: cfg.Retention, clk: clk, log: log}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.Every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
			defer cancel()
			_, _ = h.PruneLimiter(ctx)
		}),
		gocron.WithName("prune-redeem-limiter"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("housekeeping: job: %w", err)
	}
	return h, nil
}

// Start begins running scheduled jobs.
func (h *Housekeeper) Start() { h.sched.Start() }

// Stop waits for running jobs and stops the scheduler.
func (h *Housekeeper) Stop() error { return h.sched.Shutdown() }

// PruneLimiter deletes limiter rows older than the retention window.
func (h *Housekeeper) PruneLimiter(ctx context.Context) (int64, error) {
	before := h.clk.Now().Add(-h.retention)
	n, err := h.pruner.Prune(ctx, before)
	if err != nil {
		h.log.Warn("prune redeem limiter", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		h.log.Info("pruned redeem limiter", zap.Int64("rows", n), zap.Time("before", before))
	}
	return n, nil
}
