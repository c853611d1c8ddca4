package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/relay"
)

// DefaultPendingGrace is how old a pending allocation must be before the
// reconciler treats it as abandoned.
const DefaultPendingGrace = 2 * time.Minute

type PendingLister interface {
	ListPendingAllocations(ctx context.Context) ([]*domain.PendingAllocation, error)
}

type Releaser interface {
	Release(ctx context.Context, p *domain.PendingAllocation, by string) error
}

// Reconciler releases relay circuits whose creation never completed, for
// example because the process died between leasing a satellite port and
// storing the route.
type Reconciler struct {
	pending  PendingLister
	releaser Releaser
	clock    clock.Clock
	logger   logger.Logger
	interval time.Duration
	grace    time.Duration
	stopCh   chan struct{}
}

func NewReconciler(
	pending PendingLister,
	releaser Releaser,
	clk clock.Clock,
	log logger.Logger,
	interval time.Duration,
	grace time.Duration,
) *Reconciler {
	if grace == 0 {
		grace = DefaultPendingGrace
	}

	return &Reconciler{
		pending:  pending,
		releaser: releaser,
		clock:    clk,
		logger:   log,
		interval: interval,
		grace:    grace,
		stopCh:   make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	if _, err := r.Reconcile(ctx); err != nil {
		r.logger.Warn("initial reconciliation failed", logger.Error(err))
	}

	ticker := r.clock.Ticker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := r.Reconcile(ctx); err != nil {
					r.logger.Error("reconciliation failed", logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Reconcile releases every pending allocation older than the grace period
// and returns how many were released. Younger ones may still belong to an
// in-flight request and are left alone.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	all, err := r.pending.ListPendingAllocations(ctx)
	if err != nil {
		return 0, err
	}

	now := r.clock.Now()
	released := 0
	var errs error

	for _, p := range all {
		age := now.Sub(p.CreatedAt)
		if age < r.grace {
			continue
		}

		if err := r.releaser.Release(ctx, p, relay.ReleasedByReconciler); err != nil {
			r.logger.Warn("failed to release abandoned allocation",
				logger.String("pending_id", p.ID),
				logger.String("satellite_id", p.SatelliteID),
				logger.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}

		r.logger.Info("released abandoned allocation",
			logger.String("pending_id", p.ID),
			logger.String("satellite_id", p.SatelliteID),
			logger.Duration("age", age))
		released++
	}

	if released > 0 || errs != nil {
		r.logger.Info("reconciliation completed",
			logger.Int("released", released),
			logger.Int("failed", len(multierr.Errors(errs))))
	} else {
		r.logger.Debug("no abandoned allocations")
	}

	return released, errs
}
