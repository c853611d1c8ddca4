// Package changes tells instances which parts of their configuration to
// re-read. Each instance keeps one generation marker per category; an
// instance compares markers against what it last applied.
package changes

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

// MarkerStore persists change markers.
type MarkerStore interface {
	SetChangeMarkers(ctx context.Context, instanceID string, markers map[domain.ChangeCategory]int64) error
	GetChangeTracking(ctx context.Context, instanceID string) (*domain.ChangeTracking, error)
}

// Notifier stamps change markers from its clock.
type Notifier struct {
	store  MarkerStore
	clock  clock.Clock
	logger logger.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(store MarkerStore, clk clock.Clock, log logger.Logger) *Notifier {
	return &Notifier{store: store, clock: clk, logger: log}
}

// MarkDirty stamps the given categories of an instance with the current
// time in milliseconds. With no categories every category is stamped.
func (n *Notifier) MarkDirty(ctx context.Context, instanceID string, categories ...domain.ChangeCategory) error {
	if instanceID == "" {
		return domain.Validation("instance id is required")
	}
	if len(categories) == 0 {
		categories = domain.AllChangeCategories
	}

	marker := n.clock.Now().UnixMilli()
	markers := make(map[domain.ChangeCategory]int64, len(categories))
	for _, c := range categories {
		markers[c] = marker
	}

	if err := n.store.SetChangeMarkers(ctx, instanceID, markers); err != nil {
		return fmt.Errorf("failed to mark instance %s dirty: %w", instanceID, err)
	}

	n.logger.Debug("instance marked dirty",
		logger.String("instance_id", instanceID),
		logger.Int64("marker", marker),
		logger.Int("categories", len(categories)))
	return nil
}

// Get returns the current markers of an instance.
func (n *Notifier) Get(ctx context.Context, instanceID string) (*domain.ChangeTracking, error) {
	return n.store.GetChangeTracking(ctx, instanceID)
}
