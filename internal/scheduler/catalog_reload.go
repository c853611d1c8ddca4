package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/catalog"
	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/index"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
)

// ElementSeeder upserts catalog element instances into durable storage.
type ElementSeeder interface {
	SeedElementInstances(ctx context.Context, elements []domain.ElementInstance) (int, error)
}

// CatalogReloader handles periodic reloading of the fabric catalog
type CatalogReloader struct {
	loader        *catalog.Loader
	mapper        *catalog.Mapper
	seeder        ElementSeeder
	directory     *index.Directory
	metrics       *metrics.Metrics
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

func NewCatalogReloader(
	catalogFile string,
	seeder ElementSeeder,
	dir *index.Directory,
	m *metrics.Metrics,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogReloader {
	return &CatalogReloader{
		loader:        catalog.NewLoader(catalogFile),
		mapper:        catalog.NewMapper(),
		seeder:        seeder,
		directory:     dir,
		metrics:       m,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the catalog once, then keeps reloading it on every tick and
// on every manual trigger. A failed first load is fatal; later failures
// keep the previous snapshot.
func (cr *CatalogReloader) Start(ctx context.Context) error {
	if err := cr.Reload(ctx); err != nil {
		return fmt.Errorf("initial catalog load failed: %w", err)
	}

	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload catalog", logger.Error(err))
				}
			case <-cr.manualTrigger:
				cr.logger.Info("manual catalog reload triggered")
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload catalog", logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (cr *CatalogReloader) Stop() {
	close(cr.stopCh)
}

// Reload reads the catalog file, seeds its element instances and swaps
// the directory snapshot. The directory is only updated once seeding
// succeeded so every element it can name is readable from the store.
func (cr *CatalogReloader) Reload(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			cr.metrics.CatalogReloaded(0, err)
		}
	}()

	cr.logger.Info("reloading catalog", logger.String("file", cr.loader.Path()))

	file, err := cr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	snap, err := cr.mapper.Map(file)
	if err != nil {
		return fmt.Errorf("failed to map catalog: %w", err)
	}

	created, err := cr.seeder.SeedElementInstances(ctx, snap.ElementInstances)
	if err != nil {
		return fmt.Errorf("failed to seed element instances: %w", err)
	}

	cr.directory.Update(snap)
	cr.metrics.CatalogReloaded(len(snap.Instances), nil)

	cr.logger.Info("catalog loaded",
		logger.Int("instances", len(snap.Instances)),
		logger.Int("satellites", len(snap.Satellites)),
		logger.Int("elements", len(snap.ElementInstances)),
		logger.Int("elements_created", created))
	return nil
}
