// Package orchestrator creates and deletes routes between element
// instances, provisioning a relay circuit through a satellite when the two
// ends live on different instances, and answers routing table queries.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
	"github.com/MrSnakeDoc/fogroute/internal/relay"
)

// DefaultLockTTL bounds how long one mutation may hold an element pair.
const DefaultLockTTL = 30 * time.Second

// Directory resolves catalog metadata.
type Directory interface {
	GetUser(id string) (domain.User, error)
	GetInstance(id string) (domain.Instance, error)
	GetFabricType(key string) (domain.FabricType, error)
	GetNetworkElementTemplate(fabricTypeKey string) (domain.NetworkElement, error)
	GetTrack(id string) (domain.Track, error)
	GetElementInstance(ctx context.Context, id string) (*domain.ElementInstance, error)
	StreamViewerElementID(instanceID string) string
	ConsoleElementID(instanceID string) string
}

// Store persists route edges, pairings and the records hanging off them.
type Store interface {
	CreateRoute(ctx context.Context, route *domain.Route) error
	FindRoute(ctx context.Context, pubInstance, destInstance, pubElement, destElement string) (*domain.Route, error)
	DeleteRoute(ctx context.Context, id string) error
	ListRoutesByPublishingInstance(ctx context.Context, instanceID string) ([]domain.Route, error)

	CreatePairing(ctx context.Context, pairing *domain.NetworkPairing) error
	FindPairing(ctx context.Context, instance1, instance2, element1, element2 string) (*domain.NetworkPairing, error)
	DeletePairing(ctx context.Context, id string) error

	GetSatellitePort(ctx context.Context, id string) (*domain.SatellitePort, error)
	DeleteSatellitePort(ctx context.Context, id string) error

	MarkRebuild(ctx context.Context, id string) (*domain.ElementInstance, error)
	DeleteElementInstance(ctx context.Context, id string) error

	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// Relay leases and releases relay circuits.
type Relay interface {
	Allocate(ctx context.Context, req relay.Request) (*relay.Allocation, error)
	Commit(ctx context.Context, pendingID string) error
	Release(ctx context.Context, p *domain.PendingAllocation, by string) error
	Deallocate(ctx context.Context, port *domain.SatellitePort) error
}

// Notifier marks instance configuration dirty.
type Notifier interface {
	MarkDirty(ctx context.Context, instanceID string, categories ...domain.ChangeCategory) error
}

// Orchestrator runs route mutations and routing table queries.
type Orchestrator struct {
	dir      Directory
	store    Store
	relay    Relay
	notifier Notifier
	metrics  *metrics.Metrics
	logger   logger.Logger
	lockTTL  time.Duration
	newID    func() string
}

// New creates an Orchestrator. A non-positive lockTTL falls back to DefaultLockTTL.
func New(dir Directory, store Store, r Relay, n Notifier, m *metrics.Metrics, log logger.Logger, lockTTL time.Duration) *Orchestrator {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Orchestrator{
		dir:      dir,
		store:    store,
		relay:    r,
		notifier: n,
		metrics:  m,
		logger:   log,
		lockTTL:  lockTTL,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// flow tracks the stage one mutation is in.
type flow struct {
	op      string
	stage   domain.Stage
	started time.Time
	log     logger.Logger
	metrics *metrics.Metrics
}

func (o *Orchestrator) begin(op, pubElement, destElement string) *flow {
	return &flow{
		op:      op,
		started: time.Now(),
		log: o.logger.With(
			logger.String("op", op),
			logger.String("route_key", pubElement+" -> "+destElement)),
		metrics: o.metrics,
	}
}

func (f *flow) enter(stage domain.Stage) {
	f.stage = stage
	f.log.Debug("route stage", logger.String("stage", string(stage)))
}

// fail tags err with the current stage.
func (f *flow) fail(err error) error {
	err = domain.AtStage(err, f.stage)
	fields := []logger.Field{
		logger.String("stage", string(domain.StageOf(err))),
		logger.String("kind", string(domain.KindOf(err))),
		logger.Error(err),
	}
	if domain.KindOf(err) == domain.KindInternal {
		f.log.Error("route operation failed", fields...)
	} else {
		f.log.Warn("route operation failed", fields...)
	}
	return err
}

func (f *flow) finish(err error) {
	stage := domain.StageDone
	if err != nil {
		stage = domain.StageOf(err)
		if stage == "" {
			stage = domain.StageFailed
		}
	}
	f.metrics.ObserveRouteOp(f.op, string(stage), time.Since(f.started), err)
}

// lock serializes mutations of one element pair across replicas.
func (o *Orchestrator) lock(ctx context.Context, f *flow, pubElement, destElement string) (func(), error) {
	name := "pair:" + pubElement + "|" + destElement
	token, err := o.store.AcquireLock(ctx, name, o.lockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := o.store.ReleaseLock(ctx, name, token); err != nil {
			f.log.Warn("failed to release pair lock", logger.String("lock", name), logger.Error(err))
		}
	}, nil
}

// markRebuild flags element instances for rebuild.
func (o *Orchestrator) markRebuild(ctx context.Context, ids ...string) error {
	var errs error
	for _, id := range ids {
		if _, err := o.store.MarkRebuild(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// markRebuildAfterDelete flags surviving element instances. Elements that
// vanished meanwhile are skipped; other failures become warnings since the
// route itself is already gone.
func (o *Orchestrator) markRebuildAfterDelete(ctx context.Context, f *flow, ids ...string) []string {
	var warnings []string
	for _, id := range ids {
		if _, err := o.store.MarkRebuild(ctx, id); err != nil {
			if domain.IsNotFound(err) {
				f.log.Debug("element instance gone, rebuild mark skipped", logger.String("element_id", id))
				continue
			}
			f.log.Warn("failed to mark element instance for rebuild", logger.String("element_id", id), logger.Error(err))
			warnings = append(warnings, "rebuild mark failed for "+id+": "+err.Error())
		}
	}
	return warnings
}

// notify marks every category of the given instances dirty. Failures are
// returned as warnings; the mutation itself already committed.
func (o *Orchestrator) notify(ctx context.Context, f *flow, instanceIDs ...string) []string {
	f.enter(domain.StageNotifying)
	var warnings []string
	for _, id := range instanceIDs {
		if err := o.notifier.MarkDirty(ctx, id, domain.AllChangeCategories...); err != nil {
			f.log.Error("failed to notify instance", logger.String("instance_id", id), logger.Error(err))
			warnings = append(warnings, "change tracking not updated for "+id+": "+err.Error())
		}
	}
	return warnings
}

// RoutingTable returns the receivers of every container publishing on an instance.
func (o *Orchestrator) RoutingTable(ctx context.Context, instanceID string) ([]domain.ContainerRoutes, error) {
	if _, err := o.dir.GetInstance(instanceID); err != nil {
		return nil, err
	}
	edges, err := o.store.ListRoutesByPublishingInstance(ctx, instanceID)
	if err != nil {
		return nil, domain.Internal("failed to list routes", err)
	}
	return domain.BuildRoutingTable(edges, o.dir.StreamViewerElementID(instanceID), o.dir.ConsoleElementID(instanceID)), nil
}
