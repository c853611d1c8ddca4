// Package relay leases satellite port pairs and creates the relay endpoint
// element instances that carry a route between two instances.
package relay

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/fogroute/internal/comsat"
	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
)

// Who released a pending allocation, as reported in metrics.
const (
	ReleasedByCompensation = "compensation"
	ReleasedByReconciler   = "reconciler"
)

// PortClient opens and closes port pairs on a satellite.
type PortClient interface {
	OpenPort(ctx context.Context, sat domain.Satellite, public bool) (comsat.PortPair, error)
	ClosePort(ctx context.Context, sat domain.Satellite, ports comsat.PortPair) error
}

// Satellites lists the registered satellites.
type Satellites interface {
	ListSatellites() []domain.Satellite
	GetSatellite(id string) (domain.Satellite, error)
}

// Store holds the records an allocation creates, and the ones a release
// must remove.
type Store interface {
	SavePendingAllocation(ctx context.Context, p *domain.PendingAllocation) error
	DeletePendingAllocation(ctx context.Context, id string) error
	SaveSatellitePort(ctx context.Context, port *domain.SatellitePort) error
	DeleteSatellitePort(ctx context.Context, id string) error
	SaveElementInstance(ctx context.Context, el *domain.ElementInstance) error
	DeleteElementInstance(ctx context.Context, id string) error
	DeleteRoute(ctx context.Context, id string) error
	DeletePairing(ctx context.Context, id string) error
}

// Side is one end of a cross-instance route.
type Side struct {
	InstanceID string
	ElementID  string // element instance the relay endpoint serves
	Template   domain.NetworkElement
	TrackID    string
	UserID     string
}

// Request asks for a relay circuit between two sides.
type Request struct {
	Publishing  Side
	Destination Side
	Public      bool
}

// Allocation is a leased circuit. Pending names every record planned
// around the lease; it stays stored until Commit.
type Allocation struct {
	Pending             *domain.PendingAllocation
	Satellite           domain.Satellite
	Port                domain.SatellitePort
	PublishingEndpoint  domain.ElementInstance
	DestinationEndpoint domain.ElementInstance
}

// PublishingRouteID is the id planned for the publisher to endpoint edge.
func (a *Allocation) PublishingRouteID() string { return a.Pending.RouteIDs[0] }

// DestinationRouteID is the id planned for the endpoint to destination edge.
func (a *Allocation) DestinationRouteID() string { return a.Pending.RouteIDs[1] }

// Allocator leases satellite ports and plans the relay records around them.
type Allocator struct {
	satellites Satellites
	ports      PortClient
	store      Store
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     logger.Logger

	pick  func(n int) int
	newID func() string
}

// NewAllocator creates an Allocator picking satellites uniformly at random.
func NewAllocator(sats Satellites, ports PortClient, store Store, clk clock.Clock, m *metrics.Metrics, log logger.Logger) *Allocator {
	return &Allocator{
		satellites: sats,
		ports:      ports,
		store:      store,
		clock:      clk,
		metrics:    m,
		logger:     log,
		pick:       rand.IntN,
		newID:      func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Allocate picks a satellite uniformly at random, leases a port pair on it
// and stores the port record plus one relay endpoint per side. The remote
// lease is recorded as pending before any local write; if a local write
// fails the lease is released before returning.
func (a *Allocator) Allocate(ctx context.Context, req Request) (*Allocation, error) {
	sats := a.satellites.ListSatellites()
	if len(sats) == 0 {
		return nil, domain.Allocation("No Satellite defined", nil)
	}
	sat := sats[a.pick(len(sats))]

	ports, err := a.ports.OpenPort(ctx, sat, req.Public)
	if err != nil {
		return nil, domain.Allocation(fmt.Sprintf("failed to open port on satellite %s", sat.ID), err)
	}

	pending := &domain.PendingAllocation{
		ID:                    a.newID(),
		SatelliteID:           sat.ID,
		Port1:                 ports.Port1,
		Port2:                 ports.Port2,
		SatellitePortID:       a.newID(),
		NetworkElementIDs:     []string{a.newID(), a.newID()},
		RouteIDs:              []string{a.newID(), a.newID()},
		PairingID:             a.newID(),
		PublishingInstanceID:  req.Publishing.InstanceID,
		DestinationInstanceID: req.Destination.InstanceID,
		CreatedAt:             a.clock.Now(),
	}

	log := a.logger.With(
		logger.String("pending_id", pending.ID),
		logger.String("satellite_id", sat.ID))

	if err := a.store.SavePendingAllocation(ctx, pending); err != nil {
		// Nothing local references the lease yet; just give it back.
		closeErr := a.ports.ClosePort(ctx, sat, ports)
		if closeErr != nil {
			log.Error("satellite port leaked, pending record could not be stored",
				logger.Int("port1", ports.Port1),
				logger.Int("port2", ports.Port2),
				logger.Error(closeErr))
		}
		return nil, domain.Internal("failed to record pending allocation", multierr.Append(err, closeErr))
	}

	alloc := &Allocation{
		Pending:   pending,
		Satellite: sat,
		Port: domain.SatellitePort{
			ID:          pending.SatellitePortID,
			SatelliteID: sat.ID,
			Port1:       ports.Port1,
			Port2:       ports.Port2,
			CreatedAt:   pending.CreatedAt,
		},
		PublishingEndpoint:  a.endpoint(pending.NetworkElementIDs[0], req.Publishing, sat, ports.Port1, req.Public),
		DestinationEndpoint: a.endpoint(pending.NetworkElementIDs[1], req.Destination, sat, ports.Port2, req.Public),
	}

	err = a.store.SaveSatellitePort(ctx, &alloc.Port)
	if err == nil {
		err = a.store.SaveElementInstance(ctx, &alloc.PublishingEndpoint)
	}
	if err == nil {
		err = a.store.SaveElementInstance(ctx, &alloc.DestinationEndpoint)
	}
	if err != nil {
		relErr := a.Release(ctx, pending, ReleasedByCompensation)
		if relErr != nil {
			log.Error("compensation failed, pending allocation left for reconciler", logger.Error(relErr))
		}
		return nil, domain.Internal("failed to store relay records", multierr.Append(err, relErr))
	}

	log.Debug("relay circuit allocated",
		logger.Int("port1", ports.Port1),
		logger.Int("port2", ports.Port2))
	return alloc, nil
}

func (a *Allocator) endpoint(id string, side Side, sat domain.Satellite, port int, public bool) domain.ElementInstance {
	now := a.clock.Now()
	return domain.ElementInstance{
		ID:              id,
		Name:            "Network for Element " + side.ElementID,
		ElementKey:      side.Template.Key,
		TypeName:        side.Template.Name,
		TrackID:         side.TrackID,
		InstanceID:      side.InstanceID,
		UserID:          side.UserID,
		Rebuild:         true,
		RebuildVersion:  1,
		IsNetwork:       true,
		SatellitePort:   port,
		SatelliteDomain: sat.Domain,
		IsPublic:        public,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Commit drops the pending record once every planned record is stored.
func (a *Allocator) Commit(ctx context.Context, pendingID string) error {
	if err := a.store.DeletePendingAllocation(ctx, pendingID); err != nil {
		return fmt.Errorf("failed to commit allocation %s: %w", pendingID, err)
	}
	return nil
}

// Release undoes a pending allocation: every planned local record is
// deleted, then the remote port is closed, then the pending record goes.
// All steps are idempotent so a failed release can simply be retried.
func (a *Allocator) Release(ctx context.Context, p *domain.PendingAllocation, by string) (err error) {
	defer func() { a.metrics.PendingReleased(by, err) }()

	var errs error
	for _, id := range p.RouteIDs {
		errs = multierr.Append(errs, a.store.DeleteRoute(ctx, id))
	}
	if p.PairingID != "" {
		errs = multierr.Append(errs, a.store.DeletePairing(ctx, p.PairingID))
	}
	for _, id := range p.NetworkElementIDs {
		errs = multierr.Append(errs, a.store.DeleteElementInstance(ctx, id))
	}
	if p.SatellitePortID != "" {
		errs = multierr.Append(errs, a.store.DeleteSatellitePort(ctx, p.SatellitePortID))
	}
	if errs != nil {
		return fmt.Errorf("failed to delete planned records of %s: %w", p.ID, errs)
	}

	if err := a.closePort(ctx, p.SatelliteID, comsat.PortPair{Port1: p.Port1, Port2: p.Port2}); err != nil {
		return err
	}

	if err := a.store.DeletePendingAllocation(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to drop pending allocation %s: %w", p.ID, err)
	}

	a.logger.Info("pending allocation released",
		logger.String("pending_id", p.ID),
		logger.String("by", by))
	return nil
}

// Deallocate closes the remote port of a committed circuit.
func (a *Allocator) Deallocate(ctx context.Context, port *domain.SatellitePort) error {
	return a.closePort(ctx, port.SatelliteID, comsat.PortPair{Port1: port.Port1, Port2: port.Port2})
}

func (a *Allocator) closePort(ctx context.Context, satelliteID string, ports comsat.PortPair) error {
	sat, err := a.satellites.GetSatellite(satelliteID)
	if err != nil {
		return domain.Allocation(fmt.Sprintf("cannot close port on satellite %s", satelliteID), err)
	}
	if err := a.ports.ClosePort(ctx, sat, ports); err != nil {
		return domain.Allocation(fmt.Sprintf("failed to close port on satellite %s", satelliteID), err)
	}
	return nil
}
