package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/fogroute/internal/comsat"
	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
	redisstore "github.com/MrSnakeDoc/fogroute/internal/store/redis"
)

type fakeSatellites []domain.Satellite

func (f fakeSatellites) ListSatellites() []domain.Satellite { return f }

func (f fakeSatellites) GetSatellite(id string) (domain.Satellite, error) {
	for _, s := range f {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Satellite{}, domain.NotFound("satellite", id)
}

type fakePorts struct {
	openErr  error
	closeErr error
	next     int
	open     map[comsat.PortPair]string
	closed   int
}

func (f *fakePorts) OpenPort(_ context.Context, sat domain.Satellite, _ bool) (comsat.PortPair, error) {
	if f.openErr != nil {
		return comsat.PortPair{}, f.openErr
	}
	if f.open == nil {
		f.open = map[comsat.PortPair]string{}
	}
	f.next += 2
	p := comsat.PortPair{Port1: 40000 + f.next - 1, Port2: 40000 + f.next}
	f.open[p] = sat.ID
	return p, nil
}

func (f *fakePorts) ClosePort(_ context.Context, _ domain.Satellite, p comsat.PortPair) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	delete(f.open, p)
	f.closed++
	return nil
}

// failingStore fails SaveElementInstance after allowing n successful calls.
type failingStore struct {
	*redisstore.Store
	allow int
}

func (f *failingStore) SaveElementInstance(ctx context.Context, el *domain.ElementInstance) error {
	if f.allow <= 0 {
		return errors.New("disk full")
	}
	f.allow--
	return f.Store.SaveElementInstance(ctx, el)
}

type fixture struct {
	store *redisstore.Store
	mr    *miniredis.Miniredis
	ports *fakePorts
	clock *clock.Mock
	sats  fakeSatellites
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &fixture{
		store: redisstore.NewStore(client),
		mr:    mr,
		ports: &fakePorts{},
		clock: clock.NewMock(),
		sats: fakeSatellites{
			{ID: "sat-1", Domain: "comsat1.example.com"},
			{ID: "sat-2", Domain: "comsat2.example.com"},
		},
	}
}

func (f *fixture) allocator(store Store) *Allocator {
	a := NewAllocator(f.sats, f.ports, store, f.clock, metrics.New(), logger.NewNop())
	a.pick = func(n int) int { return n - 1 }
	seq := 0
	a.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return a
}

func testRequest() Request {
	return Request{
		Publishing: Side{
			InstanceID: "fog-a",
			ElementID:  "sensor-a",
			Template:   domain.NetworkElement{Key: "net-x86", Name: "Networking Tool"},
			TrackID:    "track-1",
			UserID:     "user-1",
		},
		Destination: Side{
			InstanceID: "fog-b",
			ElementID:  "store-b",
			Template:   domain.NetworkElement{Key: "net-arm", Name: "Networking Tool (ARM)"},
			TrackID:    "track-1",
			UserID:     "user-1",
		},
	}
}

func TestAllocate(t *testing.T) {
	f := newFixture(t)
	a := f.allocator(f.store)
	ctx := context.Background()

	alloc, err := a.Allocate(ctx, testRequest())
	require.NoError(t, err)

	assert.Equal(t, "sat-2", alloc.Satellite.ID)
	assert.Equal(t, "fog-a", alloc.PublishingEndpoint.InstanceID)
	assert.Equal(t, "fog-b", alloc.DestinationEndpoint.InstanceID)
	assert.Equal(t, alloc.Port.Port1, alloc.PublishingEndpoint.SatellitePort)
	assert.Equal(t, alloc.Port.Port2, alloc.DestinationEndpoint.SatellitePort)
	assert.Equal(t, "net-arm", alloc.DestinationEndpoint.ElementKey)
	assert.True(t, alloc.PublishingEndpoint.IsNetwork)
	assert.True(t, alloc.PublishingEndpoint.Rebuild)
	assert.Equal(t, "comsat2.example.com", alloc.DestinationEndpoint.SatelliteDomain)
	assert.NotEqual(t, alloc.PublishingRouteID(), alloc.DestinationRouteID())

	_, err = f.store.GetSatellitePort(ctx, alloc.Port.ID)
	require.NoError(t, err)
	_, err = f.store.GetElementInstance(ctx, alloc.PublishingEndpoint.ID)
	require.NoError(t, err)

	pending, err := f.store.ListPendingAllocations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, a.Commit(ctx, alloc.Pending.ID))
	pending, err = f.store.ListPendingAllocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAllocateNoSatellite(t *testing.T) {
	f := newFixture(t)
	f.sats = nil

	_, err := f.allocator(f.store).Allocate(context.Background(), testRequest())
	assert.True(t, domain.IsAllocation(err))
	assert.Contains(t, err.Error(), "No Satellite defined")
}

func TestAllocateSatelliteRejects(t *testing.T) {
	f := newFixture(t)
	f.ports.openErr = errors.New("no ports left")

	_, err := f.allocator(f.store).Allocate(context.Background(), testRequest())
	assert.True(t, domain.IsAllocation(err))
	assert.Empty(t, f.mr.Keys())
}

func TestAllocateCompensatesLocalFailure(t *testing.T) {
	f := newFixture(t)
	a := f.allocator(&failingStore{Store: f.store, allow: 1})

	_, err := a.Allocate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	assert.Empty(t, f.ports.open, "leased port must be closed")
	counts, err := f.store.Counts(context.Background())
	require.NoError(t, err)
	for kind, n := range counts {
		assert.Zero(t, n, kind)
	}
}

func TestReleaseKeepsPendingWhenCloseFails(t *testing.T) {
	f := newFixture(t)
	a := f.allocator(f.store)
	ctx := context.Background()

	alloc, err := a.Allocate(ctx, testRequest())
	require.NoError(t, err)

	f.ports.closeErr = errors.New("satellite down")
	err = a.Release(ctx, alloc.Pending, ReleasedByReconciler)
	assert.True(t, domain.IsAllocation(err))

	pending, err := f.store.ListPendingAllocations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "pending stays for the next attempt")

	f.ports.closeErr = nil
	require.NoError(t, a.Release(ctx, pending[0], ReleasedByReconciler))
	require.NoError(t, a.Release(ctx, pending[0], ReleasedByReconciler), "release is idempotent")

	_, err = f.store.GetElementInstance(ctx, alloc.PublishingEndpoint.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestDeallocate(t *testing.T) {
	f := newFixture(t)
	a := f.allocator(f.store)

	alloc, err := a.Allocate(context.Background(), testRequest())
	require.NoError(t, err)

	require.NoError(t, a.Deallocate(context.Background(), &alloc.Port))
	assert.Equal(t, 1, f.ports.closed)

	orphan := &domain.SatellitePort{SatelliteID: "sat-gone", Port1: 1, Port2: 2}
	assert.True(t, domain.IsAllocation(a.Deallocate(context.Background(), orphan)))
}

func TestPendingCreatedAtUsesClock(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	alloc, err := f.allocator(f.store).Allocate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, alloc.Pending.CreatedAt.Equal(f.clock.Now()))
}
