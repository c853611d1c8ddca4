package index

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/catalog"
	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// ElementReader reads element instances from durable storage.
type ElementReader interface {
	GetElementInstance(ctx context.Context, id string) (*domain.ElementInstance, error)
}

// Directory serves read-only lookups over the current catalog snapshot.
// Element instances are read through to the store since their rebuild
// state and the relay endpoints live there.
type Directory struct {
	mu         sync.RWMutex
	snap       *catalog.Snapshot
	elements   ElementReader
	lastReload time.Time
}

// NewDirectory creates an empty directory. Lookups fail with NotFound
// until the first Update.
func NewDirectory(elements ElementReader) *Directory {
	return &Directory{elements: elements}
}

// Update swaps in a new catalog snapshot.
func (d *Directory) Update(snap *catalog.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.snap = snap
	d.lastReload = snap.LoadedAt
}

// snapshot returns the current snapshot, never nil.
func (d *Directory) snapshot() *catalog.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.snap == nil {
		return &catalog.Snapshot{}
	}
	return d.snap
}

func (d *Directory) GetUser(id string) (domain.User, error) {
	u, ok := d.snapshot().Users[id]
	if !ok {
		return domain.User{}, domain.NotFound("user", id)
	}
	return u, nil
}

func (d *Directory) GetInstance(id string) (domain.Instance, error) {
	inst, ok := d.snapshot().Instances[id]
	if !ok {
		return domain.Instance{}, domain.NotFound("instance", id)
	}
	return inst, nil
}

func (d *Directory) GetFabricType(key string) (domain.FabricType, error) {
	ft, ok := d.snapshot().FabricTypes[key]
	if !ok {
		return domain.FabricType{}, domain.NotFound("fabric type", key)
	}
	return ft, nil
}

// GetNetworkElementTemplate returns the relay endpoint template used on
// instances of the given fabric type.
func (d *Directory) GetNetworkElementTemplate(fabricTypeKey string) (domain.NetworkElement, error) {
	snap := d.snapshot()
	ft, ok := snap.FabricTypes[fabricTypeKey]
	if !ok {
		return domain.NetworkElement{}, domain.NotFound("fabric type", fabricTypeKey)
	}
	ne, ok := snap.NetworkElements[ft.NetworkElementKey]
	if !ok {
		return domain.NetworkElement{}, domain.NotFound("network element", ft.NetworkElementKey)
	}
	return ne, nil
}

func (d *Directory) GetTrack(id string) (domain.Track, error) {
	tr, ok := d.snapshot().Tracks[id]
	if !ok {
		return domain.Track{}, domain.NotFound("track", id)
	}
	return tr, nil
}

func (d *Directory) GetSatellite(id string) (domain.Satellite, error) {
	for _, s := range d.snapshot().Satellites {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Satellite{}, domain.NotFound("satellite", id)
}

// ListSatellites returns a copy of the registered satellites.
func (d *Directory) ListSatellites() []domain.Satellite {
	sats := d.snapshot().Satellites
	out := make([]domain.Satellite, len(sats))
	copy(out, sats)
	return out
}

// StreamViewerElementID returns the stream viewer element instance of an
// instance, or "" when it has none.
func (d *Directory) StreamViewerElementID(instanceID string) string {
	return d.snapshot().StreamViewers[instanceID]
}

// ConsoleElementID returns the debug console element instance of an
// instance, or "" when it has none.
func (d *Directory) ConsoleElementID(instanceID string) string {
	return d.snapshot().Consoles[instanceID]
}

func (d *Directory) GetElementInstance(ctx context.Context, id string) (*domain.ElementInstance, error) {
	return d.elements.GetElementInstance(ctx, id)
}

// Count returns the number of instances in the current snapshot.
func (d *Directory) Count() int {
	return len(d.snapshot().Instances)
}

// GetLastReload returns when the current snapshot was loaded.
func (d *Directory) GetLastReload() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.lastReload
}
