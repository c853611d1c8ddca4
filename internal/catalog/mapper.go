package catalog

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// Snapshot is a validated, immutable view of the catalog.
type Snapshot struct {
	Users           map[string]domain.User
	FabricTypes     map[string]domain.FabricType
	NetworkElements map[string]domain.NetworkElement
	Satellites      []domain.Satellite
	Tracks          map[string]domain.Track
	Instances       map[string]domain.Instance

	// StreamViewers and Consoles map instance id -> element instance id.
	StreamViewers map[string]string
	Consoles      map[string]string

	// ElementInstances are the catalog-declared (non-network) element instances.
	ElementInstances []domain.ElementInstance

	LoadedAt time.Time
}

// Mapper converts a parsed catalog File into a Snapshot.
type Mapper struct {
	now func() time.Time
}

func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// Map validates references across the catalog and builds the snapshot.
// All problems found are reported together.
func (m *Mapper) Map(file File) (*Snapshot, error) {
	now := m.now()
	snap := &Snapshot{
		Users:           make(map[string]domain.User, len(file.Users)),
		FabricTypes:     make(map[string]domain.FabricType, len(file.FabricTypes)),
		NetworkElements: make(map[string]domain.NetworkElement, len(file.NetworkElements)),
		Satellites:      make([]domain.Satellite, 0, len(file.Satellites)),
		Tracks:          make(map[string]domain.Track, len(file.Tracks)),
		Instances:       make(map[string]domain.Instance, len(file.Instances)),
		StreamViewers:   make(map[string]string),
		Consoles:        make(map[string]string),
		LoadedAt:        now,
	}

	var errs error
	fail := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	for _, u := range file.Users {
		if u.ID == "" {
			fail("user with email %q has no id", u.Email)
			continue
		}
		if _, dup := snap.Users[u.ID]; dup {
			fail("duplicate user id %q", u.ID)
			continue
		}
		snap.Users[u.ID] = domain.User{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
	}

	for _, ne := range file.NetworkElements {
		if ne.Key == "" {
			fail("network element %q has no key", ne.Name)
			continue
		}
		snap.NetworkElements[ne.Key] = domain.NetworkElement{Key: ne.Key, Name: ne.Name, Image: ne.Image}
	}

	for _, ft := range file.FabricTypes {
		if ft.Key == "" {
			fail("fabric type %q has no key", ft.Name)
			continue
		}
		if _, ok := snap.NetworkElements[ft.NetworkElement]; !ok {
			fail("fabric type %q references unknown network element %q", ft.Key, ft.NetworkElement)
		}
		snap.FabricTypes[ft.Key] = domain.FabricType{Key: ft.Key, Name: ft.Name, NetworkElementKey: ft.NetworkElement}
	}

	seenSatellites := make(map[string]bool, len(file.Satellites))
	for _, s := range file.Satellites {
		if s.ID == "" || s.Domain == "" {
			fail("satellite %q needs an id and a domain", s.Name)
			continue
		}
		if seenSatellites[s.ID] {
			fail("duplicate satellite id %q", s.ID)
			continue
		}
		seenSatellites[s.ID] = true
		snap.Satellites = append(snap.Satellites, domain.Satellite{
			ID:       s.ID,
			Name:     s.Name,
			Domain:   s.Domain,
			PublicIP: s.PublicIP,
			APIURL:   satelliteAPIURL(s),
		})
	}

	for _, tr := range file.Tracks {
		if tr.ID == "" {
			fail("track %q has no id", tr.Name)
			continue
		}
		if tr.User != "" {
			if _, ok := snap.Users[tr.User]; !ok {
				fail("track %q references unknown user %q", tr.ID, tr.User)
			}
		}
		snap.Tracks[tr.ID] = domain.Track{ID: tr.ID, Name: tr.Name, UserID: tr.User}
	}

	elementOwner := make(map[string]string)
	for _, inst := range file.Instances {
		if inst.ID == "" {
			fail("instance %q has no id", inst.Name)
			continue
		}
		if _, dup := snap.Instances[inst.ID]; dup {
			fail("duplicate instance id %q", inst.ID)
			continue
		}
		if _, ok := snap.FabricTypes[inst.Type]; !ok {
			fail("instance %q references unknown fabric type %q", inst.ID, inst.Type)
		}
		snap.Instances[inst.ID] = domain.Instance{ID: inst.ID, Name: inst.Name, TypeKey: inst.Type}

		local := make(map[string]bool, len(inst.Elements))
		for _, el := range inst.Elements {
			if el.ID == "" {
				fail("instance %q has an element without id", inst.ID)
				continue
			}
			if owner, dup := elementOwner[el.ID]; dup {
				fail("element instance %q declared on both %q and %q", el.ID, owner, inst.ID)
				continue
			}
			if el.Track != "" {
				if _, ok := snap.Tracks[el.Track]; !ok {
					fail("element instance %q references unknown track %q", el.ID, el.Track)
				}
			}
			elementOwner[el.ID] = inst.ID
			local[el.ID] = true
			snap.ElementInstances = append(snap.ElementInstances, domain.ElementInstance{
				ID:         el.ID,
				Name:       el.Name,
				ElementKey: el.Element,
				TypeName:   defaultString(el.TypeName, el.Element),
				TrackID:    el.Track,
				InstanceID: inst.ID,
				UserID:     el.User,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}

		if inst.StreamViewer != "" {
			if !local[inst.StreamViewer] {
				fail("instance %q stream viewer %q is not one of its elements", inst.ID, inst.StreamViewer)
			}
			snap.StreamViewers[inst.ID] = inst.StreamViewer
		}
		if inst.Console != "" {
			if !local[inst.Console] {
				fail("instance %q console %q is not one of its elements", inst.ID, inst.Console)
			}
			snap.Consoles[inst.ID] = inst.Console
		}
	}

	if errs != nil {
		return nil, errs
	}
	if len(snap.Instances) == 0 {
		return nil, fmt.Errorf("no instances found in catalog")
	}
	return snap, nil
}

// satelliteAPIURL defaults the API endpoint to https://<domain>.
func satelliteAPIURL(s SatelliteProps) string {
	if s.APIURL != "" {
		return strings.TrimRight(s.APIURL, "/")
	}
	return "https://" + s.Domain
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
