package index

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/catalog"
	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

type fakeElements map[string]*domain.ElementInstance

func (f fakeElements) GetElementInstance(_ context.Context, id string) (*domain.ElementInstance, error) {
	if el, ok := f[id]; ok {
		return el, nil
	}
	return nil, domain.NotFound("element instance", id)
}

func testSnapshot() *catalog.Snapshot {
	return &catalog.Snapshot{
		Users:     map[string]domain.User{"user-1": {ID: "user-1"}},
		Instances: map[string]domain.Instance{"fog-a": {ID: "fog-a", Name: "Factory", TypeKey: "1"}},
		FabricTypes: map[string]domain.FabricType{
			"1": {Key: "1", NetworkElementKey: "net-x86"},
			"9": {Key: "9", NetworkElementKey: "missing"},
		},
		NetworkElements: map[string]domain.NetworkElement{"net-x86": {Key: "net-x86", Name: "Networking Tool"}},
		Satellites:      []domain.Satellite{{ID: "sat-1", Domain: "comsat1.example.com"}},
		Tracks:          map[string]domain.Track{"track-1": {ID: "track-1", Name: "pipeline"}},
		StreamViewers:   map[string]string{"fog-a": "viewer-a"},
		Consoles:        map[string]string{"fog-a": "console-a"},
		LoadedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewDirectoryIsEmpty(t *testing.T) {
	dir := NewDirectory(fakeElements{})
	if dir.Count() != 0 {
		t.Errorf("Count() = %d, want 0", dir.Count())
	}
	if _, err := dir.GetInstance("fog-a"); !domain.IsNotFound(err) {
		t.Errorf("GetInstance() on empty directory error = %v, want not found", err)
	}
	if !dir.GetLastReload().IsZero() {
		t.Error("GetLastReload() should be zero before the first update")
	}
}

func TestDirectoryLookups(t *testing.T) {
	dir := NewDirectory(fakeElements{"el-1": {ID: "el-1"}})
	dir.Update(testSnapshot())

	tests := []struct {
		name    string
		lookup  func() error
		wantErr bool
	}{
		{"known user", func() error { _, err := dir.GetUser("user-1"); return err }, false},
		{"unknown user", func() error { _, err := dir.GetUser("nobody"); return err }, true},
		{"known instance", func() error { _, err := dir.GetInstance("fog-a"); return err }, false},
		{"unknown instance", func() error { _, err := dir.GetInstance("fog-z"); return err }, true},
		{"known track", func() error { _, err := dir.GetTrack("track-1"); return err }, false},
		{"known template", func() error { _, err := dir.GetNetworkElementTemplate("1"); return err }, false},
		{"unknown fabric type", func() error { _, err := dir.GetNetworkElementTemplate("7"); return err }, true},
		{"dangling template", func() error { _, err := dir.GetNetworkElementTemplate("9"); return err }, true},
		{"known satellite", func() error { _, err := dir.GetSatellite("sat-1"); return err }, false},
		{"unknown satellite", func() error { _, err := dir.GetSatellite("sat-9"); return err }, true},
		{"stored element", func() error { _, err := dir.GetElementInstance(context.Background(), "el-1"); return err }, false},
		{"missing element", func() error { _, err := dir.GetElementInstance(context.Background(), "el-9"); return err }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lookup()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !domain.IsNotFound(err) {
				t.Errorf("error kind = %v, want not found", domain.KindOf(err))
			}
		})
	}

	if got := dir.StreamViewerElementID("fog-a"); got != "viewer-a" {
		t.Errorf("StreamViewerElementID() = %q", got)
	}
	if got := dir.ConsoleElementID("fog-b"); got != "" {
		t.Errorf("ConsoleElementID() for unknown instance = %q, want empty", got)
	}
	if got := dir.GetLastReload(); !got.Equal(testSnapshot().LoadedAt) {
		t.Errorf("GetLastReload() = %v", got)
	}
}

func TestUpdateReplacesSnapshot(t *testing.T) {
	dir := NewDirectory(fakeElements{})
	dir.Update(testSnapshot())

	next := testSnapshot()
	next.Instances = map[string]domain.Instance{"fog-b": {ID: "fog-b"}}
	dir.Update(next)

	if _, err := dir.GetInstance("fog-a"); err == nil {
		t.Error("fog-a should be gone after update")
	}
	if _, err := dir.GetInstance("fog-b"); err != nil {
		t.Errorf("fog-b lookup error = %v", err)
	}
}

func TestListSatellitesReturnsCopy(t *testing.T) {
	dir := NewDirectory(fakeElements{})
	dir.Update(testSnapshot())

	sats := dir.ListSatellites()
	sats[0].ID = "tampered"

	if dir.ListSatellites()[0].ID != "sat-1" {
		t.Error("ListSatellites() must not expose the snapshot slice")
	}
}

func TestConcurrentAccess(t *testing.T) {
	dir := NewDirectory(fakeElements{})
	dir.Update(testSnapshot())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = dir.GetInstance("fog-a")
			_ = dir.ListSatellites()
		}()
		go func() {
			defer wg.Done()
			dir.Update(testSnapshot())
		}()
	}
	wg.Wait()

	if dir.Count() != 1 {
		t.Errorf("Count() = %d, want 1", dir.Count())
	}
}
