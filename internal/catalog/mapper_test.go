package catalog

import (
	"path/filepath"
	"strings"
	"testing"
)

func loadTestdata(t *testing.T) File {
	t.Helper()
	file, err := NewLoader(filepath.Join("testdata", "catalog.yaml")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return file
}

func TestMapperMap(t *testing.T) {
	snap, err := NewMapper().Map(loadTestdata(t))
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if len(snap.Instances) != 2 {
		t.Errorf("instances = %d, want 2", len(snap.Instances))
	}
	if len(snap.ElementInstances) != 4 {
		t.Errorf("element instances = %d, want 4", len(snap.ElementInstances))
	}
	if snap.StreamViewers["fog-a"] != "viewer-a" || snap.Consoles["fog-a"] != "console-a" {
		t.Errorf("viewer/console not mapped: %v %v", snap.StreamViewers, snap.Consoles)
	}
	if _, ok := snap.StreamViewers["fog-b"]; ok {
		t.Error("fog-b declares no stream viewer")
	}
	if got := snap.Satellites[0].APIURL; got != "https://comsat1.example.com" {
		t.Errorf("default api url = %q", got)
	}
	if got := snap.FabricTypes["2"].NetworkElementKey; got != "net-arm" {
		t.Errorf("fabric type 2 network element = %q, want net-arm", got)
	}

	for _, el := range snap.ElementInstances {
		if el.ID == "sensor-a" && el.TypeName != "temp-sensor" {
			t.Errorf("type name should default to element key, got %q", el.TypeName)
		}
		if el.ID == "store-b" && el.InstanceID != "fog-b" {
			t.Errorf("store-b placed on %q", el.InstanceID)
		}
	}
}

func TestMapperReportsAllProblems(t *testing.T) {
	file := File{
		FabricTypes: []FabricTypeProps{{Key: "1", Name: "x86", NetworkElement: "missing-net"}},
		Instances: []InstanceProps{
			{ID: "fog-a", Type: "9", StreamViewer: "ghost"},
			{ID: "fog-a", Type: "1"},
		},
	}

	_, err := NewMapper().Map(file)
	if err == nil {
		t.Fatal("Map() should fail")
	}

	msg := err.Error()
	for _, want := range []string{"missing-net", "unknown fabric type", "ghost", "duplicate instance"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestMapperRejectsElementOnTwoInstances(t *testing.T) {
	file := File{
		NetworkElements: []NetworkElementProps{{Key: "net"}},
		FabricTypes:     []FabricTypeProps{{Key: "1", NetworkElement: "net"}},
		Instances: []InstanceProps{
			{ID: "fog-a", Type: "1", Elements: []ElementProps{{ID: "el-1", Element: "e"}}},
			{ID: "fog-b", Type: "1", Elements: []ElementProps{{ID: "el-1", Element: "e"}}},
		},
	}

	if _, err := NewMapper().Map(file); err == nil {
		t.Error("Map() should reject an element declared twice")
	}
}

func TestMapperEmptyCatalog(t *testing.T) {
	if _, err := NewMapper().Map(File{}); err == nil {
		t.Error("Map() should fail on a catalog without instances")
	}
}
