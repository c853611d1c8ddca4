package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/fogroute/internal/index"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
	redisstore "github.com/MrSnakeDoc/fogroute/internal/store/redis"
)

const catalogV1 = `
fabricTypes:
  - key: "1"
    name: Linux
    networkElement: net
networkElements:
  - key: net
    name: Networking Tool
instances:
  - id: fog-a
    name: Factory gateway
    type: "1"
    elements:
      - id: sensor-a
        name: Temperature sensor
        element: temp-sensor
`

const catalogV2 = catalogV1 + `
  - id: fog-b
    name: Warehouse gateway
    type: "1"
`

func newReloader(t *testing.T, path string) (*CatalogReloader, *index.Directory, *redisstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewStore(client)
	dir := index.NewDirectory(store)
	r := NewCatalogReloader(path, store, dir, metrics.New(), logger.NewNop(), time.Hour, make(chan struct{}))
	return r, dir, store
}

func TestCatalogReloader_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogV1), 0o600); err != nil {
		t.Fatal(err)
	}

	r, dir, store := newReloader(t, path)
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if dir.Count() != 1 {
		t.Errorf("expected 1 instance, got %d", dir.Count())
	}
	el, err := store.GetElementInstance(ctx, "sensor-a")
	if err != nil {
		t.Fatalf("element not seeded: %v", err)
	}
	if el.InstanceID != "fog-a" {
		t.Errorf("expected element on fog-a, got %q", el.InstanceID)
	}

	if err := os.WriteFile(path, []byte(catalogV2), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("second Reload failed: %v", err)
	}
	if _, err := dir.GetInstance("fog-b"); err != nil {
		t.Errorf("new instance not visible: %v", err)
	}
}

func TestCatalogReloader_BadFileKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogV1), 0o600); err != nil {
		t.Fatal(err)
	}

	r, dir, _ := newReloader(t, path)
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	broken := catalogV1 + "\n  - id: fog-c\n    type: \"missing\"\n"
	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(ctx); err == nil {
		t.Fatal("expected reload of a broken catalog to fail")
	}
	if _, err := dir.GetInstance("fog-a"); err != nil {
		t.Errorf("previous snapshot lost: %v", err)
	}
}

func TestCatalogReloader_StartFailsWithoutFile(t *testing.T) {
	r, _, _ := newReloader(t, filepath.Join(t.TempDir(), "missing.yaml"))
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when the catalog cannot be read")
	}
}
