package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/index"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
	"github.com/MrSnakeDoc/fogroute/internal/orchestrator"
)

// Routes is the route orchestration surface exposed over HTTP.
type Routes interface {
	CreateRoute(ctx context.Context, req orchestrator.CreateRequest) (*orchestrator.CreateResult, error)
	DeleteRoute(ctx context.Context, req orchestrator.DeleteRequest) (*orchestrator.DeleteResult, error)
	RoutingTable(ctx context.Context, instanceID string) ([]domain.ContainerRoutes, error)
}

// ChangeReader reads the change markers of an instance.
type ChangeReader interface {
	Get(ctx context.Context, instanceID string) (*domain.ChangeTracking, error)
}

// StateStore is the view of the Redis store the health endpoints need.
type StateStore interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (map[string]int64, error)
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS  []string         // networks allowed on readyz, infra, reload and metrics
	TrustProxy    bool             // true if running behind a trusted reverse proxy
	CatalogFile   string           // path to the fabric catalog
	Store         StateStore
	Directory     *index.Directory
	Routes        Routes
	Changes       ChangeReader
	Metrics       *metrics.Metrics
	ReloadTrigger chan struct{} // manual catalog reload
}

// Now returns the current time from TimeNow, or time.Now when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
