package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/fogroute/internal/catalog"
	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/index"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
	"github.com/MrSnakeDoc/fogroute/internal/orchestrator"
)

type fakeRoutes struct {
	createErr error
	deleteErr error
	gotCreate orchestrator.CreateRequest
	gotDelete orchestrator.DeleteRequest
	table     []domain.ContainerRoutes
}

func (f *fakeRoutes) CreateRoute(_ context.Context, req orchestrator.CreateRequest) (*orchestrator.CreateResult, error) {
	f.gotCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &orchestrator.CreateResult{ElementID: req.DestinationElementID, InstanceID: req.DestinationInstanceID}, nil
}

func (f *fakeRoutes) DeleteRoute(_ context.Context, req orchestrator.DeleteRequest) (*orchestrator.DeleteResult, error) {
	f.gotDelete = req
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &orchestrator.DeleteResult{PublishingElementID: req.PublishingElementID, Warning: "port not closed"}, nil
}

func (f *fakeRoutes) RoutingTable(_ context.Context, instanceID string) ([]domain.ContainerRoutes, error) {
	if instanceID != "fog-a" {
		return nil, domain.NotFound("instance", instanceID)
	}
	return f.table, nil
}

type fakeChanges map[string]map[domain.ChangeCategory]int64

func (f fakeChanges) Get(_ context.Context, id string) (*domain.ChangeTracking, error) {
	return &domain.ChangeTracking{InstanceID: id, Markers: f[id]}, nil
}

type fakeStore struct{ pingErr error }

func (f fakeStore) Ping(context.Context) error { return f.pingErr }

func (f fakeStore) Counts(context.Context) (map[string]int64, error) {
	return map[string]int64{"routes": 3}, nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newDeps(routes *fakeRoutes) deps.Deps {
	dir := index.NewDirectory(nil)
	dir.Update(&catalog.Snapshot{
		Instances: map[string]domain.Instance{"fog-a": {ID: "fog-a", Name: "Factory gateway"}},
		LoadedAt:  fixedNow,
	})
	return deps.Deps{
		Logger:        logger.NewNop(),
		StartTime:     fixedNow.Add(-time.Minute),
		Version:       "test",
		TimeNow:       func() time.Time { return fixedNow },
		Store:         fakeStore{},
		Directory:     dir,
		Routes:        routes,
		Changes:       fakeChanges{"fog-a": {domain.ChangeRouting: 42}},
		Metrics:       metrics.New(),
		ReloadTrigger: make(chan struct{}, 1),
	}
}

func serve(t *testing.T, d deps.Deps, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.1.2.3:4567"
	rec := httptest.NewRecorder()
	NewRouter(5*time.Second, d).ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestCreateRouteEndpoint(t *testing.T) {
	routes := &fakeRoutes{}
	d := newDeps(routes)

	body := `{"userId":"user-1","publishingInstanceId":"fog-a","publishingElementId":"sensor-a",
		"destinationInstanceId":"fog-b","destinationElementId":"store-b","publishingTrackId":"track-1"}`
	rec, out := serve(t, d, http.MethodPost, "/api/v2/authoring/element/instance/route/create", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, float64(fixedNow.UnixMilli()), out["timestamp"])
	route := out["route"].(map[string]any)
	assert.Equal(t, "store-b", route["elementId"])
	assert.NotContains(t, route, "warning")
	assert.Equal(t, "track-1", routes.gotCreate.PublishingTrackID)
}

func TestCreateRouteErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.NotFound("instance", "fog-z"), http.StatusNotFound},
		{"validation", domain.Validation("missing required fields: userId"), http.StatusBadRequest},
		{"conflict", domain.Conflict("route exists"), http.StatusConflict},
		{"authorization", domain.Unauthorized("user unknown"), http.StatusUnauthorized},
		{"allocation", domain.Allocation("No Satellite defined", nil), http.StatusBadGateway},
		{"internal", errors.New("redis: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps(&fakeRoutes{createErr: tt.err})
			rec, out := serve(t, d, http.MethodPost, "/api/v2/authoring/element/instance/route/create", `{}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "failure", out["status"])
			assert.NotEmpty(t, out["errormessage"])
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", out["errormessage"])
			}
		})
	}
}

func TestCreateRouteRejectsBadJSON(t *testing.T) {
	d := newDeps(&fakeRoutes{})
	rec, out := serve(t, d, http.MethodPost, "/api/v2/authoring/element/instance/route/create", `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "failure", out["status"])
}

func TestDeleteRouteAcceptsLooseBooleans(t *testing.T) {
	for _, raw := range []string{`true`, `1`, `"true"`, `"1"`} {
		routes := &fakeRoutes{}
		d := newDeps(routes)
		body := `{"userId":"user-1","publishingInstanceId":"fog-a","destinationInstanceId":"fog-b",
			"publishingElementId":"sensor-a","destinationElementId":"store-b","isNetworkConnection":` + raw + `}`

		rec, out := serve(t, d, http.MethodPost, "/api/v2/authoring/element/instance/route/delete", body)
		require.Equal(t, http.StatusOK, rec.Code, raw)
		assert.True(t, routes.gotDelete.IsNetworkConnection, raw)
		assert.Equal(t, "fog-b", routes.gotDelete.DestinationInstanceID)

		route := out["route"].(map[string]any)
		assert.Equal(t, "sensor-a", route["publishingelementid"])
		assert.Equal(t, "port not closed", route["warning"])
	}

	d := newDeps(&fakeRoutes{})
	rec, _ := serve(t, d, http.MethodPost, "/api/v2/authoring/element/instance/route/delete", `{"isNetworkConnection":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutingTableEndpoint(t *testing.T) {
	routes := &fakeRoutes{table: []domain.ContainerRoutes{{Container: "sensor-a", Receivers: []string{"viewer", "debug"}}}}
	d := newDeps(routes)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec, out := serve(t, d, method, "/api/v2/instance/routing/id/fog-a", "")
		require.Equal(t, http.StatusOK, rec.Code, method)
		table := out["routing"].([]any)
		require.Len(t, table, 1)
		assert.Equal(t, "sensor-a", table[0].(map[string]any)["container"])
	}

	rec, out := serve(t, d, http.MethodGet, "/api/v2/instance/routing/id/fog-z", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "failure", out["status"])
}

func TestChangesEndpoint(t *testing.T) {
	d := newDeps(&fakeRoutes{})

	rec, out := serve(t, d, http.MethodGet, "/api/v2/instance/changes/id/fog-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), out["changes"].(map[string]any)["routing"])

	rec, _ = serve(t, d, http.MethodGet, "/api/v2/instance/changes/id/fog-z", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	d := newDeps(&fakeRoutes{})

	rec, out := serve(t, d, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(60), out["uptime_seconds"])

	rec, out = serve(t, d, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ready"])

	rec, out = serve(t, d, http.MethodGet, "/infra", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operational", out["mode"])

	d.Store = fakeStore{pingErr: errors.New("connection refused")}
	rec, _ = serve(t, d, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	_, out = serve(t, d, http.MethodGet, "/infra", "")
	assert.Equal(t, "critical", out["mode"])

	rec, _ = serve(t, d, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpointsHonourCIDRs(t *testing.T) {
	d := newDeps(&fakeRoutes{})
	d.AllowedCIDRS = []string{"192.168.0.0/16"}

	for _, path := range []string{"/readyz", "/infra", "/metrics"} {
		rec, _ := serve(t, d, http.MethodGet, path, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec, _ := serve(t, d, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReloadEndpoint(t *testing.T) {
	d := newDeps(&fakeRoutes{})

	rec, _ := serve(t, d, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = serve(t, d, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	<-d.ReloadTrigger
	rec, _ = serve(t, d, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
