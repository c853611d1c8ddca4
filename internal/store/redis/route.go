package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

func routeLookupKey(r *domain.Route) string {
	return RouteLookupKey(r.PublishingInstanceID, r.DestinationInstanceID, r.PublishingElementID, r.DestinationElementID)
}

// CreateRoute stores a route edge. An edge with the same four endpoints
// already present is reported as a conflict.
func (s *Store) CreateRoute(ctx context.Context, route *domain.Route) error {
	if route.CreatedAt.IsZero() {
		route.CreatedAt = s.now()
	}
	data, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}

	lookup := routeLookupKey(route)
	claimed, err := s.client.SetNX(ctx, lookup, route.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim route lookup: %w", err)
	}
	if !claimed {
		return domain.Conflict("route %s -> %s already exists", route.PublishingElementID, route.DestinationElementID)
	}

	seq, err := s.client.Incr(ctx, KeyRouteSeq).Result()
	if err != nil {
		s.client.Del(ctx, lookup)
		return fmt.Errorf("failed to allocate route sequence: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, RouteKey(route.ID), data, 0)
	pipe.ZAdd(ctx, InstanceRoutesKey(route.PublishingInstanceID), redis.Z{Score: float64(seq), Member: route.ID})
	pipe.SAdd(ctx, KeyAllRoutes, route.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(ctx, lookup)
		return fmt.Errorf("failed to save route: %w", err)
	}
	return nil
}

// GetRoute retrieves a route edge by ID
func (s *Store) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	var route domain.Route
	if err := s.readJSON(ctx, RouteKey(id), &route); err != nil {
		if errors.Is(err, errMissing) {
			return nil, domain.NotFound("route", id)
		}
		return nil, err
	}
	return &route, nil
}

// FindRoute looks an edge up by its endpoints.
func (s *Store) FindRoute(ctx context.Context, pubInstance, destInstance, pubElement, destElement string) (*domain.Route, error) {
	id, err := s.client.Get(ctx, RouteLookupKey(pubInstance, destInstance, pubElement, destElement)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NotFound("route", pubElement+" -> "+destElement)
		}
		return nil, fmt.Errorf("failed to look up route: %w", err)
	}
	return s.GetRoute(ctx, id)
}

// ListRoutesByPublishingInstance returns the edges published from an
// instance in creation order.
func (s *Store) ListRoutesByPublishingInstance(ctx context.Context, instanceID string) ([]domain.Route, error) {
	ids, err := s.client.ZRange(ctx, InstanceRoutesKey(instanceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instance routes: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Route{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = RouteKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load instance routes: %w", err)
	}

	routes := make([]domain.Route, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry outlived its record; skip it.
			continue
		}
		var route domain.Route
		if err := json.Unmarshal([]byte(raw), &route); err != nil {
			return nil, fmt.Errorf("failed to unmarshal route %s: %w", ids[i], err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// DeleteRoute removes a route edge and its indexes. Deleting a missing
// route is not an error.
func (s *Store) DeleteRoute(ctx context.Context, id string) error {
	route, err := s.GetRoute(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, RouteKey(id))
	pipe.ZRem(ctx, InstanceRoutesKey(route.PublishingInstanceID), id)
	pipe.SRem(ctx, KeyAllRoutes, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}

	// Only drop the lookup if it still points at this edge.
	if err := compareAndDelete.Run(ctx, s.client, []string{routeLookupKey(route)}, id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete route lookup: %w", err)
	}
	return nil
}
