package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// SetChangeMarkers writes generation markers for the given categories of an instance.
func (s *Store) SetChangeMarkers(ctx context.Context, instanceID string, markers map[domain.ChangeCategory]int64) error {
	if len(markers) == 0 {
		return nil
	}
	values := make([]any, 0, len(markers)*2)
	for category, marker := range markers {
		values = append(values, string(category), marker)
	}
	if err := s.client.HSet(ctx, ChangesKey(instanceID), values...).Err(); err != nil {
		return fmt.Errorf("failed to update change tracking: %w", err)
	}
	return nil
}

// GetChangeTracking returns the markers of an instance. An instance that
// never changed has an empty marker map.
func (s *Store) GetChangeTracking(ctx context.Context, instanceID string) (*domain.ChangeTracking, error) {
	raw, err := s.client.HGetAll(ctx, ChangesKey(instanceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get change tracking: %w", err)
	}

	tracking := &domain.ChangeTracking{
		InstanceID: instanceID,
		Markers:    make(map[domain.ChangeCategory]int64, len(raw)),
	}
	for field, value := range raw {
		marker, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid change marker %s=%q: %w", field, value, err)
		}
		tracking.Markers[domain.ChangeCategory(field)] = marker
	}
	return tracking, nil
}
