package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// SaveSatellitePort stores the bookkeeping record of a leased satellite port.
func (s *Store) SaveSatellitePort(ctx context.Context, port *domain.SatellitePort) error {
	if port.CreatedAt.IsZero() {
		port.CreatedAt = s.now()
	}
	data, err := json.Marshal(port)
	if err != nil {
		return fmt.Errorf("failed to marshal satellite port: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SatPortKey(port.ID), data, 0)
	pipe.SAdd(ctx, KeyAllSatPorts, port.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save satellite port: %w", err)
	}
	return nil
}

// GetSatellitePort retrieves a satellite port record by ID
func (s *Store) GetSatellitePort(ctx context.Context, id string) (*domain.SatellitePort, error) {
	var port domain.SatellitePort
	if err := s.readJSON(ctx, SatPortKey(id), &port); err != nil {
		if errors.Is(err, errMissing) {
			return nil, domain.NotFound("satellite port", id)
		}
		return nil, err
	}
	return &port, nil
}

// DeleteSatellitePort removes a satellite port record. Missing records are ignored.
func (s *Store) DeleteSatellitePort(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, SatPortKey(id))
	pipe.SRem(ctx, KeyAllSatPorts, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete satellite port: %w", err)
	}
	return nil
}
