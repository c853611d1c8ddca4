package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

func pairingLookupKey(p *domain.NetworkPairing) string {
	return PairingLookupKey(p.InstanceID1, p.InstanceID2, p.ElementID1, p.ElementID2)
}

// CreatePairing stores a network pairing. Only one pairing may serve a
// given (instance1, instance2, element1, element2) route.
func (s *Store) CreatePairing(ctx context.Context, pairing *domain.NetworkPairing) error {
	if pairing.CreatedAt.IsZero() {
		pairing.CreatedAt = s.now()
	}
	data, err := json.Marshal(pairing)
	if err != nil {
		return fmt.Errorf("failed to marshal network pairing: %w", err)
	}

	lookup := pairingLookupKey(pairing)
	claimed, err := s.client.SetNX(ctx, lookup, pairing.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pairing lookup: %w", err)
	}
	if !claimed {
		return domain.Conflict("network pairing for %s -> %s already exists", pairing.ElementID1, pairing.ElementID2)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, PairingKey(pairing.ID), data, 0)
	pipe.SAdd(ctx, KeyAllPairings, pairing.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(ctx, lookup)
		return fmt.Errorf("failed to save network pairing: %w", err)
	}
	return nil
}

// GetPairing retrieves a network pairing by ID
func (s *Store) GetPairing(ctx context.Context, id string) (*domain.NetworkPairing, error) {
	var pairing domain.NetworkPairing
	if err := s.readJSON(ctx, PairingKey(id), &pairing); err != nil {
		if errors.Is(err, errMissing) {
			return nil, domain.NotFound("network pairing", id)
		}
		return nil, err
	}
	return &pairing, nil
}

// FindPairing resolves the pairing serving a logical cross-instance route.
func (s *Store) FindPairing(ctx context.Context, instance1, instance2, element1, element2 string) (*domain.NetworkPairing, error) {
	id, err := s.client.Get(ctx, PairingLookupKey(instance1, instance2, element1, element2)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NotFound("network pairing", element1+" -> "+element2)
		}
		return nil, fmt.Errorf("failed to look up network pairing: %w", err)
	}
	return s.GetPairing(ctx, id)
}

// DeletePairing removes a network pairing. Deleting a missing pairing is not an error.
func (s *Store) DeletePairing(ctx context.Context, id string) error {
	pairing, err := s.GetPairing(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, PairingKey(id))
	pipe.SRem(ctx, KeyAllPairings, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete network pairing: %w", err)
	}

	if err := compareAndDelete.Run(ctx, s.client, []string{pairingLookupKey(pairing)}, id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete pairing lookup: %w", err)
	}
	return nil
}
