package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// SavePendingAllocation durably records a leased port and its planned records.
func (s *Store) SavePendingAllocation(ctx context.Context, pending *domain.PendingAllocation) error {
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = s.now()
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending allocation: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, PendingKey(pending.ID), data, 0)
	pipe.SAdd(ctx, KeyAllPending, pending.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save pending allocation: %w", err)
	}
	return nil
}

// GetPendingAllocation retrieves a pending allocation by ID
func (s *Store) GetPendingAllocation(ctx context.Context, id string) (*domain.PendingAllocation, error) {
	var pending domain.PendingAllocation
	if err := s.readJSON(ctx, PendingKey(id), &pending); err != nil {
		if errors.Is(err, errMissing) {
			return nil, domain.NotFound("pending allocation", id)
		}
		return nil, err
	}
	return &pending, nil
}

// ListPendingAllocations returns every pending allocation still recorded.
func (s *Store) ListPendingAllocations(ctx context.Context) ([]*domain.PendingAllocation, error) {
	ids, err := s.client.SMembers(ctx, KeyAllPending).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending allocation IDs: %w", err)
	}

	pending := make([]*domain.PendingAllocation, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPendingAllocation(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				// Set entry outlived its record.
				s.client.SRem(ctx, KeyAllPending, id)
				continue
			}
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, nil
}

// DeletePendingAllocation removes a pending allocation. Missing records are ignored.
func (s *Store) DeletePendingAllocation(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, PendingKey(id))
	pipe.SRem(ctx, KeyAllPending, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete pending allocation: %w", err)
	}
	return nil
}
