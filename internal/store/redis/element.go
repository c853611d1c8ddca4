package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// SaveElementInstance stores an element instance, overwriting any previous value.
func (s *Store) SaveElementInstance(ctx context.Context, el *domain.ElementInstance) error {
	now := s.now()
	if el.CreatedAt.IsZero() {
		el.CreatedAt = now
	}
	el.UpdatedAt = now

	data, err := json.Marshal(el)
	if err != nil {
		return fmt.Errorf("failed to marshal element instance: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, ElementKey(el.ID), data, 0)
	pipe.SAdd(ctx, KeyAllElements, el.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save element instance: %w", err)
	}
	return nil
}

// GetElementInstance retrieves an element instance by ID
func (s *Store) GetElementInstance(ctx context.Context, id string) (*domain.ElementInstance, error) {
	var el domain.ElementInstance
	if err := s.readJSON(ctx, ElementKey(id), &el); err != nil {
		if errors.Is(err, errMissing) {
			return nil, domain.NotFound("element instance", id)
		}
		return nil, err
	}
	return &el, nil
}

// DeleteElementInstance removes an element instance. Deleting a missing
// element instance is not an error.
func (s *Store) DeleteElementInstance(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, ElementKey(id))
	pipe.SRem(ctx, KeyAllElements, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete element instance: %w", err)
	}
	return nil
}

// MarkRebuild flags an element instance for rebuild and bumps its rebuild
// version. The update is optimistic: a concurrent writer forces a retry,
// and exhausted retries surface as a conflict.
func (s *Store) MarkRebuild(ctx context.Context, id string) (*domain.ElementInstance, error) {
	updated, err := watchJSON(ctx, s, ElementKey(id), func(cur *domain.ElementInstance, exists bool) (*domain.ElementInstance, error) {
		if !exists {
			return nil, domain.NotFound("element instance", id)
		}
		cur.Rebuild = true
		cur.RebuildVersion++
		cur.UpdatedAt = s.now()
		return cur, nil
	})
	if errors.Is(err, errConcurrentUpdate) {
		return nil, domain.Conflict("element instance %q changed concurrently", id)
	}
	return updated, err
}

// SeedElementInstances upserts catalog element instances. Catalog fields
// are refreshed while rebuild state of existing records is preserved.
// It returns how many records were newly created.
func (s *Store) SeedElementInstances(ctx context.Context, elements []domain.ElementInstance) (int, error) {
	created := 0
	for i := range elements {
		incoming := elements[i]
		isNew := false
		_, err := watchJSON(ctx, s, ElementKey(incoming.ID), func(cur *domain.ElementInstance, exists bool) (*domain.ElementInstance, error) {
			isNew = !exists
			if !exists {
				incoming.CreatedAt = s.now()
				incoming.UpdatedAt = incoming.CreatedAt
				return &incoming, nil
			}
			if cur.Name == incoming.Name && cur.ElementKey == incoming.ElementKey &&
				cur.TypeName == incoming.TypeName && cur.TrackID == incoming.TrackID &&
				cur.InstanceID == incoming.InstanceID && cur.UserID == incoming.UserID {
				return nil, nil
			}
			cur.Name = incoming.Name
			cur.ElementKey = incoming.ElementKey
			cur.TypeName = incoming.TypeName
			cur.TrackID = incoming.TrackID
			cur.InstanceID = incoming.InstanceID
			cur.UserID = incoming.UserID
			cur.UpdatedAt = s.now()
			return cur, nil
		})
		if err != nil {
			return created, fmt.Errorf("failed to seed element instance %s: %w", incoming.ID, err)
		}
		if isNew {
			created++
		}
		if err := s.client.SAdd(ctx, KeyAllElements, incoming.ID).Err(); err != nil {
			return created, fmt.Errorf("failed to index element instance %s: %w", incoming.ID, err)
		}
	}
	return created, nil
}
