package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxOptimisticRetries bounds WATCH/MULTI retries before a write is
// reported as a conflict.
const maxOptimisticRetries = 5

// errMissing is returned by readJSON when the key does not exist.
var errMissing = errors.New("key does not exist")

// Store handles Redis persistence for routing state: element instances,
// route edges, network pairings, satellite ports, change tracking,
// pending allocations and mutation locks.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) readJSON(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errMissing
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// watchJSON runs fn inside an optimistic WATCH/MULTI transaction on key.
// fn receives the current value (exists=false when absent) and returns
// the value to write, or nil to leave the key untouched.
func watchJSON[T any](ctx context.Context, s *Store, key string, fn func(cur *T, exists bool) (*T, error)) (*T, error) {
	var written *T

	txf := func(tx *redis.Tx) error {
		var cur T
		exists := true
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return fmt.Errorf("failed to get %s: %w", key, err)
		default:
			if err := json.Unmarshal(data, &cur); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", key, err)
			}
		}

		next, err := fn(&cur, exists)
		if err != nil || next == nil {
			written = nil
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		written = next
		return err
	}

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, errConcurrentUpdate
}

var errConcurrentUpdate = errors.New("concurrent update, retries exhausted")

// Counts reports the number of stored records per kind, for diagnostics.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	keys := map[string]string{
		"element_instances":   KeyAllElements,
		"routes":              KeyAllRoutes,
		"network_pairings":    KeyAllPairings,
		"satellite_ports":     KeyAllSatPorts,
		"pending_allocations": KeyAllPending,
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(keys))
	for name, key := range keys {
		cmds[name] = pipe.SCard(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	counts := make(map[string]int64, len(cmds))
	for name, cmd := range cmds {
		counts[name] = cmd.Val()
	}
	return counts, nil
}
