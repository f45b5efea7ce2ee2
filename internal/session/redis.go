package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/returnflow/internal/domain"
)

const (
	sessionKeyPrefix = "session:"
	scanBatch        = 100
)

// redisStore keeps sessions as JSON values with optimistic locking through
// WATCH/MULTI/EXEC.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func newRedisStore(client *redis.Client, ttl time.Duration, now func() time.Time) *redisStore {
	return &redisStore{client: client, ttl: ttl, now: now}
}

func (s *redisStore) key(id string) string {
	return sessionKeyPrefix + id
}

func (s *redisStore) Create(ctx context.Context, data *domain.Session) error {
	now := s.now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	val, err := json.Marshal(data)
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, s.key(data.ID), val, s.ttl).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data domain.Session
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, err
	}

	// Refresh TTL on read; a failed refresh only shortens the backstop.
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return &data, nil
}

func (s *redisStore) Update(ctx context.Context, data *domain.Session) error {
	key := s.key(data.ID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored domain.Session
		if err := json.Unmarshal(val, &stored); err != nil {
			return err
		}
		if stored.Version != data.Version {
			return ErrVersionConflict
		}

		next := data.Clone()
		next.Version++
		next.UpdatedAt = s.now()
		newVal, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		if err != nil {
			if errors.Is(err, redis.TxFailedErr) {
				return ErrVersionConflict
			}
			return err
		}
		data.Version = next.Version
		data.UpdatedAt = next.UpdatedAt
		return nil
	}, key)
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *redisStore) EvictIdle(ctx context.Context, policy IdlePolicy) ([]string, error) {
	var evicted []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, removed, err := s.evictKey(ctx, key, policy)
		if err != nil {
			return evicted, err
		}
		if removed {
			evicted = append(evicted, id)
		}
	}
	return evicted, iter.Err()
}

// evictKey deletes key if it is still expired when the transaction runs. A
// concurrent update aborts the delete.
func (s *redisStore) evictKey(ctx context.Context, key string, policy IdlePolicy) (string, bool, error) {
	var id string
	removed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var stored domain.Session
		if err := json.Unmarshal(val, &stored); err != nil {
			return err
		}
		if !policy.Expired(&stored) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		id = stored.ID
		removed = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return "", false, nil
	}
	return id, removed, err
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
