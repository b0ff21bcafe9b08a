package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reminder-server/models"
)

const DefaultRedisKey = "reminders"

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	Key         string
	PingTimeout time.Duration
}

// RedisStore keeps every reminder as a field of one hash: id -> record.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects and pings before returning.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}

	return NewRedisStoreFromClient(rdb, cfg.Key), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Save(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	data, err := encodeRecord(r)
	if err != nil {
		return models.Reminder{}, err
	}
	if err := s.rdb.HSet(ctx, s.key, r.ID, data).Err(); err != nil {
		return models.Reminder{}, err
	}
	return r, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (models.Reminder, error) {
	data, err := s.rdb.HGet(ctx, s.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Reminder{}, ErrNotFound
	}
	if err != nil {
		return models.Reminder{}, err
	}
	return decodeRecord(data)
}

func (s *RedisStore) FindByName(ctx context.Context, name string) ([]models.Reminder, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterByName(all, name), nil
}

func (s *RedisStore) FindAll(ctx context.Context) ([]models.Reminder, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.Reminder, 0, len(fields))
	for id, data := range fields {
		r, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		out = append(out, r)
	}
	sortReminders(out)
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.HDel(ctx, s.key, id).Err()
}

func (s *RedisStore) DeleteAll(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
