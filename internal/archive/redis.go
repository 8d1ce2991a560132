package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callcoach/backend/internal/models"
)

const (
	sessionKeyPrefix = "callcoach:session:"
	sessionsByEndKey = "callcoach:sessions:by_end"
)

// Redis keeps each session as a JSON string and indexes call ids by end time
// in a sorted set.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedis wraps a connected client. A zero ttl keeps sessions forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Save(ctx context.Context, session models.CallSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+session.CallID, payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	if !ok {
		return nil
	}
	err = r.client.ZAdd(ctx, sessionsByEndKey, redis.Z{
		Score:  float64(session.EndTime.UnixMilli()),
		Member: session.CallID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, callID string) (models.CallSession, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+callID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.CallSession{}, ErrNotFound
		}
		return models.CallSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	var s models.CallSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.CallSession{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return s, nil
}

func (r *Redis) Latest(ctx context.Context) (models.CallSession, error) {
	// Index entries can outlive expired sessions, so walk back until one loads.
	ids, err := r.client.ZRevRange(ctx, sessionsByEndKey, 0, 9).Result()
	if err != nil {
		return models.CallSession{}, fmt.Errorf("failed to read session index: %w", err)
	}
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return s, err
	}
	return models.CallSession{}, ErrNotFound
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
