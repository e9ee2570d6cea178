package staterepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const dialogStateKeyFormat = "auth:dialog_state:%s"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo stores snapshots in Redis so dialog state survives instance
// restarts and load-balanced deployments. Every save refreshes the TTL.
type RedisRepo struct {
	client  *redis.Client
	ttl     time.Duration
	nowTime func() time.Time
}

// RedisOption modifies a RedisRepo instance.
type RedisOption func(*RedisRepo)

// WithRedisNowTime injects the clock stamped onto saved snapshots.
func WithRedisNowTime(now func() time.Time) RedisOption {
	return func(r *RedisRepo) {
		r.nowTime = now
	}
}

// NewRedisRepo creates a repo whose keys expire after ttl.
func NewRedisRepo(client *redis.Client, ttl time.Duration, options ...RedisOption) *RedisRepo {
	r := &RedisRepo{
		client:  client,
		ttl:     ttl,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *RedisRepo) Save(ctx context.Context, key string, partial Partial) error {
	storageKey := fmt.Sprintf(dialogStateKeyFormat, key)

	var base Snapshot
	raw, err := r.client.Get(ctx, storageKey).Result()
	switch {
	case err == nil:
		if unmarshalErr := json.Unmarshal([]byte(raw), &base); unmarshalErr != nil {
			// A corrupt snapshot is unrecoverable; start from empty.
			log.Warn().Err(unmarshalErr).Str("key", key).Msg("discarding corrupt dialog snapshot")
			base = Snapshot{}
		}
	case errors.Is(err, redis.Nil):
	default:
		return errors.Wrap(err, "[RedisRepo.Save] Get")
	}

	merged := Merge(base, partial)
	merged.SavedAt = r.nowTime()

	encoded, err := json.Marshal(merged)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Save] Marshal")
	}
	if err := r.client.Set(ctx, storageKey, encoded, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Save] Set")
	}
	return nil
}

func (r *RedisRepo) Load(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := r.client.Get(ctx, fmt.Sprintf(dialogStateKeyFormat, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		// A broken store degrades to "start over" rather than blocking the
		// dialog.
		log.Warn().Err(err).Str("key", key).Msg("dialog snapshot load failed")
		return nil, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dialog snapshot unmarshal failed")
		return nil, nil
	}
	return &snapshot, nil
}

func (r *RedisRepo) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, fmt.Sprintf(dialogStateKeyFormat, key)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Clear] Del")
	}
	return nil
}
