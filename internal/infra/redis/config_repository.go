package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"hifz-quiz-service/internal/domain"
)

// ConfigLoader reads the game configuration tables.
type ConfigLoader interface {
	LoadProgression(ctx context.Context) (*domain.ProgressionSettings, error)
	LoadQuestions(ctx context.Context) ([]domain.QuestionConfig, error)
	LoadLiveEvents(ctx context.Context) ([]domain.LiveEvent, error)
}

// ConfigRepository caches the configuration tables in one Redis hash:
//
//	HSET game:config progression {json} questions {json} live_events {json}
//
// and falls back to the loader on a miss.
type ConfigRepository struct {
	client *redis.Client
	loader ConfigLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const (
	configKey        = "game:config"
	fieldProgression = "progression"
	fieldQuestions   = "questions"
	fieldLiveEvents  = "live_events"
)

func NewConfigRepository(client *redis.Client, loader ConfigLoader, ttl time.Duration) *ConfigRepository {
	return &ConfigRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ConfigRepository) LoadProgression(ctx context.Context) (*domain.ProgressionSettings, error) {
	var out *domain.ProgressionSettings
	err := r.load(ctx, fieldProgression, &out, func() (interface{}, error) {
		return r.loader.LoadProgression(ctx)
	})
	return out, err
}

func (r *ConfigRepository) LoadQuestions(ctx context.Context) ([]domain.QuestionConfig, error) {
	var out []domain.QuestionConfig
	err := r.load(ctx, fieldQuestions, &out, func() (interface{}, error) {
		return r.loader.LoadQuestions(ctx)
	})
	return out, err
}

func (r *ConfigRepository) LoadLiveEvents(ctx context.Context) ([]domain.LiveEvent, error) {
	var out []domain.LiveEvent
	err := r.load(ctx, fieldLiveEvents, &out, func() (interface{}, error) {
		return r.loader.LoadLiveEvents(ctx)
	})
	return out, err
}

// Invalidate drops the cached tables so the next read hits the loader.
func (r *ConfigRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, configKey).Err()
}

func (r *ConfigRepository) load(ctx context.Context, field string, dst interface{}, fetch func() (interface{}, error)) error {
	if raw, err := r.client.HGet(ctx, configKey, field).Bytes(); err == nil {
		if err := json.Unmarshal(raw, dst); err == nil {
			return nil
		}
	}

	result, err, _ := r.sf.Do(field, func() (interface{}, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		pipe := r.client.Pipeline()
		pipe.HSet(ctx, configKey, field, raw)
		if ttl := ttlWithJitter(r.ttl, r.jitter); ttl > 0 {
			pipe.Expire(ctx, configKey, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dst)
}

func (r *ConfigRepository) jitter(max int64) int64 {
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.rnd.Int63n(max + 1)
}
