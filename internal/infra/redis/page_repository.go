package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"hifz-quiz-service/internal/domain"
)

// PageLoader fetches page content from the upstream API.
type PageLoader interface {
	LoadPage(ctx context.Context, page int) ([]domain.Ayah, error)
}

// PageRepository caches page content in Redis so every instance shares one
// copy. Pages are stored as JSON under quran:page:{n}.
type PageRepository struct {
	client *redis.Client
	loader PageLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewPageRepository(client *redis.Client, loader PageLoader, ttl time.Duration) *PageRepository {
	return &PageRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PageRepository) LoadPage(ctx context.Context, page int) ([]domain.Ayah, error) {
	key := r.key(page)
	if ayahs, ok := r.cached(ctx, key); ok {
		return ayahs, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if ayahs, ok := r.cached(ctx, key); ok {
			return ayahs, nil
		}
		ayahs, err := r.loader.LoadPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(ayahs); err == nil {
			_ = r.client.Set(ctx, key, raw, ttlWithJitter(r.ttl, r.jitter)).Err()
		}
		return ayahs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Ayah), nil
}

func (r *PageRepository) cached(ctx context.Context, key string) ([]domain.Ayah, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var ayahs []domain.Ayah
	if err := json.Unmarshal(raw, &ayahs); err != nil || len(ayahs) == 0 {
		return nil, false
	}
	return ayahs, true
}

func (r *PageRepository) key(page int) string {
	return "quran:page:" + strconv.Itoa(page)
}

func (r *PageRepository) jitter(max int64) int64 {
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.rnd.Int63n(max + 1)
}

// ttlWithJitter adds up to 10% to ttl to spread expirations.
func ttlWithJitter(ttl time.Duration, jitter func(int64) int64) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(jitter(int64(ttl)/10))
}
