package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hifz-quiz-service/internal/domain"
)

// PageLoader fetches page content from the upstream API.
type PageLoader interface {
	LoadPage(ctx context.Context, page int) ([]domain.Ayah, error)
}

// PageRepository caches page content with TTL to avoid repeated upstream hits.
type PageRepository struct {
	loader PageLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[int]cachedPage
}

type cachedPage struct {
	ayahs     []domain.Ayah
	expiresAt time.Time
}

func NewPageRepository(loader PageLoader, ttl time.Duration) *PageRepository {
	return &PageRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int]cachedPage),
	}
}

func (r *PageRepository) LoadPage(ctx context.Context, page int) ([]domain.Ayah, error) {
	if ayahs, ok := r.cached(page); ok {
		return ayahs, nil
	}

	result, err, _ := r.sf.Do(strconv.Itoa(page), func() (interface{}, error) {
		if ayahs, ok := r.cached(page); ok {
			return ayahs, nil
		}
		ayahs, err := r.loader.LoadPage(ctx, page)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[page] = cachedPage{ayahs: ayahs, expiresAt: r.clock().Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return ayahs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Ayah), nil
}

func (r *PageRepository) cached(page int) ([]domain.Ayah, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[page]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.ayahs, true
}

func (r *PageRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPageLoader serves pages from a map (useful for tests/demos).
type StaticPageLoader struct {
	pages map[int][]domain.Ayah
}

func NewStaticPageLoader(pages map[int][]domain.Ayah) *StaticPageLoader {
	return &StaticPageLoader{pages: pages}
}

func (l *StaticPageLoader) LoadPage(_ context.Context, page int) ([]domain.Ayah, error) {
	if ayahs, ok := l.pages[page]; ok && len(ayahs) > 0 {
		return ayahs, nil
	}
	return nil, domain.ErrContentUnavailable
}
