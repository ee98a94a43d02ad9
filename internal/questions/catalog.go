package questions

import (
	"context"
	"log/slog"
	"sync"

	"hifz-quiz-service/internal/domain"
)

// Source fetches the questions config table.
type Source interface {
	LoadQuestions(ctx context.Context) ([]domain.QuestionConfig, error)
}

// Entry is a configured question type bound to its generator.
type Entry struct {
	domain.QuestionConfig
	Generator Generator
}

// Catalog is the set of active question types.
type Catalog struct {
	registry Registry

	mu      sync.RWMutex
	entries []Entry
}

// NewCatalog returns an empty catalog resolving ids against registry.
func NewCatalog(registry Registry) *Catalog {
	return &Catalog{registry: registry}
}

// Load replaces the active entries from src. Rows whose id has no generator
// are skipped. An empty or failing source leaves the catalog empty, which
// sessions surface as "no questions available".
func (c *Catalog) Load(ctx context.Context, src Source) {
	configs, err := src.LoadQuestions(ctx)
	if err != nil {
		slog.Warn("questions config unavailable", "error", err)
	}
	c.Set(configs)
}

// Set binds configs to generators and installs them.
func (c *Catalog) Set(configs []domain.QuestionConfig) {
	entries := make([]Entry, 0, len(configs))
	for _, cfg := range configs {
		gen, ok := c.registry[cfg.ID]
		if !ok {
			slog.Warn("skipping question type without generator", "id", cfg.ID)
			continue
		}
		entries = append(entries, Entry{QuestionConfig: cfg, Generator: gen})
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	slog.Info("question catalog loaded", "active", len(entries), "configured", len(configs))
}

// Entries returns a copy of the active entries.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// Available keeps the entries unlocked at playerLevel. The result is empty,
// not an error, when nothing qualifies.
func Available(entries []Entry, playerLevel int) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.LevelRequired <= playerLevel {
			out = append(out, e)
		}
	}
	return out
}

// Restrict keeps only the ids named by recipe. An empty recipe keeps everything.
func Restrict(entries []Entry, recipe []string) []Entry {
	if len(recipe) == 0 {
		return entries
	}
	allowed := make(map[string]struct{}, len(recipe))
	for _, id := range recipe {
		allowed[id] = struct{}{}
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := allowed[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}
