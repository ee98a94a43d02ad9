package progression

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"hifz-quiz-service/internal/domain"
)

const (
	defaultXPPerCorrectAnswer = 10
	defaultXPBonusAllCorrect  = 50
)

// Source fetches the progression settings row. A nil result means "not configured".
type Source interface {
	LoadProgression(ctx context.Context) (*domain.ProgressionSettings, error)
}

// Rules are the XP constants applied by quiz sessions.
type Rules struct {
	XPPerCorrectAnswer int
	XPBonusAllCorrect  int
}

// Engine holds the process-wide progression config. It is loaded once and
// read-only afterwards.
type Engine struct {
	mu          sync.RWMutex
	initialized bool
	levels      []domain.Level
	rewards     []domain.QuestionCountReward
	rules       Rules
}

// NewEngine returns an uninitialized engine carrying the built-in defaults.
func NewEngine() *Engine {
	return &Engine{rules: Rules{
		XPPerCorrectAnswer: defaultXPPerCorrectAnswer,
		XPBonusAllCorrect:  defaultXPBonusAllCorrect,
	}}
}

// NewEngineWithSettings returns an engine already initialized from settings.
func NewEngineWithSettings(settings domain.ProgressionSettings) *Engine {
	e := NewEngine()
	e.apply(&settings)
	e.initialized = true
	return e
}

// Initialize loads the config from src once. Fetch failures and empty payloads
// keep the defaults; the engine is marked initialized either way.
func (e *Engine) Initialize(ctx context.Context, src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return
	}
	e.initialized = true

	settings, err := src.LoadProgression(ctx)
	if err != nil {
		slog.Warn("progression config unavailable, using defaults", "error", err)
		return
	}
	if settings == nil {
		slog.Warn("progression config empty, using defaults")
		return
	}
	e.apply(settings)
	slog.Info("progression config loaded", "levels", len(e.levels), "question_rewards", len(e.rewards))
}

func (e *Engine) apply(settings *domain.ProgressionSettings) {
	e.levels = append([]domain.Level(nil), settings.Levels...)
	sort.SliceStable(e.levels, func(i, j int) bool { return e.levels[i].Level < e.levels[j].Level })
	e.rewards = append([]domain.QuestionCountReward(nil), settings.QuestionRewards...)
	sort.SliceStable(e.rewards, func(i, j int) bool { return e.rewards[i].Level < e.rewards[j].Level })

	e.rules.XPPerCorrectAnswer = settings.XPPerCorrectAnswer
	if e.rules.XPPerCorrectAnswer == 0 {
		e.rules.XPPerCorrectAnswer = defaultXPPerCorrectAnswer
	}
	e.rules.XPBonusAllCorrect = settings.XPBonusAllCorrect
	if e.rules.XPBonusAllCorrect == 0 {
		e.rules.XPBonusAllCorrect = defaultXPBonusAllCorrect
	}
}

// Initialized reports whether Initialize has run.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Rules returns the XP constants.
func (e *Engine) Rules() Rules {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// Levels returns a copy of the level table.
func (e *Engine) Levels() []domain.Level {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Level(nil), e.levels...)
}
