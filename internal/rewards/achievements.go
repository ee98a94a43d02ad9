package rewards

import (
	"context"
	"time"

	"hifz-quiz-service/internal/app"
	"hifz-quiz-service/internal/domain"
)

// Achievement is a registry entry: an unlockable goal and its condition.
type Achievement struct {
	ID          string
	Name        string
	Description string
	// EventTag limits evaluation to one game event.
	EventTag  string
	Condition func(app.AchievementContext) bool
}

// AchievementStore persists unlocked achievements.
type AchievementStore interface {
	Unlocked(ctx context.Context, playerID string) (map[string]time.Time, error)
	Unlock(ctx context.Context, playerID string, achievement domain.Achievement) error
}

// AchievementEngine evaluates the registry on game events.
type AchievementEngine struct {
	store    AchievementStore
	registry []Achievement
	now      func() time.Time
}

func NewAchievementEngine(store AchievementStore) *AchievementEngine {
	return &AchievementEngine{store: store, registry: buildRegistry(), now: time.Now}
}

// Registry returns a copy of all registered achievements.
func (e *AchievementEngine) Registry() []Achievement {
	return append([]Achievement(nil), e.registry...)
}

// CheckAchievements unlocks every achievement whose condition now holds and
// returns the newly unlocked ones.
func (e *AchievementEngine) CheckAchievements(ctx context.Context, playerID, eventTag string, c app.AchievementContext) ([]domain.Achievement, error) {
	have, err := e.store.Unlocked(ctx, playerID)
	if err != nil {
		return nil, err
	}

	var unlocked []domain.Achievement
	for _, a := range e.registry {
		if a.EventTag != "" && a.EventTag != eventTag {
			continue
		}
		if _, ok := have[a.ID]; ok || !a.Condition(c) {
			continue
		}
		got := domain.Achievement{ID: a.ID, Name: a.Name, Description: a.Description, UnlockedAt: e.now()}
		if err := e.store.Unlock(ctx, playerID, got); err != nil {
			return unlocked, err
		}
		unlocked = append(unlocked, got)
	}
	return unlocked, nil
}

func buildRegistry() []Achievement {
	return []Achievement{
		{
			ID: "first_quiz", Name: "First Steps",
			Description: "Complete your first quiz",
			EventTag:    domain.EventQuizCompleted,
			Condition:   func(c app.AchievementContext) bool { return c.Player.TotalQuizzesCompleted >= 1 },
		},
		{
			ID: "perfect_run", Name: "Flawless",
			Description: "Answer every question of a quiz correctly",
			EventTag:    domain.EventQuizCompleted,
			Condition:   func(c app.AchievementContext) bool { return c.IsPerfect },
		},
		{
			ID: "ten_quizzes", Name: "Steadfast",
			Description: "Complete 10 quizzes",
			EventTag:    domain.EventQuizCompleted,
			Condition:   func(c app.AchievementContext) bool { return c.Player.TotalQuizzesCompleted >= 10 },
		},
		{
			ID: "hundred_correct", Name: "Hafiz in the Making",
			Description: "Give 100 correct answers",
			Condition:   func(c app.AchievementContext) bool { return c.Player.TotalCorrectAnswers >= 100 },
		},
		{
			ID: "beyond_free_pages", Name: "Explorer",
			Description: "Master a page beyond the free ones",
			EventTag:    domain.EventQuizCompleted,
			Condition: func(c app.AchievementContext) bool {
				return c.IsPerfect && c.PageNumber > len(domain.FreePages)
			},
		},
	}
}
