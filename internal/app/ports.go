package app

import (
	"context"

	"hifz-quiz-service/internal/domain"
)

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	ActiveForPlayer(playerID string) (*Session, bool)
	Delete(sessionID string)
}

// PlayerStore loads and saves the player's profile record. EnsurePlayer
// creates a fresh profile on first sight of an id.
type PlayerStore interface {
	EnsurePlayer(ctx context.Context, playerID, username string) (domain.Player, error)
	LoadPlayer(ctx context.Context, playerID string) (domain.Player, error)
	SavePlayer(ctx context.Context, player domain.Player) error
}

// ContentSource fetches the ayahs of a page.
type ContentSource interface {
	LoadPage(ctx context.Context, page int) ([]domain.Ayah, error)
}

// LiveEventSource lists the live events currently on offer.
type LiveEventSource interface {
	LoadLiveEvents(ctx context.Context) ([]domain.LiveEvent, error)
}

// ResultStore persists completed attempts.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.QuizResult) error
}

// MasteryTracker records perfect runs per page.
type MasteryTracker interface {
	RecordMastery(ctx context.Context, playerID string, pageNumber, durationSeconds int) error
}

// QuestTracker advances daily quests on game events.
type QuestTracker interface {
	AssignedQuests(ctx context.Context, playerID string) ([]domain.Quest, error)
	UpdateProgress(ctx context.Context, playerID, eventTag string) error
}

// AchievementContext is what achievement rules are evaluated against.
type AchievementContext struct {
	IsPerfect  bool
	PageNumber int
	Player     domain.Player
}

// AchievementTracker unlocks achievements on game events.
type AchievementTracker interface {
	CheckAchievements(ctx context.Context, playerID, eventTag string, c AchievementContext) ([]domain.Achievement, error)
}

// Leaderboard ranks players by XP.
type Leaderboard interface {
	UpdateXP(ctx context.Context, player domain.Player) error
	Top(ctx context.Context, limit int) (domain.Leaderboard, error)
}
