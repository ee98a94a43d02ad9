package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/progression"
)

// Snapshot is the session data the finalizer works from.
type Snapshot struct {
	SessionID      string
	PlayerID       string
	UserName       string
	PageNumber     int
	Narrator       string
	Score          int
	TotalQuestions int
	XPEarned       int
	ErrorLog       []domain.ErrorEntry
	StartTime      time.Time
	LiveEvent      *domain.LiveEvent
	Quest          *domain.Quest
}

// Outcome is what a completed session produced.
type Outcome struct {
	Delta           domain.StatisticsDelta `json:"delta"`
	LevelUp         *domain.LevelUpEvent   `json:"levelUp,omitempty"`
	Level           domain.LevelInfo       `json:"level"`
	Perfect         bool                   `json:"perfect"`
	Score           int                    `json:"score"`
	TotalQuestions  int                    `json:"totalQuestions"`
	DurationSeconds int                    `json:"durationSeconds"`
	ErrorLog        []domain.ErrorEntry    `json:"errorLog"`
	Review          bool                   `json:"review"`
	Achievements    []domain.Achievement   `json:"achievements,omitempty"`
}

// Settle computes the rewards of a finished session and returns the updated
// player. It has no side effects.
func Settle(player domain.Player, snap Snapshot, engine *progression.Engine, now time.Time) (domain.Player, Outcome) {
	duration := int(now.Sub(snap.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}
	perfect := snap.TotalQuestions > 0 && snap.Score == snap.TotalQuestions

	delta := domain.StatisticsDelta{
		QuizzesCompleted:  1,
		PlayTimeSeconds:   duration,
		CorrectAnswers:    snap.Score,
		QuestionsAnswered: snap.TotalQuestions,
		XPEarned:          snap.XPEarned,
	}
	if perfect {
		delta.XPEarned += engine.Rules().XPBonusAllCorrect
		if snap.LiveEvent != nil {
			delta.DiamondsEarned += snap.LiveEvent.RewardDiamonds
		}
	}

	levelUp := engine.DetectLevelUp(player.XP, player.XP+delta.XPEarned)
	if levelUp != nil {
		delta.DiamondsEarned += levelUp.DiamondReward
	}

	updated := player.Apply(delta)
	updated.UpdatedAt = now

	errs := append([]domain.ErrorEntry(nil), snap.ErrorLog...)
	return updated, Outcome{
		Delta:           delta,
		LevelUp:         levelUp,
		Level:           engine.ResolveLevel(updated.XP),
		Perfect:         perfect,
		Score:           snap.Score,
		TotalQuestions:  snap.TotalQuestions,
		DurationSeconds: duration,
		ErrorLog:        errs,
		Review:          len(errs) > 0,
	}
}

// Collaborators are the side-effect targets of the finalizer. Any of them may
// be nil, in which case that step is skipped.
type Collaborators struct {
	Players      PlayerStore
	Results      ResultStore
	Mastery      MasteryTracker
	Quests       QuestTracker
	Achievements AchievementTracker
	Leaderboard  Leaderboard
}

// Finalizer settles completed sessions and pushes the results to storage.
type Finalizer struct {
	engine *progression.Engine
	deps   Collaborators
	now    func() time.Time
}

func NewFinalizer(engine *progression.Engine, deps Collaborators) *Finalizer {
	return NewFinalizerWithClock(engine, deps, time.Now)
}

// NewFinalizerWithClock is used by tests for deterministic durations.
func NewFinalizerWithClock(engine *progression.Engine, deps Collaborators, now func() time.Time) *Finalizer {
	return &Finalizer{engine: engine, deps: deps, now: now}
}

// Finalize settles snap against the freshest copy of the player and records
// the result. Collaborator failures are logged and never returned.
func (f *Finalizer) Finalize(ctx context.Context, fallback domain.Player, snap Snapshot) Outcome {
	player := fallback
	if f.deps.Players != nil {
		if fresh, err := f.deps.Players.LoadPlayer(ctx, snap.PlayerID); err == nil {
			player = fresh
		} else {
			slog.Warn("reload player before finalize", "player", snap.PlayerID, "error", err)
		}
	}

	completedAt := f.now()
	updated, outcome := Settle(player, snap, f.engine, completedAt)
	log := slog.With("session", snap.SessionID, "player", snap.PlayerID)

	if outcome.Perfect {
		if f.deps.Mastery != nil {
			if err := f.deps.Mastery.RecordMastery(ctx, snap.PlayerID, snap.PageNumber, outcome.DurationSeconds); err != nil {
				log.Warn("record mastery", "page", snap.PageNumber, "error", err)
			}
		}
		f.questEvent(ctx, log, snap.PlayerID, domain.EventMasteryCheck)
	}
	f.questEvent(ctx, log, snap.PlayerID, domain.EventQuizCompleted)

	if f.deps.Achievements != nil {
		unlocked, err := f.deps.Achievements.CheckAchievements(ctx, snap.PlayerID, domain.EventQuizCompleted, AchievementContext{
			IsPerfect:  outcome.Perfect,
			PageNumber: snap.PageNumber,
			Player:     updated,
		})
		if err != nil {
			log.Warn("check achievements", "error", err)
		}
		outcome.Achievements = unlocked
	}

	if outcome.LevelUp != nil {
		log.Info("level up", "level", outcome.LevelUp.Level, "reward", outcome.LevelUp.DiamondReward)
	}

	if f.deps.Players != nil {
		if err := f.deps.Players.SavePlayer(ctx, updated); err != nil {
			log.Error("save player", "error", err)
		}
	}
	if f.deps.Results != nil {
		if err := f.deps.Results.SaveResult(ctx, resultFrom(snap, outcome, completedAt)); err != nil {
			log.Error("save quiz result", "error", err)
		}
	}
	if f.deps.Leaderboard != nil {
		if err := f.deps.Leaderboard.UpdateXP(ctx, updated); err != nil {
			log.Warn("update leaderboard", "error", err)
		}
	}

	log.Info("session finalized",
		"score", outcome.Score,
		"total", outcome.TotalQuestions,
		"xp", outcome.Delta.XPEarned,
		"diamonds", outcome.Delta.DiamondsEarned,
		"perfect", outcome.Perfect,
	)
	return outcome
}

func (f *Finalizer) questEvent(ctx context.Context, log *slog.Logger, playerID, tag string) {
	if f.deps.Quests == nil {
		return
	}
	if err := f.deps.Quests.UpdateProgress(ctx, playerID, tag); err != nil {
		log.Warn("update quest progress", "event", tag, "error", err)
	}
}

func resultFrom(snap Snapshot, outcome Outcome, completedAt time.Time) domain.QuizResult {
	r := domain.QuizResult{
		ID:              uuid.NewString(),
		SessionID:       snap.SessionID,
		PlayerID:        snap.PlayerID,
		UserName:        snap.UserName,
		PageNumber:      snap.PageNumber,
		Narrator:        snap.Narrator,
		Score:           outcome.Score,
		TotalQuestions:  outcome.TotalQuestions,
		XPEarned:        outcome.Delta.XPEarned,
		DurationSeconds: outcome.DurationSeconds,
		Perfect:         outcome.Perfect,
		Errors:          outcome.ErrorLog,
		CompletedAt:     completedAt,
	}
	if snap.LiveEvent != nil {
		r.LiveEventID = snap.LiveEvent.ID
	}
	if snap.Quest != nil {
		r.QuestID = snap.Quest.ID
	}
	return r
}
