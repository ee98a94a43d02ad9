package app

import (
	"context"
	"fmt"

	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/progression"
)

// LeaderboardSize is how many players the leaderboard shows.
const LeaderboardSize = 10

// Profile is the player's dashboard: stats plus what they may start.
type Profile struct {
	Player               domain.Player     `json:"player"`
	Level                domain.LevelInfo  `json:"level"`
	Accuracy             int               `json:"accuracy"`
	MaxQuestions         int               `json:"maxQuestions"`
	QuestionCountOptions []int             `json:"questionCountOptions"`
	DefaultQuestionCount int               `json:"defaultQuestionCount"`
	Pages                []int             `json:"pages"`
	Narrators            []domain.Narrator `json:"narrators"`
}

// Profile loads a player and derives what the start screen offers.
func (s *QuizService) Profile(ctx context.Context, playerID string) (Profile, error) {
	player, err := s.deps.Players.LoadPlayer(ctx, playerID)
	if err != nil {
		return Profile{}, err
	}
	level := s.engine.ResolveLevel(player.XP)
	maxQuestions := s.engine.MaxQuestionsForLevel(level.Level)
	opts := progression.QuestionCountOptions(maxQuestions)
	return Profile{
		Player:               player,
		Level:                level,
		Accuracy:             player.Accuracy(),
		MaxQuestions:         maxQuestions,
		QuestionCountOptions: opts,
		DefaultQuestionCount: progression.DefaultCount(opts),
		Pages:                player.AvailablePages(),
		Narrators:            player.AvailableNarrators(),
	}, nil
}

// Leaderboard returns the top players by XP.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	if s.deps.Leaderboard == nil {
		return domain.Leaderboard{UpdatedAt: s.now()}, nil
	}
	lb, err := s.deps.Leaderboard.Top(ctx, LeaderboardSize)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("leaderboard: %w", err)
	}
	return lb, nil
}

// LiveEvents lists the challenges on offer.
func (s *QuizService) LiveEvents(ctx context.Context) ([]domain.LiveEvent, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.LoadLiveEvents(ctx)
}

// Quests lists the player's assigned quests.
func (s *QuizService) Quests(ctx context.Context, playerID string) ([]domain.Quest, error) {
	if s.deps.Quests == nil {
		return nil, nil
	}
	return s.deps.Quests.AssignedQuests(ctx, playerID)
}

// ResolveLevel exposes the level lookup for an arbitrary XP value.
func (s *QuizService) ResolveLevel(xp int) domain.LevelInfo {
	return s.engine.ResolveLevel(xp)
}
