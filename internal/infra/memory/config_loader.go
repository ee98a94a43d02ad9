package memory

import (
	"context"

	"hifz-quiz-service/internal/domain"
)

// StaticConfigLoader serves game configuration seeded from the config file.
// It stands in for the database tables when Postgres is not configured.
type StaticConfigLoader struct {
	progression *domain.ProgressionSettings
	questions   []domain.QuestionConfig
	events      []domain.LiveEvent
}

func NewStaticConfigLoader(progression *domain.ProgressionSettings, questions []domain.QuestionConfig, events []domain.LiveEvent) *StaticConfigLoader {
	return &StaticConfigLoader{progression: progression, questions: questions, events: events}
}

// LoadProgression returns nil when no progression block was configured.
func (l *StaticConfigLoader) LoadProgression(_ context.Context) (*domain.ProgressionSettings, error) {
	if l.progression == nil || len(l.progression.Levels) == 0 {
		return nil, nil
	}
	cp := *l.progression
	return &cp, nil
}

func (l *StaticConfigLoader) LoadQuestions(_ context.Context) ([]domain.QuestionConfig, error) {
	return append([]domain.QuestionConfig(nil), l.questions...), nil
}

func (l *StaticConfigLoader) LoadLiveEvents(_ context.Context) ([]domain.LiveEvent, error) {
	return append([]domain.LiveEvent(nil), l.events...), nil
}
