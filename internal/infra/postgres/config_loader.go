package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"hifz-quiz-service/internal/domain"
)

// ConfigLoader reads the game configuration tables with pgx.
type ConfigLoader struct {
	pool *pgxpool.Pool
}

func NewConfigLoader(pool *pgxpool.Pool) *ConfigLoader {
	return &ConfigLoader{pool: pool}
}

// LoadProgression returns nil settings when the row has not been seeded so
// callers fall back to the built-in defaults.
func (l *ConfigLoader) LoadProgression(ctx context.Context) (*domain.ProgressionSettings, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT settings FROM progression_config WHERE id=1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progression: %w", err)
	}
	var settings domain.ProgressionSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal progression: %w", err)
	}
	return &settings, nil
}

func (l *ConfigLoader) LoadQuestions(ctx context.Context) ([]domain.QuestionConfig, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, level_required, options_count
		FROM questions_config
		WHERE is_active
		ORDER BY level_required, id`)
	if err != nil {
		return nil, fmt.Errorf("load questions config: %w", err)
	}
	defer rows.Close()

	var out []domain.QuestionConfig
	for rows.Next() {
		var c domain.QuestionConfig
		if err := rows.Scan(&c.ID, &c.LevelRequired, &c.OptionsCount); err != nil {
			return nil, fmt.Errorf("scan questions config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadLiveEvents returns the events that are active right now.
func (l *ConfigLoader) LoadLiveEvents(ctx context.Context) ([]domain.LiveEvent, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, title, COALESCE(description, ''), reward_diamonds, questions_count,
		       start_page, end_page, questions_recipe
		FROM live_events
		WHERE is_active
		  AND (starts_at IS NULL OR starts_at <= now())
		  AND (ends_at IS NULL OR ends_at > now())
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load live events: %w", err)
	}
	defer rows.Close()

	var out []domain.LiveEvent
	for rows.Next() {
		var (
			ev     domain.LiveEvent
			recipe []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.RewardDiamonds,
			&ev.QuestionsCount, &ev.StartPage, &ev.EndPage, &recipe); err != nil {
			return nil, fmt.Errorf("scan live event: %w", err)
		}
		if len(recipe) > 0 {
			if err := json.Unmarshal(recipe, &ev.QuestionsRecipe); err != nil {
				return nil, fmt.Errorf("unmarshal recipe for %s: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
