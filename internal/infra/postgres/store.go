package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"hifz-quiz-service/internal/domain"
)

type playerRow struct {
	bun.BaseModel `bun:"table:players"`

	ID                     string    `bun:"id,pk"`
	Username               string    `bun:"username"`
	XP                     int       `bun:"xp"`
	Diamonds               int       `bun:"diamonds"`
	Inventory              []string  `bun:"inventory,array"`
	TotalQuizzesCompleted  int       `bun:"total_quizzes_completed"`
	TotalPlayTimeSeconds   int       `bun:"total_play_time_seconds"`
	TotalCorrectAnswers    int       `bun:"total_correct_answers"`
	TotalQuestionsAnswered int       `bun:"total_questions_answered"`
	CreatedAt              time.Time `bun:"created_at"`
	UpdatedAt              time.Time `bun:"updated_at"`
}

type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	ID              string              `bun:"id,pk"`
	SessionID       string              `bun:"session_id"`
	PlayerID        string              `bun:"player_id"`
	UserName        string              `bun:"user_name"`
	PageNumber      int                 `bun:"page_number"`
	Narrator        string              `bun:"narrator"`
	Score           int                 `bun:"score"`
	TotalQuestions  int                 `bun:"total_questions"`
	XPEarned        int                 `bun:"xp_earned"`
	DurationSeconds int                 `bun:"duration_seconds"`
	Perfect         bool                `bun:"perfect"`
	LiveEventID     string              `bun:"live_event_id,nullzero"`
	QuestID         string              `bun:"quest_id,nullzero"`
	Errors          []domain.ErrorEntry `bun:"errors,type:jsonb"`
	CompletedAt     time.Time           `bun:"completed_at"`
}

type questRow struct {
	bun.BaseModel `bun:"table:player_quests"`

	ID              string     `bun:"id,pk"`
	PlayerID        string     `bun:"player_id,pk"`
	Title           string     `bun:"title"`
	EventTag        string     `bun:"event_tag"`
	Target          int        `bun:"target"`
	Progress        int        `bun:"progress"`
	Completed       bool       `bun:"completed"`
	RewardDiamonds  int        `bun:"reward_diamonds"`
	QuestionsRecipe []string   `bun:"questions_recipe,type:jsonb,nullzero"`
	AssignedOn      time.Time  `bun:"assigned_on"`
	CompletedAt     *time.Time `bun:"completed_at"`
}

type achievementRow struct {
	bun.BaseModel `bun:"table:player_achievements"`

	PlayerID      string    `bun:"player_id,pk"`
	AchievementID string    `bun:"achievement_id,pk"`
	UnlockedAt    time.Time `bun:"unlocked_at"`
}

// Store persists players and their progress through bun.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsurePlayer inserts a blank profile unless one exists, then loads it.
func (s *Store) EnsurePlayer(ctx context.Context, playerID, username string) (domain.Player, error) {
	now := s.now().UTC()
	row := playerRow{ID: playerID, Username: username, Inventory: []string{}, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return domain.Player{}, fmt.Errorf("ensure player: %w", err)
	}
	return s.LoadPlayer(ctx, playerID)
}

func (s *Store) LoadPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	var row playerRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", playerID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	return domain.Player{
		ID:                     row.ID,
		Username:               row.Username,
		XP:                     row.XP,
		Diamonds:               row.Diamonds,
		Inventory:              row.Inventory,
		TotalQuizzesCompleted:  row.TotalQuizzesCompleted,
		TotalPlayTimeSeconds:   row.TotalPlayTimeSeconds,
		TotalCorrectAnswers:    row.TotalCorrectAnswers,
		TotalQuestionsAnswered: row.TotalQuestionsAnswered,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}, nil
}

func (s *Store) SavePlayer(ctx context.Context, p domain.Player) error {
	row := playerRow{
		ID:                     p.ID,
		Username:               p.Username,
		XP:                     p.XP,
		Diamonds:               p.Diamonds,
		Inventory:              append([]string{}, p.Inventory...),
		TotalQuizzesCompleted:  p.TotalQuizzesCompleted,
		TotalPlayTimeSeconds:   p.TotalPlayTimeSeconds,
		TotalCorrectAnswers:    p.TotalCorrectAnswers,
		TotalQuestionsAnswered: p.TotalQuestionsAnswered,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              s.now().UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("xp = EXCLUDED.xp").
		Set("diamonds = EXCLUDED.diamonds").
		Set("inventory = EXCLUDED.inventory").
		Set("total_quizzes_completed = EXCLUDED.total_quizzes_completed").
		Set("total_play_time_seconds = EXCLUDED.total_play_time_seconds").
		Set("total_correct_answers = EXCLUDED.total_correct_answers").
		Set("total_questions_answered = EXCLUDED.total_questions_answered").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

func (s *Store) SaveResult(ctx context.Context, r domain.QuizResult) error {
	errs := r.Errors
	if errs == nil {
		errs = []domain.ErrorEntry{}
	}
	row := resultRow{
		ID:              r.ID,
		SessionID:       r.SessionID,
		PlayerID:        r.PlayerID,
		UserName:        r.UserName,
		PageNumber:      r.PageNumber,
		Narrator:        r.Narrator,
		Score:           r.Score,
		TotalQuestions:  r.TotalQuestions,
		XPEarned:        r.XPEarned,
		DurationSeconds: r.DurationSeconds,
		Perfect:         r.Perfect,
		LiveEventID:     r.LiveEventID,
		QuestID:         r.QuestID,
		Errors:          errs,
		CompletedAt:     r.CompletedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// Results returns a player's attempts, newest first.
func (s *Store) Results(ctx context.Context, playerID string, limit int) ([]domain.QuizResult, error) {
	var rows []resultRow
	q := s.db.NewSelect().Model(&rows).Where("player_id = ?", playerID).Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := make([]domain.QuizResult, len(rows))
	for i, r := range rows {
		out[i] = domain.QuizResult{
			ID:              r.ID,
			SessionID:       r.SessionID,
			PlayerID:        r.PlayerID,
			UserName:        r.UserName,
			PageNumber:      r.PageNumber,
			Narrator:        r.Narrator,
			Score:           r.Score,
			TotalQuestions:  r.TotalQuestions,
			XPEarned:        r.XPEarned,
			DurationSeconds: r.DurationSeconds,
			Perfect:         r.Perfect,
			LiveEventID:     r.LiveEventID,
			QuestID:         r.QuestID,
			Errors:          r.Errors,
			CompletedAt:     r.CompletedAt,
		}
	}
	return out, nil
}

const upsertMasterySQL = `
INSERT INTO player_page_mastery (player_id, page_number, perfect_runs, best_duration_seconds, last_mastered_at)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT (player_id, page_number) DO UPDATE SET
    perfect_runs = player_page_mastery.perfect_runs + 1,
    best_duration_seconds = LEAST(player_page_mastery.best_duration_seconds, EXCLUDED.best_duration_seconds),
    last_mastered_at = EXCLUDED.last_mastered_at`

// RecordMastery counts a perfect run and keeps the fastest duration.
func (s *Store) RecordMastery(ctx context.Context, playerID string, pageNumber, durationSeconds int) error {
	if _, err := s.db.ExecContext(ctx, upsertMasterySQL, playerID, pageNumber, durationSeconds, s.now().UTC()); err != nil {
		return fmt.Errorf("record mastery: %w", err)
	}
	return nil
}

func (s *Store) ListQuests(ctx context.Context, playerID string, since time.Time) ([]domain.Quest, error) {
	var rows []questRow
	err := s.db.NewSelect().Model(&rows).
		Where("player_id = ?", playerID).
		Where("assigned_on >= ?", since).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	out := make([]domain.Quest, len(rows))
	for i, r := range rows {
		out[i] = domain.Quest{
			ID:              r.ID,
			PlayerID:        r.PlayerID,
			Title:           r.Title,
			EventTag:        r.EventTag,
			Target:          r.Target,
			Progress:        r.Progress,
			Completed:       r.Completed,
			RewardDiamonds:  r.RewardDiamonds,
			QuestionsRecipe: r.QuestionsRecipe,
			AssignedOn:      r.AssignedOn,
			CompletedAt:     r.CompletedAt,
		}
	}
	return out, nil
}

func (s *Store) SaveQuest(ctx context.Context, q domain.Quest) error {
	row := questRow{
		ID:              q.ID,
		PlayerID:        q.PlayerID,
		Title:           q.Title,
		EventTag:        q.EventTag,
		Target:          q.Target,
		Progress:        q.Progress,
		Completed:       q.Completed,
		RewardDiamonds:  q.RewardDiamonds,
		QuestionsRecipe: q.QuestionsRecipe,
		AssignedOn:      q.AssignedOn,
		CompletedAt:     q.CompletedAt,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (player_id, id) DO UPDATE").
		Set("progress = EXCLUDED.progress").
		Set("completed = EXCLUDED.completed").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save quest: %w", err)
	}
	return nil
}

func (s *Store) Unlocked(ctx context.Context, playerID string) (map[string]time.Time, error) {
	var rows []achievementRow
	if err := s.db.NewSelect().Model(&rows).Where("player_id = ?", playerID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		out[r.AchievementID] = r.UnlockedAt
	}
	return out, nil
}

// Unlock is idempotent; the first unlock time wins.
func (s *Store) Unlock(ctx context.Context, playerID string, a domain.Achievement) error {
	row := achievementRow{PlayerID: playerID, AchievementID: a.ID, UnlockedAt: a.UnlockedAt}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (player_id, achievement_id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("unlock achievement: %w", err)
	}
	return nil
}

// UpdateXP is a no-op: the ranking reads the players table directly.
func (s *Store) UpdateXP(context.Context, domain.Player) error { return nil }

// Top ranks players by XP, ties by username.
func (s *Store) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []playerRow
	err := s.db.NewSelect().Model(&rows).
		Column("id", "username", "xp").
		OrderExpr("xp DESC, username ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("leaderboard: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.LeaderboardEntry{Rank: i + 1, PlayerID: r.ID, Username: r.Username, XP: r.XP}
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}
