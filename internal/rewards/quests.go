package rewards

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hifz-quiz-service/internal/domain"
)

// QuestTemplate describes a quest handed out every day.
type QuestTemplate struct {
	ID              string   `yaml:"id"`
	Title           string   `yaml:"title"`
	EventTag        string   `yaml:"event_tag"`
	Target          int      `yaml:"target"`
	RewardDiamonds  int      `yaml:"reward_diamonds"`
	QuestionsRecipe []string `yaml:"questions_recipe"`
}

// QuestStore persists per-player quests.
type QuestStore interface {
	ListQuests(ctx context.Context, playerID string, since time.Time) ([]domain.Quest, error)
	SaveQuest(ctx context.Context, quest domain.Quest) error
}

// QuestTracker assigns daily quests and advances them on game events.
type QuestTracker struct {
	store     QuestStore
	templates []QuestTemplate
	now       func() time.Time
}

func NewQuestTracker(store QuestStore, templates []QuestTemplate) *QuestTracker {
	return NewQuestTrackerWithClock(store, templates, time.Now)
}

// NewQuestTrackerWithClock is used by tests to pin the quest day.
func NewQuestTrackerWithClock(store QuestStore, templates []QuestTemplate, now func() time.Time) *QuestTracker {
	return &QuestTracker{store: store, templates: templates, now: now}
}

func (t *QuestTracker) today() time.Time {
	y, m, d := t.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AssignedQuests returns today's quests for the player, assigning them from
// the templates on first request of the day.
func (t *QuestTracker) AssignedQuests(ctx context.Context, playerID string) ([]domain.Quest, error) {
	day := t.today()
	quests, err := t.store.ListQuests(ctx, playerID, day)
	if err != nil {
		return nil, err
	}
	if len(quests) > 0 || len(t.templates) == 0 {
		return quests, nil
	}

	for _, tmpl := range t.templates {
		q := domain.Quest{
			ID:              fmt.Sprintf("%s-%s", tmpl.ID, day.Format("20060102")),
			PlayerID:        playerID,
			Title:           tmpl.Title,
			EventTag:        tmpl.EventTag,
			Target:          tmpl.Target,
			RewardDiamonds:  tmpl.RewardDiamonds,
			QuestionsRecipe: tmpl.QuestionsRecipe,
			AssignedOn:      day,
		}
		if q.Target < 1 {
			q.Target = 1
		}
		if err := t.store.SaveQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("assign quest %s: %w", tmpl.ID, err)
		}
		quests = append(quests, q)
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].ID < quests[j].ID })
	return quests, nil
}

// UpdateProgress advances every open quest of today listening for eventTag.
func (t *QuestTracker) UpdateProgress(ctx context.Context, playerID, eventTag string) error {
	quests, err := t.AssignedQuests(ctx, playerID)
	if err != nil {
		return err
	}
	for _, q := range quests {
		if q.Completed || q.EventTag != eventTag {
			continue
		}
		q.Progress++
		if q.Progress >= q.Target {
			q.Completed = true
			at := t.now()
			q.CompletedAt = &at
		}
		if err := t.store.SaveQuest(ctx, q); err != nil {
			return fmt.Errorf("save quest %s: %w", q.ID, err)
		}
	}
	return nil
}
