package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hifz-quiz-service/internal/domain"
)

// Mastery is a player's best perfect run on a page.
type Mastery struct {
	PerfectRuns     int
	BestDurationSec int
}

// ProgressStore keeps results, page mastery, quests and achievements in memory.
type ProgressStore struct {
	mu           sync.RWMutex
	results      []domain.QuizResult
	mastery      map[string]map[int]Mastery
	quests       map[string]map[string]domain.Quest
	achievements map[string]map[string]time.Time
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		mastery:      make(map[string]map[int]Mastery),
		quests:       make(map[string]map[string]domain.Quest),
		achievements: make(map[string]map[string]time.Time),
	}
}

func (s *ProgressStore) SaveResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// Results returns the stored results of a player in completion order.
func (s *ProgressStore) Results(playerID string) []domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizResult
	for _, r := range s.results {
		if r.PlayerID == playerID {
			out = append(out, r)
		}
	}
	return out
}

func (s *ProgressStore) RecordMastery(_ context.Context, playerID string, pageNumber, durationSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages, ok := s.mastery[playerID]
	if !ok {
		pages = make(map[int]Mastery)
		s.mastery[playerID] = pages
	}
	m := pages[pageNumber]
	m.PerfectRuns++
	if m.BestDurationSec == 0 || durationSeconds < m.BestDurationSec {
		m.BestDurationSec = durationSeconds
	}
	pages[pageNumber] = m
	return nil
}

// Mastery returns the mastery record of a page.
func (s *ProgressStore) Mastery(playerID string, pageNumber int) (Mastery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mastery[playerID][pageNumber]
	return m, ok
}

func (s *ProgressStore) ListQuests(_ context.Context, playerID string, since time.Time) ([]domain.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Quest
	for _, q := range s.quests[playerID] {
		if !q.AssignedOn.Before(since) {
			out = append(out, q)
		}
	}
	sortQuests(out)
	return out, nil
}

func (s *ProgressStore) SaveQuest(_ context.Context, quest domain.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.quests[quest.PlayerID]
	if !ok {
		byID = make(map[string]domain.Quest)
		s.quests[quest.PlayerID] = byID
	}
	byID[quest.ID] = quest
	return nil
}

func (s *ProgressStore) Unlocked(_ context.Context, playerID string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.achievements[playerID]))
	for id, at := range s.achievements[playerID] {
		out[id] = at
	}
	return out, nil
}

func (s *ProgressStore) Unlock(_ context.Context, playerID string, a domain.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.achievements[playerID]
	if !ok {
		byID = make(map[string]time.Time)
		s.achievements[playerID] = byID
	}
	if _, done := byID[a.ID]; !done {
		byID[a.ID] = a.UnlockedAt
	}
	return nil
}

func sortQuests(qs []domain.Quest) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
}
