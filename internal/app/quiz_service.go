package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"hifz-quiz-service/internal/content"
	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/progression"
	"hifz-quiz-service/internal/questions"
)

// DefaultAnswerDelay is how long feedback stays on screen before the next question.
const DefaultAnswerDelay = 3 * time.Second

// StartSettings are the choices a player makes before a session.
type StartSettings struct {
	PlayerID       string `json:"playerId"`
	UserName       string `json:"userName"`
	PageNumber     int    `json:"pageNumber"`
	TotalQuestions int    `json:"totalQuestions"`
	Narrator       string `json:"narrator"`
	LiveEventID    string `json:"liveEventId,omitempty"`
	QuestID        string `json:"questId,omitempty"`
}

// Deps wires the service to its collaborators. Engine, Catalog, Sessions,
// Content and Players are required.
type Deps struct {
	Engine     *progression.Engine
	Catalog    *questions.Catalog
	Sessions   SessionRepository
	Content    ContentSource
	LiveEvents LiveEventSource
	Collaborators
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithAnswerDelay sets the pause between feedback and the next question.
func WithAnswerDelay(d time.Duration) Option {
	return func(s *QuizService) { s.answerDelay = d }
}

// WithScheduler replaces time.AfterFunc for the delayed advance.
func WithScheduler(after func(time.Duration, func())) Option {
	return func(s *QuizService) { s.after = after }
}

// WithClock sets the time source for sessions and finalization.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithSeed makes question selection deterministic.
func WithSeed(seed int64) Option {
	return func(s *QuizService) {
		var mu sync.Mutex
		src := rand.New(rand.NewSource(seed))
		s.newRand = func() *rand.Rand {
			mu.Lock()
			defer mu.Unlock()
			return rand.New(rand.NewSource(src.Int63()))
		}
	}
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	engine    *progression.Engine
	catalog   *questions.Catalog
	sessions  SessionRepository
	content   ContentSource
	events    LiveEventSource
	deps      Collaborators
	finalizer *Finalizer

	answerDelay time.Duration
	after       func(time.Duration, func())
	now         func() time.Time
	newRand     func() *rand.Rand
}

func NewQuizService(deps Deps, opts ...Option) *QuizService {
	s := &QuizService{
		engine:      deps.Engine,
		catalog:     deps.Catalog,
		sessions:    deps.Sessions,
		content:     deps.Content,
		events:      deps.LiveEvents,
		deps:        deps.Collaborators,
		answerDelay: DefaultAnswerDelay,
		after:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:         time.Now,
		newRand:     func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.finalizer = NewFinalizerWithClock(s.engine, s.deps, s.now)
	return s
}

// StartSession validates the settings, loads the page content and serves the
// first question. Any unfinished session of the same player is discarded.
func (s *QuizService) StartSession(ctx context.Context, in StartSettings) (State, error) {
	player, err := s.deps.Players.EnsurePlayer(ctx, in.PlayerID, in.UserName)
	if err != nil {
		return State{}, fmt.Errorf("load player: %w", err)
	}
	level := s.engine.ResolveLevel(player.XP)
	maxQuestions := s.engine.MaxQuestionsForLevel(level.Level)

	narrator := in.Narrator
	if narrator == "" {
		narrator = domain.DefaultNarrator
	}
	if !player.CanUseNarrator(narrator) {
		return State{}, domain.ErrNarratorLocked
	}

	sess := newSession(uuid.NewString(), s.now, s.newRand())
	sess.playerID = player.ID
	sess.userName = player.Username
	sess.player = player
	sess.narrator = narrator

	total := in.TotalQuestions
	if in.LiveEventID != "" {
		event, err := s.liveEvent(ctx, in.LiveEventID)
		if err != nil {
			return State{}, err
		}
		sess.liveEvent = &event
		sess.pageNumbers = event.Pages()
		sess.recipe = event.QuestionsRecipe
		total = event.QuestionsCount
		if total < 1 {
			total = progression.DefaultCount(progression.QuestionCountOptions(maxQuestions))
		}
		if total > maxQuestions {
			total = maxQuestions
		}
	} else {
		if !player.CanPlayPage(in.PageNumber) {
			return State{}, domain.ErrPageLocked
		}
		if total < 1 || total > maxQuestions {
			return State{}, fmt.Errorf("%w: %d (max %d)", domain.ErrInvalidQuestionCount, total, maxQuestions)
		}
		sess.pageNumbers = []int{in.PageNumber}
	}

	if in.QuestID != "" {
		quest, err := s.quest(ctx, player.ID, in.QuestID)
		if err != nil {
			return State{}, err
		}
		sess.quest = &quest
		if len(sess.recipe) == 0 {
			sess.recipe = quest.QuestionsRecipe
		}
	}

	sess.ayahs = content.FetchPages(ctx, s.content, sess.pageNumbers)
	if len(sess.ayahs) == 0 {
		return State{}, domain.ErrContentUnavailable
	}

	if previous, ok := s.sessions.ActiveForPlayer(player.ID); ok {
		s.discard(previous)
	}
	s.sessions.Put(sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.startLocked(total)
	slog.Info("session started",
		"session", sess.id,
		"player", sess.playerID,
		"pages", sess.pageNumbers,
		"questions", total,
		"level", level.Level,
	)
	s.advanceLocked(context.WithoutCancel(ctx), sess)
	return sess.stateLocked(), nil
}

// SubmitAnswer grades the answer to the current question and schedules the
// next one after the answer delay.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, questionNumber int, optionID string) (Feedback, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return Feedback{}, domain.ErrSessionNotFound
	}

	fb, err := s.grade(sess, questionNumber, optionID)
	if err != nil {
		return Feedback{}, err
	}

	bg := context.WithoutCancel(ctx)
	s.after(s.answerDelay, func() { s.advanceAfterAnswer(bg, sess, questionNumber) })
	return fb, nil
}

func (s *QuizService) grade(sess *Session, questionNumber int, optionID string) (Feedback, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.phase != PhaseActive || sess.current == nil {
		return Feedback{}, domain.ErrSessionNotActive
	}
	if questionNumber != sess.currentIndex {
		return Feedback{}, domain.ErrQuestionMismatch
	}
	if sess.answered {
		return Feedback{}, domain.ErrAlreadyAnswered
	}
	correct, ok := sess.current.Check(optionID)
	if !ok {
		return Feedback{}, domain.ErrOptionNotFound
	}

	sess.recordAnswerLocked(correct, s.engine.Rules().XPPerCorrectAnswer)
	fb := Feedback{
		QuestionNumber:    questionNumber,
		OptionID:          optionID,
		Correct:           correct,
		CorrectOptionID:   sess.current.CorrectOptionID,
		CorrectAnswerText: sess.current.CorrectAnswerText,
		Score:             sess.score,
		XPEarned:          sess.xpEarned,
	}
	sess.broadcastLocked(Event{Type: EventFeedback, Feedback: &fb})
	return fb, nil
}

func (s *QuizService) advanceAfterAnswer(ctx context.Context, sess *Session, questionNumber int) {
	sess.mu.Lock()
	// The session may have been abandoned or already moved on.
	if sess.phase != PhaseActive || sess.currentIndex != questionNumber || !sess.answered || sess.current == nil {
		sess.mu.Unlock()
		return
	}
	if sess.currentIndex < sess.totalQuestions {
		s.advanceLocked(ctx, sess)
		sess.mu.Unlock()
		return
	}

	// Last slot answered. Clearing the question closes the session to further
	// answers while the finalizer runs without the lock.
	sess.current = nil
	player, snap := sess.player, sess.snapshotLocked()
	sess.mu.Unlock()

	outcome := s.finalizer.Finalize(ctx, player, snap)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.phase = PhaseCompleted
	sess.outcome = &outcome
	sess.broadcastLocked(Event{Type: EventCompleted})
}

// advanceLocked serves the question of the next slot. Callers hold sess.mu
// and have checked that a slot remains.
func (s *QuizService) advanceLocked(ctx context.Context, sess *Session) {
	sess.currentIndex++
	sess.answered = false
	sess.current = nil

	level := s.engine.ResolveLevel(sess.player.XP).Level
	eligible := questions.Restrict(questions.Available(s.catalog.Entries(), level), sess.recipe)
	if len(eligible) == 0 {
		slog.Warn("no question types available", "session", sess.id, "level", level)
		sess.haltLocked(domain.ErrNoQuestionsAvailable)
		return
	}

	for _, i := range sess.rng.Perm(len(eligible)) {
		entry := eligible[i]
		q := entry.Generator.Generate(sess.ayahs, sess.narrator, entry.OptionsCount, sess.rng)
		if q == nil {
			slog.Debug("generator could not build a question", "session", sess.id, "type", entry.ID)
			continue
		}
		sess.current = q
		sess.broadcastLocked(Event{Type: EventQuestion})
		return
	}

	slog.Warn("no generator could build a question", "session", sess.id, "slot", sess.currentIndex)
	sess.haltLocked(domain.ErrInsufficientContent)
}

// Retry re-runs question selection for the slot a session halted on.
func (s *QuizService) Retry(ctx context.Context, sessionID string) (State, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return State{}, domain.ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.phase != PhaseHalted {
		return State{}, domain.ErrSessionNotActive
	}
	sess.phase = PhaseActive
	sess.haltErr = nil
	sess.currentIndex--
	s.advanceLocked(context.WithoutCancel(ctx), sess)
	return sess.stateLocked(), nil
}

// State returns a snapshot of the session.
func (s *QuizService) State(_ context.Context, sessionID string) (State, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return State{}, domain.ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.stateLocked(), nil
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan Event, func(), error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := sess.subscribe()
	return ch, cancel, nil
}

// Abandon drops an unfinished session without recording anything.
func (s *QuizService) Abandon(_ context.Context, sessionID string) error {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.discard(sess)
	return nil
}

func (s *QuizService) discard(sess *Session) {
	s.sessions.Delete(sess.id)
	sess.mu.Lock()
	if sess.phase != PhaseCompleted {
		sess.phase = PhaseIdle
		sess.current = nil
	}
	sess.mu.Unlock()
	sess.closeSubscribers()
	slog.Info("session discarded", "session", sess.id, "player", sess.playerID)
}

func (s *QuizService) liveEvent(ctx context.Context, id string) (domain.LiveEvent, error) {
	if s.events == nil {
		return domain.LiveEvent{}, domain.ErrLiveEventNotFound
	}
	events, err := s.events.LoadLiveEvents(ctx)
	if err != nil {
		return domain.LiveEvent{}, fmt.Errorf("load live events: %w", err)
	}
	for _, e := range events {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.LiveEvent{}, domain.ErrLiveEventNotFound
}

func (s *QuizService) quest(ctx context.Context, playerID, questID string) (domain.Quest, error) {
	if s.deps.Quests == nil {
		return domain.Quest{}, domain.ErrQuestNotFound
	}
	quests, err := s.deps.Quests.AssignedQuests(ctx, playerID)
	if err != nil {
		return domain.Quest{}, fmt.Errorf("load quests: %w", err)
	}
	for _, q := range quests {
		if q.ID == questID {
			return q, nil
		}
	}
	return domain.Quest{}, domain.ErrQuestNotFound
}
