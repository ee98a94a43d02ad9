package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hifz-quiz-service/internal/app"
	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/infra/memory"
	"hifz-quiz-service/internal/progression"
	"hifz-quiz-service/internal/questions"
	"hifz-quiz-service/internal/rewards"
)

var testSettings = domain.ProgressionSettings{
	Levels: []domain.Level{
		{Level: 1, Title: "Beginner", XPRequired: 0},
		{Level: 2, Title: "Learner", XPRequired: 100, DiamondsReward: 25},
		{Level: 3, Title: "Hafiz", XPRequired: 300, DiamondsReward: 60},
	},
	XPPerCorrectAnswer: 10,
	XPBonusAllCorrect:  50,
}

func fatiha() []domain.Ayah {
	s := domain.Surah{Number: 1, Name: "الفاتحة", EnglishName: "Al-Faatiha"}
	texts := []string{
		"bismillah", "alhamdulillah", "ar-rahman ar-rahim", "maliki yawmi ad-din",
		"iyyaka na'budu", "ihdina as-sirat", "sirat alladhina",
	}
	out := make([]domain.Ayah, len(texts))
	for i, text := range texts {
		out[i] = domain.Ayah{Number: i + 1, Text: text, NumberInSurah: i + 1, Surah: s, Page: 1}
	}
	return out
}

type harness struct {
	svc      *app.QuizService
	players  *memory.PlayerStore
	progress *memory.ProgressStore
	pending  []func()
}

type harnessConfig struct {
	questions []domain.QuestionConfig
	pages     map[int][]domain.Ayah
	events    []domain.LiveEvent
	results   app.ResultStore
	deferred  bool
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	if cfg.questions == nil {
		cfg.questions = []domain.QuestionConfig{{ID: questions.NextAyahID, LevelRequired: 1, OptionsCount: 4}}
	}
	if cfg.pages == nil {
		cfg.pages = map[int][]domain.Ayah{1: fatiha()}
	}

	catalog := questions.NewCatalog(questions.DefaultRegistry())
	catalog.Set(cfg.questions)

	h := &harness{players: memory.NewPlayerStore(), progress: memory.NewProgressStore()}
	results := cfg.results
	if results == nil {
		results = h.progress
	}
	scheduler := func(_ time.Duration, f func()) { f() }
	if cfg.deferred {
		scheduler = func(_ time.Duration, f func()) { h.pending = append(h.pending, f) }
	}

	h.svc = app.NewQuizService(app.Deps{
		Engine:     progression.NewEngineWithSettings(testSettings),
		Catalog:    catalog,
		Sessions:   memory.NewSessionStore(),
		Content:    memory.NewStaticPageLoader(cfg.pages),
		LiveEvents: memory.NewStaticConfigLoader(nil, nil, cfg.events),
		Collaborators: app.Collaborators{
			Players:      h.players,
			Results:      results,
			Mastery:      h.progress,
			Quests:       rewards.NewQuestTracker(h.progress, nil),
			Achievements: rewards.NewAchievementEngine(h.progress),
			Leaderboard:  h.players,
		},
	}, app.WithSeed(1), app.WithScheduler(scheduler))
	return h
}

func (h *harness) flush() {
	pending := h.pending
	h.pending = nil
	for _, f := range pending {
		f()
	}
}

func wrongOption(q *questions.Question) string {
	for _, o := range q.Options {
		if o.ID != q.CorrectOptionID {
			return o.ID
		}
	}
	return ""
}

func TestPerfectSessionCompletesAndSettlesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	require.Equal(t, app.PhaseActive, st.Phase)
	require.Equal(t, 1, st.CurrentQuestion)

	for i := 1; i <= 5; i++ {
		require.NotNil(t, st.Question, "question %d", i)
		fb, err := h.svc.SubmitAnswer(ctx, st.ID, i, st.Question.CorrectOptionID)
		require.NoError(t, err)
		assert.True(t, fb.Correct)
		st, err = h.svc.State(ctx, st.ID)
		require.NoError(t, err)
	}

	require.Equal(t, app.PhaseCompleted, st.Phase)
	require.NotNil(t, st.Outcome)
	assert.True(t, st.Outcome.Perfect)
	assert.False(t, st.Outcome.Review)
	assert.Equal(t, 100, st.Outcome.Delta.XPEarned)
	require.NotNil(t, st.Outcome.LevelUp)
	assert.Equal(t, 2, st.Outcome.LevelUp.Level)
	assert.Equal(t, 25, st.Outcome.Delta.DiamondsEarned)

	player, err := h.players.LoadPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, player.XP)
	assert.Equal(t, 25, player.Diamonds)
	assert.Equal(t, 1, player.TotalQuizzesCompleted)
	assert.Equal(t, 5, player.TotalCorrectAnswers)
	assert.Equal(t, 5, player.TotalQuestionsAnswered)

	assert.Len(t, h.progress.Results("p1"), 1)
	m, ok := h.progress.Mastery("p1", 1)
	assert.True(t, ok)
	assert.Equal(t, 1, m.PerfectRuns)

	_, err = h.svc.SubmitAnswer(ctx, st.ID, 5, "o1")
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
	assert.Len(t, h.progress.Results("p1"), 1, "finalizer must run once")
}

func TestWrongAnswersAreLoggedForReview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		want := st.Question.CorrectAnswerText
		fb, err := h.svc.SubmitAnswer(ctx, st.ID, i, wrongOption(st.Question))
		require.NoError(t, err)
		assert.False(t, fb.Correct)
		assert.Equal(t, want, fb.CorrectAnswerText)
		st, _ = h.svc.State(ctx, st.ID)
	}

	require.Equal(t, app.PhaseCompleted, st.Phase)
	assert.Len(t, st.Outcome.ErrorLog, 5)
	assert.True(t, st.Outcome.Review)
	assert.False(t, st.Outcome.Perfect)
	assert.Equal(t, 0, st.Outcome.Delta.XPEarned, "no bonus without a perfect run")
	assert.Nil(t, st.Outcome.LevelUp)

	_, ok := h.progress.Mastery("p1", 1)
	assert.False(t, ok, "mastery only on perfect runs")
}

func TestDoubleSubmitIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{deferred: true})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)

	_, err = h.svc.SubmitAnswer(ctx, st.ID, 1, st.Question.CorrectOptionID)
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, st.ID, 1, st.Question.CorrectOptionID)
	require.ErrorIs(t, err, domain.ErrAlreadyAnswered)

	mid, _ := h.svc.State(ctx, st.ID)
	assert.Equal(t, 1, mid.Score)
	assert.Equal(t, 1, mid.CurrentQuestion, "advance waits for the answer delay")

	h.flush()
	next, _ := h.svc.State(ctx, st.ID)
	assert.Equal(t, 2, next.CurrentQuestion)
	assert.False(t, next.Answered)
}

func TestSubmitValidatesQuestionAndOption(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{deferred: true})

	_, err := h.svc.SubmitAnswer(ctx, "missing", 1, "o1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)

	_, err = h.svc.SubmitAnswer(ctx, st.ID, 2, st.Question.CorrectOptionID)
	assert.ErrorIs(t, err, domain.ErrQuestionMismatch)
	_, err = h.svc.SubmitAnswer(ctx, st.ID, 1, "o99")
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)
}

func TestStartValidatesSettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})

	_, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidQuestionCount, "level 1 allows 5 questions")
	_, err = h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuestionCount)
	_, err = h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 42, TotalQuestions: 5})
	assert.ErrorIs(t, err, domain.ErrPageLocked)
	_, err = h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5, Narrator: "ar.husary"})
	assert.ErrorIs(t, err, domain.ErrNarratorLocked)
	_, err = h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 2, TotalQuestions: 5})
	assert.ErrorIs(t, err, domain.ErrContentUnavailable)
}

func TestHaltsWhenNoQuestionTypeUnlocked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{questions: []domain.QuestionConfig{
		{ID: questions.NextAyahID, LevelRequired: 4, OptionsCount: 4},
	}})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	assert.Equal(t, app.PhaseHalted, st.Phase)
	assert.Equal(t, domain.ErrNoQuestionsAvailable.Error(), st.HaltReason)
	assert.Nil(t, st.Question)

	_, err = h.svc.SubmitAnswer(ctx, st.ID, 1, "o1")
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
	assert.Empty(t, h.progress.Results("p1"), "a halted session is never settled")
}

func TestHaltsWhenContentCannotSupportAnyGenerator(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{
		questions: []domain.QuestionConfig{
			{ID: questions.NextAyahID, LevelRequired: 1, OptionsCount: 4},
			{ID: questions.SurahOfAyahID, LevelRequired: 1, OptionsCount: 4},
		},
		pages: map[int][]domain.Ayah{1: fatiha()[:1]},
	})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	assert.Equal(t, app.PhaseHalted, st.Phase)
	assert.Equal(t, domain.ErrInsufficientContent.Error(), st.HaltReason)

	retried, err := h.svc.Retry(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, app.PhaseHalted, retried.Phase)
	assert.Equal(t, 1, retried.CurrentQuestion)
}

func TestGeneratorFallbackFillsSameSlot(t *testing.T) {
	ctx := context.Background()
	// A single-surah page cannot support surah_of_ayah, so every slot falls
	// through to next_ayah.
	h := newHarness(t, harnessConfig{
		questions: []domain.QuestionConfig{
			{ID: questions.SurahOfAyahID, LevelRequired: 1, OptionsCount: 4},
			{ID: questions.NextAyahID, LevelRequired: 1, OptionsCount: 4},
		},
	})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.Equal(t, app.PhaseActive, st.Phase, "slot %d", i)
		require.Equal(t, i, st.CurrentQuestion)
		require.NotNil(t, st.Question)
		assert.Equal(t, questions.NextAyahID, st.Question.Type)
		_, err := h.svc.SubmitAnswer(ctx, st.ID, i, st.Question.CorrectOptionID)
		require.NoError(t, err)
		st, err = h.svc.State(ctx, st.ID)
		require.NoError(t, err)
	}

	require.Equal(t, app.PhaseCompleted, st.Phase)
	require.NotNil(t, st.Outcome)
	assert.Equal(t, 5, st.Outcome.Score)
	assert.Len(t, h.progress.Results("p1"), 1)
}

func TestLiveEventPerfectRunPaysDiamonds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{events: []domain.LiveEvent{
		{ID: "ramadan", Title: "Ramadan", RewardDiamonds: 30, QuestionsCount: 50, StartPage: 1, EndPage: 1},
	}})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", LiveEventID: "ramadan"})
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalQuestions, "event length is capped at the level maximum")
	assert.Equal(t, "ramadan", st.LiveEventID)

	for i := 1; i <= st.TotalQuestions; i++ {
		_, err := h.svc.SubmitAnswer(ctx, st.ID, i, st.Question.CorrectOptionID)
		require.NoError(t, err)
		st, _ = h.svc.State(ctx, st.ID)
	}
	require.Equal(t, app.PhaseCompleted, st.Phase)
	assert.Equal(t, 30+25, st.Outcome.Delta.DiamondsEarned)

	results := h.progress.Results("p1")
	require.Len(t, results, 1)
	assert.Equal(t, "ramadan", results[0].LiveEventID)

	_, err = h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", LiveEventID: "unknown"})
	assert.ErrorIs(t, err, domain.ErrLiveEventNotFound)
}

func TestStartReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{deferred: true})

	first, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, first.ID, 1, first.Question.CorrectOptionID)
	require.NoError(t, err)

	second, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = h.svc.State(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The pending advance of the discarded session must be a no-op.
	h.flush()
	assert.Empty(t, h.progress.Results("p1"))
}

func TestAbandonDropsSessionWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	require.NoError(t, h.svc.Abandon(ctx, st.ID))

	_, err = h.svc.State(ctx, st.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	player, _ := h.players.LoadPlayer(ctx, "p1")
	assert.Equal(t, 0, player.TotalQuizzesCompleted)
}

func TestSubscribeReceivesFeedbackAndNextQuestion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{deferred: true})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	ch, cancel, err := h.svc.Subscribe(ctx, st.ID)
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Equal(t, 1, initial.State.CurrentQuestion)

	_, err = h.svc.SubmitAnswer(ctx, st.ID, 1, st.Question.CorrectOptionID)
	require.NoError(t, err)
	fb := <-ch
	require.Equal(t, app.EventFeedback, fb.Type)
	require.NotNil(t, fb.Feedback)
	assert.True(t, fb.Feedback.Correct)

	h.flush()
	next := <-ch
	assert.Equal(t, app.EventQuestion, next.Type)
	assert.Equal(t, 2, next.State.CurrentQuestion)
}

type failingResults struct{}

func (failingResults) SaveResult(context.Context, domain.QuizResult) error {
	return errors.New("db down")
}

func TestFinalizerToleratesPersistenceFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{results: failingResults{}})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := h.svc.SubmitAnswer(ctx, st.ID, i, st.Question.CorrectOptionID)
		require.NoError(t, err)
		st, _ = h.svc.State(ctx, st.ID)
	}

	assert.Equal(t, app.PhaseCompleted, st.Phase)
	player, _ := h.players.LoadPlayer(ctx, "p1")
	assert.Equal(t, 100, player.XP, "player is saved even when the result insert fails")
}

func TestProfileOffersUnlockedChoices(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})
	_, _ = h.players.EnsurePlayer(ctx, "p1", "amina")
	_ = h.players.SavePlayer(ctx, domain.Player{ID: "p1", Username: "amina", XP: 150, Inventory: []string{"page_12", "qari_husary"}})

	profile, err := h.svc.Profile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Level.Level)
	assert.Equal(t, []int{5}, profile.QuestionCountOptions)
	assert.Equal(t, 5, profile.DefaultQuestionCount)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 12}, profile.Pages)
	assert.Len(t, profile.Narrators, 3)
}

type blockingResults struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingResults) SaveResult(context.Context, domain.QuizResult) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestStateStaysReadableWhileSettling(t *testing.T) {
	ctx := context.Background()
	results := &blockingResults{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, harnessConfig{results: results, deferred: true})

	st, err := h.svc.StartSession(ctx, app.StartSettings{PlayerID: "p1", UserName: "amina", PageNumber: 1, TotalQuestions: 5})
	require.NoError(t, err)
	for i := 1; i < 5; i++ {
		_, err := h.svc.SubmitAnswer(ctx, st.ID, i, st.Question.CorrectOptionID)
		require.NoError(t, err)
		h.flush()
		st, _ = h.svc.State(ctx, st.ID)
	}
	_, err = h.svc.SubmitAnswer(ctx, st.ID, 5, st.Question.CorrectOptionID)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		h.flush()
		close(done)
	}()
	<-results.entered

	got := make(chan app.State, 1)
	go func() {
		s, _ := h.svc.State(ctx, st.ID)
		got <- s
	}()
	select {
	case mid := <-got:
		assert.Equal(t, app.PhaseActive, mid.Phase)
		assert.Nil(t, mid.Question)
		assert.Nil(t, mid.Outcome)
	case <-time.After(time.Second):
		t.Fatal("state blocked while the session was settling")
	}
	_, err = h.svc.SubmitAnswer(ctx, st.ID, 5, "o1")
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)

	close(results.release)
	<-done
	st, err = h.svc.State(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, app.PhaseCompleted, st.Phase)
	require.NotNil(t, st.Outcome)
	assert.True(t, st.Outcome.Perfect)
}
