package app

import (
	"math/rand"
	"sync"
	"time"

	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/questions"
)

// Phase is where a session sits in its lifecycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	// PhaseHalted means no question could be produced for the current slot.
	PhaseHalted Phase = "halted"
)

// Event types pushed to subscribers.
const (
	EventQuestion  = "question"
	EventFeedback  = "feedback"
	EventCompleted = "completed"
	EventHalted    = "halted"
)

// Feedback is the grading of one submitted answer.
type Feedback struct {
	QuestionNumber    int    `json:"questionNumber"`
	OptionID          string `json:"optionId"`
	Correct           bool   `json:"correct"`
	CorrectOptionID   string `json:"correctOptionId"`
	CorrectAnswerText string `json:"correctAnswer"`
	Score             int    `json:"score"`
	XPEarned          int    `json:"xpEarned"`
}

// State is a read-only snapshot of a session.
type State struct {
	ID              string              `json:"id"`
	PlayerID        string              `json:"playerId"`
	UserName        string              `json:"userName"`
	PageNumber      int                 `json:"pageNumber"`
	PageNumbers     []int               `json:"pageNumbers"`
	Narrator        string              `json:"narrator"`
	Phase           Phase               `json:"phase"`
	CurrentQuestion int                 `json:"currentQuestion"`
	TotalQuestions  int                 `json:"totalQuestions"`
	Score           int                 `json:"score"`
	XPEarned        int                 `json:"xpEarned"`
	ErrorLog        []domain.ErrorEntry `json:"errorLog"`
	Question        *questions.Question `json:"question,omitempty"`
	Answered        bool                `json:"answered"`
	HaltReason      string              `json:"haltReason,omitempty"`
	LiveEventID     string              `json:"liveEventId,omitempty"`
	QuestID         string              `json:"questId,omitempty"`
	StartedAt       time.Time           `json:"startedAt"`
	Outcome         *Outcome            `json:"outcome,omitempty"`
}

// Event is one update delivered to session subscribers.
type Event struct {
	Type     string    `json:"type"`
	State    State     `json:"state"`
	Feedback *Feedback `json:"feedback,omitempty"`
}

// Session is the in-memory state of one player's attempt. All fields are
// guarded by mu; the page content is immutable once the session starts.
type Session struct {
	id          string
	playerID    string
	userName    string
	player      domain.Player
	pageNumbers []int
	narrator    string
	ayahs       []domain.Ayah
	liveEvent   *domain.LiveEvent
	quest       *domain.Quest
	recipe      []string
	now         func() time.Time
	rng         *rand.Rand

	mu             sync.Mutex
	phase          Phase
	totalQuestions int
	currentIndex   int
	score          int
	xpEarned       int
	errorLog       []domain.ErrorEntry
	startTime      time.Time
	current        *questions.Question
	answered       bool
	haltErr        error
	outcome        *Outcome
	subscribers    map[chan Event]struct{}
}

func newSession(id string, now func() time.Time, rng *rand.Rand) *Session {
	return &Session{
		id:          id,
		now:         now,
		rng:         rng,
		phase:       PhaseIdle,
		subscribers: make(map[chan Event]struct{}),
	}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, playerID string) *Session {
	sess := newSession(id, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
	sess.playerID = playerID
	return sess
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// PlayerID returns the owning player.
func (s *Session) PlayerID() string { return s.playerID }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Finished reports whether the session has been settled.
func (s *Session) Finished() bool {
	return s.Phase() == PhaseCompleted
}

// pageNumber is the page recorded for mastery and results: the first page of
// the session.
func (s *Session) pageNumber() int {
	if len(s.pageNumbers) == 0 {
		return 0
	}
	return s.pageNumbers[0]
}

// startLocked resets the counters and stamps the start time.
func (s *Session) startLocked(total int) {
	s.phase = PhaseActive
	s.totalQuestions = total
	s.currentIndex = 0
	s.score = 0
	s.xpEarned = 0
	s.errorLog = nil
	s.current = nil
	s.answered = false
	s.haltErr = nil
	s.outcome = nil
	s.startTime = s.now()
}

// recordAnswerLocked applies one graded answer to the counters.
func (s *Session) recordAnswerLocked(correct bool, xpPerCorrect int) {
	if correct {
		s.score++
		s.xpEarned += xpPerCorrect
	} else {
		s.errorLog = append(s.errorLog, domain.ErrorEntry{
			QuestionSnapshot:  s.current.Snapshot(),
			CorrectAnswerText: s.current.CorrectAnswerText,
		})
	}
	s.answered = true
}

func (s *Session) haltLocked(err error) {
	s.phase = PhaseHalted
	s.current = nil
	s.haltErr = err
	s.broadcastLocked(Event{Type: EventHalted})
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:      s.id,
		PlayerID:       s.playerID,
		UserName:       s.userName,
		PageNumber:     s.pageNumber(),
		Narrator:       s.narrator,
		Score:          s.score,
		TotalQuestions: s.totalQuestions,
		XPEarned:       s.xpEarned,
		ErrorLog:       append([]domain.ErrorEntry(nil), s.errorLog...),
		StartTime:      s.startTime,
		LiveEvent:      s.liveEvent,
		Quest:          s.quest,
	}
}

func (s *Session) stateLocked() State {
	st := State{
		ID:              s.id,
		PlayerID:        s.playerID,
		UserName:        s.userName,
		PageNumber:      s.pageNumber(),
		PageNumbers:     append([]int(nil), s.pageNumbers...),
		Narrator:        s.narrator,
		Phase:           s.phase,
		CurrentQuestion: s.currentIndex,
		TotalQuestions:  s.totalQuestions,
		Score:           s.score,
		XPEarned:        s.xpEarned,
		ErrorLog:        append([]domain.ErrorEntry(nil), s.errorLog...),
		Question:        s.current,
		Answered:        s.answered,
		StartedAt:       s.startTime,
		Outcome:         s.outcome,
	}
	if s.haltErr != nil {
		st.HaltReason = s.haltErr.Error()
	}
	if s.liveEvent != nil {
		st.LiveEventID = s.liveEvent.ID
	}
	if s.quest != nil {
		st.QuestID = s.quest.ID
	}
	return st
}

func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// ch is empty, so this never blocks.
	ch <- Event{Type: string(s.phase), State: s.stateLocked()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev Event) {
	ev.State = s.stateLocked()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest event.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
