package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or was discarded.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrPlayerNotFound is returned when a player record cannot be loaded.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrSessionNotActive is returned when an answer arrives outside the active phase.
	ErrSessionNotActive = errors.New("quiz session is not active")
	// ErrAlreadyAnswered guards against double submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrQuestionMismatch indicates the answer targets a question that is not current.
	ErrQuestionMismatch = errors.New("answer does not match the current question")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidQuestionCount indicates the requested session length is out of range.
	ErrInvalidQuestionCount = errors.New("invalid question count for player level")
	// ErrPageLocked indicates the page is neither free nor purchased.
	ErrPageLocked = errors.New("page is not available to this player")
	// ErrNarratorLocked indicates the narrator is neither free nor purchased.
	ErrNarratorLocked = errors.New("narrator is not available to this player")
	// ErrLiveEventNotFound indicates an unknown live event id.
	ErrLiveEventNotFound = errors.New("live event not found")
	// ErrQuestNotFound indicates the quest is not assigned to the player.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrContentUnavailable indicates no page content could be fetched.
	ErrContentUnavailable = errors.New("page content unavailable")
	// ErrNoQuestionsAvailable indicates no generator is unlocked for the player's level.
	ErrNoQuestionsAvailable = errors.New("no questions available for current level")
	// ErrInsufficientContent indicates every eligible generator failed to build a question.
	ErrInsufficientContent = errors.New("insufficient content to build a question")
)
