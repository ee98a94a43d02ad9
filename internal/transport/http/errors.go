package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hifz-quiz-service/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrSessionNotFound, "session_not_found", http.StatusNotFound},
	{domain.ErrPlayerNotFound, "player_not_found", http.StatusNotFound},
	{domain.ErrLiveEventNotFound, "live_event_not_found", http.StatusNotFound},
	{domain.ErrQuestNotFound, "quest_not_found", http.StatusNotFound},
	{domain.ErrSessionNotActive, "session_not_active", http.StatusConflict},
	{domain.ErrAlreadyAnswered, "already_answered", http.StatusConflict},
	{domain.ErrQuestionMismatch, "question_mismatch", http.StatusConflict},
	{domain.ErrOptionNotFound, "option_not_found", http.StatusBadRequest},
	{domain.ErrInvalidQuestionCount, "invalid_question_count", http.StatusBadRequest},
	{domain.ErrPageLocked, "page_locked", http.StatusForbidden},
	{domain.ErrNarratorLocked, "narrator_locked", http.StatusForbidden},
	{domain.ErrContentUnavailable, "content_unavailable", http.StatusBadGateway},
}

// classify maps a service error onto a stable code and HTTP status.
func classify(err error) (errorPayload, int) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return errorPayload{Code: c.code, Message: err.Error()}, c.status
		}
	}
	return errorPayload{Code: "internal", Message: err.Error()}, http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	payload, status := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, payload)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: msg})
}
