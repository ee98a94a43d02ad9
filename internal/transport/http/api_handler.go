package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hifz-quiz-service/internal/app"
)

// APIHandler serves the REST side of the service: profiles, level lookups,
// the leaderboard and request/response session control.
type APIHandler struct {
	service *app.QuizService
	reload  func(ctx context.Context) error
}

// NewAPIHandler builds the handler. reload, when set, refreshes the cached
// game configuration.
func NewAPIHandler(service *app.QuizService, reload func(ctx context.Context) error) *APIHandler {
	return &APIHandler{service: service, reload: reload}
}

func (h *APIHandler) ResolveLevel(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.Atoi(r.URL.Query().Get("xp"))
	if err != nil || xp < 0 {
		badRequest(w, "xp must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, h.service.ResolveLevel(xp))
}

func (h *APIHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) Quests(w http.ResponseWriter, r *http.Request) {
	quests, err := h.service.Quests(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quests)
}

func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *APIHandler) LiveEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.LiveEvents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *APIHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var settings app.StartSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if settings.PlayerID == "" || settings.UserName == "" {
		badRequest(w, "playerId and userName are required")
		return
	}
	state, err := h.service.StartSession(r.Context(), settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *APIHandler) SessionState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var payload answerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	fb, err := h.service.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), payload.QuestionNumber, payload.OptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (h *APIHandler) Retry(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.reload(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
