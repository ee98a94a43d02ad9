package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hifz-quiz-service/internal/app"
	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/logging"
)

func remarshal(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func doJSON(t *testing.T, method, url string, body any, dst any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp.StatusCode
}

func TestRESTSessionLifecycle(t *testing.T) {
	service := newTestService(t)
	server := httptest.NewServer(NewRouter(NewAPIHandler(service, nil), NewWSHandler(service), RouterOptions{}))
	defer server.Close()

	var st app.State
	status := doJSON(t, http.MethodPost, server.URL+"/api/sessions", map[string]any{
		"playerId": "p1", "userName": "Amina", "pageNumber": 1, "totalQuestions": 2,
	}, &st)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, app.PhaseActive, st.Phase)
	require.NotNil(t, st.Question)

	// A wrong question number is rejected without touching the session.
	var apiErr errorPayload
	status = doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+st.ID+"/answers",
		map[string]any{"questionNumber": 2, "optionId": "x"}, &apiErr)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "question_mismatch", apiErr.Code)

	for i := 1; i <= 2; i++ {
		cur, err := service.State(context.Background(), st.ID)
		require.NoError(t, err)
		var fb app.Feedback
		status = doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+st.ID+"/answers",
			map[string]any{"questionNumber": i, "optionId": cur.Question.CorrectOptionID}, &fb)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, fb.Correct)
		assert.Equal(t, i, fb.Score)
	}

	status = doJSON(t, http.MethodGet, server.URL+"/api/sessions/"+st.ID, nil, &st)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, app.PhaseCompleted, st.Phase)
	require.NotNil(t, st.Outcome)
	assert.Equal(t, 70, st.Outcome.Delta.XPEarned)

	var profile app.Profile
	status = doJSON(t, http.MethodGet, server.URL+"/api/players/p1/profile", nil, &profile)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 70, profile.Player.XP)
	assert.Equal(t, 100, profile.Accuracy)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, profile.Pages)

	var lb domain.Leaderboard
	status = doJSON(t, http.MethodGet, server.URL+"/api/leaderboard", nil, &lb)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "p1", lb.Entries[0].PlayerID)

	status = doJSON(t, http.MethodDelete, server.URL+"/api/sessions/"+st.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status = doJSON(t, http.MethodGet, server.URL+"/api/sessions/"+st.ID, nil, &apiErr)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", apiErr.Code)
}

func TestRESTStartValidation(t *testing.T) {
	service := newTestService(t)
	server := httptest.NewServer(NewRouter(NewAPIHandler(service, nil), NewWSHandler(service), RouterOptions{}))
	defer server.Close()

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing player", map[string]any{"pageNumber": 1, "totalQuestions": 5}, http.StatusBadRequest, "bad_request"},
		{"too many questions", map[string]any{"playerId": "p1", "userName": "a", "pageNumber": 1, "totalQuestions": 500}, http.StatusBadRequest, "invalid_question_count"},
		{"locked narrator", map[string]any{"playerId": "p1", "userName": "a", "pageNumber": 1, "totalQuestions": 5, "narrator": "ar.husary"}, http.StatusForbidden, "narrator_locked"},
		{"unknown event", map[string]any{"playerId": "p1", "userName": "a", "liveEventId": "nope"}, http.StatusNotFound, "live_event_not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr errorPayload
			status := doJSON(t, http.MethodPost, server.URL+"/api/sessions", tc.body, &apiErr)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, apiErr.Code)
		})
	}
}

func TestRESTLookups(t *testing.T) {
	service := newTestService(t)
	reloaded := 0
	api := NewAPIHandler(service, func(context.Context) error {
		reloaded++
		return nil
	})
	server := httptest.NewServer(NewRouter(api, NewWSHandler(service), RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		AdminToken:     "s3cret",
	}))
	defer server.Close()

	var level domain.LevelInfo
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, server.URL+"/api/levels?xp=150", nil, &level))
	assert.Equal(t, 2, level.Level)
	assert.Equal(t, "Learner", level.Title)

	var apiErr errorPayload
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, server.URL+"/api/levels?xp=abc", nil, &apiErr))

	var events []domain.LiveEvent
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, server.URL+"/api/live-events", nil, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "ramadan", events[0].ID)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, server.URL+"/api/players/ghost/profile", nil, &apiErr))
	assert.Equal(t, "player_not_found", apiErr.Code)

	assert.Equal(t, http.StatusUnauthorized, doJSON(t, http.MethodPost, server.URL+"/api/admin/config/reload", nil, &apiErr))
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Equal(t, 0, reloaded)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/admin/config/reload", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, reloaded)
}

func TestAdminRoutesUnmountedWithoutToken(t *testing.T) {
	service := newTestService(t)
	reloaded := 0
	api := NewAPIHandler(service, func(context.Context) error {
		reloaded++
		return nil
	})
	server := httptest.NewServer(NewRouter(api, NewWSHandler(service), RouterOptions{}))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/admin/config/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, reloaded)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw := bytes.TrimSpace(append([]byte(nil), b.buf.Bytes()...))
	return bytes.Split(raw, []byte("\n"))
}

func TestRequestsAreLoggedAsJSON(t *testing.T) {
	var out lockedBuffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&out, "info"))
	defer slog.SetDefault(prev)

	service := newTestService(t)
	server := httptest.NewServer(NewRouter(NewAPIHandler(service, nil), NewWSHandler(service), RouterOptions{}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	// The entry is written once the handler returns, which can trail the response.
	var entry map[string]any
	require.Eventually(t, func() bool {
		for _, line := range out.lines() {
			var e map[string]any
			if json.Unmarshal(line, &e) == nil && e["msg"] == "request" && e["path"] == "/healthz" {
				entry = e
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, http.StatusOK, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
	for _, line := range out.lines() {
		assert.True(t, json.Valid(line), "non-JSON log line %q", line)
	}
}
