package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	AllowedOrigins []string
	// AdminToken enables the admin routes, which then require it as a
	// bearer token. Empty leaves them unmounted.
	AdminToken string
}

// NewRouter mounts the websocket endpoint and the REST API.
func NewRouter(api *APIHandler, ws *WSHandler, opts RouterOptions) http.Handler {
	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(slogFormatter{}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/levels", api.ResolveLevel)
		r.Get("/leaderboard", api.Leaderboard)
		r.Get("/live-events", api.LiveEvents)
		if opts.AdminToken != "" {
			r.With(requireBearer(opts.AdminToken)).Post("/admin/config/reload", api.ReloadConfig)
		}

		r.Route("/players/{id}", func(r chi.Router) {
			r.Get("/profile", api.Profile)
			r.Get("/quests", api.Quests)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", api.StartSession)
			r.Get("/{id}", api.SessionState)
			r.Delete("/{id}", api.Abandon)
			r.Post("/{id}/answers", api.SubmitAnswer)
			r.Post("/{id}/retry", api.Retry)
		})
	})
	return r
}

func requireBearer(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorPayload{Code: "unauthorized", Message: "admin token required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
