package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"hifz-quiz-service/internal/app"
	"hifz-quiz-service/internal/config"
	"hifz-quiz-service/internal/content"
	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/infra/memory"
	"hifz-quiz-service/internal/infra/postgres"
	infraredis "hifz-quiz-service/internal/infra/redis"
	"hifz-quiz-service/internal/logging"
	"hifz-quiz-service/internal/progression"
	"hifz-quiz-service/internal/questions"
	"hifz-quiz-service/internal/rewards"
	transport "hifz-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// configSource is the full set of configuration tables.
type configSource interface {
	LoadProgression(ctx context.Context) (*domain.ProgressionSettings, error)
	LoadQuestions(ctx context.Context) ([]domain.QuestionConfig, error)
	LoadLiveEvents(ctx context.Context) ([]domain.LiveEvent, error)
}

// backends are the optional external stores; nil fields fall back to memory.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer b.redis.Close()
	}
	if cfg.Postgres.URL != "" {
		b.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer b.pool.Close()
		b.db = openDB(cfg.Postgres.URL)
		defer b.db.Close()
	}

	service, reload := buildService(ctx, cfg, b)
	router := transport.NewRouter(
		transport.NewAPIHandler(service, reload),
		transport.NewWSHandler(service),
		transport.RouterOptions{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AdminToken:     cfg.Server.AdminToken,
		},
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("starting quiz service", "port", finalPort,
			"redis", b.redis != nil, "postgres", b.db != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService wires the quiz service over whichever backends are configured.
// The returned reload refreshes the cached question catalog.
func buildService(ctx context.Context, cfg config.Config, b backends) (*app.QuizService, func(context.Context) error) {
	if cfg.Game.AudioURL != "" {
		questions.AudioBaseURL = cfg.Game.AudioURL
	}

	var loader configSource = memory.NewStaticConfigLoader(cfg.Game.Progression, cfg.Game.Questions, cfg.Game.LiveEvents)
	if b.pool != nil {
		loader = postgres.NewConfigLoader(b.pool)
	}
	gameConfig := loader
	var invalidate func(context.Context) error
	if b.redis != nil {
		repo := infraredis.NewConfigRepository(b.redis, loader, config.TTLDuration(cfg.Game.ConfigTTL, 5*time.Minute))
		gameConfig = repo
		invalidate = repo.Invalidate
	}

	engine := progression.NewEngine()
	engine.Initialize(ctx, gameConfig)
	catalog := questions.NewCatalog(questions.DefaultRegistry())
	catalog.Load(ctx, gameConfig)

	client := content.NewClient(cfg.Content.BaseURL, cfg.Content.Edition,
		config.TTLDuration(cfg.Content.Timeout, 10*time.Second))
	contentTTL := config.TTLDuration(cfg.Content.TTL, 24*time.Hour)
	var pages app.ContentSource
	if b.redis != nil {
		pages = infraredis.NewPageRepository(b.redis, client, contentTTL)
	} else {
		pages = memory.NewPageRepository(client, contentTTL)
	}

	var sessions app.SessionRepository
	if b.redis != nil {
		sessions = infraredis.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		sessions = memory.NewSessionStore()
	}

	collab := memoryCollaborators(cfg)
	if b.db != nil {
		store := postgres.NewStore(b.db)
		collab.Players = store
		collab.Results = store
		collab.Mastery = store
		collab.Quests = rewards.NewQuestTracker(store, cfg.Game.Quests)
		collab.Achievements = rewards.NewAchievementEngine(store)
		collab.Leaderboard = store
	}
	if b.redis != nil {
		collab.Leaderboard = infraredis.NewLeaderboard(b.redis)
	}

	opts := []app.Option{}
	if cfg.Game.AnswerDelay != "" {
		opts = append(opts, app.WithAnswerDelay(config.TTLDuration(cfg.Game.AnswerDelay, app.DefaultAnswerDelay)))
	}
	service := app.NewQuizService(app.Deps{
		Engine:        engine,
		Catalog:       catalog,
		Sessions:      sessions,
		Content:       pages,
		LiveEvents:    gameConfig,
		Collaborators: collab,
	}, opts...)

	reload := func(ctx context.Context) error {
		if invalidate != nil {
			if err := invalidate(ctx); err != nil {
				return err
			}
		}
		catalog.Load(ctx, gameConfig)
		slog.Info("game config reloaded", "question_types", len(catalog.Entries()))
		return nil
	}
	return service, reload
}

// memoryCollaborators keeps everything in process. Progress is lost on
// restart; it serves local runs without Postgres.
func memoryCollaborators(cfg config.Config) app.Collaborators {
	players := memory.NewPlayerStore()
	progress := memory.NewProgressStore()
	return app.Collaborators{
		Players:      players,
		Results:      progress,
		Mastery:      progress,
		Quests:       rewards.NewQuestTracker(progress, cfg.Game.Quests),
		Achievements: rewards.NewAchievementEngine(progress),
		Leaderboard:  players,
	}
}
