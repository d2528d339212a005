package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizflow/internal/app"
	"quizflow/internal/config"
	"quizflow/internal/domain"
	"quizflow/internal/infra/memory"
	pgstore "quizflow/internal/infra/postgres"
	redisstore "quizflow/internal/infra/redis"
	transport "quizflow/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the public quiz API server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the public quiz API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.DefinitionLoader = memory.NewStaticDefinitionLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewDefinitionLoader(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.DefinitionRepository
	if redisClient != nil {
		quizzes = redisstore.NewDefinitionCache(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewDefinitionCache(loader, quizTTL)
	}

	sessionTTL := config.Duration(cfg.Session.TTL, 24*time.Hour)
	var sessions app.SessionStore
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var archiver app.Archiver
	if pool != nil {
		archiver = pgstore.NewSessionArchive(pool)
	}

	service := app.NewService(quizzes, sessions, archiver)
	handler := transport.NewHandler(service)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz flow service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a demo lead-gen quiz; swap the loader for the
// Postgres-backed one in production.
func sampleQuizzes() map[string]domain.Quiz {
	low, mid, high := 0, 3, 6
	midMax := 5
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "How ready is your team for CRM automation?",
			Questions: []domain.Question{
				{
					ID:       "q1",
					Type:     domain.SingleChoice,
					Prompt:   "How do you track leads today?",
					Position: 1,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "Spreadsheets", Points: 1},
						{ID: "o2", Text: "A CRM we barely use", Points: 2},
						{ID: "o3", Text: "We don't", Points: 0, JumpToQuestionID: "q3"},
					},
				},
				{
					ID:       "q2",
					Type:     domain.MultipleChoice,
					Prompt:   "Which channels bring you leads?",
					Position: 2,
					Options: []domain.AnswerOption{
						{ID: "o4", Text: "Ads", Points: 2},
						{ID: "o5", Text: "Referrals", Points: 2},
						{ID: "o6", Text: "Cold outreach", Points: 1},
					},
				},
				{
					ID:          "q3",
					Type:        domain.Rating,
					Prompt:      "How urgent is fixing this for you?",
					Position:    3,
					RatingScale: 5,
				},
			},
			Results: []domain.QuizResult{
				{ID: "r1", Title: "Just starting out", MinScore: &low, MaxScore: &mid},
				{ID: "r2", Title: "Getting there", MinScore: &mid, MaxScore: &midMax},
				{ID: "r3", Title: "Ready to automate", MinScore: &high},
			},
			LeadFields: []domain.LeadField{
				{Name: "email", Label: "Work email", Required: true},
			},
			LeadPosition: domain.LeadAfterResults,
		},
	}
}
