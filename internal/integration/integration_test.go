package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizflow/internal/app"
	"quizflow/internal/domain"
	"quizflow/internal/engine"
	pgstore "quizflow/internal/infra/postgres"
	pgmigrations "quizflow/internal/infra/postgres/migrations"
	redisstore "quizflow/internal/infra/redis"
	"quizflow/internal/tracker"
	transport "quizflow/internal/transport/http"
)

func TestQuizFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewDefinitionLoader(pool)
	quizzes := redisstore.NewDefinitionCache(redisClient, loader, 5*time.Minute)
	sessions := redisstore.NewSessionStore(redisClient, 5*time.Minute)
	archive := pgstore.NewSessionArchive(pool)
	service := app.NewService(quizzes, sessions, archive)

	server := httptest.NewServer(transport.NewHandler(service).Routes())
	defer server.Close()

	// Drive a full respondent attempt through the engine and the HTTP tracker.
	quiz, err := service.GetQuiz(ctx, "quiz-1", false)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	client := tracker.NewClient(server.URL, "quiz-1", 5*time.Second)
	flow := engine.NewFlow(quiz, client, 0)

	if got := flow.Start(ctx, domain.SessionAttribution{UTMSource: "ads"}); got != engine.ScreenQuestion {
		t.Fatalf("expected question screen, got %s", got)
	}
	sessionID, tracked := flow.SessionID()
	if !tracked || sessionID == "" {
		t.Fatalf("expected tracked session")
	}

	flow.Answer(ctx, "o2") // 8 points, single choice auto-advances
	if err := flow.Next(ctx); err != nil {
		t.Fatalf("skip optional question: %v", err)
	}
	if got := flow.Screen(); got != engine.ScreenResult {
		t.Fatalf("expected result screen, got %s", got)
	}
	result, ok := flow.Result()
	if !ok || result.ID != "high" {
		t.Fatalf("expected high tier, got %+v ok=%v", result, ok)
	}
	client.Flush()

	// The collaborator recomputed the same score and archived the session.
	remote, err := service.SyncAnswers(ctx, "quiz-1", sessionID, domain.AnswerSet{})
	if err != domain.ErrSessionCompleted {
		t.Fatalf("expected completed session on server, got %v (session %+v)", err, remote)
	}

	var raw []byte
	if err := pool.QueryRow(ctx, `SELECT data FROM quiz_sessions WHERE id=$1`, sessionID).Scan(&raw); err != nil {
		t.Fatalf("read archived session: %v", err)
	}
	var archived domain.Session
	if err := json.Unmarshal(raw, &archived); err != nil {
		t.Fatalf("unmarshal archived session: %v", err)
	}
	if archived.Score != 8 || archived.ResultID != "high" || !archived.Completed() {
		t.Fatalf("unexpected archived session: %+v", archived)
	}
	if archived.Attribution.UTMSource != "ads" {
		t.Fatalf("expected attribution captured at open, got %+v", archived.Attribution)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	low, high := 0, 6
	lowMax := 5
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Type:     domain.SingleChoice,
				Prompt:   "How do you track leads today?",
				Position: 1,
				Options: []domain.AnswerOption{
					{ID: "o1", Text: "Spreadsheets", Points: 2},
					{ID: "o2", Text: "Nothing yet", Points: 8},
				},
			},
			{
				ID:       "q2",
				Type:     domain.TextInput,
				Prompt:   "Anything else?",
				Position: 2,
			},
		},
		Results: []domain.QuizResult{
			{ID: "low", Title: "Getting there", MinScore: &low, MaxScore: &lowMax},
			{ID: "high", Title: "Ready", MinScore: &high},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
