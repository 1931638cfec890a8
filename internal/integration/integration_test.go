package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
	"quizdown-service/internal/evaluator"
	"quizdown-service/internal/infra/postgres"
	pgmigrations "quizdown-service/internal/infra/postgres/migrations"
	infraredis "quizdown-service/internal/infra/redis"
	"quizdown-service/internal/markup"
)

const capitalsDoc = `<Capitals:1>
What is the capital of France?
- Berlin
> Paris
- Rome

Which are in Italy?
> Rome
> Milan
- Madrid
</Capitals>`

func TestImportAndSubmitEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	parser := markup.NewParser(nil)
	quizRepo := infraredis.NewQuizRepository(redisClient, postgres.NewQuizStore(pool, parser), 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewQuizService(quizRepo, sessionStore,
		app.NewOrchestrator(evaluator.Heuristic{}, 4, 5*time.Second, nil, nil))

	if _, err := service.ImportDocument(ctx, capitalsDoc, "integration"); err != nil {
		t.Fatalf("import: %v", err)
	}

	quiz, err := service.GetQuiz(ctx, "capitals")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.TimeLimit != 60 || len(quiz.Questions) != 2 {
		t.Fatalf("unexpected stored quiz %+v", quiz)
	}

	session, err := service.StartSession(ctx, "capitals")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := map[int][]string{}
	for i, q := range session.Quiz.Questions {
		switch q.Text {
		case "What is the capital of France?":
			answers[i] = []string{"Paris"}
		default:
			answers[i] = []string{"Rome"}
		}
	}
	done, err := service.Submit(ctx, session.ID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if *done.Score != 1 || done.Total() != 2 {
		t.Fatalf("expected 1/2, got %d/%d", *done.Score, done.Total())
	}

	if _, err := service.Submit(ctx, session.ID, answers); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	latest, err := service.LatestSession(ctx, "capitals")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != session.ID || !latest.Completed() {
		t.Fatalf("unexpected latest session %+v", latest)
	}

	deleted, err := service.DeleteQuizzes(ctx)
	if err != nil || deleted != 1 {
		t.Fatalf("expected one deleted quiz, got %d (%v)", deleted, err)
	}
	if _, err := service.GetQuiz(ctx, "capitals"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound after delete, got %v", err)
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

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
