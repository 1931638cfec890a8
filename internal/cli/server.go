package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizdown-service/internal/app"
	"quizdown-service/internal/config"
	"quizdown-service/internal/domain"
	"quizdown-service/internal/evaluator"
	"quizdown-service/internal/infra/filestore"
	"quizdown-service/internal/infra/memory"
	"quizdown-service/internal/infra/postgres"
	redisstore "quizdown-service/internal/infra/redis"
	"quizdown-service/internal/logging"
	"quizdown-service/internal/markup"
	"quizdown-service/internal/metrics"
	transport "quizdown-service/internal/transport/http"
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

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	m := metrics.New()
	parser := markup.NewParser(domain.DefaultShuffle)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	quizzes, closeStore, err := newQuizRepository(ctx, cfg, parser, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if redisClient != nil {
		quizzes = redisstore.NewQuizRepository(redisClient, quizzes, cfg.QuizCacheTTL())
	}

	sessionTTL := cfg.SessionTTL()
	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		store := memory.NewSessionStore(sessionTTL, logger)
		store.Start(ctx, config.TTLDuration(cfg.Session.SweepInterval, time.Minute))
		sessions = store
	}

	client := evaluator.NewClient(evaluator.Config{
		BaseURL: cfg.Evaluator.BaseURL,
		APIKey:  cfg.Evaluator.APIKey,
		Model:   cfg.Evaluator.Model,
		Timeout: config.TTLDuration(cfg.Evaluator.Timeout, 120*time.Second),
	}, logger.Named("evaluator"))

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithMetrics(m),
		app.WithIDGenerator(uuid.NewString),
	}
	var eval app.Evaluator = evaluator.Heuristic{}
	if client.IsAvailable() {
		eval = client
		opts = append(opts,
			app.WithGenerator(client),
			app.WithContextProvider(memory.NewContextCache(client, config.TTLDuration(cfg.Evaluator.ContextTTL, time.Hour))),
		)
	} else {
		logger.Warn("evaluator API key not set, using offline heuristic feedback")
	}

	orchestrator := app.NewOrchestrator(
		eval,
		cfg.Evaluator.Workers,
		config.TTLDuration(cfg.Evaluator.Timeout, 120*time.Second),
		logger.Named("orchestrator"),
		m,
	)
	service := app.NewQuizService(quizzes, sessions, orchestrator, opts...)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewServer(service, logger.Named("http"), m).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      6 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service", zap.String("addr", server.Addr), zap.String("quiz_store", cfg.Quiz.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newQuizRepository builds the durable quiz store named by cfg.Quiz.Store.
// The in-memory store is seeded from cfg.Quiz.Dir when that directory exists.
func newQuizRepository(ctx context.Context, cfg config.Config, parser *markup.Parser, logger *zap.Logger) (app.QuizRepository, func(), error) {
	switch cfg.Quiz.Store {
	case "postgres":
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewQuizStore(pool, parser), pool.Close, nil
	case "file":
		store, err := filestore.NewQuizStore(cfg.Quiz.Dir, parser)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "", "memory":
		store := memory.NewQuizRepository()
		if err := seedQuizzes(ctx, store, cfg.Quiz.Dir, parser, logger); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown quiz store %q", cfg.Quiz.Store)
	}
}

func seedQuizzes(ctx context.Context, store app.QuizRepository, dir string, parser *markup.Parser, logger *zap.Logger) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	source, err := filestore.NewQuizStore(dir, parser)
	if err != nil {
		return err
	}
	quizzes, err := source.List(ctx)
	if err != nil {
		return fmt.Errorf("seed quizzes from %s: %w", dir, err)
	}
	for _, quiz := range quizzes {
		if err := store.Save(ctx, quiz); err != nil {
			return err
		}
	}
	logger.Info("seeded quizzes", zap.String("dir", dir), zap.Int("count", len(quizzes)))
	return nil
}
