package main

import (
	"bufio"
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/siah/siah/internal/config"
	"github.com/siah/siah/internal/domain/board"
	"github.com/siah/siah/internal/domain/flow"
	"github.com/siah/siah/internal/domain/ticket"
	"github.com/siah/siah/internal/platform/auth"
	"github.com/siah/siah/internal/platform/cache"
	"github.com/siah/siah/internal/platform/db"
	"github.com/siah/siah/internal/platform/events"
	"github.com/siah/siah/internal/platform/metrics"
	"github.com/siah/siah/internal/platform/middleware"
	"github.com/siah/siah/internal/platform/websocket"
	"github.com/siah/siah/migrations"
)

const (
	requestTimeout = 15 * time.Second
	bodyLimit      = "64K"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "siah-server",
		Short: "Clinic patient-flow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationsFS returns the embedded migrations, or dir when one is given.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationsFS(dir)), pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for a users file entry",
		Long:  "Prints the bcrypt hash of the given password. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// resolveSigningKey returns the configured token signing key, or a random
// 32-byte key when none is set. The second return value is true when the
// key was generated; tokens then stop validating after a restart.
func resolveSigningKey(configured string) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	level := zerolog.InfoLevel
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
		level = zerolog.DebugLevel
	}
	return logger.Level(level)
}

func loadUsers(cfg *config.Config) (*auth.UserStore, error) {
	if cfg.UsersFile != "" {
		return auth.LoadUsersFile(cfg.UsersFile)
	}
	users, err := auth.DemoUsers()
	if err != nil {
		return nil, err
	}
	return auth.NewUserStore(users)
}

// app holds the wired server and the pieces runServer starts and stops.
type app struct {
	echo        *echo.Echo
	flow        *flow.Service
	tickets     *ticket.Service
	broadcaster *board.Broadcaster
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// start launches the background loops. They stop when ctx is cancelled.
func (a *app) start(ctx context.Context, cfg *config.Config) {
	go a.flow.RunCallSweeper(ctx, cfg.CallSweepInterval)
	go a.broadcaster.Run(ctx)
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	// Stores
	var pool *pgxpool.Pool
	flowRepos := flow.NewMemoryRepos()
	ticketRepo := ticket.NewMemoryRepo()
	if cfg.UsesPostgres() {
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fail(fmt.Errorf("connect to database: %w", err))
		}
		a.closers = append(a.closers, pool.Close)
		flowRepos = flow.NewPGRepos(pool)
		ticketRepo = ticket.NewPGRepo(pool)
		logger.Info().Msg("connected to database")
	}

	var counter ticket.Counter
	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		counter = ticket.NewRedisCounter(rdb, ticketRepo)
	}

	// Events
	bus := events.NewBus()
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		a.closers = append(a.closers, func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("close kafka writer")
			}
		})
		bus.Subscribe(kp.Handle)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("streaming events to kafka")
	}

	// Services
	a.tickets = ticket.NewService(ticketRepo, counter)
	a.tickets.SetPublisher(bus)

	a.flow = flow.NewService(flowRepos, flow.Options{
		CallTTL:            cfg.CallTTL,
		TriageStation:      cfg.TriageStation,
		DefaultConsultorio: cfg.DefaultConsultorio,
	})
	a.flow.SetPublisher(bus)
	a.flow.SetTicketMarker(a.tickets)

	hub := websocket.NewHub()
	boardSvc := board.NewService(a.flow, a.tickets)
	a.broadcaster = board.NewBroadcaster(boardSvc, hub)
	hub.SetGreeter(a.broadcaster.Greet)
	bus.Subscribe(a.broadcaster.Handle)

	// Auth
	key, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return fail(err)
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key; tokens will not survive a restart")
	}
	users, err := loadUsers(cfg)
	if err != nil {
		return fail(fmt.Errorf("load users: %w", err))
	}
	revocations := auth.NewTokenRevocationStore(5 * time.Minute)
	a.closers = append(a.closers, revocations.Close)
	jwtCfg := auth.JWTConfig{
		Issuer:      cfg.AuthIssuer,
		SigningKey:  key,
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Infrastructure endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "store": cfg.StoreBackend})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e)

	// API
	apiV1 := e.Group("/api/v1")
	auth.NewHandler(users, auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.AuthTokenTTL), revocations).RegisterRoutes(apiV1)
	flow.NewHandler(a.flow).RegisterRoutes(apiV1)
	ticket.NewHandler(a.tickets).RegisterRoutes(apiV1)
	board.NewHandler(boardSvc).RegisterRoutes(apiV1)

	a.echo = e
	return a, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logger
	logger := newLogger(cfg)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.close()
	a.start(ctx, cfg)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
