package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"achievementsAPI/handlers"
	"achievementsAPI/internal/config"
	"achievementsAPI/internal/live"
	"achievementsAPI/internal/notification"
	"achievementsAPI/internal/store"
	"achievementsAPI/middleware"
	"achievementsAPI/services"

	_ "net/http/pprof"
)

var migrateOnStart bool

var rootCmd = &cobra.Command{
	Use:   "achievementsAPI",
	Short: "Achievements, rewards and user progress API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.DriverPostgres {
			return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.DriverPostgres)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Println("Schema applied")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply the database schema before serving")
	}
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*store.Postgres, error) {
	return store.OpenPostgres(ctx, store.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Println("Using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := openPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Println("Database schema is up to date")
	}
	return db, nil
}

// startPush wires FCM behind the dispatcher. A nil dispatcher means mobile
// push is disabled.
func startPush(ctx context.Context, cfg *config.Config) *services.NotificationDispatcher {
	if !cfg.PushEnabled() {
		log.Println("FCM credentials not configured; mobile push disabled")
		return nil
	}

	fcmService, err := notification.NewFCMService(ctx, cfg.FCMCredentials, cfg.FCMCredentialFile)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
		return nil
	}

	log.Println("FCM Push Provider initialized successfully")
	return services.NewNotificationDispatcher(fcmService)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing store...")
		db.Close()
	}()

	registry := live.NewRegistry(cfg.HeartbeatInterval)

	notifiers := []services.ProgressNotifier{services.NewLiveNotifier(registry)}
	dispatcher := startPush(ctx, cfg)
	if dispatcher != nil {
		defer dispatcher.Stop()
		notifiers = append(notifiers, services.NewPushNotifier(dispatcher))
	}

	collectors := append(live.Collectors(), services.MetricsCollectors()...)
	middleware.InitPrometheus(collectors...)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	go registry.Run(backgroundCtx)
	go rateLimiter.CleanupVisitors(backgroundCtx)

	r := handlers.NewRouter(handlers.Services{
		Progress:     services.NewProgressService(db, notifiers...),
		Categories:   services.NewCategoryService(db),
		Achievements: services.NewAchievementService(db),
		Rewards:      services.NewRewardService(db),
		Stats:        services.NewStatsService(db),
	}, handlers.RouterOptions{
		Registry:       registry,
		AllowedOrigins: cfg.CORSOrigins,
		RateLimiter:    rateLimiter,
		Metrics:        middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()),
		Pprof:          middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux),
	})

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins(cfg.CORSOrigins),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Cache-Control", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	var handler http.Handler = r
	handler = gorilllaHandlers.RecoveryHandler(gorilllaHandlers.PrintRecoveryStack(true))(handler)
	handler = corsHandler(handler)
	handler = gorilllaHandlers.CombinedLoggingHandler(os.Stdout, handler)

	// No WriteTimeout: push streams are long lived.
	server := http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	}

	// Open push channels would keep Shutdown waiting.
	registry.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}
