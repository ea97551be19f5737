// devchat - local bridge for the repository chat assistant
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/devchat/internal/api"
	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/chat"
	"github.com/ashureev/devchat/internal/config"
	"github.com/ashureev/devchat/internal/identity"
	"github.com/ashureev/devchat/internal/middleware"
	"github.com/ashureev/devchat/internal/navcache"
	"github.com/ashureev/devchat/internal/repository"
	"github.com/ashureev/devchat/internal/store"
	"github.com/ashureev/devchat/internal/transport"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	routes, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		slog.Error("Failed to load routes", "error", err, "path", cfg.RoutesFile)
		os.Exit(1)
	}

	slog.Info("Starting chat bridge",
		"port", cfg.Port,
		"backend_url", cfg.BackendURL,
		"websocket", cfg.Chat.EnableWebSocket,
		"message_queue", cfg.Chat.EnableMessageQueue,
		"dev", cfg.IsDevelopment(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Snapshot store is optional; without it sessions live in memory only.
	var snapshots chat.SnapshotStore
	if cfg.DBPath != "" {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := repo.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		snapshots = repo
		slog.Info("Database connected", "path", cfg.DBPath)
	}

	client := backend.NewClient(cfg.BackendURL, cfg.Chat.RequestTimeout, logger)
	httpTransport := transport.NewHTTP(client)

	notices := api.NewNoticeHub(0, 0, 0, logger)
	defer notices.Close()

	var (
		ws   *transport.WebSocket
		conn chat.Connection
		pick transport.HealthReporter
	)
	if cfg.Chat.EnableWebSocket && cfg.WebSocketURL != "" {
		ws = transport.NewWebSocket(transport.WebSocketConfig{
			URL:             cfg.WebSocketURL,
			ResponseTimeout: cfg.Chat.WebSocketTimeout,
		}, logger)
		conn = ws
		pick = ws
	}
	selector := transport.NewSelector(httpTransport, pick, transport.SelectorConfig{
		EnableWebSocket: cfg.Chat.EnableWebSocket,
	}, logger)

	svc := chat.NewService(chat.Deps{
		Deliverer:  selector,
		Notifier:   notices,
		Store:      snapshots,
		Connection: conn,
		Logger:     logger,
	}, chat.Options{
		EnableMessageQueue: cfg.Chat.EnableMessageQueue,
		ContextValidation:  cfg.Chat.ContextValidation,
		MaxQueueSize:       cfg.Chat.MaxQueueSize,
		MessagePause:       cfg.Chat.MessagePause,
		Policy: chat.RetryPolicy{
			MaxRetries: cfg.Chat.MaxRetries,
			BaseDelay:  cfg.Chat.RetryDelay,
			MaxDelay:   chat.DefaultRetryPolicy().MaxDelay,
		},
	})
	if ws != nil {
		ws.OnEnvelope(svc.HandleEnvelope)
	}
	if err := svc.Start(ctx); err != nil {
		slog.Error("Failed to start chat service", "error", err)
		os.Exit(1)
	}

	repos := repository.NewManager(client, logger)
	nav := navcache.NewRegistry(client, repos, notices, navcache.NewRules(routes), navcache.Options{
		CleanupDelay:      cfg.Cache.CleanupDelay,
		ShowNotifications: cfg.Cache.ShowNotifications,
		RequestTimeout:    cfg.Chat.RequestTimeout,
	}, logger)
	defer nav.Close()

	var maintenanceDone <-chan struct{}
	if cfg.Cache.MaintenanceInterval > 0 {
		maintenanceDone = navcache.StartMaintenanceWorker(ctx, nav, navcache.MaintenanceConfig{
			Interval:        cfg.Cache.MaintenanceInterval,
			MemoryThreshold: cfg.Cache.MemoryThreshold,
		})
	}

	handler := api.NewHandler(svc, nav, repos, notices, logger)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.UserID, cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	// SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Event streams only end when the hub closes.
	notices.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("Chat service shutdown incomplete", "error", err)
	}
	if maintenanceDone != nil {
		<-maintenanceDone
	}

	slog.Info("Server stopped successfully")
}
