package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/agenda/internal/claim"
	"github.com/dukerupert/agenda/internal/config"
	"github.com/dukerupert/agenda/internal/database"
	"github.com/dukerupert/agenda/internal/handler"
	"github.com/dukerupert/agenda/internal/logging"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/push"
	"github.com/dukerupert/agenda/internal/reminder"
	"github.com/dukerupert/agenda/internal/restdb"
	"github.com/dukerupert/agenda/internal/server"
	"github.com/dukerupert/agenda/internal/store"
	ws "github.com/dukerupert/agenda/internal/websocket"
)

// sentLog is the retention side of the reminder sent-log.
type sentLog interface {
	CleanupSent(ctx context.Context, before time.Time) (int64, error)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "gen-vapid" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("VAPID_PUBLIC=%s\nVAPID_PRIVATE=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reminder data and preference/subscription repositories
	var (
		source reminder.Store
		sent   sentLog
		subs   interface {
			push.SubscriptionStore
			handler.SubscriptionRepo
		}
		prefs handler.PreferenceRepo
	)
	switch cfg.Store {
	case config.StorePostgREST:
		client := restdb.New(cfg.SupabaseURL, cfg.SupabaseKey, logger.With("component", "restdb"))
		source, sent = client, client
		subs, prefs = client.Subscriptions(), client.Preferences()
	default:
		pushStore := store.NewPushStore(db)
		source, sent = store.NewReminderSource(db), pushStore
		subs, prefs = pushStore, store.NewPreferenceStore(db)
	}
	logger.Info("reminder store selected", "store", cfg.Store)

	hub := ws.NewHub(logger.With("component", "websocket"))
	deps := server.Deps{Subscriptions: subs, Preferences: prefs, Hub: hub}

	// Push delivery
	var notifier *push.Notifier
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		svc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
		notifier = push.NewNotifier(svc, subs, logger.With("component", "push"))
		deps.Notifier = notifier
		if ok, err := push.VAPIDKeysMatch(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey); err != nil || !ok {
			logger.Warn("VAPID public key does not match private key", "error", err)
		}
	} else {
		logger.Warn("VAPID keys not configured; push notifications disabled")
	}

	var dispatcher reminder.Dispatcher
	switch {
	case cfg.PushMode == config.PushHTTP:
		if cfg.PushSendToken == "" {
			logger.Warn("PUSH_SEND_TOKEN not set; /api/push/send accepts unauthenticated requests")
		}
		dispatcher = push.NewHTTPDispatcher(cfg.PushBaseURL, cfg.PushSendToken)
	case notifier != nil:
		dispatcher = push.NewLocalDispatcher(notifier)
	}

	// Reminder engine
	var engine *reminder.Engine
	if cfg.SchedulerEnabled && dispatcher != nil {
		var opts []reminder.Option
		if cfg.RedisURL != "" {
			claimer, err := claim.New(ctx, cfg.RedisURL)
			if err != nil {
				logger.Warn("redis unavailable; reminders are not claimed across ticks", "error", err)
			} else {
				defer claimer.Close()
				opts = append(opts, reminder.WithClaimer(claimer))
			}
		}

		engine = reminder.New(source, dispatcher, reminder.Config{
			Tick:               cfg.Tick,
			Location:           cfg.Location,
			CallTimeout:        cfg.CallTimeout,
			DefaultTaskLead:    model.DefaultTaskLeadMinutes,
			DefaultApptOffsets: []int{},
		}, logger.With("component", "reminder"), opts...)
		engine.OnSent(hub.NotifyReminder)
		engine.Every(24*time.Hour, "sent-log cleanup", func(ctx context.Context) {
			n, err := sent.CleanupSent(ctx, time.Now().Add(-cfg.SentRetention))
			if err != nil {
				logger.Error("sent-log cleanup", "error", err)
				return
			}
			logger.Info("sent-log cleanup", "deleted", n)
		})
		deps.Engine = engine

		if err := engine.Start(ctx); err != nil {
			logger.Error("failed to start reminder engine", "error", err)
			os.Exit(1)
		}
	} else if cfg.SchedulerEnabled {
		logger.Warn("reminder engine not started: no push dispatcher available")
	}

	srv := server.New(db, cfg, deps, logger)

	go runCleanup(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("agenda running", "addr", "http://localhost:"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	if engine != nil {
		engine.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// runCleanup removes expired sessions and idle rate-limit entries hourly.
func runCleanup(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				logger.Info("session cleanup", "deleted", n)
			}
			srv.RateLimiter().Cleanup(time.Hour)
		case <-ctx.Done():
			return
		}
	}
}
