package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dukerupert/agenda/internal/config"
	"github.com/dukerupert/agenda/internal/handler"
	"github.com/dukerupert/agenda/internal/middleware"
	"github.com/dukerupert/agenda/internal/store"
	ws "github.com/dukerupert/agenda/internal/websocket"
)

// Login and registration allow this many attempts per client IP per minute.
const authAttemptsPerMinute = 10

// Deps are the components whose backing store depends on configuration.
// Notifier and Engine may be nil.
type Deps struct {
	Subscriptions handler.SubscriptionRepo
	Preferences   handler.PreferenceRepo
	Notifier      handler.UserNotifier
	Engine        handler.StatusReporter
	Hub           *ws.Hub
}

type Server struct {
	cfg          *config.Config
	hub          *ws.Hub
	authH        *handler.AuthHandler
	pushH        *handler.PushHandler
	prefsH       *handler.PrefsHandler
	taskH        *handler.TaskHandler
	routineH     *handler.RoutineHandler
	appointmentH *handler.AppointmentHandler
	activityH    *handler.ActivityHandler
	debugH       *handler.DebugHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)

	hub := deps.Hub
	if hub == nil {
		hub = ws.NewHub(logger.With("component", "websocket"))
	}

	return &Server{
		cfg:          cfg,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		pushH:        handler.NewPushHandler(deps.Subscriptions, deps.Notifier, userStore, cfg.VAPIDPublicKey, cfg.PushSendToken, logger.With("component", "push_handler")),
		prefsH:       handler.NewPrefsHandler(deps.Preferences, userStore, logger.With("component", "prefs")),
		taskH:        handler.NewTaskHandler(store.NewTaskStore(db), logger.With("component", "task")),
		routineH:     handler.NewRoutineHandler(store.NewRoutineStore(db), logger.With("component", "routine")),
		appointmentH: handler.NewAppointmentHandler(store.NewAppointmentStore(db), logger.With("component", "appointment")),
		activityH:    handler.NewActivityHandler(store.NewActivityStore(db), logger.With("component", "activity")),
		debugH:       handler.NewDebugHandler(deps.Engine, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(authAttemptsPerMinute, time.Minute),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	if s.cfg.ExposePushSend() {
		outerMux.HandleFunc("POST /api/push/send", s.pushH.Send)
	}
	outerMux.HandleFunc("GET /sw.js", s.serviceWorker)
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// serviceWorker serves sw.js from the site root so it may control every page.
func (s *Server) serviceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Service-Worker-Allowed", "/")
	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "sw.js"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /whoami", s.authH.WhoAmI)

	// Push
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Reminder preferences
	mux.HandleFunc("GET /api/notification-prefs", s.prefsH.Get)
	mux.HandleFunc("POST /api/notification-prefs", s.prefsH.Save)

	// Agenda rows live in the hosted tables in postgrest mode and are written
	// by their own clients there.
	if s.cfg.Store == config.StoreSQLite {
		mux.HandleFunc("GET /api/tasks", s.taskH.List)
		mux.HandleFunc("POST /api/tasks", s.taskH.Create)
		mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
		mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
		mux.HandleFunc("POST /api/tasks/{id}/toggle", s.taskH.Toggle)

		mux.HandleFunc("GET /api/routines", s.routineH.List)
		mux.HandleFunc("POST /api/routines", s.routineH.Create)
		mux.HandleFunc("PUT /api/routines/{id}", s.routineH.Update)
		mux.HandleFunc("DELETE /api/routines/{id}", s.routineH.Delete)

		mux.HandleFunc("GET /api/appointments", s.appointmentH.List)
		mux.HandleFunc("POST /api/appointments", s.appointmentH.Create)
		mux.HandleFunc("PUT /api/appointments/{id}", s.appointmentH.Update)
		mux.HandleFunc("DELETE /api/appointments/{id}", s.appointmentH.Delete)

		mux.HandleFunc("GET /api/activities", s.activityH.List)
	}

	// Debug
	mux.Handle("GET /api/_debug/scheduler", middleware.RequireAdmin(http.HandlerFunc(s.debugH.Scheduler)))
	mux.Handle("GET /api/_debug/vapid", middleware.RequireAdmin(http.HandlerFunc(s.debugH.VAPID)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
