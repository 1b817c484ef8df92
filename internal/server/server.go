package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/whathappened/internal/config"
	"github.com/dukerupert/whathappened/internal/events"
	"github.com/dukerupert/whathappened/internal/feed"
	"github.com/dukerupert/whathappened/internal/gatherer"
	"github.com/dukerupert/whathappened/internal/handler"
	"github.com/dukerupert/whathappened/internal/middleware"
	"github.com/dukerupert/whathappened/internal/retention"
	"github.com/dukerupert/whathappened/internal/store"
	ws "github.com/dukerupert/whathappened/internal/websocket"
)

type Server struct {
	hub           *ws.Hub
	factory       *store.Factory
	gatherers     *gatherer.Multi
	notificationH *handler.NotificationHandler
	subscriptionH *handler.SubscriptionHandler
	inboxH        *handler.InboxHandler
	adminH        *handler.AdminHandler
	rateLimiter   *middleware.RateLimiter
	retention     *retention.Scheduler
	jwtSecret     string
	logger        *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	dispatcher := events.NewDispatcher(logger.With("component", "events"))
	dispatcher.Subscribe(hub.Listener())

	factory := store.NewFactory(cfg.Storage.Directory, dispatcher, logger.With("component", "store"))

	// Notifications pushed to the inbox are picked up on the user's next
	// read; further gatherers can be added with AddGatherer.
	inbox := gatherer.NewInbox(gatherer.DefaultInboxCapacity)
	gatherers := gatherer.NewMulti(logger.With("component", "gatherer"), inbox)

	svc := feed.NewService(factory, gatherers, logger.With("component", "feed"))

	var sched *retention.Scheduler
	if cfg.Retention.Enabled {
		var err error
		sched, err = retention.NewScheduler(factory, cfg.Retention.Cron, logger.With("component", "retention"))
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		hub:           hub,
		factory:       factory,
		gatherers:     gatherers,
		notificationH: handler.NewNotificationHandler(svc, logger.With("component", "notifications")),
		subscriptionH: handler.NewSubscriptionHandler(svc, logger.With("component", "subscriptions")),
		inboxH:        handler.NewInboxHandler(inbox, logger.With("component", "inbox")),
		adminH:        handler.NewAdminHandler(factory, logger.With("component", "admin")),
		rateLimiter:   middleware.NewRateLimiter(cfg.Ingest.RatePerMinute),
		retention:     sched,
		jwtSecret:     cfg.Auth.JWTSecret,
		logger:        logger,
	}, nil
}

// AddGatherer registers another source of notifications. Call it before
// serving requests.
func (s *Server) AddGatherer(g gatherer.Gatherer) {
	s.gatherers.Add(g)
}

// Factory returns the per-user backend factory.
func (s *Server) Factory() *store.Factory {
	return s.factory
}

// RateLimiter returns the ingest rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Retention returns the retention scheduler, or nil when retention is
// disabled.
func (s *Server) Retention() *retention.Scheduler {
	return s.retention
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Notifications. Anonymous requests are served by the null backend.
	mux.HandleFunc("GET /api/notifications/hot", s.notificationH.Hot)
	mux.HandleFunc("GET /api/notifications", s.notificationH.All)
	mux.HandleFunc("GET /api/notifications/unseen", s.notificationH.Unseen)
	mux.HandleFunc("POST /api/notifications/seen", s.notificationH.MarkSeen)

	// Subscriptions
	mux.HandleFunc("GET /api/subscriptions", s.subscriptionH.List)
	mux.HandleFunc("GET /api/subscriptions/lookup", s.subscriptionH.Lookup)
	mux.HandleFunc("PUT /api/subscriptions", s.subscriptionH.Save)

	// Ingest
	mux.Handle("POST /api/inbox/{user}", middleware.RequireUser(s.rateLimited(s.inboxH.Push)))

	// Admin
	mux.Handle("POST /api/admin/retention", middleware.RequireAdmin(http.HandlerFunc(s.adminH.RunRetention)))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.Authenticate(s.jwtSecret)(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"websocket_clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc)(h)
}
