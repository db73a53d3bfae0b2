// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/service"
)

// Service interfaces for dependency injection and testing

// FeedServiceInterface defines the feed read surface.
type FeedServiceInterface interface {
	GetFeed(ctx context.Context, req *service.FeedRequest) (*service.FeedResponse, error)
}

// ExploreServiceInterface defines the catalog browse/search surface.
type ExploreServiceInterface interface {
	Explore(ctx context.Context, req *service.ExploreRequest) (*service.ExploreResponse, error)
}

// InteractionServiceInterface defines the reaction write surface.
type InteractionServiceInterface interface {
	Record(ctx context.Context, req *service.InteractionRequest) (*service.InteractionResponse, error)
}

// UserServiceInterface defines the user lifecycle surface.
type UserServiceInterface interface {
	ListUsers(ctx context.Context) ([]*service.UserSummary, error)
	Onboard(ctx context.Context, req *service.OnboardRequest) (*service.OnboardResponse, error)
	UpdateFocus(ctx context.Context, userID, focusMode string) (*service.FocusResponse, error)
	SimulateReferralSignup(ctx context.Context, req *service.ReferralSignupRequest) (*service.ReferralSignupResponse, error)
}

// CatalogServiceInterface defines the article pool lifecycle surface.
type CatalogServiceInterface interface {
	Refresh(ctx context.Context) (*service.RefreshResponse, error)
}

// MonitoringServiceInterface defines the operational read surface.
type MonitoringServiceInterface interface {
	Health(ctx context.Context) (*service.HealthResponse, error)
	Dashboard(ctx context.Context) (*service.DashboardResponse, error)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	feed         FeedServiceInterface
	explore      ExploreServiceInterface
	interactions InteractionServiceInterface
	users        UserServiceInterface
	catalog      CatalogServiceInterface
	monitoring   MonitoringServiceInterface
	metrics      *metrics.Metrics
	logger       *logging.Logger
	config       *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	feed FeedServiceInterface,
	explore ExploreServiceInterface,
	interactions InteractionServiceInterface,
	users UserServiceInterface,
	catalog CatalogServiceInterface,
	monitoring MonitoringServiceInterface,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		feed:         feed,
		explore:      explore,
		interactions: interactions,
		users:        users,
		catalog:      catalog,
		monitoring:   monitoring,
		metrics:      m,
		logger:       logger,
		config:       config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/feed", s.handleFeed).Methods("POST")
	api.HandleFunc("/explore", s.handleExplore).Methods("POST")
	api.HandleFunc("/interactions", s.handleInteraction).Methods("POST")

	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/users/onboard", s.handleOnboard).Methods("POST")
	api.HandleFunc("/users/focus", s.handleUpdateFocus).Methods("POST")
	api.HandleFunc("/referrals/simulate-signup", s.handleReferralSignup).Methods("POST")

	api.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/monitoring/dashboard", s.handleDashboard).Methods("GET")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
