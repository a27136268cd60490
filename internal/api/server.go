package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/utility-ledger/internal/api/handlers"
	"github.com/eshaffer321/utility-ledger/internal/api/middleware"
	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Services are the application services behind the routes.
// Scheduler may be nil, in which case /api/scheduler is not registered.
type Services struct {
	Ledger      *service.LedgerService
	Sync        *service.SyncService
	Attribution *attribution.Service
	Scheduler   *service.Scheduler
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, services Services, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   cfg,
		router:   gin.New(),
		logger:   logging.OrDefault(logger),
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	// Request logging
	s.router.Use(middleware.Logging(s.logger, "/health"))

	// CORS
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Accept", "Authorization", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", handlers.NewHealthHandler().Get)

	api := s.router.Group("/api")

	// Ledger
	ledgerHandler := handlers.NewLedgerHandler(s.services.Ledger, s.services.Sync, s.logger)
	api.GET("/ledger", ledgerHandler.Get)
	api.DELETE("/ledger", ledgerHandler.Wipe)
	api.POST("/ledger/snapshots", ledgerHandler.IngestSnapshot)

	// Bills
	billsHandler := handlers.NewBillsHandler(s.services.Ledger, s.logger)
	api.GET("/bills/summary", billsHandler.Summary)
	api.GET("/bills/:id/payments", billsHandler.Payments)
	api.PUT("/bills/:id/payment-order", billsHandler.SetPaymentOrder)

	// Payments
	paymentsHandler := handlers.NewPaymentsHandler(s.services.Ledger, s.services.Attribution, s.logger)
	api.GET("/payments", paymentsHandler.List)
	api.GET("/payments/unverified", paymentsHandler.Unverified)
	api.PUT("/payments/:id/bill", paymentsHandler.Reassign)
	api.DELETE("/payments/:id/lock", paymentsHandler.Unlock)
	api.POST("/payments/:id/attribution", paymentsHandler.Attribute)
	api.DELETE("/payments/:id/attribution", paymentsHandler.ClearAttribution)

	// Automatic attribution
	attributionHandler := handlers.NewAttributionHandler(s.services.Attribution, s.logger)
	api.POST("/attribution/card-hints", attributionHandler.CardHints)
	api.POST("/attribution/sweep", attributionHandler.Sweep)

	// Payees and cards
	payeesHandler := handlers.NewPayeesHandler(s.services.Ledger, s.logger)
	api.GET("/payees", payeesHandler.List)
	api.POST("/payees", payeesHandler.Create)
	api.PUT("/payees/responsibilities", payeesHandler.SetResponsibilities)
	api.PUT("/payees/:id/default", payeesHandler.SetDefault)
	api.POST("/payees/:id/cards", payeesHandler.AddCard)
	api.DELETE("/cards/:lastFour", payeesHandler.RemoveCard)

	// Sync runs
	runsHandler := handlers.NewRunsHandler(s.services.Sync, s.logger)
	api.GET("/runs", runsHandler.List)
	api.GET("/runs/:id", runsHandler.Get)

	if s.services.Scheduler != nil {
		schedulerHandler := handlers.NewSchedulerHandler(s.services.Scheduler, s.logger)
		api.GET("/scheduler", schedulerHandler.Get)
		api.PUT("/scheduler", schedulerHandler.Update)
	}
}

// Start starts the HTTP server. It blocks until Shutdown is called, and
// returns immediately if Shutdown already ran.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
