// Package api exposes a read-only HTTP surface over the running bot: health,
// scan status, performance and recent signals. There are no mutating
// endpoints; the bot is driven by config, not by API calls.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/performance"
)

const signalHistoryLimit = 50

// Status is the bot snapshot served by /api/status.
type Status struct {
	Running        bool      `json:"running"`
	DryRun         bool      `json:"dry_run"`
	Symbols        int       `json:"symbols"`
	OpenPositions  int       `json:"open_positions"`
	InCooldown     bool      `json:"in_cooldown"`
	CooldownMins   int       `json:"cooldown_minutes"`
	BreakerState   string    `json:"breaker_state,omitempty"`
	LastScanAt     time.Time `json:"last_scan_at"`
	ActiveStrategy []string  `json:"active_strategies"`
}

// StatusProvider supplies the live bot snapshot.
type StatusProvider interface {
	Status() Status
}

// RateLimiter is a fixed-window per-client limiter.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	kept := r.hits[key][:0]
	for _, t := range r.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= r.limit {
		r.hits[key] = kept
		return false
	}
	r.hits[key] = append(kept, time.Now())
	return true
}

// Config holds API server settings.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server wires the read-only endpoints.
type Server struct {
	router   *gin.Engine
	server   *http.Server
	logger   zerolog.Logger
	limiter  *RateLimiter
	provider StatusProvider
	tracker  *performance.Tracker
	repo     *database.Repository // nil without a database

	mu      sync.RWMutex
	signals []events.Event
}

func NewServer(
	cfg Config,
	provider StatusProvider,
	tracker *performance.Tracker,
	repo *database.Repository,
	bus *events.Bus,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		logger:   logger.With().Str("component", "api").Logger(),
		limiter:  NewRateLimiter(120, time.Minute),
		provider: provider,
		tracker:  tracker,
		repo:     repo,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	bus.Subscribe(events.EventSignalGenerated, s.recordSignal)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.rateLimitMiddleware())

	s.router.GET("/api/health", s.handleHealth)
	s.router.GET("/api/status", s.handleStatus)
	s.router.GET("/api/performance", s.handlePerformance)
	s.router.GET("/api/trades", s.handleTrades)
	s.router.GET("/api/signals/latest", s.handleSignals)
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok", "time": time.Now().UTC()}
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
		} else {
			health["database"] = "ok"
		}
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Status())
}

func (s *Server) handlePerformance(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Stats())
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.repo != nil {
		trades, err := s.repo.ListTrades(c.Request.Context(), 100)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to list trades")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": trades})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": s.tracker.Trades()})
}

func (s *Server) handleSignals(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"signals": s.signals})
}

func (s *Server) recordSignal(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, e)
	if len(s.signals) > signalHistoryLimit {
		s.signals = s.signals[len(s.signals)-signalHistoryLimit:]
	}
}

// Start serves until Shutdown. It blocks.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
