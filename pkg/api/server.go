// Package api exposes the HTTP admin surface: health, status and
// Prometheus metrics. It never speaks the game wire protocol.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/openmmo/realmd/pkg/account"
)

var logger = log.With().Str("component", "api").Logger()

// Info is the static identity reported by the status endpoint.
type Info struct {
	Name      string
	Version   string
	StartedAt time.Time
}

// Config holds admin server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used when the caller passes nil.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the admin HTTP server.
type Server struct {
	cfg        *Config
	info       Info
	accounts   *account.Repository
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the routes. The account repository may be nil; the
// status endpoint then omits the account count.
func NewServer(info Info, accounts *account.Repository, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		info:     info,
		accounts: accounts,
		router:   router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	body := gin.H{
		"name":           s.info.Name,
		"version":        s.info.Version,
		"uptime_seconds": int64(time.Since(s.info.StartedAt).Seconds()),
	}
	if s.accounts != nil {
		n, err := s.accounts.Count()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		body["accounts"] = n
	}
	c.JSON(http.StatusOK, body)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving in the background. Bind errors surface in the
// log; the admin surface never takes the game server down.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", s.cfg.Addr).Msg("admin server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server failed")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
