package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/cache"
)

// Server exposes the operational endpoints: health, readiness and metrics.
// Trade operations stay on the service layer; nothing here mutates state.
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	db         *gorm.DB
	cache      *cache.RedisCache
}

// NewServer creates the ops HTTP server
func NewServer(cfg config.Config, db *gorm.DB, redisCache *cache.RedisCache) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config: cfg,
		db:     db,
		cache:  redisCache,
	}

	router := server.setupRouter()
	server.router = router

	server.httpServer = &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     router,
		ReadTimeout: cfg.ServerTimeout,
	}

	return server
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)

	if s.config.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady checks the write database and, when enabled, Redis. A failing
// dependency returns 503 so the instance drops out of rotation.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if err := s.pingDatabase(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Client().Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

func (s *Server) pingDatabase(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting ops HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("Ops HTTP server shut down")
	return nil
}
