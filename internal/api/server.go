// Package api exposes the reconciliation pipeline over HTTP: source
// uploads, reconcile/reset, results, settings, health, and metrics.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floorwatch/floorwatch/internal/api/dto"
	"github.com/floorwatch/floorwatch/internal/application/service"
	"github.com/floorwatch/floorwatch/internal/domain/mapping"
	"github.com/floorwatch/floorwatch/internal/infrastructure/config"
	"github.com/floorwatch/floorwatch/internal/infrastructure/storage"
)

// maxUploadBytes caps source uploads; realistic daily exports are well
// under a megabyte.
const maxUploadBytes = 32 << 20

// Server is the HTTP API server.
type Server struct {
	cfg        config.ServerConfig
	engine     *gin.Engine
	logger     *slog.Logger
	svc        *service.ReconcileService
	registry   *prometheus.Registry
	httpServer *http.Server
}

// NewServer creates the API server. registry may be nil to disable the
// metrics endpoint.
func NewServer(cfg config.ServerConfig, svc *service.ReconcileService, registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		logger:   logger,
		svc:      svc,
		registry: registry,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.getHealth)

	if s.registry != nil {
		handler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
		s.engine.GET("/metrics", gin.WrapH(handler))
	}

	apiGroup := s.engine.Group("/api")
	{
		apiGroup.POST("/sources/alarm", s.postAlarmSource)
		apiGroup.POST("/sources/sales", s.postSalesSource)
		apiGroup.GET("/state", s.getState)
		apiGroup.POST("/reconcile", s.postReconcile)
		apiGroup.POST("/reset", s.postReset)
		apiGroup.GET("/results", s.getResults)
		apiGroup.GET("/runs", s.getRuns)
		apiGroup.GET("/settings", s.getSettings)
		apiGroup.PUT("/settings/matching", s.putMatchingConfig)
		apiGroup.PUT("/settings/mappings/alarm", s.putMapping(storage.MappingAlarm))
		apiGroup.PUT("/settings/mappings/sales", s.putMapping(storage.MappingSales))
	}
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sourceBody reads an uploaded source either from a multipart "file"
// field or from the raw request body.
func sourceBody(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxUploadBytes))
	}
	return io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
}

func (s *Server) postAlarmSource(c *gin.Context) {
	data, err := sourceBody(c)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    dto.CodeSourceUnreadable,
			Message: "could not read alarm source upload",
		})
		return
	}

	st, err := s.svc.LoadAlarmSource(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    dto.CodeSourceUnreadable,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewStateResponse(st))
}

func (s *Server) postSalesSource(c *gin.Context) {
	data, err := sourceBody(c)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    dto.CodeSourceUnreadable,
			Message: "could not read sales source upload",
		})
		return
	}

	st, err := s.svc.LoadSalesSource(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    dto.CodeSourceUnreadable,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewStateResponse(st))
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewStateResponse(s.svc.State()))
}

func (s *Server) postReconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Code:    dto.CodeBadRequest,
				Message: err.Error(),
			})
			return
		}
	}

	// Reset protocol: a still-ready result must be explicitly confirmed
	// away before anything is cleared. Declining touches nothing.
	if s.svc.ResultReady() {
		if !req.Confirm {
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Code:    dto.CodeConfirmationRequired,
				Message: "a previous result is still ready; confirm to clear it and start over",
			})
			return
		}
		s.svc.Reset()
		c.JSON(http.StatusOK, dto.ReconcileResponse{Reset: true})
		return
	}

	result, err := s.svc.Reconcile()
	if err != nil {
		s.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewResultResponse(result, ""))
}

func (s *Server) postReset(c *gin.Context) {
	s.svc.Reset()
	c.JSON(http.StatusOK, dto.NewStateResponse(s.svc.State()))
}

func (s *Server) getResults(c *gin.Context) {
	result, ok := s.svc.Result()
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Code:    dto.CodeNoResult,
			Message: "no reconciliation result is ready",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewResultResponse(result, c.Query("floor")))
}

func (s *Server) getRuns(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
			limit = 20
		}
	}

	runs, err := s.svc.Runs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Code:    dto.CodeInternal,
			Message: "failed to load run history",
		})
		return
	}

	c.JSON(http.StatusOK, dto.RunsResponse{Runs: runs})
}

func (s *Server) getSettings(c *gin.Context) {
	matching := s.svc.MatchingConfig()

	c.JSON(http.StatusOK, dto.SettingsResponse{
		Matching: dto.MatchingConfigResponse{
			ToleranceSeconds: matching.ToleranceSeconds,
			OffsetSeconds:    matching.OffsetSeconds,
		},
		Mappings: dto.MappingsResponse{
			Alarm: s.svc.Mapping(storage.MappingAlarm),
			Sales: s.svc.Mapping(storage.MappingSales),
		},
	})
}

func (s *Server) putMatchingConfig(c *gin.Context) {
	var req dto.MatchingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    dto.CodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	cfg := s.svc.MatchingConfig()
	if req.ToleranceSeconds != nil {
		cfg.ToleranceSeconds = *req.ToleranceSeconds
	}
	if req.OffsetSeconds != nil {
		cfg.OffsetSeconds = *req.OffsetSeconds
	}

	if err := s.svc.UpdateMatchingConfig(cfg); err != nil {
		s.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MatchingConfigResponse{
		ToleranceSeconds: cfg.ToleranceSeconds,
		OffsetSeconds:    cfg.OffsetSeconds,
	})
}

func (s *Server) putMapping(kind storage.MappingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var table map[string]string
		if err := c.ShouldBindJSON(&table); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Code:    dto.CodeBadRequest,
				Message: err.Error(),
			})
			return
		}

		if err := s.svc.UpdateMapping(kind, mapping.Table(table)); err != nil {
			s.writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, table)
	}
}

// writeServiceError maps service errors to HTTP responses, keeping each
// precondition independently distinguishable.
func (s *Server) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlarmSourceMissing):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Code:    dto.CodeAlarmSourceMissing,
			Message: "alarm source has not been loaded",
		})
	case errors.Is(err, service.ErrSalesSourceMissing):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Code:    dto.CodeSalesSourceMissing,
			Message: "sales source has not been loaded",
		})
	case errors.Is(err, service.ErrDatesMismatch):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Code:    dto.CodeDatesMismatch,
			Message: "the two sources describe different dates",
		})
	case errors.Is(err, service.ErrResultReady):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Code:    dto.CodeConfirmationRequired,
			Message: "a previous result is still ready",
		})
	case errors.Is(err, service.ErrNegativeTolerance):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    dto.CodeInvalidTolerance,
			Message: "tolerance seconds must not be negative",
		})
	default:
		s.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Code:    dto.CodeInternal,
			Message: err.Error(),
		})
	}
}
