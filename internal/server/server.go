// Package server is the HTTP surface of the green ledger. Handlers are thin
// adapters over the domain services; errors are classified through apperr.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/auth"
	"github.com/kontax/green-ledger/internal/config"
)

// Server wraps the gin engine and its http.Server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	tokens     *auth.TokenManager
	logger     *zap.Logger
}

// New creates the HTTP server and mounts all routes.
func New(cfg config.ServerConfig, handlers *Handlers, tokens *auth.TokenManager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   cfg,
		router:   gin.New(),
		handlers: handlers,
		tokens:   tokens,
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")

	api.POST("/auth/login", h.Login)

	authed := api.Group("")
	authed.Use(auth.RequireAuth(s.tokens))
	{
		authed.GET("/auth/me", h.Me)
		authed.POST("/auth/register", auth.RequireAdmin(), h.Register)

		entities := authed.Group("/entities")
		{
			entities.GET("", h.ListEntities)
			entities.POST("", auth.RequireAdmin(), h.CreateEntity)
			entities.GET("/:id", h.GetEntity)
			entities.PUT("/:id", auth.RequireAdmin(), h.UpdateEntity)
			entities.DELETE("/:id", auth.RequireAdmin(), h.DeleteEntity)
			entities.PUT("/:id/sii-credentials", auth.RequireContador(), h.ConfigureSIICredentials)
		}

		asientos := authed.Group("/asientos")
		{
			asientos.POST("", auth.RequireContador(), h.CreateAsiento)
			asientos.GET("", h.ListAsientos)
			asientos.GET("/stats", h.AsientoStats)
			asientos.GET("/:id", h.GetAsiento)
			asientos.POST("/:id/anular", auth.RequireContador(), h.AnularAsiento)
		}

		evidencias := authed.Group("/evidencias")
		{
			evidencias.POST("", auth.RequireContador(), h.CreateEvidencia)
			evidencias.GET("", h.ListEvidencias)
			evidencias.GET("/verify/:hash", h.VerifyEvidencia)
			evidencias.GET("/:id", h.GetEvidencia)
		}

		factores := authed.Group("/factores")
		{
			factores.GET("", h.ListFactores)
			factores.GET("/categorias", h.FactorCategorias)
			factores.GET("/:key", h.LookupFactor)
			factores.POST("", auth.RequireAdmin(), h.PublishFactor)
		}

		reportes := authed.Group("/reportes")
		{
			reportes.POST("/generate", auth.RequireContador(), h.GenerateReporte)
			reportes.GET("", h.ListReportes)
			reportes.GET("/:id", h.GetReporte)
			reportes.GET("/:id/excel", h.DownloadReporteExcel)
		}

		authed.GET("/financiamiento/green-score/:entity_id", h.GreenScore)

		sii := authed.Group("/integrations/sii")
		{
			sii.POST("/sync", auth.RequireContador(), h.TriggerSIISync)
			sii.GET("/runs", h.ListSIIRuns)
		}

		boostr := authed.Group("/integrations/boostr")
		{
			boostr.GET("/vehiculo/:patente", h.GetVehiculo)
			boostr.GET("/vehiculos/:entity_id", h.ListVehiculos)
			boostr.POST("/viaje", h.ViajeEmisiones)
		}

		authed.POST("/ai/libro-verde", h.LibroVerde)

		valorizador := authed.Group("/valorizador")
		{
			valorizador.POST("/esg", h.ValorizarESG)
			valorizador.POST("/boletin", h.AnalizarBoletin)
		}
	}
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
