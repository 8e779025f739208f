package api

import (
	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/api/handlers"
	"github.com/leozw/vessel-guardian/internal/api/middleware"
	"github.com/leozw/vessel-guardian/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	Config  *config.Config
	Router  *gin.Engine
	Handler *handlers.Handler
	logger  *zap.Logger
}

func NewServer(cfg *config.Config, h *handlers.Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	server := &Server{
		Config:  cfg,
		Router:  router,
		Handler: h,
		logger:  logger,
	}

	server.setupRoutes(gatherer)
	return server
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.Router.GET("/health", s.Handler.Health)
	s.Router.GET("/ready", s.Handler.Ready)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.Config.Auth.JWTSecret, s.Config.Auth.Issuer))
	api.Use(middleware.Tenant())

	{
		api.GET("/vessels", s.Handler.ListVessels)
		api.POST("/vessels", s.Handler.CreateVessel)
		api.GET("/vessels/:id", s.Handler.GetVessel)
		api.GET("/vessels/:id/positions", s.Handler.GetPositions)
		api.POST("/vessels/:id/positions", s.Handler.PostPosition)
		api.POST("/vessels/:id/refresh", s.Handler.RefreshVessel)
	}

	{
		api.GET("/events", s.Handler.ListEvents)
		api.GET("/zones/contains", s.Handler.ZonesContaining)
		api.POST("/zones/scan", s.Handler.ScanZone)
	}
}
