package handlers

import (
	"bvp_relay/internal/logger"
	"bvp_relay/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	// Operator state stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		h.registerTransportRoutes(api)
		h.registerSensorRoutes(api)
		h.registerModeRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerTransportRoutes(api *gin.RouterGroup) {
	tr := api.Group("/transport")
	{
		// Body (optional): {"host":"192.168.1.20","port":8765}
		tr.POST("/connect", h.connectServer)
		tr.POST("/restart", h.restartServer)
		tr.POST("/disconnect", h.disconnectServer)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	s := api.Group("/sensor")
	{
		s.POST("/scan", h.scanSensor)
		s.POST("/disconnect", h.disconnectSensor)
	}
}

func (h *Handler) registerModeRoutes(api *gin.RouterGroup) {
	m := api.Group("/modes")
	{
		m.GET("", h.getModes)
		m.POST("/refresh", h.refreshModes)
		// Body example: {"mode":"relaxed"}
		m.POST("/select", h.selectMode)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
		logs.GET("/", h.getLogs)
	}
}
