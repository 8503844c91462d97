package routes

import (
	"time"

	"voicebook/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterBusinessRoutes registers business info and stats endpoints.
func RegisterBusinessRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.GET("/business-info", hb.BusinessInfoHandler)
		api.GET("/stats", hb.StatsHandler)
	}
}

// RegisterAvailabilityRoutes registers slot lookups.
func RegisterAvailabilityRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/availability")
	{
		api.POST("/check", hb.CheckAvailabilityHandler)
		api.GET("/check", hb.CheckAvailabilityHandler)
		api.GET("/:date", hb.ListAvailabilityHandler)
	}
}

// RegisterAppointmentRoutes registers the direct booking endpoints.
func RegisterAppointmentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/appointments")
	{
		api.POST("/book", hb.BookAppointmentHandler)
		api.GET("", hb.ListAppointmentsHandler)
		api.GET("/:id", hb.GetAppointmentHandler)
		api.DELETE("/:id", hb.CancelAppointmentHandler)
	}
}

// RegisterCallRoutes registers the voice call endpoints.
func RegisterCallRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/calls")
	{
		api.POST("", hb.StartCallHandler)
		api.GET("/:id", hb.CallSnapshotHandler)
		api.DELETE("/:id", hb.EndCallHandler)
		api.POST("/:id/turns", hb.CallTurnHandler)
		api.POST("/:id/audio", hb.CallAudioHandler)
		api.GET("/:id/signals", hb.CallSignalsHandler)
	}
}

// RegisterHealthRoute registers health-check and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterBusinessRoutes(r, hb)
	RegisterAvailabilityRoutes(r, hb)
	RegisterAppointmentRoutes(r, hb)
	RegisterCallRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}
