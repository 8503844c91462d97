// File: voicebook/handlers/bundle.go
package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Business endpoints
	BusinessInfoHandler gin.HandlerFunc
	StatsHandler        gin.HandlerFunc
	HealthHandler       gin.HandlerFunc

	// Availability endpoints
	CheckAvailabilityHandler gin.HandlerFunc
	ListAvailabilityHandler  gin.HandlerFunc

	// Appointment endpoints
	BookAppointmentHandler   gin.HandlerFunc
	ListAppointmentsHandler  gin.HandlerFunc
	GetAppointmentHandler    gin.HandlerFunc
	CancelAppointmentHandler gin.HandlerFunc

	// Call endpoints
	StartCallHandler    gin.HandlerFunc
	CallTurnHandler     gin.HandlerFunc
	CallAudioHandler    gin.HandlerFunc
	CallSnapshotHandler gin.HandlerFunc
	EndCallHandler      gin.HandlerFunc
	CallSignalsHandler  gin.HandlerFunc
}
