package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calendarRepo "voicebook/database/repository/calendar"
	"voicebook/models"
	"voicebook/services/scheduling"
	"voicebook/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppointmentService is satisfied by *scheduling.DefaultResolver.
type AppointmentService interface {
	scheduling.AvailabilityService
	Cancel(ctx context.Context, id, reason string) error
}

type AppointmentHandler struct {
	Service AppointmentService
	Repo    calendarRepo.CalendarRepository
}

func NewAppointmentHandler(svc AppointmentService, repo calendarRepo.CalendarRepository) *AppointmentHandler {
	return &AppointmentHandler{Service: svc, Repo: repo}
}

type slotQuery struct {
	Date string `json:"date" form:"date"`
	Time string `json:"time" form:"time"`
}

// CheckAvailabilityHandler handles POST /api/availability/check with a JSON
// {date, time} body, and the GET form with query parameters.
func (h *AppointmentHandler) CheckAvailabilityHandler(c *gin.Context) {
	var q slotQuery
	var err error
	if c.Request.Method == http.MethodPost {
		err = c.ShouldBindJSON(&q)
	} else {
		err = c.ShouldBindQuery(&q)
	}
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	date, hhmm := q.Date, q.Time
	if date == "" || hhmm == "" {
		utils.JSONError(c, http.StatusBadRequest, "date and time are required", "")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	av, err := h.Service.CheckAvailability(ctx, date, hhmm)
	if err != nil {
		writeSchedulingError(c, err)
		return
	}
	message := fmt.Sprintf("%s at %s is available", date, av.Slot.StartLabel())
	if !av.Available {
		message = fmt.Sprintf("%s at %s is already booked", date, av.Slot.StartLabel())
	}
	c.JSON(http.StatusOK, gin.H{
		"available": av.Available,
		"slot":      av.Slot,
		"conflict":  av.Conflict,
		"message":   message,
	})
}

// ListAvailabilityHandler handles GET /api/availability/:date.
func (h *AppointmentHandler) ListAvailabilityHandler(c *gin.Context) {
	date := c.Param("date")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	slots, err := h.Service.ListAvailableSlots(ctx, date)
	if err != nil {
		writeSchedulingError(c, err)
		return
	}
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.StartLabel())
	}
	message := fmt.Sprintf("%d slots available on %s", len(times), date)
	if len(times) == 0 {
		message = fmt.Sprintf("no availability on %s", date)
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": times, "message": message})
}

// bookInput accepts "service" as an alias of "serviceType".
type bookInput struct {
	models.BookingRequest
	Service string `json:"service"`
}

// BookAppointmentHandler handles POST /api/appointments/book. Fields go through
// the same validators the dialogue uses.
func (h *AppointmentHandler) BookAppointmentHandler(c *gin.Context) {
	var in bookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	req := in.BookingRequest
	if req.ServiceType == "" {
		req.ServiceType = in.Service
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Language == "" {
		req.Language = models.LanguageFrench
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	result := h.Service.Commit(ctx, req)

	getLogger(c).Info("Booking attempt",
		zap.String("requestId", req.ID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("commitmentId", result.CommitmentID))
	c.JSON(outcomeStatus(result.Outcome), result)
}

// ListAppointmentsHandler handles GET /api/appointments?date=YYYY-MM-DD.
func (h *AppointmentHandler) ListAppointmentsHandler(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "date must be YYYY-MM-DD", date)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.ListCommitments(ctx, date)
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "calendar unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "appointments": list})
}

// GetAppointmentHandler handles GET /api/appointments/:id.
func (h *AppointmentHandler) GetAppointmentHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	commitment, err := h.Repo.GetCommitment(ctx, c.Param("id"))
	if err != nil {
		writeSchedulingError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

type cancelInput struct {
	Reason string `json:"reason" form:"reason"`
}

// CancelAppointmentHandler handles DELETE /api/appointments/:id. An optional
// reason comes from the query string or a JSON body.
func (h *AppointmentHandler) CancelAppointmentHandler(c *gin.Context) {
	id := c.Param("id")
	var in cancelInput
	if err := c.ShouldBindQuery(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid cancellation", err.Error())
		return
	}
	if in.Reason == "" && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid cancellation", err.Error())
			return
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.Cancel(ctx, id, in.Reason); err != nil {
		writeSchedulingError(c, err)
		return
	}
	getLogger(c).Info("Appointment cancelled", zap.String("commitmentId", id), zap.String("reason", in.Reason))
	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.CommitmentCancelled, "reason": in.Reason})
}

func outcomeStatus(o models.BookingOutcome) int {
	switch o {
	case models.OutcomeConfirmed:
		return http.StatusCreated
	case models.OutcomeConflict:
		return http.StatusConflict
	case models.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	}
	return http.StatusServiceUnavailable
}

func writeSchedulingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrCommitmentNotFound):
		utils.JSONError(c, http.StatusNotFound, "appointment not found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidDate),
		errors.Is(err, scheduling.ErrSlotNotAligned),
		errors.Is(err, scheduling.ErrDayClosed):
		utils.JSONError(c, http.StatusBadRequest, "invalid slot", err.Error())
	case errors.Is(err, scheduling.ErrCollaboratorUnavailable):
		utils.JSONError(c, http.StatusServiceUnavailable, "calendar unavailable", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "unexpected error", err.Error())
	}
}
