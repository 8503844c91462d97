package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	calendarRepo "voicebook/database/repository/calendar"
	"voicebook/models"
	"voicebook/services/fields"
	"voicebook/utils"

	"github.com/gin-gonic/gin"
)

// ActiveCalls is satisfied by *call.Manager.
type ActiveCalls interface {
	Active() int
}

type BusinessHandler struct {
	Calendar models.BusinessCalendarConfig
	Repo     calendarRepo.CalendarRepository
	Calls    ActiveCalls
	Now      func() time.Time
}

func NewBusinessHandler(cal models.BusinessCalendarConfig, repo calendarRepo.CalendarRepository, calls ActiveCalls) *BusinessHandler {
	return &BusinessHandler{Calendar: cal, Repo: repo, Calls: calls, Now: time.Now}
}

type businessInfo struct {
	Name                string            `json:"name"`
	Hours               string            `json:"hours"`
	AppointmentDuration int               `json:"appointmentDurationMinutes"`
	Timezone            string            `json:"timezone"`
	OpenDays            []string          `json:"openDays"`
	Services            []string          `json:"services"`
	Languages           []models.Language `json:"languages"`
}

// GetBusinessInfoHandler handles GET /api/business-info.
func (h *BusinessHandler) GetBusinessInfoHandler(c *gin.Context) {
	cal := h.Calendar
	var days []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if cal.IsOpenOn(d) {
			days = append(days, d.String())
		}
	}
	c.JSON(http.StatusOK, businessInfo{
		Name:                cal.Name,
		Hours:               fmt.Sprintf("%s-%s", clock(cal.OpenMinute), clock(cal.CloseMinute)),
		AppointmentDuration: int(cal.Duration / time.Minute),
		Timezone:            cal.Loc().String(),
		OpenDays:            days,
		Services:            fields.ServiceNames(cal.ServiceTypes),
		Languages:           cal.Languages,
	})
}

// GetStatsHandler handles GET /api/stats.
func (h *BusinessHandler) GetStatsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Repo.Stats(ctx, h.Now().In(h.Calendar.Loc()))
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "failed to load calendar stats", err.Error())
		return
	}
	active := 0
	if h.Calls != nil {
		active = h.Calls.Active()
	}
	c.JSON(http.StatusOK, gin.H{
		"appointments": stats,
		"activeCalls":  active,
		"business":     h.Calendar.Name,
	})
}

// HealthHandler handles GET /health with the latest dependency check.
func HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()
	deps := make([]string, 0, len(status.Dependencies))
	for name, ok := range status.Dependencies {
		if !ok {
			deps = append(deps, name)
		}
	}
	sort.Strings(deps)

	code := http.StatusOK
	state := "ok"
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(code, gin.H{
		"status":       state,
		"dependencies": status.Dependencies,
		"failing":      deps,
		"checkedAt":    status.CheckedAt,
	})
}

func clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
