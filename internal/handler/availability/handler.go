package availability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/handler"
	"github.com/jwalitptl/salon-api/internal/middleware"
	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/internal/service/booking"
)

// Service is the availability engine behind the handler.
type Service interface {
	GetAvailableSlots(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time, totalDuration, step int) []model.Slot
	GetNextAvailableDate(ctx context.Context, tenantID, professionalID uuid.UUID, totalDuration int, startFrom *time.Time) *time.Time
	IsSlotAvailable(ctx context.Context, tenantID, professionalID uuid.UUID, start time.Time, totalDuration int, excludeID *uuid.UUID) bool
}

type Handler struct {
	service  Service
	services repository.ServiceRepository
}

func NewHandler(service Service, services repository.ServiceRepository) *Handler {
	return &Handler{service: service, services: services}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	professionals := r.Group("/professionals/:professional_id")
	{
		professionals.GET("/slots", h.GetSlots)
		professionals.GET("/next-available", h.GetNextAvailable)
		professionals.GET("/availability", h.CheckAvailability)
	}
}

// durationQuery is either an explicit duration or the services whose
// durations add up to it.
type durationQuery struct {
	Duration   int    `form:"duration" binding:"omitempty,min=1,max=1440"`
	ServiceIDs string `form:"service_ids"`
}

type slotsQuery struct {
	durationQuery
	Date string `form:"date" binding:"required"`
	Step int    `form:"step" binding:"omitempty,min=5,max=240"`
}

type nextAvailableQuery struct {
	durationQuery
	From string `form:"from"`
}

type availabilityQuery struct {
	durationQuery
	Start   time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	Exclude string    `form:"exclude_appointment_id" binding:"omitempty,uuid"`
}

type SlotsResponse struct {
	Date     string       `json:"date"`
	Duration int          `json:"duration"`
	Slots    []model.Slot `json:"slots"`
}

type NextAvailableResponse struct {
	Date *string `json:"date"`
}

type AvailabilityResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

func (h *Handler) GetSlots(c *gin.Context) {
	tenantID, professionalID, ok := ids(c)
	if !ok {
		return
	}
	var q slotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}
	date, err := time.Parse(model.DateLayout, q.Date)
	if err != nil {
		handler.BadRequest(c, "date must be YYYY-MM-DD", err)
		return
	}
	duration, ok := h.resolveDuration(c, tenantID, q.durationQuery)
	if !ok {
		return
	}

	slots := h.service.GetAvailableSlots(c.Request.Context(), tenantID, professionalID, date, duration, q.Step)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(SlotsResponse{
		Date:     date.Format(model.DateLayout),
		Duration: duration,
		Slots:    slots,
	}))
}

func (h *Handler) GetNextAvailable(c *gin.Context) {
	tenantID, professionalID, ok := ids(c)
	if !ok {
		return
	}
	var q nextAvailableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}
	var from *time.Time
	if q.From != "" {
		d, err := time.Parse(model.DateLayout, q.From)
		if err != nil {
			handler.BadRequest(c, "from must be YYYY-MM-DD", err)
			return
		}
		from = &d
	}
	duration, ok := h.resolveDuration(c, tenantID, q.durationQuery)
	if !ok {
		return
	}

	resp := NextAvailableResponse{}
	if next := h.service.GetNextAvailableDate(c.Request.Context(), tenantID, professionalID, duration, from); next != nil {
		d := next.Format(model.DateLayout)
		resp.Date = &d
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	tenantID, professionalID, ok := ids(c)
	if !ok {
		return
	}
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}
	duration, ok := h.resolveDuration(c, tenantID, q.durationQuery)
	if !ok {
		return
	}
	var exclude *uuid.UUID
	if q.Exclude != "" {
		id := uuid.MustParse(q.Exclude)
		exclude = &id
	}

	available := h.service.IsSlotAvailable(c.Request.Context(), tenantID, professionalID, q.Start, duration, exclude)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(AvailabilityResponse{
		Start:     q.Start,
		End:       q.Start.Add(time.Duration(duration) * time.Minute),
		Available: available,
	}))
}

// resolveDuration prefers an explicit duration and otherwise sums the active
// services listed in service_ids, counting repeats the way a booking does.
func (h *Handler) resolveDuration(c *gin.Context, tenantID uuid.UUID, q durationQuery) (int, bool) {
	if q.Duration > 0 {
		return q.Duration, true
	}
	if q.ServiceIDs == "" {
		handler.BadRequest(c, "duration or service_ids is required", nil)
		return 0, false
	}

	var serviceIDs []uuid.UUID
	for _, raw := range strings.Split(q.ServiceIDs, ",") {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			handler.BadRequest(c, "service_ids must be comma separated UUIDs", err)
			return 0, false
		}
		serviceIDs = append(serviceIDs, id)
	}

	services, err := booking.SelectServices(c.Request.Context(), h.services, tenantID, serviceIDs)
	if err != nil {
		handler.Error(c, err)
		return 0, false
	}
	total := 0
	for _, s := range services {
		total += s.Duration
	}
	return total, true
}

func ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		handler.BadRequest(c, "tenant is required", nil)
		return uuid.Nil, uuid.Nil, false
	}
	professionalID, err := uuid.Parse(c.Param("professional_id"))
	if err != nil {
		handler.BadRequest(c, "invalid professional ID", err)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, professionalID, true
}
