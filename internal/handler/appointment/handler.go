package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/handler"
	"github.com/jwalitptl/salon-api/internal/middleware"
	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/service/appointment"
	"github.com/jwalitptl/salon-api/internal/service/booking"
)

type Booker interface {
	CreateBooking(ctx context.Context, in booking.CreateBookingInput) (*model.AppointmentDetails, error)
}

type Lifecycle interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*model.AppointmentDetails, error)
	List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status model.AppointmentStatus, actor model.Actor) (*model.AppointmentDetails, error)
	Cancel(ctx context.Context, tenantID, id uuid.UUID, actor model.Actor) (*model.AppointmentDetails, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, patch model.AppointmentPatch, actor model.Actor) (*model.AppointmentDetails, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ListEvents(ctx context.Context, tenantID, id uuid.UUID) ([]*model.AppointmentEvent, error)
}

type Handler struct {
	booker    Booker
	lifecycle Lifecycle
}

func NewHandler(booker Booker, lifecycle Lifecycle) *Handler {
	return &Handler{booker: booker, lifecycle: lifecycle}
}

// RegisterRoutes mounts the appointment routes. createMiddleware runs only in
// front of the booking endpoint.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, createMiddleware ...gin.HandlerFunc) {
	create := append([]gin.HandlerFunc{}, createMiddleware...)
	create = append(create, h.CreateAppointment)

	appointments := r.Group("/appointments")
	{
		appointments.POST("", create...)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.GET("/:id/events", h.ListEvents)
	}
}

type ClientRequest struct {
	Name  string  `json:"name" binding:"required,max=200"`
	Phone string  `json:"phone" binding:"required,phone"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// CreateAppointmentRequest books a known client (client_id), a client found
// or created by phone (client), or a walk-in (neither).
type CreateAppointmentRequest struct {
	ProfessionalID uuid.UUID      `json:"professional_id" binding:"required"`
	ServiceIDs     []uuid.UUID    `json:"service_ids" binding:"required,min=1,max=20"`
	StartTime      time.Time      `json:"start_time" binding:"required"`
	ClientID       *uuid.UUID     `json:"client_id"`
	Client         *ClientRequest `json:"client"`
	Notes          *string        `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateAppointmentRequest struct {
	StartTime      *time.Time `json:"start_time"`
	ProfessionalID *uuid.UUID `json:"professional_id"`
	ClientID       *uuid.UUID `json:"client_id"`
	Notes          *string    `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=scheduled confirmed completed cancelled no_show"`
}

type listQuery struct {
	ProfessionalID string `form:"professional_id" binding:"omitempty,uuid"`
	ClientID       string `form:"client_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,oneof=scheduled confirmed completed cancelled no_show"`
	From           string `form:"from"`
	To             string `form:"to"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset         int    `form:"offset" binding:"omitempty,min=0"`
}

type ListResponse struct {
	Appointments []*model.Appointment `json:"appointments"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	tenantID, ok := tenant(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	in := booking.CreateBookingInput{
		TenantID:       tenantID,
		ProfessionalID: req.ProfessionalID,
		ServiceIDs:     req.ServiceIDs,
		StartTime:      req.StartTime,
		ClientID:       req.ClientID,
		Notes:          req.Notes,
		Actor:          middleware.ActorFrom(c),
	}
	if req.Client != nil {
		in.ClientName = req.Client.Name
		in.ClientPhone = req.Client.Phone
		in.ClientEmail = req.Client.Email
	}

	details, err := h.booker.CreateBooking(c.Request.Context(), in)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(details))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	tenantID, ok := tenant(c)
	if !ok {
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}

	filter := &model.AppointmentFilter{
		TenantID:   tenantID,
		Pagination: model.Pagination{Limit: q.Limit, Offset: q.Offset}.Normalize(),
	}
	if q.ProfessionalID != "" {
		id := uuid.MustParse(q.ProfessionalID)
		filter.ProfessionalID = &id
	}
	if q.ClientID != "" {
		id := uuid.MustParse(q.ClientID)
		filter.ClientID = &id
	}
	if q.Status != "" {
		status := model.AppointmentStatus(q.Status)
		filter.Status = &status
	}
	for _, bound := range []struct {
		raw  string
		dst  **time.Time
		name string
	}{
		{q.From, &filter.From, "from"},
		{q.To, &filter.To, "to"},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			handler.BadRequest(c, bound.name+" must be an RFC 3339 timestamp", err)
			return
		}
		*bound.dst = &t
	}

	appointments, err := h.lifecycle.List(c.Request.Context(), filter)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ListResponse{
		Appointments: appointments,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	tenantID, id, ok := ids(c)
	if !ok {
		return
	}
	details, err := h.lifecycle.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if details == nil {
		handler.Error(c, appointment.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(details))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	tenantID, id, ok := ids(c)
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	details, err := h.lifecycle.Update(c.Request.Context(), tenantID, id, model.AppointmentPatch{
		StartTime:      req.StartTime,
		ProfessionalID: req.ProfessionalID,
		ClientID:       req.ClientID,
		Notes:          req.Notes,
	}, middleware.ActorFrom(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(details))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	tenantID, id, ok := ids(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	details, err := h.lifecycle.UpdateStatus(c.Request.Context(), tenantID, id,
		model.AppointmentStatus(req.Status), middleware.ActorFrom(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(details))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	tenantID, id, ok := ids(c)
	if !ok {
		return
	}
	details, err := h.lifecycle.Cancel(c.Request.Context(), tenantID, id, middleware.ActorFrom(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(details))
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	tenantID, id, ok := ids(c)
	if !ok {
		return
	}
	if err := h.lifecycle.Delete(c.Request.Context(), tenantID, id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.Response{Status: "success", Message: "appointment deleted"})
}

func (h *Handler) ListEvents(c *gin.Context) {
	tenantID, id, ok := ids(c)
	if !ok {
		return
	}
	events, err := h.lifecycle.ListEvents(c.Request.Context(), tenantID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

func tenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		handler.BadRequest(c, "tenant is required", nil)
	}
	return tenantID, ok
}

func ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := tenant(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.BadRequest(c, "invalid appointment ID", err)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}
