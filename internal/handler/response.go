package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/salon-api/internal/service/appointment"
	"github.com/jwalitptl/salon-api/internal/service/booking"
	apperrors "github.com/jwalitptl/salon-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// Error attaches err to the context for middleware.ErrorHandler, translating
// service errors into their HTTP shape.
func Error(c *gin.Context, err error) {
	_ = c.Error(ToAppError(err))
}

// BadRequest attaches a 400 error.
func BadRequest(c *gin.Context, message string, err error) {
	_ = c.Error(apperrors.NewBadRequest(message, err))
}

// BindError reports a failed ShouldBind. Rule violations are left for the
// validation middleware to render field by field; malformed input is a 400.
func BindError(c *gin.Context, err error) {
	var verrs govalidator.ValidationErrors
	if errors.As(err, &verrs) {
		_ = c.Error(verrs)
		return
	}
	BadRequest(c, "invalid request", err)
}

func ToAppError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}

	var conflict *booking.ConflictError
	var transition *appointment.InvalidTransitionError
	switch {
	case errors.As(err, &conflict):
		return apperrors.NewConflict("time slot is not available", err)
	case errors.As(err, &transition):
		return apperrors.NewInvalidTransition(transition.Error(), err)
	case errors.Is(err, booking.ErrNoValidServices):
		return apperrors.NewValidation("no valid services found", err)
	case errors.Is(err, booking.ErrInvalidClient),
		errors.Is(err, booking.ErrInvalidStartTime):
		return apperrors.NewBadRequest(err.Error(), nil)
	case errors.Is(err, appointment.ErrInvalidStatus):
		return apperrors.NewValidation(err.Error(), nil)
	case errors.Is(err, appointment.ErrNotReschedulable):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, appointment.ErrConcurrentUpdate):
		return apperrors.NewConflict("appointment was modified concurrently, reload and retry", err)
	case errors.Is(err, booking.ErrProfessionalNotFound):
		return apperrors.NewNotFound("professional", err)
	case errors.Is(err, booking.ErrClientNotFound):
		return apperrors.NewNotFound("client", err)
	case errors.Is(err, appointment.ErrNotFound):
		return apperrors.NewNotFound("appointment", err)
	case errors.Is(err, booking.ErrFetchCreated):
		return &apperrors.AppError{Code: apperrors.ErrInternal, Message: "failed to fetch created appointment", Err: err}
	default:
		return apperrors.NewInternal(err)
	}
}
