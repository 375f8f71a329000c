package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/internal/service/appointment"
	"github.com/jwalitptl/salon-api/internal/service/booking"
	apperrors "github.com/jwalitptl/salon-api/pkg/errors"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"conflict", &booking.ConflictError{ProfessionalID: uuid.New(), Start: time.Now(), End: time.Now(), Err: repository.ErrConflict}, http.StatusConflict, apperrors.ErrConflict},
		{"transition", &appointment.InvalidTransitionError{From: model.AppointmentStatusCompleted, To: model.AppointmentStatusScheduled}, http.StatusConflict, apperrors.ErrInvalidTransition},
		{"no services", fmt.Errorf("wrapped: %w", booking.ErrNoValidServices), http.StatusUnprocessableEntity, apperrors.ErrValidation},
		{"invalid client", booking.ErrInvalidClient, http.StatusBadRequest, apperrors.ErrBadRequest},
		{"professional", booking.ErrProfessionalNotFound, http.StatusNotFound, apperrors.ErrNotFound},
		{"concurrent update", fmt.Errorf("%w: %w", appointment.ErrConcurrentUpdate, repository.ErrStale), http.StatusConflict, apperrors.ErrConflict},
		{"appointment", appointment.ErrNotFound, http.StatusNotFound, apperrors.ErrNotFound},
		{"fetch created", fmt.Errorf("%w: %w", booking.ErrFetchCreated, errors.New("timeout")), http.StatusInternalServerError, apperrors.ErrInternal},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr, ok := apperrors.As(ToAppError(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.status, appErr.StatusCode())
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestToAppErrorKeepsAppErrors(t *testing.T) {
	in := apperrors.NewBadRequest("bad date", nil)
	assert.Same(t, in, ToAppError(in))
}
