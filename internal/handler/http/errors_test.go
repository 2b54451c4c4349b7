package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kaleub/kaleub-back/internal/service"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrDuplicateEmail, http.StatusConflict},
		{service.ErrExceedCapacity, http.StatusConflict},
		{service.ErrAlertLeaveRoom, http.StatusConflict},
		{service.ErrRoomDisabled, http.StatusConflict},
		{service.ErrInvalidOrExpiredCode, http.StatusBadRequest},
		{service.ErrInvalidPassword, http.StatusBadRequest},
		{service.ErrAuthenticationFailed, http.StatusUnauthorized},
		{service.ErrNotOwner, http.StatusForbidden},
		{service.ErrNotAuthor, http.StatusForbidden},
		{service.ErrRoomNotFound, http.StatusNotFound},
		{service.ErrFeedNotFound, http.StatusNotFound},
		{service.ErrMailDelivery, http.StatusServiceUnavailable},
		{service.ErrInternalServer, http.StatusInternalServerError},
		{errors.New("something else"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", service.ErrNotParticipant), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusForError(tt.err))
		})
	}
}
