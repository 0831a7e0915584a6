package handler

import (
	"errors"
	"net/http"

	"github.com/pragati/exam-engine/internal/response"
	"github.com/pragati/exam-engine/internal/service"
)

// errorStatus maps a service error onto an HTTP status and response code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, response.ErrAttemptForbidden
	case errors.Is(err, service.ErrExamUnavailable):
		return http.StatusConflict, response.ErrExamUnavailable
	case errors.Is(err, service.ErrAttemptAlreadySubmitted):
		return http.StatusConflict, response.ErrExamAlreadyTaken
	case errors.Is(err, service.ErrAttemptClosed):
		return http.StatusConflict, response.ErrAttemptClosed
	case errors.Is(err, service.ErrAttemptOpen):
		return http.StatusConflict, response.ErrAttemptOpen
	case errors.Is(err, service.ErrInvalidQuestion):
		return http.StatusUnprocessableEntity, response.ErrInvalidQuestion
	case errors.Is(err, service.ErrInvalidOption):
		return http.StatusUnprocessableEntity, response.ErrInvalidOption
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
