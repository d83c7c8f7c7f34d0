package api

import (
	"errors"
	"net/http"

	"insider-risk/internal/cache"
	"insider-risk/internal/models"
)

func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEntityNotFound), errors.Is(err, cache.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmptyCohort):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrScoringUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
