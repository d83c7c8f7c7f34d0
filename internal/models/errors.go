package models

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEntityNotFound     = errors.New("entity not found")
	ErrEmptyCohort        = errors.New("empty cohort")
	ErrScoringUnavailable = errors.New("scoring unavailable")
)
