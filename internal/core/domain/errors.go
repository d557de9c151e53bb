package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTooFar       = errors.New("too far")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

// TooFarError carries the computed distance so callers can show it.
type TooFarError struct {
	DistanceMeters float64
	MaxMeters      float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("too far: target is %.0fm away, limit is %.0fm", e.DistanceMeters, e.MaxMeters)
}

func (e *TooFarError) Unwrap() error { return ErrTooFar }
