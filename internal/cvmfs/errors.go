package cvmfs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced while scraping wraps exactly one of these.
var (
	ErrFetch      = errors.New("fetch failed")
	ErrParse      = errors.New("parse failed")
	ErrValidation = errors.New("validation failed")
	ErrGeoapi     = errors.New("geoapi failure")
	ErrLexical    = errors.New("invalid input")
)

// Specific errors, each wrapping its kind.
var (
	ErrMissingField        = fmt.Errorf("%w: missing field", ErrParse)
	ErrInvalidHex          = fmt.Errorf("%w: invalid hex string", ErrParse)
	ErrInvalidNumber       = fmt.Errorf("%w: invalid number", ErrParse)
	ErrConversion          = fmt.Errorf("%w: conversion error", ErrParse)
	ErrEmptyRepositoryList = fmt.Errorf("%w: empty repository list", ErrValidation)
	ErrServerTypeMismatch  = fmt.Errorf("%w: server type mismatch", ErrValidation)
	ErrInvalidHostname     = fmt.Errorf("%w: invalid hostname", ErrLexical)
)

// FieldError reports a problem with a single tagged manifest field.
type FieldError struct {
	Field byte
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("missing field %c", e.Field)
	}
	return fmt.Sprintf("parse error for field %c: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// StatusError is returned by fetchers when a server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap makes a StatusError classify as ErrFetch.
func (e *StatusError) Unwrap() error {
	return ErrFetch
}
