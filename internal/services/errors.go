package services

import "errors"

// Service-level sentinels mapped to HTTP statuses by the handlers.
var (
	// ErrNotFound: the asset or its data does not exist anywhere we looked.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput: the request itself is malformed (bad dates, future range).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable: upstream is down or throttling and no fallback had data.
	ErrUnavailable = errors.New("service temporarily unavailable")
)
