// Package services defines the business logic for scans, recommendations,
// and narration. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Scan-related errors.
var (
	// ErrMissingImage is returned when an analyze request carries no image
	// payload.
	ErrMissingImage = errors.New("image is required")

	// ErrImageTooLarge is returned when the uploaded capture exceeds the
	// configured size cap.
	ErrImageTooLarge = errors.New("image too large")

	// ErrInvalidScanKind is returned when the requested scan type is not one
	// of the supported kinds.
	ErrInvalidScanKind = errors.New("invalid scan type")

	// ErrScanNotFound indicates that the requested scan does not exist.
	ErrScanNotFound = errors.New("scan not found")

	// ErrInvalidUpdate is returned when a partial update targets fields that
	// cannot be changed or carries values outside their contract.
	ErrInvalidUpdate = errors.New("invalid scan update")
)
