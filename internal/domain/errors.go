package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidChannel    = errors.New("invalid channel: must be email, sms, or all")
	ErrInvalidLocation   = errors.New("latitude must be within [-90,90] and longitude within [-180,180]")
	ErrInvalidContact    = errors.New("contact needs a name and at least one of phone or email")
	ErrInvalidInterval   = errors.New("tracking interval is below the configured minimum")
	ErrDuplicateRequest  = errors.New("request with this idempotency key was already dispatched")
	ErrNothingToRetry    = errors.New("dispatch has no failed recipients to retry")
	ErrTrackingStopped   = errors.New("tracking session is no longer active")
	ErrRelayUnconfigured = errors.New("mail relay is not configured")
)
