package chat

import (
	"context"
	"errors"

	"chatrelay/internal/store"
)

var (
	ErrAccessDenied     = errors.New("access denied")
	ErrNotSubscribed    = errors.New("not subscribed to room")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrStoreTimeout     = errors.New("store timeout")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// reasonCode maps a handler error to the machine-readable code carried
// by the outbound "error" envelope.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrNotSubscribed):
		return "not_subscribed"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrStoreTimeout):
		return "store_timeout"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}

// mapStoreErr classifies a persistence failure. Sentinels pass through;
// deadline expiry becomes StoreTimeout, anything else StoreUnavailable.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrValidation):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrStoreTimeout
	default:
		return ErrStoreUnavailable
	}
}
