package core

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the render packages wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrResource      = errors.New("resource error")
	ErrDevice        = errors.New("device error")
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
)

var (
	ErrLayoutMismatch = fmt.Errorf("%w: uniform layout mismatch", ErrConfiguration)
	ErrInvalidConfig  = fmt.Errorf("%w: invalid setting", ErrConfiguration)

	ErrPoolExhausted = fmt.Errorf("%w: buffer pool budget exceeded", ErrResource)
	ErrPoolClosed    = fmt.Errorf("%w: buffer pool closed", ErrResource)
	ErrAllocation    = fmt.Errorf("%w: device allocation failed", ErrResource)

	ErrDeviceLost         = fmt.Errorf("%w: device lost", ErrDevice)
	ErrSurfaceUnavailable = fmt.Errorf("%w: surface unavailable", ErrDevice)
	ErrFrameSkipped       = fmt.Errorf("%w: frame skipped", ErrDevice)
	ErrSubmitFailed       = fmt.Errorf("%w: submission failed", ErrDevice)

	ErrZeroSize        = fmt.Errorf("%w: zero-sized buffer request", ErrValidation)
	ErrStaleHandle     = fmt.Errorf("%w: stale buffer handle", ErrValidation)
	ErrInvalidGeometry = fmt.Errorf("%w: invalid geometry", ErrValidation)
	ErrLightIndex      = fmt.Errorf("%w: light index out of range", ErrValidation)

	ErrFrameAlreadyOpen = fmt.Errorf("%w: frame already open", ErrState)
	ErrNoFrame          = fmt.Errorf("%w: no frame open", ErrState)
	ErrClosed           = fmt.Errorf("%w: renderer closed", ErrState)
)

// IsRecoverable reports whether the caller may simply try again on the next
// frame (skipped frames, a transiently missing surface, pool pressure).
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrFrameSkipped) ||
		errors.Is(err, ErrSurfaceUnavailable) ||
		errors.Is(err, ErrResource)
}

// IsDeviceLost reports whether the device must be reinitialized.
func IsDeviceLost(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
