// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers to distinguish between failure scenarios without
// inspecting SQL driver errors directly.
package repository

import "errors"

// ErrShowtimeNotFound is returned when a showtime id does not exist
// in the catalog. Handlers should translate this into an HTTP 404.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrBookingNotFound is returned when a booking lookup matches no
// row. Handlers should translate this into an HTTP 404.
var ErrBookingNotFound = errors.New("booking not found")

// ErrCodeExhausted is returned when booking code generation could not
// produce an unused code after several attempts. This indicates the
// code space is close to saturation and should never happen in
// practice.
var ErrCodeExhausted = errors.New("booking code space exhausted")
