package modio

import (
	"fmt"
	"net/http"
	"time"
)

// Error is the client's single error domain: network failures, auth
// rejections, rate limiting, and not-found conditions all carry the mod
// id they concern when one is known.
type Error struct {
	// Status is the HTTP status, or zero for transport failures.
	Status int
	// Ref is the API's machine-readable error reference, when present.
	Ref int
	// Message is the API's or transport's human-readable message.
	Message string
	// RetryAfter is nonzero when the API asked us to back off.
	RetryAfter time.Duration

	ModID    uint32
	HasModID bool
}

func (e *Error) Error() string {
	if e.HasModID {
		return fmt.Sprintf("mod.io api error for mod %d (status %d, ref %d): %s", e.ModID, e.Status, e.Ref, e.Message)
	}
	return fmt.Sprintf("mod.io api error (status %d, ref %d): %s", e.Status, e.Ref, e.Message)
}

// OptModID returns the mod id this failure concerns, if known.
func (e *Error) OptModID() (uint32, bool) {
	return e.ModID, e.HasModID
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// NotFound reports whether the addressed mod or modfile does not exist.
func (e *Error) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// Unauthorized reports a credential problem (bad api key or token).
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}
