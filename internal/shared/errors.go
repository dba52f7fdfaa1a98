package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrTenantMissing occurs when a request carries no tenant header.
	ErrTenantMissing = errors.New("tenant id missing")
	// ErrTenantInvalid occurs when the tenant header is not a UUID.
	ErrTenantInvalid = errors.New("tenant id invalid")
	// ErrActorInvalid occurs when the actor header is not an integer.
	ErrActorInvalid = errors.New("actor id invalid")
)
