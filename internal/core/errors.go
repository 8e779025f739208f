package core

import (
	"errors"

	"github.com/leozw/vessel-guardian/internal/tenant"
)

var (
	ErrMissingTenant         = tenant.ErrMissingTenant
	ErrInvalidIdentifier     = errors.New("invalid vessel identifier")
	ErrInvalidVessel         = errors.New("invalid vessel")
	ErrInvalidPosition       = errors.New("invalid position")
	ErrRateLimited           = errors.New("rate limited")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrInvalidCredentials    = errors.New("invalid provider credentials")
	ErrNotFound              = errors.New("not found")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrEventLogWrite         = errors.New("operation log write failed")
)
