package tenant

import (
	"context"
	"errors"
	"strings"
)

// ErrMissingTenant is returned when a call arrives without a usable tenant identifier.
var ErrMissingTenant = errors.New("missing tenant")

// ID is a validated tenant identifier. Components take an ID, never a raw string,
// so an unchecked value cannot reach a query.
type ID string

func (id ID) String() string {
	return string(id)
}

// Require validates a raw tenant identifier taken from an authenticated context.
// It fails for nil, non-string values and empty or blank strings.
func Require(v any) (ID, error) {
	var raw string
	switch t := v.(type) {
	case ID:
		raw = string(t)
	case string:
		raw = t
	case *string:
		if t == nil {
			return "", ErrMissingTenant
		}
		raw = *t
	default:
		return "", ErrMissingTenant
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingTenant
	}
	return ID(raw), nil
}

// MustRequire is Require for identifiers known at compile time (tests, seed data).
func MustRequire(v any) ID {
	id, err := Require(v)
	if err != nil {
		panic(err)
	}
	return id
}

type ctxKey struct{}

// WithTenant stores a validated tenant in ctx.
func WithTenant(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the tenant stored by WithTenant.
func FromContext(ctx context.Context) (ID, error) {
	return Require(ctx.Value(ctxKey{}))
}
