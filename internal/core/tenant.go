package core

import (
	"time"
)

// Tenant is an agency using the platform. Provider credentials are per tenant.
type Tenant struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProviderSettings holds one tenant's credentials for a tracking provider.
type ProviderSettings struct {
	TenantID string `json:"-" db:"tenant_id"`
	Provider string `json:"provider" db:"provider"`
	APIKey   string `json:"-" db:"api_key"`
	Enabled  bool   `json:"enabled" db:"enabled"`
}

// Configured reports whether the settings carry usable credentials.
func (p *ProviderSettings) Configured() bool {
	return p != nil && p.Enabled && p.APIKey != ""
}
