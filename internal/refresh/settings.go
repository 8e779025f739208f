package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leozw/vessel-guardian/internal/cache"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"go.uber.org/zap"
)

// SettingsLoader reads a tenant's provider credentials from storage.
type SettingsLoader interface {
	ProviderSettings(ctx context.Context, tid tenant.ID, provider string) (*core.ProviderSettings, error)
}

type cachedSettings struct {
	Found   bool   `json:"found"`
	APIKey  string `json:"api_key"`
	Enabled bool   `json:"enabled"`
}

// SettingsResolver caches provider settings per tenant in an injected cache.
type SettingsResolver struct {
	loader SettingsLoader
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewSettingsResolver(loader SettingsLoader, c cache.Cache, ttl time.Duration, logger *zap.Logger) *SettingsResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsResolver{loader: loader, cache: c, ttl: ttl, logger: logger}
}

func settingsKey(tid tenant.ID, provider string) string {
	return fmt.Sprintf("tenant:%s:provider:%s", tid, provider)
}

// Resolve returns nil when the tenant has no settings for provider.
func (r *SettingsResolver) Resolve(ctx context.Context, tid tenant.ID, provider string) (*core.ProviderSettings, error) {
	key := settingsKey(tid, provider)

	var cached cachedSettings
	err := r.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		if !cached.Found {
			return nil, nil
		}
		return &core.ProviderSettings{TenantID: string(tid), Provider: provider, APIKey: cached.APIKey, Enabled: cached.Enabled}, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("Settings cache read failed",
			zap.Error(err),
			zap.String("tenant_id", string(tid)),
		)
	}

	settings, err := r.loader.ProviderSettings(ctx, tid, provider)
	if err != nil {
		return nil, err
	}

	entry := cachedSettings{Found: settings != nil}
	if settings != nil {
		entry.APIKey = settings.APIKey
		entry.Enabled = settings.Enabled
	}
	if err := r.cache.SetJSON(ctx, key, entry, r.ttl); err != nil {
		r.logger.Warn("Settings cache write failed",
			zap.Error(err),
			zap.String("tenant_id", string(tid)),
		)
	}
	return settings, nil
}

// Invalidate drops the cached settings after credentials change.
func (r *SettingsResolver) Invalidate(ctx context.Context, tid tenant.ID, provider string) error {
	return r.cache.Delete(ctx, settingsKey(tid, provider))
}
