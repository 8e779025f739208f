package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/leozw/vessel-guardian/internal/core"
)

const maxErrorBody = 512

// HTTPConfig describes a vendor speaking the generic position/zone contract.
type HTTPConfig struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

// HTTPAdapter talks to GET /position and GET /zone on a vendor's base URL.
type HTTPAdapter struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPAdapter(cfg HTTPConfig, apiKey string) *HTTPAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAdapter{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// HTTPFactory returns a Factory for Registry.Register. Adapters built by one factory
// share the underlying HTTP client.
func HTTPFactory(cfg HTTPConfig) Factory {
	base := NewHTTPAdapter(cfg, "")
	return func(apiKey string) Adapter {
		a := *base
		a.apiKey = apiKey
		return &a
	}
}

func (a *HTTPAdapter) Name() string {
	return a.name
}

func (a *HTTPAdapter) Configured() bool {
	return a.apiKey != "" && a.baseURL != ""
}

func (a *HTTPAdapter) FetchByIdentifier(ctx context.Context, identifier string, idType core.IdentifierType) (*Position, error) {
	id, err := Normalize(identifier, idType)
	if err != nil {
		return nil, err
	}
	if !a.Configured() {
		return nil, fmt.Errorf("%w: %s", core.ErrProviderNotConfigured, a.name)
	}

	q := url.Values{}
	q.Set("id", id)
	q.Set("type", string(idType))

	var pos Position
	if err := a.get(ctx, "/position", q, &pos); err != nil {
		return nil, err
	}
	if !(core.LatLon{Lat: pos.Lat, Lon: pos.Lon}).Valid() {
		return nil, fmt.Errorf("%w: provider %s returned lat=%f lon=%f", core.ErrInvalidPosition, a.name, pos.Lat, pos.Lon)
	}
	if pos.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: provider %s returned no timestamp", core.ErrInvalidPosition, a.name)
	}
	return &pos, nil
}

func (a *HTTPAdapter) FetchInZone(ctx context.Context, bbox BBox) ([]Position, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if !a.Configured() {
		return nil, fmt.Errorf("%w: %s", core.ErrProviderNotConfigured, a.name)
	}

	q := url.Values{}
	q.Set("minlat", formatCoord(bbox.MinLat))
	q.Set("maxlat", formatCoord(bbox.MaxLat))
	q.Set("minlon", formatCoord(bbox.MinLon))
	q.Set("maxlon", formatCoord(bbox.MaxLon))

	var positions []Position
	if err := a.get(ctx, "/zone", q, &positions); err != nil {
		return nil, err
	}

	valid := positions[:0]
	for _, p := range positions {
		if (core.LatLon{Lat: p.Lat, Lon: p.Lon}).Valid() && !p.Timestamp.IsZero() {
			valid = append(valid, p)
		}
	}
	return valid, nil
}

func (a *HTTPAdapter) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s request failed: %w", a.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", core.ErrInvalidCredentials, a.name, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, a.name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Provider: a.name, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", a.name, err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
