package provider

import (
	"fmt"
	"strings"

	"github.com/leozw/vessel-guardian/internal/core"
)

// NormalizeIMO strips an optional case-insensitive "IMO" prefix and requires exactly
// seven digits.
func NormalizeIMO(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= 3 && strings.EqualFold(s[:3], "IMO") {
		s = strings.TrimSpace(s[3:])
	}
	if !allDigits(s, 7) {
		return "", fmt.Errorf("%w: imo %q must have 7 digits", core.ErrInvalidIdentifier, raw)
	}
	return s, nil
}

// NormalizeMMSI requires exactly nine digits.
func NormalizeMMSI(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !allDigits(s, 9) {
		return "", fmt.Errorf("%w: mmsi %q must have 9 digits", core.ErrInvalidIdentifier, raw)
	}
	return s, nil
}

func Normalize(raw string, idType core.IdentifierType) (string, error) {
	switch idType {
	case core.IdentifierMMSI:
		return NormalizeMMSI(raw)
	case core.IdentifierIMO:
		return NormalizeIMO(raw)
	default:
		return "", fmt.Errorf("%w: unknown identifier type %q", core.ErrInvalidIdentifier, idType)
	}
}

func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
