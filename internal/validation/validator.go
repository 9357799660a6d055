package validation

import (
	"regexp"
	"strings"

	"github.com/cdukcom/iot-platform-multitenant/internal/errors"
)

var (
	devEUIPattern   = regexp.MustCompile(`^[0-9A-F]{16}$`)
	appKeyPattern   = regexp.MustCompile(`^[0-9A-F]{32}$`)
	objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// NormalizeDevEUI upper-cases and validates a 16-hex-character device EUI
func NormalizeDevEUI(devEUI string) (string, error) {
	eui := strings.ToUpper(strings.TrimSpace(devEUI))
	if !devEUIPattern.MatchString(eui) {
		return "", errors.Validation("dev_eui must be 16 hex characters, got %q", devEUI)
	}
	return eui, nil
}

// NormalizeAppKey upper-cases and validates a 32-hex-character OTAA key
func NormalizeAppKey(key string) (string, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if !appKeyPattern.MatchString(k) {
		return "", errors.Validation("app_key must be 32 hex characters")
	}
	return k, nil
}

// IsLocalID reports whether ref looks like a 24-hex document store id.
// Anything else is treated as an already-remote identifier.
func IsLocalID(ref string) bool {
	return objectIDPattern.MatchString(ref)
}

// NormalizeModel upper-cases a device model name
func NormalizeModel(model string) string {
	return strings.ToUpper(strings.TrimSpace(model))
}

// NonEmpty returns a validation error when value is blank
func NonEmpty(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Validation("%s is required", name)
	}
	return nil
}
