package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers bridge-specific validation rules.
// Must be called before validating BridgeConfig.
func RegisterCustomValidators(v *validator.Validate) error {
	return nil
}

// Validate validates the BridgeConfig using struct tags and cross-field
// rules. Returns an error with actionable messages if validation fails.
func (c *BridgeConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDiscoveryPort(); err != nil {
		return err
	}

	return nil
}

// validateDiscoveryPort ensures the discovery broadcast doesn't collide
// with the listener it's meant to announce.
func (c *BridgeConfig) validateDiscoveryPort() error {
	if !c.Discovery.Enabled {
		return nil
	}
	if c.Discovery.Port == c.Server.Port {
		return fmt.Errorf("discovery.port (%d) must differ from server.port (%d)", c.Discovery.Port, c.Server.Port)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			msg := formatSingleValidationError(e)
			messages = append(messages, msg)
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "hostname|ip":
		return fmt.Sprintf("%s must be a valid hostname or IP address", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
