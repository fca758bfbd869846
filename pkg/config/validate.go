package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate = validator.New()

// Validate checks the config against its struct tags
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError returns the first validation error in a
// user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "min":
			return fmt.Errorf("config.%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("config.%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("config.%s: %v is not one of [%s]", field, e.Value(), param)
		case "hostname_port":
			return fmt.Errorf("config.%s: %v is not a host:port address", field, e.Value())
		default:
			return fmt.Errorf("config.%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
