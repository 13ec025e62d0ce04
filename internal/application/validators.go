package application

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-bracket/internal/domain"
)

// newValidator returns a validator with the custom tags used by Config.
func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return v, nil
}

// registerCustomValidators registers domain-specific validation functions
// with the validator instance.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("criterion", validateCriterion); err != nil {
		return fmt.Errorf("failed to register criterion validator: %w", err)
	}
	if err := v.RegisterValidation("modelname", validateModelName); err != nil {
		return fmt.Errorf("failed to register modelname validator: %w", err)
	}
	return nil
}

// validateCriterion accepts a single-line, non-blank criterion name.
func validateCriterion(fl validator.FieldLevel) bool {
	c := fl.Field().String()
	if strings.TrimSpace(c) == "" || len(c) > 200 {
		return false
	}
	return !strings.ContainsAny(c, "\r\n")
}

// validateModelName accepts "model" or "provider/model" without whitespace.
// Neither side of the slash may be empty.
func validateModelName(fl validator.FieldLevel) bool {
	model := fl.Field().String()
	if model == "" || strings.IndexFunc(model, unicode.IsSpace) >= 0 {
		return false
	}
	provider, name, found := strings.Cut(model, "/")
	if !found {
		return true
	}
	return provider != "" && name != ""
}

// Validate checks c and returns a *domain.ValidationError listing every
// violated rule. The error matches domain.ErrInvalidConfiguration.
func (c Config) Validate() error {
	v, err := newValidator()
	if err != nil {
		return err
	}

	verr := domain.NewValidationError("Config")
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("struct validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.AddError(describeFieldError(fe))
		}
	}

	if c.ScoreFilter.Enabled && c.ScoreFilter.PoolSize > c.Generation.NumGenerations {
		verr.AddError(fmt.Sprintf("score_filter.pool_size (%d) exceeds generation.num_generations (%d)",
			c.ScoreFilter.PoolSize, c.Generation.NumGenerations))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "criterion":
		return fmt.Sprintf("%s must be a non-empty single line", field)
	case "modelname":
		return fmt.Sprintf("%s must be \"model\" or \"provider/model\", got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
