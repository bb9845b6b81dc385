package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"stashbox/internal/types"
)

// Validator wraps go-playground/validator to register domain-specific rules.
// Custom tags:
//   - plan_tier: the value must be a known plan tier (free, basic, pro, enterprise)
//   - usage_metric: the value must be a known usage metric name
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes a single field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates field errors and non-blocking warnings from a
// single struct validation pass.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

// IsValid reports whether the result contains no blocking errors.
// Warnings do not affect validity.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// NewValidator creates a new Validator and registers custom validation tags.
// Tag registration failures are logged and skipped; the built-in tags remain
// functional either way.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	if err := v.RegisterValidation("plan_tier", validatePlanTier); err != nil {
		logger.Error("failed to register plan_tier validation", "error", err)
	}
	if err := v.RegisterValidation("usage_metric", validateUsageMetric); err != nil {
		logger.Error("failed to register usage_metric validation", "error", err)
	}

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// validatePlanTier checks that a string field holds a known plan tier name.
func validatePlanTier(fl validator.FieldLevel) bool {
	return types.PlanTier(fl.Field().String()).Valid()
}

// validateUsageMetric checks that a string field holds a known metric name.
func validateUsageMetric(fl validator.FieldLevel) bool {
	return types.Metric(fl.Field().String()).Valid()
}

// ValidateStruct validates a struct using the registered rules. On failure it
// returns a *types.AppError whose Code reflects the first failed field and
// whose Details carry the full list under the "validation_errors" key.
// On success it returns nil.
func (v *Validator) ValidateStruct(s interface{}) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		"request validation failed",
		nil,
		map[string]any{
			"validation_errors": result.Errors,
		},
	)
}

// ValidateStructWithWarnings validates a struct and returns the full result
// without converting it to an error. Callers that want to surface warnings
// alongside a successful response use this form.
func (v *Validator) ValidateStructWithWarnings(s interface{}) ValidationResult {
	result := ValidationResult{}

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// Non-field error (e.g., passing a non-struct). Surface it as a
		// single opaque validation failure.
		v.logger.Error("struct validation failed with non-field error", "error", err)
		result.Errors = append(result.Errors, ValidationError{
			Field:   "",
			Code:    string(types.ErrCodeValidationMissingField),
			Message: "request could not be validated",
		})
		return result
	}

	for _, fe := range validationErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: validationMessage(fe),
		})
	}

	return result
}

// tagToErrorCode maps a validator tag name to the public error code returned
// to API clients.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "plan_tier", "oneof":
		return string(types.ErrCodeValidationInvalidTier)
	case "usage_metric", "gte", "min":
		return string(types.ErrCodeValidationInvalidUsage)
	default:
		return string(types.ErrCodeValidationMissingField)
	}
}

// validationMessage builds a human-readable message for a field error.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "plan_tier":
		return fe.Field() + " must be one of: free, basic, pro, enterprise"
	case "usage_metric":
		return fe.Field() + " must be a known usage metric"
	case "gte", "min":
		return fe.Field() + " must not be negative"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
