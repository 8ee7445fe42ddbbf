package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
)

// DefaultRegion is used to parse phone numbers given without a leading +.
const DefaultRegion = "ID"

var (
	validate *validator.Validate
	once     sync.Once

	regionMu      sync.RWMutex
	defaultRegion = DefaultRegion
)

// ErrInvalidPhone is returned by NormalizePhone for numbers that cannot receive WhatsApp messages.
var ErrInvalidPhone = errors.New("invalid phone number")

// Get returns a singleton validator instance
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation("whatsapp", func(fl validator.FieldLevel) bool {
			_, err := NormalizePhone(fl.Field().String(), Region())
			return err == nil
		})
	})
	return validate
}

// SetDefaultRegion changes the region used by the whatsapp tag.
func SetDefaultRegion(region string) {
	if region == "" {
		return
	}
	regionMu.Lock()
	defaultRegion = strings.ToUpper(region)
	regionMu.Unlock()
}

// Region returns the region used by the whatsapp tag.
func Region() string {
	regionMu.RLock()
	defer regionMu.RUnlock()
	return defaultRegion
}

// NormalizePhone parses raw and returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: missing number", ErrInvalidPhone)
	}
	if strings.HasPrefix(raw, "+") {
		region = ""
	}

	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidPhone
	}
	switch phonenumbers.GetNumberType(parsed) {
	case phonenumbers.FIXED_LINE, phonenumbers.TOLL_FREE, phonenumbers.PREMIUM_RATE, phonenumbers.SHARED_COST:
		return "", fmt.Errorf("%w: not a mobile number", ErrInvalidPhone)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// Validate validates a struct and returns formatted errors
func Validate(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s", e.Field(), getErrorMessage(e)))
	}

	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

// ValidateFields validates a struct and reports failures per JSON field.
// A nil return means the struct is valid.
func ValidateFields(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	fe := apperrors.NewFieldErrors()
	for _, e := range validationErrors {
		fe.Add(e.Field(), getErrorMessage(e))
	}
	return fe
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return Get().Var(field, tag)
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "whatsapp":
		return "must be a valid WhatsApp number"
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("validation tag '%s' with value '%v' failed", e.Tag(), e.Value())
	}
}
