package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"courtbook/internal/bookings/slots"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"
	"courtbook/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as field -> message for AppError details.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("hour_token", validateHourToken); err != nil {
		log.Fatal("Failed to register 'hour_token' validator", "error", err)
	}
	if err := v.RegisterValidation("e164_phone", validateE164Phone); err != nil {
		log.Fatal("Failed to register 'e164_phone' validator", "error", err)
	}

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateHourToken(fl validator.FieldLevel) bool {
	_, err := slots.ParseToken(fl.Field().String())
	return err == nil
}

func validateE164Phone(fl validator.FieldLevel) bool {
	return sanitizer.IsE164Phone(fl.Field().String())
}

// Validate checks field shapes only. Window, catalog and conflict rules belong to the core.
func (v *BookingValidator) Validate(req *model.BookingRequest) error {
	if req == nil {
		return ValidationErrors{{Field: "booking", Message: "request body is required"}}
	}
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			if err.Kind() == reflect.Int {
				message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
			} else {
				message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
			}
		case "max":
			if err.Kind() == reflect.Int {
				message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
			} else {
				message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
			}
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "hour_token":
			message = fmt.Sprintf("%s must be a whole hour in HH:00 format", err.Field())
		case "e164_phone":
			message = fmt.Sprintf("%s must be a valid phone number in E.164 format", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
