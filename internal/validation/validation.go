package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

const DefaultMaxMessageLength = 4000

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return models.ParsePlatform(fl.Field().String()).Valid()
	})
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates request DTOs by their `validate` tags. The first failing
// field is reported as an invalid argument.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.InvalidArg(fieldMessage(verrs[0]))
	}
	return apperr.InvalidArg("invalid request")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "platform":
		return apperr.MessageOf(apperr.ErrInvalidPlatform)
	case "uuid", "uuid4":
		return field + " must be a uuid"
	case "max":
		return field + " is too long"
	}
	return field + " is invalid"
}

// TrimAndLimit trims surrounding whitespace and cuts s to max runes.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// ValidClientID reports whether id is usable as a message idempotency key.
func ValidClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func NormalizePushToken(token string) string {
	return strings.TrimSpace(token)
}

func ValidPlatform(platform string) bool {
	return models.ParsePlatform(platform).Valid()
}
