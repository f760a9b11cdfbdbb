package utils

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	registerOnce  sync.Once
	registerErr   error
)

// sensitiveFields never have their values echoed back.
var sensitiveFields = map[string]bool{"password": true}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// RegisterValidators installs the custom validation tags on gin's validator
// and makes field errors report JSON names. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		registerErr = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRegex.MatchString(fl.Field().String())
		})
	})
	return registerErr
}

// IsValidUsername checks the username character set.
func IsValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// IsValidUUID reports whether id is a canonical UUID.
func IsValidUUID(id string) bool {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return false
	}
	return v.Var(id, "required,uuid") == nil
}

// ValidationDetails converts a binding error into per-field details.
func ValidationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		d := FieldError{Field: fe.Field(), Message: fieldMessage(fe)}
		if !sensitiveFields[fe.Field()] {
			d.Value = fe.Value()
		}
		details = append(details, d)
	}
	return details
}

// SendValidationError writes 400 {"error":"Validation failed","details":[...]}.
func SendValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Validation failed",
		"details": ValidationDetails(err),
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "email":
		return "Invalid email format"
	case "username":
		return fe.Field() + " may only contain letters, digits, underscores and hyphens"
	case "uuid":
		return fe.Field() + " must be a UUID"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
