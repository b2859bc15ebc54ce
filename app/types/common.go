package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const MissingParametersMessage = "Missing required parameters"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and turns the first failure into a
// client-facing message. Any missing field wins over format errors.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return errors.New(MissingParametersMessage)
		}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("%s must be one of %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Errorf("%s must be > %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Errorf("%s must be >= %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Errorf("%s must be %s characters", fe.Field(), fe.Param())
	case "url":
		return fmt.Errorf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type WebhookAckResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}
