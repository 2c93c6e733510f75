package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks struct tags and reports failures by json field name.
type Validator interface {
	Validate(interface{}) error
}

// FieldError describes one failed rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Errors is returned by Validate when any rule fails.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		switch fe.Rule {
		case "required":
			parts = append(parts, fe.Field+" is required")
		case "gtefield":
			parts = append(parts, fmt.Sprintf("%s must not be before %s", fe.Field, lowerFirst(fe.Param)))
		default:
			if fe.Param != "" {
				parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field, fe.Rule, fe.Param))
			} else {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field, fe.Rule))
			}
		}
	}
	return strings.Join(parts, "; ")
}

type structValidator struct {
	validate *validator.Validate
}

func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &structValidator{validate: v}
}

func (v *structValidator) Validate(obj interface{}) error {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
