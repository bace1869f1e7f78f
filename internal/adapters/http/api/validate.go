package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct checks v against its validate tags and wraps failures in
// ErrBadRequest with one message per failed field.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fieldMessage(f))
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
}

// validateVar checks a single value against tag.
func validateVar(field string, v any, tag string) error {
	err := getValidator().Var(v, tag)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return fmt.Errorf("%w: %s failed %s", ErrBadRequest, field, describeTag(fields[0]))
	}
	return fmt.Errorf("%w: %s: %w", ErrBadRequest, field, err)
}

func fieldMessage(f validator.FieldError) string {
	ns := f.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns + " failed " + describeTag(f)
}

func describeTag(f validator.FieldError) string {
	if f.Param() != "" {
		return f.Tag() + "=" + f.Param()
	}
	return f.Tag()
}
