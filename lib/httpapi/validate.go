// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// validateStruct checks s against its validate tags.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	result := &ValidationError{Fields: make(map[string]string, len(fieldErrors))}
	for _, fieldErr := range fieldErrors {
		// Namespace is "createRequest.mounts[0].host_path"; drop the
		// type name.
		_, path, _ := strings.Cut(fieldErr.Namespace(), ".")
		if fieldErr.Param() != "" {
			result.Fields[path] = fieldErr.Tag() + "=" + fieldErr.Param()
		} else {
			result.Fields[path] = fieldErr.Tag()
		}
	}
	return result
}
