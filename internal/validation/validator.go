// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

// Package validation wraps go-playground/validator v10 for ingest requests
// and configuration. Field errors are reported under their wire names: the
// json tag for requests, the koanf tag for configuration, so a client sees
// "recordId" and an operator sees "hub.max_connections".
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    rw.ValidationError(apiErr.Message, apiErr.Fields)
//	    return
//	}
package validation

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

// FieldError is one failed constraint.
type FieldError struct {
	Path    string // dotted wire path, e.g. "events.nats.subject"
	Tag     string // failed validator tag, e.g. "oneof"
	Param   string
	Message string
}

func (e FieldError) Error() string { return e.Message }

// RequestValidationError collects every failed constraint of one struct.
type RequestValidationError struct {
	fields []FieldError
}

// Errors returns the individual field errors in declaration order.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.fields
}

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.fields))
	for i, f := range ve.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError is the payload of a VALIDATION_FAILED response.
type APIError struct {
	Code    string
	Message string
	Fields  []string
}

// ToAPIError flattens the error into a message and the list of failing paths.
func (ve *RequestValidationError) ToAPIError() *APIError {
	apiErr := &APIError{Code: "VALIDATION_ERROR", Message: ve.Error()}
	for _, f := range ve.fields {
		apiErr.Fields = append(apiErr.Fields, f.Path)
	}
	return apiErr
}

// GetValidator returns the shared validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(wireName)
	})
	return validate
}

// wireName picks the json name, then the koanf name, then the Go name.
func wireName(f reflect.StructField) string {
	for _, key := range []string{"json", "koanf"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ValidateStruct validates s and returns nil or a *RequestValidationError.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{fields: []FieldError{{Path: "", Tag: "invalid", Message: err.Error()}}}
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		path := fieldPath(fe.Namespace())
		out[i] = FieldError{
			Path:    path,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(path, fe),
		}
	}
	return &RequestValidationError{fields: out}
}

// fieldPath drops the leading struct type name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func message(path string, fe validator.FieldError) string {
	param := fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", path, param)
	case "startswith":
		return fmt.Sprintf("%s must start with %q", path, param)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s%s", path, param, unit)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s%s", path, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}
