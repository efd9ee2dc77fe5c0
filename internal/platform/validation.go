package platform

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError reports one failed rule on one field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is returned when one or more rules fail.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator accumulates rule failures.
type Validator struct {
	errs ValidationErrors
}

// Check records a failure on field when ok is false.
func (v *Validator) Check(ok bool, field, code, message string) {
	if !ok {
		v.errs = append(v.errs, ValidationError{Field: field, Code: code, Message: message})
	}
}

// Err returns nil when every check passed.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}

func IsRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

func MaxLength(value string, max int) bool {
	return utf8.RuneCountInString(value) <= max
}

func MinValue[N int | int64 | float64](value, min N) bool {
	return value >= min
}

