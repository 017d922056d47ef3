package build

import (
	"fmt"
	"sort"
	"strings"
)

// Field error codes.
const (
	CodeRequired  = "required"
	CodeInvalid   = "invalid"
	CodeMaxLength = "max_length"
	CodeUnique    = "unique"
)

// FieldError is one validation failure on one field.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors collects field-level validation failures. A Build
// that returns ValidationErrors persisted nothing.
type ValidationErrors map[string][]FieldError

func (v ValidationErrors) Error() string {
	var parts []string
	for _, f := range v.Fields() {
		for _, fe := range v[f] {
			parts = append(parts, fmt.Sprintf("%s: %s", f, fe.Message))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the failing field names in sorted order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Add appends an error for a field.
func (v ValidationErrors) Add(field, code, format string, args ...any) {
	v[field] = append(v[field], FieldError{Code: code, Message: fmt.Sprintf(format, args...)})
}

// HasCode reports whether the field carries an error with the given code.
// The resolver uses this to spot a uniqueness collision on DOI.
func (v ValidationErrors) HasCode(field, code string) bool {
	for _, fe := range v[field] {
		if fe.Code == code {
			return true
		}
	}
	return false
}
