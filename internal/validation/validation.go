// Package validation holds the request schemas shared by the API handlers and the Go client.
//
// Every Parse function takes a raw JSON value and returns either the typed, normalized
// input or an Errors value listing field-level problems. Malformed input never panics.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	slugPattern       = regexp.MustCompile(`^[a-z0-9-]+$`)
	githubRepoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	trackEventPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
)

// FieldError describes one invalid field. Field is the JSON path, empty for the whole body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the list of field errors produced by a failed Parse.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		if fe.Field == "" {
			parts = append(parts, fe.Message)
			continue
		}
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsErrors extracts field errors from err.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// IsSlug reports whether s is a valid project or release slug.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("github_repo", func(fl validator.FieldLevel) bool {
		return githubRepoPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("track_event", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || trackEventPattern.MatchString(s)
	})
	return v
}

// decodeObject unmarshals raw into dst, requiring a JSON object at the root.
func decodeObject(raw []byte, dst any) Errors {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Errors{{Message: "body must be a JSON object"}}
	}
	return decodeErrors(json.Unmarshal(trimmed, dst))
}

func decodeErrors(err error) Errors {
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Errors{{Field: typeErr.Field, Message: "must be " + jsonKind(typeErr.Type)}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return Errors{{Message: "malformed JSON"}}
	}
	return Errors{{Message: err.Error()}}
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

// check runs struct validation and converts failures to field errors under prefix.
func check(s any, prefix string) Errors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: prefix, Message: err.Error()}}
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if prefix != "" {
			field = prefix + "." + field
		}
		out = append(out, FieldError{Field: field, Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "slug":
		return "must contain only lowercase letters, numbers and hyphens"
	case "github_repo":
		return "must look like owner/name"
	case "track_event":
		return "must contain only letters, numbers and _ . : -"
	case "url":
		return "must be a valid URL"
	case "startswith":
		return "must start with " + fe.Param()
	case "uuid":
		return "must be a UUID"
	case "fqdn":
		return "must be a hostname"
	default:
		return "is invalid"
	}
}

// checkObject reports an error unless raw is absent, null, or a JSON object.
func checkObject(raw json.RawMessage, field string) Errors {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return Errors{{Field: field, Message: "must be a JSON object"}}
	}
	return nil
}

// normalizeObject returns nil for absent or null objects.
func normalizeObject(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.RawMessage(trimmed)
}

// nullFields reports which of the named top-level fields are present as an explicit null.
func nullFields(raw []byte, names ...string) map[string]bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	out := make(map[string]bool, len(names))
	for _, name := range names {
		if v, ok := fields[name]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			out[name] = true
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
