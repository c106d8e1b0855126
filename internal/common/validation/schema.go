// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	apperrors "servicedesk/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for job variables.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// MustCompile panics if schemaJSON is not a valid schema. Use it for
// package-level schema literals.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func Compile(name, schemaJSON string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

// Check validates a raw JSON document and reports every violation.
func (s *Schema) Check(document string) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", s.name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// Validate returns a VALIDATION_ERROR StandardError listing the violations,
// or nil when document conforms.
func (s *Schema) Validate(document string) error {
	result, err := s.Check(document)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if result.Valid {
		return nil
	}
	return apperrors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
