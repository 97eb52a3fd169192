package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when sketch declarations do not match the
// embedded JSON schema.
var ErrSchemaViolation = errors.New("sketch declarations violate schema")

//go:embed schema.json
var sketchSchema []byte

// SketchSchema returns the JSON schema used to validate sketch declarations.
func SketchSchema() []byte {
	return sketchSchema
}

// SchemaViolation describes one schema failure.
type SchemaViolation struct {
	Field       string
	Description string
}

// CheckSketches validates specs against the embedded schema and returns every
// violation found.
func CheckSketches(specs []SketchSpec) ([]SchemaViolation, error) {
	if specs == nil {
		specs = []SketchSpec{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(sketchSchema),
		gojsonschema.NewGoLoader(specs),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	violations := make([]SchemaViolation, 0, len(result.Errors()))

	for _, verr := range result.Errors() {
		violations = append(violations, SchemaViolation{
			Field:       verr.Field(),
			Description: verr.Description(),
		})
	}

	return violations, nil
}

// ValidateSketches returns ErrSchemaViolation listing every failure, or nil.
func ValidateSketches(specs []SketchSpec) error {
	violations, err := CheckSketches(specs)
	if err != nil {
		return err
	}

	if len(violations) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Field+": "+v.Description)
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
