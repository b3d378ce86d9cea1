package view

import (
	"fmt"
	"slices"

	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/widget"
	validate "github.com/go-playground/validator/v10"
)

// Validator checks mutation payloads against a schema before any network
// call: required fields, type shape, enum membership, and format rules.
// Keys for fields the schema no longer declares are tolerated and ignored.
type Validator struct {
	schema *schema.Schema
	verify *validate.Validate
}

// NewValidator creates a validator for one schema.
func NewValidator(s *schema.Schema) *Validator {
	return &Validator{
		schema: s,
		verify: validate.New(),
	}
}

// Validate returns whether the data conforms and the issues found. With
// loose set, missing required fields are not reported; updates use this so a
// partial payload can patch a record.
func (v *Validator) Validate(data map[string]any, loose bool) (bool, []schema.Issue) {
	var issues []schema.Issue

	for _, f := range v.schema.Fields {
		value, exists := data[f.Name]

		if !exists || value == nil {
			if f.Required && !loose {
				issues = append(issues, schema.Issue{
					Code:    "REQUIRED_FIELD_MISSING",
					Message: fmt.Sprintf("%s is required", displayName(f)),
					Field:   f.Name,
				})
			}
			continue
		}

		decoded, err := widget.Decode(f, value)
		if err != nil {
			issues = append(issues, schema.Issue{
				Code:    "TYPE_MISMATCH",
				Message: fmt.Sprintf("%s has an invalid value: %v", displayName(f), err),
				Field:   f.Name,
			})
			continue
		}

		if f.Type == schema.FieldTypeEnum {
			member, _ := decoded.(string)
			if !slices.Contains(f.Options, member) {
				issues = append(issues, schema.Issue{
					Code:    "ENUM_MEMBER_INVALID",
					Message: fmt.Sprintf("%s must be one of %v", displayName(f), f.Options),
					Field:   f.Name,
				})
				continue
			}
		}

		if f.Format != "" {
			if err := v.verify.Var(decoded, f.Format); err != nil {
				issues = append(issues, schema.Issue{
					Code:    "FORMAT_INVALID",
					Message: fmt.Sprintf("%s is not a valid %s", displayName(f), f.Format),
					Field:   f.Name,
				})
			}
		}
	}

	return len(issues) == 0, issues
}

func displayName(f schema.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
