package view

import (
	"testing"

	"github.com/avasel/go-facet/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validatorSchema() *schema.Schema {
	return &schema.Schema{
		Name: "Contact",
		Fields: []schema.Field{
			{Name: "name", Label: "Name", Type: schema.FieldTypeString, Required: true},
			{Name: "email", Label: "Email", Type: schema.FieldTypeString, Format: "email"},
			{Name: "age", Label: "Age", Type: schema.FieldTypeInteger},
			{Name: "status", Label: "Status", Type: schema.FieldTypeEnum, Options: []string{"active", "archived"}},
		},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name      string
		data      map[string]any
		loose     bool
		wantValid bool
		wantField string
		wantCode  string
	}{
		{
			name:      "valid full payload",
			data:      map[string]any{"name": "Ada", "email": "ada@example.com", "age": float64(36), "status": "active"},
			wantValid: true,
		},
		{
			name:      "missing required field",
			data:      map[string]any{"age": float64(36)},
			wantValid: false,
			wantField: "name",
			wantCode:  "REQUIRED_FIELD_MISSING",
		},
		{
			name:      "missing required field tolerated when loose",
			data:      map[string]any{"age": float64(36)},
			loose:     true,
			wantValid: true,
		},
		{
			name:      "explicit nil counts as missing",
			data:      map[string]any{"name": nil},
			wantValid: false,
			wantField: "name",
			wantCode:  "REQUIRED_FIELD_MISSING",
		},
		{
			name:      "type mismatch",
			data:      map[string]any{"name": "Ada", "age": "not a number"},
			wantValid: false,
			wantField: "age",
			wantCode:  "TYPE_MISMATCH",
		},
		{
			name:      "fractional value for integer field",
			data:      map[string]any{"name": "Ada", "age": 36.5},
			wantValid: false,
			wantField: "age",
			wantCode:  "TYPE_MISMATCH",
		},
		{
			name:      "enum member outside option set",
			data:      map[string]any{"name": "Ada", "status": "deleted"},
			wantValid: false,
			wantField: "status",
			wantCode:  "ENUM_MEMBER_INVALID",
		},
		{
			name:      "format rule rejects value",
			data:      map[string]any{"name": "Ada", "email": "not-an-email"},
			wantValid: false,
			wantField: "email",
			wantCode:  "FORMAT_INVALID",
		},
		{
			name:      "stale keys are ignored",
			data:      map[string]any{"name": "Ada", "removedColumn": "whatever"},
			wantValid: true,
		},
	}

	v := NewValidator(validatorSchema())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			valid, issues := v.Validate(tc.data, tc.loose)
			assert.Equal(t, tc.wantValid, valid)
			if tc.wantValid {
				assert.Empty(t, issues)
				return
			}
			require.NotEmpty(t, issues)
			assert.Equal(t, tc.wantField, issues[0].Field)
			assert.Equal(t, tc.wantCode, issues[0].Code)
		})
	}
}

func TestValidateReportsEveryInvalidField(t *testing.T) {
	v := NewValidator(validatorSchema())

	valid, issues := v.Validate(map[string]any{
		"age":    "nope",
		"status": "deleted",
	}, false)

	require.False(t, valid)
	fields := make(map[string]bool)
	for _, issue := range issues {
		fields[issue.Field] = true
	}
	assert.True(t, fields["name"], "missing required name")
	assert.True(t, fields["age"], "bad age type")
	assert.True(t, fields["status"], "bad enum member")
}
