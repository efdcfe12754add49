package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name string `json:"name" validate:"required,max=10"`
	Role string `json:"role" validate:"required,oneof=administrator read-only"`
	Note string `validate:"min=2"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(&testRecord{Name: "Ana", Role: "read-only", Note: "ok"})
		assert.NoError(t, err)
	})

	t.Run("missing required field uses json name", func(t *testing.T) {
		err := ValidateStruct(&testRecord{Role: "administrator", Note: "ok"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "name is required", fields["name"])
	})

	t.Run("oneof violation", func(t *testing.T) {
		err := ValidateStruct(&testRecord{Name: "Ana", Role: "consulta", Note: "ok"})
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Equal(t, "role must be one of: administrator read-only", fields["role"])
		assert.Contains(t, err.Error(), "Validation failed")
	})

	t.Run("max and min violations", func(t *testing.T) {
		err := ValidateStruct(&testRecord{Name: "a very long name", Role: "read-only", Note: "x"})
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Equal(t, "name must be at most 10", fields["name"])
		assert.Equal(t, "Note must be at least 2", fields["Note"])
	})

	t.Run("non struct input", func(t *testing.T) {
		err := ValidateStruct("not a struct")
		assert.Error(t, err)
		assert.False(t, IsValidationError(err))
	})
}

func TestGetValidationFields_NonValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	assert.False(t, IsValidationError(assert.AnError))
}

func TestValidateRequired(t *testing.T) {
	assert.NoError(t, ValidateRequired("delete", "action"))
	assert.EqualError(t, ValidateRequired("  ", "action"), "action is required")
}
