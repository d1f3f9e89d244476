package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type returnInput struct {
	Year   int    `json:"year" validate:"gte=2000,lte=2100"`
	Status string `json:"status" validate:"omitempty,oneof=draft in_review filed"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(returnInput{Year: 2024, Status: "draft"}))

	err := ValidateStruct(returnInput{Year: 1999})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "year", verr.Field)
	assert.Contains(t, verr.Message, "2000")

	err = ValidateStruct(returnInput{Year: 2024, Status: "done"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "status", verr.Field)
}

func TestValidatorRules(t *testing.T) {
	var file *struct{}
	v := NewValidator().
		Field("file", file, Required).
		Field("size", int64(11<<20), MaxBytes(10<<20))

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)
	assert.ErrorIs(t, v.Error(), ErrValidation)

	ok := NewValidator().Field("document_type", "w-2", Required)
	assert.NoError(t, ok.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "Please select a file", NewValidationError("Please select a file").Error())
	assert.Equal(t, "file: is required", ValidationError{Field: "file", Message: "is required"}.Error())
}
