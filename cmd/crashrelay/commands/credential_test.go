package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequired(t *testing.T) {
	validate := validateRequired("Value")

	assert.NoError(t, validate("secret"))
	assert.EqualError(t, validate(""), "Value is required")
	assert.EqualError(t, validate("   "), "Value is required")
}
