package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, Plate("ABC 1234"), NormalizePlate("  abc   1234 "))
	assert.Equal(t, Plate("ABC-1234"), NormalizePlate("abc-1234"))
	assert.Equal(t, Plate(""), NormalizePlate("   "))
}

func TestValidatePlate(t *testing.T) {
	valid := []string{"ABC-1234", "ABC 1234", "ABC1234", "AB-123-CD", "AB12CD34"}
	for _, s := range valid {
		assert.NoError(t, ValidatePlate(NormalizePlate(s)), s)
	}

	invalid := []string{"", "AB1", "WAYTOOLONGPLATE", "!!!!!", "----------"}
	for _, s := range invalid {
		err := ValidatePlate(NormalizePlate(s))
		assert.ErrorIs(t, err, ErrInvalidInput, s)
	}
}
