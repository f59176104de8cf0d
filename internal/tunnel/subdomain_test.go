package tunnel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSubdomain(t *testing.T) {
	sixtyThree := strings.Repeat("a", 63)
	tooLong := strings.Repeat("a", 64)

	valid := []string{"abc", "my-app", "a1b2c3", sixtyThree}
	for _, v := range valid {
		assert.True(t, ValidSubdomain(v), v)
	}

	invalid := []string{"", "ab", "My-App", "has_underscore", "has space", "-", tooLong}
	for _, v := range invalid {
		assert.False(t, ValidSubdomain(v), v)
	}
}

func TestRandomSubdomainIsValidAndVaries(t *testing.T) {
	a, err := RandomSubdomain()
	assert.NoError(t, err)
	assert.Len(t, a, randomLabelLength)
	assert.True(t, ValidSubdomain(a))

	b, err := RandomSubdomain()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b, "two random labels colliding is astronomically unlikely")
}
