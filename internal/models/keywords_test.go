package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"when", "build", "fails"}, Keywords("When the build... FAILS!"))
	assert.Equal(t, []string{"monday", "morning", "meetings"}, Keywords("Monday morning meetings"))
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, Keywords("one two three four five six"))
	assert.Empty(t, Keywords("a b c is"))
}
