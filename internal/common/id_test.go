package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunID(t *testing.T) {
	first := NewRunID()
	second := NewRunID()

	assert.True(t, strings.HasPrefix(first, "run_"))
	assert.Len(t, first, len("run_")+36, "run_ prefix plus a UUID")
	assert.NotEqual(t, first, second)
}
