package abortcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptionKnown(t *testing.T) {
	assert.Equal(t, "subindex does not exist", SubUnknown.Description())
	assert.Equal(t, "no error", OK.Description())
}

func TestDescriptionUnknownFallsBackToGeneral(t *testing.T) {
	unknown := Code(0x12345678)
	assert.Equal(t, General.Description(), unknown.Description())
}

func TestErrorFormatsHex(t *testing.T) {
	assert.Contains(t, ReadOnly.Error(), "0x06010002")
}

func TestIsOK(t *testing.T) {
	assert.True(t, OK.IsOK())
	assert.False(t, General.IsOK())
}
