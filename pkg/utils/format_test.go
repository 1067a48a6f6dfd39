package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVolume(t *testing.T) {
	assert.Equal(t, "1.25 M", FormatVolume(1250000))
	assert.Equal(t, "980 k", FormatVolume(980000))
	assert.Equal(t, "500", FormatVolume(500))
}
