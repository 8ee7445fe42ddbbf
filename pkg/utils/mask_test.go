package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+62******678", MaskPhone("+62812345678"))
	assert.Equal(t, "****", MaskPhone("1234"))
	assert.Equal(t, "", MaskPhone(""))
}
