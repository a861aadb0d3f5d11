package utils

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomKey(t *testing.T) {
	key := RandomKey("ra_", 24)
	assert.True(t, strings.HasPrefix(key, "ra_"))
	assert.Len(t, key, len("ra_")+48)

	// 前缀之后是合法hex
	_, err := hex.DecodeString(strings.TrimPrefix(key, "ra_"))
	require.NoError(t, err)

	assert.NotEqual(t, key, RandomKey("ra_", 24))
}

func TestRandomKeyEmptyPrefix(t *testing.T) {
	key := RandomKey("", 8)
	assert.Len(t, key, 16)
}

func TestCalculateMD5Deterministic(t *testing.T) {
	a := CalculateMD5([]byte("resume text"))
	b := CalculateMD5([]byte("resume text"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, CalculateMD5([]byte("other text")))
}
