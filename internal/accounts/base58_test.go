package accounts

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBase58_AllZeroBuffer(t *testing.T) {
	got := encodeBase58(make([]byte, 32))
	assert.Equal(t, strings.Repeat("1", 32), got)
}

func TestEncodeBase58_Empty(t *testing.T) {
	assert.Equal(t, "", encodeBase58(nil))
}

func TestEncodeBase58_KnownVectors(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{0}, "1"},
		{[]byte{57}, "z"},
		{[]byte{58}, "21"},
		{[]byte{0, 0, 1}, "112"},
		{[]byte("hello"), "Cn8eVZg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, encodeBase58(tt.in), "input %v", tt.in)
	}
}

func TestEncodeBase58_MatchesReferenceImplementation(t *testing.T) {
	for i := 0; i < 50; i++ {
		buf := make([]byte, 32)
		_, err := rand.Read(buf)
		require.NoError(t, err)

		assert.Equal(t, base58.Encode(buf), encodeBase58(buf))
	}

	// Leading zeros are the tricky case.
	buf := make([]byte, 32)
	_, err := rand.Read(buf[5:])
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(buf), encodeBase58(buf))
}
