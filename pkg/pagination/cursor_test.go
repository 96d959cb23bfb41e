package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{Sequence: 42, ID: "abc-123"}
	decoded, err := Decode(c.Encode())
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, uint64(42), decoded.Sequence)
	assert.Equal(t, "abc-123", decoded.ID)
}

func TestDecodeEmptyIsFirstPage(t *testing.T) {
	decoded, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.Error(t, err)

	// Valid base64, wrong payload.
	_, err = Decode("aGVsbG8=")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-5))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
}
