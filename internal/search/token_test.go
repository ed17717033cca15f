package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok := ContinuationToken{
		Terms:          []string{"sample", "chr1"},
		TypeFilter:     "bam",
		Page:           3,
		BackendCursors: map[string]string{"s3": "1:abc", "omics-sequence": "0:xyz"},
		ScoreFloor:     0.72,
		BufferSize:     200,
		Overflow:       true,
		EmittedTail:    []string{"s3://b/a.bam"},
		CarryStateID:   "f3b1",
	}

	encoded, err := EncodeToken(tok)
	require.NoError(t, err)
	assert.True(t, len(encoded) > len(standardTokenPrefix))

	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, tok, decoded)
}

func TestTokenRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not-a-token",
		standardTokenPrefix + "!!not-base64!!",
		standardTokenPrefix + "bm90IGpzb24",  // "not json"
		cursorTokenPrefix + "eyJwYWdlIjoxfQ", // cursor payload under wrong checks
	}
	for _, c := range cases {
		_, err := DecodeToken(c)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", c)
	}
}

func TestTokenRejectsZeroPage(t *testing.T) {
	encoded, err := EncodeToken(ContinuationToken{Page: 0})
	require.NoError(t, err)

	_, err = DecodeToken(encoded)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCursorTokenRoundTrip(t *testing.T) {
	encoded, err := EncodeCursorToken("state-123")
	require.NoError(t, err)
	assert.True(t, IsCursorToken(encoded))
	assert.False(t, IsCursorToken("gst1.something"))

	id, err := DecodeCursorToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, "state-123", id)
}

func TestCursorTokenRejectsEmptyState(t *testing.T) {
	encoded, err := EncodeCursorToken("")
	require.NoError(t, err)

	_, err = DecodeCursorToken(encoded)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenPrefixesDisjoint(t *testing.T) {
	std, err := EncodeToken(ContinuationToken{Page: 1})
	require.NoError(t, err)
	_, err = DecodeCursorToken(std)
	assert.ErrorIs(t, err, ErrInvalidToken)

	cur, err := EncodeCursorToken("abc")
	require.NoError(t, err)
	_, err = DecodeToken(cur)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
