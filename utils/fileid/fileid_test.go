package fileid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesValidPrefixedIDs(t *testing.T) {
	id := New()
	assert.True(t, strings.HasPrefix(id, "file_"))
	assert.Len(t, id, len("file_")+26)
	assert.Equal(t, id, strings.ToLower(id))
	assert.True(t, IsValid(id))
}

func TestNewIsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id := New()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestParseRoundTrip(t *testing.T) {
	id := New()
	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "file_"+strings.ToLower(parsed.String()), id)
}

func TestIsValidRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"file_",
		"file_not-a-ulid",
		"01hgw2bbg0000000000000000q",
		"media_01hgw2bbg0000000000000000q",
	}
	for _, value := range cases {
		assert.False(t, IsValid(value), "input %q", value)
	}
}
