package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testState mimics the shape of a cache snapshot.
type testState struct {
	Version int
	Entries map[string][]string
}

func TestLZ4Codec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewLZ4Codec(NewGobCodec())

	original := testState{
		Version: 3,
		Entries: map[string][]string{
			"/p/src/index.js": {"./foo", "react"},
			"/p/src/foo.js":   {strings.Repeat("./shared/component", 64)},
		},
	}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))

	var decoded testState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestLZ4Codec_Compresses(t *testing.T) {
	t.Parallel()

	state := testState{Entries: map[string][]string{"k": {strings.Repeat("abcdefgh", 4096)}}}

	var plain, compressed bytes.Buffer

	require.NoError(t, NewGobCodec().Encode(&plain, state))
	require.NoError(t, NewLZ4Codec(NewGobCodec()).Encode(&compressed, state))

	assert.Less(t, compressed.Len(), plain.Len())
}

func TestLZ4Codec_CorruptInput(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewLZ4Codec(NewGobCodec()).Decode(strings.NewReader("definitely not lz4"), &decoded)
	assert.Error(t, err)
}

func TestCodec_Extensions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".gob", NewGobCodec().Extension())
	assert.Equal(t, ".gob.lz4", NewLZ4Codec(NewGobCodec()).Extension())
}
