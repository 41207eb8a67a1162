package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_CompressDecompress(t *testing.T) {
	c, err := NewCodec()
	require.NoError(t, err)

	data := bytes.Repeat([]byte("%PDF-1.3 stream of text "), 200)
	compressed := c.Compress(data)
	assert.Less(t, len(compressed), len(data))

	out, err := c.Decompress(compressed, CompressionZstd)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestCodec_DecompressNone(t *testing.T) {
	c, err := NewCodec()
	require.NoError(t, err)

	out, err := c.Decompress([]byte("raw"), CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), out)

	_, err = c.Decompress([]byte("raw"), CompressionAlgo("lz4"))
	assert.Error(t, err)
}
