package backup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	cm := NewCompressionManager()
	data := bytes.Repeat([]byte("course enrollment data "), 200)

	for _, algorithm := range []CompressionType{CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			compressed, stats, err := cm.Compress(data, algorithm, 0)
			require.NoError(t, err)
			require.NotNil(t, stats)

			assert.Equal(t, int64(len(data)), stats.OriginalSize)
			assert.Equal(t, int64(len(compressed)), stats.CompressedSize)
			assert.Less(t, stats.CompressedSize, stats.OriginalSize)

			decompressed, err := cm.Decompress(compressed, algorithm)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestCompressionNoneIsPassthrough(t *testing.T) {
	cm := NewCompressionManager()
	data := []byte("raw payload")

	compressed, stats, err := cm.Compress(data, CompressionTypeNone, 0)
	require.NoError(t, err)
	assert.Equal(t, data, compressed)
	assert.Equal(t, 1.0, stats.CompressionRatio)

	decompressed, err := cm.Decompress(compressed, CompressionTypeNone)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestCompressionUnknownAlgorithm(t *testing.T) {
	cm := NewCompressionManager()

	_, _, err := cm.Compress([]byte("x"), "BROTLI", 0)
	require.Error(t, err)

	backupErr, ok := err.(*BackupError)
	require.True(t, ok)
	assert.Equal(t, BackupErrorTypeCompression, backupErr.Type)
}

func TestCompressionInvalidLevelFallsBackToDefault(t *testing.T) {
	cm := NewCompressionManager()
	data := bytes.Repeat([]byte("abc"), 100)

	compressed, stats, err := cm.Compress(data, CompressionTypeGzip, 99)
	require.NoError(t, err)
	assert.NotEmpty(t, compressed)
	assert.NotEqual(t, 99, stats.Level)
}

func TestDecompressCorruptData(t *testing.T) {
	cm := NewCompressionManager()

	_, err := cm.Decompress([]byte("not a gzip stream"), CompressionTypeGzip)
	assert.Error(t, err)
}

func TestCalculateCompressionRatio(t *testing.T) {
	assert.Equal(t, 0.5, CalculateCompressionRatio(100, 50))
	assert.Equal(t, 1.0, CalculateCompressionRatio(0, 50))
}
