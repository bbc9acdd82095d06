package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSBlobStoreRoundTrip(t *testing.T) {
	blobs, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, blobs.Write(ctx, "reports/doc.txt", []byte("hello")))
	data, err := blobs.Read(ctx, "reports/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, blobs.Remove(ctx, "reports/doc.txt"))
	_, err = blobs.Read(ctx, "reports/doc.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing an already-absent blob is not an error; the repository relies
	// on this when reconciling metadata without content.
	assert.NoError(t, blobs.Remove(ctx, "reports/doc.txt"))
}

func TestFSBlobStoreRejectsEscapingLocators(t *testing.T) {
	blobs, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, locator := range []string{"", "../etc/passwd", "/abs/path", "reports/..\\..\\x"} {
		assert.ErrorIs(t, blobs.Write(ctx, locator, []byte("x")), ErrValidation, locator)
	}
}
