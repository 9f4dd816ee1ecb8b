package fat32_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// §8 scenario 1: a written file reads back byte-for-byte.
func TestWriteThenReadRoundTrip(t *testing.T) {
	vol := mountTestVolume(t)
	f, err := vol.Root.CreateFile("hello.txt")
	require.NoError(t, err)

	payload := []byte("hello, fat32")
	n, err := f.WriteFile(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, uint32(len(payload)), f.Size)

	f.Offset = 0
	buf := make([]byte, len(payload))
	n, err = f.ReadFile(buf)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, buf)
}

// P8: writing N bytes at offset O raises size to at least O+N, and never
// shrinks it if the previous size was already larger.
func TestWriteGrowsSizeMonotonically(t *testing.T) {
	vol := mountTestVolume(t)
	f, err := vol.Root.CreateFile("grow.bin")
	require.NoError(t, err)

	_, err = f.WriteFile(make([]byte, 100))
	require.NoError(t, err)
	require.Equal(t, uint32(100), f.Size)

	f.Offset = 10
	_, err = f.WriteFile(make([]byte, 5))
	require.NoError(t, err)
	require.Equal(t, uint32(100), f.Size, "a short write inside the existing extent must not shrink size")
}
