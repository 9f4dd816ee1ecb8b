package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/imgfat/imgfat/blockdev"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendReadWriteAt(t *testing.T) {
	image := make([]byte, 4096)
	b := blockdev.NewMemory(image)

	payload := []byte("hello")
	n, err := b.WriteAt(payload, 512)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = b.ReadAt(buf, 512)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, buf)
}

func TestSelectAcceptsImgExtensionOnly(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "disk.img")
	require.NoError(t, os.WriteFile(imgPath, make([]byte, 512), 0o644))

	b, err := blockdev.Select(imgPath)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = blockdev.Select(filepath.Join(dir, "disk.bin"))
	require.Error(t, err)
}
