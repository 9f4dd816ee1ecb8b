package fat32_test

import (
	"testing"

	"github.com/imgfat/imgfat/blockdev"
	"github.com/imgfat/imgfat/fat32"
	"github.com/imgfat/imgfat/internal/testimage"
	"github.com/stretchr/testify/require"
)

// mountTestVolume builds a synthetic image via internal/testimage and
// mounts it, matching §8 scenario 1's literal test image shape (one FAT32
// partition at LBA 2048, small enough to build and tear down per test).
func mountTestVolume(t *testing.T) *fat32.Volume {
	t.Helper()
	cfg := testimage.DefaultConfig()
	img := testimage.Build(cfg)
	backend := blockdev.NewMemory(img)
	vol, err := fat32.Mount(backend, cfg.PartitionStartLBA)
	require.NoError(t, err)
	require.Equal(t, "IMGFATTEST", vol.SB.VolumeLabel)
	return vol
}

func TestMountReadsSuperblockAndLabel(t *testing.T) {
	vol := mountTestVolume(t)
	require.Equal(t, uint32(2), vol.SB.RootCluster)
	require.Equal(t, uint8(2), vol.SB.NumFATs)
	require.NotNil(t, vol.Root)
	require.True(t, vol.Root.IsDir)
}

func TestMountRejectsBadFSInfoSignature(t *testing.T) {
	cfg := testimage.DefaultConfig()
	img := testimage.Build(cfg)
	// Corrupt the FSI_LeadSig.
	off := int64(cfg.PartitionStartLBA+1) * 512
	img[off] = 0x00
	backend := blockdev.NewMemory(img)
	_, err := fat32.Mount(backend, cfg.PartitionStartLBA)
	require.Error(t, err)
}
