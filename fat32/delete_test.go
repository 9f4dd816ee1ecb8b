package fat32_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// P7: after deletion, the former first cluster's FAT slot is 0 in both
// copies, and the deleted name no longer appears in the root listing.
func TestDeleteFreesChainAndTombstonesEntries(t *testing.T) {
	vol := mountTestVolume(t)
	f, err := vol.Root.CreateFile("A Very Long File Name.text")
	require.NoError(t, err)
	firstClus := f.FirstClus

	require.NoError(t, f.Delete())

	sb := vol.SB
	for fatN := uint32(0); fatN < uint32(sb.NumFATs); fatN++ {
		sector := sb.FATStart + fatN*sb.FATSizeSectors
		buf := make([]byte, 512)
		_, err := vol.Backend.ReadAt(buf, int64(sector)*512)
		require.NoError(t, err)
		entry := binary.LittleEndian.Uint32(buf[firstClus*4:firstClus*4+4]) & 0x0FFFFFFF
		require.Zero(t, entry, "FAT copy %d", fatN)
	}

	entries, err := vol.ReadDir(vol.Root.FirstClus)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, "A Very Long File Name.text", e.Name)
	}
}
