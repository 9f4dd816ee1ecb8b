package fat32_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// P3: short all-lowercase names round-trip byte-for-byte.
func TestCreateFileShortNameRoundTrip(t *testing.T) {
	vol := mountTestVolume(t)
	f, err := vol.Root.CreateFile("readme.txt")
	require.NoError(t, err)
	require.False(t, f.IsDir)

	entries, err := vol.ReadDir(vol.Root.FirstClus)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "readme.txt")
}

// P4: a long, mixed-case name gets an LFN entry and reopens to the same
// first cluster it was allocated with.
func TestCreateFileLongNameRoundTrip(t *testing.T) {
	vol := mountTestVolume(t)
	f, err := vol.Root.CreateFile("A Very Long File Name.text")
	require.NoError(t, err)

	e, ok, err := vol.Lookup(vol.Root.FirstClus, "A Very Long File Name.text")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.FirstClus, e.FirstClus)
}

// P6: two files sharing a 6-byte prefix get distinct ~N short aliases.
func TestCreateFileSFNCollisionCounter(t *testing.T) {
	vol := mountTestVolume(t)
	_, err := vol.Root.CreateFile("longname1.txt")
	require.NoError(t, err)
	_, err = vol.Root.CreateFile("longname2.txt")
	require.NoError(t, err)

	entries, err := vol.ReadDir(vol.Root.FirstClus)
	require.NoError(t, err)
	// The root also holds the test image's volume-label entry.
	require.Len(t, entries, 3)

	rootBase := int64(vol.SB.ClusterLBA(vol.Root.FirstClus)) * 512
	var aliases []string
	for _, e := range entries {
		if e.Name != "longname1.txt" && e.Name != "longname2.txt" {
			continue
		}
		raw := make([]byte, 11)
		_, err := vol.Backend.ReadAt(raw, rootBase+int64(e.DirOffset))
		require.NoError(t, err)
		aliases = append(aliases, string(raw))
	}
	require.Equal(t, []string{"LONGNA~1TXT", "LONGNA~2TXT"}, aliases)
}

// P9: mkdir produces a directory whose first two live entries are "."
// (own cluster) and ".." (root's cluster, or 0 at true root).
func TestMkdirDotEntries(t *testing.T) {
	vol := mountTestVolume(t)
	dir, err := vol.Root.Mkdir("docs")
	require.NoError(t, err)
	require.True(t, dir.IsDir)

	entries, err := vol.ReadDir(dir.FirstClus)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ".", entries[0].Name)
	require.Equal(t, dir.FirstClus, entries[0].FirstClus)
	require.Equal(t, "..", entries[1].Name)
	require.Equal(t, uint32(0), entries[1].FirstClus)
}

// Scenario 5 (§8): a file spanning three clusters has a FAT chain of
// length three, correctly linked, terminated at the third.
func TestWriteMultiClusterChain(t *testing.T) {
	vol := mountTestVolume(t)
	f, err := vol.Root.CreateFile("big.bin")
	require.NoError(t, err)

	clusterBytes := vol.SB.ClusterBytes()
	data := make([]byte, clusterBytes*3)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := f.WriteFile(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, uint32(len(data)), f.Size)

	e, ok, err := vol.Lookup(vol.Root.FirstClus, "big.bin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(len(data)), e.Size)

	fat := make([]byte, 512)
	_, err = vol.Backend.ReadAt(fat, int64(vol.SB.FATStart)*512)
	require.NoError(t, err)
	clus := f.FirstClus
	for hop := 0; hop < 2; hop++ {
		next := binary.LittleEndian.Uint32(fat[clus*4:clus*4+4]) & 0x0FFFFFFF
		require.Less(t, next, uint32(0x0FFFFFF8), "hop %d ended the chain early", hop)
		clus = next
	}
	require.GreaterOrEqual(t, binary.LittleEndian.Uint32(fat[clus*4:clus*4+4])&0x0FFFFFFF, uint32(0x0FFFFFF8))
}
