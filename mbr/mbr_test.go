package mbr_test

import (
	"encoding/binary"
	"testing"

	"github.com/imgfat/imgfat/mbr"
	"github.com/stretchr/testify/require"
)

func buildSector0(entries []mbr.PartitionTableEntry) []byte {
	sector := make([]byte, 512)
	binary.LittleEndian.PutUint16(sector[510:512], mbr.BootSignature)
	bs, _ := mbr.ToBootSector(sector)
	for i, e := range entries {
		bs.SetPartitionTable(i, e)
	}
	return sector
}

func TestScanFindsFAT32Partition(t *testing.T) {
	pte := mbr.MakePTE(mbr.DriveAttrsBootable, mbr.PartitionTypeFAT32LBA, 2048, 65536, mbr.NewCHS(0, 0, 0), mbr.NewCHS(0, 0, 0))
	sector0 := buildSector0([]mbr.PartitionTableEntry{pte})

	parts, err := mbr.Scan(sector0, nil)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, uint32(2048), parts[0].StartLBA)
	require.True(t, parts[0].Bootable)
	require.True(t, parts[0].Type.IsFAT32())
}

func TestIsBootableReadsReceiverNotConstant(t *testing.T) {
	require.True(t, mbr.DriveAttrsBootable.IsBootable())
	require.False(t, mbr.DriveAttributes(0x00).IsBootable())
}

func TestResolvePathSplitsPartitionAndRest(t *testing.T) {
	pte := mbr.MakePTE(0, mbr.PartitionTypeFAT32LBA, 2048, 65536, mbr.NewCHS(0, 0, 0), mbr.NewCHS(0, 0, 0))
	sector0 := buildSector0([]mbr.PartitionTableEntry{pte})
	parts, err := mbr.Scan(sector0, nil)
	require.NoError(t, err)

	p, rest, err := mbr.ResolvePath(parts, "/p0/docs/readme.txt")
	require.NoError(t, err)
	require.Equal(t, uint32(2048), p.StartLBA)
	require.Equal(t, []string{"docs", "readme.txt"}, rest)
}

func TestResolvePathUnknownPartition(t *testing.T) {
	_, _, err := mbr.ResolvePath(nil, "/p3/x")
	require.Error(t, err)
}
