// Package fat32 is the FAT32 volume engine: superblock parsing, FAT
// walking/allocation, directory iteration (including VFAT long names), name
// encoding, file read/write, and creation/deletion. It is the CORE of this
// module; everything else is a thin collaborator.
//
// Grounded on soypat/fat's fat.go/sectors.go/tables.go for the Go shape of
// a packed-struct FAT engine, and on original_source/filesystem/fat32.c for
// the exact algorithms and byte layouts (soypat/fat is a read/write FatFs
// port but targets a different cluster-allocation and name-collision
// scheme than this spec calls for).
package fat32

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/imgfat/imgfat/blockdev"
	"github.com/imgfat/imgfat/fserrors"
)

const (
	SectorSize = 512

	fsiLeadSig   = 0x41615252
	fsiStrucSig  = 0x61417272
	fsiTrailSig  = 0xAA550000
	chainEOC     = 0x0FFFFFF8 // canonical terminator written by this engine (decision E.1)
	chainMask    = 0x0FFFFFFF
	firstDataClu = 2
	// fat32_alloc_clus quirk (§4.2, §9): the free-cluster scan starts at 3,
	// not 2, so cluster 2 (conventionally the root directory's cluster) is
	// never handed out by allocation. Preserved, not "fixed".
	allocScanStart = 3
)

// bpbRaw mirrors the on-disk BIOS Parameter Block, offsets 0-89 of the
// partition's first sector. Reserved byte-array fields exist purely to
// keep restruct's offsets aligned with the real on-disk layout.
type bpbRaw struct {
	JmpBoot     [3]byte
	OEMName     [8]byte
	BytsPerSec  uint16
	SecPerClus  uint8
	RsvdSecCnt  uint16
	NumFATs     uint8
	RootEntCnt  uint16
	TotSec16    uint16
	Media       uint8
	FATSz16     uint16
	SecPerTrk   uint16
	NumHeads    uint16
	HiddSec     uint32
	TotSec32    uint32
	FATSz32     uint32
	ExtFlags    uint16
	FSVer       uint16
	RootClus    uint32
	FSInfoSec   uint16
	BkBootSec   uint16
	Reserved0   [12]byte
	DrvNum      uint8
	Reserved1   uint8
	BootSig     uint8
	VolID       uint32
	VolLab      [11]byte
	FilSysType  [8]byte
}

// fsiRaw mirrors the FSInfo sector. Free_Count/Nxt_Free are decoded but
// never trusted or rewritten (Non-goals, decision E.2): this engine always
// rescans the FAT for free clusters.
type fsiRaw struct {
	LeadSig    uint32
	Reserved1  [480]byte
	StrucSig   uint32
	Free_Count uint32
	Nxt_Free   uint32
	Reserved2  [12]byte
	TrailSig   uint32
}

// Superblock holds the parsed, validated BPB/FSInfo fields plus the
// derived offsets every other subsystem needs.
type Superblock struct {
	PartitionStart  uint32 // LBA of the partition's first sector
	BytesPerSector  uint16
	SectorsPerClus  uint8
	ReservedSectors uint16
	NumFATs         uint8
	FATSizeSectors  uint32
	RootCluster     uint32
	VolumeLabel     string

	FATStart  uint32 // LBA: PartitionStart + ReservedSectors
	DataStart uint32 // LBA: FATStart + NumFATs*FATSizeSectors
}

func (s *Superblock) ClusterBytes() int {
	return int(s.SectorsPerClus) * SectorSize
}

// ClusterLBA returns the first LBA sector of cluster n (n >= 2).
func (s *Superblock) ClusterLBA(n uint32) uint32 {
	return s.DataStart + (n-firstDataClu)*uint32(s.SectorsPerClus)
}

// Volume is an open FAT32 partition: its superblock plus the backend it
// reads/writes sectors through, and the root fnode.
type Volume struct {
	SB      Superblock
	Backend blockdev.Backend
	Root    *Fnode
}

// Mount reads the BPB and FSInfo sectors starting at partitionStart (an LBA
// sector number) and returns a ready Volume, per §4.1.
func Mount(backend blockdev.Backend, partitionStart uint32) (*Volume, error) {
	bpbSector := make([]byte, SectorSize)
	if _, err := backend.ReadAt(bpbSector, int64(partitionStart)*SectorSize); err != nil {
		return nil, fserrors.HostIoError.Wrap(err)
	}
	var bpb bpbRaw
	if err := restruct.Unpack(bpbSector[:90], binary.LittleEndian, &bpb); err != nil {
		return nil, fserrors.NotFat32.Wrap(err)
	}

	fsiSector := make([]byte, SectorSize)
	if _, err := backend.ReadAt(fsiSector, int64(partitionStart+1)*SectorSize); err != nil {
		return nil, fserrors.HostIoError.Wrap(err)
	}
	var fsi fsiRaw
	if err := restruct.Unpack(fsiSector, binary.LittleEndian, &fsi); err != nil {
		return nil, fserrors.NotFat32.Wrap(err)
	}
	if fsi.LeadSig != fsiLeadSig {
		return nil, fserrors.NotFat32.WithMessage(
			fmt.Sprintf("FSI_LeadSig = %#x, want %#x", fsi.LeadSig, fsiLeadSig))
	}

	sb := Superblock{
		PartitionStart:  partitionStart,
		BytesPerSector:  bpb.BytsPerSec,
		SectorsPerClus:  bpb.SecPerClus,
		ReservedSectors: bpb.RsvdSecCnt,
		NumFATs:         bpb.NumFATs,
		FATSizeSectors:  bpb.FATSz32,
		RootCluster:     bpb.RootClus,
	}
	sb.FATStart = sb.PartitionStart + uint32(sb.ReservedSectors)
	sb.DataStart = sb.FATStart + uint32(sb.NumFATs)*sb.FATSizeSectors

	v := &Volume{SB: sb, Backend: backend}

	// §4.1: read the first directory entry of the data region; if its
	// attribute is the volume-ID bit, its 11-byte DIR_Name (Name and Ext)
	// with the trailing pad spaces trimmed becomes the partition label.
	firstEntry := make([]byte, 32)
	if _, err := backend.ReadAt(firstEntry, int64(sb.DataStart)*SectorSize); err == nil {
		var d SFNEntry
		if decodeErr := d.decode(firstEntry); decodeErr == nil && d.Attr == AttrVolumeID {
			sb.VolumeLabel = trimSFNComponent(append(d.Name[:], d.Ext[:]...))
		}
	}
	v.SB = sb

	v.Root = &Fnode{
		Name:      "/",
		FirstClus: sb.RootCluster,
		DirOffset: 0,
		Size:      0,
		Offset:    0,
		IsDir:     true,
		vol:       v,
	}
	return v, nil
}

func trimSFNComponent(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == ' ' {
		i--
	}
	return string(b[:i])
}
