package fat32

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"
)

// Directory entry attribute bits (fat32.h FAT32_ATTR_*).
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = 0x0F // AttrReadOnly|AttrHidden|AttrSystem|AttrVolumeID

	// NTRes bits recording case-preservation hints (§3, §4.4).
	ntresBaseLower = 0x08
	ntresExtLower  = 0x10

	dirEntrySize = 32

	entryFree    = 0x00 // free-end marker: this slot and all following are unused
	entryFreeAlt = 0x05 // KANJI-lead-byte escape for a real 0xE5 first byte; skipped by directory iteration here
	entryDeleted = 0xE5

	lfnLastFlag = 0x40 // ordinal high bit marking the first LFN slot in disk order
	lfnOrdMask  = 0x3F
)

// sfnRaw is the on-disk 32-byte short directory entry (fat32.h FAT32_dir).
type sfnRaw struct {
	Name         [8]byte
	Ext          [3]byte
	Attr         uint8
	NTRes        uint8
	CrtTimeTenth uint8
	CrtTime      uint16
	CrtDate      uint16
	LastAccDate  uint16
	FstClusHI    uint16
	WrtTime      uint16
	WrtDate      uint16
	FstClusLO    uint16
	FileSize     uint32
}

// SFNEntry is the decoded form of a short directory entry.
type SFNEntry struct {
	Name         [8]byte
	Ext          [3]byte
	Attr         uint8
	NTRes        uint8
	CrtTimeTenth uint8
	CrtTime      uint16
	CrtDate      uint16
	LastAccDate  uint16
	FstClusHI    uint16
	WrtTime      uint16
	WrtDate      uint16
	FstClusLO    uint16
	FileSize     uint32
}

func (e *SFNEntry) decode(raw []byte) error {
	var r sfnRaw
	if err := restruct.Unpack(raw[:dirEntrySize], binary.LittleEndian, &r); err != nil {
		return err
	}
	*e = SFNEntry(r)
	return nil
}

func (e *SFNEntry) encode(dst []byte) {
	copy(dst[0:8], e.Name[:])
	copy(dst[8:11], e.Ext[:])
	dst[11] = e.Attr
	dst[12] = e.NTRes
	dst[13] = e.CrtTimeTenth
	binary.LittleEndian.PutUint16(dst[14:16], e.CrtTime)
	binary.LittleEndian.PutUint16(dst[16:18], e.CrtDate)
	binary.LittleEndian.PutUint16(dst[18:20], e.LastAccDate)
	binary.LittleEndian.PutUint16(dst[20:22], e.FstClusHI)
	binary.LittleEndian.PutUint16(dst[22:24], e.WrtTime)
	binary.LittleEndian.PutUint16(dst[24:26], e.WrtDate)
	binary.LittleEndian.PutUint16(dst[26:28], e.FstClusLO)
	binary.LittleEndian.PutUint32(dst[28:32], e.FileSize)
}

// FirstCluster reassembles the entry's starting cluster from the split
// high/low words.
func (e *SFNEntry) FirstCluster() uint32 {
	return uint32(e.FstClusHI)<<16 | uint32(e.FstClusLO)
}

func (e *SFNEntry) SetFirstCluster(c uint32) {
	e.FstClusHI = uint16(c >> 16)
	e.FstClusLO = uint16(c)
}

// IsLFN reports whether this slot is actually a long-name slot (attribute
// byte 0x0F), not a genuine SFN.
func (e *SFNEntry) IsLFN() bool { return e.Attr == AttrLongName }

// lfnRaw is the on-disk 32-byte long-name entry (fat32.h FAT32_long_dir).
type lfnRaw struct {
	Ord       uint8
	Name1     [5]uint16
	Attr      uint8
	Type      uint8
	Chksum    uint8
	Name2     [6]uint16
	FstClusLO uint16
	Name3     [2]uint16
}

// LFNEntry is the decoded form of a long-name directory entry.
type LFNEntry struct {
	Ord    uint8
	Name1  [5]uint16
	Attr   uint8
	Type   uint8
	Chksum uint8
	Name2  [6]uint16
	Name3  [2]uint16
}

func (e *LFNEntry) decode(raw []byte) error {
	var r lfnRaw
	if err := restruct.Unpack(raw[:dirEntrySize], binary.LittleEndian, &r); err != nil {
		return err
	}
	e.Ord = r.Ord
	e.Name1 = r.Name1
	e.Attr = r.Attr
	e.Type = r.Type
	e.Chksum = r.Chksum
	e.Name2 = r.Name2
	e.Name3 = r.Name3
	return nil
}

func (e *LFNEntry) encode(dst []byte) {
	dst[0] = e.Ord
	for i, u := range e.Name1 {
		binary.LittleEndian.PutUint16(dst[1+2*i:3+2*i], u)
	}
	dst[11] = e.Attr
	dst[12] = e.Type
	dst[13] = e.Chksum
	for i, u := range e.Name2 {
		binary.LittleEndian.PutUint16(dst[14+2*i:16+2*i], u)
	}
	binary.LittleEndian.PutUint16(dst[26:28], 0) // FstClusLO, always 0 for LFN slots
	for i, u := range e.Name3 {
		binary.LittleEndian.PutUint16(dst[28+2*i:30+2*i], u)
	}
}

// units returns the 13 UTF-16 code units this LFN slot carries, in
// Name1+Name2+Name3 order.
func (e *LFNEntry) units() [13]uint16 {
	var u [13]uint16
	copy(u[0:5], e.Name1[:])
	copy(u[5:11], e.Name2[:])
	copy(u[11:13], e.Name3[:])
	return u
}

// sfnChecksum computes the 8-bit LFN checksum over an 11-byte short alias,
// per fat32.h's FAT32_checksum macro and spec §4.4/P5:
// c = rot_right_8(c) + byte, starting c=0.
func sfnChecksum(alias [11]byte) uint8 {
	var sum uint8
	for _, b := range alias {
		sum = rotRight8(sum) + b
	}
	return sum
}

func rotRight8(c uint8) uint8 {
	return (c >> 1) | (c << 7)
}
