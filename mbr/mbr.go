// Package mbr implements the Partition Scanner: it reads the four MBR
// partition table entries at sector-0 offset 0x1BE, recurses into extended
// partitions, and dispatches leaf entries to the filesystem driver table.
//
// Adapted from soypat/fat's internal/mbr package (BootSector/
// PartitionTableEntry byte-wrapper style kept), generalized from a
// standalone MBR codec into the scanner and `/pN/...` path resolver the
// outer shell needs.
package mbr

import (
	"encoding/binary"
	"fmt"

	"github.com/imgfat/imgfat/fserrors"
)

const (
	bootstrapLen     = 440
	uniqueDiskIDOff  = bootstrapLen
	uniqueDiskIDLen  = 4
	pteOffset        = 0x1BE
	pteLen           = 16
	numEntries       = 4
	bootSignatureOff = 510
	BootSignature    = 0xAA55
)

// ToBootSector converts a byte slice to an MBR BootSector while maintaining
// a reference to the original byte slice. The slice must be at least 512
// bytes long and its first byte must be the first byte of the MBR.
func ToBootSector(start []byte) (BootSector, error) {
	if len(start) < 512 {
		return BootSector{}, fserrors.UnknownImageFormat.WithMessage("boot sector too short")
	}
	return BootSector{data: start[:512:512]}, nil
}

// BootSector is a Master Boot Record: bootstrap code, partition table, and
// a boot signature.
type BootSector struct {
	data []byte
}

// PartitionTableEntry is one of the four 16-byte partition table entries.
type PartitionTableEntry struct {
	data [pteLen]byte
}

func (mbr *BootSector) Bootstrap() []byte {
	return mbr.data[0:bootstrapLen]
}

func (mbr *BootSector) UniqueDiskID() uint32 {
	return binary.LittleEndian.Uint32(mbr.data[uniqueDiskIDOff : uniqueDiskIDOff+uniqueDiskIDLen])
}

// BootSignature returns the boot signature; a valid MBR has 0xAA55 here.
func (mbr *BootSector) BootSignature() uint16 {
	return binary.LittleEndian.Uint16(mbr.data[bootSignatureOff : bootSignatureOff+2])
}

// PartitionTable returns the idx'th partition table entry (0..3).
func (mbr *BootSector) PartitionTable(idx int) PartitionTableEntry {
	if idx < 0 || idx >= numEntries {
		panic("invalid partition table index")
	}
	var pte PartitionTableEntry
	copy(pte.data[:], mbr.data[pteOffset+idx*pteLen:pteOffset+(idx+1)*pteLen])
	return pte
}

func (mbr *BootSector) SetPartitionTable(idx int, pte PartitionTableEntry) {
	if idx < 0 || idx >= numEntries {
		panic("invalid partition table index")
	}
	copy(mbr.data[pteOffset+idx*pteLen:pteOffset+(idx+1)*pteLen], pte.data[:])
}

// MakePTE builds a partition table entry from its fields, for use by tests
// that synthesize partition tables (mbr_test.go).
func MakePTE(attrs DriveAttributes, typ PartitionType, startLBA, numLBA uint32, startCHS, lastCHS CHS) PartitionTableEntry {
	var pte PartitionTableEntry
	pte.data[0] = byte(attrs)
	pte.data[4] = byte(typ)
	binary.LittleEndian.PutUint32(pte.data[8:12], startLBA)
	binary.LittleEndian.PutUint32(pte.data[12:16], numLBA)
	pte.data[1], pte.data[2], pte.data[3] = startCHS.Tuple()
	pte.data[5], pte.data[6], pte.data[7] = lastCHS.Tuple()
	return pte
}

func (pte *PartitionTableEntry) Attributes() DriveAttributes {
	return DriveAttributes(pte.data[0])
}

func (pte *PartitionTableEntry) CHSStart() CHS {
	return CHS(pte.data[1]) | CHS(pte.data[2])<<8 | CHS(pte.data[3])<<16
}

func (pte *PartitionTableEntry) PartitionType() PartitionType {
	return PartitionType(pte.data[4])
}

func (pte *PartitionTableEntry) CHSLast() CHS {
	return CHS(pte.data[5]) | CHS(pte.data[6])<<8 | CHS(pte.data[7])<<16
}

func (pte *PartitionTableEntry) StartLBA() uint32 {
	return binary.LittleEndian.Uint32(pte.data[8:12])
}

func (pte *PartitionTableEntry) NumberOfLBA() uint32 {
	return binary.LittleEndian.Uint32(pte.data[12:16])
}

// IsEmpty reports whether this slot carries no partition at all (type byte
// 0x00 and zero size — distinct from IsBootable, which only looks at the
// attribute byte).
func (pte *PartitionTableEntry) IsEmpty() bool {
	return pte.PartitionType() == PartitionTypeUnused && pte.NumberOfLBA() == 0
}

// IsBootable reports whether the partition this entry describes is marked
// bootable (attribute byte 0x80) or the other accepted value (0x00 is
// "not bootable" but still a valid, non-error attribute byte per §6).
//
// The teacher's version of this method compared the package constant
// against itself (DriveAttrsBootable&0x80 != 0, always true) instead of the
// receiver; fixed here since it's a one-line correctness bug, not a
// documented quirk the spec asks to preserve.
func (attrs DriveAttributes) IsBootable() bool {
	return attrs&DriveAttrsBootable != 0
}

// CHS is a cylinder-head-sector address, retained only for round-tripping
// partition table entries; this engine never uses CHS addressing itself.
type CHS uint32

func (chs CHS) Tuple() (cylinder, head, sector uint8) {
	return uint8(chs), uint8(chs >> 8), uint8(chs >> 16)
}

func NewCHS(cylinder, head, sector uint8) CHS {
	return CHS(cylinder) | CHS(head)<<8 | CHS(sector)<<16
}

// PartitionType is the fs-type byte of a partition table entry.
type PartitionType byte

const (
	PartitionTypeUnused      PartitionType = 0x00
	PartitionTypeFAT12       PartitionType = 0x01
	PartitionTypeFAT16       PartitionType = 0x04
	PartitionTypeExtended    PartitionType = 0x05
	PartitionTypeNTFS        PartitionType = 0x07
	PartitionTypeFAT32CHS    PartitionType = 0x0B
	PartitionTypeFAT32LBA    PartitionType = 0x0C
	PartitionTypeExtendedLBA PartitionType = 0x0F
	PartitionTypeLinux       PartitionType = 0x83
	PartitionTypeFreeBSD     PartitionType = 0xA5
	PartitionTypeAppleHFS    PartitionType = 0xAF
)

// IsExtended reports whether typ marks an extended partition requiring
// recursion (§6: "FS types 0x05/0x0F recurse").
func (typ PartitionType) IsExtended() bool {
	return typ == PartitionTypeExtended || typ == PartitionTypeExtendedLBA
}

// IsFAT32 reports whether typ marks a partition to dispatch to the FAT32
// driver (§6: "0x0B/0x0C dispatch to FAT32").
func (typ PartitionType) IsFAT32() bool {
	return typ == PartitionTypeFAT32CHS || typ == PartitionTypeFAT32LBA
}

// DriveAttributes is the first byte of a partition table entry.
type DriveAttributes byte

const (
	DriveAttrsBootable DriveAttributes = 0x80
)

// Partition is one scanned partition: its location, type, and (for
// extended entries) its nested children. This is the Go expression of
// fs.h's struct partition plus fs.c's extended-partition recursion.
type Partition struct {
	Index      int
	StartLBA   uint32
	NumLBA     uint32
	Type       PartitionType
	Bootable   bool
	Children   []Partition // populated iff Type.IsExtended()
}

// Scan reads the four primary partition table entries from sector0 (the
// first 512 bytes of the image) and, for any bootable-flag-valid,
// non-empty entry, either recurses into an extended partition by reading
// its boot sector from the backend, or records a leaf partition for
// dispatch to the driver table.
//
// readSector reads exactly 512 bytes at the given byte offset; it is the
// caller's block backend, threaded through so extended-partition recursion
// can pull further boot sectors without this package importing blockdev.
func Scan(sector0 []byte, readSector func(off int64) ([]byte, error)) ([]Partition, error) {
	bs, err := ToBootSector(sector0)
	if err != nil {
		return nil, err
	}
	if bs.BootSignature() != BootSignature {
		return nil, fserrors.UnknownImageFormat.WithMessage("missing 0xAA55 boot signature")
	}
	return scanEntries(bs, 0, readSector, make(map[int64]bool))
}

func scanEntries(bs BootSector, base int64, readSector func(off int64) ([]byte, error), visited map[int64]bool) ([]Partition, error) {
	var out []Partition
	for i := 0; i < numEntries; i++ {
		pte := bs.PartitionTable(i)
		if pte.IsEmpty() {
			continue
		}
		attr := pte.Attributes()
		if attr != 0x00 && attr != DriveAttrsBootable {
			// §6: only 0x80/0x00 are accepted bootable flags; anything
			// else means this slot isn't a partition entry we trust.
			continue
		}
		p := Partition{
			Index:    i,
			StartLBA: pte.StartLBA() + uint32(base/512),
			NumLBA:   pte.NumberOfLBA(),
			Type:     pte.PartitionType(),
			Bootable: attr.IsBootable(),
		}
		if p.Type.IsExtended() {
			off := int64(pte.StartLBA()+uint32(base/512)) * 512
			if visited[off] {
				// best-effort only (Non-goal): guard against a cyclic
				// extended-partition chain rather than recursing forever.
				continue
			}
			visited[off] = true
			sector, err := readSector(off)
			if err != nil {
				return nil, fmt.Errorf("reading extended partition at lba %d: %w", p.StartLBA, err)
			}
			ebs, err := ToBootSector(sector)
			if err != nil {
				continue
			}
			children, err := scanEntries(ebs, off, readSector, visited)
			if err != nil {
				continue
			}
			p.Children = children
		}
		out = append(out, p)
	}
	return out, nil
}

// ResolvePath resolves a "/pN[/dir/...]" image path against a flat scan
// result, recursing into Children exactly as imagetool.c's get_part does
// for extended partitions. It returns the matched partition and the
// remaining path components after the "/pN" prefix.
func ResolvePath(parts []Partition, imagePath string) (Partition, []string, error) {
	n, rest, err := splitPartitionPath(imagePath)
	if err != nil {
		return Partition{}, nil, err
	}
	p, ok := findByIndex(parts, n)
	if !ok {
		return Partition{}, nil, fserrors.UnknownPath.WithMessage(fmt.Sprintf("no partition /p%d", n))
	}
	return p, rest, nil
}

func findByIndex(parts []Partition, n int) (Partition, bool) {
	for _, p := range parts {
		if p.Type.IsExtended() {
			if found, ok := findByIndex(p.Children, n); ok {
				return found, true
			}
			continue
		}
		if p.Index == n {
			return p, true
		}
	}
	return Partition{}, false
}

func splitPartitionPath(imagePath string) (int, []string, error) {
	if len(imagePath) < 2 || imagePath[0] != '/' || imagePath[1] != 'p' {
		return 0, nil, fserrors.UsageError.WithMessage("image path must start with /pN")
	}
	rest := imagePath[2:]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, nil, fserrors.UsageError.WithMessage("missing partition index after /p")
	}
	n := 0
	for _, c := range rest[:i] {
		n = n*10 + int(c-'0')
	}
	tail := rest[i:]
	var comps []string
	cur := ""
	for _, c := range tail {
		if c == '/' {
			if cur != "" {
				comps = append(comps, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		comps = append(comps, cur)
	}
	return n, comps, nil
}
