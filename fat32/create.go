package fat32

import (
	"strings"
	"time"

	"github.com/imgfat/imgfat/fserrors"
)

// CreateFile implements §4.4/§4.7 name-encoder + directory-slot allocation
// for a new, empty file directly inside parent. Directory creation
// (Mkdir) is built on top of this.
func (parent *Fnode) CreateFile(rawName string) (*Fnode, error) {
	if !parent.IsDir {
		return nil, fserrors.NotADirectory
	}
	v := parent.vol
	nameBytes := []byte(rawName)
	base, ext := splitBaseExt(nameBytes)
	shape := classify(nameBytes)
	needsLFN := shape.needsLFN(len(nameBytes))

	collisions, err := v.countNameCollisions(parent.FirstClus, base)
	if err != nil {
		return nil, err
	}

	var alias [11]byte
	var ntres uint8
	if needsLFN {
		alias = buildShortAlias(base, ext, collisions+1)
	} else {
		alias, ntres = buildShortName(base, ext)
	}

	var lfnEntries []LFNEntry
	if needsLFN {
		lfnEntries = buildLFNEntries(nameBytes, sfnChecksum(alias))
	}
	totalSlots := len(lfnEntries) + 1

	dirOffset, err := v.allocDirSlots(parent.FirstClus, totalSlots)
	if err != nil {
		return nil, err
	}

	firstClus, err := v.fatAlloc(0, true)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var sfn SFNEntry
	copy(sfn.Name[:], alias[0:8])
	copy(sfn.Ext[:], alias[8:11])
	sfn.Attr = AttrArchive
	sfn.NTRes = ntres
	sfn.CrtTimeTenth = crtTimeTenth(now)
	sfn.CrtTime = packTime(now)
	sfn.CrtDate = packDate(now)
	sfn.LastAccDate = sfn.CrtDate
	sfn.WrtTime = sfn.CrtTime
	sfn.WrtDate = sfn.CrtDate
	sfn.SetFirstCluster(firstClus)
	sfn.FileSize = 0

	slots := make([][]byte, totalSlots)
	for i, l := range lfnEntries {
		buf := make([]byte, dirEntrySize)
		l.encode(buf)
		slots[i] = buf
	}
	sfnBuf := make([]byte, dirEntrySize)
	sfn.encode(sfnBuf)
	slots[totalSlots-1] = sfnBuf

	if err := v.writeDirSlots(parent.FirstClus, dirOffset, slots); err != nil {
		return nil, err
	}

	sfnOffset := dirOffset + uint32(totalSlots-1)*dirEntrySize
	return &Fnode{
		Name:      rawName,
		FirstClus: firstClus,
		DirOffset: sfnOffset,
		Size:      0,
		Offset:    0,
		IsDir:     false,
		Parent:    parent,
		vol:       v,
	}, nil
}

// Mkdir builds on CreateFile per §4.7: create the entry as a plain file,
// flip its attribute to DIRECTORY, then populate its first cluster with
// "." and ".." entries.
func (parent *Fnode) Mkdir(rawName string) (*Fnode, error) {
	child, err := parent.CreateFile(rawName)
	if err != nil {
		return nil, err
	}
	child.IsDir = true
	if err := child.SetAttr(AttrDirectory); err != nil {
		return nil, err
	}

	now := time.Now()
	var dot, dotdot SFNEntry
	copy(dot.Name[:], "."+strings.Repeat(" ", 7))
	copy(dot.Ext[:], "   ")
	dot.Attr = AttrDirectory
	dot.CrtTimeTenth = crtTimeTenth(now)
	dot.CrtTime, dot.CrtDate = packTime(now), packDate(now)
	dot.WrtTime, dot.WrtDate = dot.CrtTime, dot.CrtDate
	dot.LastAccDate = dot.CrtDate
	dot.SetFirstCluster(child.FirstClus)

	copy(dotdot.Name[:], ".."+strings.Repeat(" ", 6))
	copy(dotdot.Ext[:], "   ")
	dotdot.Attr = AttrDirectory
	dotdot.CrtTimeTenth = dot.CrtTimeTenth
	dotdot.CrtTime, dotdot.CrtDate = dot.CrtTime, dot.CrtDate
	dotdot.WrtTime, dotdot.WrtDate = dot.WrtTime, dot.WrtDate
	dotdot.LastAccDate = dot.LastAccDate
	if parent.Parent == nil {
		dotdot.SetFirstCluster(0) // root parent: ".." points at cluster 0 (§4.7)
	} else {
		dotdot.SetFirstCluster(parent.FirstClus)
	}

	buf := make([]byte, 2*dirEntrySize)
	dot.encode(buf[0:dirEntrySize])
	dotdot.encode(buf[dirEntrySize : 2*dirEntrySize])
	if _, err := child.vol.Backend.WriteAt(buf, int64(child.vol.SB.ClusterLBA(child.FirstClus))*SectorSize); err != nil {
		return nil, fserrors.HostIoError.Wrap(err)
	}
	return child, nil
}

// countNameCollisions implements §4.4 step 1's name_collision count: the
// number of existing non-LFN entries in parent whose short-name prefix
// (up through a synthesized '~', or the whole truncated base if none)
// matches the new name's uppercased base prefix.
func (v *Volume) countNameCollisions(startClus uint32, base []byte) (int, error) {
	upperBase := strings.ToUpper(string(base))
	count := 0
	err := v.walkDir(startClus, func(off uint32, raw []byte) (bool, error) {
		switch raw[0] {
		case entryFree:
			return false, nil
		case entryDeleted:
			return true, nil
		}
		if raw[11] == AttrLongName {
			return true, nil
		}
		existing := raw[0:8]
		length := 8
		for i, b := range existing {
			if b == '~' {
				length = i
				break
			}
		}
		if length > len(upperBase) {
			length = len(upperBase)
		}
		if length > 0 && strings.EqualFold(string(existing[:length]), upperBase[:length]) {
			count++
		}
		return true, nil
	})
	return count, err
}

// allocDirSlots finds (or makes room for) n consecutive free 32-byte slots
// in startClus's chain and returns the chain-relative offset of the first
// one, extending the chain with fatAlloc as needed (§4.4 step 1).
func (v *Volume) allocDirSlots(startClus uint32, n int) (uint32, error) {
	clusterBytes := uint32(v.SB.ClusterBytes())
	var freeOffset uint32
	found := false

	cur := startClus
	off := uint32(0)
	for !found {
		buf, err := v.readCluster(cur)
		if err != nil {
			return 0, err
		}
		for i := 0; i < len(buf); i += dirEntrySize {
			if buf[i] == entryFree {
				freeOffset = off
				found = true
				break
			}
			off += dirEntrySize
		}
		if found {
			break
		}
		next, err := v.fatLookup(cur)
		if err != nil {
			return 0, err
		}
		if isEOC(next) {
			newClus, err := v.fatAlloc(cur, false)
			if err != nil {
				return 0, err
			}
			cur = newClus
			continue
		}
		cur = next
	}

	endOffset := freeOffset + uint32(n)*dirEntrySize
	lastClusterIdx := int((endOffset - 1) / clusterBytes)
	if lastClusterIdx > 0 {
		if _, err := v.fatNext(startClus, lastClusterIdx, true); err != nil {
			return 0, err
		}
	}
	return freeOffset, nil
}

// writeDirSlots writes each of slots (32 bytes each) consecutively
// starting at dirOffset within startClus's chain, resolving each one's
// absolute sector as needed (slots may straddle a cluster boundary).
func (v *Volume) writeDirSlots(startClus uint32, dirOffset uint32, slots [][]byte) error {
	for i, slot := range slots {
		abs, err := v.resolveDirOffset(startClus, dirOffset+uint32(i)*dirEntrySize)
		if err != nil {
			return err
		}
		if _, err := v.Backend.WriteAt(slot, abs); err != nil {
			return fserrors.HostIoError.Wrap(err)
		}
	}
	return nil
}
