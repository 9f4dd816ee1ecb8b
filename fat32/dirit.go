package fat32

import (
	"strings"

	"github.com/imgfat/imgfat/fserrors"
)

// DirEntry is one live entry as returned by directory iteration: a
// reconstructed display name plus everything a caller needs to open or
// stat the underlying file/directory.
type DirEntry struct {
	Name      string
	Attr      uint8
	FirstClus uint32
	Size      uint32
	DirOffset uint32 // chain-relative offset of the SFN entry (§3, §4.3)
}

func (e DirEntry) IsDir() bool { return e.Attr&AttrDirectory != 0 }

// readCluster reads one full cluster (sectors_per_cluster*512 bytes).
func (v *Volume) readCluster(clus uint32) ([]byte, error) {
	buf := make([]byte, v.SB.ClusterBytes())
	if _, err := v.Backend.ReadAt(buf, int64(v.SB.ClusterLBA(clus))*SectorSize); err != nil {
		return nil, fserrors.HostIoError.Wrap(err)
	}
	return buf, nil
}

// walkDir visits every 32-byte slot across clus's cluster chain in disk
// order, in chain-relative byte offsets, until fn returns cont=false, an
// error, or the chain ends (§4.3: "Iteration reads one full cluster at a
// time... then scans 32-byte entries").
func (v *Volume) walkDir(startClus uint32, fn func(off uint32, raw []byte) (cont bool, err error)) error {
	cur := startClus
	off := uint32(0)
	clusterBytes := v.SB.ClusterBytes()
	for !isEOC(cur) && cur != 0 {
		buf, err := v.readCluster(cur)
		if err != nil {
			return err
		}
		for i := 0; i < clusterBytes; i += dirEntrySize {
			cont, err := fn(off, buf[i:i+dirEntrySize])
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
			off += dirEntrySize
		}
		next, err := v.fatLookup(cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// forEachEntry assembles live directory entries (SFN plus any preceding
// VFAT long-name slots) and calls visit for each, per §4.3. Iteration
// stops at the first free-end sentinel or end of chain.
func (v *Volume) forEachEntry(startClus uint32, visit func(e DirEntry) (cont bool, err error)) error {
	var pending []LFNEntry // accumulated in disk order (descending ordinal)
	return v.walkDir(startClus, func(off uint32, raw []byte) (bool, error) {
		switch raw[0] {
		case entryFree:
			return false, nil // §4.3: free-end sentinel terminates iteration
		case entryDeleted, entryFreeAlt:
			pending = nil
			return true, nil
		}
		var sfn SFNEntry
		if err := sfn.decode(raw); err != nil {
			return false, err
		}
		if sfn.IsLFN() {
			var l LFNEntry
			if err := l.decode(raw); err != nil {
				return false, err
			}
			pending = append(pending, l)
			return true, nil
		}
		name := assembleName(pending, sfn)
		pending = nil
		return visit(DirEntry{
			Name:      name,
			Attr:      sfn.Attr,
			FirstClus: sfn.FirstCluster(),
			Size:      sfn.FileSize,
			DirOffset: off,
		})
	})
}

// assembleName reconstructs a display name from any buffered LFN slots
// (§4.3: "concatenating Name1(5) + Name2(6) + Name3(2)... in order of
// descending ordinal"), falling back to the canonicalized short name when
// no LFN slots preceded this SFN.
func assembleName(lfns []LFNEntry, sfn SFNEntry) string {
	if len(lfns) == 0 {
		return shortNameString(sfn)
	}
	var sb strings.Builder
	for _, l := range lfns {
		for _, u := range l.units() {
			if u == 0xFFFF || u == 0x0000 {
				break
			}
			sb.WriteRune(rune(u))
		}
	}
	return sb.String()
}

// shortNameString renders an SFN's Name/Ext fields as a display string,
// applying the NTRes case-fold bits and trimming pad spaces (§3, §4.3).
func shortNameString(sfn SFNEntry) string {
	base := strings.TrimRight(string(sfn.Name[:]), " ")
	ext := strings.TrimRight(string(sfn.Ext[:]), " ")
	if sfn.NTRes&ntresBaseLower != 0 {
		base = strings.ToLower(base)
	}
	if sfn.NTRes&ntresExtLower != 0 {
		ext = strings.ToLower(ext)
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Lookup finds name directly inside the directory at startClus (one path
// component, not a full path walk), returning the matching DirEntry.
// Matching is byte-wise against the reconstructed display name (§4.3,
// §9's canonical short-name comparison rule: space=pad, '.'=separator,
// NTRes case-fold, everything else exact).
func (v *Volume) Lookup(startClus uint32, name string) (DirEntry, bool, error) {
	var found DirEntry
	ok := false
	err := v.forEachEntry(startClus, func(e DirEntry) (bool, error) {
		if e.Name == name {
			found, ok = e, true
			return false, nil
		}
		return true, nil
	})
	return found, ok, err
}

// ReadDir returns every live entry directly inside the directory at
// startClus, in disk order.
func (v *Volume) ReadDir(startClus uint32) ([]DirEntry, error) {
	var entries []DirEntry
	err := v.forEachEntry(startClus, func(e DirEntry) (bool, error) {
		entries = append(entries, e)
		return true, nil
	})
	return entries, err
}
