package fat32

import (
	"time"

	"github.com/imgfat/imgfat/fserrors"
)

// resolveDirOffset walks parentFirstClus's chain to the cluster containing
// dirOffset (a chain-relative byte offset, §3/§4.3) and returns the
// absolute byte offset in the image of that entry's first byte.
func (v *Volume) resolveDirOffset(parentFirstClus uint32, dirOffset uint32) (int64, error) {
	clusterBytes := uint32(v.SB.ClusterBytes())
	clusterIndex := int(dirOffset / clusterBytes)
	withinCluster := dirOffset % clusterBytes

	clus := parentFirstClus
	if clusterIndex > 0 {
		var err error
		clus, err = v.fatNext(parentFirstClus, clusterIndex, false)
		if err != nil {
			return 0, err
		}
	}
	return int64(v.SB.ClusterLBA(clus))*SectorSize + int64(withinCluster), nil
}

// ReadFile reads length bytes starting at fnode's current Offset, per
// §4.5. It does not clamp against Size (caller's responsibility) and,
// preserved as a documented limitation (§9, decision E.3), issues a single
// positioned read: a read whose length crosses the end of the current
// cluster continues linearly on the image rather than hopping to the
// chain's next cluster.
func (f *Fnode) ReadFile(buf []byte) (int, error) {
	v := f.vol
	clusterBytes := v.SB.ClusterBytes()
	clusterIndex := int(f.Offset) / clusterBytes
	withinCluster := int(f.Offset) % clusterBytes

	clus, err := v.fatNext(f.FirstClus, clusterIndex, false)
	if err != nil {
		return 0, err
	}
	off := int64(v.SB.ClusterLBA(clus))*SectorSize + int64(withinCluster)
	n, err := v.Backend.ReadAt(buf, off)
	if err != nil {
		return n, fserrors.HostIoError.Wrap(err)
	}
	return n, nil
}

// WriteFile writes buf at fnode's current Offset, extending the cluster
// chain as needed, then rewrites the parent's SFN size/time fields and
// advances Offset (§4.6).
func (f *Fnode) WriteFile(buf []byte) (int, error) {
	v := f.vol
	clusterBytes := v.SB.ClusterBytes()
	clusterIndex := int(f.Offset) / clusterBytes

	clus, err := v.fatNext(f.FirstClus, clusterIndex, true)
	if err != nil {
		return 0, err
	}

	written := 0
	remaining := buf
	withinCluster := int(f.Offset) % clusterBytes

	for len(remaining) > 0 {
		sectorInClus := withinCluster / SectorSize
		offInSector := withinCluster % SectorSize
		sector := v.SB.ClusterLBA(clus) + uint32(sectorInClus)

		chunk := SectorSize - offInSector
		if chunk > len(remaining) {
			chunk = len(remaining)
		}
		n, err := v.Backend.WriteAt(remaining[:chunk], int64(sector)*SectorSize+int64(offInSector))
		if err != nil {
			return written, fserrors.HostIoError.Wrap(err)
		}
		written += n
		remaining = remaining[n:]
		withinCluster += n

		if withinCluster >= clusterBytes && len(remaining) > 0 {
			clus, err = v.fatNext(clus, 1, true)
			if err != nil {
				return written, err
			}
			withinCluster = 0
		}
	}

	newSize := f.Offset + uint32(written)
	if newSize > f.Size {
		f.Size = newSize
	}
	if err := f.rewriteParentSFN(time.Now()); err != nil {
		return written, err
	}
	f.Offset += uint32(written)
	return written, nil
}

// rewriteParentSFN resolves the parent directory's sector containing this
// fnode's SFN entry, updates DIR_FileSize/DIR_WrtTime/DIR_WrtDate/
// DIR_LastAccDate, and writes the sector back (§4.6 step 4).
func (f *Fnode) rewriteParentSFN(now time.Time) error {
	if f.Parent == nil {
		return nil // root has no SFN entry of its own
	}
	return f.mutateOwnSFN(func(sfn *SFNEntry) {
		sfn.FileSize = f.Size
		sfn.WrtTime = packTime(now)
		sfn.WrtDate = packDate(now)
		sfn.LastAccDate = packDate(now)
	})
}

// ownSFNLocation locates this fnode's own SFN entry within its parent's
// directory chain, returning the absolute sector offset and the entry's
// byte offset within that sector.
func (f *Fnode) ownSFNLocation() (sectorOff int64, entryOff int, err error) {
	v := f.vol
	abs, err := v.resolveDirOffset(f.Parent.FirstClus, f.DirOffset)
	if err != nil {
		return 0, 0, err
	}
	return abs - abs%SectorSize, int(abs % SectorSize), nil
}

// readOwnSFN reads and decodes this fnode's own SFN entry.
func (f *Fnode) readOwnSFN() (SFNEntry, error) {
	sectorOff, entryOff, err := f.ownSFNLocation()
	if err != nil {
		return SFNEntry{}, err
	}
	sector := make([]byte, SectorSize)
	if _, err := f.vol.Backend.ReadAt(sector, sectorOff); err != nil {
		return SFNEntry{}, fserrors.HostIoError.Wrap(err)
	}
	var sfn SFNEntry
	if err := sfn.decode(sector[entryOff : entryOff+dirEntrySize]); err != nil {
		return SFNEntry{}, err
	}
	return sfn, nil
}

// mutateOwnSFN reads this fnode's own SFN entry, applies mutate, and
// writes the sector back. Used by file write (size/time fields) and by
// SetAttr (§C.1), through which directory creation flips ARCHIVE to
// DIRECTORY.
func (f *Fnode) mutateOwnSFN(mutate func(sfn *SFNEntry)) error {
	sectorOff, entryOff, err := f.ownSFNLocation()
	if err != nil {
		return err
	}
	sector := make([]byte, SectorSize)
	if _, err := f.vol.Backend.ReadAt(sector, sectorOff); err != nil {
		return fserrors.HostIoError.Wrap(err)
	}
	var sfn SFNEntry
	if err := sfn.decode(sector[entryOff : entryOff+dirEntrySize]); err != nil {
		return err
	}
	mutate(&sfn)
	sfn.encode(sector[entryOff : entryOff+dirEntrySize])
	if _, err := f.vol.Backend.WriteAt(sector, sectorOff); err != nil {
		return fserrors.HostIoError.Wrap(err)
	}
	return nil
}
