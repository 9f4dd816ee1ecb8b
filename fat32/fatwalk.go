package fat32

import (
	"encoding/binary"

	"github.com/imgfat/imgfat/fserrors"
)

const fatEntriesPerSector = SectorSize / 4

// fatLookup returns the on-disk FAT entry for cluster, per §4.2: reads the
// sector at FATStart + cluster/128 and indexes cluster%128. Pure read.
func (v *Volume) fatLookup(cluster uint32) (uint32, error) {
	sector := v.SB.FATStart + cluster/fatEntriesPerSector
	idx := cluster % fatEntriesPerSector

	buf := make([]byte, SectorSize)
	if _, err := v.Backend.ReadAt(buf, int64(sector)*SectorSize); err != nil {
		return 0, fserrors.HostIoError.Wrap(err)
	}
	return binary.LittleEndian.Uint32(buf[idx*4:idx*4+4]) & chainMask, nil
}

// isEOC reports whether entry marks the end of a chain (§3: terminator is
// any value >= 0x0FFFFFF8).
func isEOC(entry uint32) bool {
	return entry >= 0x0FFFFFF8
}

// fatNext walks the chain starting at `start` for `steps` hops. If an
// end-of-chain is reached prematurely and allowAlloc is true, the chain is
// extended with fatAlloc; otherwise the terminal cluster observed is
// returned. Used by all positional operations (§4.2).
func (v *Volume) fatNext(start uint32, steps int, allowAlloc bool) (uint32, error) {
	cur := start
	for i := 0; i < steps; i++ {
		next, err := v.fatLookup(cur)
		if err != nil {
			return 0, err
		}
		if isEOC(next) {
			if !allowAlloc {
				return cur, nil
			}
			newClus, err := v.fatAlloc(cur, false)
			if err != nil {
				return 0, err
			}
			cur = newClus
			continue
		}
		cur = next
	}
	return cur, nil
}

// writeFATEntry writes value into cluster's slot in every FAT copy (§4.2,
// P2: all NumFATs copies must stay byte-identical after every mutation).
func (v *Volume) writeFATEntry(cluster, value uint32) error {
	sectorOff := cluster / fatEntriesPerSector
	idx := cluster % fatEntriesPerSector

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value&chainMask)

	for fatN := uint32(0); fatN < uint32(v.SB.NumFATs); fatN++ {
		sector := v.SB.FATStart + fatN*v.SB.FATSizeSectors + sectorOff
		if _, err := v.Backend.WriteAt(buf[:], int64(sector)*SectorSize+int64(idx)*4); err != nil {
			return fserrors.HostIoError.Wrap(err)
		}
	}
	return nil
}

// fatAlloc linearly scans the first FAT from cluster 3 upward (the
// documented quirk: cluster 2 is never handed out by this scan) for a free
// (zero) entry, marks it end-of-chain in every FAT copy, and — unless
// isFirst — links lastCluster's slot to it in every FAT copy too. Returns
// the new cluster number (§4.2).
func (v *Volume) fatAlloc(lastCluster uint32, isFirst bool) (uint32, error) {
	totalEntries := v.SB.FATSizeSectors * fatEntriesPerSector
	for c := uint32(allocScanStart); c < totalEntries; c++ {
		entry, err := v.fatLookup(c)
		if err != nil {
			return 0, err
		}
		if entry != 0 {
			continue
		}
		if err := v.writeFATEntry(c, chainEOC); err != nil {
			return 0, err
		}
		if !isFirst {
			if err := v.writeFATEntry(lastCluster, c); err != nil {
				return 0, err
			}
		}
		// Zero the newly allocated cluster. Not named by the spec, but
		// without it a freshly extended directory chain could contain
		// leftover image bytes that look like live entries; zeroing costs
		// one write and keeps the free-end sentinel rule (§4.3) valid for
		// every cluster this engine ever hands out.
		if err := v.zeroCluster(c); err != nil {
			return 0, err
		}
		return c, nil
	}
	return 0, fserrors.DiskFull
}

func (v *Volume) zeroCluster(clus uint32) error {
	zero := make([]byte, v.SB.ClusterBytes())
	_, err := v.Backend.WriteAt(zero, int64(v.SB.ClusterLBA(clus))*SectorSize)
	if err != nil {
		return fserrors.HostIoError.Wrap(err)
	}
	return nil
}

// fatFree sets cluster's entry to 0 in every FAT copy; if lastCluster >= 3
// it is relinked to point at whatever cluster used to point to (unlinking
// cluster from the middle or tail of a chain). Used by chain-walk deletion
// (§4.2, §4.8).
func (v *Volume) fatFree(lastCluster, cluster uint32) error {
	next, err := v.fatLookup(cluster)
	if err != nil {
		return err
	}
	if err := v.writeFATEntry(cluster, 0); err != nil {
		return err
	}
	if lastCluster >= allocScanStart {
		if err := v.writeFATEntry(lastCluster, next); err != nil {
			return err
		}
	}
	return nil
}

// freeChain walks the cluster chain starting at start, calling fatFree on
// every cluster until end-of-chain (§4.8).
func (v *Volume) freeChain(start uint32) error {
	cur := start
	const chainBudget = 1 << 24 // corruption guard beyond the literal spec (fserrors.BadChain)
	for i := 0; !isEOC(cur) && cur != 0; i++ {
		if i > chainBudget {
			return fserrors.BadChain
		}
		next, err := v.fatLookup(cur)
		if err != nil {
			return err
		}
		if err := v.fatFree(0, cur); err != nil {
			return err
		}
		cur = next
	}
	return nil
}
