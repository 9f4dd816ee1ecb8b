package fat32

import "github.com/imgfat/imgfat/fserrors"

// Delete implements §4.8: tombstone this fnode's SFN entry and every LFN
// slot immediately preceding it, then free its cluster chain.
func (f *Fnode) Delete() error {
	v := f.vol
	if f.Parent == nil {
		return fserrors.UsageError.WithMessage("cannot delete root")
	}
	if err := v.tombstoneAt(f.Parent.FirstClus, f.DirOffset); err != nil {
		return err
	}

	cur := f.DirOffset
	for cur >= dirEntrySize {
		cur -= dirEntrySize
		raw, err := v.readEntryAt(f.Parent.FirstClus, cur)
		if err != nil {
			return err
		}
		if raw[11] != AttrLongName {
			break
		}
		if err := v.tombstoneAt(f.Parent.FirstClus, cur); err != nil {
			return err
		}
	}

	return v.freeChain(f.FirstClus)
}

// readEntryAt reads the 32-byte slot at chain-relative offset within
// startClus's chain.
func (v *Volume) readEntryAt(startClus uint32, offset uint32) ([]byte, error) {
	abs, err := v.resolveDirOffset(startClus, offset)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, dirEntrySize)
	if _, err := v.Backend.ReadAt(raw, abs); err != nil {
		return nil, fserrors.HostIoError.Wrap(err)
	}
	return raw, nil
}

// tombstoneAt writes the deleted-entry marker (0xE5) to the first byte of
// the slot at chain-relative offset.
func (v *Volume) tombstoneAt(startClus uint32, offset uint32) error {
	abs, err := v.resolveDirOffset(startClus, offset)
	if err != nil {
		return err
	}
	if _, err := v.Backend.WriteAt([]byte{entryDeleted}, abs); err != nil {
		return fserrors.HostIoError.Wrap(err)
	}
	return nil
}
