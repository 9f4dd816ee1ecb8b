package fat32

// GetAttr and SetAttr restore the two operations original_source exposes
// separately (fat32.h FAT32_get_attr/FAT32_set_attr) that the distilled
// spec folds into file/dir creation. Both walk to the entry's owning
// sector the same way file write does (§C.1).

// GetAttr reads this fnode's current DIR_Attr byte.
func (f *Fnode) GetAttr() (uint8, error) {
	if f.Parent == nil {
		return AttrDirectory, nil // root has no on-disk SFN of its own
	}
	sfn, err := f.readOwnSFN()
	if err != nil {
		return 0, err
	}
	return sfn.Attr, nil
}

// SetAttr overwrites this fnode's DIR_Attr byte in place.
func (f *Fnode) SetAttr(attr uint8) error {
	if f.Parent == nil {
		return nil
	}
	return f.mutateOwnSFN(func(sfn *SFNEntry) {
		sfn.Attr = attr
	})
}
