// Package fsdriver implements the Driver Table named in §2.4: a single
// mutable mapping from filesystem kind to a table of exposed operations,
// mirroring fs.h's function-pointer struct fsi. One entry exists, FAT32;
// the table exists so a second filesystem could be added without touching
// the partition scanner or CLI.
package fsdriver

import (
	"github.com/imgfat/imgfat/blockdev"
	"github.com/imgfat/imgfat/fat32"
	"github.com/imgfat/imgfat/fserrors"
)

// Driver is the per-filesystem entry of the table. It carries only the
// check and superblock-mount operations; open, read, write, create,
// delete, mkdir and get/set attr are methods on the returned
// fat32.Volume and its Fnodes, not on Driver.
type Driver interface {
	// Check reports whether this driver claims the given MBR partition
	// type byte.
	Check(partitionType byte) bool
	// Mount reads the superblock for a partition starting at the given
	// LBA sector and returns a ready Volume.
	Mount(backend blockdev.Backend, partitionStart uint32) (*fat32.Volume, error)
}

type fat32Driver struct{}

func (fat32Driver) Check(partitionType byte) bool {
	return partitionType == 0x0B || partitionType == 0x0C
}

func (fat32Driver) Mount(backend blockdev.Backend, partitionStart uint32) (*fat32.Volume, error) {
	return fat32.Mount(backend, partitionStart)
}

// table is the process-wide driver registry, populated once at init and
// read-only afterward (§5: "The driver table is process-wide read-only
// after initialization").
var table = []Driver{fat32Driver{}}

// ForType returns the driver that claims partitionType, if any.
func ForType(partitionType byte) (Driver, bool) {
	for _, d := range table {
		if d.Check(partitionType) {
			return d, true
		}
	}
	return nil, false
}

// MountPartition finds the driver for partitionType and mounts the volume
// at partitionStart, or fails with UnknownPath if no driver claims it.
func MountPartition(backend blockdev.Backend, partitionType byte, partitionStart uint32) (*fat32.Volume, error) {
	d, ok := ForType(partitionType)
	if !ok {
		return nil, fserrors.UnknownPath.WithMessage("no driver for partition type")
	}
	return d.Mount(backend, partitionStart)
}
