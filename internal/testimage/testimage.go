// Package testimage builds synthetic, in-memory FAT32 disk images for use
// by the test suite (§A.4). It is not a CLI-reachable "format" command —
// format/mkfs remains a Non-goal, same as the teacher's own format.go,
// which is an unfinished stub for the same reason — just enough of a
// writer to produce a BPB/FSInfo/FAT/root-directory layout the fat32
// package can Mount and operate on.
package testimage

import "encoding/binary"

const sectorSize = 512

// Config describes the synthetic volume to build.
type Config struct {
	PartitionStartLBA uint32
	SectorsPerCluster uint8
	NumFATs           uint8
	DataClusters      uint32 // includes the root directory's own cluster
	VolumeLabel       string
}

// DefaultConfig returns a small, fast-to-build volume: 1 sector/cluster,
// 2 FATs, 64 data clusters, partition starting at LBA 2048 (matching §8
// scenario 1's literal test image).
func DefaultConfig() Config {
	return Config{
		PartitionStartLBA: 2048,
		SectorsPerCluster: 1,
		NumFATs:           2,
		DataClusters:      64,
		VolumeLabel:       "IMGFATTEST",
	}
}

// Build returns a complete raw disk image: one MBR partition (type 0x0C)
// wrapping one FAT32 volume per cfg.
func Build(cfg Config) []byte {
	const reservedSectors = 2 // BPB + FSInfo immediately after it (§3 convention)

	fatEntries := cfg.DataClusters + 2 // account for reserved entries 0/1
	fatBytes := fatEntries * 4
	fatSizeSectors := (fatBytes + sectorSize - 1) / sectorSize

	dataSectors := cfg.DataClusters * uint32(cfg.SectorsPerCluster)
	totalPartitionSectors := uint32(reservedSectors) + uint32(cfg.NumFATs)*fatSizeSectors + dataSectors
	totalImageSectors := cfg.PartitionStartLBA + totalPartitionSectors

	img := make([]byte, uint64(totalImageSectors)*sectorSize)

	writeMBR(img, cfg.PartitionStartLBA, totalPartitionSectors)

	partOff := uint64(cfg.PartitionStartLBA) * sectorSize
	writeBPB(img[partOff:partOff+sectorSize], cfg, reservedSectors, fatSizeSectors, totalPartitionSectors)
	writeFSInfo(img[partOff+sectorSize : partOff+2*sectorSize])

	fatStart := cfg.PartitionStartLBA + reservedSectors
	for i := uint8(0); i < cfg.NumFATs; i++ {
		off := uint64(fatStart+uint32(i)*fatSizeSectors) * sectorSize
		fat := img[off : off+uint64(fatSizeSectors)*sectorSize]
		binary.LittleEndian.PutUint32(fat[0:4], 0x0FFFFFF8)
		binary.LittleEndian.PutUint32(fat[4:8], 0x0FFFFFFF)
		binary.LittleEndian.PutUint32(fat[8:12], 0x0FFFFFF8) // cluster 2 (root): single-cluster chain
	}

	if cfg.VolumeLabel != "" {
		dataStart := fatStart + uint32(cfg.NumFATs)*fatSizeSectors
		off := uint64(dataStart) * sectorSize
		writeVolumeLabelEntry(img[off:off+32], cfg.VolumeLabel)
	}

	return img
}

func writeMBR(img []byte, startLBA, numSectors uint32) {
	binary.LittleEndian.PutUint16(img[510:512], 0xAA55)
	pte := img[0x1BE:0x1CE]
	pte[0] = 0x00 // not bootable
	pte[4] = 0x0C // FAT32 LBA
	binary.LittleEndian.PutUint32(pte[8:12], startLBA)
	binary.LittleEndian.PutUint32(pte[12:16], numSectors)
}

func writeBPB(sector []byte, cfg Config, reservedSectors uint16, fatSizeSectors, totalSectors uint32) {
	copy(sector[0:3], []byte{0xEB, 0x58, 0x90})
	copy(sector[3:11], []byte("MSWIN4.1"))
	binary.LittleEndian.PutUint16(sector[11:13], sectorSize)
	sector[13] = cfg.SectorsPerCluster
	binary.LittleEndian.PutUint16(sector[14:16], reservedSectors)
	sector[16] = cfg.NumFATs
	// RootEntCnt, TotSec16 stay 0 (FAT32 convention: use TotSec32 instead)
	sector[21] = 0xF8 // Media: fixed disk
	binary.LittleEndian.PutUint32(sector[32:36], totalSectors)
	binary.LittleEndian.PutUint32(sector[36:40], fatSizeSectors)
	binary.LittleEndian.PutUint32(sector[44:48], 2) // RootClus
	binary.LittleEndian.PutUint16(sector[48:50], 1) // FSInfoSec, relative to partition start
	sector[64] = 0x80                               // DrvNum
	sector[66] = 0x29                               // BootSig (extended boot signature present)
	binary.LittleEndian.PutUint32(sector[67:71], 0x12345678)
	label := (cfg.VolumeLabel + "           ")[:11]
	copy(sector[71:82], label)
	copy(sector[82:90], []byte("FAT32   "))
	binary.LittleEndian.PutUint16(sector[510:512], 0xAA55)
}

func writeFSInfo(sector []byte) {
	binary.LittleEndian.PutUint32(sector[0:4], 0x41615252)
	binary.LittleEndian.PutUint32(sector[484:488], 0x61417272)
	binary.LittleEndian.PutUint32(sector[488:492], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(sector[492:496], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(sector[508:512], 0xAA550000)
}

// writeVolumeLabelEntry writes a volume-ID entry as the first directory
// entry of the data region, per §4.1's label-extraction rule.
func writeVolumeLabelEntry(entry []byte, label string) {
	name := (label + "           ")[:11]
	copy(entry[0:11], name)
	entry[11] = 0x08 // AttrVolumeID
}
