// This package opens a partition and captures the volume geometry that
// every other operation depends on.

package fat

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
)

var (
	// ErrInvalidMbr indicates that sector zero does not carry the MBR
	// signature.
	ErrInvalidMbr = errors.New("invalid MBR")

	// ErrUnsupportedPartitionType indicates that the partition's type byte
	// is not one of the recognized FAT16 or FAT32 codes.
	ErrUnsupportedPartitionType = errors.New("unsupported partition type")

	// ErrUnsupportedGeometry indicates that the BPB describes a volume this
	// driver can not operate on.
	ErrUnsupportedGeometry = errors.New("unsupported volume geometry")

	// ErrNotWritable indicates a write-mode operation on a partition whose
	// device does not implement BlockDeviceWriter.
	ErrNotWritable = errors.New("device not writable")

	// ErrDiskFull indicates that the FAT holds no free cluster.
	ErrDiskFull = errors.New("no free cluster")

	// ErrDirectoryFull indicates that a fixed-size root directory has no
	// reusable slot left. Unlike a chained directory, it can not grow.
	ErrDirectoryFull = errors.New("root directory full")
)

// PartitionType is the FAT variant of a mounted partition.
type PartitionType int

const (
	// PartitionTypeFat16 identifies a FAT16 partition.
	PartitionTypeFat16 PartitionType = iota

	// PartitionTypeFat32 identifies a FAT32 partition.
	PartitionTypeFat32
)

// String returns the variant's conventional name.
func (pt PartitionType) String() string {
	if pt == PartitionTypeFat16 {
		return "FAT16"
	}

	return "FAT32"
}

// Partition describes one mounted FAT volume. The geometry fields are
// immutable after MountPartition returns.
//
// The sector buffer belongs to the partition for as long as it is mounted.
// Every operation that touches the disk goes through that one buffer, so
// any data a caller holds out of it is invalidated by the next I/O.
type Partition struct {
	device BlockDevice
	buffer []byte

	partitionLba uint32
	ptype        PartitionType

	sectorsPerCluster    uint8
	reservedSectors      uint16
	sectorsPerFat        uint32
	rootDirectoryEntries uint16
	rootCluster          ClusterNr
}

// MountPartition reads the MBR, selects the partition with the given index
// in [0, 3], and decodes its BPB. The buffer must be exactly BytesPerSector
// long and stays owned by the returned partition. On return the buffer
// holds the BPB sector.
func MountPartition(device BlockDevice, buffer []byte, partitionNr int) (p *Partition, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	if len(buffer) != BytesPerSector {
		log.Panicf("sector buffer has wrong size: (%d)", len(buffer))
	} else if partitionNr < 0 || partitionNr > 3 {
		log.Panicf("partition number out of range: (%d)", partitionNr)
	}

	p = &Partition{
		device: device,
		buffer: buffer,
	}

	p.readSector(0)

	mbr, err := ParseMbr(p.buffer)
	log.PanicIf(err)

	pe := mbr.PartitionTable[partitionNr]

	switch pe.Type {
	case 0x0b, 0x0c:
		p.ptype = PartitionTypeFat32
	case 0x04, 0x06, 0x0e:
		p.ptype = PartitionTypeFat16
	default:
		log.Panic(ErrUnsupportedPartitionType)
	}

	p.partitionLba = pe.StartingLba

	// Read the volume's first sector and capture the geometry.

	p.readSector(p.partitionLba)

	bpb, err := ParseBiosParameterBlock(p.buffer)
	log.PanicIf(err)

	if bpb.NumberOfFats != NumberOfFats || bpb.SectorsPerCluster == 0 {
		log.Panic(ErrUnsupportedGeometry)
	}

	p.sectorsPerCluster = bpb.SectorsPerCluster
	p.reservedSectors = bpb.ReservedSectors
	p.rootDirectoryEntries = bpb.RootDirectoryEntries

	if p.ptype == PartitionTypeFat16 {
		p.sectorsPerFat = uint32(bpb.SectorsPerFat16)
	} else {
		p.sectorsPerFat = bpb.SectorsPerFat32
		p.rootCluster = ClusterNr(bpb.RootCluster)
	}

	return p, nil
}

// Type returns the FAT variant.
func (p *Partition) Type() PartitionType {
	return p.ptype
}

// PartitionLba returns the absolute sector number of the partition's first
// sector.
func (p *Partition) PartitionLba() uint32 {
	return p.partitionLba
}

// SectorsPerCluster returns the cluster size in sectors.
func (p *Partition) SectorsPerCluster() uint8 {
	return p.sectorsPerCluster
}

// ReservedSectors returns the size of the reserved region in sectors.
func (p *Partition) ReservedSectors() uint16 {
	return p.reservedSectors
}

// SectorsPerFat returns the size of one FAT copy in sectors.
func (p *Partition) SectorsPerFat() uint32 {
	return p.sectorsPerFat
}

// RootDirectoryEntries returns the capacity of the FAT16 fixed root
// directory. Zero on FAT32.
func (p *Partition) RootDirectoryEntries() uint16 {
	return p.rootDirectoryEntries
}

// RootCluster returns the first cluster of the FAT32 root directory. Zero
// on FAT16, whose root directory is not chained.
func (p *Partition) RootCluster() ClusterNr {
	return p.rootCluster
}

// Buffer returns the partition's sector buffer. Its contents are whatever
// the last operation left resident.
func (p *Partition) Buffer() []byte {
	return p.buffer
}

// RootOffset returns the first sector after the second FAT: on FAT16 the
// start of the fixed root directory (the data region follows it), on FAT32
// the first data cluster.
func (p *Partition) RootOffset() uint32 {
	return p.partitionLba + uint32(p.reservedSectors) + NumberOfFats*p.sectorsPerFat
}

// rootDirectorySectors is the size of the FAT16 fixed root directory in
// sectors. Zero on FAT32 since the BPB zeroes the entry count there.
func (p *Partition) rootDirectorySectors() uint32 {
	return uint32(p.rootDirectoryEntries) / DirectoryEntriesPerSector
}

// fatSector returns the first sector of the first FAT copy.
func (p *Partition) fatSector() uint32 {
	return p.partitionLba + uint32(p.reservedSectors)
}

// endOfChain returns the variant's end-of-chain sentinel.
func (p *Partition) endOfChain() ClusterNr {
	if p.ptype == PartitionTypeFat16 {
		return EndOfChain16
	}

	return EndOfChain32
}

// readSector loads the given sector into the partition's buffer.
func (p *Partition) readSector(sectorNr uint32) {
	err := p.device.ReadSector(sectorNr, p.buffer)
	log.PanicIf(err)
}

// writeSector persists the partition's buffer to the given sector.
func (p *Partition) writeSector(sectorNr uint32) {
	bdw, ok := p.device.(BlockDeviceWriter)
	if ok != true {
		log.Panic(ErrNotWritable)
	}

	err := bdw.WriteSector(sectorNr, p.buffer)
	log.PanicIf(err)
}

// Dump prints the mounted geometry along with the common calculated
// values.
func (p *Partition) Dump() {
	fmt.Printf("Partition\n")
	fmt.Printf("=========\n")
	fmt.Printf("\n")

	fmt.Printf("Type: [%s]\n", p.ptype)
	fmt.Printf("PartitionLba: (%d)\n", p.partitionLba)
	fmt.Printf("SectorsPerCluster: (%d)\n", p.sectorsPerCluster)
	fmt.Printf("ReservedSectors: (%d)\n", p.reservedSectors)
	fmt.Printf("SectorsPerFat: (%d)\n", p.sectorsPerFat)

	if p.ptype == PartitionTypeFat16 {
		fmt.Printf("RootDirectoryEntries: (%d)\n", p.rootDirectoryEntries)
	} else {
		fmt.Printf("RootCluster: (%d)\n", p.rootCluster)
	}

	fmt.Printf("-> FAT start sector: (%d)\n", p.fatSector())
	fmt.Printf("-> Root offset: (%d)\n", p.RootOffset())
	fmt.Printf("-> First data sector: (%d)\n", p.RootOffset()+p.rootDirectorySectors())

	fmt.Printf("\n")
}

// String returns a description of the partition.
func (p *Partition) String() string {
	return fmt.Sprintf("Partition<TYPE=[%s] LBA=(%d)>", p.ptype, p.partitionLba)
}
