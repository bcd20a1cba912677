// This package manages the low-level, on-disk storage structures.

package fat

import (
	"fmt"
	"reflect"

	"encoding/binary"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	// BytesPerSector is the fixed transport sector-size. Every read and
	// write moves exactly this many bytes.
	BytesPerSector = 512

	// NumberOfFats is the number of FAT copies on the volume. The layout
	// arithmetic assumes exactly two; the mount rejects anything else.
	NumberOfFats = 2

	// DirectoryEntrySize is the on-disk size of one directory entry.
	DirectoryEntrySize = 32

	// DirectoryEntriesPerSector is how many directory entries fit into one
	// sector.
	DirectoryEntriesPerSector = BytesPerSector / DirectoryEntrySize
)

const (
	requiredMbrSignature = uint16(0xaa55)

	firstByteDeleted        = 0xe5
	firstByteEndOfDirectory = 0x00
)

var (
	defaultEncoding = binary.LittleEndian
)

// ClusterNr identifies one cluster in the data region. Values zero and one
// are reserved; data clusters are numbered from two. FAT16 chains terminate
// on 0xffff and FAT32 chains on 0x0fffffff.
type ClusterNr uint32

const (
	// EndOfChain16 is the FAT16 end-of-chain sentinel.
	EndOfChain16 = ClusterNr(0xffff)

	// EndOfChain32 is the FAT32 end-of-chain sentinel. Only the low
	// twenty-eight bits of a FAT32 entry carry the cluster number.
	EndOfChain32 = ClusterNr(0x0fffffff)

	fat32ClusterMask = uint32(0x0fffffff)
)

// PartitionEntry is one of the four slots in the MBR partition table.
type PartitionEntry struct {
	// BootIndicator: 0x80 marks the partition as bootable. Any other value
	// is inert.
	BootIndicator uint8

	// StartingChs is the legacy cylinder/head/sector address of the first
	// sector. Not interpreted; the LBA fields are authoritative.
	StartingChs [3]byte

	// Type identifies the filesystem occupying the partition. FAT16 uses
	// 0x04, 0x06, and 0x0e; FAT32 uses 0x0b and 0x0c.
	Type uint8

	// EndingChs is the legacy address of the last sector. Not interpreted.
	EndingChs [3]byte

	// StartingLba is the absolute sector number where the partition begins.
	StartingLba uint32

	// SectorCount is the partition length in sectors.
	SectorCount uint32
}

// IsBootable indicates whether the boot-indicator flag is set.
func (pe PartitionEntry) IsBootable() bool {
	return pe.BootIndicator == 0x80
}

// String returns a description of the partition entry.
func (pe PartitionEntry) String() string {
	return fmt.Sprintf("PartitionEntry<TYPE=(0x%02x) LBA=(%d) SECTORS=(%d)>", pe.Type, pe.StartingLba, pe.SectorCount)
}

// DumpBareIndented prints the partition entry with arbitrary indentation.
func (pe PartitionEntry) DumpBareIndented(indent string) {
	fmt.Printf("%sType: (0x%02x)\n", indent, pe.Type)
	fmt.Printf("%sBootable: [%v]\n", indent, pe.IsBootable())
	fmt.Printf("%sStarting LBA: (%d)\n", indent, pe.StartingLba)
	fmt.Printf("%sSector count: (%d)\n", indent, pe.SectorCount)
}

// Mbr describes disk sector zero: the bootstrap area, the four-entry
// partition table, and the trailing signature.
type Mbr struct {
	// Bootstrap is the boot-loader machine code. Not interpreted.
	Bootstrap [446]byte

	// PartitionTable is the four-entry partition table starting at byte
	// 446. Each entry is sixteen bytes.
	PartitionTable [4]PartitionEntry

	// Signature must be 0xaa55 for the sector to be a valid MBR.
	Signature uint16
}

// Dump prints the partition table.
func (mbr *Mbr) Dump() {
	fmt.Printf("Master Boot Record\n")
	fmt.Printf("==================\n")
	fmt.Printf("\n")

	fmt.Printf("Signature: (0x%04x)\n", mbr.Signature)
	fmt.Printf("\n")

	for i, pe := range mbr.PartitionTable {
		fmt.Printf("Partition %d\n", i)
		pe.DumpBareIndented("  ")
		fmt.Printf("\n")
	}
}

// ParseMbr decodes the given sector as an MBR and validates its signature.
func ParseMbr(data []byte) (mbr *Mbr, err error) {
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

	mbr = new(Mbr)

	err = restruct.Unpack(data[:BytesPerSector], defaultEncoding, mbr)
	log.PanicIf(err)

	if mbr.Signature != requiredMbrSignature {
		log.Panic(ErrInvalidMbr)
	}

	return mbr, nil
}

// BiosParameterBlock is the leading portion of a partition's first sector.
// It covers the fields shared by FAT16 and FAT32 plus the FAT32 extension
// up through the root-directory cluster.
type BiosParameterBlock struct {
	// JumpBoot is the jump instruction to the boot code. Not interpreted.
	JumpBoot [3]byte

	// OemName identifies the formatting system. Not interpreted.
	OemName [8]byte

	// BytesPerSector is the sector size the volume was formatted with.
	// This driver requires 512.
	BytesPerSector uint16

	// SectorsPerCluster is the cluster size in sectors: a power of two
	// between 1 and 128.
	SectorsPerCluster uint8

	// ReservedSectors is the number of sectors preceding the first FAT,
	// counted from the start of the partition. Never zero; the BPB sector
	// itself is part of the reserved region.
	ReservedSectors uint16

	// NumberOfFats is the number of FAT copies. The value is two on any
	// volume this driver accepts.
	NumberOfFats uint8

	// RootDirectoryEntries is the capacity of the fixed FAT16 root
	// directory, in 32-byte entries. Zero on FAT32, where the root
	// directory is an ordinary cluster chain.
	RootDirectoryEntries uint16

	// TotalSectors16 is the volume size in sectors when it fits in sixteen
	// bits, else zero.
	TotalSectors16 uint16

	// Media is the legacy media-descriptor byte. Not interpreted.
	Media uint8

	// SectorsPerFat16 is the size of one FAT copy in sectors on FAT16.
	// Zero on FAT32.
	SectorsPerFat16 uint16

	// SectorsPerTrack is legacy disk geometry. Not interpreted.
	SectorsPerTrack uint16

	// NumberOfHeads is legacy disk geometry. Not interpreted.
	NumberOfHeads uint16

	// HiddenSectors is the number of sectors preceding the partition. Not
	// interpreted; the MBR partition entry is authoritative for placement.
	HiddenSectors uint32

	// TotalSectors32 is the volume size in sectors when TotalSectors16 is
	// zero.
	TotalSectors32 uint32

	// SectorsPerFat32 is the size of one FAT copy in sectors on FAT32.
	SectorsPerFat32 uint32

	// ExtFlags carries the FAT32 mirroring flags. Not interpreted; this
	// driver always reads the first FAT copy.
	ExtFlags uint16

	// FsVersion is the FAT32 version field. Not interpreted.
	FsVersion uint16

	// RootCluster is the first cluster of the FAT32 root directory,
	// normally two. Unused on FAT16.
	RootCluster uint32
}

// ParseBiosParameterBlock decodes the leading fields of a partition's
// first sector.
func ParseBiosParameterBlock(data []byte) (bpb *BiosParameterBlock, err error) {
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

	bpb = new(BiosParameterBlock)

	err = restruct.Unpack(data[:BytesPerSector], defaultEncoding, bpb)
	log.PanicIf(err)

	return bpb, nil
}

// Dump prints the BPB parameters.
func (bpb *BiosParameterBlock) Dump() {
	fmt.Printf("BIOS Parameter Block\n")
	fmt.Printf("====================\n")
	fmt.Printf("\n")

	fmt.Printf("OemName: [%s]\n", string(bpb.OemName[:]))
	fmt.Printf("BytesPerSector: (%d)\n", bpb.BytesPerSector)
	fmt.Printf("SectorsPerCluster: (%d)\n", bpb.SectorsPerCluster)
	fmt.Printf("ReservedSectors: (%d)\n", bpb.ReservedSectors)
	fmt.Printf("NumberOfFats: (%d)\n", bpb.NumberOfFats)
	fmt.Printf("RootDirectoryEntries: (%d)\n", bpb.RootDirectoryEntries)
	fmt.Printf("SectorsPerFat16: (%d)\n", bpb.SectorsPerFat16)
	fmt.Printf("SectorsPerFat32: (%d)\n", bpb.SectorsPerFat32)
	fmt.Printf("RootCluster: (%d)\n", bpb.RootCluster)
	fmt.Printf("\n")
}

// EntryAttributes is the attribute bitmask of a directory entry.
type EntryAttributes uint8

const (
	// AttributeReadOnly marks the entry as write-protected.
	AttributeReadOnly EntryAttributes = 0x01

	// AttributeHidden excludes the entry from normal listings.
	AttributeHidden EntryAttributes = 0x02

	// AttributeSystem marks the entry as belonging to the operating
	// system.
	AttributeSystem EntryAttributes = 0x04

	// AttributeVolumeId marks the entry as the volume label.
	AttributeVolumeId EntryAttributes = 0x08

	// AttributeDirectory marks the entry as a subdirectory.
	AttributeDirectory EntryAttributes = 0x10

	// AttributeArchive marks the entry as modified since the last backup.
	AttributeArchive EntryAttributes = 0x20

	// AttributeLongName is the combination a VFAT long-filename slot
	// carries in its low nibble. Such slots are skipped wholesale.
	AttributeLongName = AttributeReadOnly | AttributeHidden | AttributeSystem | AttributeVolumeId
)

// IsReadOnly indicates whether the read-only flag is set.
func (ea EntryAttributes) IsReadOnly() bool {
	return ea&AttributeReadOnly > 0
}

// IsHidden indicates whether the hidden flag is set.
func (ea EntryAttributes) IsHidden() bool {
	return ea&AttributeHidden > 0
}

// IsSystem indicates whether the system flag is set.
func (ea EntryAttributes) IsSystem() bool {
	return ea&AttributeSystem > 0
}

// IsVolumeId indicates whether the volume-label flag is set.
func (ea EntryAttributes) IsVolumeId() bool {
	return ea&AttributeVolumeId > 0
}

// IsDirectory indicates whether the directory flag is set.
func (ea EntryAttributes) IsDirectory() bool {
	return ea&AttributeDirectory > 0
}

// IsArchive indicates whether the archive flag is set.
func (ea EntryAttributes) IsArchive() bool {
	return ea&AttributeArchive > 0
}

// DumpBareIndented prints the attributes with arbitrary indentation.
func (ea EntryAttributes) DumpBareIndented(indent string) {
	fmt.Printf("%sRaw Value: (%08b)\n", indent, uint8(ea))
	fmt.Printf("%sIsReadOnly: [%v]\n", indent, ea.IsReadOnly())
	fmt.Printf("%sIsHidden: [%v]\n", indent, ea.IsHidden())
	fmt.Printf("%sIsSystem: [%v]\n", indent, ea.IsSystem())
	fmt.Printf("%sIsVolumeId: [%v]\n", indent, ea.IsVolumeId())
	fmt.Printf("%sIsDirectory: [%v]\n", indent, ea.IsDirectory())
	fmt.Printf("%sIsArchive: [%v]\n", indent, ea.IsArchive())
}

// EntryName is the raw 11-byte 8.3 name field: eight base bytes then three
// extension bytes, each left-justified and space-padded, upper case, with
// no stored dot. Matching is byte-exact.
type EntryName [11]byte

// String returns the dotted rendition of the name ("README.TXT").
func (en EntryName) String() string {
	return DottedNameFromEntryName(en)
}

// DirectoryEntry is one 32-byte directory record describing a file, a
// subdirectory, or the volume label. All multibyte fields are little-
// endian.
type DirectoryEntry struct {
	// Name is the raw 8.3 name. The first byte doubles as the slot state:
	// 0x00 means this and every following slot have never been used, and
	// 0xe5 means the slot is deleted and reusable.
	Name EntryName

	// Attributes is the attribute bitmask. The value 0x0f in the low
	// nibble marks a long-filename slot.
	Attributes EntryAttributes

	// ReservedNt is reserved for Windows NT. Preserved, not interpreted.
	ReservedNt uint8

	// CreationTimeTenth refines the creation time in 10ms units. Valid
	// values are 0-199.
	CreationTimeTenth uint8

	// CreationTime is the creation time in FAT two-second resolution.
	CreationTime uint16

	// CreationDate is the creation date.
	CreationDate uint16

	// LastAccessDate is the last-access date.
	LastAccessDate uint16

	// StartClusterHigh is the upper sixteen bits of the start cluster.
	// Always zero on FAT16.
	StartClusterHigh uint16

	// ModificationTime is the last-modification time.
	ModificationTime uint16

	// ModificationDate is the last-modification date.
	ModificationDate uint16

	// StartClusterLow is the lower sixteen bits of the start cluster.
	StartClusterLow uint16

	// FileSize is the file size in bytes. Zero for subdirectories.
	FileSize uint32
}

// IsDeleted indicates whether the slot has been released and may be
// reused.
func (de *DirectoryEntry) IsDeleted() bool {
	return de.Name[0] == firstByteDeleted
}

// IsEndOfDirectory indicates whether the slot marks the end of the
// directory. No slot after it has ever been used.
func (de *DirectoryEntry) IsEndOfDirectory() bool {
	return de.Name[0] == firstByteEndOfDirectory
}

// IsLongFileName indicates whether the slot is a VFAT long-filename
// fragment. Such slots carry no entry of their own and are skipped.
func (de *DirectoryEntry) IsLongFileName() bool {
	return de.Attributes&0x0f == AttributeLongName
}

// IsVolumeId indicates whether the entry is the volume label. Only valid
// once the entry is known not to be a long-filename slot.
func (de *DirectoryEntry) IsVolumeId() bool {
	return de.Attributes.IsVolumeId()
}

// IsDirectory indicates whether the entry is a subdirectory. Only valid
// once the entry is known not to be a long-filename slot.
func (de *DirectoryEntry) IsDirectory() bool {
	return de.Attributes.IsDirectory()
}

// IsFile indicates whether the entry is a plain file. Only valid once the
// entry is known not to be a long-filename slot.
func (de *DirectoryEntry) IsFile() bool {
	return de.Attributes&(AttributeVolumeId|AttributeDirectory) == 0
}

// StartCluster returns the first cluster of the entry's data. The high
// half is always zero on FAT16, so the combination is valid for both
// variants.
func (de *DirectoryEntry) StartCluster() ClusterNr {
	return ClusterNr(de.StartClusterHigh)<<16 | ClusterNr(de.StartClusterLow)
}

// SetStartCluster stores the first cluster into the entry's split
// high/low fields.
func (de *DirectoryEntry) SetStartCluster(clusterNr ClusterNr) {
	de.StartClusterHigh = uint16(clusterNr >> 16)
	de.StartClusterLow = uint16(clusterNr & 0xffff)
}

// String returns a description of the entry.
func (de *DirectoryEntry) String() string {
	return fmt.Sprintf("DirectoryEntry<NAME=[%s] ATTRIBUTES=(0x%02x) CLUSTER=(%d) SIZE=(%d)>", string(de.Name[:]), uint8(de.Attributes), de.StartCluster(), de.FileSize)
}

// Dump prints the entry's fields.
func (de *DirectoryEntry) Dump() {
	fmt.Printf("Directory Entry\n")
	fmt.Printf("===============\n")
	fmt.Printf("\n")

	fmt.Printf("Name: [%s]\n", string(de.Name[:]))
	fmt.Printf("StartCluster: (%d)\n", de.StartCluster())
	fmt.Printf("FileSize: (%d)\n", de.FileSize)
	fmt.Printf("\n")

	fmt.Printf("Attributes: (0x%02x)\n", uint8(de.Attributes))
	de.Attributes.DumpBareIndented("  ")

	fmt.Printf("\n")
}

func parseDirectoryEntry(data []byte) (de *DirectoryEntry, err error) {
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

	de = new(DirectoryEntry)

	err = restruct.Unpack(data[:DirectoryEntrySize], defaultEncoding, de)
	log.PanicIf(err)

	return de, nil
}

func packDirectoryEntry(de *DirectoryEntry) (data []byte, err error) {
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

	data, err = restruct.Pack(defaultEncoding, de)
	log.PanicIf(err)

	return data, nil
}
