package fat

import (
	"github.com/dsoprea/go-logging"
)

// ramBlockDevice is an in-memory sector transport over a synthetic disk
// image. It counts the I/Os it serves so tests can assert on them.
type ramBlockDevice struct {
	data []byte

	readCount  int
	writeCount int
}

func newRamBlockDevice(data []byte) *ramBlockDevice {
	return &ramBlockDevice{
		data: data,
	}
}

func (rbd *ramBlockDevice) ReadSector(sectorNr uint32, buffer []byte) (err error) {
	offset := int64(sectorNr) * BytesPerSector

	if offset+BytesPerSector > int64(len(rbd.data)) {
		return log.Errorf("sector out of image bounds: (%d)", sectorNr)
	}

	copy(buffer, rbd.data[offset:offset+BytesPerSector])
	rbd.readCount++

	return nil
}

func (rbd *ramBlockDevice) WriteSector(sectorNr uint32, buffer []byte) (err error) {
	offset := int64(sectorNr) * BytesPerSector

	if offset+BytesPerSector > int64(len(rbd.data)) {
		return log.Errorf("sector out of image bounds: (%d)", sectorNr)
	}

	copy(rbd.data[offset:offset+BytesPerSector], buffer)
	rbd.writeCount++

	return nil
}

// readOnlyBlockDevice hides the writer half of a RAM device.
type readOnlyBlockDevice struct {
	rbd *ramBlockDevice
}

func (robd *readOnlyBlockDevice) ReadSector(sectorNr uint32, buffer []byte) (err error) {
	return robd.rbd.ReadSector(sectorNr, buffer)
}

// Synthetic FAT16 image: partition 0 of type 0x06 at LBA 63; four sectors
// per cluster, one reserved sector, 243 sectors per FAT, 512 root-
// directory entries. The FATs start at sector 64, the root directory at
// sector 550, and the data region at sector 582.
const (
	testFat16PartitionLba = uint32(63)
	testFat16FatSector    = uint32(64)
	testFat16RootSector   = uint32(550)
	testFat16DataSector   = uint32(582)

	testFat16SectorsPerCluster = 4
	testFat16TotalSectors      = 700
)

// Synthetic FAT32 image: partition 0 of type 0x0b at LBA 63; two sectors
// per cluster, two reserved sectors, four sectors per FAT, root directory
// at cluster 2. The FATs start at sector 65 and the data region at sector
// 73.
const (
	testFat32PartitionLba = uint32(63)
	testFat32FatSector    = uint32(65)
	testFat32DataSector   = uint32(73)

	testFat32SectorsPerCluster = 2
	testFat32TotalSectors      = 120
)

func putTestPartitionEntry(image []byte, partitionNr int, partitionType byte, startingLba uint32) {
	offset := 446 + partitionNr*16

	image[offset+4] = partitionType
	defaultEncoding.PutUint32(image[offset+8:], startingLba)
}

func putTestMbr(image []byte, partitionType byte, startingLba uint32) {
	putTestPartitionEntry(image, 0, partitionType, startingLba)
	defaultEncoding.PutUint16(image[510:], requiredMbrSignature)
}

func buildFat16Image() []byte {
	image := make([]byte, testFat16TotalSectors*BytesPerSector)

	putTestMbr(image, 0x06, testFat16PartitionLba)

	// BPB.

	bpbOffset := int64(testFat16PartitionLba) * BytesPerSector

	defaultEncoding.PutUint16(image[bpbOffset+0x0b:], BytesPerSector)
	image[bpbOffset+0x0d] = testFat16SectorsPerCluster
	defaultEncoding.PutUint16(image[bpbOffset+0x0e:], 1)
	image[bpbOffset+0x10] = NumberOfFats
	defaultEncoding.PutUint16(image[bpbOffset+0x11:], 512)
	defaultEncoding.PutUint16(image[bpbOffset+0x16:], 243)
	defaultEncoding.PutUint16(image[bpbOffset+510:], requiredMbrSignature)

	// Reserved FAT entries for clusters zero and one.

	putTestFat16Entry(image, 0, 0xfff8)
	putTestFat16Entry(image, 1, 0xffff)

	return image
}

func buildFat32Image() []byte {
	image := make([]byte, testFat32TotalSectors*BytesPerSector)

	putTestMbr(image, 0x0b, testFat32PartitionLba)

	// BPB.

	bpbOffset := int64(testFat32PartitionLba) * BytesPerSector

	defaultEncoding.PutUint16(image[bpbOffset+0x0b:], BytesPerSector)
	image[bpbOffset+0x0d] = testFat32SectorsPerCluster
	defaultEncoding.PutUint16(image[bpbOffset+0x0e:], 2)
	image[bpbOffset+0x10] = NumberOfFats
	defaultEncoding.PutUint32(image[bpbOffset+0x24:], 4)
	defaultEncoding.PutUint32(image[bpbOffset+0x2c:], 2)
	defaultEncoding.PutUint16(image[bpbOffset+510:], requiredMbrSignature)

	// Reserved FAT entries for clusters zero and one, and a single-cluster
	// root-directory chain at cluster two.

	putTestFat32Entry(image, 0, 0x0ffffff8)
	putTestFat32Entry(image, 1, 0x0fffffff)
	putTestFat32Entry(image, 2, uint32(EndOfChain32))

	return image
}

func putTestFat16Entry(image []byte, clusterNr int, value uint16) {
	offset := int64(testFat16FatSector)*BytesPerSector + int64(clusterNr)*2
	defaultEncoding.PutUint16(image[offset:], value)
}

func putTestFat32Entry(image []byte, clusterNr int, value uint32) {
	offset := int64(testFat32FatSector)*BytesPerSector + int64(clusterNr)*4
	defaultEncoding.PutUint32(image[offset:], value)
}

// putTestDirEntry writes a directory entry into the given slot of the
// given sector. An empty name leaves the raw name field untouched so the
// slot keeps reading as end-of-directory.
func putTestDirEntry(image []byte, sectorNr uint32, slotIndex int, name string, attributes EntryAttributes, startCluster ClusterNr, fileSize uint32) {
	offset := int64(sectorNr)*BytesPerSector + int64(slotIndex)*DirectoryEntrySize

	if name != "" {
		copy(image[offset:offset+11], "           ")
		copy(image[offset:], name)
	}

	image[offset+11] = byte(attributes)

	defaultEncoding.PutUint16(image[offset+20:], uint16(startCluster>>16))
	defaultEncoding.PutUint16(image[offset+26:], uint16(startCluster&0xffff))
	defaultEncoding.PutUint32(image[offset+28:], fileSize)
}

// putTestDeletedDirEntry marks a slot as deleted.
func putTestDeletedDirEntry(image []byte, sectorNr uint32, slotIndex int) {
	offset := int64(sectorNr)*BytesPerSector + int64(slotIndex)*DirectoryEntrySize

	copy(image[offset:offset+11], "STALE   TXT")
	image[offset] = firstByteDeleted
}

// fat16ClusterSector returns the first sector of a data cluster in the
// FAT16 test image.
func fat16ClusterSector(clusterNr ClusterNr) uint32 {
	return testFat16DataSector + (uint32(clusterNr)-2)*testFat16SectorsPerCluster
}

// fat32ClusterSector returns the first sector of a data cluster in the
// FAT32 test image.
func fat32ClusterSector(clusterNr ClusterNr) uint32 {
	return testFat32DataSector + (uint32(clusterNr)-2)*testFat32SectorsPerCluster
}

func mountTestImage(image []byte) (rbd *ramBlockDevice, p *Partition) {
	rbd = newRamBlockDevice(image)

	buffer := make([]byte, BytesPerSector)

	p, err := MountPartition(rbd, buffer, 0)
	log.PanicIf(err)

	return rbd, p
}

func mountTestImageReadOnly(image []byte) (rbd *ramBlockDevice, p *Partition) {
	rbd = newRamBlockDevice(image)

	buffer := make([]byte, BytesPerSector)

	p, err := MountPartition(&readOnlyBlockDevice{rbd: rbd}, buffer, 0)
	log.PanicIf(err)

	return rbd, p
}
