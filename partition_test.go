package fat

import (
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestMountPartition_Fat16(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat16Image())

	if p.Type() != PartitionTypeFat16 {
		t.Fatalf("Partition type not correct: [%s]", p.Type())
	} else if p.PartitionLba() != 63 {
		t.Fatalf("Partition LBA not correct: (%d)", p.PartitionLba())
	} else if p.ReservedSectors() != 1 {
		t.Fatalf("Reserved sectors not correct: (%d)", p.ReservedSectors())
	} else if p.SectorsPerFat() != 243 {
		t.Fatalf("Sectors-per-FAT not correct: (%d)", p.SectorsPerFat())
	} else if p.SectorsPerCluster() != 4 {
		t.Fatalf("Sectors-per-cluster not correct: (%d)", p.SectorsPerCluster())
	} else if p.RootDirectoryEntries() != 512 {
		t.Fatalf("Root-directory entries not correct: (%d)", p.RootDirectoryEntries())
	}

	// 63 + 1 + 2*243 == 550, and the data region follows the 32 root-
	// directory sectors at 582.

	if p.RootOffset() != 550 {
		t.Fatalf("Root offset not correct: (%d)", p.RootOffset())
	} else if p.RootOffset()+p.rootDirectorySectors() != 582 {
		t.Fatalf("First data sector not correct: (%d)", p.RootOffset()+p.rootDirectorySectors())
	}
}

func TestMountPartition_Fat32(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat32Image())

	if p.Type() != PartitionTypeFat32 {
		t.Fatalf("Partition type not correct: [%s]", p.Type())
	} else if p.PartitionLba() != 63 {
		t.Fatalf("Partition LBA not correct: (%d)", p.PartitionLba())
	} else if p.ReservedSectors() != 2 {
		t.Fatalf("Reserved sectors not correct: (%d)", p.ReservedSectors())
	} else if p.SectorsPerFat() != 4 {
		t.Fatalf("Sectors-per-FAT not correct: (%d)", p.SectorsPerFat())
	} else if p.RootCluster() != 2 {
		t.Fatalf("Root cluster not correct: (%d)", p.RootCluster())
	} else if p.RootDirectoryEntries() != 0 {
		t.Fatalf("Root-directory entries not correct: (%d)", p.RootDirectoryEntries())
	}

	if p.RootOffset() != 73 {
		t.Fatalf("Root offset not correct: (%d)", p.RootOffset())
	}
}

func TestMountPartition_Remount(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	image := buildFat16Image()

	_, p1 := mountTestImage(image)
	_, p2 := mountTestImage(image)

	if p1.Type() != p2.Type() || p1.PartitionLba() != p2.PartitionLba() || p1.SectorsPerFat() != p2.SectorsPerFat() || p1.SectorsPerCluster() != p2.SectorsPerCluster() || p1.RootDirectoryEntries() != p2.RootDirectoryEntries() {
		t.Fatalf("Remount produced different geometry.")
	}
}

func TestMountPartition_InvalidMbr(t *testing.T) {
	image := buildFat16Image()

	// Break the signature.
	defaultEncoding.PutUint16(image[510:], 0)

	rbd := newRamBlockDevice(image)
	buffer := make([]byte, BytesPerSector)

	_, err := MountPartition(rbd, buffer, 0)
	if err == nil {
		t.Fatalf("Expected mount failure.")
	} else if log.Is(err, ErrInvalidMbr) != true {
		t.Fatalf("Error not correct: [%s]", err)
	}
}

func TestMountPartition_UnsupportedPartitionType(t *testing.T) {
	image := buildFat16Image()

	// NTFS.
	image[446+4] = 0x07

	rbd := newRamBlockDevice(image)
	buffer := make([]byte, BytesPerSector)

	_, err := MountPartition(rbd, buffer, 0)
	if err == nil {
		t.Fatalf("Expected mount failure.")
	} else if log.Is(err, ErrUnsupportedPartitionType) != true {
		t.Fatalf("Error not correct: [%s]", err)
	}

	// The type byte comes out of the MBR; the volume itself is never
	// touched.
	if rbd.readCount != 1 {
		t.Fatalf("Expected exactly one sector read: (%d)", rbd.readCount)
	}
}

func TestMountPartition_UnsupportedGeometry(t *testing.T) {
	image := buildFat16Image()

	bpbOffset := int64(testFat16PartitionLba) * BytesPerSector
	image[bpbOffset+0x10] = 1

	rbd := newRamBlockDevice(image)
	buffer := make([]byte, BytesPerSector)

	_, err := MountPartition(rbd, buffer, 0)
	if err == nil {
		t.Fatalf("Expected mount failure.")
	} else if log.Is(err, ErrUnsupportedGeometry) != true {
		t.Fatalf("Error not correct: [%s]", err)
	}
}

func TestMountPartition_ReadCount(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	rbd, _ := mountTestImage(buildFat16Image())

	// The MBR and the BPB.
	if rbd.readCount != 2 {
		t.Fatalf("Mount read-count not correct: (%d)", rbd.readCount)
	}
}

func TestPartition_Dump(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat16Image())

	p.Dump()
}
