package fat

import (
	"bytes"
	"testing"

	"github.com/dsoprea/go-logging"
)

func TestParseMbr(t *testing.T) {
	image := buildFat16Image()

	mbr, err := ParseMbr(image[:BytesPerSector])
	log.PanicIf(err)

	if mbr.Signature != 0xaa55 {
		t.Fatalf("Signature not correct: (0x%04x)", mbr.Signature)
	}

	pe := mbr.PartitionTable[0]

	if pe.Type != 0x06 {
		t.Fatalf("Partition type not correct: (0x%02x)", pe.Type)
	} else if pe.StartingLba != 63 {
		t.Fatalf("Partition LBA not correct: (%d)", pe.StartingLba)
	}

	for i := 1; i < 4; i++ {
		if mbr.PartitionTable[i].Type != 0 {
			t.Fatalf("Partition (%d) not empty.", i)
		}
	}
}

func TestParseMbr_InvalidSignature(t *testing.T) {
	data := make([]byte, BytesPerSector)

	_, err := ParseMbr(data)
	if err == nil {
		t.Fatalf("Expected signature failure.")
	} else if log.Is(err, ErrInvalidMbr) != true {
		t.Fatalf("Error not correct: [%s]", err)
	}
}

func TestParseBiosParameterBlock(t *testing.T) {
	image := buildFat32Image()

	bpbOffset := int64(testFat32PartitionLba) * BytesPerSector

	bpb, err := ParseBiosParameterBlock(image[bpbOffset : bpbOffset+BytesPerSector])
	log.PanicIf(err)

	if bpb.BytesPerSector != 512 {
		t.Fatalf("BytesPerSector not correct: (%d)", bpb.BytesPerSector)
	} else if bpb.SectorsPerCluster != testFat32SectorsPerCluster {
		t.Fatalf("SectorsPerCluster not correct: (%d)", bpb.SectorsPerCluster)
	} else if bpb.ReservedSectors != 2 {
		t.Fatalf("ReservedSectors not correct: (%d)", bpb.ReservedSectors)
	} else if bpb.NumberOfFats != 2 {
		t.Fatalf("NumberOfFats not correct: (%d)", bpb.NumberOfFats)
	} else if bpb.RootDirectoryEntries != 0 {
		t.Fatalf("RootDirectoryEntries not correct: (%d)", bpb.RootDirectoryEntries)
	} else if bpb.SectorsPerFat16 != 0 {
		t.Fatalf("SectorsPerFat16 not correct: (%d)", bpb.SectorsPerFat16)
	} else if bpb.SectorsPerFat32 != 4 {
		t.Fatalf("SectorsPerFat32 not correct: (%d)", bpb.SectorsPerFat32)
	} else if bpb.RootCluster != 2 {
		t.Fatalf("RootCluster not correct: (%d)", bpb.RootCluster)
	}
}

func TestParseDirectoryEntry(t *testing.T) {
	data := make([]byte, BytesPerSector)

	putTestDirEntry(data, 0, 1, "README  TXT", AttributeArchive, 0x00041234, 0x2000)

	de, err := parseDirectoryEntry(data[DirectoryEntrySize : 2*DirectoryEntrySize])
	log.PanicIf(err)

	if string(de.Name[:]) != "README  TXT" {
		t.Fatalf("Name not correct: [%s]", string(de.Name[:]))
	} else if de.Attributes != AttributeArchive {
		t.Fatalf("Attributes not correct: (0x%02x)", uint8(de.Attributes))
	} else if de.StartCluster() != 0x00041234 {
		t.Fatalf("Start cluster not correct: (0x%08x)", uint32(de.StartCluster()))
	} else if de.FileSize != 0x2000 {
		t.Fatalf("File size not correct: (%d)", de.FileSize)
	}
}

func TestPackDirectoryEntry(t *testing.T) {
	de := new(DirectoryEntry)

	name, err := EntryNameFromDottedName("readme.txt")
	log.PanicIf(err)

	de.Name = name
	de.Attributes = AttributeArchive
	de.SetStartCluster(0x00041234)
	de.FileSize = 0x2000

	data, err := packDirectoryEntry(de)
	log.PanicIf(err)

	if len(data) != DirectoryEntrySize {
		t.Fatalf("Packed size not correct: (%d)", len(data))
	}

	recovered, err := parseDirectoryEntry(data)
	log.PanicIf(err)

	if *recovered != *de {
		t.Fatalf("Entry did not round-trip: %s != %s", recovered, de)
	}
}

func TestDirectoryEntry_StartCluster(t *testing.T) {
	de := new(DirectoryEntry)

	de.StartClusterHigh = 0x0004
	de.StartClusterLow = 0x1234

	if de.StartCluster() != 0x00041234 {
		t.Fatalf("Start cluster not correct: (0x%08x)", uint32(de.StartCluster()))
	}

	de.SetStartCluster(0x00123456)

	if de.StartClusterHigh != 0x0012 {
		t.Fatalf("High half not correct: (0x%04x)", de.StartClusterHigh)
	} else if de.StartClusterLow != 0x3456 {
		t.Fatalf("Low half not correct: (0x%04x)", de.StartClusterLow)
	}
}

func TestDirectoryEntry_Classification(t *testing.T) {
	de := new(DirectoryEntry)
	copy(de.Name[:], "README  TXT")

	de.Attributes = AttributeArchive

	if de.IsFile() != true {
		t.Fatalf("Archive entry should be a file.")
	} else if de.IsDirectory() != false {
		t.Fatalf("Archive entry should not be a directory.")
	} else if de.IsLongFileName() != false {
		t.Fatalf("Archive entry should not be a long-filename slot.")
	}

	de.Attributes = AttributeDirectory

	if de.IsDirectory() != true {
		t.Fatalf("Directory flag not detected.")
	} else if de.IsFile() != false {
		t.Fatalf("Directory entry should not be a file.")
	}

	de.Attributes = AttributeVolumeId

	if de.IsVolumeId() != true {
		t.Fatalf("Volume-label flag not detected.")
	} else if de.IsFile() != false {
		t.Fatalf("Volume-label entry should not be a file.")
	}

	de.Attributes = AttributeLongName

	if de.IsLongFileName() != true {
		t.Fatalf("Long-filename slot not detected.")
	}

	de.Name[0] = 0xe5

	if de.IsDeleted() != true {
		t.Fatalf("Deleted slot not detected.")
	}

	de.Name[0] = 0x00

	if de.IsEndOfDirectory() != true {
		t.Fatalf("End-of-directory slot not detected.")
	}
}

func TestEntryAttributes_Flags(t *testing.T) {
	ea := AttributeReadOnly | AttributeHidden

	if ea.IsReadOnly() != true {
		t.Fatalf("Read-only flag not detected.")
	} else if ea.IsHidden() != true {
		t.Fatalf("Hidden flag not detected.")
	} else if ea.IsSystem() != false {
		t.Fatalf("System flag detected unexpectedly.")
	} else if ea.IsDirectory() != false {
		t.Fatalf("Directory flag detected unexpectedly.")
	}
}

func TestMbr_Dump(t *testing.T) {
	image := buildFat16Image()

	mbr, err := ParseMbr(image[:BytesPerSector])
	log.PanicIf(err)

	mbr.Dump()
}

func TestEntryName_String(t *testing.T) {
	var en EntryName
	copy(en[:], "README  TXT")

	if en.String() != "README.TXT" {
		t.Fatalf("Dotted name not correct: [%s]", en)
	}
}

func TestPartitionEntry_IsBootable(t *testing.T) {
	image := buildFat16Image()

	image[446] = 0x80

	mbr, err := ParseMbr(image[:BytesPerSector])
	log.PanicIf(err)

	if mbr.PartitionTable[0].IsBootable() != true {
		t.Fatalf("Bootable flag not detected.")
	} else if mbr.PartitionTable[1].IsBootable() != false {
		t.Fatalf("Bootable flag detected unexpectedly.")
	}
}

func TestParseDirectoryEntry_RawNameBytes(t *testing.T) {
	data := make([]byte, DirectoryEntrySize)

	copy(data, "NO EXT     ")

	de, err := parseDirectoryEntry(data)
	log.PanicIf(err)

	if bytes.Equal(de.Name[:], []byte("NO EXT     ")) != true {
		t.Fatalf("Raw name not preserved: [%s]", string(de.Name[:]))
	}
}
