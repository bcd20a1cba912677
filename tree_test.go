package fat

import (
	"reflect"
	"testing"

	"github.com/dsoprea/go-logging"
)

// buildFat16TreeFixture returns the FAT16 image with a small hierarchy:
//
//	ALPHA.TXT
//	SUBDIR\NESTED.TXT
func buildFat16TreeFixture() []byte {
	image := buildFat16Image()

	putTestDirEntry(image, testFat16RootSector, 0, "VOLLABEL   ", AttributeVolumeId, 0, 0)
	putTestDirEntry(image, testFat16RootSector, 1, "ALPHA   TXT", AttributeArchive, 9, 100)
	putTestDirEntry(image, testFat16RootSector, 2, "SUBDIR     ", AttributeDirectory, 3, 0)

	putTestFat16Entry(image, 3, 0xffff)

	putTestDirEntry(image, fat16ClusterSector(3), 0, ".          ", AttributeDirectory, 3, 0)
	putTestDirEntry(image, fat16ClusterSector(3), 1, "..         ", AttributeDirectory, 0, 0)
	putTestDirEntry(image, fat16ClusterSector(3), 2, "NESTED  TXT", AttributeArchive, 10, 200)

	return image
}

func TestTree_List(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat16TreeFixture())

	tree := NewTree(p)

	err := tree.Load()
	log.PanicIf(err)

	files, nodes, err := tree.List()
	log.PanicIf(err)

	expectedFiles := []string{
		"SUBDIR",
		`SUBDIR\NESTED.TXT`,
		"ALPHA.TXT",
	}

	if reflect.DeepEqual(files, expectedFiles) != true {
		t.Fatalf("Listed paths not correct: %v != %v", files, expectedFiles)
	}

	node := nodes[`SUBDIR\NESTED.TXT`]

	if node.IsDirectory() != false {
		t.Fatalf("Nested file should not be a directory.")
	} else if node.DirectoryEntry().FileSize != 200 {
		t.Fatalf("Nested file size not correct: (%d)", node.DirectoryEntry().FileSize)
	}
}

func TestTree_Lookup(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat16TreeFixture())

	tree := NewTree(p)

	err := tree.Load()
	log.PanicIf(err)

	node, err := tree.Lookup([]string{"SUBDIR", "NESTED.TXT"})
	log.PanicIf(err)

	if node == nil {
		t.Fatalf("Nested file not found.")
	} else if node.Name() != "NESTED.TXT" {
		t.Fatalf("Node name not correct: [%s]", node.Name())
	} else if node.DirectoryEntry().StartCluster() != 10 {
		t.Fatalf("Node start cluster not correct: (%d)", node.DirectoryEntry().StartCluster())
	}

	missingNode, err := tree.Lookup([]string{"SUBDIR", "MISSING.TXT"})
	log.PanicIf(err)

	if missingNode != nil {
		t.Fatalf("Unexpected node found.")
	}
}

func TestTree_Lookup_Directory(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat16TreeFixture())

	tree := NewTree(p)

	err := tree.Load()
	log.PanicIf(err)

	node, err := tree.Lookup([]string{"SUBDIR"})
	log.PanicIf(err)

	if node == nil {
		t.Fatalf("Directory not found.")
	} else if node.IsDirectory() != true {
		t.Fatalf("Node should be a directory.")
	}
}

func TestTree_ChildLists(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	_, p := mountTestImage(buildFat16TreeFixture())

	tree := NewTree(p)

	err := tree.Load()
	log.PanicIf(err)

	rootNode, err := tree.Lookup([]string{})
	log.PanicIf(err)

	expectedFolders := []string{"SUBDIR"}
	expectedFiles := []string{"ALPHA.TXT"}

	if reflect.DeepEqual(rootNode.ChildFolders(), expectedFolders) != true {
		t.Fatalf("Child folders not correct: %v", rootNode.ChildFolders())
	} else if reflect.DeepEqual(rootNode.ChildFiles(), expectedFiles) != true {
		t.Fatalf("Child files not correct: %v", rootNode.ChildFiles())
	}

	// The volume label and the dot entries never become nodes.

	if rootNode.GetChild("VOLLABEL") != nil {
		t.Fatalf("Volume label leaked into the tree.")
	}

	subdirNode := rootNode.GetChild("SUBDIR")

	err = tree.loadDirectory(subdirNode)
	log.PanicIf(err)

	if subdirNode.GetChild(".") != nil || subdirNode.GetChild("..") != nil {
		t.Fatalf("Dot entries leaked into the tree.")
	}
}

func TestTree_Fat32(t *testing.T) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err := errRaw.(error)

			log.PrintError(err)
			t.Fatalf("Test failed.")
		}
	}()

	image := buildFat32Image()

	putTestDirEntry(image, fat32ClusterSector(2), 0, "KERNEL  IMG", AttributeArchive, 8, 4096)

	_, p := mountTestImage(image)

	tree := NewTree(p)

	err := tree.Load()
	log.PanicIf(err)

	files, _, err := tree.List()
	log.PanicIf(err)

	expectedFiles := []string{
		"KERNEL.IMG",
	}

	if reflect.DeepEqual(files, expectedFiles) != true {
		t.Fatalf("Listed paths not correct: %v != %v", files, expectedFiles)
	}
}
