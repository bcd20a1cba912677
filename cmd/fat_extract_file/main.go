package main

import (
	"os"
	"strings"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-fat"
)

type rootParameters struct {
	Filepath       string `short:"f" long:"filepath" description:"File-path of disk image" required:"true"`
	PartitionNr    int    `short:"n" long:"partition" description:"Partition number (0-3)" default:"0"`
	ExtractPath    string `short:"e" long:"extract" description:"Path of file to extract (separated by forward-slashes)" required:"true"`
	OutputFilepath string `short:"o" long:"output" description:"Output file-path ('-' for STDOUT)" default:"-"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	f, err := os.Open(rootArguments.Filepath)
	log.PanicIf(err)

	defer f.Close()

	fbd := fat.NewFileBlockDevice(f)
	buffer := make([]byte, fat.BytesPerSector)

	partition, err := fat.MountPartition(fbd, buffer, rootArguments.PartitionNr)
	log.PanicIf(err)

	tree := fat.NewTree(partition)

	err = tree.Load()
	log.PanicIf(err)

	pathParts := strings.Split(rootArguments.ExtractPath, "/")

	node, err := tree.Lookup(pathParts)
	log.PanicIf(err)

	if node == nil {
		log.Panicf("file not found: [%s]", rootArguments.ExtractPath)
	} else if node.IsDirectory() == true {
		log.Panicf("path is a directory: [%s]", rootArguments.ExtractPath)
	}

	var out *os.File
	if rootArguments.OutputFilepath == "-" {
		out = os.Stdout
	} else {
		out, err = os.Create(rootArguments.OutputFilepath)
		log.PanicIf(err)

		defer out.Close()
	}

	de := node.DirectoryEntry()

	if de.FileSize == 0 {
		// An empty file has no chain; its start cluster is zero.
		return
	}

	// Stream the cluster chain, trimming the final sector to the recorded
	// file size.

	loc := new(fat.Location)

	partition.Seek(loc, de.StartCluster())

	err = partition.ReadFirstSector(loc)
	log.PanicIf(err)

	remaining := int64(de.FileSize)

	for remaining > 0 && partition.IsCurrentClusterValid(loc) == true {
		sectorData := partition.Buffer()
		if remaining < fat.BytesPerSector {
			sectorData = sectorData[:remaining]
		}

		_, err := out.Write(sectorData)
		log.PanicIf(err)

		remaining -= int64(len(sectorData))

		if remaining > 0 {
			err := partition.ReadNextSector(loc)
			log.PanicIf(err)
		}
	}

	if remaining > 0 {
		log.Panicf("cluster chain ended before the recorded file size: (%d) bytes missing", remaining)
	}
}
