package main

import (
	"fmt"
	"os"

	"path/filepath"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-fat"
)

type rootParameters struct {
	Filepath       string `short:"f" long:"filepath" description:"File-path of disk image" required:"true"`
	PartitionNr    int    `short:"n" long:"partition" description:"Partition number (0-3)" default:"0"`
	FilenameFilter string `short:"p" long:"pattern" description:"Filename filter"`
	ShowDetail     bool   `short:"d" long:"detail" description:"Show additional entry detail"`
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

	files, nodes, err := tree.List()
	log.PanicIf(err)

	for _, currentFilepath := range files {
		node := nodes[currentFilepath]

		if rootArguments.FilenameFilter != "" {
			// The full paths are separated by Windows-standard backward-
			// slashes and won't necessarily split correctly on all
			// platforms, so just match against the name from the node.
			filename := node.Name()

			isMatched, err := filepath.Match(rootArguments.FilenameFilter, filename)
			log.PanicIf(err)

			if isMatched != true {
				continue
			}
		}

		de := node.DirectoryEntry()

		if rootArguments.ShowDetail == true {
			fmt.Printf("## %s\n", currentFilepath)
			fmt.Printf("\n")

			de.Dump()
		} else if node.IsDirectory() == true {
			fmt.Printf("%15s %s\n", "<DIR>", currentFilepath)
		} else {
			fmt.Printf("%15s %s\n", humanize.Comma(int64(de.FileSize)), currentFilepath)
		}
	}
}
