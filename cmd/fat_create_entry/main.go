package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-fat"
)

type rootParameters struct {
	Filepath         string `short:"f" long:"filepath" description:"File-path of disk image" required:"true"`
	PartitionNr      int    `short:"n" long:"partition" description:"Partition number (0-3)" default:"0"`
	EntryName        string `short:"e" long:"entry-name" description:"Name of the entry to create (8.3, dotted)" required:"true"`
	DirectoryCluster uint32 `short:"d" long:"directory-cluster" description:"Start cluster of the directory to create in (0 for the root directory)" default:"0"`
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

	f, err := os.OpenFile(rootArguments.Filepath, os.O_RDWR, 0)
	log.PanicIf(err)

	defer f.Close()

	fbdw := fat.NewFileBlockDeviceWriter(f)
	buffer := make([]byte, fat.BytesPerSector)

	partition, err := fat.MountPartition(fbdw, buffer, rootArguments.PartitionNr)
	log.PanicIf(err)

	name, err := fat.EntryNameFromDottedName(rootArguments.EntryName)
	log.PanicIf(err)

	dl := new(fat.DirectoryLocation)

	if rootArguments.DirectoryCluster == 0 {
		_, err = partition.CreateRootDirEntry(dl)
		log.PanicIf(err)
	} else {
		_, err = partition.CreateDirEntry(fat.ClusterNr(rootArguments.DirectoryCluster), dl)
		log.PanicIf(err)
	}

	err = partition.InitDirEntry(dl, name)
	log.PanicIf(err)

	fmt.Printf("Created [%s] at %s\n", name, dl)
}
