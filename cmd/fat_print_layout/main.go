package main

import (
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-fat"
)

type rootParameters struct {
	Filepath    string `short:"f" long:"filepath" description:"File-path of disk image" required:"true"`
	PartitionNr int    `short:"n" long:"partition" description:"Partition number (0-3)" default:"0"`
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

	// Show the partition table first.

	err = fbd.ReadSector(0, buffer)
	log.PanicIf(err)

	mbr, err := fat.ParseMbr(buffer)
	log.PanicIf(err)

	mbr.Dump()

	// Then the mounted geometry of the selected partition.

	partition, err := fat.MountPartition(fbd, buffer, rootArguments.PartitionNr)
	log.PanicIf(err)

	partition.Dump()
}
