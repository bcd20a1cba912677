// This package reads and mutates the file-allocation table. It is the only
// place that interprets FAT entries.

package fat

import (
	"reflect"

	"github.com/dsoprea/go-logging"
)

// fatEntrySize is the on-disk size of one FAT entry for the variant.
func (p *Partition) fatEntrySize() uint32 {
	if p.ptype == PartitionTypeFat16 {
		return 2
	}

	return 4
}

// loadFatEntry reads one FAT entry out of the resident sector. FAT32
// entries only carry a cluster number in their low twenty-eight bits.
func (p *Partition) loadFatEntry(offset uint32) ClusterNr {
	if p.ptype == PartitionTypeFat16 {
		return ClusterNr(defaultEncoding.Uint16(p.buffer[offset:]))
	}

	return ClusterNr(defaultEncoding.Uint32(p.buffer[offset:]) & fat32ClusterMask)
}

// storeFatEntry writes one FAT entry into the resident sector. The upper
// four bits of a FAT32 entry are reserved and preserved.
func (p *Partition) storeFatEntry(offset uint32, value ClusterNr) {
	if p.ptype == PartitionTypeFat16 {
		defaultEncoding.PutUint16(p.buffer[offset:], uint16(value))
		return
	}

	reserved := defaultEncoding.Uint32(p.buffer[offset:]) &^ fat32ClusterMask
	defaultEncoding.PutUint32(p.buffer[offset:], reserved|uint32(value)&fat32ClusterMask)
}

// fatPosition locates the FAT sector and intra-sector byte offset of the
// entry for the given cluster.
func (p *Partition) fatPosition(clusterNr ClusterNr) (sectorNr uint32, offset uint32) {
	entrySize := p.fatEntrySize()
	entriesPerSector := BytesPerSector / entrySize

	sectorNr = p.fatSector() + uint32(clusterNr)/entriesPerSector
	offset = uint32(clusterNr) % entriesPerSector * entrySize

	return sectorNr, offset
}

func (p *Partition) nextCluster(currentCluster ClusterNr) ClusterNr {
	sectorNr, offset := p.fatPosition(currentCluster)

	p.readSector(sectorNr)

	return p.loadFatEntry(offset)
}

// NextCluster returns the cluster that follows the given one in the FAT.
// The end-of-chain sentinel means the chain stops at the given cluster.
// The sector buffer is left holding the FAT sector.
func (p *Partition) NextCluster(currentCluster ClusterNr) (nextCluster ClusterNr, err error) {
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

	nextCluster = p.nextCluster(currentCluster)

	return nextCluster, nil
}

func (p *Partition) findFreeCluster() ClusterNr {
	entrySize := p.fatEntrySize()
	entriesPerSector := BytesPerSector / entrySize

	// Each FAT sector holds entriesPerSector entries; clusters zero and one
	// are reserved and never eligible.
	totalEntries := p.sectorsPerFat * entriesPerSector

	currentCluster := ClusterNr(2)

	for uint32(currentCluster) < totalEntries {
		sectorNr, _ := p.fatPosition(currentCluster)

		p.readSector(sectorNr)

		for {
			_, offset := p.fatPosition(currentCluster)

			if p.loadFatEntry(offset) == 0 {
				return currentCluster
			}

			currentCluster++

			if uint32(currentCluster) >= totalEntries || uint32(currentCluster)%entriesPerSector == 0 {
				// Off the end of the resident sector.
				break
			}
		}
	}

	return 0
}

// FindFreeCluster scans the FAT from cluster two for the first entry whose
// value is zero and returns its cluster number. Zero means the disk is
// full. The scan runs sector-by-sector in increasing order, so the first
// free cluster always wins.
func (p *Partition) FindFreeCluster() (clusterNr ClusterNr, err error) {
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

	clusterNr = p.findFreeCluster()

	return clusterNr, nil
}

// writeFatEntry is a read-modify-write of the FAT sector owning the given
// cluster's entry. Only the first FAT copy is updated; the second copy
// goes stale until the next format or repair.
func (p *Partition) writeFatEntry(clusterNr ClusterNr, value ClusterNr) {
	sectorNr, offset := p.fatPosition(clusterNr)

	p.readSector(sectorNr)
	p.storeFatEntry(offset, value)
	p.writeSector(sectorNr)
}

func (p *Partition) linkClusters(firstCluster, secondCluster ClusterNr) {
	if firstCluster != 0 {
		p.writeFatEntry(firstCluster, secondCluster)
	}

	p.writeFatEntry(secondCluster, p.endOfChain())
}

// LinkClusters appends secondCluster to the chain behind firstCluster and
// terminates the chain there: the FAT slot of firstCluster is pointed at
// secondCluster, and secondCluster's own slot is set to the end-of-chain
// sentinel. A zero firstCluster skips the first write, which starts a new
// single-cluster chain headed by secondCluster. Both updates are persisted
// immediately.
func (p *Partition) LinkClusters(firstCluster, secondCluster ClusterNr) (err error) {
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

	p.linkClusters(firstCluster, secondCluster)

	return nil
}

func (p *Partition) createCluster(firstCluster ClusterNr, loc *Location) {
	clusterNr := p.findFreeCluster()

	if clusterNr == 0 {
		log.Panic(ErrDiskFull)
	}

	p.linkClusters(firstCluster, clusterNr)

	p.Seek(loc, clusterNr)
}

// CreateCluster allocates a free cluster, links it after firstCluster (or
// starts a new chain when firstCluster is zero), and seeks the cursor to
// it. Fails with ErrDiskFull when the FAT has no free entry, in which case
// nothing has been written.
func (p *Partition) CreateCluster(firstCluster ClusterNr, loc *Location) (err error) {
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

	p.createCluster(firstCluster, loc)

	return nil
}
