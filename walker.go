// This package walks cluster chains one sector at a time through the
// partition's single sector buffer.

package fat

import (
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// Location is a traversal cursor over a cluster chain: the current
// cluster, the absolute sector within it, and how many sectors of the
// cluster remain after the current one.
//
// A cursor whose cluster equals the variant's end-of-chain sentinel is
// terminal; no operation advances it further.
type Location struct {
	// Sector is the current absolute sector number.
	Sector uint32

	// Cluster is the current cluster number, or the end-of-chain sentinel
	// once the chain is exhausted.
	Cluster ClusterNr

	// SectorsLeftInCluster is the number of sectors remaining in the
	// cluster beyond the current one.
	SectorsLeftInCluster uint8
}

// String returns a description of the location.
func (loc *Location) String() string {
	return fmt.Sprintf("Location<CLUSTER=(%d) SECTOR=(%d) LEFT=(%d)>", loc.Cluster, loc.Sector, loc.SectorsLeftInCluster)
}

// Seek positions the cursor on the first sector of the given cluster. Only
// the cursor is updated; the sector buffer is not touched.
func (p *Partition) Seek(loc *Location, clusterNr ClusterNr) {
	// The root-directory term is zero on FAT32 because the BPB zeroes
	// RootDirectoryEntries there; data clusters start right at the root
	// offset.
	loc.Cluster = clusterNr
	loc.Sector = p.RootOffset() + p.rootDirectorySectors() + (uint32(clusterNr)-2)*uint32(p.sectorsPerCluster)
	loc.SectorsLeftInCluster = p.sectorsPerCluster - 1
}

// IsCurrentClusterValid indicates whether the cursor may still be
// advanced. It turns false once the chain's end-of-chain sentinel has been
// reached.
func (p *Partition) IsCurrentClusterValid(loc *Location) bool {
	return loc.Cluster != p.endOfChain()
}

// ReadFirstSector loads the sector the cursor currently points at. It is
// the required follow-up to Seek.
func (p *Partition) ReadFirstSector(loc *Location) (err error) {
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

	p.readSector(loc.Sector)

	return nil
}

// ReadNextSector advances the cursor by one sector and loads it. Within a
// cluster that is a plain increment; at the cluster's end the FAT decides
// the next cluster. When the chain ends the cursor becomes terminal and no
// data sector is read; IsCurrentClusterValid then reports false. A cursor
// that is already terminal stays terminal without issuing any I/O.
func (p *Partition) ReadNextSector(loc *Location) (err error) {
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

	if p.IsCurrentClusterValid(loc) != true {
		return nil
	}

	if loc.SectorsLeftInCluster == 0 {
		// The cluster is exhausted. Follow the chain.

		nextCluster := p.nextCluster(loc.Cluster)

		if nextCluster == p.endOfChain() {
			loc.Cluster = nextCluster
			return nil
		}

		p.Seek(loc, nextCluster)
	} else {
		loc.Sector++
		loc.SectorsLeftInCluster--
	}

	p.readSector(loc.Sector)

	return nil
}
