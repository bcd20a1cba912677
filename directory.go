// This package enumerates, searches, and mutates directory tables. The
// FAT16 fixed-size root directory and the cluster-chained directories of
// both variants sit behind the same cursor.

package fat

import (
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// DirectoryLocation is a cursor over one directory: a sector cursor plus
// the index of the current 32-byte entry within the resident sector.
//
// A cursor over the FAT16 root directory carries an explicit count of the
// entries it has left instead of a cluster chain; the directory region is
// a fixed run of sectors and ends after exactly RootDirectoryEntries
// slots.
type DirectoryLocation struct {
	// Location is the sector cursor. For a fixed-root cursor only its
	// Sector field is meaningful.
	Location Location

	// EntryOffset is the index of the current entry within the resident
	// sector, in [0, DirectoryEntriesPerSector).
	EntryOffset uint8

	fixedRoot       bool
	rootEntriesLeft uint16
}

// String returns a description of the directory location.
func (dl *DirectoryLocation) String() string {
	if dl.fixedRoot == true {
		return fmt.Sprintf("DirectoryLocation<SECTOR=(%d) ENTRY=(%d) ROOT-ENTRIES-LEFT=(%d)>", dl.Location.Sector, dl.EntryOffset, dl.rootEntriesLeft)
	}

	return fmt.Sprintf("DirectoryLocation<CLUSTER=(%d) SECTOR=(%d) ENTRY=(%d)>", dl.Location.Cluster, dl.Location.Sector, dl.EntryOffset)
}

// IsDirectoryLocationValid indicates whether the cursor still points at a
// slot. It turns false when a chained directory runs off the end of its
// cluster chain, or when a fixed root cursor has consumed every slot the
// BPB granted the root directory.
func (p *Partition) IsDirectoryLocationValid(dl *DirectoryLocation) bool {
	if dl.fixedRoot == true {
		return dl.rootEntriesLeft != 0
	}

	return p.IsCurrentClusterValid(&dl.Location)
}

// IsLastDirEntry indicates that directory iteration is finished: either
// the entry is the end-of-directory marker or the cursor has run out of
// slots. The entry must not be examined further when this returns true.
func (p *Partition) IsLastDirEntry(de *DirectoryEntry, dl *DirectoryLocation) bool {
	return de.IsEndOfDirectory() || p.IsDirectoryLocationValid(dl) != true
}

func (p *Partition) getDirEntry(dl *DirectoryLocation) *DirectoryEntry {
	offset := uint32(dl.EntryOffset) * DirectoryEntrySize

	de, err := parseDirectoryEntry(p.buffer[offset : offset+DirectoryEntrySize])
	log.PanicIf(err)

	return de
}

// GetDirEntry decodes the entry the cursor points at out of the resident
// sector. The cursor's sector must be the one the buffer currently holds;
// any intervening I/O requires re-reading the sector before the cursor is
// used again.
func (p *Partition) GetDirEntry(dl *DirectoryLocation) (de *DirectoryEntry, err error) {
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

	de = p.getDirEntry(dl)

	return de, nil
}

func (p *Partition) firstDirEntry(startCluster ClusterNr, dl *DirectoryLocation) {
	dl.fixedRoot = false
	dl.rootEntriesLeft = 0
	dl.EntryOffset = 0

	p.Seek(&dl.Location, startCluster)
	p.readSector(dl.Location.Sector)
}

// FirstDirEntry positions the cursor on the first entry of the directory
// whose chain starts at the given cluster, and loads its sector.
func (p *Partition) FirstDirEntry(startCluster ClusterNr, dl *DirectoryLocation) (err error) {
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

	p.firstDirEntry(startCluster, dl)

	return nil
}

func (p *Partition) firstRootDirEntry(dl *DirectoryLocation) {
	if p.ptype == PartitionTypeFat32 {
		p.firstDirEntry(p.rootCluster, dl)
		return
	}

	// The FAT16 root directory is a fixed run of sectors immediately after
	// the second FAT. There is no chain to follow; the cursor counts slots
	// instead.

	dl.fixedRoot = true
	dl.rootEntriesLeft = p.rootDirectoryEntries
	dl.EntryOffset = 0

	dl.Location.Cluster = 0
	dl.Location.Sector = p.RootOffset()
	dl.Location.SectorsLeftInCluster = 0

	p.readSector(dl.Location.Sector)
}

// FirstRootDirEntry positions the cursor on the first entry of the root
// directory: the fixed directory region on FAT16, the chain headed by the
// BPB's root cluster on FAT32.
func (p *Partition) FirstRootDirEntry(dl *DirectoryLocation) (err error) {
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

	p.firstRootDirEntry(dl)

	return nil
}

func (p *Partition) nextFixedRootDirEntry(dl *DirectoryLocation) {
	if dl.rootEntriesLeft == 0 {
		return
	}

	dl.rootEntriesLeft--

	if dl.rootEntriesLeft == 0 {
		// Every slot the root directory was formatted with has been
		// visited.
		return
	}

	if dl.EntryOffset == DirectoryEntriesPerSector-1 {
		dl.Location.Sector++
		p.readSector(dl.Location.Sector)
		dl.EntryOffset = 0
	} else {
		dl.EntryOffset++
	}
}

func (p *Partition) nextDirEntry(dl *DirectoryLocation) {
	if dl.fixedRoot == true {
		p.nextFixedRootDirEntry(dl)
		return
	}

	if dl.EntryOffset == DirectoryEntriesPerSector-1 {
		err := p.ReadNextSector(&dl.Location)
		log.PanicIf(err)

		dl.EntryOffset = 0
	} else {
		dl.EntryOffset++
	}
}

// NextDirEntry advances the cursor to the next entry, crossing into the
// next sector (and, for chained directories, the next cluster) as needed.
// A cursor over the FAT16 root directory advances through the fixed
// directory region instead. Whether a slot is actually there must be
// checked with IsLastDirEntry on the entry read afterward.
func (p *Partition) NextDirEntry(dl *DirectoryLocation) (err error) {
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

	p.nextDirEntry(dl)

	return nil
}

// findFromCurrent scans from the cursor's current slot for an entry whose
// raw name matches byte-for-byte. Deleted slots and long-filename slots
// are skipped; the scan stops at the end-of-directory marker or when the
// cursor runs out of slots.
func (p *Partition) findFromCurrent(name EntryName, dl *DirectoryLocation) *DirectoryEntry {
	for {
		de := p.getDirEntry(dl)

		if p.IsLastDirEntry(de, dl) == true {
			return nil
		}

		if de.IsDeleted() != true && de.IsLongFileName() != true {
			if de.Name == name {
				return de
			}
		}

		p.nextDirEntry(dl)
	}
}

// FindDirEntry searches the directory whose chain starts at the given
// cluster for an entry with the given raw 8.3 name. A nil entry means the
// name is not present. On success the cursor identifies the matching slot.
func (p *Partition) FindDirEntry(dirCluster ClusterNr, name EntryName, dl *DirectoryLocation) (de *DirectoryEntry, err error) {
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

	p.firstDirEntry(dirCluster, dl)

	de = p.findFromCurrent(name, dl)

	return de, nil
}

// FindRootDirEntry searches the root directory for an entry with the given
// raw 8.3 name. A nil entry means the name is not present.
func (p *Partition) FindRootDirEntry(name EntryName, dl *DirectoryLocation) (de *DirectoryEntry, err error) {
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

	p.firstRootDirEntry(dl)

	de = p.findFromCurrent(name, dl)

	return de, nil
}

// findReusableFromCurrent scans for the first slot that can take a new
// entry: a deleted one or the end-of-directory marker (everything after
// which is also unused). It returns nil once the cursor runs out of slots,
// with lastCluster naming the final cluster the scan visited.
func (p *Partition) findReusableFromCurrent(dl *DirectoryLocation, startCluster ClusterNr) (de *DirectoryEntry, lastCluster ClusterNr) {
	lastCluster = startCluster

	for p.IsDirectoryLocationValid(dl) == true {
		de := p.getDirEntry(dl)

		if de.IsDeleted() == true || de.IsEndOfDirectory() == true {
			return de, lastCluster
		}

		lastCluster = dl.Location.Cluster

		p.nextDirEntry(dl)
	}

	return nil, lastCluster
}

func (p *Partition) createDirEntry(startCluster ClusterNr, dl *DirectoryLocation) *DirectoryEntry {
	p.firstDirEntry(startCluster, dl)

	de, lastCluster := p.findReusableFromCurrent(dl, startCluster)
	if de != nil {
		return de
	}

	// Every slot in the chain is taken. Extend the directory with a fresh
	// cluster and clear it so that every slot reads as never-used.

	p.createCluster(lastCluster, &dl.Location)

	for i := range p.buffer {
		p.buffer[i] = 0
	}

	sectorNr := dl.Location.Sector
	for i := uint8(0); i < p.sectorsPerCluster; i++ {
		p.writeSector(sectorNr)
		sectorNr++
	}

	dl.EntryOffset = 0

	return p.getDirEntry(dl)
}

// CreateDirEntry finds a slot for a new entry in the directory whose chain
// starts at the given cluster: the first deleted or never-used slot, or
// the first slot of a newly appended, zero-filled cluster when the chain
// is full. On success the cursor identifies the slot and the returned
// entry is its current (reusable) contents. Fails with ErrDiskFull when
// the chain is full and no free cluster exists; nothing has been written
// in that case.
func (p *Partition) CreateDirEntry(startCluster ClusterNr, dl *DirectoryLocation) (de *DirectoryEntry, err error) {
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

	de = p.createDirEntry(startCluster, dl)

	return de, nil
}

// CreateRootDirEntry finds a slot for a new entry in the root directory.
// The FAT16 root directory is a fixed region that can not grow, so when
// every slot is taken this fails with ErrDirectoryFull. On FAT32 the root
// is an ordinary chain and extends like any other directory.
func (p *Partition) CreateRootDirEntry(dl *DirectoryLocation) (de *DirectoryEntry, err error) {
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

	if p.ptype == PartitionTypeFat32 {
		de = p.createDirEntry(p.rootCluster, dl)
		return de, nil
	}

	p.firstRootDirEntry(dl)

	de, _ = p.findReusableFromCurrent(dl, 0)
	if de == nil {
		log.Panic(ErrDirectoryFull)
	}

	return de, nil
}

// InitDirEntry clears the slot the cursor points at, stores the given raw
// 8.3 name into it, and persists the enclosing sector. Every other field
// is left zero; callers populate them with WriteDirEntry afterward. The
// cursor's sector must be resident, as it is right after CreateDirEntry.
func (p *Partition) InitDirEntry(dl *DirectoryLocation, name EntryName) (err error) {
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

	offset := uint32(dl.EntryOffset) * DirectoryEntrySize
	slot := p.buffer[offset : offset+DirectoryEntrySize]

	for i := range slot {
		slot[i] = 0
	}

	copy(slot, name[:])

	p.writeSector(dl.Location.Sector)

	return nil
}

// WriteDirEntry packs the given entry into the slot the cursor points at
// and persists the enclosing sector. The cursor's sector must be resident
// in the buffer.
func (p *Partition) WriteDirEntry(dl *DirectoryLocation, de *DirectoryEntry) (err error) {
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

	data, err := packDirectoryEntry(de)
	log.PanicIf(err)

	offset := uint32(dl.EntryOffset) * DirectoryEntrySize
	copy(p.buffer[offset:offset+DirectoryEntrySize], data)

	p.writeSector(dl.Location.Sector)

	return nil
}
