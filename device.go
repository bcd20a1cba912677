// This package defines the sector transport that the driver issues all of
// its I/O through.

package fat

import (
	"io"
	"os"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// BlockDevice moves single sectors between the backing store and a caller-
// owned buffer. Reads are synchronous and errors are terminal; the driver
// never retries.
type BlockDevice interface {
	// ReadSector fills the buffer with the contents of the given logical
	// sector. The buffer is always exactly BytesPerSector long.
	ReadSector(sectorNr uint32, buffer []byte) (err error)
}

// BlockDeviceWriter is a BlockDevice that can also persist the buffer back
// to the device. Write-mode operations require the mounted device to
// implement it.
type BlockDeviceWriter interface {
	BlockDevice

	// WriteSector persists the buffer to the given logical sector.
	WriteSector(sectorNr uint32, buffer []byte) (err error)
}

// FileBlockDevice adapts a seekable stream, such as a disk-image file, to
// the sector transport.
type FileBlockDevice struct {
	rs io.ReadSeeker
}

// NewFileBlockDevice returns a read-only sector transport over the given
// stream.
func NewFileBlockDevice(rs io.ReadSeeker) *FileBlockDevice {
	return &FileBlockDevice{
		rs: rs,
	}
}

// ReadSector fills the buffer from the stream.
func (fbd *FileBlockDevice) ReadSector(sectorNr uint32, buffer []byte) (err error) {
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

	_, err = fbd.rs.Seek(int64(sectorNr)*BytesPerSector, os.SEEK_SET)
	log.PanicIf(err)

	_, err = io.ReadFull(fbd.rs, buffer)
	log.PanicIf(err)

	return nil
}

// FileBlockDeviceWriter adapts a writable seekable stream to the sector
// transport.
type FileBlockDeviceWriter struct {
	FileBlockDevice

	rws io.ReadWriteSeeker
}

// NewFileBlockDeviceWriter returns a read-write sector transport over the
// given stream.
func NewFileBlockDeviceWriter(rws io.ReadWriteSeeker) *FileBlockDeviceWriter {
	return &FileBlockDeviceWriter{
		FileBlockDevice: FileBlockDevice{
			rs: rws,
		},

		rws: rws,
	}
}

// WriteSector persists the buffer to the stream.
func (fbdw *FileBlockDeviceWriter) WriteSector(sectorNr uint32, buffer []byte) (err error) {
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

	_, err = fbdw.rws.Seek(int64(sectorNr)*BytesPerSector, os.SEEK_SET)
	log.PanicIf(err)

	_, err = fbdw.rws.Write(buffer)
	log.PanicIf(err)

	return nil
}
