package bio

import (
	"os"

	"github.com/aegros/kernel/internal/errno"
	"golang.org/x/sys/unix"
)

// FileDisk is the reference Disk implementation: a regular file stands
// in for a raw block device, addressed by unix.Pread/Pwrite rather
// than os.File.ReadAt/WriteAt so the sector I/O path goes through the
// same raw-syscall layer the rest of the retrieval pack depends on.
type FileDisk struct {
	f          *os.File
	sectorSize int
}

// OpenFileDisk opens (or creates) path as a disk image of at least
// sizeBytes, sized to a whole number of sectorSize sectors.
func OpenFileDisk(path string, sectorSize int, sizeBytes int64) (*FileDisk, errno.Err) {
	f, oserr := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if oserr != nil {
		return nil, errno.EIO
	}
	if sectorSize > 0 {
		sizeBytes = (sizeBytes + int64(sectorSize) - 1) / int64(sectorSize) * int64(sectorSize)
	}
	if info, statErr := f.Stat(); statErr == nil && info.Size() < sizeBytes {
		if truncErr := f.Truncate(sizeBytes); truncErr != nil {
			f.Close()
			return nil, errno.EIO
		}
	}
	return &FileDisk{f: f, sectorSize: sectorSize}, errno.OK
}

func (d *FileDisk) SectorSize() int { return d.sectorSize }

// ReadBlock reads one BlockSize-sized logical block at its byte offset
// in the image file. The buffer cache's 512-byte block maps 1:1 onto a
// 512-byte sector, or onto a fraction of a larger physical sector.
func (d *FileDisk) ReadBlock(lba uint64, buf []byte) errno.Err {
	off := int64(lba) * int64(BlockSize)
	n, err := unix.Pread(int(d.f.Fd()), buf, off)
	if err != nil || n != len(buf) {
		return errno.EIO
	}
	return errno.OK
}

func (d *FileDisk) WriteBlock(lba uint64, buf []byte) errno.Err {
	off := int64(lba) * int64(BlockSize)
	n, err := unix.Pwrite(int(d.f.Fd()), buf, off)
	if err != nil || n != len(buf) {
		return errno.EIO
	}
	return errno.OK
}

func (d *FileDisk) Close() error { return d.f.Close() }
