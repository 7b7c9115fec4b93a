package vfs

import (
	"github.com/aegros/kernel/internal/errno"
)

// VFS ties the mount table to disk-selecting FileSystem drivers and
// exposes the path-based operations the syscall layer calls into.
type VFS struct {
	Mounts *MountTable
	disks  map[DiskID]FileSystem
}

func New() *VFS {
	return &VFS{Mounts: NewMountTable(), disks: make(map[DiskID]FileSystem)}
}

// AddDisk registers a raw disk so a bare drive-token path ("0:/...")
// can be resolved even without a prior mount-table entry, by asking fs
// whether it recognizes the disk's format.
func (v *VFS) AddDisk(id DiskID, fs FileSystem) {
	v.disks[id] = fs
}

// Resolve walks path to its containing inode, following mount points
// and drive tokens.
func (v *VFS) Resolve(path string) (*Inode, errno.Err) {
	disk, hasDisk, rest, err := ParsePath(path)
	if err != errno.OK {
		return nil, err
	}
	var cur *Inode
	if hasDisk {
		fs, ok := v.disks[disk]
		if !ok {
			return nil, errno.ENOENT
		}
		root, ok := fs.Resolve(disk)
		if !ok {
			return nil, errno.EBADPATH
		}
		cur = root
	} else {
		root, rel, ok := v.Mounts.Resolve(rest)
		if !ok {
			return nil, errno.ENOENT
		}
		cur = root
		rest = rel
	}
	for _, comp := range Split(rest) {
		next, err := cur.Lookup(comp)
		if err != errno.OK {
			return nil, err
		}
		cur = next
	}
	return cur, errno.OK
}

// Open parses path, locates the containing inode, invokes its Open,
// allocates a descriptor slot from fdt, and returns its index — 0 on
// failure to preserve the valid-fd invariant.
func (v *VFS) Open(fdt *FDTable, path string, mode int) (int, errno.Err) {
	inode, err := v.Resolve(path)
	if err != errno.OK {
		return 0, err
	}
	if err := inode.Open(mode); err != errno.OK {
		return 0, err
	}
	fd := &FD{Inode: inode, Perms: mode}
	idx := fdt.Install(fd, 3)
	if idx == 0 {
		inode.Close()
		return 0, errno.EMFILE
	}
	return idx, errno.OK
}

func (v *VFS) Read(fdt *FDTable, fdidx int, buf []byte) (int, errno.Err) {
	fd, err := fdt.Get(fdidx)
	if err != errno.OK {
		return 0, err
	}
	n, err := fd.Inode.Read(fd, buf)
	if err == errno.OK {
		fd.Offset += int64(n)
	}
	return n, err
}

func (v *VFS) Write(fdt *FDTable, fdidx int, buf []byte) (int, errno.Err) {
	fd, err := fdt.Get(fdidx)
	if err != errno.OK {
		return 0, err
	}
	n, err := fd.Inode.Write(fd, buf)
	if err == errno.OK {
		fd.Offset += int64(n)
	}
	return n, err
}

const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

func (v *VFS) Lseek(fdt *FDTable, fdidx int, off int64, whence int) (int64, errno.Err) {
	fd, err := fdt.Get(fdidx)
	if err != errno.OK {
		return 0, err
	}
	no, err := fd.Inode.Seek(fd, off, whence)
	if err == errno.OK {
		fd.Offset = no
	}
	return no, err
}

// SeekOffset computes a new absolute offset for a seekable inode from
// its current offset, size, and a whence-relative request, shared by
// every inode implementation's Seek op.
func SeekOffset(cur, size, off int64, whence int) (int64, errno.Err) {
	var no int64
	switch whence {
	case SeekSet:
		no = off
	case SeekCur:
		no = cur + off
	case SeekEnd:
		no = size + off
	default:
		return 0, errno.EINVAL
	}
	if no < 0 {
		return 0, errno.EINVAL
	}
	return no, errno.OK
}

func (v *VFS) Fstat(fdt *FDTable, fdidx int) (Stat, errno.Err) {
	fd, err := fdt.Get(fdidx)
	if err != errno.OK {
		return Stat{}, err
	}
	return fd.Inode.StatFn()
}

func (v *VFS) Ioctl(fdt *FDTable, fdidx int, cmd int, arg uintptr) (int, errno.Err) {
	fd, err := fdt.Get(fdidx)
	if err != errno.OK {
		return 0, err
	}
	return fd.Inode.Ioctl(cmd, arg)
}

func (v *VFS) Getdents(fdt *FDTable, fdidx int) ([]Dirent, errno.Err) {
	fd, err := fdt.Get(fdidx)
	if err != errno.OK {
		return nil, err
	}
	return fd.Inode.Getdents()
}

func (v *VFS) Close(fdt *FDTable, fdidx int) errno.Err {
	return fdt.Close(fdidx)
}

// Create invokes dir's Create for the new file, refusing with EROFS
// where the filesystem does not implement it.
func (v *VFS) Create(dir *Inode, name string) (*Inode, errno.Err) {
	return dir.Create(name)
}

func (v *VFS) Mkdir(dir *Inode, name string) (*Inode, errno.Err) {
	return dir.Mkdir(name)
}
