// Package ramfs is an in-memory filesystem backing /dev and other
// pseudo-file trees. Every inode's operation vector is built from this
// package's ops tables, so unimplemented operations resolve through
// vfs.Inode's nil-check wrappers rather than panicking.
package ramfs

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/vfs"
)

// FS is a single ramfs tree, mountable at any prefix. Since it is not
// disk-backed it claims whatever disk it's handed: Resolve always
// succeeds, since the Resolve contract exists for on-disk format
// recognition and a RAM tree has no format to recognize.
type FS struct {
	root *vfs.Inode
}

func (f *FS) Name() string { return "RAMFS" }

func (f *FS) Resolve(vfs.DiskID) (*vfs.Inode, bool) { return f.root, true }

// New builds an empty ramfs with a root directory.
func New() *FS {
	f := &FS{}
	f.root = newDir()
	return f
}

// Root returns the tree's root inode, for mounting or for directly
// wiring device nodes before the tree is mounted.
func (f *FS) Root() *vfs.Inode { return f.root }

type dirEntry struct {
	name  string
	inode *vfs.Inode
}

type dirState struct {
	mu       sync.Mutex
	entries  []dirEntry
}

func newDir() *vfs.Inode {
	st := &dirState{}
	ops := &vfs.Ops{
		Lookup: func(inode *vfs.Inode, name string) (*vfs.Inode, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			for _, e := range st.entries {
				if e.name == name {
					return e.inode, errno.OK
				}
			}
			return nil, errno.ENOENT
		},
		Create: func(inode *vfs.Inode, name string) (*vfs.Inode, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			for _, e := range st.entries {
				if e.name == name {
					return nil, errno.EEXIST
				}
			}
			child := newFile()
			st.entries = append(st.entries, dirEntry{name, child})
			return child, errno.OK
		},
		Mkdir: func(inode *vfs.Inode, name string) (*vfs.Inode, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			for _, e := range st.entries {
				if e.name == name {
					return nil, errno.EEXIST
				}
			}
			child := newDir()
			st.entries = append(st.entries, dirEntry{name, child})
			return child, errno.OK
		},
		CreateDevice: func(inode *vfs.Inode, name string, major, minor int) (*vfs.Inode, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			for _, e := range st.entries {
				if e.name == name {
					return nil, errno.EEXIST
				}
			}
			child := vfs.NewInode(vfs.TypeDevice, "RAMFS", &vfs.Ops{}, nil)
			st.entries = append(st.entries, dirEntry{name, child})
			return child, errno.OK
		},
		Getdents: func(inode *vfs.Inode) ([]vfs.Dirent, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			out := make([]vfs.Dirent, 0, len(st.entries))
			for _, e := range st.entries {
				out = append(out, vfs.Dirent{Name: e.name, Type: e.inode.Type})
			}
			return out, errno.OK
		},
		StatFn: func(inode *vfs.Inode) (vfs.Stat, errno.Err) {
			return vfs.Stat{Type: vfs.TypeDirectory}, errno.OK
		},
	}
	return vfs.NewInode(vfs.TypeDirectory, "RAMFS", ops, st)
}

// AddDevice installs name as a device inode directly under dir's
// children, bypassing dir's Create/Mkdir (which build plain files and
// subdirectories). Used to wire /dev/console, /dev/null, /dev/zero.
func AddDevice(dir *vfs.Inode, name string, devInode *vfs.Inode) errno.Err {
	st, ok := dir.Priv.(*dirState)
	if !ok {
		return errno.ENOTDIR
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, e := range st.entries {
		if e.name == name {
			return errno.EEXIST
		}
	}
	st.entries = append(st.entries, dirEntry{name, devInode})
	return errno.OK
}

type fileState struct {
	mu   sync.Mutex
	data []byte
}

func newFile() *vfs.Inode {
	st := &fileState{}
	ops := &vfs.Ops{
		Read: func(inode *vfs.Inode, fd *vfs.FD, dst []byte) (int, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			if fd.Offset >= int64(len(st.data)) {
				return 0, errno.OK
			}
			n := copy(dst, st.data[fd.Offset:])
			return n, errno.OK
		},
		Write: func(inode *vfs.Inode, fd *vfs.FD, src []byte) (int, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			end := fd.Offset + int64(len(src))
			if end > int64(len(st.data)) {
				grown := make([]byte, end)
				copy(grown, st.data)
				st.data = grown
			}
			copy(st.data[fd.Offset:end], src)
			return len(src), errno.OK
		},
		Seek: func(inode *vfs.Inode, fd *vfs.FD, off int64, whence int) (int64, errno.Err) {
			st.mu.Lock()
			size := int64(len(st.data))
			st.mu.Unlock()
			return vfs.SeekOffset(fd.Offset, size, off, whence)
		},
		StatFn: func(inode *vfs.Inode) (vfs.Stat, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			return vfs.Stat{Type: vfs.TypeFile, Size: int64(len(st.data))}, errno.OK
		},
	}
	return vfs.NewInode(vfs.TypeFile, "RAMFS", ops, st)
}
