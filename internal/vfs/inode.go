// Package vfs implements path parsing, the mount table, inodes with
// their operation-vector, and the file-descriptor table. Filesystems
// are capability sets: an Ops value may leave any field nil, and
// invoking a nil operation returns an error or success (see Ops)
// rather than panicking.
package vfs

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
)

type InodeType int

const (
	TypeFile InodeType = iota
	TypeDirectory
	TypeDevice
	TypeSymlink
)

// Stat is the subset of inode metadata exposed to the fstat syscall.
type Stat struct {
	Type InodeType
	Size int64
	Mode uint32
}

// Dirent is one entry returned by getdents.
type Dirent struct {
	Name string
	Type InodeType
}

// Ops is the inode operation vector. Every filesystem builds one of
// these; unimplemented operations are left nil and are handled by the
// Inode wrapper methods below, never through a direct nil call: a nil
// Open or Close succeeds, a nil Lookup returns errno.ENOTDIR, a nil
// Create or Mkdir returns errno.EROFS, and the rest return
// errno.ENOSYS. CreateDevice has no wrapper.
type Ops struct {
	Open         func(inode *Inode, mode int) errno.Err
	Close        func(inode *Inode) errno.Err
	Read         func(inode *Inode, fd *FD, dst []byte) (int, errno.Err)
	Write        func(inode *Inode, fd *FD, src []byte) (int, errno.Err)
	Seek         func(inode *Inode, fd *FD, off int64, whence int) (int64, errno.Err)
	StatFn       func(inode *Inode) (Stat, errno.Err)
	Ioctl        func(inode *Inode, cmd int, arg uintptr) (int, errno.Err)
	Lookup       func(inode *Inode, name string) (*Inode, errno.Err)
	Create       func(inode *Inode, name string) (*Inode, errno.Err)
	Mkdir        func(inode *Inode, name string) (*Inode, errno.Err)
	CreateDevice func(inode *Inode, name string, major, minor int) (*Inode, errno.Err)
	Getdents     func(inode *Inode) ([]Dirent, errno.Err)
}

// Inode is a polymorphic filesystem object handle. Its identity is
// stable for its lifetime: lookups for the same path within a single
// mount return the same *Inode.
type Inode struct {
	mu     sync.Mutex
	Type   InodeType
	FSType string // "FAT16" or "RAMFS"
	Ops    *Ops
	Priv   interface{}
	refs   int
}

func NewInode(typ InodeType, fstype string, ops *Ops, priv interface{}) *Inode {
	return &Inode{Type: typ, FSType: fstype, Ops: ops, Priv: priv, refs: 1}
}

func (i *Inode) Ref()   { i.mu.Lock(); i.refs++; i.mu.Unlock() }
func (i *Inode) Unref() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refs--
	return i.refs
}

func (i *Inode) Open(mode int) errno.Err {
	if i.Ops.Open == nil {
		return errno.OK
	}
	return i.Ops.Open(i, mode)
}

func (i *Inode) Close() errno.Err {
	if i.Ops.Close == nil {
		return errno.OK
	}
	return i.Ops.Close(i)
}

func (i *Inode) Read(fd *FD, dst []byte) (int, errno.Err) {
	if i.Ops.Read == nil {
		return 0, errno.ENOSYS
	}
	return i.Ops.Read(i, fd, dst)
}

func (i *Inode) Write(fd *FD, src []byte) (int, errno.Err) {
	if i.Ops.Write == nil {
		return 0, errno.ENOSYS
	}
	return i.Ops.Write(i, fd, src)
}

func (i *Inode) Seek(fd *FD, off int64, whence int) (int64, errno.Err) {
	if i.Ops.Seek == nil {
		return 0, errno.ENOSYS
	}
	return i.Ops.Seek(i, fd, off, whence)
}

func (i *Inode) StatFn() (Stat, errno.Err) {
	if i.Ops.StatFn == nil {
		return Stat{}, errno.ENOSYS
	}
	return i.Ops.StatFn(i)
}

func (i *Inode) Ioctl(cmd int, arg uintptr) (int, errno.Err) {
	if i.Ops.Ioctl == nil {
		return 0, errno.ENOSYS
	}
	return i.Ops.Ioctl(i, cmd, arg)
}

func (i *Inode) Lookup(name string) (*Inode, errno.Err) {
	if i.Ops.Lookup == nil {
		return nil, errno.ENOTDIR
	}
	return i.Ops.Lookup(i, name)
}

func (i *Inode) Create(name string) (*Inode, errno.Err) {
	if i.Ops.Create == nil {
		return nil, errno.EROFS
	}
	return i.Ops.Create(i, name)
}

func (i *Inode) Mkdir(name string) (*Inode, errno.Err) {
	if i.Ops.Mkdir == nil {
		return nil, errno.EROFS
	}
	return i.Ops.Mkdir(i, name)
}

func (i *Inode) Getdents() ([]Dirent, errno.Err) {
	if i.Ops.Getdents == nil {
		return nil, errno.ENOSYS
	}
	return i.Ops.Getdents(i)
}
