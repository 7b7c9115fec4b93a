package vfs

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
)

const (
	FdRead  = 1 << 0
	FdWrite = 1 << 1
)

// FD is a file-descriptor slot: occupied iff Inode is non-nil; closing
// clears both.
type FD struct {
	Inode  *Inode
	Offset int64
	Perms  int
	Priv   interface{}
}

// FDTable is a per-process fixed-size array of slots, indices 0/1/2
// reserved for stdin/stdout/stderr, fresh opens returning the smallest
// unused index >= 3.
type FDTable struct {
	mu    sync.Mutex
	slots []*FD
}

func NewFDTable(size int) *FDTable {
	return &FDTable{slots: make([]*FD, size)}
}

// Install places fd at the smallest unused index >= start. It returns
// 0 (the invalid-fd sentinel) if the table is full.
func (t *FDTable) Install(fd *FD, start int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := start; i < len(t.slots); i++ {
		if t.slots[i] == nil {
			t.slots[i] = fd
			return i
		}
	}
	return 0
}

// InstallAt is used for the reserved low fds (stdin/stdout/stderr).
func (t *FDTable) InstallAt(idx int, fd *FD) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[idx] = fd
}

func (t *FDTable) Get(idx int) (*FD, errno.Err) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.slots) || t.slots[idx] == nil {
		return nil, errno.EBADF
	}
	return t.slots[idx], errno.OK
}

// Close releases the slot; if the inode's refcount reaches zero it
// triggers deferred destruction via Inode.Close.
func (t *FDTable) Close(idx int) errno.Err {
	t.mu.Lock()
	fd, ok := t.slots[idx], idx >= 0 && idx < len(t.slots) && t.slots[idx] != nil
	if ok {
		t.slots[idx] = nil
	}
	t.mu.Unlock()
	if !ok {
		return errno.EBADF
	}
	if fd.Inode.Unref() == 0 {
		return fd.Inode.Close()
	}
	return errno.OK
}

// Fork duplicates the slot array, incrementing each occupied inode's
// refcount, so closing fd=k in the child cannot affect the parent's
// fd=k.
func (t *FDTable) Fork() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := &FDTable{slots: make([]*FD, len(t.slots))}
	for i, fd := range t.slots {
		if fd == nil {
			continue
		}
		fd.Inode.Ref()
		cp := *fd
		nt.slots[i] = &cp
	}
	return nt
}

// CloseAll releases every occupied slot, e.g. on process exit.
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	n := len(t.slots)
	t.mu.Unlock()
	for i := 0; i < n; i++ {
		t.Close(i)
	}
}
