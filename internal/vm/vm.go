// Package vm implements the two-level x86 paging scheme as index-based
// structs over a simulated physical memory pool, rather than raw
// pointers, since the graph of page directory -> page table -> frame
// is naturally cyclic-shaped once frames are shared across clones. A
// page directory is 1024 entries; each present entry points at a
// 1024-entry page table; each present PTE names a physical frame (a
// fixed-size []byte) and flags.
package vm

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/klog"
)

const (
	PageSize    = kconfig.PageSize
	EntriesPerTable = 1024

	PteW  uint32 = 1 << 0 // Writable
	PteU  uint32 = 1 << 1 // User
	PteP  uint32 = 1 << 2 // Present (the table/frame exists)
	PtePS uint32 = 1 << 3 // PageSize: 4MiB mapping (kernel identity map)
)

// Frame is a simulated physical page: PageSize bytes the allocator
// hands out. A real implementation maps these through a fixed kernel
// window; here kernel code accesses Frame.Bytes directly, which is the
// hosted-simulator equivalent of "copy through the kernel mapping."
type Frame struct {
	Bytes [PageSize]byte
}

var (
	frameMu  sync.Mutex
	frameGen int
)

func newFrame() *Frame {
	frameMu.Lock()
	frameGen++
	frameMu.Unlock()
	return &Frame{}
}

type pte struct {
	frame *Frame
	flags uint32
}

func (p pte) present() bool { return p.flags&PteP != 0 }

type pageTable struct {
	entries [EntriesPerTable]pte
}

// PageDir is a page directory: 1024 entries, entry
// pdx(KernelVirtualBase) (512) mapping the kernel identically in every
// directory, the rest mapping user pages only when backed by physical
// frames.
type PageDir struct {
	mu      sync.Mutex
	entries [EntriesPerTable]*pageTable
	// kernelPDX is the directory index the kernel's 4MiB identity
	// mapping occupies; shared (by flag, not by backing frame pointer
	// aliasing) across every directory.
	kernelPDX uint32
}

func pdx(va uint32) uint32 { return va >> 22 }
func ptx(va uint32) uint32 { return (va >> 12) & 0x3ff }
func pgoff(va uint32) uint32 { return va & 0xfff }

// NewKernelOnly creates a directory with only the kernel mapping
// installed, the starting point every process's directory is cloned
// from at boot.
func NewKernelOnly() *PageDir {
	pd := &PageDir{kernelPDX: pdx(kconfig.KernelVirtualBase)}
	pd.entries[pd.kernelPDX] = &pageTable{}
	// the kernel's identity map is marked PS (4MiB) and never touched
	// by user-facing Map/Unmap.
	pd.entries[pd.kernelPDX].entries[0] = pte{frame: newFrame(), flags: PteP | PtePS}
	return pd
}

// Map walks/creates the page table for va and installs a PTE pointing
// at pa's frame with the given flags. It never touches the kernel PDX.
func (pd *PageDir) Map(va uint32, frame *Frame, flags uint32) errno.Err {
	if pdx(va) == pd.kernelPDX {
		klog.Panicf("vm: attempt to map into the kernel PDX")
	}
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pt := pd.entries[pdx(va)]
	if pt == nil {
		pt = &pageTable{}
		pd.entries[pdx(va)] = pt
	}
	pt.entries[ptx(va)] = pte{frame: frame, flags: flags | PteP}
	return errno.OK
}

// Unmap clears the PTE for va, if any.
func (pd *PageDir) Unmap(va uint32) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pt := pd.entries[pdx(va)]
	if pt == nil {
		return
	}
	pt.entries[ptx(va)] = pte{}
}

// Translate returns the frame and flags backing va, or ok=false if
// unmapped. Used by the syscall layer's user-pointer translation and by
// copy-to-user/copy-from-user.
func (pd *PageDir) Translate(va uint32) (*Frame, uint32, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pt := pd.entries[pdx(va)]
	if pt == nil {
		return nil, 0, false
	}
	e := pt.entries[ptx(va)]
	if !e.present() {
		return nil, 0, false
	}
	return e.frame, e.flags, true
}

// AllocUVM allocates zeroed physical pages and maps them User|Writable
// for each page in [oldSize, newSize). Pages must be page-aligned
// sizes.
func (pd *PageDir) AllocUVM(oldSize, newSize uint32) (uint32, errno.Err) {
	if newSize < oldSize {
		return oldSize, errno.EINVAL
	}
	a := roundUp(oldSize)
	for ; a < newSize; a += PageSize {
		f := newFrame()
		if err := pd.Map(a, f, PteU|PteW); err != errno.OK {
			return a, err
		}
	}
	return newSize, errno.OK
}

// DeallocUVM reverses AllocUVM, unmapping each page in [newSize,
// oldSize) and returning their frames to the allocator (the Go garbage
// collector, here — frames become unreachable once unmapped).
func (pd *PageDir) DeallocUVM(oldSize, newSize uint32) uint32 {
	if newSize >= oldSize {
		return oldSize
	}
	a := roundUp(newSize)
	for ; a < oldSize; a += PageSize {
		pd.Unmap(a)
	}
	return newSize
}

// FreePgdir deallocates all user mappings then releases the directory:
// dealloc user mappings, then free each page table, then the directory
// itself (all implicit here once no references to pd remain, but
// Unmap-everything happens explicitly for deterministic test timing and
// to match the explicit ordering a real free_pgdir needs).
func (pd *PageDir) FreePgdir() {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	for i, pt := range pd.entries {
		if uint32(i) == pd.kernelPDX || pt == nil {
			continue
		}
		for j := range pt.entries {
			pt.entries[j] = pte{}
		}
		pd.entries[i] = nil
	}
}

// ClonePgdir creates a fresh directory sharing the kernel mapping and
// containing byte-identical copies of every user page (eager copy, no
// copy-on-write, matching fork's "child gets its own private copy"
// semantics). The caller must hold whatever lock keeps parent's pages
// stable for the duration of the copy.
func (pd *PageDir) ClonePgdir() *PageDir {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	np := NewKernelOnly()
	for i, pt := range pd.entries {
		if uint32(i) == pd.kernelPDX || pt == nil {
			continue
		}
		for j, e := range pt.entries {
			if !e.present() {
				continue
			}
			va := uint32(i)<<22 | uint32(j)<<12
			nf := newFrame()
			*nf = *e.frame
			np.Map(va, nf, e.flags)
		}
	}
	return np
}

// CopyToUser walks pd page-by-page to find the physical frame backing
// each destination page and copies src through it.
func (pd *PageDir) CopyToUser(va uint32, src []byte) errno.Err {
	for len(src) > 0 {
		frame, _, ok := pd.Translate(va)
		if !ok {
			return errno.EFAULT
		}
		off := pgoff(va)
		n := copy(frame.Bytes[off:], src)
		src = src[n:]
		va += uint32(n)
	}
	return errno.OK
}

// CopyFromUser is CopyToUser's mirror: copies out of user pages into a
// kernel-owned destination buffer.
func (pd *PageDir) CopyFromUser(dst []byte, va uint32) errno.Err {
	for len(dst) > 0 {
		frame, _, ok := pd.Translate(va)
		if !ok {
			return errno.EFAULT
		}
		off := pgoff(va)
		n := copy(dst, frame.Bytes[off:])
		dst = dst[n:]
		va += uint32(n)
	}
	return errno.OK
}

// CopyInString copies a NUL-terminated, length-bounded string out of
// user memory starting at va. Any translation failure surfaces as
// EFAULT: a bad userland pointer, not a kernel-side fault.
func (pd *PageDir) CopyInString(va uint32, max int) (string, errno.Err) {
	buf := make([]byte, 0, 64)
	for i := 0; i < max; i++ {
		frame, _, ok := pd.Translate(va + uint32(i))
		if !ok {
			return "", errno.EFAULT
		}
		b := frame.Bytes[pgoff(va+uint32(i))]
		if b == 0 {
			return string(buf), errno.OK
		}
		buf = append(buf, b)
	}
	return "", errno.EINVAL
}

func roundUp(n uint32) uint32 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}
