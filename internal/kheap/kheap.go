// Package kheap is the kernel's fixed-region bitmap block allocator.
// It trades fragmentation for simplicity: all large, long-lived kernel
// allocations happen at boot, and user memory is managed by
// internal/vm instead.
package kheap

import (
	"sync"
	"unsafe"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/klog"
)

const BlockSize = 4096

type blockState uint8

const (
	free blockState = iota
	taken
)

type blockEntry struct {
	state   blockState
	hasNext bool
	isFirst bool
}

// Heap is a contiguous arena fronted by one blockEntry per BlockSize
// region. It is safe for concurrent use; a single mutex serializes the
// bitmap scan, the same role a single kernel heap spinlock would play.
type Heap struct {
	mu      sync.Mutex
	arena   []byte
	table   []blockEntry
	nblocks int
}

// New carves a Heap out of a freshly allocated arena of the requested
// size, rounded down to a whole number of blocks.
func New(sizeBytes int) *Heap {
	if sizeBytes < BlockSize {
		klog.Panicf("kheap: region too small: %d bytes", sizeBytes)
	}
	nblocks := sizeBytes / BlockSize
	return &Heap{
		arena:   make([]byte, nblocks*BlockSize),
		table:   make([]blockEntry, nblocks),
		nblocks: nblocks,
	}
}

// Alloc finds the first run of Free blocks large enough for n bytes,
// marks the first IsFirst and the rest HasNext, and returns a slice
// over the arena. It returns errno.ENOMEM if no run is found.
func (h *Heap) Alloc(n int) ([]byte, errno.Err) {
	if n <= 0 {
		return nil, errno.EINVAL
	}
	need := (n + BlockSize - 1) / BlockSize
	h.mu.Lock()
	defer h.mu.Unlock()

	run := 0
	start := -1
	for i := 0; i < h.nblocks; i++ {
		if h.table[i].state == free {
			if run == 0 {
				start = i
			}
			run++
			if run == need {
				h.table[start].isFirst = true
				h.table[start].state = taken
				for j := start + 1; j < start+need; j++ {
					h.table[j].state = taken
					h.table[j].hasNext = true
				}
				off := start * BlockSize
				return h.arena[off : off+n], errno.OK
			}
		} else {
			run = 0
			start = -1
		}
	}
	return nil, errno.ENOMEM
}

// Free locates the IsFirst block owning p and clears the run until
// HasNext is clear. Freeing a pointer that is not a block's first byte
// is a fatal kernel invariant violation.
func (h *Heap) Free(p []byte) {
	if len(p) == 0 {
		return
	}
	off := h.offsetOf(p)
	idx := off / BlockSize
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx < 0 || idx >= h.nblocks || !h.table[idx].isFirst {
		klog.Panicf("kheap: free of non-taken block at offset %d", off)
	}
	h.table[idx].isFirst = false
	h.table[idx].state = free
	i := idx + 1
	for i < h.nblocks && h.table[i].hasNext {
		h.table[i].hasNext = false
		h.table[i].state = free
		i++
	}
}

// offsetOf recovers p's byte offset into the arena via pointer
// arithmetic, the hosted equivalent of recovering a physical address
// from a kernel virtual address.
func (h *Heap) offsetOf(p []byte) int {
	base := uintptr(unsafe.Pointer(&h.arena[0]))
	elem := uintptr(unsafe.Pointer(&p[0]))
	if elem < base || elem >= base+uintptr(len(h.arena)) {
		klog.Panicf("kheap: free of pointer outside arena")
	}
	return int(elem - base)
}

// Stats reports free/used block counts for the memstat syscall.
func (h *Heap) Stats() (freeBlocks, usedBlocks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.table {
		if e.state == free {
			freeBlocks++
		} else {
			usedBlocks++
		}
	}
	return
}
