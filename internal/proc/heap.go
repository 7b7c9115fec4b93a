package proc

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kheap"
)

// Heap is a process's user-heap arena backing the malloc/calloc/
// realloc/free syscalls. It reuses the kernel heap's bitmap allocator
// design (internal/kheap) over a private arena of its own rather than
// the shared kernel region. The arena is not mapped into the process's
// page directory; allocations are named by opaque ids, not user
// addresses.
type Heap struct {
	mu     sync.Mutex
	region *kheap.Heap
	live   map[uintptr][]byte
	nextID uintptr
}

func newHeap(backing *kheap.Heap) *Heap {
	// A per-process heap shares the kernel allocator's bitmap
	// machinery but draws from its own carve-out so one process's
	// malloc traffic cannot fragment another's. The carve-out is a
	// fixed 256 blocks; backing is not drawn from.
	_ = backing
	return &Heap{region: kheap.New(kheap.BlockSize * 256), live: make(map[uintptr][]byte)}
}

// Malloc allocates n bytes and returns an opaque handle (the value the
// user-space pointer would be derived from by the syscall layer).
func (h *Heap) Malloc(n int) (uintptr, errno.Err) {
	buf, err := h.region.Alloc(n)
	if err != errno.OK {
		return 0, err
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.live[id] = buf
	h.mu.Unlock()
	return id, errno.OK
}

// Calloc allocates n*size zeroed bytes. The arena reuses freed blocks
// as they are, so the allocation is cleared explicitly.
func (h *Heap) Calloc(n, size int) (uintptr, errno.Err) {
	id, err := h.Malloc(n * size)
	if err != errno.OK {
		return 0, err
	}
	buf, _ := h.Bytes(id)
	for i := range buf {
		buf[i] = 0
	}
	return id, errno.OK
}

// Realloc grows or shrinks the allocation named by id, preserving its
// existing contents up to the smaller of the two sizes.
func (h *Heap) Realloc(id uintptr, newSize int) (uintptr, errno.Err) {
	h.mu.Lock()
	old, ok := h.live[id]
	h.mu.Unlock()
	if !ok {
		return 0, errno.EINVAL
	}
	nb, err := h.region.Alloc(newSize)
	if err != errno.OK {
		return 0, err
	}
	copy(nb, old)
	h.region.Free(old)
	h.mu.Lock()
	h.nextID++
	nid := h.nextID
	delete(h.live, id)
	h.live[nid] = nb
	h.mu.Unlock()
	return nid, errno.OK
}

func (h *Heap) Free(id uintptr) errno.Err {
	h.mu.Lock()
	buf, ok := h.live[id]
	if ok {
		delete(h.live, id)
	}
	h.mu.Unlock()
	if !ok {
		return errno.EINVAL
	}
	h.region.Free(buf)
	return errno.OK
}

// Bytes returns the live allocation's backing bytes, for the syscall
// layer to copy to/from user space.
func (h *Heap) Bytes(id uintptr) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.live[id]
	return b, ok
}
