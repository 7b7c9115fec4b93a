// Package bio is the block buffer cache: a fixed pool of 512-byte
// sector buffers on an LRU list, each guarded by its own sleeplock so
// concurrent callers serialize on a (dev, blockno) pair without
// busy-waiting.
package bio

import (
	"context"
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/klog"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/sleeplock"
	"golang.org/x/sync/semaphore"
)

// BlockSize is fixed inside the buffer cache; larger disk sectors are
// transparently split by the Disk implementation.
const BlockSize = 512

// Disk is the external collaborator the buffer cache issues reads and
// writes through.
type Disk interface {
	ReadBlock(lba uint64, buf []byte) errno.Err
	WriteBlock(lba uint64, buf []byte) errno.Err
	SectorSize() int
}

// Buffer is one block-cache entry. prev/next are indices into the
// Cache's preallocated table rather than raw pointers, so the LRU list
// lives as index-based structs inside a fixed arena instead of a
// pointer-linked list.
type Buffer struct {
	Dev   int
	Block uint64
	Valid bool
	Dirty bool
	Data  [BlockSize]byte
	lock  *sleeplock.Sleeplock
	refs  int
	prev  int
	next  int
	inUse bool
}

// Cache is the fixed-size buffer pool plus its LRU list, both guarded
// by a dedicated mutex (a plain mutex suffices here since list
// bookkeeping itself never blocks).
type Cache struct {
	mu       sync.Mutex
	bufs     []Buffer
	head     int // most-recently-used sentinel index
	tail     int // least-recently-used sentinel index
	disk     Disk
	inflight *semaphore.Weighted // bounds concurrent disk requests (simulated queue depth)
}

// New builds a cache of n buffers backed by disk, with at most
// queueDepth requests in flight at once, modeling a bounded AHCI
// command queue.
func New(n int, disk Disk, queueDepth int) *Cache {
	c := &Cache{
		bufs:     make([]Buffer, n+2), // [0]=head sentinel, [1]=tail sentinel, rest real buffers
		disk:     disk,
		inflight: semaphore.NewWeighted(int64(queueDepth)),
	}
	c.head, c.tail = 0, 1
	c.bufs[c.head].next = c.tail
	c.bufs[c.tail].prev = c.head
	for i := 2; i < len(c.bufs); i++ {
		c.bufs[i].lock = sleeplock.New("buf")
		c.insertAfterHead(i)
	}
	return c
}

func (c *Cache) insertAfterHead(i int) {
	first := c.bufs[c.head].next
	c.bufs[i].prev = c.head
	c.bufs[i].next = first
	c.bufs[first].prev = i
	c.bufs[c.head].next = i
}

func (c *Cache) unlink(i int) {
	p, n := c.bufs[i].prev, c.bufs[i].next
	c.bufs[p].next = n
	c.bufs[n].prev = p
}

func (c *Cache) moveToFront(i int) {
	c.unlink(i)
	c.insertAfterHead(i)
}

// Bread finds the buffer already caching (dev, block), or evicts the
// least-recently-used unreferenced one to take its place, loading from
// disk if the returned buffer isn't already valid. The caller must
// Brelse it.
func (c *Cache) Bread(h *proc.Handle, dev int, block uint64) (*Buffer, errno.Err) {
	c.mu.Lock()
	for i := c.bufs[c.head].next; i != c.tail; i = c.bufs[i].next {
		b := &c.bufs[i]
		if b.inUse && b.Dev == dev && b.Block == block {
			b.refs++
			c.mu.Unlock()
			b.lock.Acquire(h)
			return b, errno.OK
		}
	}
	// no match: recycle the least-recently-used buffer with refs==0,
	// flushing any dirty data it still holds before repurposing it.
	for i := c.bufs[c.tail].prev; i != c.head; i = c.bufs[i].prev {
		b := &c.bufs[i]
		if b.refs != 0 {
			continue
		}
		staleBlock, staleData, wasDirty := b.Block, b.Data, b.Dirty

		b.inUse = true
		b.Dev = dev
		b.Block = block
		b.Valid = false
		b.Dirty = false
		b.refs = 1
		c.moveToFront(i)
		c.mu.Unlock()

		b.lock.Acquire(h)
		if wasDirty {
			if err := c.writeBlock(staleBlock, staleData[:]); err != errno.OK {
				b.lock.Release(h)
				return nil, err
			}
		}
		if err := c.load(h, b); err != errno.OK {
			b.lock.Release(h)
			return nil, err
		}
		return b, errno.OK
	}
	c.mu.Unlock()
	// every buffer is pinned: a kernel invariant violation, not a
	// recoverable I/O condition.
	klog.Panicf("bio: no free buffers")
	return nil, errno.EIO
}

func (c *Cache) load(h *proc.Handle, b *Buffer) errno.Err {
	ctx := context.Background()
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return errno.EIO
	}
	defer c.inflight.Release(1)
	if err := c.disk.ReadBlock(b.Block, b.Data[:]); err != errno.OK {
		return err
	}
	b.Valid = true
	return errno.OK
}

// writeBlock issues one synchronous write through the bounded inflight
// queue, independent of any particular Buffer (Bread's eviction path
// needs to flush a buffer's stale contents under its old block number,
// after the buffer's fields have already been repurposed).
func (c *Cache) writeBlock(block uint64, data []byte) errno.Err {
	ctx := context.Background()
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return errno.EIO
	}
	defer c.inflight.Release(1)
	return c.disk.WriteBlock(block, data)
}

// Bwrite marks b Dirty and writes it through immediately (synchronous
// for now; a write-back policy could defer this to Brelse or a flush
// daemon instead). The Dirty flag is set before the write starts and
// only cleared on success, so a failed write leaves the buffer
// eligible to be flushed again before it is ever evicted. The caller
// must still hold b's sleeplock.
func (c *Cache) Bwrite(b *Buffer) errno.Err {
	b.Dirty = true
	if err := c.writeBlock(b.Block, b.Data[:]); err != errno.OK {
		return err
	}
	b.Dirty = false
	return errno.OK
}

// Brelse releases b's sleeplock and moves it to the MRU end. A dirty
// buffer is flushed before it can ever be evicted (see Bread), not
// necessarily before Brelse returns.
func (c *Cache) Brelse(h *proc.Handle, b *Buffer) {
	b.lock.Release(h)
	c.mu.Lock()
	b.refs--
	for i := 2; i < len(c.bufs); i++ {
		if &c.bufs[i] == b {
			c.moveToFront(i)
			break
		}
	}
	c.mu.Unlock()
}
