// Package sleeplock is a blocking mutex built atop a spinlock and the
// sleep/wakeup primitive, for locks that may be held across operations
// too slow to spin for, e.g. a disk read.
package sleeplock

import (
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/spinlock"
)

// Sleeplock guards a resource that may be held across a blocking
// operation. Unlike spinlock.Spinlock, the holder may be descheduled
// while holding it.
type Sleeplock struct {
	inner  *spinlock.Spinlock
	locked bool
	name   string
	holder proc.Pid
}

func New(name string) *Sleeplock {
	return &Sleeplock{inner: spinlock.New(name), name: name}
}

// Acquire takes the inner spinlock, then sleeps on the lock's own
// address while it is held, looping on the locked flag under the
// spinlock the same way a blocking mutex built on sleep/wakeup must.
func (l *Sleeplock) Acquire(h *proc.Handle) {
	l.inner.Lock()
	for l.locked {
		h.Sleep(l, l.inner)
	}
	l.locked = true
	l.holder = h.Proc().Pid
	l.inner.Unlock()
}

// Release clears locked and wakes every sleeper waiting on this lock.
func (l *Sleeplock) Release(h *proc.Handle) {
	l.inner.Lock()
	l.locked = false
	l.holder = 0
	h.Wakeup(l)
	l.inner.Unlock()
}

// Holding reports whether pid holds the lock, for debugging and for
// assertions that a caller who is about to touch the guarded resource
// actually owns it.
func (l *Sleeplock) Holding(pid proc.Pid) bool {
	l.inner.Lock()
	defer l.inner.Unlock()
	return l.locked && l.holder == pid
}

func (l *Sleeplock) Name() string { return l.name }
