// Package spinlock implements mutual exclusion with interrupt-disable
// nesting. On the uniprocessor hosted simulator "interrupts disabled"
// is a per-CPU depth counter: PushCli/PopCli raise/lower it and
// IntsDisabled reports it, which trap handlers assert on. The
// scheduler does not read it; a timer tick never preempts the running
// thread.
package spinlock

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/aegros/kernel/internal/klog"
)

// Cpu is the per-logical-CPU interrupt-disable nesting state. There is
// only one logical CPU in this design (no SMP), so one Cpu value is
// shared by the whole kernel; a future SMP extension would give each
// hardware CPU its own.
type Cpu struct {
	depth      int32 // push-cli nesting depth
	wasEnabled bool  // interrupt-enable state before the outermost push
}

var cpu0 Cpu

// CurrentCPU returns the (sole) logical CPU's interrupt-disable state.
func CurrentCPU() *Cpu { return &cpu0 }

// PushCli disables interrupts, remembering the prior state only at the
// outermost nesting level so pairs of push/pop compose correctly.
func (c *Cpu) PushCli() {
	enabled := atomic.LoadInt32(&c.depth) == 0
	if atomic.AddInt32(&c.depth, 1) == 1 {
		c.wasEnabled = enabled
	}
}

// PopCli re-enables interrupts only when the outermost paired disable is
// undone. Popping without a matching push is a fatal error.
func (c *Cpu) PopCli() {
	d := atomic.AddInt32(&c.depth, -1)
	if d < 0 {
		klog.Panicf("popcli: unmatched pop-cli")
	}
}

// IntsDisabled reports whether interrupts are currently held disabled by
// at least one outstanding PushCli.
func (c *Cpu) IntsDisabled() bool {
	return atomic.LoadInt32(&c.depth) > 0
}

// goroutineID extracts the calling goroutine's numeric id from its own
// stack trace header ("goroutine 123 [running]: ..."). Nothing in the
// dependency set exposes goroutine-local identity, and a spinlock has
// no other cheap way to recognize "the same caller locking twice" on a
// single logical CPU, so this stands in for the CPU-identity check a
// real uniprocessor acquire() would do against mycpu().
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	start := bytes.IndexByte(b, ' ') + 1
	end := bytes.IndexByte(b[start:], ' ')
	id, _ := strconv.ParseInt(string(b[start:start+end]), 10, 64)
	return id
}

// owner records who holds a Spinlock, for diagnostics and for
// detecting re-entrant acquisition.
type owner struct {
	goid int64
	file string
	line int
}

// Spinlock is a busy-wait mutex that disables interrupts before
// spinning and records a debug ownership trail. It never sleeps:
// acquisition failure spins until the atomic exchange succeeds.
type Spinlock struct {
	locked int32
	name   string
	held   atomic.Value // *owner, valid only while locked == 1
}

func New(name string) *Spinlock {
	return &Spinlock{name: name}
}

// Lock disables interrupts, then spins until the lock is acquired.
// Re-entrant acquisition by the same goroutine is a fatal error: since
// this is a single-CPU design, a goroutine that already holds lk is the
// same logical CPU trying to acquire lk a second time, which would
// otherwise spin against its own held lock forever.
func (l *Spinlock) Lock() {
	CurrentCPU().PushCli()
	gid := goroutineID()
	if atomic.LoadInt32(&l.locked) == 1 {
		if o, ok := l.held.Load().(*owner); ok && o != nil && o.goid == gid {
			klog.Panicf("spinlock %q: reentrant acquisition by goroutine %d, previously acquired at %s:%d", l.name, gid, o.file, o.line)
		}
	}
	for !atomic.CompareAndSwapInt32(&l.locked, 0, 1) {
		// spin with interrupts disabled the whole time, matching
		// uniprocessor "acquire" semantics.
	}
	_, file, line, _ := runtime.Caller(1)
	l.held.Store(&owner{goid: gid, file: file, line: line})
}

// TryLock attempts to acquire without spinning; it still disables
// interrupts on success.
func (l *Spinlock) TryLock() bool {
	CurrentCPU().PushCli()
	if atomic.CompareAndSwapInt32(&l.locked, 0, 1) {
		_, file, line, _ := runtime.Caller(1)
		l.held.Store(&owner{goid: goroutineID(), file: file, line: line})
		return true
	}
	CurrentCPU().PopCli()
	return false
}

// Unlock releases the lock and re-enables interrupts per the push/pop
// nesting discipline. Releasing an unheld lock is a fatal error.
func (l *Spinlock) Unlock() {
	l.held.Store((*owner)(nil))
	if !atomic.CompareAndSwapInt32(&l.locked, 1, 0) {
		klog.Panicf("spinlock %q: release without ownership", l.name)
	}
	CurrentCPU().PopCli()
}

// Holding reports whether the lock is currently held by anyone. Used by
// assertions, not for synchronization decisions.
func (l *Spinlock) Holding() bool {
	return atomic.LoadInt32(&l.locked) == 1
}

// Holder returns the file:line that last acquired the lock and whether
// that acquisition is still current. Diagnostic only.
func (l *Spinlock) Holder() (file string, line int, ok bool) {
	o, _ := l.held.Load().(*owner)
	if o == nil || atomic.LoadInt32(&l.locked) == 0 {
		return "", 0, false
	}
	return o.file, o.line, true
}
