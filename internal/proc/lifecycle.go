package proc

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/vfs"
	"github.com/aegros/kernel/internal/vm"
)

// Handle is the ergonomic, per-thread API the syscall and trap layers
// use to drive a thread through the scheduler. Exactly one Handle is
// ever "active" at a time system-wide, since the Scheduler only ever
// grants the baton to one thread.
type Handle struct {
	table *Table
	th    *Thread
}

func (h *Handle) Proc() *Process { return h.th.Proc }
func (h *Handle) Thread() *Thread { return h.th }

// Yield voluntarily gives up the CPU.
func (h *Handle) Yield() { h.table.sched.Yield(h.th) }

// Sleep blocks on ch, releasing lock for the duration.
func (h *Handle) Sleep(ch Chan, lock sync.Locker) { h.table.sched.Sleep(h.th, ch, lock) }

// Killed reports whether kill(pid) was called against this thread's
// process; syscall return paths check this and self-exit.
func (h *Handle) Killed() bool { return h.table.sched.checkKilled(h.th) }

// Wakeup marks every thread sleeping on ch Ready. Lock holders
// releasing a sleeplock or bio buffer call this directly.
func (h *Handle) Wakeup(ch Chan) { h.table.sched.Wakeup(ch) }

// noopLocker satisfies sync.Locker for a timed sleep, where no
// condition variable is actually being protected: the thread is woken
// by the tick deadline, not by a Wakeup on some shared state.
type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// SleepTicks blocks the thread until the scheduler's tick counter
// reaches now+ticks, fed by the timer interrupt (internal/trap's Timer
// calls Scheduler.Tick).
func (h *Handle) SleepTicks(ticks uint64) {
	if ticks == 0 {
		h.Yield()
		return
	}
	h.th.Deadline = h.table.sched.Ticks() + ticks
	h.table.sched.Sleep(h.th, h.th, noopLocker{})
}

// Exit marks the thread Stopped, the process Zombie, closes
// descriptors, frees the page directory, and wakes the parent on the
// child-process wait channel.
func (h *Handle) Exit(code int) {
	h.table.exit(h.th, code)
}

// RunThread spawns the goroutine that drives th through the Scheduler:
// it blocks until the Scheduler first grants the baton, then calls
// work with a Handle bound to this thread. work must eventually call
// Handle.Exit, the only way a thread permanently leaves rotation.
func (t *Table) RunThread(pid Pid, work func(h *Handle)) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	h := &Handle{table: t, th: p.Thread}
	go func() {
		<-h.th.runCh
		work(h)
	}()
	return true
}

// StartThread marks a Loading process's thread Ready, the final step
// of loading or forking a process.
func (t *Table) StartThread(pid Pid) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	p.mu.Lock()
	p.State = PRunning
	p.Thread.State = TReady
	p.mu.Unlock()
	return true
}

// exit is the shared implementation behind Handle.Exit and forced
// exits from Kill.
func (t *Table) exit(th *Thread, code int) {
	p := th.Proc
	p.mu.Lock()
	p.ExitCode = code
	p.State = PZombie
	th.State = TStopped
	p.mu.Unlock()

	p.Fds.CloseAll()
	p.PageDir.FreePgdir()
	t.sched.Unregister(th)

	if parent, ok := t.Get(p.ParentPid); ok {
		t.sched.Wakeup(parent.ChildWaitChan())
	}
	// Hand control back to the Scheduler loop permanently: this
	// thread will never again appear in pickReady since it was just
	// unregistered.
	t.sched.schedDone <- struct{}{}
}

// WaitPid implements wait/waitpid. childPid == 0 means "any child." It
// blocks until a matching child is a Zombie, then reaps it (clears its
// table slot) and returns its pid and exit code. With no matching
// children at all it returns ECHILD immediately, and a later call with
// no remaining children does too — a zombie can only be reaped once.
func (t *Table) WaitPid(parentPid, childPid Pid) (Pid, int, errno.Err) {
	parent, ok := t.Get(parentPid)
	if !ok {
		return 0, 0, errno.ESRCH
	}
	for {
		t.mu.Lock()
		var found *Process
		anyChildren := false
		for _, c := range t.procs {
			if c.ParentPid != parentPid {
				continue
			}
			if childPid != 0 && c.Pid != childPid {
				continue
			}
			anyChildren = true
			c.mu.Lock()
			st := c.State
			c.mu.Unlock()
			if st == PZombie {
				found = c
				break
			}
		}
		if !anyChildren {
			t.mu.Unlock()
			return 0, 0, errno.ECHILD
		}
		if found != nil {
			code := found.ExitCode
			pid := found.Pid
			delete(t.procs, pid)
			t.mu.Unlock()
			return pid, code, errno.OK
		}
		// sleep on our own child-wait channel, holding t.mu as the
		// condition lock so no wakeup between the scan above and the
		// sleep below is lost.
		t.sched.Sleep(parent.Thread, parent.ChildWaitChan(), &t.mu)
		t.mu.Unlock()
	}
}

// Fork duplicates the page directory, clones the thread (including
// kernel-stack content, modeled here by copying the trap frame so the
// child's "return path" resumes where the parent called fork), and
// sets the child's trap-frame return value to 0. Both threads end
// Ready; file descriptors are shared by refcounted duplication.
func (t *Table) Fork(parentPid Pid) (Pid, errno.Err) {
	parent, ok := t.Get(parentPid)
	if !ok {
		return 0, errno.ESRCH
	}
	parent.mu.Lock()
	childFds := parent.Fds.Fork()
	childPd := parent.PageDir.ClonePgdir()
	childCwd := parent.Cwd
	childName := parent.Name
	parentTf := *parent.Thread.TF
	parent.mu.Unlock()

	child, err := t.New(childName, parentPid, childFds)
	if err != errno.OK {
		childPd.FreePgdir()
		return 0, err
	}
	child.mu.Lock()
	child.PageDir = childPd
	child.Cwd = childCwd
	child.ImageSize = parent.ImageSize
	child.Thread.TF = &parentTf
	child.Thread.TF.RAX = 0 // fork returns 0 in the child, the child's own pid in the parent
	child.mu.Unlock()

	t.StartThread(child.Pid)
	t.StartThread(parentPid) // marks the parent Ready too, even while it is the running thread
	return child.Pid, errno.OK
}

// Exec replaces pid's address space in place with a new image, keeping
// the same pid and file descriptor table. The old page directory's
// user mappings are discarded before the new ones are installed.
func (t *Table) Exec(pid Pid, segments []Segment, entry uint32) errno.Err {
	p, ok := t.Get(pid)
	if !ok {
		return errno.ESRCH
	}
	p.mu.Lock()
	old := p.PageDir
	p.PageDir = vm.NewKernelOnly()
	p.mu.Unlock()
	old.FreePgdir()

	if err := loadSegments(p, segments, entry); err != errno.OK {
		return err
	}
	return errno.OK
}

// ProcessLoad expects the caller (the syscall/exec layer) to have
// already read the image from the VFS and to hand in its loaded
// segments and entry point; this function's job is solely the
// process/thread bookkeeping (page directory, user stack mapping, trap
// frame seeding). The exec and create_process syscall handlers load
// the whole file as a single flat segment at ProgramVirtualAddress;
// ELF images are not parsed anywhere.
func (t *Table) ProcessLoad(name string, parent Pid, fds *vfs.FDTable, segments []Segment, entry uint32) (Pid, errno.Err) {
	p, err := t.New(name, parent, fds)
	if err != errno.OK {
		return 0, err
	}
	if err := loadSegments(p, segments, entry); err != errno.OK {
		return 0, err
	}
	t.StartThread(p.Pid)
	return p.Pid, errno.OK
}

// Segment is one loaded program segment: an ELF p_vaddr-mapped region,
// or the single fixed-base segment of a flat binary.
type Segment struct {
	VAddr uint32
	Data  []byte
}

func loadSegments(p *Process, segments []Segment, entry uint32) errno.Err {
	var top uint32
	for _, seg := range segments {
		end := seg.VAddr + uint32(len(seg.Data))
		if end > top {
			top = end
		}
	}
	newSz, err := p.PageDir.AllocUVM(0, roundUpPage(top))
	if err != errno.OK {
		return err
	}
	for _, seg := range segments {
		if err := p.PageDir.CopyToUser(seg.VAddr, seg.Data); err != errno.OK {
			return err
		}
	}

	// user stack: kconfig.UserStackSize bytes ending at
	// kconfig.UserStackTop, a separate mapping from the image.
	stackBase := roundUpPage(kconfig.UserStackTop) - roundUpPage(kconfig.UserStackSize)
	if _, err := p.PageDir.AllocUVM(stackBase, stackBase+roundUpPage(kconfig.UserStackSize)); err != errno.OK {
		return err
	}

	p.mu.Lock()
	p.ImageSize = newSz
	p.UserStack = kconfig.UserStackTop
	p.Thread.TF = &TrapFrame{RAX: uintptr(entry)}
	p.mu.Unlock()

	return errno.OK
}

func roundUpPage(n uint32) uint32 {
	const pg = 4096
	return (n + pg - 1) &^ (pg - 1)
}
