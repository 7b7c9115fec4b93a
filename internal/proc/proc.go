// Package proc is the process/thread table, the scheduler, and the
// sleep/wakeup primitive. These three are kept in one package since
// process lifecycle and scheduling are tightly coupled: the scheduler
// must see thread state transitions proc.go causes (exit -> Zombie,
// sleep -> Sleeping) and sleep/wakeup must call back into the
// scheduler to block/unblock — splitting them apart would either
// duplicate the process table or create an import cycle.
package proc

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/kheap"
	"github.com/aegros/kernel/internal/spinlock"
	"github.com/aegros/kernel/internal/vfs"
	"github.com/aegros/kernel/internal/vm"
)

// ProcState is a process's coarse lifecycle stage.
type ProcState int

const (
	PEmpty ProcState = iota
	PLoading
	PRunning
	PZombie
)

// ThreadState is the scheduler state a thread occupies.
type ThreadState int

const (
	TRunning ThreadState = iota
	TReady
	TSleeping
	TBlocked
	TStopped
	TPaused
)

func (s ThreadState) String() string {
	switch s {
	case TRunning:
		return "Running"
	case TReady:
		return "Ready"
	case TSleeping:
		return "Sleeping"
	case TBlocked:
		return "Blocked"
	case TStopped:
		return "Stopped"
	case TPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Pid identifies a process.
type Pid int

// Chan is the opaque wait-channel identity sleep/wakeup rendezvous on:
// any stable pointer works. Callers pass the address of the resource
// they are waiting on.
type Chan = interface{}

// TrapFrame is a minimal saved register/segment state, present when a
// thread is in kernel mode due to a trap. The hosted simulator does
// not need real general-purpose registers; RAX carries the syscall
// return value the way a real trap frame's EAX/RAX does.
type TrapFrame struct {
	TrapNo uintptr
	RAX    uintptr // syscall number in, return value out
	Args   [6]uintptr
}

// FPState is the floating-point save area. Task and thread state are
// kept as one type rather than split across separate structs.
type FPState struct {
	Saved [512]byte // fxsave-sized area
}

// Thread is a process's execution context.
type Thread struct {
	Proc      *Process
	Tid       int
	State     ThreadState
	WaitChan  Chan
	Deadline  uint64 // tick deadline for timed sleep; 0 if none
	TF        *TrapFrame
	FP        FPState
	KStack    []byte
	Priority  int
	killed    bool
	// runCh is signaled by the scheduler to hand this thread the
	// baton; doneCh is signaled by the thread when it reaches a
	// rescheduling point. Together they model the context switch
	// without real assembly stack-switching: exactly one goroutine
	// runs kernel code at a time.
	runCh  chan struct{}
	doneCh chan struct{}
}

// Process holds the per-process state: identity, address space, open
// files, and the single thread executing on its behalf.
type Process struct {
	mu        sync.Mutex
	Name      string
	Pid       Pid
	ParentPid Pid
	ExitCode  int
	Priority  int
	State     ProcState
	PageDir   *vm.PageDir
	Cwd       string
	Fds       *vfs.FDTable
	UserStack uint32
	ImageSize uint32
	ArgsBlock []byte
	Thread    *Thread
	Heap      *Heap // process-private malloc/calloc/realloc/free arena

	waitSentinel int // address used as the child-wait Chan identity
}

// ChildWaitChan is the stable pointer children wake on exit and this
// process's waitpid sleeps on.
func (p *Process) ChildWaitChan() Chan { return &p.waitSentinel }

const kstackSize = 16 * 1024

// Table is the process table. mu guards procs and nextPid; the
// "proctable" spinlock in lock is created but no path acquires it.
type Table struct {
	mu     sync.Mutex
	lock   *spinlock.Spinlock
	procs  map[Pid]*Process
	nextPid Pid
	cfg    kconfig.Config
	kheap  *kheap.Heap

	sched *Scheduler
}

func NewTable(cfg kconfig.Config, kh *kheap.Heap) *Table {
	t := &Table{
		lock:    spinlock.New("proctable"),
		procs:   make(map[Pid]*Process),
		nextPid: 1,
		cfg:     cfg,
		kheap:   kh,
	}
	t.sched = newScheduler(t)
	return t
}

// New creates a process in state Loading with a freshly cloned kernel
// page directory and a single thread, ready for process_load/fork to
// populate.
func (t *Table) New(name string, parent Pid, fds *vfs.FDTable) (*Process, errno.Err) {
	t.mu.Lock()
	if len(t.procs) >= t.cfg.MaxProcesses {
		t.mu.Unlock()
		return nil, errno.EAGAIN
	}
	pid := t.nextPid
	t.nextPid++
	p := &Process{
		Name:      name,
		Pid:       pid,
		ParentPid: parent,
		Priority:  1,
		State:     PLoading,
		PageDir:   vm.NewKernelOnly(),
		Cwd:       "/",
		Fds:       fds,
		Heap:      newHeap(t.kheap),
	}
	t.procs[pid] = p
	t.mu.Unlock()

	th := &Thread{
		Proc:     p,
		Tid:      int(pid),
		State:    TStopped,
		Priority: p.Priority,
		KStack:   make([]byte, kstackSize),
		runCh:    make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	p.Thread = th
	t.sched.Register(th)
	return p, errno.OK
}

// Scheduler exposes the scheduler loop and sleep/wakeup primitives to
// callers outside this package (the syscall and trap layers).
func (t *Table) Scheduler() *Scheduler { return t.sched }

// Get returns the process for pid, if live.
func (t *Table) Get(pid Pid) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	return p, ok
}

// Count returns the number of live (non-Empty) process slots, for the
// memstat syscall and for confirming the process count returns to its
// pre-fork value once a child is reaped.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}

// Snapshot returns a point-in-time copy of the table for the ps
// syscall.
type PsEntry struct {
	Pid      Pid
	Ppid     Pid
	Name     string
	Priority int
	State    ThreadState
}

func (t *Table) Snapshot() []PsEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PsEntry, 0, len(t.procs))
	for _, p := range t.procs {
		p.mu.Lock()
		out = append(out, PsEntry{
			Pid:      p.Pid,
			Ppid:     p.ParentPid,
			Name:     p.Name,
			Priority: p.Priority,
			State:    p.Thread.State,
		})
		p.mu.Unlock()
	}
	return out
}

func (t *Table) remove(pid Pid) {
	t.mu.Lock()
	delete(t.procs, pid)
	t.mu.Unlock()
}

// Kill sets the killed flag; the target self-exits at its next
// scheduling point.
func (t *Table) Kill(pid Pid) errno.Err {
	p, ok := t.Get(pid)
	if !ok {
		return errno.ESRCH
	}
	p.mu.Lock()
	p.Thread.killed = true
	ch := p.Thread.WaitChan
	wasSleeping := p.Thread.State == TSleeping
	timed := p.Thread.Deadline != 0
	p.mu.Unlock()
	if wasSleeping && ch != nil && !timed {
		// an untimed sleeper is woken early so it can observe
		// `killed` at its next scheduling point; a timed sleeper
		// legitimately ignores kill until its deadline.
		t.sched.Wakeup(ch)
	}
	return errno.OK
}

