package syscall

import (
	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kheap"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/vfs"
)

// maxPathLen bounds CopyInString calls for path and print arguments:
// strings crossing the user/kernel boundary are length-bounded and
// copied into a kernel buffer rather than read in place.
const maxPathLen = 256

// Handler implements one syscall number. h drives the calling thread
// through the scheduler for any handler that may block (read from a
// device, waitpid, sleep); tf carries the arguments in Args and the
// number in RAX.
type Handler func(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err)

// Dispatcher is the fixed syscall table plus the subsystems handlers
// call into.
type Dispatcher struct {
	Table *proc.Table
	VFS   *vfs.VFS
	KHeap *kheap.Heap

	maxOpenFiles int
	handlers     map[uintptr]Handler
}

func New(table *proc.Table, v *vfs.VFS, kh *kheap.Heap, maxOpenFiles int) *Dispatcher {
	d := &Dispatcher{Table: table, VFS: v, KHeap: kh, maxOpenFiles: maxOpenFiles, handlers: make(map[uintptr]Handler)}
	d.registerAll()
	return d
}

func (d *Dispatcher) register(num uintptr, h Handler) {
	d.handlers[num] = h
}

// Dispatch is the common syscall handler: validates the call number,
// dispatches via the fixed table, and stores the return value in
// tf.RAX. An unknown call number is -ENOSYS, the same shape
// as any other syscall error, not a kernel panic: a user process
// issuing a bad syscall number is a userland error, not a kernel
// invariant violation.
func (d *Dispatcher) Dispatch(h *proc.Handle, tf *proc.TrapFrame) {
	num := tf.RAX
	fn, ok := d.handlers[num]
	if !ok {
		tf.RAX = uintptr(errno.ENOSYS.Errno())
		return
	}
	ret, err := fn(d, h, tf)
	if err != errno.OK {
		tf.RAX = uintptr(err.Errno())
		return
	}
	tf.RAX = ret
	if h.Killed() {
		h.Exit(0)
	}
}

// copyInPath translates and bounds-checks a path argument, surfacing
// translation failure as EFAULT: a userland pointer that doesn't
// resolve in the calling process's page directory is a bad address,
// not a kernel-side invariant violation.
func copyInPath(h *proc.Handle, va uint32) (string, errno.Err) {
	return h.Proc().PageDir.CopyInString(va, maxPathLen)
}
