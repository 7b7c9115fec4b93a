package syscall

import (
	"testing"
	"time"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/kheap"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/ramfs"
	"github.com/aegros/kernel/internal/vfs"
	"github.com/stretchr/testify/require"
)

type harness struct {
	table *proc.Table
	vfs   *vfs.VFS
	fs    *ramfs.FS
	disp  *Dispatcher
	kheap *kheap.Heap
}

func newHarness(t *testing.T) *harness {
	cfg := kconfig.Default()
	cfg.MaxProcesses = 64
	kh := kheap.New(kheap.BlockSize * 128)
	table := proc.NewTable(cfg, kh)

	v := vfs.New()
	fs := ramfs.New()
	require.True(t, v.Mounts.Add("/", 0, fs, fs.Root()).Ok())

	return &harness{table: table, vfs: v, fs: fs, disp: New(table, v, kh, cfg.MaxOpenFiles), kheap: kh}
}

// run loads a trivial process, starts the scheduler, drives work
// inside a RunThread-backed goroutine, and waits for it to signal
// done via the returned channel before stopping the scheduler.
func (hs *harness) run(t *testing.T, work func(h *proc.Handle)) {
	fds := vfs.NewFDTable(16)
	pid, err := hs.table.ProcessLoad("t", 0, fds, []proc.Segment{{VAddr: kconfig.ProgramVirtualAddress, Data: []byte{0x90}}}, kconfig.ProgramVirtualAddress)
	require.True(t, err.Ok())

	done := make(chan struct{})
	hs.table.RunThread(pid, func(h *proc.Handle) {
		work(h)
		close(done)
		h.Exit(0)
	})
	go hs.table.Scheduler().Run()
	defer hs.table.Scheduler().Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("syscall work never completed")
	}
}

func TestOpenWriteReadRoundTrip(t *testing.T) {
	hs := newHarness(t)
	_, err := hs.vfs.Create(hs.fs.Root(), "greeting")
	require.True(t, err.Ok())

	hs.run(t, func(h *proc.Handle) {
		pd := h.Proc().PageDir
		pathVA := uint32(kconfig.ProgramVirtualAddress + 4096)
		_, aerr := pd.AllocUVM(kconfig.ProgramVirtualAddress+4096, kconfig.ProgramVirtualAddress+3*4096)
		require.True(t, aerr.Ok())
		require.True(t, pd.CopyToUser(pathVA, append([]byte("/greeting"), 0)).Ok())

		tf := &proc.TrapFrame{RAX: Open, Args: [6]uintptr{uintptr(pathVA), 0}}
		hs.disp.Dispatch(h, tf)
		fd := int(tf.RAX)
		require.GreaterOrEqual(t, fd, 0)

		bufVA := uint32(kconfig.ProgramVirtualAddress + 8192)
		payload := []byte("hello kernel")
		require.True(t, pd.CopyToUser(bufVA, payload).Ok())

		wtf := &proc.TrapFrame{RAX: Write, Args: [6]uintptr{uintptr(fd), uintptr(bufVA), uintptr(len(payload))}}
		hs.disp.Dispatch(h, wtf)
		require.EqualValues(t, len(payload), wtf.RAX)

		stf := &proc.TrapFrame{RAX: Lseek, Args: [6]uintptr{uintptr(fd), 0, uintptr(vfs.SeekSet)}}
		hs.disp.Dispatch(h, stf)
		require.EqualValues(t, 0, stf.RAX)

		rtf := &proc.TrapFrame{RAX: Read, Args: [6]uintptr{uintptr(fd), uintptr(bufVA), uintptr(len(payload))}}
		hs.disp.Dispatch(h, rtf)
		require.EqualValues(t, len(payload), rtf.RAX)

		got := make([]byte, len(payload))
		require.True(t, pd.CopyFromUser(got, bufVA).Ok())
		require.Equal(t, payload, got)
	})
}

func TestMallocFreeRoundTrip(t *testing.T) {
	hs := newHarness(t)
	hs.run(t, func(h *proc.Handle) {
		tf := &proc.TrapFrame{RAX: Malloc, Args: [6]uintptr{64}}
		hs.disp.Dispatch(h, tf)
		id := tf.RAX
		require.NotZero(t, id)

		ftf := &proc.TrapFrame{RAX: Free, Args: [6]uintptr{id}}
		hs.disp.Dispatch(h, ftf)
		require.EqualValues(t, 0, ftf.RAX)
	})
}

func TestForkAndWaitpid(t *testing.T) {
	hs := newHarness(t)
	fds := vfs.NewFDTable(16)
	pid, err := hs.table.ProcessLoad("sh", 0, fds, []proc.Segment{{VAddr: kconfig.ProgramVirtualAddress, Data: []byte{0x90}}}, kconfig.ProgramVirtualAddress)
	require.True(t, err.Ok())

	childPidCh := make(chan uintptr, 1)
	done := make(chan struct{})
	hs.table.RunThread(pid, func(h *proc.Handle) {
		tf := &proc.TrapFrame{RAX: Fork}
		hs.disp.Dispatch(h, tf)
		childPidCh <- tf.RAX

		wtf := &proc.TrapFrame{RAX: Waitpid, Args: [6]uintptr{tf.RAX}}
		hs.disp.Dispatch(h, wtf)
		require.EqualValues(t, tf.RAX, wtf.RAX)
		close(done)
		h.Exit(0)
	})

	go hs.table.Scheduler().Run()
	defer hs.table.Scheduler().Stop()

	// the forked child must independently exit for waitpid to unblock.
	go func() {
		childPid := <-childPidCh
		for i := 0; i < 200; i++ {
			if child, ok := hs.table.Get(proc.Pid(childPid)); ok {
				hs.table.RunThread(child.Pid, func(h *proc.Handle) { h.Exit(3) })
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("fork/waitpid never completed")
	}
}

func TestMemstat(t *testing.T) {
	hs := newHarness(t)
	hs.run(t, func(h *proc.Handle) {
		pd := h.Proc().PageDir
		statVA := uint32(kconfig.ProgramVirtualAddress + 4096)
		_, aerr := pd.AllocUVM(kconfig.ProgramVirtualAddress+4096, kconfig.ProgramVirtualAddress+2*4096)
		require.True(t, aerr.Ok())

		tf := &proc.TrapFrame{RAX: Memstat, Args: [6]uintptr{uintptr(statVA)}}
		hs.disp.Dispatch(h, tf)
		require.EqualValues(t, 0, tf.RAX)

		buf := make([]byte, 12)
		require.True(t, pd.CopyFromUser(buf, statVA).Ok())
	})
}

func TestUnknownSyscallIsENOSYS(t *testing.T) {
	hs := newHarness(t)
	hs.run(t, func(h *proc.Handle) {
		tf := &proc.TrapFrame{RAX: 9999}
		hs.disp.Dispatch(h, tf)
		require.EqualValues(t, errno.ENOSYS.Errno(), int32(tf.RAX))
	})
}
