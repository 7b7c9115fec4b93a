package syscall

import (
	"encoding/binary"
	"path/filepath"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/klog"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/vfs"
)

func (d *Dispatcher) registerAll() {
	d.register(Open, sysOpen)
	d.register(Close, sysClose)
	d.register(Read, sysRead)
	d.register(Write, sysWrite)
	d.register(Lseek, sysLseek)
	d.register(Fstat, sysFstat)
	d.register(Ioctl, sysIoctl)
	d.register(Getdents, sysGetdents)
	d.register(Chdir, sysChdir)
	d.register(Getcwd, sysGetcwd)
	d.register(Fork, sysFork)
	d.register(Exec, sysExec)
	d.register(Waitpid, sysWaitpid)
	d.register(Exit, sysExit)
	d.register(CreateProcess, sysCreateProcess)
	d.register(Sleep, sysSleep)
	d.register(Yield, sysYield)
	d.register(Malloc, sysMalloc)
	d.register(Calloc, sysCalloc)
	d.register(Realloc, sysRealloc)
	d.register(Free, sysFree)
	d.register(Print, sysPrint)
	d.register(Ps, sysPs)
	d.register(Memstat, sysMemstat)
	d.register(Reboot, sysReboot)
	d.register(Shutdown, sysShutdown)
	d.register(GetProgramArguments, sysGetProgramArguments)
}

func sysOpen(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	path, err := copyInPath(h, uint32(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	mode := int(tf.Args[1])
	fd, err := d.VFS.Open(h.Proc().Fds, path, mode)
	if err != errno.OK {
		return 0, err
	}
	return uintptr(fd), errno.OK
}

func sysClose(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	return 0, d.VFS.Close(h.Proc().Fds, int(tf.Args[0]))
}

func sysRead(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	fdidx := int(tf.Args[0])
	n := int(tf.Args[2])
	buf := make([]byte, n)
	got, err := d.VFS.Read(h.Proc().Fds, fdidx, buf)
	if err != errno.OK {
		return 0, err
	}
	if werr := h.Proc().PageDir.CopyToUser(uint32(tf.Args[1]), buf[:got]); werr != errno.OK {
		return 0, werr
	}
	return uintptr(got), errno.OK
}

func sysWrite(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	fdidx := int(tf.Args[0])
	n := int(tf.Args[2])
	buf := make([]byte, n)
	if err := h.Proc().PageDir.CopyFromUser(buf, uint32(tf.Args[1])); err != errno.OK {
		return 0, err
	}
	got, err := d.VFS.Write(h.Proc().Fds, fdidx, buf)
	if err != errno.OK {
		return 0, err
	}
	return uintptr(got), errno.OK
}

func sysLseek(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	fdidx := int(tf.Args[0])
	off := int64(tf.Args[1])
	whence := int(tf.Args[2])
	no, err := d.VFS.Lseek(h.Proc().Fds, fdidx, off, whence)
	if err != errno.OK {
		return 0, err
	}
	return uintptr(no), errno.OK
}

// statWireSize is the fixed on-the-wire layout of vfs.Stat: 4 bytes
// Type, 8 bytes Size, 4 bytes Mode, little-endian.
const statWireSize = 16

func encodeStat(s vfs.Stat) []byte {
	buf := make([]byte, statWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.Type))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(s.Size))
	binary.LittleEndian.PutUint32(buf[12:16], s.Mode)
	return buf
}

func sysFstat(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	st, err := d.VFS.Fstat(h.Proc().Fds, int(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	if werr := h.Proc().PageDir.CopyToUser(uint32(tf.Args[1]), encodeStat(st)); werr != errno.OK {
		return 0, werr
	}
	return 0, errno.OK
}

func sysIoctl(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	ret, err := d.VFS.Ioctl(h.Proc().Fds, int(tf.Args[0]), int(tf.Args[1]), tf.Args[2])
	return uintptr(ret), err
}

// direntWireSize: 32-byte NUL-padded name + 1-byte type.
const direntWireSize = 33

func sysGetdents(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	ents, err := d.VFS.Getdents(h.Proc().Fds, int(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	bufVA := uint32(tf.Args[1])
	bufSize := int(tf.Args[2])
	n := 0
	for _, e := range ents {
		if (n+1)*direntWireSize > bufSize {
			break
		}
		rec := make([]byte, direntWireSize)
		copy(rec, e.Name)
		rec[32] = byte(e.Type)
		if werr := h.Proc().PageDir.CopyToUser(bufVA+uint32(n*direntWireSize), rec); werr != errno.OK {
			return 0, werr
		}
		n++
	}
	return uintptr(n), errno.OK
}

func sysChdir(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	path, err := copyInPath(h, uint32(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	if _, rerr := d.VFS.Resolve(path); rerr != errno.OK {
		return 0, rerr
	}
	h.Proc().Cwd = path
	return 0, errno.OK
}

func sysGetcwd(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	cwd := h.Proc().Cwd
	size := int(tf.Args[1])
	if len(cwd)+1 > size {
		return 0, errno.EINVAL
	}
	buf := append([]byte(cwd), 0)
	if err := h.Proc().PageDir.CopyToUser(uint32(tf.Args[0]), buf); err != errno.OK {
		return 0, err
	}
	return uintptr(len(cwd)), errno.OK
}

func sysFork(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	childPid, err := d.Table.Fork(h.Proc().Pid)
	if err != errno.OK {
		return 0, err
	}
	return uintptr(childPid), errno.OK
}

func sysExec(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	path, err := copyInPath(h, uint32(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	data, err := readWholeFile(d, h.Proc().Fds, path)
	if err != errno.OK {
		return 0, err
	}
	seg := proc.Segment{VAddr: kconfig.ProgramVirtualAddress, Data: data}
	if err := d.Table.Exec(h.Proc().Pid, []proc.Segment{seg}, kconfig.ProgramVirtualAddress); err != errno.OK {
		return 0, err
	}
	return 0, errno.OK
}

func sysWaitpid(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	childPid := proc.Pid(tf.Args[0])
	pid, code, err := d.Table.WaitPid(h.Proc().Pid, childPid)
	if err != errno.OK {
		return 0, err
	}
	if statusVA := uint32(tf.Args[1]); statusVA != 0 {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(code))
		if werr := h.Proc().PageDir.CopyToUser(statusVA, buf); werr != errno.OK {
			return 0, werr
		}
	}
	return uintptr(pid), errno.OK
}

func sysExit(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	h.Exit(int(tf.Args[0]))
	return 0, errno.OK
}

func sysCreateProcess(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	path, err := copyInPath(h, uint32(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	data, err := readWholeFile(d, h.Proc().Fds, path)
	if err != errno.OK {
		return 0, err
	}
	seg := proc.Segment{VAddr: kconfig.ProgramVirtualAddress, Data: data}
	childPid, err := d.Table.ProcessLoad(filepath.Base(path), h.Proc().Pid, vfs.NewFDTable(d.maxOpenFiles), []proc.Segment{seg}, kconfig.ProgramVirtualAddress)
	if err != errno.OK {
		return 0, err
	}
	return uintptr(childPid), errno.OK
}

// readWholeFile opens path against fdt, reads it to EOF in 4096-byte
// chunks, and closes it. A dedicated helper rather
// than routing through fdt belonging to the caller's process long-term,
// since exec/create_process need the bytes, not a lingering descriptor.
func readWholeFile(d *Dispatcher, fdt *vfs.FDTable, path string) ([]byte, errno.Err) {
	fdidx, err := d.VFS.Open(fdt, path, vfs.FdRead)
	if err != errno.OK {
		return nil, err
	}
	defer d.VFS.Close(fdt, fdidx)

	const chunk = 4096
	var out []byte
	for {
		buf := make([]byte, chunk)
		n, rerr := d.VFS.Read(fdt, fdidx, buf)
		if rerr != errno.OK {
			return nil, rerr
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
		if n < chunk {
			break
		}
	}
	return out, errno.OK
}

func sysSleep(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	h.SleepTicks(uint64(tf.Args[0]))
	return 0, errno.OK
}

func sysYield(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	h.Yield()
	return 0, errno.OK
}

func sysMalloc(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	id, err := h.Proc().Heap.Malloc(int(tf.Args[0]))
	return id, err
}

func sysCalloc(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	id, err := h.Proc().Heap.Calloc(int(tf.Args[0]), int(tf.Args[1]))
	return id, err
}

func sysRealloc(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	id, err := h.Proc().Heap.Realloc(uintptr(tf.Args[0]), int(tf.Args[1]))
	return id, err
}

func sysFree(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	return 0, h.Proc().Heap.Free(uintptr(tf.Args[0]))
}

func sysPrint(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	s, err := copyInPath(h, uint32(tf.Args[0]))
	if err != errno.OK {
		return 0, err
	}
	klog.Infof("%s", s)
	return uintptr(len(s)), errno.OK
}

// psWireSize: pid int32, ppid int32, name[24]byte, priority int32,
// state int32.
const psWireSize = 4 + 4 + 24 + 4 + 4

func sysPs(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	entries := d.Table.Snapshot()
	bufVA := uint32(tf.Args[0])
	bufSize := int(tf.Args[1])
	n := 0
	for _, e := range entries {
		if (n+1)*psWireSize > bufSize {
			break
		}
		rec := make([]byte, psWireSize)
		binary.LittleEndian.PutUint32(rec[0:4], uint32(e.Pid))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(e.Ppid))
		copy(rec[8:32], e.Name)
		binary.LittleEndian.PutUint32(rec[32:36], uint32(e.Priority))
		binary.LittleEndian.PutUint32(rec[36:40], uint32(e.State))
		if werr := h.Proc().PageDir.CopyToUser(bufVA+uint32(n*psWireSize), rec); werr != errno.OK {
			return 0, werr
		}
		n++
	}
	return uintptr(n), errno.OK
}

func sysMemstat(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	free, used := d.KHeap.Stats()
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(free))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(used))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(d.Table.Count()))
	if err := h.Proc().PageDir.CopyToUser(uint32(tf.Args[0]), buf); err != errno.OK {
		return 0, err
	}
	return 0, errno.OK
}

func sysReboot(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	klog.Panicf("syscall: reboot requested")
	return 0, errno.OK
}

func sysShutdown(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	klog.Panicf("syscall: shutdown requested")
	return 0, errno.OK
}

func sysGetProgramArguments(d *Dispatcher, h *proc.Handle, tf *proc.TrapFrame) (uintptr, errno.Err) {
	args := h.Proc().ArgsBlock
	size := int(tf.Args[1])
	if len(args) > size {
		return 0, errno.EINVAL
	}
	if err := h.Proc().PageDir.CopyToUser(uint32(tf.Args[0]), args); err != errno.OK {
		return 0, err
	}
	return uintptr(len(args)), errno.OK
}
