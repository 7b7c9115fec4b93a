package ramfs

import (
	"sync"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/vfs"
)

// Console line-discipline ioctls: raw/cooked mode and a window-size
// query, the minimal set a TTY needs.
const (
	TCGETMODE = 1 // returns current mode (0=cooked, 1=raw) as the ioctl result
	TCSETRAW  = 2
	TCSETCOOK = 3
	TIOCGWINSZ = 4 // returns (rows<<16 | cols) as the ioctl result
)

// ConsoleWriter is the sink a console device inode's Write forwards
// to; a real putchar/keyboard_push pair is not modeled, so this is the
// console's whole external contract.
type ConsoleWriter interface {
	WriteByte(b byte) error
}

type consoleState struct {
	mu   sync.Mutex
	raw  bool
	rows int
	cols int
	out  ConsoleWriter
}

// NewConsole builds /dev/console: a device inode whose Write forwards
// to out and whose Ioctl implements a small line-discipline command
// set (raw/cooked mode, window size query).
func NewConsole(out ConsoleWriter, rows, cols int) *vfs.Inode {
	st := &consoleState{out: out, rows: rows, cols: cols}
	ops := &vfs.Ops{
		Write: func(inode *vfs.Inode, fd *vfs.FD, src []byte) (int, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			for _, b := range src {
				if writeErr := st.out.WriteByte(b); writeErr != nil {
					return 0, errno.EIO
				}
			}
			return len(src), errno.OK
		},
		Ioctl: func(inode *vfs.Inode, cmd int, arg uintptr) (int, errno.Err) {
			st.mu.Lock()
			defer st.mu.Unlock()
			switch cmd {
			case TCGETMODE:
				if st.raw {
					return 1, errno.OK
				}
				return 0, errno.OK
			case TCSETRAW:
				st.raw = true
				return 0, errno.OK
			case TCSETCOOK:
				st.raw = false
				return 0, errno.OK
			case TIOCGWINSZ:
				return st.rows<<16 | st.cols, errno.OK
			default:
				return 0, errno.EINVAL
			}
		},
		StatFn: func(inode *vfs.Inode) (vfs.Stat, errno.Err) {
			return vfs.Stat{Type: vfs.TypeDevice}, errno.OK
		},
	}
	return vfs.NewInode(vfs.TypeDevice, "RAMFS", ops, st)
}

// NewNull builds /dev/null: reads return EOF (0 bytes), writes are
// discarded and report full success.
func NewNull() *vfs.Inode {
	ops := &vfs.Ops{
		Read: func(inode *vfs.Inode, fd *vfs.FD, dst []byte) (int, errno.Err) {
			return 0, errno.OK
		},
		Write: func(inode *vfs.Inode, fd *vfs.FD, src []byte) (int, errno.Err) {
			return len(src), errno.OK
		},
		StatFn: func(inode *vfs.Inode) (vfs.Stat, errno.Err) {
			return vfs.Stat{Type: vfs.TypeDevice}, errno.OK
		},
	}
	return vfs.NewInode(vfs.TypeDevice, "RAMFS", ops, nil)
}

// NewZero builds /dev/zero: reads fill dst with zero bytes, writes
// are discarded like /dev/null.
func NewZero() *vfs.Inode {
	ops := &vfs.Ops{
		Read: func(inode *vfs.Inode, fd *vfs.FD, dst []byte) (int, errno.Err) {
			for i := range dst {
				dst[i] = 0
			}
			return len(dst), errno.OK
		},
		Write: func(inode *vfs.Inode, fd *vfs.FD, src []byte) (int, errno.Err) {
			return len(src), errno.OK
		},
		StatFn: func(inode *vfs.Inode) (vfs.Stat, errno.Err) {
			return vfs.Stat{Type: vfs.TypeDevice}, errno.OK
		},
	}
	return vfs.NewInode(vfs.TypeDevice, "RAMFS", ops, nil)
}
