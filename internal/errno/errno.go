// Package errno defines the kernel's error kinds and their user-visible
// errno mapping.
package errno

import "fmt"

// Err is the kernel's internal error type: a small negative integer,
// convertible to the errno a syscall returns in EAX. It implements the
// standard error interface so callers can use errors.Is against the
// sentinel values below.
type Err int

func (e Err) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Errno returns the negative integer a syscall handler stores in the
// trap frame's return-value register.
func (e Err) Errno() int {
	return int(e)
}

// Ok reports whether e represents success (the zero value).
func (e Err) Ok() bool {
	return e == 0
}

const (
	OK Err = 0

	// IO: underlying device failure. Surfaces to user, never crashes
	// the kernel.
	EIO Err = -5

	// InvalidArgument: returned; syscall converts to user errno.
	EINVAL Err = -22

	// OutOfMemory: allocation failure during a syscall becomes this;
	// during boot it is fatal (a panic, not this value).
	ENOMEM Err = -12

	// BadPath / NotFound: VFS, user-visible.
	ENOENT Err = -2
	EBADPATH Err = -100

	// ReadOnly / Unsupported: filesystem refuses the operation.
	EROFS   Err = -30
	ENOSYS  Err = -38

	// Again: resource temporarily unavailable, caller retries.
	EAGAIN Err = -11

	// InstanceTaken: e.g. duplicate mount prefix.
	EEXIST Err = -17

	// InvalidFormat: ELF/FAT parse failure.
	ENOEXEC Err = -8

	// process/fd specific
	EBADF   Err = -9
	ECHILD  Err = -10
	EFAULT  Err = -14
	EMFILE  Err = -24
	ESRCH   Err = -3
	ENOTDIR Err = -20
	EISDIR  Err = -21
)

var names = map[Err]string{
	OK:       "success",
	EIO:      "I/O error",
	EINVAL:   "invalid argument",
	ENOMEM:   "out of memory",
	ENOENT:   "no such file or directory",
	EBADPATH: "malformed path",
	EROFS:    "read-only filesystem",
	ENOSYS:   "operation not supported",
	EAGAIN:   "resource temporarily unavailable",
	EEXIST:   "mount point already taken",
	ENOEXEC:  "invalid executable format",
	EBADF:    "bad file descriptor",
	ECHILD:   "no child processes",
	EFAULT:   "bad address",
	EMFILE:   "too many open files",
	ESRCH:    "no such process",
	ENOTDIR:  "not a directory",
	EISDIR:   "is a directory",
}
