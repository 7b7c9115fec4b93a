// Package syscall is the system-call layer: argument marshaling from
// the trap frame, a fixed dispatch table keyed by a stable numeric
// ABI, and the handlers themselves. The common path validates the call
// number, dispatches, and stores the return value in the trap frame's
// RAX the same way the real entry path stores it in EAX.
package syscall

// These are the fixed syscall numbers userland binaries are compiled
// against; renumbering any of them breaks every existing binary.
const (
	Print      = 1
	Open       = 2
	Malloc     = 3
	Calloc     = 4
	Realloc    = 5
	Free       = 6
	Read       = 8
	GetProgramArguments = 11
	CreateProcess       = 12
	Fork                = 13
	Exec                = 14
	Waitpid             = 15
	Exit                = 16
	Sleep               = 17
	Yield               = 18
	Memstat             = 19
	Ps                  = 20
	Close               = 21
	Lseek               = 22
	Fstat               = 23
	Write               = 24
	Reboot              = 25
	Shutdown            = 26
	Getcwd              = 31
	Chdir               = 32
	Getdents            = 33
	Ioctl               = 34
)
