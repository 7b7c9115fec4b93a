package ramfs

import (
	"testing"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/vfs"
	"github.com/stretchr/testify/require"
)

// TestFileReadWriteSeek checks the basic round trip: write N bytes,
// seek to 0, read N bytes back identical.
func TestFileReadWriteSeek(t *testing.T) {
	fs := New()
	fdt := vfs.NewFDTable(16)
	v := vfs.New()
	require.True(t, v.Mounts.Add("/", 0, fs, fs.Root()).Ok())

	fd, err := v.Open(fdt, "/tmp", 0)
	require.Equal(t, -2, err.Errno()) // ENOENT: not created yet
	_ = fd

	child, err := fs.Root().Create("tmp")
	require.True(t, err.Ok())
	_ = child

	fdidx, err := v.Open(fdt, "/tmp", 0)
	require.True(t, err.Ok())

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = 0x5A
	}
	n, err := v.Write(fdt, fdidx, payload)
	require.True(t, err.Ok())
	require.Equal(t, 1024, n)

	_, err = v.Lseek(fdt, fdidx, 0, vfs.SeekSet)
	require.True(t, err.Ok())

	out := make([]byte, 1024)
	n, err = v.Read(fdt, fdidx, out)
	require.True(t, err.Ok())
	require.Equal(t, 1024, n)
	for _, b := range out {
		require.Equal(t, byte(0x5A), b)
	}
}

type fakeConsole struct{ got []byte }

func (f *fakeConsole) WriteByte(b byte) error {
	f.got = append(f.got, b)
	return nil
}

func TestConsoleIoctlAndWrite(t *testing.T) {
	fc := &fakeConsole{}
	console := NewConsole(fc, 25, 80)

	n, err := console.Write(&vfs.FD{}, []byte("hi"))
	require.True(t, err.Ok())
	require.Equal(t, 2, n)
	require.Equal(t, []byte("hi"), fc.got)

	mode, err := console.Ioctl(TCGETMODE, 0)
	require.True(t, err.Ok())
	require.Equal(t, 0, mode)

	_, err = console.Ioctl(TCSETRAW, 0)
	require.True(t, err.Ok())
	mode, _ = console.Ioctl(TCGETMODE, 0)
	require.Equal(t, 1, mode)

	winsz, err := console.Ioctl(TIOCGWINSZ, 0)
	require.True(t, err.Ok())
	require.Equal(t, 25<<16|80, winsz)

	_, err = console.Ioctl(999, 0)
	require.Equal(t, errno.EINVAL.Errno(), err.Errno())
}

func TestNullAndZero(t *testing.T) {
	null := NewNull()
	n, err := null.Write(&vfs.FD{}, []byte("discarded"))
	require.True(t, err.Ok())
	require.Equal(t, len("discarded"), n)
	buf := []byte{1, 2, 3}
	n, err = null.Read(&vfs.FD{}, buf)
	require.True(t, err.Ok())
	require.Equal(t, 0, n)

	zero := NewZero()
	buf2 := []byte{1, 2, 3}
	n, err = zero.Read(&vfs.FD{}, buf2)
	require.True(t, err.Ok())
	require.Equal(t, 3, n)
	require.Equal(t, []byte{0, 0, 0}, buf2)
}

func TestDeviceRegistrationAndGetdents(t *testing.T) {
	fs := New()
	fc := &fakeConsole{}
	require.True(t, AddDevice(fs.Root(), "console", NewConsole(fc, 25, 80)).Ok())
	require.True(t, AddDevice(fs.Root(), "null", NewNull()).Ok())
	require.True(t, AddDevice(fs.Root(), "zero", NewZero()).Ok())

	ents, err := fs.Root().Getdents()
	require.True(t, err.Ok())
	require.Len(t, ents, 3)

	_, err = fs.Root().Lookup("console")
	require.True(t, err.Ok())

	require.Equal(t, errno.EEXIST.Errno(), AddDevice(fs.Root(), "null", NewNull()).Errno())
}
