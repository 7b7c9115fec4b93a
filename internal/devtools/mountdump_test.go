package devtools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/moby/sys/mountinfo"
	"github.com/stretchr/testify/require"

	"github.com/aegros/kernel/internal/ramfs"
	"github.com/aegros/kernel/internal/vfs"
)

func TestDumpVirtualMounts(t *testing.T) {
	mt := vfs.NewMountTable()
	fs := ramfs.New()
	require.True(t, mt.Add("/", 0, fs, fs.Root()).Ok())

	var buf bytes.Buffer
	DumpVirtualMounts(&buf, mt)

	out := buf.String()
	require.Contains(t, out, "/")
	require.Contains(t, out, "RAMFS")
}

func TestPrefixFilterSkipsOutsidePrefix(t *testing.T) {
	f := PrefixFilter("/home")

	skip, stop := f(&mountinfo.Info{Mountpoint: "/home/user"})
	require.False(t, skip)
	require.False(t, stop)

	skip, stop = f(&mountinfo.Info{Mountpoint: "/var"})
	require.True(t, skip)
	require.False(t, stop)
}

func TestDumpHostMountsWithPrefixFilter(t *testing.T) {
	// zero matching host mounts is not an error; this just exercises
	// the call path end to end on whatever host the test runs on.
	var buf bytes.Buffer
	err := DumpHostMounts(&buf, PrefixFilter("/definitely-not-a-real-mount-prefix"))
	if err != nil {
		t.Skipf("host mount table unavailable in this environment: %v", err)
	}
	require.False(t, strings.Contains(buf.String(), "\x00"))
}
