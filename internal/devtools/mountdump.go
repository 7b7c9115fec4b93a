// Package devtools holds small operator-facing diagnostics that sit
// outside the kernel's request path. mountdump renders the virtual
// mount table in the same column layout as Linux /proc/self/mountinfo,
// so an operator can eyeball the simulator's mount table next to the
// host's real one while developing.
package devtools

import (
	"fmt"
	"io"
	"strings"

	"github.com/moby/sys/mountinfo"

	"github.com/aegros/kernel/internal/vfs"
)

// DumpVirtualMounts writes one line per registered virtual mount, in
// mountinfo's "mountpoint fstype source" column order.
func DumpVirtualMounts(w io.Writer, mt *vfs.MountTable) {
	for _, e := range mt.Mounts() {
		fmt.Fprintf(w, "%-24s %-10s disk:%d\n", e.Prefix, e.FSName, e.Disk)
	}
}

// DumpHostMounts writes the host's real mount table using the same
// column layout, via github.com/moby/sys/mountinfo's /proc/self/mountinfo
// parser. On platforms without /proc (anything but Linux) this returns
// the error mountinfo.GetMounts surfaces; callers treat that as "no
// host comparison available," not a fatal condition.
func DumpHostMounts(w io.Writer, filter mountinfo.FilterFunc) error {
	infos, err := mountinfo.GetMounts(filter)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%-24s %-10s %s\n", info.Mountpoint, info.FSType, info.Source)
	}
	return nil
}

// PrefixFilter builds a mountinfo.FilterFunc that keeps only host
// mounts under prefix, for narrowing the comparison to the directory
// backing a disk image (e.g. the directory holding kconfig's
// disk_image_path).
func PrefixFilter(prefix string) mountinfo.FilterFunc {
	return func(info *mountinfo.Info) (skip, stop bool) {
		if !strings.HasPrefix(info.Mountpoint, prefix) {
			return true, false
		}
		return false, false
	}
}
