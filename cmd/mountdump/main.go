// Command mountdump boots just enough of the kernel to build a
// representative virtual mount table (root ramfs; a configured disk
// image is only noted, not mounted), then prints it next to the host's
// real mount table for comparison during development.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aegros/kernel/internal/devtools"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/ramfs"
	"github.com/aegros/kernel/internal/vfs"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML boot config")
	hostPrefix := flag.String("host-prefix", "", "only compare host mounts under this prefix")
	flag.Parse()

	cfg, err := kconfig.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mountdump: loading config: %v\n", err)
		os.Exit(1)
	}

	mounts := vfs.NewMountTable()
	fs := ramfs.New()
	if merr := mounts.Add("/", 0, fs, fs.Root()); !merr.Ok() {
		fmt.Fprintf(os.Stderr, "mountdump: mounting root ramfs: %v\n", merr)
		os.Exit(1)
	}
	if cfg.DiskImagePath != "" {
		fmt.Fprintf(os.Stdout, "# disk image configured: %s (not mounted; no filesystem driver recognizes it)\n", cfg.DiskImagePath)
	}

	fmt.Println("# virtual mounts")
	devtools.DumpVirtualMounts(os.Stdout, mounts)

	fmt.Println("# host mounts")
	if derr := devtools.DumpHostMounts(os.Stdout, devtools.PrefixFilter(*hostPrefix)); derr != nil {
		fmt.Fprintf(os.Stderr, "mountdump: reading host mounts: %v\n", derr)
	}
}
