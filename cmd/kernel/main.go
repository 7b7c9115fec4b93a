// Command kernel boots the hosted simulator: it brings up the kernel
// heap, paging, trap table, timer, virtual filesystem, and scheduler,
// then hands control to an init process and runs until it exits.
package main

import (
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aegros/kernel/internal/bio"
	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/kheap"
	"github.com/aegros/kernel/internal/klog"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/ramfs"
	"github.com/aegros/kernel/internal/syscall"
	"github.com/aegros/kernel/internal/trap"
	"github.com/aegros/kernel/internal/vfs"
)

// loopbackController is the hosted simulator's PIC/LAPIC stand-in:
// there is no real interrupt controller to program, only the
// bookkeeping trap.Table needs for EOI and mask tracking.
type loopbackController struct {
	masked map[int]bool
}

func newLoopbackController() *loopbackController {
	return &loopbackController{masked: make(map[int]bool)}
}

func (c *loopbackController) Acknowledge(irq int) {}
func (c *loopbackController) Enable(irq int)      { c.masked[irq] = false }
func (c *loopbackController) Disable(irq int)     { c.masked[irq] = true }

// attachedDevices holds the RAM device inodes and the boot disk attach()
// built, wired into /dev and the buffer cache only after every attach
// goroutine has finished: device nodes are singletons, so there's no
// point racing their construction against their directory insertion.
type attachedDevices struct {
	console *vfs.Inode
	null    *vfs.Inode
	zero    *vfs.Inode
	disk    bio.Disk
}

// attachDevices brings up every device concurrently: none of these
// depend on each other, so fanning them out through an errgroup beats
// probing them one at a time.
func attachDevices(cfg kconfig.Config) (*attachedDevices, error) {
	var g errgroup.Group
	out := &attachedDevices{}

	g.Go(func() error {
		out.console = ramfs.NewConsole(consoleWriter{}, 25, 80)
		return nil
	})
	g.Go(func() error {
		out.null = ramfs.NewNull()
		return nil
	})
	g.Go(func() error {
		out.zero = ramfs.NewZero()
		return nil
	})
	if cfg.DiskImagePath != "" {
		g.Go(func() error {
			d, err := bio.OpenFileDisk(cfg.DiskImagePath, bio.BlockSize, 0)
			if !err.Ok() {
				return err
			}
			out.disk = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// consoleWriter forwards console device writes to the host's stdout,
// the hosted simulator's stand-in for a real VGA/serial console.
type consoleWriter struct{}

func (consoleWriter) WriteByte(b byte) error {
	_, err := os.Stdout.Write([]byte{b})
	return err
}

// Kernel bundles every booted subsystem init needs to drive the
// machine: the process table, the syscall dispatcher, the trap table,
// the block cache (nil with no disk attached), and init's own pid.
type Kernel struct {
	Table   *proc.Table
	Disp    *syscall.Dispatcher
	Traps   *trap.Table
	Cache   *bio.Cache
	InitPid proc.Pid
}

func boot(cfgPath string) (*Kernel, error) {
	cfg, err := kconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	klog.Infof("              aegros kernel\n")
	klog.Infof("  heap %d MB, max_processes %d, tick_hz %d\n",
		cfg.HeapSizeBytes>>20, cfg.MaxProcesses, cfg.TickHz)

	kh := kheap.New(cfg.HeapSizeBytes)
	table := proc.NewTable(cfg, kh)

	devs, err := attachDevices(cfg)
	if err != nil {
		return nil, err
	}

	v := vfs.New()
	fs := ramfs.New()
	if merr := v.Mounts.Add("/", 0, fs, fs.Root()); !merr.Ok() {
		klog.Panicf("boot: mounting root ramfs: %v", merr)
	}
	devDir, derr := v.Mkdir(fs.Root(), "dev")
	if !derr.Ok() {
		klog.Panicf("boot: creating /dev: %v", derr)
	}
	for name, inode := range map[string]*vfs.Inode{
		"console": devs.console,
		"null":    devs.null,
		"zero":    devs.zero,
	} {
		if err := ramfs.AddDevice(devDir, name, inode); !err.Ok() {
			klog.Panicf("boot: registering /dev/%s: %v", name, err)
		}
	}

	pic := newLoopbackController()
	lapic := newLoopbackController()
	traps := trap.New(pic, lapic, false)
	trap.Install(traps, table.Scheduler())
	trap.NewKeyboard().Install(traps)
	trap.NewMouse().Install(traps)

	disp := syscall.New(table, v, kh, cfg.MaxOpenFiles)

	var cache *bio.Cache
	if devs.disk != nil {
		cache = bio.New(cfg.BufCacheSize, devs.disk, 32)
	}

	fds := vfs.NewFDTable(cfg.MaxOpenFiles)
	initPid, lerr := table.ProcessLoad("init", 0, fds,
		[]proc.Segment{{VAddr: kconfig.ProgramVirtualAddress, Data: []byte{0x90}}},
		kconfig.ProgramVirtualAddress)
	if !lerr.Ok() {
		klog.Panicf("boot: loading init: %v", lerr)
	}

	return &Kernel{Table: table, Disp: disp, Traps: traps, Cache: cache, InitPid: initPid}, nil
}

// probeBootDisk reads the MBR off block 0 of the attached disk and
// logs the partitions it recognizes, the same diagnostic pass a real
// boot sequence would run right after device attach.
func probeBootDisk(h *proc.Handle, k *Kernel) {
	if k.Cache == nil {
		return
	}
	buf, err := k.Cache.Bread(h, 0, 0)
	if !err.Ok() {
		klog.Warnf("boot disk: reading MBR: %v", err)
		return
	}
	defer k.Cache.Brelse(h, buf)

	mbr, perr := vfs.ParseMBR(buf.Data[:])
	if !perr.Ok() {
		klog.Warnf("boot disk: parsing MBR: %v", perr)
		return
	}
	for _, idx := range mbr.RecognizedPartitions() {
		p := mbr.Partitions[idx]
		klog.Infof("boot disk: partition %d type %#x, lba %d, sectors %d\n",
			idx, p.Type, p.LBAStart, p.SectorCount)
	}
}

// runInit is init's kernel-side body: the hosted simulator has no x86
// execution engine, so init's "program" is this Go function driving
// the syscall dispatcher directly, the same contract every process's
// goroutine fulfills.
func runInit(k *Kernel) {
	k.Table.RunThread(k.InitPid, func(h *proc.Handle) {
		printTf := &proc.TrapFrame{RAX: syscall.Print}
		pd := h.Proc().PageDir
		if _, err := pd.AllocUVM(kconfig.ProgramVirtualAddress+kconfig.PageSize, kconfig.ProgramVirtualAddress+2*kconfig.PageSize); err.Ok() {
			msg := append([]byte("init: system ready\n"), 0)
			if pd.CopyToUser(kconfig.ProgramVirtualAddress+kconfig.PageSize, msg).Ok() {
				printTf.Args[0] = uintptr(kconfig.ProgramVirtualAddress + kconfig.PageSize)
				k.Disp.Dispatch(h, printTf)
			}
		}

		probeBootDisk(h, k)

		for {
			h.SleepTicks(100)
			if h.Killed() {
				h.Exit(0)
				return
			}
		}
	})
}

func main() {
	cfgPath := flag.String("config", "", "path to a TOML boot config")
	flag.Parse()

	k, err := boot(*cfgPath)
	if err != nil {
		klog.Panicf("boot failed: %v", err)
	}
	runInit(k)

	// stands in for the LAPIC's periodic timer interrupt: each firing
	// goes through the trap table like any other interrupt, exercising
	// Dispatch's push/pop-cli and EOI path rather than ticking the
	// scheduler directly.
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			k.Traps.Dispatch(&proc.TrapFrame{TrapNo: trap.VecTimer})
		}
	}()

	k.Table.Scheduler().Run()
}
