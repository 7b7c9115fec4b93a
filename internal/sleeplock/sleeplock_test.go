package sleeplock

import (
	"testing"
	"time"

	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/kheap"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/vfs"
	"github.com/stretchr/testify/require"
)

// TestMutualExclusion starts two threads racing to acquire the same
// sleeplock; only one may be inside the critical section at a time,
// and both must eventually get through.
func TestMutualExclusion(t *testing.T) {
	cfg := kconfig.Default()
	cfg.MaxProcesses = 64
	table := proc.NewTable(cfg, kheap.New(kheap.BlockSize*64))

	lk := New("shared")
	var inCrit int32
	var maxSeen int32
	order := make(chan int, 2)

	spawn := func(id int) {
		p, err := table.New("t", 0, vfs.NewFDTable(16))
		require.True(t, err.Ok())
		table.StartThread(p.Pid)
		table.RunThread(p.Pid, func(h *proc.Handle) {
			lk.Acquire(h)
			inCrit++
			if inCrit > maxSeen {
				maxSeen = inCrit
			}
			h.Yield() // give the other thread a chance to observe overlap, if any
			inCrit--
			lk.Release(h)
			order <- id
			h.Exit(0)
		})
	}
	spawn(1)
	spawn(2)

	go table.Scheduler().Run()
	defer table.Scheduler().Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-order:
		case <-time.After(2 * time.Second):
			t.Fatal("sleeplock never released")
		}
	}
	require.LessOrEqual(t, maxSeen, int32(1), "two threads observed inside the critical section simultaneously")
}

// TestHoldingReflectsOwner checks that Holding only reports true for
// the pid that currently owns the lock.
func TestHoldingReflectsOwner(t *testing.T) {
	cfg := kconfig.Default()
	cfg.MaxProcesses = 64
	table := proc.NewTable(cfg, kheap.New(kheap.BlockSize*64))

	lk := New("x")
	p, err := table.New("t", 0, vfs.NewFDTable(16))
	require.True(t, err.Ok())
	table.StartThread(p.Pid)

	held := make(chan bool, 1)
	table.RunThread(p.Pid, func(h *proc.Handle) {
		lk.Acquire(h)
		held <- lk.Holding(p.Pid)
		lk.Release(h)
		h.Exit(0)
	})

	go table.Scheduler().Run()
	defer table.Scheduler().Stop()

	select {
	case got := <-held:
		require.True(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("lock never acquired")
	}
	require.False(t, lk.Holding(p.Pid))
}
