package spinlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutualExclusion(t *testing.T) {
	l := New("test")
	var inCrit, maxSeen int
	var mu sync.Mutex // guards inCrit/maxSeen bookkeeping only

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Lock()
				mu.Lock()
				inCrit++
				if inCrit > maxSeen {
					maxSeen = inCrit
				}
				mu.Unlock()

				mu.Lock()
				inCrit--
				mu.Unlock()
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
}

func TestTryLock(t *testing.T) {
	l := New("test")
	require.True(t, l.TryLock())
	require.False(t, l.TryLock())
	l.Unlock()
	require.True(t, l.TryLock())
	l.Unlock()
}

func TestHoldingReflectsState(t *testing.T) {
	l := New("test")
	require.False(t, l.Holding())
	l.Lock()
	require.True(t, l.Holding())
	l.Unlock()
	require.False(t, l.Holding())
}

func TestPushPopCliNesting(t *testing.T) {
	c := CurrentCPU()
	for c.IntsDisabled() {
		c.PopCli()
	}
	require.False(t, c.IntsDisabled())

	c.PushCli()
	c.PushCli()
	require.True(t, c.IntsDisabled())
	c.PopCli()
	require.True(t, c.IntsDisabled())
	c.PopCli()
	require.False(t, c.IntsDisabled())
}

func TestUnlockWithoutOwnershipPanics(t *testing.T) {
	l := New("test")
	require.Panics(t, func() { l.Unlock() })
}

func TestLockPanicsOnReentrantAcquisition(t *testing.T) {
	l := New("test")
	l.Lock()
	defer l.Unlock()
	require.Panics(t, func() { l.Lock() })
}

func TestHolderReportsAcquisitionSite(t *testing.T) {
	l := New("test")
	_, _, ok := l.Holder()
	require.False(t, ok)

	l.Lock()
	file, line, ok := l.Holder()
	require.True(t, ok)
	require.Contains(t, file, "spinlock_test.go")
	require.Greater(t, line, 0)
	l.Unlock()

	_, _, ok = l.Holder()
	require.False(t, ok)
}
