package trap

import (
	"testing"

	"github.com/aegros/kernel/internal/kconfig"
	"github.com/aegros/kernel/internal/kheap"
	"github.com/aegros/kernel/internal/proc"
	"github.com/stretchr/testify/require"
)

type fakePIC struct {
	acked []int
}

func (p *fakePIC) Acknowledge(irq int) { p.acked = append(p.acked, irq) }
func (p *fakePIC) Enable(int)          {}
func (p *fakePIC) Disable(int)         {}

func TestDispatchUnknownVectorPanicsInDebug(t *testing.T) {
	pic := &fakePIC{}
	table := New(pic, nil, true)
	require.Panics(t, func() {
		table.Dispatch(&proc.TrapFrame{TrapNo: 0x42})
	})
}

func TestDispatchUnknownVectorIgnoredInRelease(t *testing.T) {
	pic := &fakePIC{}
	table := New(pic, nil, false)
	require.NotPanics(t, func() {
		table.Dispatch(&proc.TrapFrame{TrapNo: 0x42})
	})
}

func TestTimerIncrementsTicks(t *testing.T) {
	pic := &fakePIC{}
	table := New(pic, nil, true)
	cfg := kconfig.Default()
	procTable := proc.NewTable(cfg, kheap.New(kheap.BlockSize*4))
	Install(table, procTable.Scheduler())

	table.Dispatch(&proc.TrapFrame{TrapNo: VecTimer})
	table.Dispatch(&proc.TrapFrame{TrapNo: VecTimer})
	require.EqualValues(t, 2, procTable.Scheduler().Ticks())
	require.Equal(t, []int{0, 0}, pic.acked)
}

func TestKeyboardPushAndPop(t *testing.T) {
	pic := &fakePIC{}
	table := New(pic, nil, true)
	kb := NewKeyboard()
	kb.Install(table)

	table.Dispatch(&proc.TrapFrame{TrapNo: VecKeyboard, Args: [6]uintptr{0x1C}})
	b, ok := kb.Pop()
	require.True(t, ok)
	require.Equal(t, byte(0x1C), b)

	_, ok = kb.Pop()
	require.False(t, ok)
}

func TestMousePushAndPop(t *testing.T) {
	pic := &fakePIC{}
	table := New(pic, nil, true)
	m := NewMouse()
	m.Install(table)

	table.Dispatch(&proc.TrapFrame{TrapNo: VecMouse, Args: [6]uintptr{0x01, uintptr(int8(-5)), uintptr(int8(10))}})
	pkt, ok := m.Pop()
	require.True(t, ok)
	require.Equal(t, byte(0x01), pkt.Flags)
	require.EqualValues(t, -5, pkt.DX)
	require.EqualValues(t, 10, pkt.DY)
}
