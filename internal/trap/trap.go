// Package trap is the interrupt/trap dispatch path: a fixed-size
// table indexed by vector number, holding one handler per vector.
// Real entry (pushing registers, switching to the TSS kernel stack,
// the iret trampoline) is not modeled; this package specifies only
// the dispatch semantics and the trap-frame contract a handler sees.
package trap

import (
	"github.com/aegros/kernel/internal/klog"
	"github.com/aegros/kernel/internal/proc"
	"github.com/aegros/kernel/internal/spinlock"
)

// Reserved vectors.
const (
	VecDivideError = 0x00
	VecPageFault   = 0x0E
	VecTimer       = 0x20 // PIT
	VecKeyboard    = 0x21
	VecMouse       = 0x2C
	VecSyscall     = 0x80 // software syscall, user-callable
	numVectors     = 256
)

// Handler processes one trap. f receives the trap frame that carries
// the syscall number / fault code and the argument registers the
// syscall layer needs.
type Handler func(tf *proc.TrapFrame)

// InterruptController is the PIC/LAPIC external collaborator:
// acknowledge/enable/disable by IRQ line. Not modeled as a real
// device; specified only at this interface.
type InterruptController interface {
	Acknowledge(irq int)
	Enable(irq int)
	Disable(irq int)
}

// Table is the fixed-size vector dispatch table plus the interrupt
// controller it acknowledges through.
type Table struct {
	handlers [numVectors]Handler
	pic      InterruptController
	lapic    InterruptController // nil if no LAPIC is present
	debug    bool                // unknown-vector behavior: panic vs ignore
}

func New(pic InterruptController, lapic InterruptController, debug bool) *Table {
	return &Table{pic: pic, lapic: lapic, debug: debug}
}

// Install registers handler for vector. Installing over an existing
// handler replaces it; the real kernel does this once at boot.
func (t *Table) Install(vector int, h Handler) {
	t.handlers[vector] = h
}

// Dispatch jumps to a common handler that dispatches by vector, then
// acknowledges the interrupt controllers before the (simulated) iret.
// A hardware IRQ
// that arrives while the kernel holds a spinlock is modeled by the
// caller: the real entry path would already have interrupts disabled
// in that window, so Dispatch itself does not need to check
// spinlock.CurrentCPU().IntsDisabled() — it is only ever invoked when
// the simulated CPU has chosen to take the trap.
func (t *Table) Dispatch(tf *proc.TrapFrame) {
	vec := int(tf.TrapNo)
	h := t.handlers[vec]
	if h == nil {
		if t.debug {
			klog.Panicf("trap: unknown vector %#x", vec)
		}
		return
	}
	spinlock.CurrentCPU().PushCli()
	h(tf)
	spinlock.CurrentCPU().PopCli()
	t.eoi(vec)
}

func (t *Table) eoi(vec int) {
	if vec < VecTimer || vec > VecMouse {
		return // not a hardware IRQ; no EOI needed
	}
	irq := vec - VecTimer
	t.pic.Acknowledge(irq)
	if t.lapic != nil {
		t.lapic.Acknowledge(irq)
	}
}

// AssertIntsDisabled is a debug helper interrupt handlers can call:
// every handler runs with interrupts disabled and must not block.
func AssertIntsDisabled() {
	if !spinlock.CurrentCPU().IntsDisabled() {
		klog.Panicf("trap: handler running with interrupts enabled")
	}
}
