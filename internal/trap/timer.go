package trap

import (
	"github.com/aegros/kernel/internal/proc"
)

// Timer installs itself as the handler for VecTimer and increments the
// scheduler's tick counter on each invocation.
type Timer struct {
	sched *proc.Scheduler
}

// Install registers the timer's handler on t and returns the Timer.
// The tick count itself is read from sched.Ticks().
func Install(t *Table, sched *proc.Scheduler) *Timer {
	tm := &Timer{sched: sched}
	t.Install(VecTimer, tm.handle)
	return tm
}

func (tm *Timer) handle(_ *proc.TrapFrame) {
	tm.sched.Tick()
}
