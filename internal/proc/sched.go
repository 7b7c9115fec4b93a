package proc

import (
	"sync"
	"time"
)

// Scheduler runs a single loop over one logical CPU. Exactly one
// thread's runCh is ever open at a time, which is this hosted
// simulator's stand-in for "interrupts disabled across the context
// switch" plus "the new thread's kernel stack is installed" — there is
// only ever one logical CPU, so handing the baton to a thread *is*
// switching to it.
type Scheduler struct {
	table *Table

	mu        sync.Mutex
	threads   []*Thread // registration order; round-robin tie-break order
	lastIdx   int
	ticks     uint64
	idleTurns uint64

	schedDone chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	running   bool
}

func newScheduler(t *Table) *Scheduler {
	return &Scheduler{
		table:     t,
		schedDone: make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Register adds th to the round-robin rotation.
func (s *Scheduler) Register(th *Thread) {
	s.mu.Lock()
	s.threads = append(s.threads, th)
	s.mu.Unlock()
}

// Unregister removes th, e.g. on reap.
func (s *Scheduler) Unregister(th *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.threads {
		if t == th {
			s.threads = append(s.threads[:i], s.threads[i+1:]...)
			if s.lastIdx > i {
				s.lastIdx--
			}
			break
		}
	}
}

// pickReady selects the next Ready thread: highest priority first,
// round-robin in table order among ties.
func (s *Scheduler) pickReady() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.threads) == 0 {
		return nil
	}
	best := -1
	for _, t := range s.threads {
		t.Proc.mu.Lock()
		st := t.State
		pr := t.Priority
		t.Proc.mu.Unlock()
		if st == TReady && pr > best {
			best = pr
		}
	}
	if best == -1 {
		return nil
	}
	n := len(s.threads)
	for i := 1; i <= n; i++ {
		idx := (s.lastIdx + i) % n
		t := s.threads[idx]
		t.Proc.mu.Lock()
		match := t.State == TReady && t.Priority == best
		t.Proc.mu.Unlock()
		if match {
			s.lastIdx = idx
			return t
		}
	}
	return nil
}

// Tick advances the tick counter and wakes any timed sleeper whose
// deadline has arrived. It is fed by the timer interrupt in the real
// kernel; tests call it directly.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.ticks++
	now := s.ticks
	threads := append([]*Thread(nil), s.threads...)
	s.mu.Unlock()
	for _, t := range threads {
		t.Proc.mu.Lock()
		if t.State == TSleeping && t.Deadline != 0 && now >= t.Deadline {
			t.State = TReady
			t.WaitChan = nil
			t.Deadline = 0
		}
		t.Proc.mu.Unlock()
	}
}

// Ticks returns the current tick count.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Run is the Scheduler loop. It grants the baton to the next Ready
// thread and blocks until that thread yields, sleeps, blocks, or
// exits. With nothing Ready it idles (a tick of real sleep, standing
// in for hlt).
func (s *Scheduler) Run() {
	s.running = true
	for {
		select {
		case <-s.stop:
			s.running = false
			return
		default:
		}
		next := s.pickReady()
		if next == nil {
			s.idleTurns++
			time.Sleep(time.Millisecond)
			continue
		}
		next.Proc.mu.Lock()
		next.State = TRunning
		next.Proc.mu.Unlock()
		next.runCh <- struct{}{}
		<-s.schedDone
	}
}

// Stop signals Run to return once the current thread yields the
// baton back. Safe to call more than once (tests routinely defer it
// after an early return already stopped the scheduler).
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Yield is called by the currently running thread to voluntarily give
// up the CPU, moving it from Running back to Ready.
func (s *Scheduler) Yield(th *Thread) {
	th.Proc.mu.Lock()
	th.State = TReady
	th.Proc.mu.Unlock()
	s.schedDone <- struct{}{}
	<-th.runCh
	s.checkKilled(th)
}

// Sleep atomically (a) sets the wait channel and Sleeping state, (b)
// releases lock, (c) enters the Scheduler. On wakeup it re-acquires
// lock before returning. Acquiring s.mu before releasing lock
// guarantees no wakeup is lost between (a) and (b): th's state flips
// to Sleeping while s.mu prevents a concurrent Wakeup from observing a
// stale Ready state.
func (s *Scheduler) Sleep(th *Thread, ch Chan, lock sync.Locker) {
	s.mu.Lock()
	th.Proc.mu.Lock()
	th.State = TSleeping
	th.WaitChan = ch
	th.Proc.mu.Unlock()
	s.mu.Unlock()

	lock.Unlock()
	s.schedDone <- struct{}{}
	<-th.runCh
	lock.Lock()
	s.checkKilled(th)
}

// Wakeup marks every Sleeping thread whose channel equals ch Ready.
// The channel is compared by interface equality, which for
// pointer-typed Chan values is pointer identity — any stable pointer
// works as a rendezvous key.
func (s *Scheduler) Wakeup(ch Chan) {
	s.mu.Lock()
	threads := append([]*Thread(nil), s.threads...)
	s.mu.Unlock()
	for _, t := range threads {
		t.Proc.mu.Lock()
		if t.State == TSleeping && t.WaitChan == ch {
			t.State = TReady
			t.WaitChan = nil
			t.Deadline = 0
		}
		t.Proc.mu.Unlock()
	}
}

// checkKilled reports whether the thread's process has been marked
// killed at this scheduling point. Callers that can't immediately
// unwind just leave the flag for the next check; the hosted simulator
// does not unwind arbitrary Go call stacks, so in practice this is
// checked at syscall return.
func (s *Scheduler) checkKilled(th *Thread) bool {
	th.Proc.mu.Lock()
	k := th.killed
	th.Proc.mu.Unlock()
	return k
}
