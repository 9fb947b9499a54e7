package conduit

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler drives Manager.Tick at a fixed rate on its own goroutine.
// Hosts that already run a tick loop can call Manager.Tick directly instead.
type Scheduler struct {
	manager *Manager

	// mu guards the start and stop transitions.
	mu      sync.Mutex
	running atomic.Bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	tickRate   time.Duration
	tickNumber atomic.Uint64
}

// newScheduler creates a new scheduler.
func newScheduler(manager *Manager, tickRate time.Duration) *Scheduler {
	if tickRate <= 0 {
		tickRate = DefaultConfig().TickRate()
	}
	return &Scheduler{
		manager:  manager,
		tickRate: tickRate,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the scheduler's tick loop. It does nothing once the
// scheduler has been stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.running.Swap(true) {
		return // Stopped or already running
	}
	go s.tickLoop()
}

// Stop stops the tick loop and waits for the current tick to finish.
// A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if !s.running.Swap(false) {
		return // Not running
	}
	close(s.stopCh)
	<-s.doneCh
}

// Ticks returns the number of ticks run so far.
func (s *Scheduler) Ticks() uint64 {
	return s.tickNumber.Load()
}

// tickLoop is the main scheduler loop.
func (s *Scheduler) tickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick executes one scheduler tick.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.manager.log.Error("conduit: panic in tick",
				"tick", s.tickNumber.Load(), "err", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	s.tickNumber.Add(1)
	s.manager.Tick()
}
