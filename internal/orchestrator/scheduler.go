package orchestrator

import (
	"sync"
	"time"
)

// DebounceDelay is the silence the scheduler waits for before dispatching.
// Messages and typing activity during the wait reset it, so a burst of
// traffic produces exactly one dispatch 3 seconds after it goes quiet.
const DebounceDelay = 3 * time.Second

// channelSlot holds the single pending timer a channel may have. The
// generation counter makes cancellation total: a stopped timer whose callback
// already escaped time.Timer.Stop sees a stale generation and does nothing.
type channelSlot struct {
	timer      *time.Timer
	generation uint64
}

// Scheduler debounces response dispatch per channel. Exactly one live timer
// exists per channel at any instant; arming always cancels the prior timer
// first. The fire callback clears the slot before invoking dispatch, so a
// message arriving mid-dispatch starts a fresh cycle instead of colliding
// with a half-cleared entry.
type Scheduler struct {
	delay    time.Duration
	dispatch func(channelID string)

	mu       sync.Mutex
	channels map[string]*channelSlot
}

// NewScheduler creates a scheduler that calls dispatch after delay of
// silence. A zero delay falls back to DebounceDelay.
func NewScheduler(delay time.Duration, dispatch func(channelID string)) *Scheduler {
	if delay <= 0 {
		delay = DebounceDelay
	}
	return &Scheduler{
		delay:    delay,
		dispatch: dispatch,
		channels: make(map[string]*channelSlot),
	}
}

// Schedule arms (or re-arms) the channel's timer for a full delay from now.
func (s *Scheduler) Schedule(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(channelID)
}

// ExtendOnTyping re-arms the channel's timer for a full delay from now, but
// only while a timer is already pending. Typing in an idle channel is not a
// trigger on its own.
func (s *Scheduler) ExtendOnTyping(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.channels[channelID]
	if slot == nil || slot.timer == nil {
		return
	}
	s.armLocked(channelID)
}

func (s *Scheduler) armLocked(channelID string) {
	slot := s.channels[channelID]
	if slot == nil {
		slot = &channelSlot{}
		s.channels[channelID] = slot
	}
	if slot.timer != nil {
		slot.timer.Stop()
	}
	slot.generation++
	gen := slot.generation
	slot.timer = time.AfterFunc(s.delay, func() {
		s.fire(channelID, gen)
	})
}

// fire runs in the timer's goroutine. It validates the generation under the
// lock, clears the slot, and only then invokes dispatch.
func (s *Scheduler) fire(channelID string, gen uint64) {
	s.mu.Lock()
	slot := s.channels[channelID]
	if slot == nil || slot.generation != gen {
		// Cancelled or superseded between the timer firing and us
		// taking the lock.
		s.mu.Unlock()
		return
	}
	slot.timer = nil
	s.mu.Unlock()

	s.dispatch(channelID)
}

// Cancel discards any pending timer for the channel.
func (s *Scheduler) Cancel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.channels[channelID]
	if slot == nil || slot.timer == nil {
		return
	}
	slot.timer.Stop()
	slot.timer = nil
	slot.generation++
}

// Pending reports whether the channel currently has an armed timer.
func (s *Scheduler) Pending(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.channels[channelID]
	return slot != nil && slot.timer != nil
}

// Stop cancels every pending timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.channels {
		if slot.timer != nil {
			slot.timer.Stop()
			slot.timer = nil
		}
		slot.generation++
	}
}
