package auth

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DefaultMaxTick bounds how long the scheduler sleeps between checks.
const DefaultMaxTick = time.Second

// DeadlineKind distinguishes the two scheduled transitions.
type DeadlineKind uint8

const (
	// DeadlineWarning moves an Active session into the warning window.
	DeadlineWarning DeadlineKind = iota
	// DeadlineExpiry removes a session whose time ran out. For pending
	// sessions this is the abandonment deadline.
	DeadlineExpiry
)

// String returns the kind name for logs.
func (k DeadlineKind) String() string {
	if k == DeadlineWarning {
		return "warning"
	}
	return "expiry"
}

// TransitionFunc applies a due deadline. The version is the session
// version the deadline was armed with; implementations must discard the
// transition when it no longer matches. A non-nil error requeues the
// deadline for the next tick instead of dropping it.
type TransitionFunc func(sessionID string, kind DeadlineKind, version uint64, due time.Time) error

type deadlineItem struct {
	sessionID string
	at        time.Time
	kind      DeadlineKind
	version   uint64
	index     int
}

// deadlineHeap orders items by deadline, soonest first.
type deadlineHeap []*deadlineItem

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *deadlineHeap) Push(x any) {
	it := x.(*deadlineItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// SchedulerConfig holds expiry scheduler configuration.
type SchedulerConfig struct {
	// MaxTick bounds the sleep between deadline checks so a deadline
	// armed in the past is still picked up promptly.
	MaxTick time.Duration
	// Now is the clock, defaulting to time.Now.
	Now func() time.Time
}

// ExpiryScheduler drives session time transitions from a single
// goroutine over a deadline min-heap. At most one deadline is armed per
// session; arming replaces, warning deadlines are promoted to expiry
// deadlines by the transition itself. Arm and Cancel are O(log n).
type ExpiryScheduler struct {
	config SchedulerConfig
	now    func() time.Time
	apply  TransitionFunc

	mu    sync.Mutex
	heap  deadlineHeap
	items map[string]*deadlineItem

	wake chan struct{}
}

// NewExpiryScheduler creates a scheduler. Run must be started for
// deadlines to fire.
func NewExpiryScheduler(config SchedulerConfig, apply TransitionFunc) *ExpiryScheduler {
	if config.MaxTick <= 0 {
		config.MaxTick = DefaultMaxTick
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &ExpiryScheduler{
		config: config,
		now:    config.Now,
		apply:  apply,
		items:  make(map[string]*deadlineItem),
		wake:   make(chan struct{}, 1),
	}
}

// Arm schedules the session's next deadline, replacing any deadline
// already armed for it.
func (s *ExpiryScheduler) Arm(sessionID string, at time.Time, kind DeadlineKind, version uint64) {
	s.mu.Lock()
	if it, ok := s.items[sessionID]; ok {
		it.at = at
		it.kind = kind
		it.version = version
		heap.Fix(&s.heap, it.index)
	} else {
		it := &deadlineItem{sessionID: sessionID, at: at, kind: kind, version: version}
		heap.Push(&s.heap, it)
		s.items[sessionID] = it
	}
	s.mu.Unlock()
	s.kick()
}

// Cancel drops the session's armed deadline, if any. The call is
// synchronous: once it returns, the deadline cannot fire.
func (s *ExpiryScheduler) Cancel(sessionID string) {
	s.mu.Lock()
	if it, ok := s.items[sessionID]; ok {
		heap.Remove(&s.heap, it.index)
		delete(s.items, sessionID)
	}
	s.mu.Unlock()
}

// Len returns the number of armed deadlines.
func (s *ExpiryScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Run drives deadlines until the context is canceled. It is the only
// goroutine that fires transitions.
func (s *ExpiryScheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.config.MaxTick)
	defer timer.Stop()
	for {
		now := s.now()
		for _, it := range s.collectDue(now) {
			if err := s.apply(it.sessionID, it.kind, it.version, it.at); err != nil {
				s.requeue(it, now.Add(s.config.MaxTick))
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.nextWait(s.now()))

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.wake:
		}
	}
}

// collectDue removes and returns every deadline at or before now,
// soonest first.
func (s *ExpiryScheduler) collectDue(now time.Time) []*deadlineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*deadlineItem
	for len(s.heap) > 0 && !s.heap[0].at.After(now) {
		it := heap.Pop(&s.heap).(*deadlineItem)
		delete(s.items, it.sessionID)
		due = append(due, it)
	}
	return due
}

// requeue puts a failed transition back unless a newer deadline was
// armed for the session while it ran.
func (s *ExpiryScheduler) requeue(it *deadlineItem, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.sessionID]; ok {
		return
	}
	it.at = at
	heap.Push(&s.heap, it)
	s.items[it.sessionID] = it
}

// nextWait returns how long the driver may sleep: until the soonest
// deadline, bounded by MaxTick.
func (s *ExpiryScheduler) nextWait(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := s.config.MaxTick
	if len(s.heap) > 0 {
		if d := s.heap[0].at.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// kick wakes the driver so a freshly armed deadline shortens the sleep.
func (s *ExpiryScheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
