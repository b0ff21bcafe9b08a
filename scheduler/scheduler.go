// Package scheduler keeps the set of pending reminders and fires each of
// them exactly once when its time arrives.
//
// Every pending reminder owns one timer. Both live in a single entry keyed
// by reminder id and guarded by one mutex, so register, unregister and
// fire-and-remove are atomic with respect to each other. A timer callback
// only fires if its entry is still the current one for that id; callbacks
// of replaced or cancelled reminders are dropped.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reminder-server/logx"
	"reminder-server/metrics"
	"reminder-server/models"
)

// FireFunc receives a copy of each reminder that fires.
type FireFunc func(models.Reminder)

type entry struct {
	reminder models.Reminder
	timer    Timer
	seq      uint64
}

type Scheduler struct {
	clock Clock
	log   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*entry
	seq     uint64
	subs    map[uint64]FireFunc
	subSeq  uint64
}

func New(clock Clock, log zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		clock:   clock,
		log:     logx.Component(log, "scheduler"),
		pending: make(map[string]*entry),
		subs:    make(map[uint64]FireFunc),
	}
}

// Now reports the scheduler's clock.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// CanRegister checks a reminder against the clock without side effects.
func (s *Scheduler) CanRegister(r models.Reminder) Verdict {
	return verdictAt(r, s.clock.Now())
}

func verdictAt(r models.Reminder, now time.Time) Verdict {
	if !models.ValidInstant(r.FireAt) {
		return Verdict{Reason: ReasonInvalidDate}
	}
	if !r.FireAt.After(now) {
		return Verdict{Reason: ReasonAlreadyExpired}
	}
	return Verdict{}
}

// Register schedules r, replacing any pending reminder with the same id.
// A rejected reminder leaves the scheduler untouched.
func (s *Scheduler) Register(r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if v := verdictAt(r, now); !v.OK() {
		return v.Err()
	}

	if old, ok := s.pending[r.ID]; ok {
		old.timer.Stop()
		delete(s.pending, r.ID)
		s.log.Debug().Str("reminder_id", r.ID).Msg("replacing pending reminder")
	}

	s.seq++
	e := &entry{reminder: r, seq: s.seq}
	delay := r.FireAt.Sub(now)
	e.timer = s.clock.AfterFunc(delay, func() { s.fire(e) })
	s.pending[r.ID] = e
	metrics.ScheduledActive.Set(float64(len(s.pending)))

	s.log.Debug().
		Str("reminder_id", r.ID).
		Str("name", r.Name).
		Dur("delay", delay).
		Msg("reminder armed")
	return nil
}

// Unregister cancels a pending reminder. It reports whether one was
// pending; an absent or already fired id is not an error.
func (s *Scheduler) Unregister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, id)
	metrics.ScheduledActive.Set(float64(len(s.pending)))
	return true
}

func (s *Scheduler) Get(id string) (models.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok {
		return models.Reminder{}, false
	}
	return e.reminder, true
}

// ListActive returns the pending reminders in registration order.
func (s *Scheduler) ListActive() []models.Reminder {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.pending))
	for _, e := range s.pending {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]models.Reminder, len(entries))
	for i, e := range entries {
		out[i] = e.reminder
	}
	return out
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Subscribe adds fn to the fire fan-out. The returned func removes it.
func (s *Scheduler) Subscribe(fn FireFunc) (unsubscribe func()) {
	s.mu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Stop cancels every pending timer without firing it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
	}
	metrics.ScheduledActive.Set(0)
}

func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	cur, ok := s.pending[e.reminder.ID]
	if !ok || cur != e {
		s.mu.Unlock()
		return
	}
	delete(s.pending, e.reminder.ID)
	metrics.ScheduledActive.Set(float64(len(s.pending)))

	subs := make([]FireFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	metrics.Fired.Inc()
	s.log.Info().
		Str("reminder_id", e.reminder.ID).
		Str("name", e.reminder.Name).
		Int("subscribers", len(subs)).
		Msg("reminder fired")

	for _, fn := range subs {
		fn(e.reminder)
	}
}
