package capture

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
)

var (
	// ErrSessionActive is returned when Start is called during a session.
	// The call has no effect.
	ErrSessionActive = errors.New("capture session already in progress")

	// ErrInvalidSession is returned for unsupported shot counts or durations.
	ErrInvalidSession = errors.New("invalid session parameters")
)

// FrameSource provides the current live frame (camera.Stream).
type FrameSource interface {
	Frame() (image.Image, error)
}

// Params holds the sequencer timing.
type Params struct {
	Tick              time.Duration // countdown step (1s)
	Pause             time.Duration // pause after a shot before the next countdown (1s)
	MissedShotRetries int           // extra capture attempts when no frame is available
	RetryDelay        time.Duration // wait between those attempts
}

// DefaultParams returns the stock timing: 1s ticks, 1s pause, no retry.
func DefaultParams() Params {
	return Params{
		Tick:       time.Second,
		Pause:      time.Second,
		RetryDelay: 100 * time.Millisecond,
	}
}

// EventKind identifies a sequencer event.
type EventKind string

const (
	EventCountdown EventKind = "countdown"
	EventShot      EventKind = "shot"
	EventDropped   EventKind = "dropped"
	EventDone      EventKind = "done"
	EventCancelled EventKind = "cancelled"
)

// Event is emitted on every state change worth showing to the user.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Shot      int       `json:"shot"`      // 1-based shot index
	Total     int       `json:"total"`     // target shot count
	Remaining int       `json:"remaining"` // countdown value
	Captured  int       `json:"captured"`  // images so far
}

// Observer receives events on the sequencer goroutine. It must not block.
type Observer func(Event)

// Sequencer runs the countdown/capture loop for one session at a time.
type Sequencer struct {
	frames FrameSource
	clock  Clock
	params Params
	filter func() filter.Filter

	mu        sync.Mutex
	session   *Session
	cancel    context.CancelFunc
	done      chan struct{}
	observers []Observer
}

// NewSequencer creates a sequencer reading frames from src.
// currentFilter is read at capture time; nil means no filter.
func NewSequencer(src FrameSource, clock Clock, p Params, currentFilter func() filter.Filter) *Sequencer {
	if clock == nil {
		clock = RealClock()
	}
	if p.Tick <= 0 {
		p.Tick = time.Second
	}
	if p.Pause < 0 {
		p.Pause = 0
	}
	if currentFilter == nil {
		currentFilter = func() filter.Filter { return filter.Filter{} }
	}
	return &Sequencer{
		frames: src,
		clock:  clock,
		params: p,
		filter: currentFilter,
	}
}

// Subscribe registers an observer for all future events.
func (s *Sequencer) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Start begins a session of count shots with a seconds-long countdown each.
// It returns immediately; the loop runs until done or ctx is cancelled.
// While a session is active Start is a no-op returning ErrSessionActive.
func (s *Sequencer) Start(ctx context.Context, count, seconds int) (Session, error) {
	if !ValidParams(count, seconds) {
		return Session{}, fmt.Errorf("%w: %d shots, %ds", ErrInvalidSession, count, seconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.Active {
		return s.session.clone(), ErrSessionActive
	}

	sess := &Session{
		ID:             newSessionID(s.clock.Now()),
		TargetCount:    count,
		SecondsPerShot: seconds,
		Active:         true,
		State:          StateIdle,
		StartedAt:      s.clock.Now(),
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.session = sess
	s.cancel = cancel
	s.done = make(chan struct{})

	debug.Session(sess.ID, count, seconds)
	go s.run(runCtx, sess, s.done)
	return sess.clone(), nil
}

// Session returns a copy of the current (or last) session.
func (s *Sequencer) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return s.session.clone(), true
}

// Active reports whether a session is running.
func (s *Sequencer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && s.session.Active
}

// Wait blocks until the running session ends or ctx is done.
// It returns immediately when no session is running.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels a running countdown and waits for the loop to exit.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Clear stops any running session and forgets it.
func (s *Sequencer) Clear() {
	s.Stop()
	s.mu.Lock()
	s.session = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
}

func (s *Sequencer) run(ctx context.Context, sess *Session, done chan struct{}) {
	defer close(done)

	for shot := 1; shot <= sess.TargetCount; shot++ {
		for n := sess.SecondsPerShot; n >= 1; n-- {
			s.transition(sess, StateCountdown, n)
			debug.Countdown(shot, n)
			s.emit(sess, EventCountdown, shot, n)
			if !s.sleep(ctx, s.params.Tick) {
				s.finish(sess, StateCancelled, EventCancelled, shot)
				return
			}
		}

		s.transition(sess, StateCapturing, 0)
		img, err := s.captureWithRetry(ctx)
		if ctx.Err() != nil {
			s.finish(sess, StateCancelled, EventCancelled, shot)
			return
		}
		if err != nil {
			// The shot slot is consumed without an image.
			debug.Live("Shot %d dropped: %v", shot, err)
			s.mu.Lock()
			sess.Dropped++
			s.mu.Unlock()
			s.emit(sess, EventDropped, shot, 0)
		} else {
			s.mu.Lock()
			sess.Images = append(sess.Images, img)
			s.mu.Unlock()
			debug.Shot(shot, sess.TargetCount)
			debug.Verbose("Shot %d encoded: %s", shot, humanize.Bytes(uint64(img.Size())))
			s.emit(sess, EventShot, shot, 0)
		}

		if shot < sess.TargetCount {
			s.transition(sess, StatePausing, 0)
			if !s.sleep(ctx, s.params.Pause) {
				s.finish(sess, StateCancelled, EventCancelled, shot)
				return
			}
		}
	}

	s.finish(sess, StateDone, EventDone, sess.TargetCount)
}

// captureWithRetry samples the live frame, retrying when none is available.
func (s *Sequencer) captureWithRetry(ctx context.Context) (snapshot.Encoded, error) {
	var lastErr error
	for attempt := 0; attempt <= s.params.MissedShotRetries; attempt++ {
		if attempt > 0 && !s.sleep(ctx, s.params.RetryDelay) {
			return snapshot.Encoded{}, ctx.Err()
		}
		frame, err := s.frames.Frame()
		if err != nil {
			lastErr = err
			continue
		}
		enc, err := snapshot.Take(frame, s.filter(), s.clock.Now())
		if err != nil {
			lastErr = err
			continue
		}
		return enc, nil
	}
	return snapshot.Encoded{}, lastErr
}

func (s *Sequencer) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return ctx.Err() == nil
	}
}

func (s *Sequencer) transition(sess *Session, st State, remaining int) {
	s.mu.Lock()
	sess.State = st
	sess.Remaining = remaining
	s.mu.Unlock()
}

func (s *Sequencer) finish(sess *Session, st State, kind EventKind, shot int) {
	s.mu.Lock()
	sess.State = st
	sess.Remaining = 0
	sess.Active = false
	s.mu.Unlock()
	debug.Info("Session %s %s: %d/%d images, %d dropped",
		sess.ID, st, len(sess.Images), sess.TargetCount, sess.Dropped)
	s.emit(sess, kind, shot, 0)
}

func (s *Sequencer) emit(sess *Session, kind EventKind, shot, remaining int) {
	s.mu.Lock()
	evt := Event{
		Kind:      kind,
		SessionID: sess.ID,
		Shot:      shot,
		Total:     sess.TargetCount,
		Remaining: remaining,
		Captured:  len(sess.Images),
	}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o(evt)
	}
}

func newSessionID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
