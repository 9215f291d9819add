package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// readErrorBackoff is the pause after a failed frame read before retrying.
const readErrorBackoff = 100 * time.Millisecond

// Stream holds at most one open Device and keeps the latest frame.
// Acquire is idempotent: while a handle is held, further calls do nothing.
type Stream struct {
	dev Device

	mu      sync.RWMutex
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
	latest  image.Image
	frameAt time.Time
	frames  uint64
}

// NewStream wraps dev. The device is not opened until Acquire.
func NewStream(dev Device) *Stream {
	return &Stream{dev: dev}
}

// Acquire opens the device and starts pumping frames in the background.
// Failures wrap ErrUnavailable.
func (s *Stream) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		debug.Verbose("Camera already started")
		return nil
	}
	if err := s.dev.Open(); err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return errors.Join(ErrUnavailable, err)
	}

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.active = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.latest = nil
	s.frameAt = time.Time{}
	s.frames = 0
	go s.pump(pumpCtx, s.done)

	debug.Info("Camera started")
	return nil
}

func (s *Stream) pump(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		img, err := s.dev.ReadFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			debug.Trace("Camera: read frame: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		s.mu.Lock()
		s.latest = img
		s.frameAt = time.Now()
		s.frames++
		s.mu.Unlock()
	}
}

// Release stops the pump and closes the device. Safe to call when idle.
func (s *Stream) Release() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.active = false
	s.cancel = nil
	s.done = nil
	s.latest = nil
	s.mu.Unlock()

	cancel()
	<-done

	err := s.dev.Close()
	debug.Info("Camera stream stopped")
	return err
}

// Active reports whether a device handle is held.
func (s *Stream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Frame returns the most recent frame. It fails with ErrNoFrame before the
// first frame arrives or when the stream is released.
func (s *Stream) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active || s.latest == nil {
		return nil, ErrNoFrame
	}
	return s.latest, nil
}

// WaitFrame blocks until a frame is available or ctx is done.
func (s *Stream) WaitFrame(ctx context.Context) (image.Image, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if img, err := s.Frame(); err == nil {
			return img, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Frames returns the number of frames received since the last Acquire.
func (s *Stream) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}
