package capture

import (
	"slices"
	"time"

	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
)

// Allowed session parameters.
var (
	ValidShotCounts = []int{3, 4}
	ValidSeconds    = []int{3, 5, 10}
)

// State is the sequencer state machine position.
//
//	Idle → Countdown(n) → Capturing → Pausing → Countdown(n) → … → Done
//
// Any non-terminal state can move to Cancelled on teardown.
type State int

const (
	StateIdle State = iota
	StateCountdown
	StateCapturing
	StatePausing
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountdown:
		return "countdown"
	case StateCapturing:
		return "capturing"
	case StatePausing:
		return "pausing"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition will happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled
}

// Session is one run of capturing the configured number of shots.
type Session struct {
	ID             string
	TargetCount    int
	SecondsPerShot int
	Images         []snapshot.Encoded
	Active         bool
	State          State
	Remaining      int // countdown value while State == StateCountdown
	Dropped        int // shots that produced no image
	StartedAt      time.Time
}

// Complete reports whether every shot produced an image.
func (s Session) Complete() bool {
	return s.TargetCount > 0 && len(s.Images) == s.TargetCount
}

// clone copies the session so callers never share the images slice.
func (s *Session) clone() Session {
	c := *s
	c.Images = append([]snapshot.Encoded(nil), s.Images...)
	return c
}

// ValidParams reports whether count and seconds are supported.
func ValidParams(count, seconds int) bool {
	return slices.Contains(ValidShotCounts, count) && slices.Contains(ValidSeconds, seconds)
}
