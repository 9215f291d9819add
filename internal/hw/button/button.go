// Package button reads a physical "start" push button wired between a GPIO
// pin and ground. The pin uses the internal pull-up, so it reads HIGH when
// released and LOW while pressed.
package button

import (
	"context"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

// Config holds the button wiring and timing.
type Config struct {
	Pin          int
	PollInterval time.Duration // how often the pin is sampled
	Debounce     time.Duration // LOW must hold this long to count as a press
}

// Button detects presses by polling.
type Button struct {
	gpio gpio.Driver
	cfg  Config
}

// New configures pin as a pull-up input.
func New(g gpio.Driver, cfg Config) (*Button, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if err := g.SetupPin(cfg.Pin, gpio.InputPullUp); err != nil {
		return nil, err
	}
	return &Button{gpio: g, cfg: cfg}, nil
}

// Wait blocks until the button goes from released to pressed and stays
// pressed for the debounce period. A button already held down when Wait
// starts must be released first.
func (b *Button) Wait(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	released := false
	var lowSince time.Time

	for {
		level, err := b.gpio.ReadPin(b.cfg.Pin)
		if err != nil {
			return err
		}

		if level == gpio.High {
			released = true
			lowSince = time.Time{}
		} else if released {
			if lowSince.IsZero() {
				lowSince = time.Now()
			}
			if time.Since(lowSince) >= b.cfg.Debounce {
				debug.Live("Button on pin %d pressed", b.cfg.Pin)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run calls onPress for every press until ctx is done.
func (b *Button) Run(ctx context.Context, onPress func()) error {
	for {
		if err := b.Wait(ctx); err != nil {
			return err
		}
		onPress()
	}
}
