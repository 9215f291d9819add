package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/button"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
	"github.com/cjeanneret/photobooth/internal/logic/booth"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
	"github.com/cjeanneret/photobooth/internal/web"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var defaultConfigPath = filepath.Join("configs", "default.yaml")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads .env, then the YAML file. A missing default file falls
// back to the built-in configuration.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := config.Default()
			if err := cfg.ApplyEnv(); err != nil {
				return nil, err
			}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}
	if err := config.ValidateConfigPath(path); err != nil {
		return nil, err
	}
	return config.Load(path)
}

// cliOverrides holds flag values. Zero values keep the configuration.
type cliOverrides struct {
	Addr       string
	Camera     string
	Rows       int
	Seconds    int
	Filter     string
	Background string
	Sticker    string
	Title      string
	Timestamp  *bool
	DebugLevel *int
	MockGPIO   *bool
	Button     *bool
}

// validateCLIOverrides checks that non-zero overrides are supported values.
func validateCLIOverrides(o cliOverrides) error {
	if o.Rows != 0 && o.Rows != 3 && o.Rows != 4 {
		return fmt.Errorf("rows must be 3 or 4, got %d", o.Rows)
	}
	if o.Seconds != 0 && o.Seconds != 3 && o.Seconds != 5 && o.Seconds != 10 {
		return fmt.Errorf("seconds must be 3, 5 or 10, got %d", o.Seconds)
	}
	switch o.Camera {
	case "", "v4l2", "pattern":
	default:
		return fmt.Errorf("camera must be v4l2 or pattern, got %q", o.Camera)
	}
	if o.Filter != "" {
		if _, err := filter.Parse(o.Filter); err != nil {
			return err
		}
	}
	if o.Background != "" {
		if _, err := strip.ParseColor(o.Background); err != nil {
			return err
		}
	}
	if o.Sticker != "" {
		if _, err := strip.ParseSticker(o.Sticker); err != nil {
			return err
		}
	}
	if o.DebugLevel != nil && (*o.DebugLevel < 0 || *o.DebugLevel > 4) {
		return fmt.Errorf("debug must be between 0 and 4, got %d", *o.DebugLevel)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only set values are applied.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.Addr != "" {
		cfg.Web.Addr = o.Addr
	}
	if o.Camera != "" {
		cfg.Camera.Type = o.Camera
	}
	if o.Rows > 0 {
		cfg.Booth.Rows = o.Rows
	}
	if o.Seconds > 0 {
		cfg.Booth.Seconds = o.Seconds
	}
	if o.Filter != "" {
		cfg.Booth.Filter = o.Filter
	}
	if o.Background != "" {
		cfg.Strip.Background = o.Background
	}
	if o.Sticker != "" {
		cfg.Strip.Sticker = o.Sticker
	}
	if o.Title != "" {
		cfg.Strip.Title = o.Title
	}
	if o.Timestamp != nil {
		cfg.Strip.Timestamp = *o.Timestamp
	}
	if o.DebugLevel != nil {
		cfg.Defaults.DebugLevel = *o.DebugLevel
	}
	if o.MockGPIO != nil {
		cfg.Defaults.MockGPIO = *o.MockGPIO
	}
	if o.Button != nil {
		cfg.Button.Enabled = *o.Button
	}
}

// newBooth wires the camera stream, composer and controller from cfg.
// clock may be nil for the wall clock.
func newBooth(cfg *config.Config, clock capture.Clock) (*booth.Controller, *camera.Stream, error) {
	dev, err := camera.New(cfg.CameraSettings())
	if err != nil {
		return nil, nil, fmt.Errorf("init camera: %w", err)
	}
	composer, err := strip.NewComposer(cfg.StripOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("init composer: %w", err)
	}
	stream := camera.NewStream(dev)
	b, err := booth.New(stream, composer, clock, cfg.BoothSettings())
	if err != nil {
		return nil, nil, err
	}
	return b, stream, nil
}

// runServe starts the web booth and, when enabled, the start button.
func runServe(ctx context.Context, cfg *config.Config, minStart time.Duration) error {
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Camera", cfg.Camera)

	debug.Step(1, "Building booth")
	b, _, err := newBooth(cfg, nil)
	if err != nil {
		return err
	}
	defer b.Reset()

	if cfg.Button.Enabled {
		debug.Step(2, "Initializing start button")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		debug.Value("Button pin", cfg.Button.Pin)
		driver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			return fmt.Errorf("init GPIO: %w", err)
		}
		defer func() {
			if err := driver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		btn, err := button.New(driver, cfg.ButtonSettings())
		if err != nil {
			return fmt.Errorf("init button: %w", err)
		}
		go func() {
			err := btn.Run(ctx, func() { startFromButton(ctx, b) })
			if err != nil && ctx.Err() == nil {
				debug.Error(fmt.Errorf("start button: %w", err))
			}
		}()
	}

	srv := web.NewServer(cfg.Web.Addr, broadcaster, b, web.Options{
		MinStartInterval: minStart,
		PreviewInterval:  cfg.PreviewInterval(),
		PreviewQuality:   cfg.Booth.PreviewQuality,
	})
	return srv.Run(ctx)
}

// startFromButton starts a session with the current selections.
// Presses during a session are ignored.
func startFromButton(ctx context.Context, b *booth.Controller) {
	s := b.Settings()
	if _, err := b.StartSession(ctx, s.Rows, s.Seconds); err != nil {
		if errors.Is(err, capture.ErrSessionActive) {
			debug.Live("Button press ignored: session in progress")
			return
		}
		debug.Error(err)
	}
}

// runShoot plays one session on the camera and writes the strip to out.
func runShoot(ctx context.Context, w io.Writer, cfg *config.Config, out string, dryRun bool) error {
	debug.Init(cfg.Defaults.DebugLevel)

	var clock capture.Clock
	if dryRun {
		clock = capture.NewStepClock(time.Now())
	}
	b, stream, err := newBooth(cfg, clock)
	if err != nil {
		return err
	}
	defer b.Reset()

	b.Subscribe(func(e capture.Event) { printEvent(w, e) })
	if err := b.Activate(ctx); err != nil {
		return err
	}
	if _, err := stream.WaitFrame(ctx); err != nil {
		return fmt.Errorf("wait for camera: %w", err)
	}
	if _, err := b.StartSession(ctx, cfg.Booth.Rows, cfg.Booth.Seconds); err != nil {
		return err
	}
	if err := b.Wait(ctx); err != nil {
		return err
	}

	data, err := b.StripPNG(ctx)
	if err != nil {
		return err
	}
	return writeStrip(w, out, data)
}

func printEvent(w io.Writer, e capture.Event) {
	switch e.Kind {
	case capture.EventCountdown:
		fmt.Fprintf(w, "Photo %d/%d in %d...\n", e.Shot, e.Total, e.Remaining)
	case capture.EventShot:
		fmt.Fprintf(w, "Photo %d/%d captured\n", e.Shot, e.Total)
	case capture.EventDropped:
		fmt.Fprintf(w, "Photo %d/%d missed\n", e.Shot, e.Total)
	}
}

func writeStrip(w io.Writer, out string, data []byte) error {
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write strip: %w", err)
	}
	fmt.Fprintf(w, "Strip saved to %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
	return nil
}
