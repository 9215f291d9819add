package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/photobooth/internal/hw/button"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/booth"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
)

// MaxConfigFileBytes caps the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PHOTOBOOTH_"

// CameraConfig selects and tunes the webcam.
type CameraConfig struct {
	Type   string `yaml:"type"`   // "v4l2" or "pattern"
	Device string `yaml:"device"` // e.g. /dev/video0
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	Format string `yaml:"format"` // "mjpeg" or "yuyv"
}

// BoothConfig holds the session defaults and timing.
type BoothConfig struct {
	Rows              int    `yaml:"rows"`                // 3 or 4
	Seconds           int    `yaml:"seconds"`             // 3, 5 or 10
	Filter            string `yaml:"filter"`              // initial filter
	TickMs            int    `yaml:"tick_ms"`             // countdown step (ms)
	PauseMs           int    `yaml:"pause_ms"`            // pause between shots (ms)
	MissedShotRetries int    `yaml:"missed_shot_retries"` // extra attempts when no frame is ready
	RetryDelayMs      int    `yaml:"retry_delay_ms"`      // delay between those attempts (ms)
	PreviewWidth      int    `yaml:"preview_width"`
	PreviewHeight     int    `yaml:"preview_height"`
	PreviewFPS        int    `yaml:"preview_fps"`
	PreviewQuality    int    `yaml:"preview_quality"` // JPEG quality 1-100
}

// StripConfig holds the strip decoration defaults.
type StripConfig struct {
	Title      string            `yaml:"title"`
	TitleFont  string            `yaml:"title_font"` // TTF path, built-in face when empty
	Background string            `yaml:"background"`
	Sticker    string            `yaml:"sticker"`
	Timestamp  bool              `yaml:"timestamp"`
	Stickers   map[string]string `yaml:"stickers"` // sticker name -> overlay image
}

// WebConfig configures the HTTP server.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// ButtonConfig wires an optional physical start button (active low).
type ButtonConfig struct {
	Enabled    bool `yaml:"enabled"`
	Pin        int  `yaml:"pin"` // BCM numbering
	PollMs     int  `yaml:"poll_ms"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Booth    BoothConfig    `yaml:"booth"`
	Strip    StripConfig    `yaml:"strip"`
	Web      WebConfig      `yaml:"web"`
	Button   ButtonConfig   `yaml:"button"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ValidateConfigPath accepts only .yaml files directly inside a configs/
// directory, without any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies environment overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from PHOTOBOOTH_* environment variables.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &c.Web.Addr)
	str("CAMERA_TYPE", &c.Camera.Type)
	str("CAMERA_DEVICE", &c.Camera.Device)
	str("TITLE", &c.Strip.Title)
	return errors.Join(
		num("DEBUG_LEVEL", &c.Defaults.DebugLevel),
		num("ROWS", &c.Booth.Rows),
		num("SECONDS", &c.Booth.Seconds),
		flag("MOCK_GPIO", &c.Defaults.MockGPIO),
		flag("BUTTON", &c.Button.Enabled),
	)
}

func (c *Config) applyDefaults() {
	c.Camera = CameraConfig(camera.Settings(c.Camera).WithDefaults())

	if c.Booth.Rows == 0 {
		c.Booth.Rows = 3
	}
	if c.Booth.Seconds == 0 {
		c.Booth.Seconds = 3
	}
	if c.Booth.Filter == "" {
		c.Booth.Filter = filter.None
	}
	if c.Booth.TickMs <= 0 {
		c.Booth.TickMs = 1000
	}
	if c.Booth.PauseMs <= 0 {
		c.Booth.PauseMs = 1000
	}
	if c.Booth.RetryDelayMs <= 0 {
		c.Booth.RetryDelayMs = 100
	}
	if c.Booth.PreviewWidth <= 0 || c.Booth.PreviewHeight <= 0 {
		c.Booth.PreviewWidth, c.Booth.PreviewHeight = 640, 360
	}
	if c.Booth.PreviewFPS <= 0 {
		c.Booth.PreviewFPS = 15
	}
	if c.Booth.PreviewQuality <= 0 {
		c.Booth.PreviewQuality = 75
	}

	if c.Strip.Title == "" {
		c.Strip.Title = strip.DefaultTitle
	}
	if c.Strip.Background == "" {
		c.Strip.Background = strip.DefaultBackground
	}
	if c.Strip.Sticker == "" {
		c.Strip.Sticker = string(strip.StickerNone)
	}

	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}

	if c.Button.Pin == 0 {
		c.Button.Pin = 17
	}
	if c.Button.PollMs <= 0 {
		c.Button.PollMs = 10
	}
	if c.Button.DebounceMs <= 0 {
		c.Button.DebounceMs = 50
	}
}

// Validate checks every value against what the booth supports.
func (c *Config) Validate() error {
	switch c.Camera.Type {
	case "v4l2", "pattern":
	default:
		return fmt.Errorf("camera.type must be v4l2 or pattern, got %q", c.Camera.Type)
	}
	switch c.Camera.Format {
	case "mjpeg", "yuyv":
	default:
		return fmt.Errorf("camera.format must be mjpeg or yuyv, got %q", c.Camera.Format)
	}
	if !capture.ValidParams(c.Booth.Rows, c.Booth.Seconds) {
		return fmt.Errorf("booth.rows must be 3 or 4 and booth.seconds 3, 5 or 10, got %d and %d",
			c.Booth.Rows, c.Booth.Seconds)
	}
	if c.Booth.MissedShotRetries < 0 || c.Booth.MissedShotRetries > 10 {
		return fmt.Errorf("booth.missed_shot_retries must be between 0 and 10, got %d", c.Booth.MissedShotRetries)
	}
	if c.Booth.PreviewQuality > 100 {
		return fmt.Errorf("booth.preview_quality must be <= 100, got %d", c.Booth.PreviewQuality)
	}
	if _, err := filter.Parse(c.Booth.Filter); err != nil {
		return fmt.Errorf("booth.filter: %w", err)
	}
	if _, err := c.StripStyle().Normalize(); err != nil {
		return fmt.Errorf("strip: %w", err)
	}
	for name := range c.Strip.Stickers {
		if _, err := strip.ParseSticker(name); err != nil {
			return fmt.Errorf("strip.stickers: %w", err)
		}
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Button.Pin < 0 || c.Button.Pin > 27 {
		return fmt.Errorf("button.pin must be a BCM pin 0-27, got %d", c.Button.Pin)
	}
	return nil
}

// CameraSettings returns the device request.
func (c *Config) CameraSettings() camera.Settings {
	return camera.Settings(c.Camera)
}

// CaptureParams returns the sequencer timing.
func (c *Config) CaptureParams() capture.Params {
	return capture.Params{
		Tick:              ms(c.Booth.TickMs),
		Pause:             ms(c.Booth.PauseMs),
		MissedShotRetries: c.Booth.MissedShotRetries,
		RetryDelay:        ms(c.Booth.RetryDelayMs),
	}
}

// BoothSettings returns the controller defaults.
func (c *Config) BoothSettings() booth.Config {
	return booth.Config{
		Rows:          c.Booth.Rows,
		Seconds:       c.Booth.Seconds,
		Filter:        c.Booth.Filter,
		Style:         c.StripStyle(),
		Params:        c.CaptureParams(),
		PreviewWidth:  c.Booth.PreviewWidth,
		PreviewHeight: c.Booth.PreviewHeight,
	}
}

// StripStyle returns the initial strip decoration.
func (c *Config) StripStyle() strip.Style {
	return strip.Style{
		Background: c.Strip.Background,
		Sticker:    strip.Sticker(c.Strip.Sticker),
		Timestamp:  c.Strip.Timestamp,
	}
}

// StripOptions returns the composer options.
func (c *Config) StripOptions() strip.Options {
	return strip.Options{
		Title:     c.Strip.Title,
		TitleFont: c.Strip.TitleFont,
		Stickers:  c.Strip.Stickers,
	}
}

// ButtonSettings returns the start button wiring.
func (c *Config) ButtonSettings() button.Config {
	return button.Config{
		Pin:          c.Button.Pin,
		PollInterval: ms(c.Button.PollMs),
		Debounce:     ms(c.Button.DebounceMs),
	}
}

// PreviewInterval returns the delay between two preview frames.
func (c *Config) PreviewInterval() time.Duration {
	return time.Second / time.Duration(c.Booth.PreviewFPS)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
