package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/photobooth/internal/logic/capture"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		wantErr bool
	}{
		{"con fig.yaml", false},
		{"café.yaml", false},
	}
	for _, tc := range cases {
		path := filepath.Join(cfgDir, tc.name)
		err := ValidateConfigPath(path)
		if tc.wantErr && err == nil {
			t.Errorf("expected error for %q, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("unexpected error for %q: %v", tc.name, err)
		}
	}
}

func TestValidateConfigPath_DoubleTraversal(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Try to escape via ../../configs/ok.yaml: filepath.Clean resolves this
	// and the parent must still be "configs".
	path := filepath.Join(cfgDir, "../../configs/ok.yaml")
	err := ValidateConfigPath(path)
	// After Clean the parent may or may not be "configs" depending on resolution.
	// The important thing is it either succeeds with a valid parent or fails.
	_ = err
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
camera:
  type: "pattern"
  device: "/dev/video2"
  width: 1920
  height: 1080
  fps: 25
  format: "yuyv"
booth:
  rows: 4
  seconds: 5
  filter: "vintage"
  missed_shot_retries: 2
  preview_fps: 10
strip:
  title: "Ana & Leo"
  background: "#f6d5da"
  sticker: "sticker2"
  timestamp: true
  stickers:
    sticker1: "assets/frame.png"
web:
  addr: "127.0.0.1:9000"
button:
  enabled: true
  pin: 22
defaults:
  debug_level: 2
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != "pattern" {
		t.Errorf("camera.type = %q, want %q", cfg.Camera.Type, "pattern")
	}
	if cfg.Camera.Width != 1920 || cfg.Camera.Height != 1080 {
		t.Errorf("camera size = %dx%d, want 1920x1080", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Booth.Rows != 4 || cfg.Booth.Seconds != 5 {
		t.Errorf("booth = %d rows %ds, want 4 rows 5s", cfg.Booth.Rows, cfg.Booth.Seconds)
	}
	if cfg.Strip.Title != "Ana & Leo" {
		t.Errorf("strip.title = %q", cfg.Strip.Title)
	}
	if got := cfg.Strip.Stickers["sticker1"]; got != "assets/frame.png" {
		t.Errorf("strip.stickers.sticker1 = %q", got)
	}
	if cfg.Web.Addr != "127.0.0.1:9000" {
		t.Errorf("web.addr = %q", cfg.Web.Addr)
	}
	if !cfg.Button.Enabled || cfg.Button.Pin != 22 {
		t.Errorf("button = %+v", cfg.Button)
	}
	if cfg.Defaults.DebugLevel != 2 || !cfg.Defaults.MockGPIO {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "camera:\n  type: \"pattern\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"camera.device", cfg.Camera.Device, "/dev/video0"},
		{"camera.width", cfg.Camera.Width, 1280},
		{"camera.height", cfg.Camera.Height, 720},
		{"camera.fps", cfg.Camera.FPS, 30},
		{"camera.format", cfg.Camera.Format, "mjpeg"},
		{"booth.rows", cfg.Booth.Rows, 3},
		{"booth.seconds", cfg.Booth.Seconds, 3},
		{"booth.filter", cfg.Booth.Filter, "none"},
		{"booth.missed_shot_retries", cfg.Booth.MissedShotRetries, 0},
		{"booth.preview_width", cfg.Booth.PreviewWidth, 640},
		{"booth.preview_quality", cfg.Booth.PreviewQuality, 75},
		{"strip.title", cfg.Strip.Title, "Photobooth"},
		{"strip.background", cfg.Strip.Background, "white"},
		{"strip.sticker", cfg.Strip.Sticker, "none"},
		{"web.addr", cfg.Web.Addr, ":8080"},
		{"button.pin", cfg.Button.Pin, 17},
		{"button.debounce_ms", cfg.Button.DebounceMs, 50},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s default = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != "v4l2" {
		t.Errorf("camera.type default = %q, want v4l2", cfg.Camera.Type)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"camera_type", "camera:\n  type: gphoto\n"},
		{"camera_format", "camera:\n  format: h264\n"},
		{"rows", "booth:\n  rows: 5\n"},
		{"seconds", "booth:\n  seconds: 7\n"},
		{"filter", "booth:\n  filter: lomo\n"},
		{"retries", "booth:\n  missed_shot_retries: -1\n"},
		{"quality", "booth:\n  preview_quality: 101\n"},
		{"background", "strip:\n  background: \"#123456\"\n"},
		{"sticker", "strip:\n  sticker: sticker7\n"},
		{"sticker_file", "strip:\n  stickers:\n    frame: a.png\n"},
		{"debug_level", "defaults:\n  debug_level: 9\n"},
		{"button_pin", "button:\n  pin: 40\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
camera:
  type: "pattern"
unknown_section:
  foo: bar
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "nonexistent.yaml")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Environment ----------

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PHOTOBOOTH_ADDR", ":7070")
	t.Setenv("PHOTOBOOTH_CAMERA_TYPE", "pattern")
	t.Setenv("PHOTOBOOTH_ROWS", "4")
	t.Setenv("PHOTOBOOTH_MOCK_GPIO", "true")

	path := writeConfig(t, "web:\n  addr: \":8080\"\nbooth:\n  rows: 3\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Web.Addr != ":7070" {
		t.Errorf("web.addr = %q, want :7070", cfg.Web.Addr)
	}
	if cfg.Camera.Type != "pattern" {
		t.Errorf("camera.type = %q, want pattern", cfg.Camera.Type)
	}
	if cfg.Booth.Rows != 4 {
		t.Errorf("booth.rows = %d, want 4", cfg.Booth.Rows)
	}
	if !cfg.Defaults.MockGPIO {
		t.Error("mock_gpio should be true from env")
	}
}

func TestLoad_EnvBadNumber(t *testing.T) {
	t.Setenv("PHOTOBOOTH_DEBUG_LEVEL", "loud")
	path := writeConfig(t, "")
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-numeric PHOTOBOOTH_DEBUG_LEVEL, got nil")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("PHOTOBOOTH_TITLE=Wedding Booth\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHOTOBOOTH_TITLE", "")
	os.Unsetenv("PHOTOBOOTH_TITLE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Strip.Title != "Wedding Booth" {
		t.Errorf("strip.title = %q, want from .env", cfg.Strip.Title)
	}
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing files should be skipped, got %v", err)
	}
}

// ---------- Helper methods ----------

func TestConfig_CaptureParams(t *testing.T) {
	cfg := Default()
	cfg.Booth.MissedShotRetries = 2
	got := cfg.CaptureParams()
	want := capture.Params{
		Tick:              time.Second,
		Pause:             time.Second,
		MissedShotRetries: 2,
		RetryDelay:        100 * time.Millisecond,
	}
	if got != want {
		t.Errorf("CaptureParams() = %+v, want %+v", got, want)
	}
}

func TestConfig_BoothSettings(t *testing.T) {
	cfg := Default()
	cfg.Booth.Rows, cfg.Booth.Seconds = 4, 10
	cfg.Booth.Filter = "soft"
	cfg.Strip.Background = "black"
	got := cfg.BoothSettings()
	if got.Rows != 4 || got.Seconds != 10 || got.Filter != "soft" {
		t.Errorf("BoothSettings() = %+v", got)
	}
	if got.Style.Background != "black" {
		t.Errorf("Style.Background = %q, want black", got.Style.Background)
	}
	if got.PreviewWidth != 640 || got.PreviewHeight != 360 {
		t.Errorf("preview = %dx%d, want 640x360", got.PreviewWidth, got.PreviewHeight)
	}
	if got.Params.Tick != time.Second {
		t.Errorf("Params.Tick = %v, want 1s", got.Params.Tick)
	}
}

func TestConfig_ButtonSettings(t *testing.T) {
	cfg := &Config{Button: ButtonConfig{Pin: 27, PollMs: 5, DebounceMs: 40}}
	got := cfg.ButtonSettings()
	if got.Pin != 27 || got.PollInterval != 5*time.Millisecond || got.Debounce != 40*time.Millisecond {
		t.Errorf("ButtonSettings() = %+v", got)
	}
}

func TestConfig_PreviewInterval(t *testing.T) {
	cfg := &Config{Booth: BoothConfig{PreviewFPS: 20}}
	if got := cfg.PreviewInterval(); got != 50*time.Millisecond {
		t.Errorf("PreviewInterval() = %v, want 50ms", got)
	}
}

func TestConfig_StripStyle(t *testing.T) {
	cfg := Default()
	cfg.Strip.Background = "#800000"
	cfg.Strip.Sticker = "sticker3"
	cfg.Strip.Timestamp = true
	style := cfg.StripStyle()
	if style.Background != "#800000" || style.Sticker != "sticker3" || !style.Timestamp {
		t.Errorf("StripStyle() = %+v", style)
	}
	if cfg.CameraSettings().Width != 1280 {
		t.Errorf("CameraSettings().Width = %d, want 1280", cfg.CameraSettings().Width)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default() should validate, got %v", err)
	}
}

// formatInt is a test helper for embedding numbers into YAML strings.
func formatInt(n int) string {
	return fmt.Sprintf("%d", n)
}

func TestLoad_RowsAndSecondsGrid(t *testing.T) {
	for _, rows := range capture.ValidShotCounts {
		for _, secs := range capture.ValidSeconds {
			yaml := "booth:\n  rows: " + formatInt(rows) + "\n  seconds: " + formatInt(secs) + "\n"
			if _, err := Load(writeConfig(t, yaml)); err != nil {
				t.Errorf("rows=%d seconds=%d: %v", rows, secs, err)
			}
		}
	}
}
