package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
)

// newApp creates the CLI application with all commands.
// Command output goes to w.
func newApp(w io.Writer) *cli.App {
	app := &cli.App{
		Name:    "photobooth",
		Usage:   "Browser photobooth: countdown, capture and photo strip",
		Version: Version,
		Writer:  w,
		Commands: []*cli.Command{
			serveCmd(),
			shootCmd(w),
			composeCmd(w),
		},
	}
	// Return errors instead of exiting so tests can inspect them
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   defaultConfigPath,
		EnvVars: []string{config.EnvPrefix + "CONFIG"},
		Usage:   "path to config file (configs/*.yaml)",
	}
}

func styleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "background", Aliases: []string{"b"}, Usage: "strip background preset (e.g. white, #f6d5da)"},
		&cli.StringFlag{Name: "sticker", Aliases: []string{"s"}, Usage: "sticker overlay: none|sticker1|sticker2|sticker3"},
		&cli.StringFlag{Name: "title", Usage: "strip title"},
		&cli.BoolFlag{Name: "timestamp", Aliases: []string{"t"}, Usage: "print the date under the title"},
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "rows", Aliases: []string{"r"}, Usage: "photos per strip: 3 or 4"},
		&cli.IntFlag{Name: "seconds", Usage: "countdown per photo: 3, 5 or 10"},
		&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "photo filter: none|grayscale|sepia|vintage|soft"},
		&cli.StringFlag{Name: "camera", Usage: "camera type: v4l2|pattern"},
		&cli.IntFlag{Name: "debug", Aliases: []string{"d"}, Usage: "debug level 0-4"},
	}
}

// overridesFromFlags collects the flags that were explicitly set.
func overridesFromFlags(c *cli.Context) cliOverrides {
	o := cliOverrides{
		Addr:       c.String("addr"),
		Camera:     c.String("camera"),
		Rows:       c.Int("rows"),
		Seconds:    c.Int("seconds"),
		Filter:     c.String("filter"),
		Background: c.String("background"),
		Sticker:    c.String("sticker"),
		Title:      c.String("title"),
	}
	if c.IsSet("timestamp") {
		v := c.Bool("timestamp")
		o.Timestamp = &v
	}
	if c.IsSet("debug") {
		v := c.Int("debug")
		o.DebugLevel = &v
	}
	if c.IsSet("mock-gpio") {
		v := c.Bool("mock-gpio")
		o.MockGPIO = &v
	}
	if c.IsSet("button") {
		v := c.Bool("button")
		o.Button = &v
	}
	return o
}

// configure loads the config file and applies the command-line overrides.
func configure(c *cli.Context) (*config.Config, error) {
	o := overridesFromFlags(c)
	if err := validateCLIOverrides(o); err != nil {
		return nil, fmt.Errorf("invalid flag: %w", err)
	}
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	applyOverrides(cfg, o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serveCmd creates the serve command.
func serveCmd() *cli.Command {
	flags := []cli.Flag{
		configFlag(),
		&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "listen address (default :8080)"},
		&cli.BoolFlag{Name: "mock-gpio", Usage: "use the in-memory GPIO driver"},
		&cli.BoolFlag{Name: "button", Usage: "enable the physical start button"},
		&cli.DurationFlag{Name: "min-start-interval", Value: time.Second, Usage: "minimum delay between two session starts from the web UI"},
	}
	flags = append(flags, sessionFlags()...)
	flags = append(flags, styleFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web booth",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, err := configure(c)
			if err != nil {
				return err
			}
			return runServe(c.Context, cfg, c.Duration("min-start-interval"))
		},
	}
}

// shootCmd creates the shoot command.
func shootCmd(w io.Writer) *cli.Command {
	flags := []cli.Flag{
		configFlag(),
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: strip.Filename, Usage: "output PNG file"},
		&cli.BoolFlag{Name: "dry-run", Usage: "play the countdown on a virtual clock"},
	}
	flags = append(flags, sessionFlags()...)
	flags = append(flags, styleFlags()...)

	return &cli.Command{
		Name:  "shoot",
		Usage: "Capture one session from the camera and save the strip",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, err := configure(c)
			if err != nil {
				return err
			}
			return runShoot(c.Context, w, cfg, c.String("out"), c.Bool("dry-run"))
		},
	}
}

// composeCmd creates the compose command.
func composeCmd(w io.Writer) *cli.Command {
	flags := []cli.Flag{
		configFlag(),
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: strip.Filename, Usage: "output PNG file"},
	}
	flags = append(flags, styleFlags()...)

	return &cli.Command{
		Name:      "compose",
		Usage:     "Compose a strip from 3 or 4 image files",
		ArgsUsage: "image1 image2 image3 [image4]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if n := c.NArg(); n != 3 && n != 4 {
				return fmt.Errorf("compose needs 3 or 4 images, got %d", n)
			}
			cfg, err := configure(c)
			if err != nil {
				return err
			}
			return runCompose(w, cfg, c.Args().Slice(), c.String("out"))
		},
	}
}

// runCompose lays out the given image files on one strip.
func runCompose(w io.Writer, cfg *config.Config, paths []string, out string) error {
	debug.Init(cfg.Defaults.DebugLevel)

	images := make([]snapshot.Encoded, 0, len(paths))
	for _, p := range paths {
		enc, err := readImage(p)
		if err != nil {
			return err
		}
		images = append(images, enc)
	}

	composer, err := strip.NewComposer(cfg.StripOptions())
	if err != nil {
		return err
	}
	img, err := composer.Compose(images, len(paths), cfg.StripStyle())
	if err != nil {
		return err
	}
	data, err := strip.EncodePNG(img)
	if err != nil {
		return err
	}
	return writeStrip(w, out, data)
}

func readImage(path string) (snapshot.Encoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot.Encoded{}, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return snapshot.Encoded{}, fmt.Errorf("decode %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return snapshot.Encoded{}, err
	}
	return snapshot.FromImage(img, info.ModTime())
}
