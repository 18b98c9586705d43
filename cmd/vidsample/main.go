// Package main provides the CLI entry point for vidsample.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/user/vidsample/pkg/adapters/filesink"
	"github.com/user/vidsample/pkg/adapters/ggrenderer"
	"github.com/user/vidsample/pkg/adapters/h264decoder"
	"github.com/user/vidsample/pkg/adapters/logger"
	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/adapters/nullsink"
	"github.com/user/vidsample/pkg/adapters/osfilesystem"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/adapters/smartbackend"
	"github.com/user/vidsample/pkg/config"
	"github.com/user/vidsample/pkg/ports"
	"github.com/user/vidsample/pkg/probe"
	"github.com/user/vidsample/pkg/sampler"
	"github.com/user/vidsample/pkg/server"
	"github.com/user/vidsample/pkg/sheet"
	"github.com/user/vidsample/pkg/summarizer"
	"github.com/user/vidsample/pkg/vidsample"
)

var version = "dev"

// backendHooks register optional backends once the config is known.
var backendHooks []func(cfg config.Config)

const (
	categoryOutput   = "Output"
	categorySampling = "Sampling"
	categoryDecoder  = "Decoder"
	categoryLogging  = "Logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Error: %s", err.Error()))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "vidsample",
		Usage:   l10n.T("Sample fixed-size RGB frame buffers from videos"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file")},
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: l10n.T("Decoder backend (auto, mp4, astiav)"), Category: l10n.T(categoryDecoder)},
			&cli.StringFlag{Name: "scaler", Usage: l10n.T("Scaling kernel (nearest, bilinear, catmullrom)"), Category: l10n.T(categoryDecoder)},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: l10n.T("Path to the ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)"), Category: l10n.T(categoryDecoder)},
			&cli.StringFlag{Name: "ffmpeg-args", Usage: l10n.T("Extra ffmpeg input arguments for H.264 decoding"), Category: l10n.T(categoryDecoder)},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T(categoryLogging)},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T(categoryLogging)},
			&cli.StringFlag{Name: "dump-dir", Usage: l10n.T("Save every sampled frame as PNG under this directory"), Category: l10n.T(categoryOutput)},
		},
		Commands: []*cli.Command{
			uniformCommand(),
			framesCommand(),
			probeCommand(),
			serveCommand(),
			backendsCommand(),
		},
	}
}

func sizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: l10n.T("Output frame width (0 keeps the native width)"), Category: l10n.T(categorySampling)},
		&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: l10n.T("Output frame height (0 keeps the native height)"), Category: l10n.T(categorySampling)},
		&cli.StringFlag{Name: "pixel-format", Usage: l10n.T("Pixel layout (rgb24, bgr24)"), Category: l10n.T(categorySampling)},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Raw frame buffer file (- for stdout)"), Category: l10n.T(categoryOutput)},
		&cli.StringFlag{Name: "sheet", Usage: l10n.T("Write a PNG contact sheet to this file"), Category: l10n.T(categoryOutput)},
		&cli.StringFlag{Name: "summary", Usage: l10n.T("Write a Markdown summary of the run to this file"), Category: l10n.T(categoryOutput)},
	}
}

func uniformCommand() *cli.Command {
	return &cli.Command{
		Name:      "uniform",
		Usage:     l10n.T("Sample frames at a capped frame rate"),
		ArgsUsage: "VIDEO",
		Flags: append(sizeFlags(),
			&cli.IntFlag{Name: "frames", Aliases: []string{"n"}, Usage: l10n.T("Number of frames"), Category: l10n.T(categorySampling)},
			&cli.Float64Flag{Name: "fps-cap", Usage: l10n.T("Maximum sampling rate in frames per second"), Category: l10n.T(categorySampling)},
			&cli.BoolFlag{Name: "random-seek", Usage: l10n.T("Start at a random keypoint"), Category: l10n.T(categorySampling)},
			&cli.Uint64Flag{Name: "seed", Usage: l10n.T("Seed for the random start (0 seeds from the clock)"), Category: l10n.T(categorySampling)},
		),
		Action: runUniform,
	}
}

func framesCommand() *cli.Command {
	return &cli.Command{
		Name:      "frames",
		Usage:     l10n.T("Sample the frames at the given indices"),
		ArgsUsage: "VIDEO",
		Flags: append(sizeFlags(),
			&cli.StringFlag{Name: "indices", Aliases: []string{"i"}, Required: true, Usage: l10n.T("Comma separated, strictly increasing frame indices"), Category: l10n.T(categorySampling)},
			&cli.BoolFlag{Name: "seek", Usage: l10n.T("Seek to the first index instead of decoding from the start"), Category: l10n.T(categorySampling)},
		),
		Action: runFrames,
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Describe the video stream"),
		ArgsUsage: "VIDEO",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "yaml", Usage: l10n.T("Report format (yaml, json)"), Category: l10n.T(categoryOutput)},
		},
		Action: runProbe,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: l10n.T("Serve the samplers over HTTP"),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: l10n.T("Listen address (default: :8080)")},
		},
		Action: runServe,
	}
}

func backendsCommand() *cli.Command {
	return &cli.Command{
		Name:   "backends",
		Usage:  l10n.T("List the decoder backends of this build"),
		Action: runBackends,
	}
}

// env holds what every command needs.
type env struct {
	cfg      config.Config
	log      ports.Logger
	opener   *smartbackend.Opener
	fs       ports.FileSystem
	renderer ports.Renderer
}

// setup loads the config file and applies the flags set on the command line.
func setup(c *cli.Context) (*env, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("backend") {
		cfg.Decoder.Backend = c.String("backend")
	}
	if c.IsSet("scaler") {
		cfg.Decoder.Scaler = c.String("scaler")
	}
	if c.IsSet("ffmpeg-path") {
		cfg.Decoder.FFmpegPath = c.String("ffmpeg-path")
	}
	if c.IsSet("ffmpeg-args") {
		cfg.Decoder.FFmpegArgs = c.String("ffmpeg-args")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("dump-dir") {
		cfg.DumpDir = c.String("dump-dir")
	}
	if c.IsSet("width") {
		cfg.Sampling.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Sampling.Height = c.Int("height")
	}
	if c.IsSet("pixel-format") {
		cfg.Sampling.PixelFormat = c.String("pixel-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	for _, hook := range backendHooks {
		hook(cfg)
	}
	return &env{
		cfg:      cfg,
		log:      log,
		opener:   smartbackend.New(cfg.BackendOptions(), log),
		fs:       osfilesystem.New(),
		renderer: ggrenderer.New(pixconv.Scaler(cfg.Decoder.Scaler)),
	}, nil
}

// loaderOptions adds the frame dump sink to the config options.
func (e *env) loaderOptions() []vidsample.Option {
	var sink ports.FrameSink = nullsink.New()
	if e.cfg.DumpDir != "" {
		sink = filesink.New(e.cfg.DumpDir, e.fs, e.renderer)
		e.log.Debug("Dumping frames to %s", e.cfg.DumpDir)
	}
	return append(e.cfg.LoaderOptions(e.log), vidsample.WithSink(sink))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// readVideo reads the single VIDEO argument. "-" reads stdin.
func (e *env) readVideo(c *cli.Context) (string, []byte, error) {
	if c.NArg() != 1 {
		return "", nil, errors.New(l10n.T("A video argument is required"))
	}
	path := c.Args().First()
	data, err := e.fs.ReadFile(path)
	return path, data, err
}

func runUniform(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	if c.IsSet("seed") {
		e.cfg.Sampling.Seed = c.Uint64("seed")
	}
	path, video, err := e.readVideo(c)
	if err != nil {
		return err
	}

	opts := e.cfg.UniformOptions()
	if c.IsSet("frames") {
		opts.Frames = c.Int("frames")
	}
	if c.IsSet("fps-cap") {
		opts.FPSCap = c.Float64("fps-cap")
	}
	if c.IsSet("random-seek") {
		opts.RandomSeek = c.Bool("random-seek")
	}

	loader := vidsample.New(e.opener, e.loaderOptions()...)
	res, err := loader.LoadUniform(video, opts)
	if res == nil {
		return err
	}
	if res.SeekDistance > 0 {
		e.log.Info("Started %.3f s into the stream", res.SeekDistance)
	}

	req := summarizer.RequestInfo{
		Mode:       "uniform",
		Width:      opts.Width,
		Height:     opts.Height,
		Frames:     opts.Frames,
		FPSCap:     opts.FPSCap,
		RandomSeek: opts.RandomSeek,
	}
	if err := e.write(c, &res.Result, nil); err != nil {
		return err
	}
	return e.summarize(c, path, video, req, &res.Result, err)
}

func runFrames(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	indices, err := server.ParseIndices(c.String("indices"))
	if err != nil {
		return err
	}
	path, video, err := e.readVideo(c)
	if err != nil {
		return err
	}

	opts := e.cfg.IndexOptions(indices)
	if c.IsSet("seek") {
		opts.Seek = c.Bool("seek")
	}

	loader := vidsample.New(e.opener, e.loaderOptions()...)
	res, err := loader.LoadFrames(video, opts)
	if res == nil {
		return err
	}

	labels := make([]string, len(indices))
	for i, idx := range indices {
		labels[i] = fmt.Sprint(idx)
	}
	req := summarizer.RequestInfo{
		Mode:    "frames",
		Width:   opts.Width,
		Height:  opts.Height,
		Frames:  len(indices),
		Indices: indices,
		Seek:    opts.Seek,
	}
	if err := e.write(c, &res.Result, labels); err != nil {
		return err
	}
	return e.summarize(c, path, video, req, &res.Result, err)
}

// write stores the raw buffer and the optional contact sheet. A blank
// buffer from an unreadable video is still written.
func (e *env) write(c *cli.Context, res *vidsample.Result, labels []string) error {
	out := c.String("output")
	sheetPath := c.String("sheet")
	if out == "" && sheetPath == "" {
		out = osfilesystem.Stdio
	}

	if out != "" {
		if err := e.fs.WriteFile(out, res.Frames); err != nil {
			return err
		}
		if out != osfilesystem.Stdio {
			e.log.Info("Output saved to %s", out)
		}
	}

	if sheetPath == "" {
		return nil
	}
	ctx, cancel := signalContext(e.log)
	defer cancel()
	img, err := sheet.Render(ctx, e.renderer, sheet.Input{
		Data:    res.Frames,
		Frames:  res.Count,
		Width:   res.Width,
		Height:  res.Height,
		Format:  res.Format,
		Written: res.Stats.Written,
		Labels:  labels,
	}, e.cfg.SheetOptions(), e.log)
	if err != nil {
		return err
	}
	if err := e.fs.WriteFile(sheetPath, img); err != nil {
		return err
	}
	e.log.Info("Contact sheet saved to %s", sheetPath)
	return nil
}

// summarize writes the Markdown summary when --summary is set. openErr is
// the stream open failure behind a blank buffer, if any.
func (e *env) summarize(c *cli.Context, path string, video []byte, req summarizer.RequestInfo, res *vidsample.Result, openErr error) error {
	out := c.String("summary")
	if out == "" {
		return nil
	}
	req.PixelFormat = res.Format.String()

	var backend string
	if sel, err := e.opener.Select(memsource.New(video)); err == nil {
		backend = string(sel.Backend)
	}

	s := summarizer.NewBuilder().
		WithSource(path, int64(len(video)), backend).
		WithRequest(req).
		WithResult(res, openErr).
		Build()
	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	if err := summarizer.NewWriter(formatter, e.fs).Write(out, s); err != nil {
		return err
	}
	e.log.Info("Summary saved to %s", out)
	return nil
}

func runProbe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	_, video, err := e.readVideo(c)
	if err != nil {
		return err
	}

	report, err := probe.Probe(e.opener, memsource.New(video), sampler.WithLogger(e.log))
	if err != nil {
		return err
	}

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(report)
	default:
		return errors.New(l10n.F("Unknown report format %s", c.String("format")))
	}
}

func runServe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		e.cfg.Server.Addr = c.String("addr")
	}

	ctx, cancel := signalContext(e.log)
	defer cancel()

	return server.New(e.cfg, e.opener, e.renderer, e.log, e.loaderOptions()...).Run(ctx)
}

func runBackends(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	for _, b := range smartbackend.Available() {
		fmt.Println(string(b))
	}
	if path, err := h264decoder.FindFFmpeg(); err == nil {
		e.log.Info("ffmpeg found at %s", path)
	} else {
		e.log.Warn("ffmpeg not found, H.264 decoding is unavailable")
	}
	return nil
}
