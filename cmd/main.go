package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"rfgrep/internal"
	"rfgrep/internal/scanner"
)

const (
	exitNoMatch = 1
	exitConfig  = 2
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "rfgrep",
		Usage:     "Recursively search file contents with filters",
		ArgsUsage: "PATTERN [PATH]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Match mode: literal, regex, word, naive",
				Value: "literal",
			},
			&cli.BoolFlag{
				Name:    "ignore-case",
				Aliases: []string{"i"},
				Usage:   "Case-insensitive matching",
			},
			&cli.BoolFlag{
				Name:    "invert-match",
				Aliases: []string{"v"},
				Usage:   "Report lines that do not match",
			},
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "Only search these extensions (comma separated, e.g. go,md). Use without dot.",
			},
			&cli.StringSliceFlag{
				Name:  "exclude-ext",
				Usage: "Skip these extensions (comma separated). If --ext is set, this is ignored.",
			},
			&cli.StringSliceFlag{
				Name:  "ignore",
				Usage: "Skip files and directories whose name matches these globs",
				Value: cli.NewStringSlice("node_modules", ".git"),
			},
			&cli.StringFlag{
				Name:  "min-size",
				Usage: "Skip files smaller than this (e.g. 1KB)",
			},
			&cli.StringFlag{
				Name:  "max-size",
				Usage: "Skip files larger than this (e.g. 10MB)",
			},
			&cli.BoolFlag{
				Name:  "no-recursive",
				Usage: "Only search files directly under PATH",
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Max directory depth (0 - unlimited)",
			},
			&cli.BoolFlag{
				Name:  "skip-binary",
				Usage: "Skip files that look binary instead of searching them as text",
			},
			&cli.BoolFlag{
				Name:  "hidden",
				Usage: "Include hidden files and directories",
			},
			&cli.IntFlag{
				Name:    "context",
				Aliases: []string{"C"},
				Usage:   "Lines of context around each match",
			},
			&cli.IntFlag{
				Name:  "max-per-file",
				Usage: "Max matches reported per file (0 - unlimited)",
			},
			&cli.IntFlag{
				Name:    "max-count",
				Aliases: []string{"m"},
				Usage:   "Stop after this many matches in total (0 - unlimited)",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Max concurrent file workers (default scales with CPU)",
			},
			&cli.StringFlag{
				Name:  "mmap-threshold",
				Usage: "Memory map files larger than this (default adapts to free memory)",
			},
			&cli.BoolFlag{
				Name:  "archives",
				Usage: "Also search inside archives (.zip,.tar,.gz,.bz2,.xz,.rar,.7z,...)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Global timeout for scan (e.g. 10m, 1h)",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"list"},
				Usage:   "List the files a search would open, with their size, and exit",
			},
			&cli.BoolFlag{
				Name:    "byte-offset",
				Aliases: []string{"b"},
				Usage:   "Print the byte offset of each match within its file",
			},
			&cli.BoolFlag{
				Name:  "sort",
				Usage: "Print matches ordered by path and line (buffers all output)",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a progress spinner on stderr when it is a terminal",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config file (default: $XDG_CONFIG_HOME/rfgrep/config.yaml, ~/.rfgrep.yaml, ./.rfgrep.yaml)",
			},
			&cli.StringFlag{
				Name:  "logfile",
				Usage: "Write logs into file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:  "save-matches-file",
				Usage: "Append all matched lines into a single file",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	internal.InitLogger(c.String("logfile"), c.String("log-level"))

	if c.NArg() < 1 {
		return cli.Exit("missing PATTERN", exitConfig)
	}
	root := "."
	if c.NArg() > 1 {
		root = c.Args().Get(1)
	}

	opts, err := buildOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	cfg, err := internal.Validate(opts)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	// ctx with timeout + OS signals
	base := context.Background()
	var cancel context.CancelFunc
	if t := c.Duration("timeout"); t > 0 {
		base, cancel = context.WithTimeout(base, t)
	} else {
		base, cancel = context.WithCancel(base)
	}
	defer cancel()

	ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("dry-run") {
		if listCandidates(ctx, c.App.Writer, cfg, root) == 0 {
			return cli.Exit("", exitNoMatch)
		}
		return nil
	}

	var sink *internal.ResultSink
	if path := c.String("save-matches-file"); path != "" {
		if sink, err = internal.NewResultSink(path); err != nil {
			return cli.Exit(err.Error(), exitConfig)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logrus.WithError(err).Warn("close matches file")
			}
		}()
	}

	out := newPrinter(c.App.Writer, c.Bool("sort"))
	out.offsets = c.Bool("byte-offset")
	var scanOpts []internal.ScannerOption
	bar := newProgress(c.Bool("progress"))
	if bar != nil {
		scanOpts = append(scanOpts, internal.WithProgress(bar.update, 100*time.Millisecond))
	}

	logrus.WithFields(logrus.Fields{"root": root, "pattern": cfg.Pattern().Desc()}).Info("rfgrep started")
	report, err := internal.NewFileScanner(cfg, scanOpts...).Scan(ctx, root, func(m scanner.SearchMatch) {
		out.add(m)
		if sink != nil {
			if err := sink.Write(m); err != nil {
				logrus.WithError(err).Warn("save match")
			}
		}
	})
	bar.finish()
	out.flush()

	if err != nil {
		logrus.WithError(err).Error("Scan failed")
		return cli.Exit(err.Error(), exitConfig)
	}
	if report.Cancelled {
		logrus.Warn("Scan cancelled")
	}
	printSummary(c.App.ErrWriter, report)

	if report.TotalMatches == 0 {
		return cli.Exit("", exitNoMatch)
	}
	return nil
}

// buildOptions layers defaults, the config file and explicitly set flags.
func buildOptions(c *cli.Context) (internal.SearchOptions, error) {
	opts := internal.DefaultOptions()
	opts.Pattern = c.Args().First()

	fc, _, err := internal.LoadConfig(c.String("config"))
	if err != nil {
		return opts, err
	}
	if err := fc.Apply(&opts); err != nil {
		return opts, err
	}

	if c.IsSet("mode") {
		m, err := internal.ParseMode(c.String("mode"))
		if err != nil {
			return opts, &internal.ConfigError{Field: "mode", Err: err}
		}
		opts.Mode = m
	}
	if c.IsSet("ignore-case") {
		opts.IgnoreCase = c.Bool("ignore-case")
	}
	if c.IsSet("invert-match") {
		opts.InvertMatch = c.Bool("invert-match")
	}
	if c.IsSet("ext") {
		opts.Extensions = c.StringSlice("ext")
	}
	if c.IsSet("exclude-ext") {
		opts.ExcludeExtensions = c.StringSlice("exclude-ext")
	}
	if c.IsSet("ignore") {
		opts.IgnorePatterns = c.StringSlice("ignore")
	}
	if c.IsSet("no-recursive") {
		opts.Recursive = !c.Bool("no-recursive")
	}
	if c.IsSet("skip-binary") {
		opts.SkipBinary = c.Bool("skip-binary")
	}
	if c.IsSet("hidden") {
		opts.ShowHidden = c.Bool("hidden")
	}
	if c.IsSet("archives") {
		opts.Archives = c.Bool("archives")
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"depth", &opts.MaxDepth},
		{"context", &opts.ContextLines},
		{"max-per-file", &opts.MaxMatchesPerFile},
		{"max-count", &opts.MaxMatchesTotal},
		{"threads", &opts.Workers},
	} {
		if c.IsSet(f.name) {
			*f.dst = c.Int(f.name)
		}
	}
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{"min-size", &opts.MinSize},
		{"max-size", &opts.MaxSize},
		{"mmap-threshold", &opts.MmapThreshold},
	} {
		if !c.IsSet(f.name) {
			continue
		}
		n, err := internal.ParseSize(c.String(f.name))
		if err != nil {
			return opts, &internal.ConfigError{Field: f.name, Err: err}
		}
		*f.dst = n
	}
	return opts, nil
}
