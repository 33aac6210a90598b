package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"font-metrics/internal/bootstrap"
	"font-metrics/internal/config"
	"font-metrics/internal/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, executes the requested mode and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	app := bootstrap.New(cli.configPath)
	if cli.check {
		report, err := app.Check(cli.overrides)
		if err != nil {
			fmt.Fprintf(stderr, "fontmetrics: %v\n", err)
			return 1
		}
		printReport(stdout, report)
		if report.HasFailures {
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(stderr, "fontmetrics: teardown: %v\n", err)
		}
	}()

	outcome, err := app.Measure(ctx, cli.overrides)
	if err != nil {
		fmt.Fprintf(stderr, "fontmetrics: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote metrics for %d font(s) to %s\n", len(outcome.Result.Metrics), outcome.OutputFile)
	if outcome.SpecimenFile != "" {
		fmt.Fprintf(stdout, "wrote specimen to %s\n", outcome.SpecimenFile)
	}
	return 0
}

type cliOptions struct {
	configPath string
	check      bool
	overrides  config.Options
}

// parseFlags maps command-line flags to option overrides. Only flags given
// on the command line override the options file.
func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("fontmetrics", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cli cliOptions
	var fonts fontList
	var mounts mountList
	fs.StringVar(&cli.configPath, "config", "", "JSON options file")
	fs.Var(&fonts, "font", "font to measure as Family or Family=source (repeatable)")
	fs.Var(&mounts, "mount", "serve a directory as /alias=dir (repeatable)")
	size := fs.Float64("size", config.DefaultFontSize, "font size in px")
	out := fs.String("out", config.DefaultOutputPath, "output directory")
	filename := fs.String("filename", config.DefaultOutputFilename, "output file name")
	port := fs.Int("port", config.DefaultServerPort, "content server port (0 picks a free port)")
	page := fs.String("page", "", "directory with a custom measurement page")
	probe := fs.String("probe", config.DefaultProbeText, "probe text to measure")
	specimen := fs.String("specimen", "", "also write an SVG specimen with this file name")
	timeout := fs.Duration("timeout", config.DefaultTimeout, "measurement timeout")
	execPath := fs.String("chrome", "", "Chrome executable")
	show := fs.Bool("show", false, "show the browser window")
	debug := fs.Bool("debug", false, "debug tracing")
	fs.BoolVar(&cli.check, "check", false, "run preflight checks and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: fontmetrics [flags]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return cliOptions{}, err
	}

	o := &cli.overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "font":
			o.Fonts = fonts
		case "mount":
			o.AdditionalMounts = mounts
		case "size":
			o.FontSize = size
		case "out":
			o.OutputPath = out
		case "filename":
			o.OutputFilename = filename
		case "port":
			o.ServerPort = port
		case "page":
			o.PageDir = page
		case "probe":
			o.ProbeText = probe
		case "specimen":
			o.SpecimenFilename = specimen
		case "timeout":
			o.Engine.Timeout = config.Ptr(config.Duration(*timeout))
		case "chrome":
			o.Engine.ExecPath = execPath
		case "show":
			o.Engine.Show = show
		case "debug":
			o.Debug = debug
		}
	})
	return cli, nil
}

// fontList collects -font Family[=source] values.
type fontList []domain.FontRequest

func (l *fontList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, 0, len(*l))
	for _, f := range *l {
		if f.HasSource() {
			parts = append(parts, f.FontFamily+"="+f.SourceValue())
		} else {
			parts = append(parts, f.FontFamily)
		}
	}
	return strings.Join(parts, ",")
}

func (l *fontList) Set(value string) error {
	family, source, hasSource := strings.Cut(value, "=")
	if strings.TrimSpace(family) == "" {
		return errors.New("font family is empty")
	}
	req := domain.FontRequest{FontFamily: family}
	if hasSource {
		req.Source = &source
	}
	*l = append(*l, req)
	return nil
}

// mountList collects -mount /alias=dir values.
type mountList []domain.Mount

func (l *mountList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, 0, len(*l))
	for _, m := range *l {
		parts = append(parts, m.Alias+"="+m.LocalPath)
	}
	return strings.Join(parts, ",")
}

func (l *mountList) Set(value string) error {
	alias, dir, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(dir) == "" {
		return fmt.Errorf("mount %q: want /alias=dir", value)
	}
	*l = append(*l, domain.Mount{Alias: alias, LocalPath: dir})
	return nil
}

func printReport(w io.Writer, report domain.DiagnosticReport) {
	fmt.Fprintf(w, "preflight checks (%s)\n", report.GeneratedAt.Format(time.RFC3339))
	for _, item := range report.Items {
		fmt.Fprintf(w, "  %-4s  %-20s  %s\n", strings.ToUpper(string(item.Status)), item.Name, item.Message)
		if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
			fmt.Fprintf(w, "        %-20s  hint: %s\n", "", item.Hint)
		}
	}
}
