// Package diagnostics runs preflight checks for a measurement run.
package diagnostics

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/npillmayer/schuko/tracing"
	"github.com/samber/lo"
	"golang.org/x/image/font/sfnt"

	"font-metrics/internal/domain"
	"font-metrics/internal/fontsrc"
	"font-metrics/internal/render"
	"font-metrics/internal/server"
)

// tracer traces to tracing key 'fontmetrics.diagnostics'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.diagnostics")
}

// Checker validates the browser, the network and file system resources a
// run needs.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	listen     func(network, address string) (net.Listener, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	readFile   func(string) ([]byte, error)
	locate     func(domain.FontRequest, fontsrc.Kind) (string, error)
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		listen:     net.Listen,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		readFile:   os.ReadFile,
		locate:     fontsrc.NewResolver().Locate,
	}
}

// Run executes all checks for cfg and returns a combined report.
func (c *Checker) Run(cfg domain.RunConfig) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkBrowser(cfg.Engine.ExecPath),
		c.checkPort(cfg.ServerPort),
		c.checkOutputDir(cfg.OutputPath),
		c.checkPage(cfg.PageDir),
	}
	items = append(items, c.checkMounts(cfg.AdditionalMounts)...)
	items = append(items, c.checkFonts(cfg.Fonts, cfg.AdditionalMounts)...)

	failed := lo.Filter(items, func(item domain.DiagnosticItem, _ int) bool {
		return item.Status == domain.DiagnosticStatusFail
	})
	for _, item := range failed {
		tracer().Errorf("%s: %s", item.Name, item.Message)
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: len(failed) > 0,
		Items:       items,
	}
}

// checkBrowser verifies a Chrome executable is configured or on PATH.
func (c *Checker) checkBrowser(execPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "browser",
		Name: "Browser",
	}

	if execPath = strings.TrimSpace(execPath); execPath != "" {
		info, err := c.stat(execPath)
		if err != nil || info.IsDir() {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Configured browser executable not found: %s", execPath)
			item.Hint = "Fix engine.execPath or remove it to search PATH."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Using %s", execPath)
		return item
	}

	if found, ok := render.LocateBrowser(c.lookPath); ok {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Found at %s", found)
		return item
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = "No Chrome or Chromium executable found in PATH."
	item.Hint = "Install Chrome or Chromium, or set engine.execPath."
	return item
}

// checkPort verifies the content server port can be bound.
func (c *Checker) checkPort(port int) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "server_port",
		Name: "Server port",
	}

	ln, err := c.listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Port %d is not available: %v", port, err)
		item.Hint = "Stop the process holding the port or choose another serverPort."
		return item
	}
	_ = ln.Close()

	item.Status = domain.DiagnosticStatusPass
	if port == 0 {
		item.Message = "An ephemeral port will be used."
	} else {
		item.Message = fmt.Sprintf("Port %d is free", port)
	}
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set outputPath to a directory where the metrics file can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for the metrics file."
		return item
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// checkPage verifies a custom measurement page has the drawing surface.
func (c *Checker) checkPage(pageDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "page",
		Name: "Measurement page",
	}

	if strings.TrimSpace(pageDir) == "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Using the built-in measurement page."
		return item
	}

	page, err := server.PageFS(pageDir)
	if err == nil {
		err = server.CheckPage(page)
	}
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = fmt.Sprintf("The page directory needs an index.html with <canvas id=%q>.", server.SurfaceID)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Custom page is valid: %s", pageDir)
	return item
}

// checkMounts verifies every mount points at a readable directory.
func (c *Checker) checkMounts(mounts []domain.Mount) []domain.DiagnosticItem {
	return lo.Map(mounts, func(mount domain.Mount, _ int) domain.DiagnosticItem {
		prefix := server.MountPrefix(mount.Alias)
		item := domain.DiagnosticItem{
			ID:   "mount_" + strings.Trim(prefix, "/"),
			Name: "Mount " + prefix,
		}

		info, err := c.stat(mount.LocalPath)
		if err != nil || !info.IsDir() {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Mount directory not found: %s", mount.LocalPath)
			item.Hint = "Point localPath at an existing directory."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Serving %s at %s", mount.LocalPath, prefix)
		return item
	})
}

// checkFonts verifies file-backed font sources exist and name the
// requested family. Remote sources and installed families are not checked.
func (c *Checker) checkFonts(fonts []domain.FontRequest, mounts []domain.Mount) []domain.DiagnosticItem {
	var items []domain.DiagnosticItem
	for i, font := range fonts {
		kind := fontsrc.Classify(font, mounts)
		if kind == fontsrc.KindNone || kind == fontsrc.KindRemote {
			continue
		}

		item := domain.DiagnosticItem{
			ID:   fmt.Sprintf("font_%d", i),
			Name: fmt.Sprintf("Font %q", font.FontFamily),
		}

		var file string
		var err error
		if kind == fontsrc.KindMounted {
			file, err = c.mountedFile(font.SourceValue(), mounts)
		} else {
			file, err = c.locate(font, kind)
		}
		if err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Font source not found: %v", err)
			item.Hint = "Fix the source path; a missing font fails the whole run."
			items = append(items, item)
			continue
		}

		items = append(items, c.checkFamily(item, font.FontFamily, file))
	}
	return items
}

// mountedFile maps a mounted URL path to the file it is served from.
func (c *Checker) mountedFile(source string, mounts []domain.Mount) (string, error) {
	source = strings.TrimSpace(source)
	for _, mount := range mounts {
		prefix := server.MountPrefix(mount.Alias)
		if prefix == "/" || !strings.HasPrefix(source, prefix) {
			continue
		}
		rel := strings.TrimPrefix(path.Clean(source), strings.TrimSuffix(prefix, "/"))
		file := filepath.Join(mount.LocalPath, filepath.FromSlash(rel))
		info, err := c.stat(file)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", file)
		}
		return file, nil
	}
	return "", fmt.Errorf("no mount serves %s", source)
}

// checkFamily compares the family name stored in an OpenType or TrueType
// file with the requested one. Web font containers are only checked for
// readability.
func (c *Checker) checkFamily(item domain.DiagnosticItem, family, file string) domain.DiagnosticItem {
	data, err := c.readFile(file)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read font file: %s", file)
		item.Hint = "Check permissions for the font file."
		return item
	}

	names, err := familyNames(data)
	if errors.Is(err, errNotSFNT) {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Font file found: %s", file)
		return item
	}
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot parse font file %s: %v", file, err)
		item.Hint = "The file is not a usable font."
		return item
	}

	wanted := strings.Trim(strings.TrimSpace(family), `"'`)
	if lo.ContainsBy(names, func(name string) bool { return strings.EqualFold(name, wanted) }) {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Font file %s provides family %q", file, names[0])
		return item
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("Font file %s names its family %q, requested %q", file, strings.Join(names, ", "), family)
	item.Hint = "The face is loaded under the requested name anyway; rename fontFamily if the file is not the intended font."
	return item
}

var errNotSFNT = errors.New("not an sfnt font")

// familyNames returns the family names of every font in data.
func familyNames(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, errNotSFNT
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "OTTO", "true":
		f, err := sfnt.Parse(data)
		if err != nil {
			return nil, err
		}
		name, err := f.Name(nil, sfnt.NameIDFamily)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	case "ttcf":
		collection, err := sfnt.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, collection.NumFonts())
		for i := 0; i < collection.NumFonts(); i++ {
			f, err := collection.Font(i)
			if err != nil {
				return nil, err
			}
			name, err := f.Name(nil, sfnt.NameIDFamily)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		return lo.Uniq(names), nil
	default:
		return nil, errNotSFNT
	}
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	listen func(network, address string) (net.Listener, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		listen:     listen,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		readFile:   os.ReadFile,
		locate:     fontsrc.NewResolver().Locate,
	}
}
