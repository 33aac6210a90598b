package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"font-metrics/internal/domain"
)

var (
	// ErrNotOpen is returned when a Chrome engine is used before Open.
	ErrNotOpen = errors.New("chrome engine is not open")
	// ErrNoBrowser is returned by Open when no executable is configured and
	// none of ChromeCandidates is on PATH.
	ErrNoBrowser = errors.New("no Chrome or Chromium executable found in PATH")
)

// ChromeCandidates are the executable names searched on PATH when no
// explicit executable is configured.
var ChromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// LocateBrowser returns the first of ChromeCandidates found by lookPath.
func LocateBrowser(lookPath func(file string) (string, error)) (string, bool) {
	for _, name := range ChromeCandidates {
		if found, err := lookPath(name); err == nil {
			return found, true
		}
	}
	return "", false
}

// Chrome drives a Chrome or Chromium process over the DevTools protocol.
type Chrome struct {
	mu          sync.Mutex
	browser     context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	lookPath    func(file string) (string, error)
}

// NewChrome constructs an unopened Chrome engine.
func NewChrome() *Chrome {
	return &Chrome{lookPath: exec.LookPath}
}

// Open launches the browser with opts. The browser outlives ctx; Close ends it.
func (c *Chrome) Open(ctx context.Context, opts domain.EngineOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		return nil
	}

	execPath := opts.ExecPath
	if execPath == "" {
		found, ok := LocateBrowser(c.lookPath)
		if !ok {
			return ErrNoBrowser
		}
		execPath = found
	}

	allocOpts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", !opts.Show), chromedp.ExecPath(execPath))
	for name, value := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browser, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and ties it to the context it is
	// given, so it runs on browser and ctx is only watched.
	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(browser) }()

	var err error
	select {
	case err = <-launched:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancelTab()
		cancelAlloc()
		return fmt.Errorf("launch chrome: %w", err)
	}

	c.browser = browser
	c.cancelAlloc = cancelAlloc
	c.cancelTab = cancelTab
	tracer().Infof("chrome session started from %s (headless=%v)", execPath, !opts.Show)
	return nil
}

// Navigate loads url in the session tab and waits for the document body.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	browser, err := c.session()
	if err != nil {
		return err
	}

	runCtx, stop := bound(browser, ctx)
	defer stop()
	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Call evaluates "(script)(args)" in the page and awaits the promise.
func (c *Chrome) Call(ctx context.Context, script string, args any) (json.RawMessage, error) {
	browser, err := c.session()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode script arguments: %w", err)
	}
	expression := fmt.Sprintf("(%s)(%s)", script, payload)

	runCtx, stop := bound(browser, ctx)
	defer stop()

	var raw []byte
	err = chromedp.Run(runCtx, chromedp.Evaluate(expression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// Close ends the tab and the browser process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil {
		return nil
	}
	c.cancelTab()
	c.cancelAlloc()
	c.browser = nil
	tracer().Infof("chrome session closed")
	return nil
}

func (c *Chrome) session() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil {
		return nil, ErrNotOpen
	}
	return c.browser, nil
}

// bound derives a context from the chromedp browser context that also ends
// when the caller's ctx ends, so actions honor the caller's deadline without
// cancelling the browser itself.
func bound(browser, ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(browser)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		cancel = chain(cancelDeadline, cancel)
	}
	stopAfter := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stopAfter()
		cancel()
	}
}

func chain(fns ...context.CancelFunc) context.CancelFunc {
	return func() {
		for _, fn := range fns {
			fn()
		}
	}
}
