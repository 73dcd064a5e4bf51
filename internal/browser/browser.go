package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Browser is one page a registration flow operates on. Selectors are CSS query selectors.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	// SetValue assigns value directly, for hidden elements such as the reCAPTCHA response textarea.
	SetValue(ctx context.Context, selector, value string) error
	WaitVisible(ctx context.Context, selector string) error
	Close() error
}

// LaunchFunc starts a browser session.
type LaunchFunc func(ctx context.Context) (Browser, error)

// Options configures the Chromium process.
type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	ProxyURL  string
}

// Chrome is a [Browser] backed by a single chromedp tab.
type Chrome struct {
	mu          sync.Mutex
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closed      bool
}

// Launcher returns a [LaunchFunc] that starts Chromium with opts.
func Launcher(opts Options, logger *log.Logger) LaunchFunc {
	return func(ctx context.Context) (Browser, error) {
		return NewChrome(ctx, opts, logger)
	}
}

// NewChrome starts Chromium and opens a tab. ctx bounds the start-up only; the session lives
// until [Chrome.Close].
func NewChrome(ctx context.Context, opts Options, logger *log.Logger) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	var ctxOpts []chromedp.ContextOption
	if logger != nil {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(logger.Debugf), chromedp.WithErrorf(logger.Errorf))
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, ctxOpts...)

	c := &Chrome{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}

	// The first Run starts the browser process.
	if err := c.run(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return c, nil
}

// run executes actions on the tab, bounded by ctx's cancellation and deadline.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("browser session closed")
	}

	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

// Exists reports whether selector matches at least one node right now, without waiting.
func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (c *Chrome) Fill(ctx context.Context, selector, value string) error {
	return c.run(ctx,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (c *Chrome) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	found, err := c.Exists(ctx, selector)
	if err != nil || !found {
		return "", false, err
	}

	var (
		value string
		ok    bool
	)
	if err := c.run(ctx, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (c *Chrome) SetValue(ctx context.Context, selector, value string) error {
	sel, _ := json.Marshal(selector)
	val, _ := json.Marshal(value)
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%s);
		if (!el) { return false; }
		el.value = %s;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, sel, val)

	var ok bool
	if err := c.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s not found", selector)
	}
	return nil
}

// WaitVisible blocks until selector is visible or ctx ends.
func (c *Chrome) WaitVisible(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Close shuts the tab and the browser process. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.cancelTab()
	c.cancelAlloc()
	return nil
}
