package browser

import (
	"context"
	"fmt"
	"sync"
)

// Page is an in-memory document served by [Fake].
type Page struct {
	elements map[string]map[string]string // selector -> attributes
	reveal   map[string][]string          // clicked selector -> selectors that appear
}

// Element adds an element matched by selector with optional attribute pairs (name, value, ...).
func (p *Page) Element(selector string, attrs ...string) *Page {
	a := make(map[string]string, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		a[attrs[i]] = attrs[i+1]
	}
	p.elements[selector] = a
	return p
}

// RevealOnClick makes selector appear once clicked is clicked.
func (p *Page) RevealOnClick(clicked, selector string) *Page {
	p.reveal[clicked] = append(p.reveal[clicked], selector)
	return p
}

// Fake is a scripted [Browser] for tests.
type Fake struct {
	mu      sync.Mutex
	pages   map[string]*Page
	current *Page
	url     string
	values  map[string]string
	clicks  []string
	closed  bool
}

// NewFake creates a browser with no pages.
func NewFake() *Fake {
	return &Fake{pages: map[string]*Page{}, values: map[string]string{}}
}

// AddPage registers a page served at url.
func (f *Fake) AddPage(url string) *Page {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &Page{elements: map[string]map[string]string{}, reveal: map[string][]string{}}
	f.pages[url] = p
	return p
}

// Launcher returns a [LaunchFunc] that always yields f.
func (f *Fake) Launcher() LaunchFunc {
	return func(context.Context) (Browser, error) {
		f.mu.Lock()
		f.closed = false
		f.mu.Unlock()
		return f, nil
	}
}

// Value returns what was filled or set into selector.
func (f *Fake) Value(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[selector]
}

// Clicks returns clicked selectors in order.
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

// URL returns the current page URL.
func (f *Fake) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// Closed reports whether Close was called since the last launch.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pages[url]
	if !ok {
		return fmt.Errorf("navigate %s: page not found", url)
	}
	f.current, f.url = p, url
	return nil
}

func (f *Fake) element(selector string) (map[string]string, error) {
	if f.current == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	el, ok := f.current.elements[selector]
	if !ok {
		return nil, fmt.Errorf("element %s not found", selector)
	}
	return el, nil
}

func (f *Fake) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.element(selector)
	return err == nil, nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	return f.SetValue(ctx, selector, value)
}

func (f *Fake) SetValue(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.element(selector); err != nil {
		return err
	}
	f.values[selector] = value
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.element(selector); err != nil {
		return err
	}
	f.clicks = append(f.clicks, selector)
	for _, s := range f.current.reveal[selector] {
		f.current.elements[s] = map[string]string{}
	}
	return nil
}

func (f *Fake) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return "", false, nil
	}
	v, ok := el[name]
	return v, ok, nil
}

// WaitVisible returns at once when selector is present, otherwise blocks until ctx ends.
func (f *Fake) WaitVisible(ctx context.Context, selector string) error {
	if ok, err := f.Exists(ctx, selector); err != nil || ok {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
