package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrRenderDisabled indicates JS rendering has been disabled via configuration.
var ErrRenderDisabled = errors.New("js rendering disabled")

// ChromedpFetcher fetches pages with JavaScript executed, using headless
// Chrome via chromedp. It satisfies the same Fetcher contract as the
// Colly fetcher and is selected with watch.render_js.
type ChromedpFetcher struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	timeout         time.Duration
	userAgent       string
}

// NewChromedpFetcher creates a headless fetcher using the provided configuration.
func NewChromedpFetcher(cfg Config, logger *zap.Logger) (*ChromedpFetcher, error) {
	if !cfg.RenderJS {
		return nil, ErrRenderDisabled
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpFetcher{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		timeout:         cfg.JSRenderTimeout,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts and
// waits for the browser process to exit, bounded by ctx.
func (f *ChromedpFetcher) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	c := chromedp.FromContext(f.browserCtx)
	f.browserCancel()
	f.allocatorCancel()
	if c == nil || c.Allocator == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		c.Allocator.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch navigates to the page with JavaScript enabled and returns the
// rendered DOM. Failures are reported as *FetchError like the fast path.
func (f *ChromedpFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if f == nil {
		return Page{}, ErrRenderDisabled
	}

	start := time.Now()
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	f.recordResponse(tabCtx, meta)

	html, err := f.runChromedp(taskCtx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Page{}, &FetchError{URL: rawURL, Cause: CauseTimeout, Err: err}
		}
		return Page{}, &FetchError{URL: rawURL, Cause: CauseConnection, Err: err}
	}

	page := Page{
		URL:        rawURL,
		FinalURL:   meta.finalURL(rawURL),
		StatusCode: meta.statusCode,
		Headers:    meta.headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}
	if page.StatusCode != 0 && (page.StatusCode < http.StatusOK || page.StatusCode >= http.StatusMultipleChoices) {
		return Page{}, &FetchError{URL: rawURL, Cause: CauseHTTPStatus, StatusCode: page.StatusCode}
	}
	return page, nil
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	headers    http.Header
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: make(http.Header),
	}
}

func (m *responseMeta) finalURL(raw string) string {
	if m.url == "" {
		return raw
	}
	return m.url
}

func (f *ChromedpFetcher) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
			for k, v := range resp.Response.Headers {
				meta.headers.Add(k, fmt.Sprint(v))
			}
		})
	})
}

func (f *ChromedpFetcher) runChromedp(ctx context.Context, rawURL string) (string, error) {
	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(f.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
