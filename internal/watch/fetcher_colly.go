package watch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// CollyFetcher implements the Fetcher interface using the Colly collector.
type CollyFetcher struct {
	collector *colly.Collector
	timeout   time.Duration
	maxBytes  int64
	logger    *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, logger *zap.Logger) (*CollyFetcher, error) {
	// The collector reads one byte past the cap; colly truncates at its
	// MaxBodySize silently, and the extra byte is what makes an oversize
	// body observable in OnResponse.
	bodyLimit := 0
	if cfg.MaxPageBytes > 0 {
		bodyLimit = int(cfg.MaxPageBytes) + 1
	}
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(bodyLimit),
		colly.IgnoreRobotsTxt(),
	)
	collector.AllowURLRevisit = true
	collector.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	collector.SetRequestTimeout(cfg.Timeout)

	return &CollyFetcher{
		collector: collector,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxPageBytes,
		logger:    logger,
	}, nil
}

// Fetch retrieves the target page. Any failure, including a non-2xx
// status, is returned as a *FetchError so the engine can recover it
// into a FETCH_ERROR result.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.collector.Clone()
	start := time.Now()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		if f.maxBytes > 0 && int64(len(r.Body)) > f.maxBytes {
			send(fetchResult{err: &FetchError{
				URL:   rawURL,
				Cause: CauseOversize,
				Err:   fmt.Errorf("body exceeds %d bytes", f.maxBytes),
			}})
			return
		}
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		page := Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, r.Body...),
			Duration:   time.Since(start),
		}
		send(fetchResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			send(fetchResult{err: &FetchError{
				URL:        rawURL,
				Cause:      CauseHTTPStatus,
				StatusCode: r.StatusCode,
				Err:        err,
			}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: classifyTransportError(rawURL, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		// OnError may already have recorded a classified failure; prefer it.
		select {
		case res := <-resultCh:
			if res.err != nil {
				return Page{}, res.err
			}
			return res.page, nil
		default:
			return Page{}, classifyTransportError(rawURL, err)
		}
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if res.err != nil {
			f.logger.Debug("Fetch failed", zap.String("url", rawURL), zap.Error(res.err))
		}
		return res.page, res.err
	default:
		return Page{}, classifyTransportError(rawURL, errors.New("colly fetch produced no result"))
	}
}

type fetchResult struct {
	page Page
	err  error
}

// classifyTransportError buckets a transport failure into a FetchError cause.
func classifyTransportError(rawURL string, err error) *FetchError {
	fe := &FetchError{URL: rawURL, Err: err, Cause: CauseConnection}
	var netErr net.Error
	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Cause = CauseTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		fe.Cause = CauseTimeout
	case errors.As(err, &certErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownAuthority),
		errors.As(err, &hostnameErr),
		errors.As(err, &certInvalid):
		fe.Cause = CauseTLS
	}
	return fe
}
