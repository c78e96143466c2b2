package wms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "wms-probe/1.0"
	DefaultMaxBodyBytes = 10 << 20
)

// FetchKind classifies the transport-level result of a capabilities request.
type FetchKind int

const (
	FetchSuccess FetchKind = iota
	FetchHTTPError
	FetchConnectionError
	FetchTimeout
	FetchTransportError
)

func (k FetchKind) String() string {
	switch k {
	case FetchSuccess:
		return "success"
	case FetchHTTPError:
		return "http_error"
	case FetchConnectionError:
		return "connection_error"
	case FetchTimeout:
		return "timeout"
	case FetchTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("FetchKind(%d)", int(k))
	}
}

// FetchOutcome is the result of a single GET. Body is set for FetchSuccess
// and FetchHTTPError, Status for FetchHTTPError and FetchSuccess, Err for the
// failure kinds.
type FetchOutcome struct {
	Kind   FetchKind
	Status int
	Body   []byte
	Err    error
}

// Fetcher performs one capabilities GET. Implementations never retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchOutcome
}

type FetcherOptions struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client  *http.Client
	options FetcherOptions
	logger  *zap.Logger
}

// NewHTTPFetcher creates a Fetcher backed by the given http.Client. Zero
// options fall back to the package defaults.
func NewHTTPFetcher(client *http.Client, options FetcherOptions, logger *zap.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.UserAgent == "" {
		options.UserAgent = DefaultUserAgent
	}
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPFetcher{
		client:  client,
		options: options,
		logger:  logger.With(zap.String("component", "fetcher")),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) FetchOutcome {
	start := time.Now()
	outcome := f.fetch(ctx, url)

	f.logger.Debug("capabilities fetch",
		zap.String("url", url),
		zap.Stringer("outcome", outcome.Kind),
		zap.Int("status", outcome.Status),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Error(outcome.Err),
	)

	return outcome
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) FetchOutcome {
	ctx, cancel := context.WithTimeout(ctx, f.options.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return FetchOutcome{Kind: FetchTransportError, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", f.options.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchOutcome{Kind: classifyError(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.options.MaxBodyBytes))
	if err != nil {
		return FetchOutcome{Kind: classifyError(err), Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return FetchOutcome{
			Kind:   FetchHTTPError,
			Status: resp.StatusCode,
			Body:   body,
			Err:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return FetchOutcome{Kind: FetchSuccess, Status: resp.StatusCode, Body: body}
}

// classifyError separates timeouts from every other failure. Only a timeout
// leaves the verdict open, so anything unrecognised is a transport error.
func classifyError(err error) FetchKind {
	// Caller cancellation says nothing about the server either.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FetchTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchTimeout
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return FetchConnectionError
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return FetchConnectionError
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return FetchConnectionError
	}

	return FetchTransportError
}
