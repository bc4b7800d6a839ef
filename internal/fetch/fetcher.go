// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"sdrprov/internal/archive"
	"sdrprov/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"
)

const (
	// Failure reasons recorded per mirror.
	ReasonTransport = "transport error"
	ReasonChecksum  = "checksum mismatch"
	ReasonCorrupt   = "corrupt archive"
	// ReasonVerify means the download could not be hashed locally.
	ReasonVerify = "checksum unverifiable"

	defaultAttemptTimeout = 5 * time.Minute
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 2 * time.Second
)

// ErrAllMirrorsFailed is the sentinel wrapped by FetchError.
var ErrAllMirrorsFailed = errors.New("all mirrors failed")

type (
	// Request names an artifact and the mirrors it may be fetched from.
	Request struct {
		Name string
		// URLs are tried in order; earlier entries are preferred.
		URLs []string
		// Checksums maps an exact URL to its expected SHA256. URLs without
		// an entry are accepted after the structural check alone.
		Checksums map[string]string
		// Remediation lists manual steps shown when every mirror fails.
		Remediation []string
	}

	// Failure records why one mirror was rejected.
	Failure struct {
		URL    string
		Reason string
		Err    error
	}

	// FetchError aggregates every per-mirror failure for one artifact.
	// It wraps ErrAllMirrorsFailed for errors.Is classification.
	FetchError struct {
		Name     string
		Failures []Failure
	}

	// Fetcher downloads artifacts from ordered mirror lists.
	Fetcher struct {
		transports     map[string]Transport
		tempDir        string
		attemptTimeout time.Duration
		maxAttempts    int
		retryDelay     time.Duration
		validate       func(path string) error
		verify         func(path, source, expected string) error
		logger         *log.Logger
	}

	// Option configures a Fetcher during construction.
	Option func(*Fetcher)
)

// Error lists every rejected mirror with its reason.
func (e *FetchError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no mirrors configured for %s", e.Name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "all %d mirror(s) failed for %s", len(e.Failures), e.Name)
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "; %s: %s", f.URL, f.Reason)
		if f.Err != nil {
			fmt.Fprintf(&sb, " (%v)", f.Err)
		}
	}
	return sb.String()
}

// Unwrap returns ErrAllMirrorsFailed so callers can use errors.Is.
func (e *FetchError) Unwrap() error { return ErrAllMirrorsFailed }

// WithTransport registers t for URLs with the given scheme, replacing any
// existing transport.
func WithTransport(scheme string, t Transport) Option {
	return func(f *Fetcher) {
		f.transports[strings.ToLower(scheme)] = t
	}
}

// WithHTTPClient replaces the client used for http and https mirrors.
func WithHTTPClient(c *http.Client, userAgent string) Option {
	return func(f *Fetcher) {
		t := NewHTTPTransport(c, userAgent)
		f.transports["http"] = t
		f.transports["https"] = t
	}
}

// WithS3 enables s3:// mirrors using cfg.
func WithS3(cfg S3Config) Option {
	return WithTransport("s3", NewS3Transport(cfg))
}

// WithTempDir sets where candidate downloads are written.
func WithTempDir(dir string) Option {
	return func(f *Fetcher) {
		f.tempDir = dir
	}
}

// WithAttemptTimeout bounds each individual download attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.attemptTimeout = d
		}
	}
}

// WithRetry sets the per-mirror attempt budget and the initial backoff.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(f *Fetcher) {
		if maxAttempts > 0 {
			f.maxAttempts = maxAttempts
		}
		if delay > 0 {
			f.retryDelay = delay
		}
	}
}

// WithValidator replaces the structural archive check.
func WithValidator(fn func(path string) error) Option {
	return func(f *Fetcher) {
		f.validate = fn
	}
}

// WithLogger sets the logger used for per-mirror progress.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher with http, https, and file transports registered.
func New(opts ...Option) *Fetcher {
	web := NewHTTPTransport(nil, "sdrprov")
	f := &Fetcher{
		transports: map[string]Transport{
			"http":  web,
			"https": web,
			"file":  FileTransport{},
		},
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		retryDelay:     defaultRetryDelay,
		validate:       archive.Validate,
		verify:         VerifyFile,
		logger:         log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the path of the first candidate that downloads, matches its
// pinned checksum (if any), and validates as an archive. The caller owns the
// returned file and must remove it. When every mirror fails, the returned
// error is an *issue.ActionableError wrapping a *FetchError and carrying
// req.Remediation as suggestions. Cancellation of ctx stops the loop.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	fe := &FetchError{Name: req.Name}

	for _, raw := range req.URLs {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		safe := redactURL(raw)
		f.logger.Info("downloading", "tool", req.Name, "url", safe)

		tmp, err := f.downloadWithRetry(ctx, req.Name, raw)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			f.reject(fe, req.Name, safe, ReasonTransport, err)
			continue
		}

		if expected, ok := req.Checksums[raw]; ok {
			if err := f.verify(tmp, safe, expected); err != nil {
				_ = os.Remove(tmp)
				reason := ReasonVerify
				if errors.Is(err, ErrChecksumMismatch) {
					reason = ReasonChecksum
				}
				f.reject(fe, req.Name, safe, reason, err)
				continue
			}
		} else {
			f.logger.Debug("no checksum pinned for mirror", "tool", req.Name, "url", safe)
		}

		if err := f.validate(tmp); err != nil {
			_ = os.Remove(tmp)
			f.reject(fe, req.Name, safe, ReasonCorrupt, err)
			continue
		}

		f.logger.Info("download verified", "tool", req.Name, "url", safe)
		return tmp, nil
	}

	return "", issue.NewErrorContext().
		WithOperation("fetch " + req.Name).
		WithSuggestions(req.Remediation...).
		WithIssue(issue.ToolDownloadFailedId).
		Wrap(fe).
		BuildError()
}

func (f *Fetcher) reject(fe *FetchError, name, u, reason string, err error) {
	f.logger.Warn("mirror rejected", "tool", name, "url", u, "reason", reason, "err", err)
	fe.Failures = append(fe.Failures, Failure{URL: u, Reason: reason, Err: err})
}

// downloadWithRetry runs download under the per-mirror retry budget. Only
// transient transport failures are retried.
func (f *Fetcher) downloadWithRetry(ctx context.Context, name, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &TransportError{URL: redactURL(raw), Permanent: true, Err: err}
	}
	t, ok := f.transports[strings.ToLower(u.Scheme)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	r := retry.New[string](retry.Config{
		MaxAttempts:        f.maxAttempts,
		InitialDelay:       f.retryDelay,
		BackoffPolicy:      retry.BackoffExponential,
		Multiplier:         2.0,
		NonRetryableErrors: []error{errPermanent, context.Canceled},
	})
	return r.Do(ctx, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()
		return f.download(attemptCtx, t, name, u)
	})
}

// download streams one mirror into a fresh temp file. The temp file is
// removed on any failure.
func (f *Fetcher) download(ctx context.Context, t Transport, name string, u *url.URL) (_ string, err error) {
	body, err := t.Open(ctx, u)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only stream

	tmp, err := os.CreateTemp(f.tempDir, "sdrprov-"+sanitize(name)+"-*"+path.Ext(u.Path))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return "", &TransportError{URL: redactURL(u.String()), Err: fmt.Errorf("writing to temp file: %w", err)}
	}
	return tmp.Name(), nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
