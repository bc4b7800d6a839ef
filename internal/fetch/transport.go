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
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrTransport is the sentinel wrapped by every TransportError.
	ErrTransport = errors.New("transport error")

	// ErrUnsupportedScheme indicates a mirror URL uses a scheme with no
	// registered transport.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// errPermanent marks transport failures that retrying cannot fix
	// (404, missing file, unknown bucket).
	errPermanent = errors.New("permanent failure")
)

type (
	// Transport opens a byte stream for a mirror URL.
	Transport interface {
		Open(ctx context.Context, u *url.URL) (io.ReadCloser, error)
	}

	// TransportError describes a failure to obtain bytes from one mirror.
	// It matches ErrTransport with errors.Is.
	TransportError struct {
		URL        string
		StatusCode int
		Permanent  bool
		Err        error
	}

	// HTTPTransport fetches http and https URLs.
	HTTPTransport struct {
		client    *http.Client
		userAgent string
	}

	// FileTransport reads file:// URLs, for offline mirrors on local or
	// network-mounted disks.
	FileTransport struct{}

	// S3Config holds the credentials for S3-compatible mirrors.
	S3Config struct {
		Endpoint  string
		Region    string
		AccessKey string
		SecretKey string
		UseSSL    bool
	}

	// S3Transport reads s3://bucket/key URLs through the minio client.
	S3Transport struct {
		cfg     S3Config
		once    sync.Once
		client  *minio.Client
		initErr error
	}
)

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.URL, e.Err)
	}
	return e.URL + ": transport error"
}

// Unwrap exposes ErrTransport, the cause, and errPermanent for permanent
// failures so that retry policies can classify the error with errors.Is.
func (e *TransportError) Unwrap() []error {
	errs := []error{ErrTransport}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Permanent {
		errs = append(errs, errPermanent)
	}
	return errs
}

// NewHTTPTransport creates an HTTPTransport. A nil client selects
// http.DefaultClient; per-attempt deadlines come from the request context.
func NewHTTPTransport(client *http.Client, userAgent string) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client, userAgent: userAgent}
}

// Open issues a GET and returns the response body on 200 OK.
func (t *HTTPTransport) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, &TransportError{URL: redactURL(u.String()), Permanent: true, Err: err}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: redactURL(u.String()), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &TransportError{
			URL:        redactURL(u.String()),
			StatusCode: resp.StatusCode,
			Permanent:  permanentStatus(resp.StatusCode),
		}
	}
	return resp.Body, nil
}

// permanentStatus reports whether a status code will not change on retry.
func permanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

// Open opens the local file named by u.
func (FileTransport) Open(_ context.Context, u *url.URL) (io.ReadCloser, error) {
	p := filepath.FromSlash(u.Path)
	// file:///C:/mirror/x.zip parses with a leading slash before the drive.
	if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '\\' && p[2] == ':' {
		p = p[1:]
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, &TransportError{
			URL:       u.String(),
			Permanent: errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission),
			Err:       err,
		}
	}
	return f, nil
}

// NewS3Transport creates an S3Transport. The client is built on first use.
func NewS3Transport(cfg S3Config) *S3Transport {
	return &S3Transport{cfg: cfg}
}

func (t *S3Transport) init() error {
	t.once.Do(func() {
		endpoint := strings.TrimSpace(t.cfg.Endpoint)
		if endpoint == "" {
			t.initErr = errors.New("s3 endpoint is not configured")
			return
		}
		region := strings.TrimSpace(t.cfg.Region)
		if region == "" {
			region = "us-east-1"
		}

		opts := &minio.Options{Secure: t.cfg.UseSSL, Region: region}
		if t.cfg.AccessKey != "" {
			opts.Creds = credentials.NewStaticV4(t.cfg.AccessKey, t.cfg.SecretKey, "")
		}
		client, err := minio.New(endpoint, opts)
		if err != nil {
			t.initErr = fmt.Errorf("init s3 client: %w", err)
			return
		}
		t.client = client
	})
	return t.initErr
}

// Open streams the object named by s3://bucket/key.
func (t *S3Transport) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	if err := t.init(); err != nil {
		return nil, &TransportError{URL: u.String(), Permanent: true, Err: err}
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, &TransportError{URL: u.String(), Permanent: true, Err: errors.New("s3 URL must be s3://bucket/key")}
	}

	obj, err := t.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &TransportError{URL: u.String(), Err: err}
	}

	// GetObject is lazy; Stat forces the request so missing keys surface here.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		code := minio.ToErrorResponse(err).Code
		return nil, &TransportError{
			URL:       u.String(),
			Permanent: code == "NoSuchKey" || code == "NoSuchBucket" || code == "AccessDenied",
			Err:       err,
		}
	}
	return obj, nil
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages, preventing accidental exposure of signed-URL tokens.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
