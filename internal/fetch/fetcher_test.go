// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sdrprov/internal/issue"
	"sdrprov/internal/testutil"
)

func validZip(t *testing.T) []byte {
	t.Helper()
	return testutil.ZipBytes(t,
		testutil.ArchiveFile{Name: "rtl-sdr/"},
		testutil.ArchiveFile{Name: "rtl-sdr/rtl_fm.exe", Body: "fm"},
	)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// newMirrorServer serves /good and /mismatch with a valid archive, /broken
// with a 500, /missing with a 404, /html with an error page, and counts hits
// on /never.
func newMirrorServer(t *testing.T, body []byte, neverHits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/good.zip", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(body) })
	mux.HandleFunc("/mismatch.zip", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(body) })
	mux.HandleFunc("/broken.zip", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	mux.HandleFunc("/missing.zip", http.NotFound)
	mux.HandleFunc("/html.zip", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>login required</html>"))
	})
	mux.HandleFunc("/never.zip", func(w http.ResponseWriter, _ *http.Request) {
		neverHits.Add(1)
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(t *testing.T, dir string) *Fetcher {
	t.Helper()
	return New(WithTempDir(dir), WithRetry(2, time.Millisecond), WithAttemptTimeout(5*time.Second))
}

func assertOnlyFile(t *testing.T, dir, want string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if want == "" {
		if len(names) != 0 {
			t.Errorf("temp dir should be empty, found %v", names)
		}
		return
	}
	if len(names) != 1 || names[0] != filepath.Base(want) {
		t.Errorf("temp dir = %v, want only %s", names, filepath.Base(want))
	}
}

func TestFetch_MirrorFallback(t *testing.T) {
	t.Parallel()

	body := validZip(t)
	var neverHits atomic.Int32
	srv := newMirrorServer(t, body, &neverHits)
	dir := t.TempDir()

	req := Request{
		Name: "rtl-sdr",
		URLs: []string{
			srv.URL + "/broken.zip",
			srv.URL + "/mismatch.zip",
			srv.URL + "/good.zip",
			srv.URL + "/never.zip",
		},
		Checksums: map[string]string{
			srv.URL + "/mismatch.zip": strings.Repeat("0", 64),
		},
	}

	got, err := newTestFetcher(t, dir).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("failed to read result: %v", err)
	}
	if sha256Hex(data) != sha256Hex(body) {
		t.Error("returned file does not match the good mirror")
	}
	if n := neverHits.Load(); n != 0 {
		t.Errorf("mirror after the accepted one was hit %d time(s)", n)
	}
	assertOnlyFile(t, dir, got)
}

func TestFetch_ChecksumEnforcedOnValidArchive(t *testing.T) {
	t.Parallel()

	body := validZip(t)
	var neverHits atomic.Int32
	srv := newMirrorServer(t, body, &neverHits)
	dir := t.TempDir()

	u := srv.URL + "/good.zip"
	_, err := newTestFetcher(t, dir).Fetch(context.Background(), Request{
		Name:      "rtl-sdr",
		URLs:      []string{u},
		Checksums: map[string]string{u: strings.Repeat("a", 64)},
	})
	if err == nil {
		t.Fatal("expected checksum failure for a structurally valid archive")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if len(fe.Failures) != 1 || fe.Failures[0].Reason != ReasonChecksum {
		t.Errorf("failures = %+v, want one checksum mismatch", fe.Failures)
	}
	if !errors.Is(fe.Failures[0].Err, ErrChecksumMismatch) {
		t.Errorf("failure err = %v, want ErrChecksumMismatch", fe.Failures[0].Err)
	}
	assertOnlyFile(t, dir, "")
}

func TestFetch_HashReadErrorIsNotMismatch(t *testing.T) {
	t.Parallel()

	body := validZip(t)
	var neverHits atomic.Int32
	srv := newMirrorServer(t, body, &neverHits)
	dir := t.TempDir()

	f := newTestFetcher(t, dir)
	f.verify = func(path, _, _ string) error {
		return fmt.Errorf("hashing file %s: %w", path, io.ErrUnexpectedEOF)
	}

	u := srv.URL + "/good.zip"
	_, err := f.Fetch(context.Background(), Request{
		Name:      "rtl-sdr",
		URLs:      []string{u},
		Checksums: map[string]string{u: sha256Hex(body)},
	})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if len(fe.Failures) != 1 || fe.Failures[0].Reason != ReasonVerify {
		t.Errorf("failures = %+v, want one unverifiable download", fe.Failures)
	}
	if errors.Is(fe.Failures[0].Err, ErrChecksumMismatch) {
		t.Error("a read error must not be reported as a mismatch")
	}
	assertOnlyFile(t, dir, "")
}

func TestFetch_ChecksumMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	body := validZip(t)
	var neverHits atomic.Int32
	srv := newMirrorServer(t, body, &neverHits)

	u := srv.URL + "/good.zip"
	got, err := newTestFetcher(t, t.TempDir()).Fetch(context.Background(), Request{
		Name:      "rtl-sdr",
		URLs:      []string{u},
		Checksums: map[string]string{u: strings.ToUpper(sha256Hex(body))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" {
		t.Error("expected a file path")
	}
}

func TestFetch_AllMirrorsFailAggregatesReasons(t *testing.T) {
	t.Parallel()

	body := validZip(t)
	var neverHits atomic.Int32
	srv := newMirrorServer(t, body, &neverHits)
	dir := t.TempDir()

	req := Request{
		Name:        "rtl-sdr",
		URLs:        []string{srv.URL + "/missing.zip", srv.URL + "/html.zip"},
		Remediation: []string{"Download the release zip manually", "Unpack it into the tools directory"},
	}
	_, err := newTestFetcher(t, dir).Fetch(context.Background(), req)
	if !errors.Is(err, ErrAllMirrorsFailed) {
		t.Fatalf("expected ErrAllMirrorsFailed, got %v", err)
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	reasons := []string{fe.Failures[0].Reason, fe.Failures[1].Reason}
	if reasons[0] != ReasonTransport || reasons[1] != ReasonCorrupt {
		t.Errorf("reasons = %v, want [%s %s]", reasons, ReasonTransport, ReasonCorrupt)
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *issue.ActionableError, got %T", err)
	}
	if len(ae.Suggestions) != 2 || ae.Suggestions[0] != req.Remediation[0] {
		t.Errorf("suggestions = %v, want remediation steps", ae.Suggestions)
	}
	assertOnlyFile(t, dir, "")
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	f := New(WithTempDir(t.TempDir()), WithRetry(3, time.Millisecond))
	_, err := f.Fetch(context.Background(), Request{Name: "x", URLs: []string{srv.URL + "/x.zip"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("got %d requests, want 1", n)
	}
}

func TestFetch_TransientErrorIsRetried(t *testing.T) {
	t.Parallel()

	body := validZip(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	f := New(WithTempDir(t.TempDir()), WithRetry(3, time.Millisecond))
	if _, err := f.Fetch(context.Background(), Request{Name: "x", URLs: []string{srv.URL + "/x.zip"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("got %d requests, want 2", n)
	}
}

func TestFetch_FileScheme(t *testing.T) {
	t.Parallel()

	src := testutil.WriteZip(t, filepath.Join(t.TempDir(), "mirror", "rtl-sdr.zip"),
		testutil.ArchiveFile{Name: "rtl_fm.exe", Body: "fm"})
	u := "file://" + filepath.ToSlash(src)
	if !strings.HasPrefix(filepath.ToSlash(src), "/") {
		u = "file:///" + filepath.ToSlash(src)
	}

	got, err := New(WithTempDir(t.TempDir())).Fetch(context.Background(), Request{Name: "rtl-sdr", URLs: []string{u}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == src {
		t.Error("fetch must copy into a temp file, not return the mirror path")
	}
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	_, err := New(WithTempDir(t.TempDir())).Fetch(context.Background(), Request{
		Name: "x",
		URLs: []string{"ftp://mirror.example/x.zip"},
	})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !errors.Is(fe.Failures[0].Err, ErrUnsupportedScheme) {
		t.Errorf("failure = %v, want ErrUnsupportedScheme", fe.Failures[0].Err)
	}
}

func TestFetch_NoMirrors(t *testing.T) {
	t.Parallel()

	_, err := New().Fetch(context.Background(), Request{Name: "x"})
	if !errors.Is(err, ErrAllMirrorsFailed) {
		t.Fatalf("expected ErrAllMirrorsFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "no mirrors configured") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestFetch_CanceledContextStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Fetch(ctx, Request{Name: "x", URLs: []string{"https://example.invalid/x.zip"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestS3Transport_UnconfiguredIsPermanent(t *testing.T) {
	t.Parallel()

	f := New(WithS3(S3Config{}), WithTempDir(t.TempDir()), WithRetry(3, time.Millisecond))
	_, err := f.Fetch(context.Background(), Request{Name: "x", URLs: []string{"s3://mirror/rtl-sdr.zip"}})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	var te *TransportError
	if !errors.As(fe.Failures[0].Err, &te) || !te.Permanent {
		t.Errorf("expected permanent TransportError, got %v", fe.Failures[0].Err)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := redactURL("https://user:pw@mirror.example/x.zip?X-Amz-Signature=abc#frag")
	if got != "https://mirror.example/x.zip" {
		t.Errorf("redactURL = %q", got)
	}
}
