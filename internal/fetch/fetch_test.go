package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/any-hub/stow/internal/config"
)

func TestRegistryDispatchesByScheme(t *testing.T) {
	r := NewRegistry(nil)
	var got string
	r.MustRegister("MEM", FetcherFunc(func(_ context.Context, src Source, dst io.Writer) error {
		got = src.URL
		_, err := io.WriteString(dst, "payload")
		return err
	}))

	var buf bytes.Buffer
	if err := r.Fetch(context.Background(), Source{URL: "mem://thing"}, &buf); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if got != "mem://thing" || buf.String() != "payload" {
		t.Fatalf("unexpected dispatch: url=%s body=%s", got, buf.String())
	}
	if schemes := r.Schemes(); len(schemes) != 1 || schemes[0] != "mem" {
		t.Fatalf("unexpected schemes: %v", schemes)
	}
}

func TestRegistryDuplicateAndUnsupported(t *testing.T) {
	r := NewRegistry(nil)
	noop := FetcherFunc(func(context.Context, Source, io.Writer) error { return nil })
	if err := r.Register("x", noop); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register("X", noop); !errors.Is(err, ErrDuplicateScheme) {
		t.Fatalf("expected ErrDuplicateScheme, got %v", err)
	}
	if err := r.Register(" ", noop); err == nil {
		t.Fatalf("expected error for empty scheme")
	}

	err := r.Fetch(context.Background(), Source{URL: "ftp://example.org/a"}, io.Discard)
	if !errors.Is(err, ErrTransfer) || !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected unsupported scheme transfer error, got %v", err)
	}
}

func TestRegistryWrapsPlainErrors(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("boom")
	r.MustRegister("bad", FetcherFunc(func(context.Context, Source, io.Writer) error { return boom }))

	err := r.Fetch(context.Background(), Source{URL: "bad://x"}, io.Discard)
	var te *TransferError
	if !errors.As(err, &te) || te.URL != "bad://x" {
		t.Fatalf("expected *TransferError, got %v", err)
	}
	if !errors.Is(err, boom) || !errors.Is(err, ErrTransfer) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestHTTPFetcherStreamsBody(t *testing.T) {
	var gotUA, gotToken, gotConnection string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotToken = r.Header.Get("Authorization")
		gotConnection = r.Header.Get("Keep-Alive")
		fmt.Fprint(w, "a\tb\n1\t2\n")
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer token")
	header.Set("Keep-Alive", "timeout=5")

	var buf bytes.Buffer
	fetcher := NewHTTPFetcher(srv.Client(), "stow-test")
	if err := fetcher.Fetch(context.Background(), Source{URL: srv.URL + "/nations.tsv", Header: header}, &buf); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if buf.String() != "a\tb\n1\t2\n" {
		t.Fatalf("unexpected body: %q", buf.String())
	}
	if gotUA != "stow-test" || gotToken != "Bearer token" {
		t.Fatalf("headers not forwarded: ua=%q auth=%q", gotUA, gotToken)
	}
	if gotConnection != "" {
		t.Fatalf("hop-by-hop header should be stripped, got %q", gotConnection)
	}
}

func TestHTTPFetcherStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.Client(), "")

	err := fetcher.Fetch(context.Background(), Source{URL: srv.URL + "/missing"}, io.Discard)
	var te *TransferError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 transfer error, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("404 should match ErrNotFound: %v", err)
	}

	err = fetcher.Fetch(context.Background(), Source{URL: srv.URL + "/broken"}, io.Discard)
	if !errors.As(err, &te) || te.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 transfer error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("502 must not be reported as not found")
	}
}

func TestHTTPFetcherHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewHTTPFetcher(srv.Client(), "").Fetch(ctx, Source{URL: srv.URL}, io.Discard)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewHTTPClientUsesFetchTimeout(t *testing.T) {
	cfg := &config.Config{FetchTimeout: config.Duration(45 * time.Second)}
	if client := NewHTTPClient(cfg); client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if client := NewHTTPClient(nil); client.Timeout != 0 {
		t.Fatalf("expected no overall timeout by default, got %s", client.Timeout)
	}
}

func TestCopyHeadersSkipsHopByHop(t *testing.T) {
	src := http.Header{}
	src.Add("Connection", "keep-alive")
	src.Add("Keep-Alive", "timeout=5")
	src.Add("X-Test-Header", "1")
	src.Add("x-test-header", "2")

	dst := http.Header{}
	CopyHeaders(dst, src)

	if _, exists := dst["Connection"]; exists {
		t.Fatalf("connection header should not be copied")
	}
	if _, exists := dst["Keep-Alive"]; exists {
		t.Fatalf("keep-alive header should not be copied")
	}
	if got := dst.Values("X-Test-Header"); len(got) != 2 {
		t.Fatalf("expected 2 values, got %v", got)
	}
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.txt")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	var buf bytes.Buffer
	if err := NewFileFetcher(nil).Fetch(context.Background(), Source{URL: "file://" + filepath.ToSlash(path)}, &buf); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if buf.String() != "local" {
		t.Fatalf("unexpected body: %q", buf.String())
	}

	err := NewFileFetcher(nil).Fetch(context.Background(), Source{URL: "file://" + filepath.ToSlash(filepath.Join(dir, "absent"))}, io.Discard)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGoogleDriveConfirmFlow(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.RawQuery)
		if r.URL.Query().Get("id") != "abc123" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("confirm") == "" {
			http.SetCookie(w, &http.Cookie{Name: "download_warning_1234", Value: "tok"})
			fmt.Fprint(w, "<html>virus scan warning</html>")
			return
		}
		if r.URL.Query().Get("confirm") != "tok" {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "large file body")
	}))
	defer srv.Close()

	fetcher := NewGoogleDriveFetcher(srv.Client(), srv.URL+"/uc")
	var buf bytes.Buffer
	if err := fetcher.Fetch(context.Background(), Source{URL: GoogleDriveURL("abc123")}, &buf); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if buf.String() != "large file body" {
		t.Fatalf("unexpected body: %q", buf.String())
	}
	if len(calls) != 2 {
		t.Fatalf("expected two requests, got %v", calls)
	}
}

func TestGoogleDriveDirectDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "small file")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	fetcher := NewGoogleDriveFetcher(srv.Client(), srv.URL+"/uc")
	if err := fetcher.Fetch(context.Background(), Source{URL: "gdrive://xyz"}, &buf); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if buf.String() != "small file" {
		t.Fatalf("unexpected body: %q", buf.String())
	}

	if err := fetcher.Fetch(context.Background(), Source{URL: "gdrive://"}, io.Discard); err == nil {
		t.Fatalf("expected error for empty file id")
	}
}

func TestS3Fetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bucket/data/nations.tsv":
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Content-Type", "text/tab-separated-values")
			w.Header().Set("Content-Length", "7")
			fmt.Fprint(w, "s3 body")
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
		}
	}))
	defer srv.Close()

	fetcher, err := NewS3Fetcher(S3Options{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("new s3 fetcher: %v", err)
	}

	var buf bytes.Buffer
	if err := fetcher.Fetch(context.Background(), Source{URL: S3URL("bucket", "data/nations.tsv")}, &buf); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if buf.String() != "s3 body" {
		t.Fatalf("unexpected body: %q", buf.String())
	}

	err = fetcher.Fetch(context.Background(), Source{URL: S3URL("bucket", "missing")}, io.Discard)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrTransfer) {
		t.Fatalf("expected not-found transfer error, got %v", err)
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://my-bucket/path/to/file.csv")
	if err != nil || bucket != "my-bucket" || key != "path/to/file.csv" {
		t.Fatalf("unexpected parse: %s %s %v", bucket, key, err)
	}
	for _, bad := range []string{"s3://bucket", "http://bucket/key", "s3:///key"} {
		if _, _, err := ParseS3URL(bad); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://example.org/data/nations.tsv":        "nations.tsv",
		"https://example.org/data/nations.tsv?dl=1#x": "nations.tsv",
		"https://example.org/data/dir/":               "dir",
		"s3://bucket/a/b/archive.tar.gz":              "archive.tar.gz",
		"file:///tmp/local.csv":                       "local.csv",
	}
	for raw, want := range cases {
		got, err := NameFromURL(raw)
		if err != nil || got != want {
			t.Fatalf("NameFromURL(%s) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := NameFromURL("https://example.org"); err == nil {
		t.Fatalf("expected error for url without path")
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(&config.Config{}, nil)
	if err != nil {
		t.Fatalf("default registry error: %v", err)
	}
	want := []string{"file", "gdrive", "http", "https", "s3"}
	got := r.Schemes()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected schemes: %v", got)
	}
}
