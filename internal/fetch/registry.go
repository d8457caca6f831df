package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/stow/internal/config"
)

// Registry 按 scheme 分发传输请求，注册后只读，可在多个 goroutine 间共享。
type Registry struct {
	fetchers sync.Map
	logger   *logrus.Logger
}

// NewRegistry 返回一个空注册表。logger 为空时日志被丢弃。
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Registry{logger: logger}
}

// NewDefaultRegistry 注册内置的 http/https/file/s3/gdrive Fetcher。
func NewDefaultRegistry(cfg *config.Config, logger *logrus.Logger) (*Registry, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	r := NewRegistry(logger)
	client := NewHTTPClient(cfg)

	httpFetcher := NewHTTPFetcher(client, cfg.UserAgent)
	r.MustRegister("http", httpFetcher)
	r.MustRegister("https", httpFetcher)
	r.MustRegister("file", NewFileFetcher(nil))

	s3Fetcher, err := NewS3Fetcher(S3Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Insecure:  cfg.S3Insecure,
	})
	if err != nil {
		return nil, err
	}
	r.MustRegister("s3", s3Fetcher)
	r.MustRegister("gdrive", NewGoogleDriveFetcher(client, cfg.GoogleDriveURL))
	return r, nil
}

// Register 为 scheme 注册 Fetcher，重复注册返回 ErrDuplicateScheme。
func (r *Registry) Register(scheme string, fetcher Fetcher) error {
	key := normalizeScheme(scheme)
	if key == "" {
		return errors.New("scheme required")
	}
	if fetcher == nil {
		return fmt.Errorf("fetcher for %s is nil", key)
	}
	if _, loaded := r.fetchers.LoadOrStore(key, fetcher); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateScheme, key)
	}
	return nil
}

// MustRegister 在注册失败时 panic，用于初始化阶段。
func (r *Registry) MustRegister(scheme string, fetcher Fetcher) {
	if err := r.Register(scheme, fetcher); err != nil {
		panic(err)
	}
}

// Lookup 返回 scheme 对应的 Fetcher。
func (r *Registry) Lookup(scheme string) (Fetcher, bool) {
	value, ok := r.fetchers.Load(normalizeScheme(scheme))
	if !ok {
		return nil, false
	}
	fetcher, ok := value.(Fetcher)
	return fetcher, ok
}

// Schemes 返回已注册 scheme 的有序列表。
func (r *Registry) Schemes() []string {
	var out []string
	r.fetchers.Range(func(key, _ any) bool {
		out = append(out, key.(string))
		return true
	})
	sort.Strings(out)
	return out
}

// Fetch 根据 URL scheme 选择 Fetcher 执行传输，所有错误都包装为 *TransferError。
func (r *Registry) Fetch(ctx context.Context, src Source, dst io.Writer) error {
	scheme := Scheme(src.URL)
	fetcher, ok := r.Lookup(scheme)
	if !ok {
		return &TransferError{URL: src.URL, Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)}
	}

	started := time.Now()
	counter := &byteCounter{w: dst}
	err := fetcher.Fetch(ctx, src, counter)
	fields := logrus.Fields{
		"action":      "fetch",
		"scheme":      scheme,
		"url":         src.URL,
		"bytes":       counter.n,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Warn("fetch_failed")
		return asTransferError(src.URL, err)
	}
	r.logger.WithFields(fields).Debug("fetch_done")
	return nil
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

type byteCounter struct {
	w io.Writer
	n int64
}

func (c *byteCounter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
