package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/any-hub/stow/internal/config"
)

// 共享 HTTP transport，复用长连接并集中配置建连超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient 返回下载使用的 http.Client。FetchTimeout 为 0 时不限制整体耗时，
// 大文件下载只受 context 控制。
func NewHTTPClient(cfg *config.Config) *http.Client {
	var timeout time.Duration
	if cfg != nil && cfg.FetchTimeout.DurationValue() > 0 {
		timeout = cfg.FetchTimeout.DurationValue()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// hopByHopHeaders 定义 RFC 7230 中逐跳字段，调用方传入时不会转发给远端。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Proxy-Connection":    {},
}

// CopyHeaders 将 src 中允许转发的头追加到 dst，忽略 hop-by-hop 字段。
func CopyHeaders(dst, src http.Header) {
	for key, values := range src {
		if IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// IsHopByHopHeader reports whether the header must not be forwarded.
func IsHopByHopHeader(key string) bool {
	_, ok := hopByHopHeaders[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

// HTTPFetcher 通过 GET 下载 http/https 资源，非 2xx 视为失败。
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher 构造 HTTP Fetcher；client 为空时使用默认配置。
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(nil)
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src Source, dst io.Writer) error {
	resp, err := f.get(ctx, src.URL, src.Header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return copyBody(src.URL, resp, dst)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransferError{URL: rawURL, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	CopyHeaders(req.Header, header)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransferError{URL: rawURL, Err: err}
	}
	return resp, nil
}

func copyBody(rawURL string, resp *http.Response, dst io.Writer) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return statusError(rawURL, resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return &TransferError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return nil
}
