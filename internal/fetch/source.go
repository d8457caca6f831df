package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Source 描述一次传输：URL（或 s3://、gdrive:// 定位符）、附加请求头与后端参数。
type Source struct {
	URL     string
	Header  http.Header
	Options map[string]any
}

// Fetcher 将 Source 对应的远端内容完整写入 dst。
type Fetcher interface {
	Fetch(ctx context.Context, src Source, dst io.Writer) error
}

// FetcherFunc 让普通函数满足 Fetcher。
type FetcherFunc func(ctx context.Context, src Source, dst io.Writer) error

// Fetch 调用 f。
func (f FetcherFunc) Fetch(ctx context.Context, src Source, dst io.Writer) error {
	return f(ctx, src, dst)
}

// Scheme 返回小写的 URL scheme，无法解析时返回空串。
func Scheme(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// NameFromURL 取 URL 路径的最后一段作为缓存文件名，忽略查询串与片段。
func NameFromURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	p := parsed.Path
	if strings.EqualFold(parsed.Scheme, "s3") && p == "" {
		p = parsed.Opaque
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot infer file name from url %q", raw)
	}
	return name, nil
}

// S3URL 拼接 s3://bucket/key 定位符。
func S3URL(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimLeft(key, "/")
}

// GoogleDriveURL 拼接 gdrive://<file-id> 定位符。
func GoogleDriveURL(fileID string) string {
	return "gdrive://" + fileID
}
