package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options 描述 S3 兼容服务的连接参数。凭证留空时使用匿名访问，适合公开数据桶。
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Insecure  bool
}

// S3Fetcher 下载 s3://bucket/key，可通过 Source.Options["version_id"] 指定对象版本。
type S3Fetcher struct {
	client *minio.Client
}

// NewS3Fetcher 创建 minio 客户端。minio.New 不发起网络请求，可在启动时调用。
func NewS3Fetcher(opts S3Options) (*S3Fetcher, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       !opts.Insecure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Fetcher{client: client}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, src Source, dst io.Writer) error {
	bucket, key, err := ParseS3URL(src.URL)
	if err != nil {
		return err
	}

	opts := minio.GetObjectOptions{}
	if versionID, ok := src.Options["version_id"].(string); ok && versionID != "" {
		opts.VersionID = versionID
	}
	for name, values := range src.Header {
		for _, value := range values {
			opts.Set(name, value)
		}
	}

	object, err := f.client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return s3Error(src.URL, err)
	}
	defer object.Close()

	if _, err := io.Copy(dst, object); err != nil {
		return s3Error(src.URL, err)
	}
	return nil
}

// ParseS3URL 拆分 s3://bucket/key。
func ParseS3URL(raw string) (bucket, key string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if !strings.EqualFold(parsed.Scheme, "s3") {
		return "", "", fmt.Errorf("not an s3 url: %s", raw)
	}
	bucket = parsed.Host
	key = strings.TrimLeft(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %s", raw)
	}
	return bucket, key, nil
}

func s3Error(rawURL string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return &TransferError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %s", ErrNotFound, resp.Message)}
	}
	return &TransferError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
}
