package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"

	"github.com/spf13/afero"
)

// FileFetcher 复制 file:// URL 指向的本地文件，主要用于离线镜像与测试。
type FileFetcher struct {
	fs afero.Fs
}

// NewFileFetcher 构造 file:// Fetcher；fsys 为空时使用真实文件系统。
func NewFileFetcher(fsys afero.Fs) *FileFetcher {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileFetcher{fs: fsys}
}

func (f *FileFetcher) Fetch(ctx context.Context, src Source, dst io.Writer) error {
	parsed, err := url.Parse(src.URL)
	if err != nil {
		return err
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		return fmt.Errorf("file url must not name a remote host: %s", parsed.Host)
	}
	file, err := f.fs.Open(parsed.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	defer file.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = io.Copy(dst, file)
	return err
}
