package archive

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/nlepage/go-tarfs"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Kind 标识归档或压缩格式。
type Kind string

const (
	KindZip  Kind = "zip"
	KindTar  Kind = "tar"
	KindGzip Kind = "gz"
	KindLZMA Kind = "lzma"
	KindBz2  Kind = "bz2"
)

var (
	// ErrMemberNotFound 表示归档中不存在请求的成员。
	ErrMemberNotFound = errors.New("archive member not found")
	// ErrUnsupportedKind 表示未知的归档类型。
	ErrUnsupportedKind = errors.New("unsupported archive kind")
)

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Open 按 kind 打开 path：zip/tar 需要 inner 指定成员，其余类型忽略 inner。
func Open(kind Kind, path, inner string, fn func(io.Reader) error) error {
	switch Kind(strings.ToLower(string(kind))) {
	case KindZip:
		return OpenZipMember(path, inner, fn)
	case KindTar:
		return OpenTarMember(path, inner, fn)
	case KindGzip:
		return OpenGzip(path, fn)
	case KindLZMA, "xz":
		return OpenLZMA(path, fn)
	case KindBz2:
		return OpenBz2(path, fn)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

// OpenZipMember 在 zip 中定位 inner 并以只读流交给 fn。
func OpenZipMember(path, inner string, fn func(io.Reader) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", path, err)
	}
	defer zr.Close()

	want := cleanMember(inner)
	for _, f := range zr.File {
		if cleanMember(f.Name) != want || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip member %s: %w", inner, err)
		}
		defer rc.Close()
		return fn(rc)
	}
	return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, inner, path)
}

// OpenTarMember 在 tar（可为 gzip 压缩）中定位 inner。
func OpenTarMember(path, inner string, fn func(io.Reader) error) error {
	return withTarFS(path, func(tfs fs.FS) error {
		name := cleanMember(inner)
		if !fs.ValidPath(name) {
			return fmt.Errorf("%w: invalid member name %q", ErrMemberNotFound, inner)
		}
		member, err := tfs.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, inner, path)
			}
			return fmt.Errorf("open tar member %s: %w", inner, err)
		}
		defer member.Close()

		info, err := member.Stat()
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrMemberNotFound, inner)
		}
		return fn(member)
	})
}

// OpenGzip 解压单个 gzip 流。
func OpenGzip(path string, fn func(io.Reader) error) error {
	return withFile(path, func(r io.Reader) error {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		return fn(gz)
	})
}

// OpenLZMA 解压 xz 容器，文件头不是 xz 魔数时按旧式 .lzma 处理。
func OpenLZMA(path string, fn func(io.Reader) error) error {
	return withFile(path, func(r io.Reader) error {
		br := bufio.NewReader(r)
		head, _ := br.Peek(len(xzMagic))
		if bytes.Equal(head, xzMagic) {
			xr, err := xz.NewReader(br)
			if err != nil {
				return fmt.Errorf("open xz %s: %w", path, err)
			}
			return fn(xr)
		}
		lr, err := lzma.NewReader(br)
		if err != nil {
			return fmt.Errorf("open lzma %s: %w", path, err)
		}
		return fn(lr)
	})
}

// OpenBz2 解压 bzip2 流。
func OpenBz2(path string, fn func(io.Reader) error) error {
	return withFile(path, func(r io.Reader) error {
		return fn(bzip2.NewReader(r))
	})
}

// Sniff 返回文件内容探测出的 MIME 类型，失败时为空串。
func Sniff(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil || mime == nil {
		return ""
	}
	return mime.String()
}

// SniffBytes 根据内容开头探测 MIME 类型，用于归档成员等无法按路径探测的内容。
func SniffBytes(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	return mimetype.Detect(head).String()
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// withTarFS 透明处理 .tar.gz：读取前两个字节判断 gzip 魔数。
func withTarFS(path string, fn func(fs.FS) error) error {
	return withFile(path, func(r io.Reader) error {
		br := bufio.NewReader(r)
		var reader io.Reader = br
		const gzipMagic1, gzipMagic2 = 0x1F, 0x8B
		if head, _ := br.Peek(2); len(head) == 2 && head[0] == gzipMagic1 && head[1] == gzipMagic2 {
			gz, err := gzip.NewReader(br)
			if err != nil {
				return fmt.Errorf("open gzip %s: %w", path, err)
			}
			defer gz.Close()
			reader = gz
		}
		tfs, err := tarfs.New(reader)
		if err != nil {
			return fmt.Errorf("read tar %s: %w", path, err)
		}
		return fn(tfs)
	})
}

func cleanMember(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimLeft(name, "/")
	cleaned := path.Clean(name)
	if cleaned == "." {
		return ""
	}
	return cleaned
}
