package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const tempSuffix = ".part"

// NewStore 以 root 为根目录构建磁盘缓存。fsys 为空时使用真实文件系统。
func NewStore(fsys afero.Fs, root string) (Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: storage root required", ErrInvalidPath)
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	if err := fsys.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage root %s: %v", ErrFilesystem, abs, err)
	}

	return &fileStore{fs: fsys, root: abs}, nil
}

// fileStore 不做任何加锁，同一路径的并发写入以最后一次 rename 为准。
type fileStore struct {
	fs   afero.Fs
	root string
}

func (s *fileStore) Root() string {
	return s.root
}

func (s *fileStore) Path(locator Locator, ensure bool) (string, error) {
	for _, segment := range locator.Segments {
		if err := validateSegment(segment); err != nil {
			return "", err
		}
	}
	if locator.Name != "" {
		if err := validateSegment(locator.Name); err != nil {
			return "", err
		}
	}

	dir := filepath.Join(append([]string{s.root}, locator.Segments...)...)
	if ensure {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("%w: create directory %s: %v", ErrFilesystem, dir, err)
		}
	}
	if locator.Name == "" {
		return dir, nil
	}
	return filepath.Join(dir, locator.Name), nil
}

func (s *fileStore) Stat(ctx context.Context, locator Locator) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.Path(locator, false)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrFilesystem, filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedDirectory, filePath)
	}

	return &Entry{
		Locator:   locator,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) Open(ctx context.Context, locator Locator) (*ReadResult, error) {
	entry, err := s.Stat(ctx, locator)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(entry.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrFilesystem, entry.FilePath, err)
	}

	return &ReadResult{
		Entry:  *entry,
		Reader: f,
	}, nil
}

func (s *fileStore) Write(ctx context.Context, locator Locator, fill func(io.Writer) error, opts PutOptions) (*Entry, error) {
	if locator.Name == "" {
		return nil, fmt.Errorf("%w: file name required", ErrInvalidPath)
	}

	filePath, err := s.Path(locator, true)
	if err != nil {
		return nil, err
	}
	if info, err := s.fs.Stat(filePath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedDirectory, filePath)
	}

	tempName := tempPath(filePath)
	tempFile, err := s.fs.OpenFile(tempName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrFilesystem, err)
	}

	written := &countingWriter{ctx: ctx, w: tempFile, path: tempName}
	fillErr := fill(written)
	closeErr := tempFile.Close()
	if fillErr != nil {
		s.fs.Remove(tempName)
		return nil, fillErr
	}
	if closeErr != nil {
		s.fs.Remove(tempName)
		return nil, fmt.Errorf("%w: close temp file: %v", ErrFilesystem, closeErr)
	}

	if err := s.fs.Rename(tempName, filePath); err != nil {
		s.fs.Remove(tempName)
		return nil, fmt.Errorf("%w: rename into place: %v", ErrFilesystem, err)
	}

	modTime := opts.ModTime
	if !modTime.IsZero() {
		if err := s.fs.Chtimes(filePath, modTime, modTime); err != nil {
			return nil, fmt.Errorf("%w: set mod time: %v", ErrFilesystem, err)
		}
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrFilesystem, filePath, err)
	}

	return &Entry{
		Locator:   locator,
		FilePath:  filePath,
		SizeBytes: written.n,
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error) {
	return s.Write(ctx, locator, func(w io.Writer) error {
		_, err := copyWithContext(ctx, w, body)
		return err
	}, opts)
}

func (s *fileStore) Remove(ctx context.Context, locator Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.Path(locator, false)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrFilesystem, filePath, err)
	}
	return nil
}

func (s *fileStore) Walk(ctx context.Context, prefix Locator, fn func(Entry) error) error {
	start, err := s.Path(Locator{Segments: prefix.Segments}, false)
	if err != nil {
		return err
	}
	if _, err := s.fs.Stat(start); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: stat %s: %v", ErrFilesystem, start, err)
	}

	return afero.Walk(s.fs, start, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || isTempName(info.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		return fn(Entry{
			Locator: Locator{
				Segments: parts[:len(parts)-1],
				Name:     parts[len(parts)-1],
			},
			FilePath:  path,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	})
}

// validateSegment 拒绝会逃逸出根目录或跨越多级目录的片段。
func validateSegment(segment string) error {
	if segment == "" || segment == "." || segment == ".." {
		return fmt.Errorf("%w: segment %q", ErrInvalidPath, segment)
	}
	if strings.ContainsAny(segment, `/\`) || strings.ContainsRune(segment, filepath.Separator) {
		return fmt.Errorf("%w: segment %q contains a path separator", ErrInvalidPath, segment)
	}
	return nil
}

// tempPath 在目标目录中生成 .<name>.<uuid>.part，保证与目标处于同一文件系统以便 rename。
func tempPath(filePath string) string {
	dir, name := filepath.Split(filePath)
	return filepath.Join(dir, "."+name+"."+uuid.NewString()+tempSuffix)
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

type countingWriter struct {
	ctx  context.Context
	w    io.Writer
	path string
	n    int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, &WriteError{Path: c.path, Err: err}
	}
	return n, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
