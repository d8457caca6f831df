package stow

import (
	"context"
	"io"
	"os"

	"github.com/any-hub/stow/internal/archive"
)

// EnsureOpen 确保文件存在后以只读方式打开，fn 返回后文件总会被关闭。
func (m *Module) EnsureOpen(ctx context.Context, req Request, fn func(io.Reader) error) error {
	path, err := m.Ensure(ctx, req)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// EnsureOpenZip 确保 zip 存在后打开其中的 inner 成员。成员每次重新读取，不单独缓存；
// 成员不存在时返回 ErrMemberNotFound。
func (m *Module) EnsureOpenZip(ctx context.Context, req Request, inner string, fn func(io.Reader) error) error {
	return m.ensureOpenArchive(ctx, req, archive.KindZip, inner, fn)
}

// EnsureOpenTar 确保 tar（或 tar.gz）存在后打开其中的 inner 成员。
func (m *Module) EnsureOpenTar(ctx context.Context, req Request, inner string, fn func(io.Reader) error) error {
	return m.ensureOpenArchive(ctx, req, archive.KindTar, inner, fn)
}

// EnsureOpenGz 确保 .gz 文件存在后以解压流打开。
func (m *Module) EnsureOpenGz(ctx context.Context, req Request, fn func(io.Reader) error) error {
	return m.ensureOpenArchive(ctx, req, archive.KindGzip, "", fn)
}

// EnsureOpenLZMA 确保 .xz / .lzma 文件存在后以解压流打开。
func (m *Module) EnsureOpenLZMA(ctx context.Context, req Request, fn func(io.Reader) error) error {
	return m.ensureOpenArchive(ctx, req, archive.KindLZMA, "", fn)
}

// EnsureOpenBz2 确保 .bz2 文件存在后以解压流打开。
func (m *Module) EnsureOpenBz2(ctx context.Context, req Request, fn func(io.Reader) error) error {
	return m.ensureOpenArchive(ctx, req, archive.KindBz2, "", fn)
}

func (m *Module) ensureOpenArchive(ctx context.Context, req Request, kind ArchiveKind, inner string, fn func(io.Reader) error) error {
	path, err := m.Ensure(ctx, req)
	if err != nil {
		return err
	}
	return m.openArchive(kind, path, inner, fn)
}

// openArchive 打开已缓存的归档，fn 的错误原样返回，归档自身的错误包装为 DecodeError。
func (m *Module) openArchive(kind ArchiveKind, path, inner string, fn func(io.Reader) error) error {
	var fnErr error
	err := archive.Open(kind, path, inner, func(r io.Reader) error {
		fnErr = fn(r)
		return fnErr
	})
	if err != nil && fnErr == nil {
		return m.decodeError(string(kind), path, err)
	}
	return err
}
