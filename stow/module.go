package stow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/config"
)

// Module 是某个应用的命名空间，根目录为 <base>/<name>（或 <NAME>_HOME）。
// Module 不可变，可在多个 goroutine 间共享。
type Module struct {
	name    string
	subkeys []string
	stow    *Stow
	store   cache.Store
}

// Name 返回模块名。
func (m *Module) Name() string {
	return m.name
}

// Dir 返回模块（或子模块）的根目录。
func (m *Module) Dir() string {
	return m.store.Root()
}

// Submodule 返回以 subkeys 为根的子模块，目录会被创建。
func (m *Module) Submodule(subkeys ...string) (*Module, error) {
	dir, err := m.store.Path(cache.Locator{Segments: subkeys}, true)
	if err != nil {
		return nil, pathError(err)
	}
	store, err := cache.NewStore(m.stow.fs, dir)
	if err != nil {
		return nil, err
	}
	return &Module{
		name:    m.name,
		subkeys: append(append([]string{}, m.subkeys...), subkeys...),
		stow:    m.stow,
		store:   store,
	}, nil
}

// Join 返回 <dir>/<subkeys...>[/name]。ensure 为 true 时创建全部目录（不含 name），
// 重复调用结果相同且不会报错。
func (m *Module) Join(subkeys []string, name string, ensure bool) (string, error) {
	path, err := m.store.Path(cache.Locator{Segments: subkeys, Name: name}, ensure)
	if err != nil {
		return "", pathError(err)
	}
	return path, nil
}

// JoinPathSQLite 返回 sqlite:///<abs path> 形式的连接串，目录会被创建。
func (m *Module) JoinPathSQLite(subkeys []string, name string) (string, error) {
	path, err := m.Join(subkeys, name, true)
	if err != nil {
		return "", err
	}
	return "sqlite:///" + filepath.ToSlash(path), nil
}

// EnsureCustom 在文件缺失（或 force）时调用 provider 生成文件，provider 未生成文件时报错。
func (m *Module) EnsureCustom(ctx context.Context, subkeys []string, name string, force bool, provider func(ctx context.Context, path string) error) (string, error) {
	locator := cache.Locator{Segments: subkeys, Name: name}
	path, err := m.store.Path(locator, true)
	if err != nil {
		return "", pathError(err)
	}
	if _, err := m.store.Stat(ctx, locator); err == nil && !force {
		return path, nil
	} else if errors.Is(err, cache.ErrUnexpectedDirectory) {
		return "", err
	}

	if err := provider(ctx, path); err != nil {
		return "", err
	}
	if _, err := m.store.Stat(ctx, locator); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrProviderNoFile, path)
		}
		return "", err
	}
	return path, nil
}

// LoadJSON 读取模块目录下的 JSON 文件到 v。
func (m *Module) LoadJSON(ctx context.Context, subkeys []string, name string, v any) error {
	result, err := m.store.Open(ctx, cache.Locator{Segments: subkeys, Name: name})
	if err != nil {
		return pathError(err)
	}
	defer result.Reader.Close()
	if err := json.NewDecoder(result.Reader).Decode(v); err != nil {
		return &DecodeError{Format: "json", Path: result.Entry.FilePath, Err: err}
	}
	return nil
}

// DumpJSON 将 v 以缩进格式原子写入模块目录下的文件。
func (m *Module) DumpJSON(ctx context.Context, subkeys []string, name string, v any) (string, error) {
	data, err := encodeJSON(v)
	if err != nil {
		return "", err
	}
	entry, err := m.store.Put(ctx, cache.Locator{Segments: subkeys, Name: name}, bytes.NewReader(data), cache.PutOptions{})
	if err != nil {
		return "", pathError(err)
	}
	return entry.FilePath, nil
}

// Open 打开模块目录下已存在的文件（不下载），fn 返回后关闭。
func (m *Module) Open(ctx context.Context, subkeys []string, name string, fn func(io.Reader) error) error {
	result, err := m.store.Open(ctx, cache.Locator{Segments: subkeys, Name: name})
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return fmt.Errorf("%w: %s", os.ErrNotExist, filepath.Join(append(append([]string{m.Dir()}, subkeys...), name)...))
		}
		return pathError(err)
	}
	defer result.Reader.Close()
	return fn(result.Reader)
}

// FileInfo 描述模块目录下的一个缓存文件。
type FileInfo struct {
	Subkeys []string  `json:"subkeys"`
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Files 列出 subkeys 目录下（递归）的全部缓存文件，下载中的临时文件不会出现。
func (m *Module) Files(ctx context.Context, subkeys ...string) ([]FileInfo, error) {
	var files []FileInfo
	err := m.store.Walk(ctx, cache.Locator{Segments: subkeys}, func(entry cache.Entry) error {
		files = append(files, FileInfo{
			Subkeys: entry.Locator.Segments,
			Name:    entry.Locator.Name,
			Path:    entry.FilePath,
			Size:    entry.SizeBytes,
			ModTime: entry.ModTime,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", os.ErrNotExist, filepath.Join(append([]string{m.Dir()}, subkeys...)...))
		}
		return nil, pathError(err)
	}
	return files, nil
}

// pathError 将缓存层的非法路径映射为配置错误。
func pathError(err error) error {
	if errors.Is(err, cache.ErrInvalidPath) {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return err
}

// versionedSegments 将版本号作为第一级子目录。
func versionedSegments(version string, subkeys []string) ([]string, error) {
	if version == "" {
		return subkeys, nil
	}
	if strings.ContainsAny(version, `/\`) || strings.ContainsRune(version, filepath.Separator) {
		return nil, config.FieldError{Field: "Version", Reason: fmt.Sprintf("版本号不能包含路径分隔符: %s", version)}
	}
	return append([]string{version}, subkeys...), nil
}
