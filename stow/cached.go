package stow

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/logging"
)

// EnsureCachedJSON 将 compute 的结果以 JSON 持久化到模块目录下。文件已存在且未设置
// force 时直接读取文件而不调用 compute；否则调用 compute 并原子写入。两种情况下 v
// 都从持久化后的 JSON 解码得到，因此首次调用与后续调用的结果形状一致。
func (m *Module) EnsureCachedJSON(ctx context.Context, subkeys []string, name string, force bool, compute func(context.Context) (any, error), v any) (string, error) {
	locator := cache.Locator{Segments: subkeys, Name: name}
	if path, hit, err := m.cachedHit(ctx, locator, force); err != nil || hit {
		if err != nil {
			return "", err
		}
		return path, m.LoadJSON(ctx, subkeys, name, v)
	}

	value, err := compute(ctx)
	if err != nil {
		return "", err
	}
	data, err := encodeJSON(value)
	if err != nil {
		return "", err
	}
	entry, err := m.store.Put(ctx, locator, bytes.NewReader(data), cache.PutOptions{})
	if err != nil {
		return "", pathError(err)
	}
	m.logComputed(entry, force)

	if err := json.Unmarshal(data, v); err != nil {
		return "", &DecodeError{Format: "json", Path: entry.FilePath, Err: err}
	}
	return entry.FilePath, nil
}

// EnsureCachedLines 与 EnsureCachedJSON 相同，但以每行一个元素的文本文件保存字符串列表。
// 元素中不能包含换行符。
func (m *Module) EnsureCachedLines(ctx context.Context, subkeys []string, name string, force bool, compute func(context.Context) ([]string, error)) ([]string, error) {
	locator := cache.Locator{Segments: subkeys, Name: name}
	if _, hit, err := m.cachedHit(ctx, locator, force); err != nil || hit {
		if err != nil {
			return nil, err
		}
		return m.readLines(ctx, locator)
	}

	lines, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for i, line := range lines {
		if strings.ContainsAny(line, "\r\n") {
			return nil, fmt.Errorf("%w: 第 %d 个元素包含换行符", ErrConfig, i)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	entry, err := m.store.Put(ctx, locator, &buf, cache.PutOptions{})
	if err != nil {
		return nil, pathError(err)
	}
	m.logComputed(entry, force)
	return append([]string{}, lines...), nil
}

// cachedHit 报告 locator 是否已存在且可以直接复用。
func (m *Module) cachedHit(ctx context.Context, locator cache.Locator, force bool) (string, bool, error) {
	path, err := m.store.Path(locator, true)
	if err != nil {
		return "", false, pathError(err)
	}
	_, err = m.store.Stat(ctx, locator)
	switch {
	case err == nil:
		if !force {
			m.stow.logger.WithFields(logging.EnsureFields(m.name, path, "compute", force, true)).Debug("cache_hit")
		}
		return path, !force, nil
	case errors.Is(err, cache.ErrNotFound):
		return path, false, nil
	default:
		return "", false, pathError(err)
	}
}

func (m *Module) readLines(ctx context.Context, locator cache.Locator) ([]string, error) {
	result, err := m.store.Open(ctx, locator)
	if err != nil {
		return nil, pathError(err)
	}
	defer result.Reader.Close()

	lines := []string{}
	scanner := bufio.NewScanner(result.Reader)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &DecodeError{Format: "lines", Path: result.Entry.FilePath, Err: err}
	}
	return lines, nil
}

func (m *Module) logComputed(entry *cache.Entry, force bool) {
	fields := logging.EnsureFields(m.name, entry.FilePath, "compute", force, false)
	fields["bytes"] = entry.SizeBytes
	m.stow.logger.WithFields(fields).Info("computed")
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}
