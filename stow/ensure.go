package stow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/any-hub/stow/internal/archive"
	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/config"
	"github.com/any-hub/stow/internal/decode"
	"github.com/any-hub/stow/internal/fetch"
	"github.com/any-hub/stow/internal/logging"
)

// Ensure 保证 req 指向的文件存在于本地并返回其路径。
//
// 文件已存在且未设置 Force 时不发起任何传输；否则下载到同目录下的临时文件，
// 完成后 rename 到目标路径。传输失败时临时文件被删除，目标路径保持原状。
func (m *Module) Ensure(ctx context.Context, req Request) (string, error) {
	locator, err := m.locator(req)
	if err != nil {
		return "", err
	}
	path, err := m.store.Path(locator, true)
	if err != nil {
		return "", pathError(err)
	}

	_, statErr := m.store.Stat(ctx, locator)
	switch {
	case statErr == nil && !req.Force:
		m.stow.logger.WithFields(logging.EnsureFields(m.name, path, req.URL, req.Force, true)).Debug("cache_hit")
		return path, nil
	case statErr != nil && !errors.Is(statErr, cache.ErrNotFound):
		return "", statErr
	}

	src := fetch.Source{URL: req.URL, Header: req.Header, Options: req.Options}
	entry, err := m.store.Write(ctx, locator, func(w io.Writer) error {
		return m.stow.fetcher.Fetch(ctx, src, w)
	}, cache.PutOptions{})
	if err != nil {
		var we *cache.WriteError
		var te *fetch.TransferError
		switch {
		case errors.As(err, &we):
			// 本地写盘失败不算传输失败，即使传输层已将其包装。
			err = we
		case errors.As(err, &te), errors.Is(err, cache.ErrFilesystem), errors.Is(err, cache.ErrUnexpectedDirectory):
		default:
			err = &fetch.TransferError{URL: req.URL, Err: err}
		}
		m.stow.logger.WithFields(logging.EnsureFields(m.name, path, req.URL, req.Force, false)).WithError(err).Warn("ensure_failed")
		return "", err
	}

	fields := logging.EnsureFields(m.name, path, req.URL, req.Force, false)
	fields["bytes"] = entry.SizeBytes
	m.stow.logger.WithFields(fields).Info("downloaded")
	return path, nil
}

// locator 计算目标位置：版本号前置，Name 缺省时从 URL 推断。
func (m *Module) locator(req Request) (cache.Locator, error) {
	if strings.TrimSpace(req.URL) == "" {
		return cache.Locator{}, config.FieldError{Field: "URL", Reason: "不能为空"}
	}
	name := req.Name
	if name == "" {
		inferred, err := fetch.NameFromURL(req.URL)
		if err != nil {
			return cache.Locator{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
		name = inferred
	}
	segments, err := versionedSegments(req.Version, req.Subkeys)
	if err != nil {
		return cache.Locator{}, err
	}
	return cache.Locator{Segments: segments, Name: name}, nil
}

// EnsureFromS3 下载 s3://bucket/key，name 为空时取 key 的最后一段。
func (m *Module) EnsureFromS3(ctx context.Context, subkeys []string, bucket, key, name string, force bool) (string, error) {
	return m.Ensure(ctx, Request{
		Subkeys: subkeys,
		Name:    name,
		URL:     fetch.S3URL(bucket, key),
		Force:   force,
	})
}

// EnsureFromGoogle 下载 Google Drive 文件。文件 ID 不含文件名，因此 name 必填。
func (m *Module) EnsureFromGoogle(ctx context.Context, subkeys []string, name, fileID string, force bool) (string, error) {
	if name == "" {
		return "", config.FieldError{Field: "Name", Reason: "Google Drive 下载必须指定文件名"}
	}
	return m.Ensure(ctx, Request{
		Subkeys: subkeys,
		Name:    name,
		URL:     fetch.GoogleDriveURL(fileID),
		Force:   force,
	})
}

// EnsureUntar 下载 tar(.gz) 并解压到同级目录 directory（缺省为去掉全部后缀的文件名）。
// 目录已存在且未设置 Force 时直接返回。
func (m *Module) EnsureUntar(ctx context.Context, req Request, directory string) (string, error) {
	path, err := m.Ensure(ctx, req)
	if err != nil {
		return "", err
	}
	if directory == "" {
		directory = stripSuffixes(filepath.Base(path))
	}
	if err := validateLeaf("Directory", directory); err != nil {
		return "", err
	}

	target := filepath.Join(filepath.Dir(path), directory)
	if info, err := os.Stat(target); err == nil && info.IsDir() && !req.Force {
		return target, nil
	}
	if err := archive.Untar(path, target); err != nil {
		return "", m.decodeError("tar", path, err)
	}
	return target, nil
}

// EnsureGunzip 下载 .gz 文件并解压为去掉 .gz 的同名文件。解压结果已存在且未设置
// Force 时不会下载；autoclean 为 true 时解压后删除 .gz。
func (m *Module) EnsureGunzip(ctx context.Context, req Request, autoclean bool) (string, error) {
	locator, err := m.locator(req)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(locator.Name, ".gz") || locator.Name == ".gz" {
		return "", config.FieldError{Field: "Name", Reason: fmt.Sprintf("不是 .gz 文件: %s", locator.Name)}
	}
	plain := cache.Locator{Segments: locator.Segments, Name: strings.TrimSuffix(locator.Name, ".gz")}
	target, err := m.store.Path(plain, true)
	if err != nil {
		return "", pathError(err)
	}
	if _, err := m.store.Stat(ctx, plain); err == nil && !req.Force {
		return target, nil
	}

	req.Name = locator.Name
	path, err := m.Ensure(ctx, req)
	if err != nil {
		return "", err
	}
	if err := archive.Gunzip(path, target); err != nil {
		return "", m.decodeError("gz", path, err)
	}
	if autoclean {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: 删除 %s 失败: %v", ErrFilesystem, path, err)
		}
	}
	return target, nil
}

// decodeError 包装解码失败并附带探测到的 MIME 类型，缓存文件保持不变。
func (m *Module) decodeError(format, path string, err error) error {
	var de *decode.DecodeError
	if errors.As(err, &de) {
		if de.Detected == "" {
			de.Detected = archive.Sniff(path)
		}
		return err
	}
	if errors.Is(err, archive.ErrMemberNotFound) || errors.Is(err, archive.ErrUnsupportedKind) {
		return err
	}
	return &decode.DecodeError{Format: format, Path: path, Detected: archive.Sniff(path), Err: err}
}

// stripSuffixes 去掉全部扩展名：rhea-rxn.tar.gz -> rhea-rxn。
func stripSuffixes(name string) string {
	if idx := strings.Index(name[1:], "."); idx >= 0 {
		return name[:idx+1]
	}
	return name
}

func validateLeaf(field, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return config.FieldError{Field: field, Reason: fmt.Sprintf("必须是单级目录名: %q", name)}
	}
	return nil
}
