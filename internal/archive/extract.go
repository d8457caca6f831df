package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// Untar 将 tar（可为 gzip 压缩）完整解压到 dest，目录不存在时创建。
// 解压失败时删除本次创建的 dest，避免空目录被当作已解压。
func Untar(archivePath, dest string) error {
	_, statErr := os.Stat(dest)
	created := os.IsNotExist(statErr)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	err := untarInto(archivePath, dest)
	if err != nil && created {
		os.RemoveAll(dest)
	}
	return err
}

func untarInto(archivePath, dest string) error {
	return withTarFS(archivePath, func(tfs fs.FS) error {
		return fs.WalkDir(tfs, ".", func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			target := filepath.Join(dest, filepath.FromSlash(name))
			if d.IsDir() {
				return os.MkdirAll(target, 0o755)
			}
			if !d.Type().IsRegular() {
				return nil
			}
			return extractMember(tfs, name, target)
		})
	})
}

func extractMember(tfs fs.FS, name, target string) error {
	src, err := tfs.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("extract %s: %w", name, err)
	}
	return dst.Close()
}

// Gunzip 将 src 解压为 dst。先写同目录临时文件再 rename，失败时不留下半成品。
func Gunzip(src, dst string) error {
	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+uuid.NewString()+".part")
	err := withFile(src, func(r io.Reader) error {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("open gzip %s: %w", src, err)
		}
		defer gz.Close()

		out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, gz); err != nil {
			out.Close()
			return fmt.Errorf("gunzip %s: %w", src, err)
		}
		return out.Close()
	})
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
