package stow

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/any-hub/stow/internal/archive"
	"github.com/any-hub/stow/internal/decode"
)

// EnsureDecode 确保文件存在后按 format 解码。解码失败返回 *DecodeError，缓存文件保留，
// 修正 opts 后重试不会重新下载。
func (m *Module) EnsureDecode(ctx context.Context, req Request, format string, opts DecodeOptions) (any, error) {
	filePath, err := m.Ensure(ctx, req)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	value, err := decode.Decode(format, decode.Input{Reader: f, Name: filePath}, opts)
	if err != nil {
		return nil, m.decodeError(format, filePath, err)
	}
	return value, nil
}

// EnsureArchiveDecode 确保归档存在后按 format 解码其中的 inner 成员。
// 解码失败时 DecodeError.Path 为 <archive>!<inner>，Detected 为成员内容的探测结果。
func (m *Module) EnsureArchiveDecode(ctx context.Context, req Request, kind ArchiveKind, inner, format string, opts DecodeOptions) (any, error) {
	archivePath, err := m.Ensure(ctx, req)
	if err != nil {
		return nil, err
	}

	name := inner
	if name == "" {
		// gz/xz/bz2 只有一个成员：data.ttl.gz -> data.ttl
		name = strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	}

	var (
		value     any
		detected  string
		decodeErr error
	)
	err = m.openArchive(kind, archivePath, inner, func(r io.Reader) error {
		br := bufio.NewReaderSize(r, sniffLen)
		head, _ := br.Peek(sniffLen)
		detected = archive.SniffBytes(head)
		value, decodeErr = decode.Decode(format, decode.Input{Reader: br, Name: path.Base(name)}, opts)
		return decodeErr
	})
	if decodeErr != nil {
		var de *DecodeError
		if errors.As(decodeErr, &de) {
			de.Path = memberPath(archivePath, inner)
			if de.Detected == "" {
				de.Detected = detected
			}
		}
		return nil, decodeErr
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// sniffLen 与 mimetype 默认读取的长度一致。
const sniffLen = 3072

func memberPath(archivePath, inner string) string {
	if inner == "" {
		return archivePath
	}
	return archivePath + "!" + inner
}

// EnsureCSV 下载并解析分隔文本，默认分隔符为制表符。
func (m *Module) EnsureCSV(ctx context.Context, req Request, opts DecodeOptions) (*Frame, error) {
	value, err := m.EnsureDecode(ctx, req, "csv", opts)
	if err != nil {
		return nil, err
	}
	return value.(*Frame), nil
}

// EnsureJSON 下载并解析 JSON。
func (m *Module) EnsureJSON(ctx context.Context, req Request, opts DecodeOptions) (any, error) {
	return m.EnsureDecode(ctx, req, "json", opts)
}

// EnsureExcel 下载并解析 xlsx 工作表。
func (m *Module) EnsureExcel(ctx context.Context, req Request, opts DecodeOptions) (*Frame, error) {
	value, err := m.EnsureDecode(ctx, req, "excel", opts)
	if err != nil {
		return nil, err
	}
	return value.(*Frame), nil
}

// EnsureRDF 下载并解析 RDF，格式缺省时根据扩展名推断。
func (m *Module) EnsureRDF(ctx context.Context, req Request, opts DecodeOptions) (*Graph, error) {
	value, err := m.EnsureDecode(ctx, req, "rdf", opts)
	if err != nil {
		return nil, err
	}
	return value.(*Graph), nil
}

// EnsureXML 下载并解析 XML 文档。
func (m *Module) EnsureXML(ctx context.Context, req Request, opts DecodeOptions) (*etree.Document, error) {
	value, err := m.EnsureDecode(ctx, req, "xml", opts)
	if err != nil {
		return nil, err
	}
	return value.(*etree.Document), nil
}

// EnsureZipCSV 下载 zip 并解析其中的分隔文本成员。
func (m *Module) EnsureZipCSV(ctx context.Context, req Request, inner string, opts DecodeOptions) (*Frame, error) {
	value, err := m.EnsureArchiveDecode(ctx, req, ArchiveZip, inner, "csv", opts)
	if err != nil {
		return nil, err
	}
	return value.(*Frame), nil
}

// EnsureTarCSV 下载 tar 并解析其中的分隔文本成员。
func (m *Module) EnsureTarCSV(ctx context.Context, req Request, inner string, opts DecodeOptions) (*Frame, error) {
	value, err := m.EnsureArchiveDecode(ctx, req, ArchiveTar, inner, "csv", opts)
	if err != nil {
		return nil, err
	}
	return value.(*Frame), nil
}

// EnsureTarXML 下载 tar 并解析其中的 XML 成员。
func (m *Module) EnsureTarXML(ctx context.Context, req Request, inner string, opts DecodeOptions) (*etree.Document, error) {
	value, err := m.EnsureArchiveDecode(ctx, req, ArchiveTar, inner, "xml", opts)
	if err != nil {
		return nil, err
	}
	return value.(*etree.Document), nil
}
