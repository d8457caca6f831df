package stow

import (
	"net/http"

	"github.com/any-hub/stow/internal/archive"
	"github.com/any-hub/stow/internal/decode"
	"github.com/any-hub/stow/internal/fetch"
	"github.com/any-hub/stow/internal/location"
)

type (
	// Location 是解析后的 Base Location。
	Location = location.Location
	// Frame 是表格解码结果。
	Frame = decode.Frame
	// Graph 是 RDF 解码结果。
	Graph = decode.Graph
	// DecodeOptions 原样透传给解码器。
	DecodeOptions = decode.Options
	// Decoder 可通过 RegisterDecoder 扩展新格式。
	Decoder     = decode.Decoder
	DecodeInput = decode.Input
	// Fetcher 是可替换的传输实现。
	Fetcher = fetch.Fetcher
	// Source 是传给 Fetcher 的远端描述。
	Source = fetch.Source
	// ArchiveKind 选择 EnsureArchiveDecode 使用的归档格式。
	ArchiveKind = archive.Kind
)

const (
	ArchiveZip  = archive.KindZip
	ArchiveTar  = archive.KindTar
	ArchiveGzip = archive.KindGzip
	ArchiveLZMA = archive.KindLZMA
	ArchiveBz2  = archive.KindBz2
)

// Request 描述一次 Ensure：目标位置（子目录、文件名、版本）与远端来源。
type Request struct {
	// Subkeys 是模块目录下的子目录序列。
	Subkeys []string
	// Name 是缓存文件名，留空时取 URL 路径的最后一段。
	Name string
	// URL 支持 http(s)://、file://、s3://bucket/key、gdrive://<file-id>。
	URL string
	// Version 非空时作为第一级子目录，不能包含路径分隔符。
	Version string
	// Force 为 true 时即使文件已存在也重新下载。
	Force bool
	// Header 为附加请求头。
	Header http.Header
	// Options 透传给传输后端，例如 s3 的 version_id。
	Options map[string]any
}

// RegisterDecoder 为格式标签注册自定义解码器。
func RegisterDecoder(format string, decoder Decoder) error {
	return decode.Register(format, decoder)
}

// DecoderFormats 返回已注册的格式标签。
func DecoderFormats() []string {
	return decode.Formats()
}
