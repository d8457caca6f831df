package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<root>/<segment_1>/.../<segment_n>/<name>
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Root 返回存储根目录的绝对路径。
	Root() string

	// Path 返回 Locator 对应的绝对路径；ensure 为 true 时创建所有目录片段（不含 Name）。
	Path(locator Locator, ensure bool) (string, error)

	// Stat 返回条目信息。若不存在则返回 ErrNotFound，若是目录则返回 ErrUnexpectedDirectory。
	Stat(ctx context.Context, locator Locator) (*Entry, error)

	// Open 返回一个可流式读取的缓存条目，调用方负责关闭 Reader。
	Open(ctx context.Context, locator Locator) (*ReadResult, error)

	// Write 调用 fill 将正文写入临时文件，成功后 rename 到目标路径。
	// fill 返回的错误原样返回，临时文件总会被清理。
	Write(ctx context.Context, locator Locator, fill func(io.Writer) error, opts PutOptions) (*Entry, error)

	// Put 将 body 写入缓存，语义与 Write 相同。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除正文文件，不存在时不报错。
	Remove(ctx context.Context, locator Locator) error

	// Walk 按字典序遍历 prefix 下的所有条目，跳过写入中的临时文件。
	Walk(ctx context.Context, prefix Locator, fn func(Entry) error) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个缓存条目：目录片段 + 可选文件名，均相对于 Store 根目录。
type Locator struct {
	Segments []string
	Name     string
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator   `json:"locator"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader。Reader 同时支持 Seek 与 ReadAt，便于 zip 等格式随机读取。
type ReadResult struct {
	Entry  Entry
	Reader afero.File
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrUnexpectedDirectory 表示目标路径已被目录占用。
	ErrUnexpectedDirectory = errors.New("cache path is a directory")
	// ErrInvalidPath 表示 Locator 含有非法片段（分隔符、..、空串）。
	ErrInvalidPath = errors.New("invalid cache path")
	// ErrFilesystem 标记目录创建、临时文件写入、rename 等文件系统失败。
	ErrFilesystem = errors.New("filesystem error")
)

// WriteError 表示写入临时文件本身失败（磁盘已满等），与 fill 读取数据源失败区分开。
// 即使被传输层再次包装，errors.As 仍能取回它。
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

// Unwrap 同时暴露 ErrFilesystem 与底层原因。
func (e *WriteError) Unwrap() []error {
	return []error{ErrFilesystem, e.Err}
}
