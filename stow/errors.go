package stow

import (
	"errors"

	"github.com/any-hub/stow/internal/archive"
	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/config"
	"github.com/any-hub/stow/internal/decode"
	"github.com/any-hub/stow/internal/fetch"
)

var (
	// ErrConfig 标记配置类错误：非法模块名、版本号、环境变量等。
	ErrConfig = config.ErrInvalid
	// ErrFilesystem 标记目录创建、写入、rename 失败。
	ErrFilesystem = cache.ErrFilesystem
	// ErrUnexpectedDirectory 表示目标文件路径被目录占用。
	ErrUnexpectedDirectory = cache.ErrUnexpectedDirectory
	// ErrTransfer 标记远端传输失败，失败时不会留下临时文件。
	ErrTransfer = fetch.ErrTransfer
	// ErrNotFound 表示远端资源不存在，总是与 ErrTransfer 一起出现。
	ErrNotFound = fetch.ErrNotFound
	// ErrDecode 标记缓存文件无法按指定格式解码，缓存文件会被保留。
	ErrDecode = decode.ErrDecode
	// ErrMemberNotFound 表示归档中不存在请求的成员。
	ErrMemberNotFound = archive.ErrMemberNotFound
	// ErrProviderNoFile 表示 EnsureCustom 的 provider 返回成功却没有生成文件。
	ErrProviderNoFile = errors.New("provider did not create the file")
)

type (
	// TransferError 携带失败的 URL 与 HTTP 状态。
	TransferError = fetch.TransferError
	// DecodeError 携带格式、文件路径与探测到的 MIME 类型。
	DecodeError = decode.DecodeError
)
