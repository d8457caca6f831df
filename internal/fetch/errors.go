package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrTransfer 标记所有传输失败，调用方可以通过 errors.Is 统一识别。
	ErrTransfer = errors.New("transfer failed")
	// ErrNotFound 表示远端资源不存在（HTTP 404、S3 NoSuchKey、本地文件缺失）。
	ErrNotFound = errors.New("remote resource not found")
	// ErrUnsupportedScheme 表示没有为 URL 的 scheme 注册 Fetcher。
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrDuplicateScheme 表示同一 scheme 重复注册。
	ErrDuplicateScheme = errors.New("scheme already registered")
)

// TransferError 记录失败的 URL、HTTP 状态（非 HTTP 为 0）与底层原因。
type TransferError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap 同时暴露 ErrTransfer 与底层原因，便于 errors.Is 匹配 ErrNotFound 或 context.Canceled。
func (e *TransferError) Unwrap() []error {
	return []error{ErrTransfer, e.Err}
}

func statusError(url string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	if status == 404 {
		err = ErrNotFound
	}
	return &TransferError{URL: url, StatusCode: status, Err: err}
}

// asTransferError 保证返回值总是 *TransferError。
func asTransferError(url string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	return &TransferError{URL: url, Err: err}
}
