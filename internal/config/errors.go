package config

import (
	"errors"
	"fmt"
)

// ErrInvalid 标记所有配置类错误，调用方可以通过 errors.Is 统一识别。
var ErrInvalid = errors.New("invalid configuration")

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap 让 FieldError 可以被 errors.Is(err, ErrInvalid) 匹配。
func (e FieldError) Unwrap() error {
	return ErrInvalid
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// settingField 用于拼接模块级字段路径，方便输出 Module[xxx].Key 形式。
func settingField(module, key string) string {
	if module == "" {
		return fmt.Sprintf("Module[].%s", key)
	}
	return fmt.Sprintf("Module[%s].%s", module, key)
}
