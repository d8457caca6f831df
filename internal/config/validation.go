package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入路径解析与下载流程。
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: 配置为空", ErrInvalid)
	}
	if err := validateDirName(c.Name); err != nil {
		return newFieldError("Name", err.Error())
	}
	if err := validateDirName(c.ConfigName); err != nil {
		return newFieldError("ConfigName", err.Error())
	}
	if c.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}
	if c.FetchTimeout.DurationValue() < 0 {
		return newFieldError("FetchTimeout", "不能为负数")
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return newFieldError("S3AccessKey/S3SecretKey", "必须同时提供或同时留空")
	}
	if strings.Contains(c.S3Endpoint, "://") {
		return newFieldError("S3Endpoint", "只填写 host[:port]，不应包含协议头")
	}
	if err := validateUpstream(c.GoogleDriveURL); err != nil {
		return fmt.Errorf("%w: GoogleDriveURL: %v", ErrInvalid, err)
	}
	return nil
}

// validateDirName 确保目录名只是单个路径片段。
func validateDirName(name string) error {
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("不允许包含路径分隔符")
	}
	if name == "." || name == ".." {
		return errors.New("不允许使用相对目录")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
