package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 是 TOML 文件与 STOW_* 环境变量映射后的整体结构，进程内只加载一次。
type Config struct {
	// Home 对应 STOW_HOME，完全自定义的数据根目录，优先级最高。
	Home string `mapstructure:"Home"`
	// Name 对应 STOW_NAME，用户主目录下的替代目录名（默认 .data）。
	Name string `mapstructure:"Name"`
	// UseAppDirs 对应 STOW_USE_APPDIRS，启用平台约定的数据目录。
	UseAppDirs bool `mapstructure:"UseAppDirs"`

	// ConfigHome/ConfigName 决定模块级 INI 配置所在目录。
	ConfigHome string `mapstructure:"ConfigHome"`
	ConfigName string `mapstructure:"ConfigName"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	FetchTimeout Duration `mapstructure:"FetchTimeout"`
	UserAgent    string   `mapstructure:"UserAgent"`

	S3Endpoint  string `mapstructure:"S3Endpoint"`
	S3Region    string `mapstructure:"S3Region"`
	S3AccessKey string `mapstructure:"S3AccessKey"`
	S3SecretKey string `mapstructure:"S3SecretKey"`
	S3Insecure  bool   `mapstructure:"S3Insecure"`

	GoogleDriveURL string `mapstructure:"GoogleDriveURL"`
}

// HasS3Credentials 表示是否显式配置了 S3 静态凭证。
func (c Config) HasS3Credentials() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

// HomeSource 输出当前生效的数据目录覆盖来源，供日志字段使用。
func (c Config) HomeSource() string {
	switch {
	case c.Home != "":
		return "home_env"
	case c.Name != "":
		return "name_env"
	case c.UseAppDirs:
		return "appdirs"
	default:
		return "default"
	}
}
