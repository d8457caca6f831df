package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 将配置键映射到 STOW_* 环境变量，环境变量优先于配置文件。
var envBindings = map[string]string{
	"Home":           "STOW_HOME",
	"Name":           "STOW_NAME",
	"UseAppDirs":     "STOW_USE_APPDIRS",
	"ConfigHome":     "STOW_CONFIG_HOME",
	"ConfigName":     "STOW_CONFIG_NAME",
	"LogLevel":       "STOW_LOG_LEVEL",
	"LogFilePath":    "STOW_LOG_FILE",
	"FetchTimeout":   "STOW_FETCH_TIMEOUT",
	"UserAgent":      "STOW_USER_AGENT",
	"S3Endpoint":     "STOW_S3_ENDPOINT",
	"S3Region":       "STOW_S3_REGION",
	"S3AccessKey":    "STOW_S3_ACCESS_KEY",
	"S3SecretKey":    "STOW_S3_SECRET_KEY",
	"S3Insecure":     "STOW_S3_INSECURE",
	"GoogleDriveURL": "STOW_GDRIVE_URL",
}

// Load 读取可选的 TOML 配置文件并叠加 STOW_* 环境变量，同时注入默认值与校验逻辑。
// path 为空时只使用环境变量与默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("%w: 解析配置失败: %v", ErrInvalid, err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ConfigName", ".config")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("FetchTimeout", "0s")
	v.SetDefault("UserAgent", "stow")
	v.SetDefault("S3Endpoint", "s3.amazonaws.com")
	v.SetDefault("GoogleDriveURL", "https://docs.google.com/uc")
}

func applyDefaults(c *Config) {
	if c.ConfigName == "" {
		c.ConfigName = ".config"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.UserAgent == "" {
		c.UserAgent = "stow"
	}
	if c.S3Endpoint == "" {
		c.S3Endpoint = "s3.amazonaws.com"
	}
	if c.GoogleDriveURL == "" {
		c.GoogleDriveURL = "https://docs.google.com/uc"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
