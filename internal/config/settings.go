package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// MissingSettingError 表示环境变量与 INI 文件中都找不到某个模块配置项。
type MissingSettingError struct {
	Module string
	Key    string
	Path   string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("找不到配置 %s/%s：可设置环境变量 %s，执行 `stow config set %s %s <value>`，或在 %s 的 [%s] 段中填写 %s",
		e.Module, e.Key, settingEnvVar(e.Module, e.Key), e.Module, e.Key, e.Path, e.Module, e.Key)
}

// Unwrap 让缺失配置也归入配置类错误。
func (e *MissingSettingError) Unwrap() error {
	return ErrInvalid
}

// Settings 读写模块级配置：环境变量 <MODULE>_<KEY> 优先，其次是配置目录下的 INI 文件。
type Settings struct {
	dir    string
	getenv func(string) (string, bool)
}

// NewSettings 根据 ConfigHome/ConfigName 计算配置目录并确保其存在。
func NewSettings(cfg *Config) (*Settings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: 配置为空", ErrInvalid)
	}
	dir := cfg.ConfigHome
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: 无法定位用户主目录: %v", ErrInvalid, err)
		}
		dir = filepath.Join(home, cfg.ConfigName)
	}
	dir, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建配置目录失败: %w", err)
	}
	return &Settings{dir: dir, getenv: os.LookupEnv}, nil
}

// Dir 返回模块配置所在目录。
func (s *Settings) Dir() string {
	return s.dir
}

// Lookup 返回配置值及其是否存在。
func (s *Settings) Lookup(module, key string) (string, bool, error) {
	if module == "" || key == "" {
		return "", false, newFieldError(settingField(module, key), "模块名与键都不能为空")
	}
	if value, ok := s.getenv(settingEnvVar(module, key)); ok {
		return value, true, nil
	}

	v, err := s.load(module)
	if err != nil {
		return "", false, err
	}
	settingKey := module + "." + key
	if !v.IsSet(settingKey) {
		return "", false, nil
	}
	return v.GetString(settingKey), true, nil
}

// Require 与 Lookup 相同，但缺失时返回 MissingSettingError。
func (s *Settings) Require(module, key string) (string, error) {
	value, ok, err := s.Lookup(module, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &MissingSettingError{Module: module, Key: key, Path: s.filePath(module)}
	}
	return value, nil
}

// String 返回字符串配置，缺失时使用 def。
func (s *Settings) String(module, key, def string) (string, error) {
	value, ok, err := s.Lookup(module, key)
	if err != nil || !ok {
		return def, err
	}
	return value, nil
}

// Bool 解析 t/true/yes/1 等布尔写法，无法识别时返回配置错误。
func (s *Settings) Bool(module, key string, def bool) (bool, error) {
	value, ok, err := s.Lookup(module, key)
	if err != nil || !ok {
		return def, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	parsed, err := cast.ToBoolE(value)
	if err != nil {
		return def, newFieldError(settingField(module, key), fmt.Sprintf("无法解析为布尔值: %s", value))
	}
	return parsed, nil
}

// Int 返回整数配置。
func (s *Settings) Int(module, key string, def int) (int, error) {
	value, ok, err := s.Lookup(module, key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := cast.ToIntE(strings.TrimSpace(value))
	if err != nil {
		return def, newFieldError(settingField(module, key), fmt.Sprintf("无法解析为整数: %s", value))
	}
	return parsed, nil
}

// Float64 返回浮点配置。
func (s *Settings) Float64(module, key string, def float64) (float64, error) {
	value, ok, err := s.Lookup(module, key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := cast.ToFloat64E(strings.TrimSpace(value))
	if err != nil {
		return def, newFieldError(settingField(module, key), fmt.Sprintf("无法解析为浮点数: %s", value))
	}
	return parsed, nil
}

// Set 将配置写入 <dir>/<module>.ini 的 [module] 段，保留文件中已有的其它键。
// 形如 zenodo:sandbox 的模块写入 zenodo.ini。
func (s *Settings) Set(module, key, value string) error {
	if module == "" || key == "" {
		return newFieldError(settingField(module, key), "模块名与键都不能为空")
	}
	path := s.filePath(module)

	v := viper.New()
	v.SetConfigType("ini")
	if err := mergeINI(v, path); err != nil {
		return err
	}
	v.Set(module+"."+key, value)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// load 按固定顺序合并候选 INI 文件，后读取的文件覆盖先读取的值。
func (s *Settings) load(module string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("ini")
	for _, path := range s.candidateFiles(module) {
		if err := mergeINI(v, path); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *Settings) candidateFiles(module string) []string {
	base := fileStem(module)
	return []string{
		filepath.Join(s.dir, "config.cfg"),
		filepath.Join(s.dir, "config.ini"),
		filepath.Join(s.dir, "stow.cfg"),
		filepath.Join(s.dir, "stow.ini"),
		filepath.Join(s.dir, base+".cfg"),
		filepath.Join(s.dir, base+".ini"),
		filepath.Join(s.dir, base, base+".cfg"),
		filepath.Join(s.dir, base, base+".ini"),
		filepath.Join(s.dir, base, "conf.ini"),
		filepath.Join(s.dir, base, "config.ini"),
		filepath.Join(s.dir, base, "conf.cfg"),
		filepath.Join(s.dir, base, "config.cfg"),
	}
}

func (s *Settings) filePath(module string) string {
	return filepath.Join(s.dir, fileStem(module)+".ini")
}

func mergeINI(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: 解析 %s 失败: %v", ErrInvalid, path, err)
	}
	return nil
}

func fileStem(module string) string {
	if idx := strings.Index(module, ":"); idx >= 0 {
		return module[:idx]
	}
	return module
}

func settingEnvVar(module, key string) string {
	return strings.ToUpper(module) + "_" + strings.ToUpper(key)
}

// expandHome 展开 ~ 前缀。
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: 无法展开 ~: %v", ErrInvalid, err)
	}
	return filepath.Join(home, path[1:]), nil
}
