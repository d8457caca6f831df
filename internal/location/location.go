package location

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/config"
)

// DefaultName 是未设置 STOW_NAME 时主目录下的数据目录名。
const DefaultName = ".data"

// Source 记录 Base Location 由哪条规则决定。
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceHomeEnv  Source = "home_env"
	SourceNameEnv  Source = "name_env"
	SourceAppDirs  Source = "appdirs"
	SourceDefault  Source = "default"
)

// Options 描述解析 Base Location 所需的全部输入，零值字段使用进程环境。
type Options struct {
	// Root 为调用方显式指定的根目录，优先级最高。
	Root string
	// Home 对应 STOW_HOME。
	Home string
	// Name 对应 STOW_NAME。
	Name string
	// UseAppDirs 对应 STOW_USE_APPDIRS。
	UseAppDirs bool

	Fs      afero.Fs
	HomeDir func() (string, error)
	Getenv  func(string) string
}

// FromConfig 将运行时配置转换为解析参数。
func FromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Home:       cfg.Home,
		Name:       cfg.Name,
		UseAppDirs: cfg.UseAppDirs,
	}
}

// Location 是解析完成后的 Base Location，构造后不再变化。
type Location struct {
	Dir    string `json:"dir"`
	Source Source `json:"source"`
	// IgnoredName 为 true 表示同时设置了 STOW_NAME，但被更高优先级的根目录覆盖。
	IgnoredName bool `json:"ignored_name"`

	useAppDirs bool
	dataDir    string
}

// Resolve 按优先级计算 Base Location，创建目录并在缺失时写入 README.md。
func Resolve(opts Options) (Location, error) {
	opts = withDefaults(opts)

	if err := ValidateName(opts.Name); err != nil {
		return Location{}, config.FieldError{Field: "Name", Reason: err.Error()}
	}

	home, err := opts.HomeDir()
	if err != nil && ((opts.Root == "" && opts.Home == "") || opts.UseAppDirs) {
		return Location{}, fmt.Errorf("%w: 无法定位用户主目录: %v", config.ErrInvalid, err)
	}

	loc := Location{useAppDirs: opts.UseAppDirs}
	if opts.UseAppDirs {
		loc.dataDir = platformDataDir(opts.Getenv, home)
	}

	switch {
	case opts.Root != "":
		loc.Dir, loc.Source = opts.Root, SourceExplicit
	case opts.Home != "":
		loc.Dir, loc.Source = opts.Home, SourceHomeEnv
	case opts.Name != "":
		loc.Dir, loc.Source = filepath.Join(home, opts.Name), SourceNameEnv
	case opts.UseAppDirs:
		loc.Dir, loc.Source = loc.dataDir, SourceAppDirs
	default:
		loc.Dir, loc.Source = filepath.Join(home, DefaultName), SourceDefault
	}
	loc.IgnoredName = opts.Name != "" && (loc.Source == SourceExplicit || loc.Source == SourceHomeEnv)

	loc.Dir, err = expandHome(loc.Dir, home)
	if err != nil {
		return Location{}, err
	}
	if loc.Dir, err = filepath.Abs(loc.Dir); err != nil {
		return Location{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	if err := opts.Fs.MkdirAll(loc.Dir, 0o755); err != nil {
		return Location{}, fmt.Errorf("%w: 创建数据目录 %s 失败: %v", cache.ErrFilesystem, loc.Dir, err)
	}
	if err := ensureReadme(opts.Fs, loc.Dir); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// ModuleDir 计算模块根目录：<NAME>_HOME 优先；启用 appdirs 且根目录来自 appdirs 时
// 使用平台数据目录下的同名目录；否则为 <Dir>/<name>。目录本身不在此处创建。
func (l Location) ModuleDir(name string, getenv func(string) string) (string, error) {
	if err := ValidateModuleName(name); err != nil {
		return "", err
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if override := getenv(ModuleEnvVar(name)); override != "" {
		return filepath.Abs(override)
	}
	if l.useAppDirs && l.Source == SourceAppDirs {
		return filepath.Join(l.dataDir, name), nil
	}
	return filepath.Join(l.Dir, name), nil
}

// ModuleEnvVar 返回模块级根目录覆盖变量名，例如 pokemon -> POKEMON_HOME。
func ModuleEnvVar(name string) string {
	return strings.ToUpper(name) + "_HOME"
}

// ValidateModuleName 拒绝包含 "." 或路径分隔符的模块名。
func ValidateModuleName(name string) error {
	if name == "" {
		return config.FieldError{Field: "Module", Reason: "模块名不能为空"}
	}
	if strings.Contains(name, ".") {
		return config.FieldError{Field: "Module", Reason: fmt.Sprintf("模块名不能包含 \".\": %s", name)}
	}
	if strings.ContainsAny(name, `/\`) {
		return config.FieldError{Field: "Module", Reason: fmt.Sprintf("模块名不能包含路径分隔符: %s", name)}
	}
	return nil
}

// ValidateName 校验 STOW_NAME，空值表示未设置。
func ValidateName(name string) error {
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

func withDefaults(opts Options) Options {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.HomeDir == nil {
		opts.HomeDir = os.UserHomeDir
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	return opts
}

func expandHome(path, home string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	if home == "" {
		return "", fmt.Errorf("%w: 无法展开 %s", config.ErrInvalid, path)
	}
	return filepath.Join(home, path[1:]), nil
}

func ensureReadme(fsys afero.Fs, dir string) error {
	path := filepath.Join(dir, "README.md")
	if _, err := fsys.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %v", cache.ErrFilesystem, path, err)
	}
	if err := afero.WriteFile(fsys, path, []byte(readmeText), 0o644); err != nil {
		return fmt.Errorf("%w: 写入 %s 失败: %v", cache.ErrFilesystem, path, err)
	}
	return nil
}
