package stow

import (
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/config"
	"github.com/any-hub/stow/internal/fetch"
	"github.com/any-hub/stow/internal/location"
	"github.com/any-hub/stow/internal/logging"
)

// Options 控制 Stow 的构造，零值即按环境变量与默认值工作。
type Options struct {
	// Root 显式指定 Base Location，优先于所有环境变量。
	Root string
	// Config 为空时调用 config.Load("") 从 STOW_* 环境变量读取。
	Config *config.Config
	// Logger 为空时丢弃日志。
	Logger *logrus.Logger
	// Fetcher 为空时使用内置的 http/https/file/s3/gdrive 实现。
	Fetcher Fetcher

	Fs      afero.Fs
	Getenv  func(string) string
	HomeDir func() (string, error)
}

// Stow 持有一次解析得到的 Base Location 与共享依赖，构造后不可变，可并发使用。
type Stow struct {
	loc     location.Location
	cfg     *config.Config
	logger  *logrus.Logger
	fetcher Fetcher
	fs      afero.Fs
	getenv  func(string) string
}

// New 解析 Base Location 并创建目录。
func New(opts Options) (*Stow, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	locOpts := location.FromConfig(cfg)
	locOpts.Root = opts.Root
	locOpts.Fs = fsys
	locOpts.Getenv = getenv
	locOpts.HomeDir = opts.HomeDir
	loc, err := location.Resolve(locOpts)
	if err != nil {
		return nil, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		registry, err := fetch.NewDefaultRegistry(cfg, logger)
		if err != nil {
			return nil, err
		}
		fetcher = registry
	}

	logger.WithFields(logging.LocationFields(loc.Dir, string(loc.Source), loc.IgnoredName)).Debug("base location resolved")

	return &Stow{
		loc:     loc,
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		fs:      fsys,
		getenv:  getenv,
	}, nil
}

// Location 返回 Base Location。
func (s *Stow) Location() Location {
	return s.loc
}

// Config 返回构造时使用的运行时配置。
func (s *Stow) Config() *config.Config {
	return s.cfg
}

// Module 返回名为 name 的模块句柄并创建其目录。subkeys 非空时返回对应的子模块。
func (s *Stow) Module(name string, subkeys ...string) (*Module, error) {
	dir, err := s.loc.ModuleDir(name, s.getenv)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewStore(s.fs, dir)
	if err != nil {
		return nil, err
	}
	mod := &Module{name: name, stow: s, store: store}
	if len(subkeys) == 0 {
		return mod, nil
	}
	return mod.Submodule(subkeys...)
}

// ModuleDir 返回模块目录但不创建它。
func (s *Stow) ModuleDir(name string) (string, error) {
	return s.loc.ModuleDir(name, s.getenv)
}

// Join 等价于 Module(module).Join(subkeys, name, ensure)。
func (s *Stow) Join(module string, subkeys []string, name string, ensure bool) (string, error) {
	mod, err := s.Module(module)
	if err != nil {
		return "", err
	}
	return mod.Join(subkeys, name, ensure)
}

// Modules 列出 Base Location 下已有的模块目录名。
func (s *Stow) Modules() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.loc.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取 %s 失败: %v", ErrFilesystem, s.loc.Dir, err)
	}
	var names []string
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		if location.ValidateModuleName(info.Name()) != nil {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}
