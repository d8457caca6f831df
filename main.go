package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/stow/internal/config"
	"github.com/any-hub/stow/internal/logging"
	"github.com/any-hub/stow/internal/server"
	"github.com/any-hub/stow/internal/server/routes"
	"github.com/any-hub/stow/internal/version"
	"github.com/any-hub/stow/stow"
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试：配置错误返回 2，其余失败返回 1。
func run(args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stdErr, "错误: %v\n", err)
		if errors.Is(err, stow.ErrConfig) {
			return 2
		}
		return 1
	}
	return 0
}

// cliState 汇总全局标志与懒加载的依赖，子命令共享同一份配置与 logger。
type cliState struct {
	configFlag string
	root       string

	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
}

// resolveConfigPath 计算配置文件路径：--config 优先，其次 STOW_CONFIG；都为空时只读环境变量。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("STOW_CONFIG")
}

func (s *cliState) load() error {
	if s.cfg != nil {
		return nil
	}
	s.configPath = resolveConfigPath(s.configFlag)
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		return fmt.Errorf("%w: 初始化日志失败: %v", stow.ErrConfig, err)
	}
	s.cfg = cfg
	s.logger = logger
	return nil
}

func (s *cliState) stow() (*stow.Stow, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return stow.New(stow.Options{
		Root:   s.root,
		Config: s.cfg,
		Logger: s.logger,
	})
}

func newRootCommand() *cobra.Command {
	state := &cliState{}

	cmd := &cobra.Command{
		Use:           "stow",
		Short:         "Convention-driven local data cache",
		Long:          "stow resolves per-module data directories and downloads remote files into them exactly once.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&state.configFlag, "config", "", "TOML 配置文件路径（可被 STOW_CONFIG 指定）")
	cmd.PersistentFlags().StringVar(&state.root, "root", "", "显式指定数据根目录，优先于 STOW_HOME")

	cmd.AddCommand(versionCmd())
	cmd.AddCommand(checkCmd(state))
	cmd.AddCommand(dirCmd(state))
	cmd.AddCommand(modulesCmd(state))
	cmd.AddCommand(joinCmd(state))
	cmd.AddCommand(ensureCmd(state))
	cmd.AddCommand(configCmd(state))
	cmd.AddCommand(serveCmd(state))
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func checkCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.load(); err != nil {
				return err
			}
			fields := logging.BaseFields("check_config", state.configPath)
			fields["home_source"] = state.cfg.HomeSource()
			fields["s3_credentials"] = state.cfg.HasS3Credentials()
			fields["result"] = "ok"
			state.logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func dirCmd(state *cliState) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "dir",
		Short: "Print the base data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.stow()
			if err != nil {
				return err
			}
			loc := s.Location()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), loc)
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc.Dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出来源等详细信息")
	return cmd
}

func modulesCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List module directories under the base directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.stow()
			if err != nil {
				return err
			}
			names, err := s.Modules()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func joinCmd(state *cliState) *cobra.Command {
	var (
		name     string
		noCreate bool
	)
	cmd := &cobra.Command{
		Use:   "join <module> [subkey...]",
		Short: "Print (and create) a module directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.stow()
			if err != nil {
				return err
			}
			path, err := s.Join(args[0], args[1:], name, !noCreate)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "追加的文件名（不会被创建）")
	cmd.Flags().BoolVar(&noCreate, "no-create", false, "只计算路径，不创建目录")
	return cmd
}

func ensureCmd(state *cliState) *cobra.Command {
	var (
		url      string
		name     string
		ver      string
		force    bool
		headers  []string
		gunzip   bool
		untarDir string
	)
	cmd := &cobra.Command{
		Use:   "ensure <module> [subkey...] --url <url>",
		Short: "Download a file into a module directory unless it already exists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.stow()
			if err != nil {
				return err
			}
			mod, err := s.Module(args[0])
			if err != nil {
				return err
			}
			header, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			req := stow.Request{
				Subkeys: args[1:],
				Name:    name,
				URL:     url,
				Version: ver,
				Force:   force,
				Header:  header,
			}

			var path string
			switch {
			case gunzip:
				path, err = mod.EnsureGunzip(cmd.Context(), req, true)
			case untarDir != "":
				dir := untarDir
				if dir == "-" {
					dir = ""
				}
				path, err = mod.EnsureUntar(cmd.Context(), req, dir)
			default:
				path, err = mod.Ensure(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "远端地址：http(s)://、file://、s3://bucket/key、gdrive://<id>")
	cmd.Flags().StringVar(&name, "name", "", "缓存文件名，默认取 URL 最后一段")
	cmd.Flags().StringVar(&ver, "version", "", "版本号，作为第一级子目录")
	cmd.Flags().BoolVar(&force, "force", false, "即使文件已存在也重新下载")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "附加请求头，形如 'Key: Value'")
	cmd.Flags().BoolVar(&gunzip, "gunzip", false, "下载 .gz 后解压并删除压缩包")
	cmd.Flags().StringVar(&untarDir, "untar", "", "下载 tar(.gz) 后解压到同级目录；'-' 表示使用默认目录名")
	cmd.MarkFlagsMutuallyExclusive("gunzip", "untar")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func configCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or write per-module settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <module> <key>",
		Short: "Print a setting (environment variable first, then INI files)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := state.settings()
			if err != nil {
				return err
			}
			value, err := settings.Require(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <module> <key> <value>",
		Short: "Persist a setting into <config dir>/<module>.ini",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := state.settings()
			if err != nil {
				return err
			}
			return settings.Set(args[0], args[1], args[2])
		},
	})
	return cmd
}

func (s *cliState) settings() (*config.Settings, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return config.NewSettings(s.cfg)
}

func serveCmd(state *cliState) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP browser for the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.stow()
			if err != nil {
				return err
			}
			app, err := server.NewApp(server.AppOptions{Logger: state.logger, Stow: s})
			if err != nil {
				return err
			}
			routes.RegisterModuleRoutes(app, s)

			fields := logging.BaseFields("listen", state.configPath)
			fields["addr"] = listen
			fields["base"] = s.Location().Dir
			fields["version"] = version.Full()
			state.logger.WithFields(fields).Info("Fiber 服务启动")
			return app.Listen(listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:5050", "监听地址")
	return cmd
}

// parseHeaders 解析 'Key: Value' 形式的请求头。
func parseHeaders(raw []string) (http.Header, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	header := make(http.Header, len(raw))
	for _, item := range raw {
		key, value, ok := strings.Cut(item, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, config.FieldError{Field: "Header", Reason: fmt.Sprintf("格式应为 'Key: Value'，得到 %q", item)}
		}
		header.Add(key, strings.TrimSpace(value))
	}
	return header, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
