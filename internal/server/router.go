package server

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stow/internal/logging"
	"github.com/any-hub/stow/stow"
)

// AppOptions 描述缓存浏览服务的依赖。
type AppOptions struct {
	Logger *logrus.Logger
	Stow   *stow.Stow
}

const contextKeyRequestID = "_stow_request_id"

// NewApp 构建带 recover、请求 ID 与访问日志的 Fiber 应用，并注册位置与文件路由。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Stow == nil {
		return nil, errors.New("stow instance is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	app.Get("/-/location", func(c fiber.Ctx) error {
		return c.JSON(opts.Stow.Location())
	})
	app.Get("/files/:module/*", fileHandler(opts.Stow))

	return app, nil
}

// requestContextMiddleware 生成请求 ID 并在请求结束后记录访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		entry := logger.WithFields(logging.RequestFields(reqID, c.Method(), c.Path(), status))
		if err != nil {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Debug("request served")
		}
		return err
	}
}

// fileHandler 原样返回 /files/<module>/<subkeys...>/<name> 对应的缓存文件。
func fileHandler(s *stow.Stow) fiber.Handler {
	return func(c fiber.Ctx) error {
		mod, ok, err := LookupModule(s, c.Params("module"))
		if err != nil {
			return RenderError(c, fiber.StatusBadRequest, "invalid_module", err)
		}
		if !ok {
			return RenderError(c, fiber.StatusNotFound, "module_not_found", nil)
		}

		rel := strings.Trim(c.Params("*"), "/")
		if rel == "" {
			return RenderError(c, fiber.StatusBadRequest, "file_required", nil)
		}
		parts := strings.Split(path.Clean(rel), "/")
		filePath, err := mod.Join(parts[:len(parts)-1], parts[len(parts)-1], false)
		if err != nil {
			return RenderError(c, fiber.StatusBadRequest, "invalid_path", err)
		}

		info, err := os.Stat(filePath)
		if err != nil || info.IsDir() {
			return RenderError(c, fiber.StatusNotFound, "file_not_found", nil)
		}
		return c.Response().SendFile(filePath)
	}
}

// LookupModule 返回已存在的模块句柄；模块目录不存在时 ok 为 false，且不会创建目录。
func LookupModule(s *stow.Stow, name string) (*stow.Module, bool, error) {
	dir, err := s.ModuleDir(name)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, false, nil
	}
	mod, err := s.Module(name)
	if err != nil {
		return nil, false, err
	}
	return mod, true, nil
}

// RenderError 输出统一的 JSON 错误体。
func RenderError(c fiber.Ctx, status int, code string, err error) error {
	payload := fiber.Map{"error": code}
	if err != nil {
		payload["detail"] = err.Error()
	}
	return c.Status(status).JSON(payload)
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
