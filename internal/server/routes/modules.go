package routes

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/stow/internal/fetch"
	"github.com/any-hub/stow/internal/server"
	"github.com/any-hub/stow/stow"
)

// RegisterModuleRoutes 暴露 /-/modules 诊断接口，列出模块及其缓存文件，并允许显式触发 Ensure。
func RegisterModuleRoutes(app *fiber.App, s *stow.Stow) {
	if app == nil || s == nil {
		return
	}

	app.Get("/-/modules", func(c fiber.Ctx) error {
		names, err := s.Modules()
		if err != nil {
			return server.RenderError(c, fiber.StatusInternalServerError, "list_failed", err)
		}
		if names == nil {
			names = []string{}
		}
		return c.JSON(fiber.Map{
			"base":    s.Location().Dir,
			"modules": names,
		})
	})

	app.Get("/-/modules/:module", func(c fiber.Ctx) error {
		mod, ok, err := server.LookupModule(s, c.Params("module"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_module", err)
		}
		if !ok {
			return server.RenderError(c, fiber.StatusNotFound, "module_not_found", nil)
		}
		files, err := mod.Files(c.Context(), splitSubkeys(c.Query("subkeys"))...)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return server.RenderError(c, fiber.StatusNotFound, "directory_not_found", nil)
			}
			if errors.Is(err, stow.ErrConfig) {
				return server.RenderError(c, fiber.StatusBadRequest, "invalid_path", err)
			}
			return server.RenderError(c, fiber.StatusInternalServerError, "list_failed", err)
		}
		return c.JSON(encodeModule(mod, files))
	})

	app.Post("/-/modules/:module/ensure", func(c fiber.Ctx) error {
		var body ensureRequest
		if err := c.Bind().JSON(&body); err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_body", err)
		}
		if body.URL != "" && !remoteSchemes[fetch.Scheme(body.URL)] {
			return server.RenderError(c, fiber.StatusBadRequest, "unsupported_scheme", nil)
		}
		mod, err := s.Module(c.Params("module"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_module", err)
		}
		path, err := mod.Ensure(c.Context(), body.request())
		if err != nil {
			return server.RenderError(c, ensureStatus(err), "ensure_failed", err)
		}
		return c.JSON(fiber.Map{"module": mod.Name(), "path": path})
	})
}

// remoteSchemes 是 HTTP 接口允许的来源。file:// 会把服务进程可读的本地文件暴露给调用方，因此不在其中。
var remoteSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"s3":     true,
	"gdrive": true,
}

type modulePayload struct {
	Name  string        `json:"name"`
	Dir   string        `json:"dir"`
	Files []filePayload `json:"files"`
	Bytes int64         `json:"bytes"`
}

type filePayload struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time"`
}

type ensureRequest struct {
	URL     string   `json:"url"`
	Name    string   `json:"name"`
	Subkeys []string `json:"subkeys"`
	Version string   `json:"version"`
	Force   bool     `json:"force"`
}

func (r ensureRequest) request() stow.Request {
	return stow.Request{
		URL:     r.URL,
		Name:    r.Name,
		Subkeys: r.Subkeys,
		Version: r.Version,
		Force:   r.Force,
	}
}

func encodeModule(mod *stow.Module, files []stow.FileInfo) modulePayload {
	payload := modulePayload{
		Name:  mod.Name(),
		Dir:   mod.Dir(),
		Files: make([]filePayload, 0, len(files)),
	}
	for _, file := range files {
		rel := strings.Join(append(append([]string{}, file.Subkeys...), file.Name), "/")
		payload.Files = append(payload.Files, filePayload{
			Path:    rel,
			Size:    file.Size,
			ModTime: file.ModTime.UTC().Format(time.RFC3339),
		})
		payload.Bytes += file.Size
	}
	return payload
}

// splitSubkeys 解析 ?subkeys=a/b 形式的子目录参数。
func splitSubkeys(raw string) []string {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "/")
}

func ensureStatus(err error) int {
	switch {
	case errors.Is(err, stow.ErrConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, stow.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, stow.ErrTransfer):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
