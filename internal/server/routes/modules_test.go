package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/stow/internal/config"
	"github.com/any-hub/stow/internal/server"
	"github.com/any-hub/stow/stow"
)

func TestListModules(t *testing.T) {
	app, s := newRoutesApp(t)
	for _, name := range []string{"rhea", "pokemon"} {
		_, err := s.Module(name)
		require.NoError(t, err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/-/modules", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Base    string   `json:"base"`
		Modules []string `json:"modules"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, s.Location().Dir, payload.Base)
	require.Equal(t, []string{"pokemon", "rhea"}, payload.Modules)
}

func TestModuleDetailListsFiles(t *testing.T) {
	app, s := newRoutesApp(t)
	mod, err := s.Module("pokemon")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = mod.DumpJSON(ctx, nil, "root.json", 1)
	require.NoError(t, err)
	_, err = mod.DumpJSON(ctx, []string{"state", "v1"}, "deep.json", 2)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/modules/pokemon", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload modulePayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "pokemon", payload.Name)
	var paths []string
	for _, f := range payload.Files {
		paths = append(paths, f.Path)
	}
	require.ElementsMatch(t, []string{"root.json", "state/v1/deep.json"}, paths)
	require.Positive(t, payload.Bytes)

	resp, err = app.Test(httptest.NewRequest("GET", "/-/modules/pokemon?subkeys=state/v1", nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Files, 1)

	resp, err = app.Test(httptest.NewRequest("GET", "/-/modules/pokemon?subkeys=nope", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/-/modules/ghost", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEnsureEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/table.tsv" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "a\tb\n")
	}))
	t.Cleanup(upstream.Close)

	app, s := newRoutesApp(t)

	body := `{"url":"` + upstream.URL + `/data/table.tsv","subkeys":["raw"]}`
	req := httptest.NewRequest("POST", "/-/modules/pokemon/ensure", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Path string `json:"path"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	expected, err := s.Join("pokemon", []string{"raw"}, "table.tsv", false)
	require.NoError(t, err)
	require.Equal(t, expected, payload.Path)

	missing := `{"url":"` + upstream.URL + `/data/absent.tsv"}`
	req = httptest.NewRequest("POST", "/-/modules/pokemon/ensure", strings.NewReader(missing))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest("POST", "/-/modules/pokemon/ensure", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEnsureEndpointRejectsLocalFiles(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top-secret"), 0o600))

	app, s := newRoutesApp(t)
	for _, raw := range []string{"file://" + filepath.ToSlash(secret), "FILE://" + filepath.ToSlash(secret), "ftp://example.org/x"} {
		body := `{"url":"` + raw + `"}`
		req := httptest.NewRequest("POST", "/-/modules/leak/ensure", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, raw)
		payload, _ := io.ReadAll(resp.Body)
		require.Contains(t, string(payload), "unsupported_scheme")
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/files/leak/secret.txt", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	names, err := s.Modules()
	require.NoError(t, err)
	require.NotContains(t, names, "leak")
}

func TestSplitSubkeys(t *testing.T) {
	require.Nil(t, splitSubkeys(""))
	require.Nil(t, splitSubkeys("/"))
	require.Equal(t, []string{"a", "b"}, splitSubkeys("/a/b/"))
}

func newRoutesApp(t *testing.T) (*fiber.App, *stow.Stow) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s, err := stow.New(stow.Options{
		Root:   t.TempDir(),
		Config: &config.Config{UserAgent: "stow-test"},
		Logger: logger,
		Getenv: func(string) string { return "" },
	})
	require.NoError(t, err)
	app, err := server.NewApp(server.AppOptions{Logger: logger, Stow: s})
	require.NoError(t, err)
	RegisterModuleRoutes(app, s)
	return app, s
}
