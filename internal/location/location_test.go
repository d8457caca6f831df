package location

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/any-hub/stow/internal/cache"
	"github.com/any-hub/stow/internal/config"
)

func TestResolveDefaultsToDotData(t *testing.T) {
	home := t.TempDir()
	loc, err := Resolve(testOptions(home))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if loc.Dir != filepath.Join(home, ".data") {
		t.Fatalf("unexpected dir: %s", loc.Dir)
	}
	if loc.Source != SourceDefault || loc.IgnoredName {
		t.Fatalf("unexpected source: %+v", loc)
	}
	readme, err := os.ReadFile(filepath.Join(loc.Dir, "README.md"))
	if err != nil {
		t.Fatalf("readme missing: %v", err)
	}
	if !strings.Contains(string(readme), "STOW_HOME") {
		t.Fatalf("unexpected readme content: %s", readme)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	home := t.TempDir()
	first, err := Resolve(testOptions(home))
	if err != nil {
		t.Fatalf("first resolve error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(first.Dir, "README.md"), []byte("custom"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	second, err := Resolve(testOptions(home))
	if err != nil {
		t.Fatalf("second resolve error: %v", err)
	}
	if first.Dir != second.Dir {
		t.Fatalf("dir changed: %s vs %s", first.Dir, second.Dir)
	}
	data, _ := os.ReadFile(filepath.Join(second.Dir, "README.md"))
	if string(data) != "custom" {
		t.Fatalf("existing readme must be kept, got %q", data)
	}
}

func TestResolvePrecedence(t *testing.T) {
	home := t.TempDir()
	custom := filepath.Join(t.TempDir(), "custom")
	explicit := filepath.Join(t.TempDir(), "explicit")

	cases := []struct {
		name        string
		opts        Options
		wantDir     string
		wantSource  Source
		ignoredName bool
	}{
		{"explicit beats everything", Options{Root: explicit, Home: custom, Name: "alt"}, explicit, SourceExplicit, true},
		{"home beats name", Options{Home: custom, Name: "alt"}, custom, SourceHomeEnv, true},
		{"home beats appdirs", Options{Home: custom, UseAppDirs: true}, custom, SourceHomeEnv, false},
		{"name under home", Options{Name: "alt"}, filepath.Join(home, "alt"), SourceNameEnv, false},
		{"name beats appdirs", Options{Name: "alt", UseAppDirs: true}, filepath.Join(home, "alt"), SourceNameEnv, false},
		{"appdirs", Options{UseAppDirs: true}, platformDataDir(noEnv, home), SourceAppDirs, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			opts.Fs = afero.NewMemMapFs()
			opts.HomeDir = func() (string, error) { return home, nil }
			opts.Getenv = noEnv
			loc, err := Resolve(opts)
			if err != nil {
				t.Fatalf("resolve error: %v", err)
			}
			if loc.Dir != tc.wantDir || loc.Source != tc.wantSource || loc.IgnoredName != tc.ignoredName {
				t.Fatalf("unexpected location: %+v", loc)
			}
			if exists, _ := afero.DirExists(opts.Fs, loc.Dir); !exists {
				t.Fatalf("base directory not created")
			}
		})
	}
}

func TestResolveExpandsTilde(t *testing.T) {
	home := t.TempDir()
	opts := testOptions(home)
	opts.Home = "~/stow-data"
	loc, err := Resolve(opts)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if loc.Dir != filepath.Join(home, "stow-data") {
		t.Fatalf("tilde not expanded: %s", loc.Dir)
	}
}

func TestResolveRejectsBadName(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Name = "a/b"
	_, err := Resolve(opts)
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config error, got %v", err)
	}
	var fieldErr config.FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Name" {
		t.Fatalf("expected FieldError on Name, got %v", err)
	}
}

func TestResolveHomeDirFailure(t *testing.T) {
	opts := testOptions("")
	opts.HomeDir = func() (string, error) { return "", errors.New("no home") }
	if _, err := Resolve(opts); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config error without home, got %v", err)
	}

	opts.Home = t.TempDir()
	if _, err := Resolve(opts); err != nil {
		t.Fatalf("explicit home must not need the user home: %v", err)
	}
}

func TestResolveFilesystemError(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Fs = afero.NewReadOnlyFs(afero.NewMemMapFs())
	opts.Root = "/readonly/base"
	if _, err := Resolve(opts); !errors.Is(err, cache.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}

func TestModuleDir(t *testing.T) {
	home := t.TempDir()
	loc, err := Resolve(testOptions(home))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}

	dir, err := loc.ModuleDir("pokemon", noEnv)
	if err != nil {
		t.Fatalf("module dir error: %v", err)
	}
	if dir != filepath.Join(home, ".data", "pokemon") {
		t.Fatalf("unexpected module dir: %s", dir)
	}

	override := t.TempDir()
	env := func(key string) string {
		if key == "POKEMON_HOME" {
			return override
		}
		return ""
	}
	dir, err = loc.ModuleDir("pokemon", env)
	if err != nil {
		t.Fatalf("module dir error: %v", err)
	}
	if dir != override {
		t.Fatalf("override ignored: %s", dir)
	}

	for _, bad := range []string{"", "py.stow", "a/b"} {
		if _, err := loc.ModuleDir(bad, noEnv); !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("expected config error for %q, got %v", bad, err)
		}
	}
}

func TestModuleDirUnderAppDirs(t *testing.T) {
	home := t.TempDir()
	opts := testOptions(home)
	opts.UseAppDirs = true
	loc, err := Resolve(opts)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	dir, err := loc.ModuleDir("pokemon", noEnv)
	if err != nil {
		t.Fatalf("module dir error: %v", err)
	}
	if dir != filepath.Join(platformDataDir(noEnv, home), "pokemon") {
		t.Fatalf("unexpected appdirs module dir: %s", dir)
	}
}

func TestFromConfig(t *testing.T) {
	opts := FromConfig(&config.Config{Home: "/srv", Name: "alt", UseAppDirs: true})
	if opts.Home != "/srv" || opts.Name != "alt" || !opts.UseAppDirs {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if empty := FromConfig(nil); empty.Home != "" || empty.Name != "" {
		t.Fatalf("nil config should produce zero options: %+v", empty)
	}
}

func noEnv(string) string { return "" }

func testOptions(home string) Options {
	return Options{
		HomeDir: func() (string, error) { return home, nil },
		Getenv:  noEnv,
	}
}
