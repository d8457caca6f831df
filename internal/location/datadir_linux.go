//go:build linux

package location

import "path/filepath"

// platformDataDir 优先使用 $XDG_DATA_HOME，否则为 ~/.local/share。
func platformDataDir(getenv func(string) string, home string) string {
	if xdgData := getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}
	return filepath.Join(home, ".local", "share")
}
