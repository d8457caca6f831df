//go:build !linux && !darwin && !windows

package location

import "path/filepath"

func platformDataDir(getenv func(string) string, home string) string {
	if xdgData := getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}
	return filepath.Join(home, ".local", "share")
}
