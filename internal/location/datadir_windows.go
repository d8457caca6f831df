//go:build windows

package location

import "path/filepath"

// platformDataDir 依次尝试 %LOCALAPPDATA%、%APPDATA%，最后退回 ~/AppData/Local。
func platformDataDir(getenv func(string) string, home string) string {
	if dir := getenv("LOCALAPPDATA"); dir != "" {
		return dir
	}
	if dir := getenv("APPDATA"); dir != "" {
		return dir
	}
	return filepath.Join(home, "AppData", "Local")
}
