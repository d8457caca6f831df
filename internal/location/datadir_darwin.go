//go:build darwin

package location

import "path/filepath"

// platformDataDir 返回 ~/Library/Application Support。
func platformDataDir(_ func(string) string, home string) string {
	return filepath.Join(home, "Library", "Application Support")
}
