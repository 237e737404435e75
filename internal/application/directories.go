package application

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// EnsureDirectories creates each directory (and parents) if missing.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("empty directory path")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
		slog.Debug("directory ready", "dir", dir)
	}
	return nil
}
