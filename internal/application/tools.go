package application

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

var toolCheckTimeout = 10 * time.Second

// VerifyTools checks that each binary resolves and answers -version. It
// returns the first line of each version banner keyed by binary.
func VerifyTools(ctx context.Context, binaries ...string) (map[string]string, error) {
	versions := make(map[string]string, len(binaries))
	for _, bin := range binaries {
		path, err := exec.LookPath(bin)
		if err != nil {
			return nil, fmt.Errorf("%s not found: %w", bin, err)
		}

		checkCtx, cancel := context.WithTimeout(ctx, toolCheckTimeout)
		out, err := exec.CommandContext(checkCtx, path, "-version").Output()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%s -version: %w", bin, err)
		}

		first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
		versions[bin] = first
		slog.Info("Found tool", "binary", bin, "path", path, "version", first)
	}
	return versions, nil
}
