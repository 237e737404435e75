// Package testutil holds helpers shared by tests that drive ffmpeg/ffprobe.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// FakeBinary writes an executable /bin/sh script named name into a temp dir
// and returns its path. The script body runs with "$@" set to the arguments
// the binary was called with.
func FakeBinary(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries need /bin/sh")
	}

	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

// ArgsRecorder returns a script body that writes each argument on its own
// line into file, then runs rest.
func ArgsRecorder(file, rest string) string {
	return `for a in "$@"; do printf '%s\n' "$a" >> '` + file + `'; done
` + rest
}

// ReadLines returns the non-empty lines of file, or nil if it does not exist.
func ReadLines(t *testing.T, file string) []string {
	t.Helper()
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", file, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// RequireTool skips the test when name is not on PATH or -short is set.
func RequireTool(t *testing.T, name string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not on PATH", name)
	}
	return path
}
