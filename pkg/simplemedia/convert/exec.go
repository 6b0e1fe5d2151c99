package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// runTool runs an external program and returns its stdout.
func runTool(ctx context.Context, timeout time.Duration, path string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(path), err, msg)
	}
	return stdout.Bytes(), nil
}

// withTempDir writes src into a fresh directory as name and calls fn with
// the directory and the file path. The directory is removed afterwards.
func withTempDir(src []byte, name string, fn func(dir, file string) error) error {
	dir, err := os.MkdirTemp("", "simplemedia-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, src, 0600); err != nil {
		return err
	}
	return fn(dir, file)
}
