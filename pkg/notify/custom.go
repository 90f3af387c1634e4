package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// scriptChannel pipes the result as json into a user script.
type scriptChannel struct {
	path string
}

func (c *scriptChannel) send(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.path) //nolint:gosec // path comes from user config
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("script %s: %w: %s", c.path, err, msg)
		}
		return fmt.Errorf("script %s: %w", c.path, err)
	}
	return nil
}
