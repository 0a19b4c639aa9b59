package claude

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ValidateEnvironment checks that the Claude Code CLI is installed and
// answers --version, returning its path.
func ValidateEnvironment(ctx context.Context) (string, error) {
	claudePath, err := exec.LookPath("claude")
	if err != nil {
		return "", fmt.Errorf("claude CLI not found; install: curl -fsSL https://claude.ai/install.sh | bash")
	}

	out, err := exec.CommandContext(ctx, claudePath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("claude CLI found but cannot get version: %w", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		return "", fmt.Errorf("claude CLI returned empty version")
	}
	return claudePath, nil
}
