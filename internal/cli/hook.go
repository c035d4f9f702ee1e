package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/prsignal/internal/config"
)

// hookKind describes a git hook prsignal can manage and the change set it
// analyses there.
type hookKind struct {
	name    string
	command string
	blocked string
}

var hookKinds = map[string]hookKind{
	"pre-commit": {name: "pre-commit", command: "analyze staged", blocked: "commit"},
	"pre-push":   {name: "pre-push", command: "analyze range @{upstream}..HEAD", blocked: "push"},
}

func (k hookKind) markerStart() string { return "# >>> prsignal " + k.name + " hook >>>" }
func (k hookKind) markerEnd() string   { return "# <<< prsignal " + k.name + " hook <<<" }

var (
	hookFailOn string
	hookFormat string
	hookType   string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the prsignal git hooks",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install prsignal as a git hook (pre-commit or pre-push)",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := lookupHook(hookType)
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		if !slices.Contains(config.FailOns, hookFailOn) {
			fail(cmd, ExitUsageError, fmt.Errorf("%w: %q", config.ErrInvalidFailOn, hookFailOn))
			return nil
		}
		if !slices.Contains(config.Formats, hookFormat) {
			fail(cmd, ExitUsageError, fmt.Errorf("%w: %q", config.ErrInvalidFormat, hookFormat))
			return nil
		}

		hookPath, err := getHookPath(cmd.Context(), kind)
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			fail(cmd, ExitRuntimeError, fmt.Errorf("reading hook file: %w", err))
			return nil
		}

		section := generateHookScript(kind, hookFailOn, hookFormat)
		content := "#!/bin/sh\n" + section
		if len(existing) > 0 {
			content = replaceHookSection(kind, string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("creating hooks directory: %w", err))
			return nil
		}
		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("writing hook file: %w", err))
			return nil
		}

		logger.Debug("hook installed", "type", kind.name, "path", hookPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Installed prsignal %s hook at %s\n", kind.name, hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the prsignal section from a git hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := lookupHook(hookType)
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		hookPath, err := getHookPath(cmd.Context(), kind)
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s hook found.\n", kind.name)
				return nil
			}
			fail(cmd, ExitRuntimeError, fmt.Errorf("reading hook file: %w", err))
			return nil
		}

		content := removeHookSection(kind, string(existing))

		// A hook left with only its shebang is ours; delete it.
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				fail(cmd, ExitRuntimeError, fmt.Errorf("removing hook file: %w", err))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed prsignal %s hook at %s\n", kind.name, hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("writing hook file: %w", err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed prsignal section from %s\n", hookPath)
		return nil
	},
}

func lookupHook(name string) (hookKind, error) {
	kind, ok := hookKinds[name]
	if !ok {
		return hookKind{}, fmt.Errorf("unsupported hook type %q (want pre-commit or pre-push)", name)
	}
	return kind, nil
}

// getHookPath asks git for the hooks directory so worktrees and
// core.hooksPath are honoured.
func getHookPath(ctx context.Context, kind hookKind) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path hooks failed)")
	}
	return filepath.Join(strings.TrimSpace(string(out)), kind.name), nil
}

// generateHookScript returns the marked shell section. Exit 1 blocks the
// operation; tool failures (exit >= 2) only warn.
func generateHookScript(kind hookKind, failOn, format string) string {
	var b strings.Builder
	b.WriteString(kind.markerStart() + "\n")
	fmt.Fprintf(&b, "prsignal %s --fail-on %s --format %s\n", kind.command, failOn, format)
	b.WriteString("PRSIGNAL_EXIT=$?\n")
	b.WriteString("if [ $PRSIGNAL_EXIT -eq 1 ]; then\n")
	fmt.Fprintf(&b, "  echo \"prsignal: risk at or above %s, %s blocked\"\n", failOn, kind.blocked)
	b.WriteString("  exit 1\n")
	b.WriteString("elif [ $PRSIGNAL_EXIT -ge 2 ]; then\n")
	fmt.Fprintf(&b, "  echo \"prsignal: analysis failed (exit $PRSIGNAL_EXIT), allowing %s\"\n", kind.blocked)
	b.WriteString("fi\n")
	b.WriteString(kind.markerEnd() + "\n")
	return b.String()
}

// hookSection locates the marked section, end exclusive of a trailing
// newline. ok is false when either marker is missing.
func hookSection(kind hookKind, s string) (start, end int, ok bool) {
	start = strings.Index(s, kind.markerStart())
	endMarker := strings.Index(s, kind.markerEnd())
	if start == -1 || endMarker == -1 || endMarker < start {
		return 0, 0, false
	}
	end = endMarker + len(kind.markerEnd())
	if end < len(s) && s[end] == '\n' {
		end++
	}
	return start, end, true
}

func replaceHookSection(kind hookKind, existing, section string) string {
	start, end, ok := hookSection(kind, existing)
	if !ok {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return existing[:start] + section + existing[end:]
}

func removeHookSection(kind hookKind, existing string) string {
	start, end, ok := hookSection(kind, existing)
	if !ok {
		return existing
	}
	return existing[:start] + existing[end:]
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookCmd.PersistentFlags().StringVar(&hookType, "type", "pre-commit", "Hook to manage (pre-commit, pre-push)")
	hookInstallCmd.Flags().StringVar(&hookFailOn, "fail-on", "high", "Fail on severity threshold (none, low, medium, high)")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown, sarif)")
}
