package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrNoTool is returned when neither the clipboard library nor any known
// system utility can take the text.
var ErrNoTool = errors.New("no clipboard tool available")

// Service copies report text to the system clipboard
type Service struct {
	logger *slog.Logger
	// command overrides the system utilities, e.g. "wl-copy --primary"
	command string
	// primary is the library write; replaced in tests
	primary func(string) error
	// lookPath finds system utilities; replaced in tests
	lookPath func(string) (string, error)
}

// NewService creates a clipboard service. A non-empty command is used
// whenever the clipboard library fails.
func NewService(logger *slog.Logger, command string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		command:  command,
		primary:  clipboard.WriteAll,
		lookPath: exec.LookPath,
	}
}

// Write copies text to the clipboard, falling back to a system utility
// when the library cannot reach one itself
func (s *Service) Write(ctx context.Context, text string) error {
	err := s.primary(text)
	if err == nil {
		s.logger.Debug("copied to clipboard", "length", len(text))
		return nil
	}
	s.logger.Debug("clipboard library failed, trying fallback", "error", err)

	parts := parseCommand(s.command)
	if len(parts) == 0 {
		parts = s.defaultCommand()
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: %v", ErrNoTool, err)
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to copy with %s: %w", parts[0], err)
	}
	s.logger.Debug("copied to clipboard", "command", parts[0], "length", len(text))
	return nil
}

// defaultCommand picks the first available system clipboard utility
func (s *Service) defaultCommand() []string {
	var candidates [][]string
	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"pbcopy"}}
	case "windows":
		candidates = [][]string{{"clip.exe"}}
	default:
		if isWSL() {
			candidates = append(candidates, []string{"clip.exe"})
		}
		candidates = append(candidates,
			[]string{"wl-copy"},
			[]string{"xclip", "-selection", "clipboard"},
			[]string{"xsel", "--clipboard", "--input"},
		)
	}
	for _, c := range candidates {
		if _, err := s.lookPath(c[0]); err == nil {
			return c
		}
	}
	return nil
}

// parseCommand splits a command string into arguments, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var quote rune
	inPart := false

	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inPart = true
		case r == ' ' || r == '\t':
			if inPart {
				parts = append(parts, current.String())
				current.Reset()
				inPart = false
			}
		default:
			current.WriteRune(r)
			inPart = true
		}
	}
	if inPart {
		parts = append(parts, current.String())
	}
	return parts
}

// isWSL reports whether we run under Windows Subsystem for Linux
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}
