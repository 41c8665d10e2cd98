package speech

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Synthesizer is an on-device speech engine used when audio fetching or
// playback fails. Implementations report whether they can run here.
type Synthesizer interface {
	Available() bool
	Speak(ctx context.Context, text, lang string) error
}

// Unavailable is the Synthesizer for environments without a speech engine
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Speak(context.Context, string, string) error { return ErrNotSupported }

// CommandSynthesizer speaks through espeak-ng, espeak or macOS say
type CommandSynthesizer struct {
	path string
}

var synthCandidates = []string{"espeak-ng", "espeak", "say"}

// DetectSynthesizer searches PATH for a speech engine
func DetectSynthesizer() Synthesizer {
	for _, name := range synthCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return &CommandSynthesizer{path: path}
		}
	}
	return Unavailable{}
}

func (s *CommandSynthesizer) Available() bool {
	return s != nil && s.path != ""
}

func (s *CommandSynthesizer) Speak(ctx context.Context, text, lang string) error {
	if !s.Available() {
		return ErrNotSupported
	}
	if out, err := s.command(ctx, text, lang).CombinedOutput(); err != nil {
		return fmt.Errorf("speak with %s: %w: %s", s.path, err, out)
	}
	return nil
}

// command passes text on stdin so it is never parsed as an option
func (s *CommandSynthesizer) command(ctx context.Context, text, lang string) *exec.Cmd {
	var args []string
	if filepath.Base(s.path) != "say" {
		if lang != "" {
			args = append(args, "-v", lang)
		}
		args = append(args, "--stdin")
	}
	cmd := exec.CommandContext(ctx, s.path, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd
}
