package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/ownlingo/unibot/assistant"
)

// ErrNotSupported is reported when neither audio playback nor an on-device
// synthesizer can speak the text
var ErrNotSupported = fmt.Errorf("%w: Text-to-Speech not supported", assistant.ErrUnsupported)

// Player plays one audio clip and returns once playback has ended or failed
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// WriterPlayer "plays" clips by appending them to W, in call order
type WriterPlayer struct {
	mu sync.Mutex
	W  io.Writer
}

func (p *WriterPlayer) Play(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.W.Write(audio)
	return err
}

// CommandPlayer pipes each clip into an external audio player's stdin
type CommandPlayer struct {
	Path string
	Args []string
}

var playerCandidates = []CommandPlayer{
	{Path: "mpg123", Args: []string{"-q", "-"}},
	{Path: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}},
	{Path: "mpv", Args: []string{"--no-video", "--really-quiet", "-"}},
}

// FindPlayer returns the first MP3 player found on PATH
func FindPlayer() (*CommandPlayer, error) {
	for _, c := range playerCandidates {
		if path, err := exec.LookPath(c.Path); err == nil {
			return &CommandPlayer{Path: path, Args: c.Args}, nil
		}
	}
	return nil, fmt.Errorf("%w: no audio player found", assistant.ErrUnsupported)
}

// Play blocks until the player process exits. Canceling ctx kills it.
func (p *CommandPlayer) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Stdin = bytes.NewReader(audio)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play with %s: %w: %s", p.Path, err, bytes.TrimSpace(out))
	}
	return nil
}
