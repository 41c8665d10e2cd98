// Package speech turns text into narration: it chunks the text, fetches one
// audio clip per chunk and plays the clips strictly one after another, handing
// whatever is left to an on-device synthesizer when the audio path breaks.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/retry"
	"github.com/ownlingo/unibot/internal/logger"
)

// Fetcher returns the audio for one chunk
type Fetcher interface {
	Call(ctx context.Context, req assistant.SpeechRequest) ([]byte, error)
}

// Narrator sequences chunk fetches and playback
type Narrator struct {
	fetcher  Fetcher
	player   Player
	synth    Synthesizer
	retry    *retry.Config
	maxChunk int
}

// NewNarrator wires a fetcher to a player; synth may be nil
func NewNarrator(fetcher Fetcher, player Player, synth Synthesizer) *Narrator {
	if synth == nil {
		synth = Unavailable{}
	}
	return &Narrator{
		fetcher:  fetcher,
		player:   player,
		synth:    synth,
		retry:    retry.DefaultConfig(),
		maxChunk: DefaultChunk,
	}
}

// WithRetry replaces the per-chunk fetch retry policy
func (n *Narrator) WithRetry(config *retry.Config) *Narrator {
	n.retry = config
	return n
}

// Synthesize fetches every chunk in order and returns the concatenated audio
func (n *Narrator) Synthesize(ctx context.Context, req assistant.SpeechRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var audio bytes.Buffer
	chunks := ChunkText(req.Text, n.maxChunk)
	for i, chunk := range chunks {
		clip, err := n.fetch(ctx, chunk, req.Language)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(clip)
	}
	return audio.Bytes(), nil
}

// Narrate plays req.Text chunk by chunk. Chunk n+1 is fetched only after chunk
// n finished playing. If fetching or playing chunk k fails, chunks k..n go to
// the synthesizer; without one the result is ErrNotSupported.
func (n *Narrator) Narrate(ctx context.Context, req assistant.SpeechRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	chunks := ChunkText(req.Text, n.maxChunk)
	for i, chunk := range chunks {
		clip, err := n.fetch(ctx, chunk, req.Language)
		if err == nil {
			err = n.player.Play(ctx, clip)
		}
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		logger.Warnf("tts: chunk %d/%d failed: %v", i+1, len(chunks), err)
		rest := strings.Join(chunks[i:], " ")
		if !n.synth.Available() {
			return fmt.Errorf("%w (%v)", ErrNotSupported, err)
		}
		logger.Infof("tts: handing %d remaining chunk(s) to the on-device synthesizer", len(chunks)-i)
		return n.synth.Speak(ctx, rest, req.Language)
	}
	return nil
}

// fetch retries only statuses that may clear up on their own
func (n *Narrator) fetch(ctx context.Context, text, lang string) ([]byte, error) {
	var clip []byte
	err := retry.Do(ctx, n.retry, func() error {
		var err error
		clip, err = n.fetcher.Call(ctx, assistant.SpeechRequest{Text: text, Language: lang})
		var re *retry.RetryableError
		if errors.As(err, &re) && re.StatusCode != 0 && !retry.TransientStatus(re.StatusCode) {
			return retry.Permanent(err)
		}
		return err
	})
	return clip, err
}
