package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/preferences"
	"github.com/ownlingo/unibot/assistant/speech"
	"github.com/ownlingo/unibot/internal/app"
	"github.com/ownlingo/unibot/internal/logger"
)

// missingPlayer fails every clip so narration moves to the synthesizer
type missingPlayer struct{ err error }

func (p missingPlayer) Play(context.Context, []byte) error { return p.err }

func speakCmd() *cobra.Command {
	var lang, outPath string
	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text aloud, or save it as MP3 with --out",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if lang == "" {
				prefs, err := openPrefs()
				if err != nil {
					return err
				}
				lang = preferences.String(prefs, preferences.KeyInputLang, "en")
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			req := assistant.SpeechRequest{Text: text, Language: lang}

			if outPath != "" {
				if err := narrateToFile(cmd.Context(), a.TTS, req, outPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
				return nil
			}

			var player speech.Player
			if found, err := speech.FindPlayer(); err == nil {
				player = found
			} else {
				logger.Debugf("speak: %v", err)
				player = missingPlayer{err: err}
			}
			return speech.NewNarrator(a.TTS, player, speech.DetectSynthesizer()).Narrate(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Voice language (default: preferences input language)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write MP3 audio to this file instead of playing it")
	return cmd
}

// narrateToFile writes every clip to path; nothing is left behind on failure
func narrateToFile(ctx context.Context, fetcher speech.Fetcher, req assistant.SpeechRequest, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return speech.NewNarrator(fetcher, &speech.WriterPlayer{W: f}, nil).Narrate(ctx, req)
}
