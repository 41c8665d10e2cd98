package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/conversation"
	"github.com/ownlingo/unibot/internal/app"
)

func chatCmd() *cobra.Command {
	var preset, target string
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Ask the assistant; without a message, start an interactive session",
		Long: `Send one message, or start an interactive session when no message is given.
Inside a session, "/preset <key>" switches use case, "/preset" clears it and
"/quit" leaves. Replies are translated when --to is set or auto-translation is
enabled in preferences.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			prefs, err := openPrefs()
			if err != nil {
				return err
			}

			session := a.Session(prefs)
			if preset != "" {
				if err := session.UsePreset(preset); err != nil {
					return err
				}
			}
			opts := conversation.AskOptions{TargetLang: target}
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				return ask(ctx, out, session, strings.Join(args, " "), opts)
			}
			return repl(ctx, cmd.InOrStdin(), out, session, opts)
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Use-case preset (see 'unibot presets')")
	cmd.Flags().StringVarP(&target, "to", "t", "", "Translate replies into this language")
	return cmd
}

func ask(ctx context.Context, out io.Writer, s *conversation.Session, prompt string, opts conversation.AskOptions) error {
	msg, err := s.Ask(ctx, prompt, opts)
	if err != nil {
		return err
	}
	replyColor.Fprintln(out, msg.Content)
	via(out, msg.Provider, msg.Degraded)
	return nil
}

// detectWait bounds how long a reply waits for the input language; a later
// result is superseded by the next line
var detectWait = 2 * time.Second

// detectLine runs input detection alongside the chat call
func detectLine(ctx context.Context, s *conversation.Session, line string) <-chan assistant.Detection {
	ch := make(chan assistant.Detection, 1)
	go func() {
		det, err := s.DetectInput(ctx, line)
		if err == nil && det.Language != nil {
			ch <- det
		}
		close(ch)
	}()
	return ch
}

func repl(ctx context.Context, in io.Reader, out io.Writer, s *conversation.Session, opts conversation.AskOptions) error {
	var lastLang string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/preset":
			s.ClearPreset()
			infoColor.Fprintln(out, "preset cleared")
			continue
		case strings.HasPrefix(line, "/preset "):
			key := strings.TrimSpace(strings.TrimPrefix(line, "/preset "))
			if err := s.UsePreset(key); err != nil {
				warnColor.Fprintln(out, err)
				continue
			}
			infoColor.Fprintf(out, "preset %s\n", key)
			continue
		}

		detected := detectLine(ctx, s, line)
		if err := ask(ctx, out, s, line, opts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			warnColor.Fprintln(out, conversation.ErrorReply)
			infoColor.Fprintf(out, "  %v\n", err)
			continue
		}
		select {
		case det, ok := <-detected:
			if ok && *det.Language != lastLang {
				lastLang = *det.Language
				infoColor.Fprintf(out, "  input language: %s\n", lastLang)
			}
		case <-time.After(detectWait):
		}
	}
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List chat use-case presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, p := range conversation.Presets {
				keyColor.Fprintf(out, "%-18s", p.Key)
				fmt.Fprintf(out, " %s\n", p.Title)
				infoColor.Fprintf(out, "%18s %s\n", "", p.Description)
			}
		},
	}
}
