package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/preferences"
	"github.com/ownlingo/unibot/internal/app"
)

func translateCmd() *cobra.Command {
	var source, target string
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if target == "" {
				prefs, err := openPrefs()
				if err != nil {
					return err
				}
				target = preferences.String(prefs, preferences.KeyTargetLang, "en")
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			res, err := a.Translate.Translate(cmd.Context(), assistant.TranslationRequest{
				Text:   text,
				Source: source,
				Target: target,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			replyColor.Fprintln(out, res.Translation)
			via(out, res.Provider, false)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "from", "f", assistant.AutoLanguage, "Source language")
	cmd.Flags().StringVarP(&target, "to", "t", "", "Target language (default: preferences)")
	return cmd
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text...]",
		Short: "Detect the language of text (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			det, err := a.Detect.Detect(cmd.Context(), assistant.DetectionRequest{Text: text})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			confidence := "n/a"
			if det.Confidence != nil {
				confidence = strconv.FormatFloat(*det.Confidence, 'f', 2, 64)
			}
			keyColor.Fprint(out, orDash(det.LanguageCode()))
			fmt.Fprintf(out, " (confidence %s)\n", confidence)
			via(out, det.Provider, det.Degraded)
			return nil
		},
	}
}
