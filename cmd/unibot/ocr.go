package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/ocr"
	"github.com/ownlingo/unibot/assistant/preferences"
	"github.com/ownlingo/unibot/internal/app"
)

func ocrCmd() *cobra.Command {
	var lang, target string
	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract text from an image file, optionally translating it with --to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if lang == "" || !cmd.Flags().Changed("to") {
				prefs, err := openPrefs()
				if err != nil {
					return err
				}
				if lang == "" {
					lang = preferences.String(prefs, preferences.KeyOCRLang, "en")
				}
				if !cmd.Flags().Changed("to") {
					target = preferences.String(prefs, preferences.KeyOCRTranslate, "")
				}
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			req := assistant.OCRRequest{
				Image:    base64.StdEncoding.EncodeToString(data),
				Language: lang,
			}
			return printExtraction(cmd, a.OCR, a.Translate, req, target)
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Text language (default: preferences OCR language)")
	cmd.Flags().StringVarP(&target, "to", "t", "", "Also translate the text into this language")
	return cmd
}

func printExtraction(cmd *cobra.Command, rec ocr.Reader, tr ocr.Translator, req assistant.OCRRequest, target string) error {
	res, err := ocr.Extract(cmd.Context(), rec, tr, req, target)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Text == "" {
		warnColor.Fprintln(out, "no text found")
		return nil
	}
	fmt.Fprintln(out, res.Text)
	switch {
	case res.TranslateErr != nil:
		warnColor.Fprintf(out, "translation to %s failed, showing the extracted text only\n", target)
	case res.Translated():
		fmt.Fprintln(out)
		keyColor.Fprintf(out, "[%s]\n", target)
		replyColor.Fprintln(out, res.Translation)
		via(out, res.Provider, false)
	}
	return nil
}

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List language codes with their names and OCR engine codes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			english := display.Languages(language.English)
			for _, code := range ocr.Languages() {
				tag := language.Make(code)
				keyColor.Fprintf(out, "%-6s", code)
				fmt.Fprintf(out, " %-24s %-20s", english.Name(tag), display.Self.Name(tag))
				infoColor.Fprintf(out, " ocr:%s\n", ocr.EngineLanguage(code))
			}
		},
	}
}
