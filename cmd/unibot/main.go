// Package main provides the unibot CLI entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ownlingo/unibot/internal/config"
	"github.com/ownlingo/unibot/internal/logger"
)

var (
	cfgPath   string
	prefsPath string
	logLevel  string
	cfg       *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "unibot",
		Short: "Multilingual assistant: chat, translation, language detection, speech and OCR",
		Long: `unibot talks to hosted AI services on your behalf and falls back to
alternate providers, and finally to local heuristics, when one is unavailable.

Credentials come from the environment (GOOGLE_API_KEY, OPENAI_API_KEY,
ANTHROPIC_API_KEY, OCR_SPACE_API_KEY) or from the --config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			logger.SetLevel(loaded.Log.Level)
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&prefsPath, "prefs", "", "Preferences file (default: user config dir)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides config)")

	root.AddGroup(
		&cobra.Group{ID: "assist", Title: "Assistant:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
	for _, c := range []*cobra.Command{chatCmd(), translateCmd(), detectCmd(), speakCmd(), ocrCmd()} {
		c.GroupID = "assist"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{serveCmd(), prefsCmd(), presetsCmd(), languagesCmd()} {
		c.GroupID = "setup"
		root.AddCommand(c)
	}
	return root
}
