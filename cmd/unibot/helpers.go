package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ownlingo/unibot/assistant/preferences"
)

var (
	replyColor = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	infoColor  = color.New(color.Faint)
	keyColor   = color.New(color.FgCyan)
)

// openPrefs opens --prefs or the per-user preferences file
func openPrefs() (*preferences.FileStore, error) {
	path := prefsPath
	if path == "" {
		var err error
		if path, err = preferences.DefaultPath(); err != nil {
			return nil, fmt.Errorf("locate preferences: %w", err)
		}
	}
	return preferences.OpenFile(path)
}

// inputText joins args, or reads all of in when there are none or the only arg is "-"
func inputText(args []string, in io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func via(w io.Writer, provider string, degraded bool) {
	switch {
	case degraded:
		warnColor.Fprintf(w, "  (offline answer, %s)\n", orDash(provider))
	case provider != "":
		infoColor.Fprintf(w, "  via %s\n", provider)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
