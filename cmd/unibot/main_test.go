package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/conversation"
	"github.com/ownlingo/unibot/assistant/preferences"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPrefsSetGetList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	_, err := run(t, "", "--prefs", path, "prefs", "set", preferences.KeyAutoTranslate, "true")
	require.NoError(t, err)
	_, err = run(t, "", "--prefs", path, "prefs", "set", preferences.KeyTargetLang, "es")
	require.NoError(t, err)

	out, err := run(t, "", "--prefs", path, "prefs", "get", preferences.KeyAutoTranslate)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	store, err := preferences.OpenFile(path)
	require.NoError(t, err)
	v, _ := store.Get(preferences.KeyAutoTranslate)
	assert.Equal(t, true, v)

	out, err = run(t, "", "--prefs", path, "prefs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, preferences.KeyTargetLang)
	assert.Contains(t, out, "es")
	assert.Contains(t, out, preferences.KeyFastMode)
}

func TestPrefsFontAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	out, err := run(t, "", "--prefs", path, "prefs", "font", "bigger")
	require.NoError(t, err)
	assert.Equal(t, "font scale 1.1 (18px)\n", out)

	_, err = run(t, "", "--prefs", path, "prefs", "clear")
	require.NoError(t, err)
	out, err = run(t, "", "--prefs", path, "prefs", "get", preferences.KeyFontScale)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestPresetsCommand(t *testing.T) {
	out, err := run(t, "", "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "legal_aid")
	assert.Contains(t, out, "Emergency (Refugees)")
}

func TestLanguagesCommand(t *testing.T) {
	out, err := run(t, "", "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "Japanese")
	assert.Contains(t, out, "ocr:jpn")
}

func TestInputText(t *testing.T) {
	text, err := inputText([]string{"hello", "world"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	text, err = inputText(nil, strings.NewReader("  from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	text, err = inputText([]string{"-"}, strings.NewReader("piped"))
	require.NoError(t, err)
	assert.Equal(t, "piped", text)
}

type scannedPage string

func (p scannedPage) Recognize(context.Context, assistant.OCRRequest) (assistant.OCRResult, error) {
	return assistant.OCRResult{Text: string(p), Confidence: 1, Language: "fr"}, nil
}

type stubTranslator struct{ err error }

func (s stubTranslator) Translate(_ context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error) {
	if s.err != nil {
		return assistant.TranslationResponse{}, s.err
	}
	return assistant.TranslationResponse{Translation: "Exit", Provider: "lingva"}, nil
}

func extraction(t *testing.T, tr stubTranslator, target string) string {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	req := assistant.OCRRequest{Image: "aGk=", Language: "fr"}
	require.NoError(t, printExtraction(cmd, scannedPage("Sortie"), tr, req, target))
	return out.String()
}

func TestOCRTranslation(t *testing.T) {
	out := extraction(t, stubTranslator{}, "en")
	assert.Equal(t, "Sortie\n\n[en]\nExit\n  via lingva\n", out)
}

func TestOCRTranslationFailureKeepsText(t *testing.T) {
	out := extraction(t, stubTranslator{err: errors.New("down")}, "en")
	assert.Equal(t, "Sortie\ntranslation to en failed, showing the extracted text only\n", out)
}

func TestOCRSameLanguageSkipsTranslation(t *testing.T) {
	out := extraction(t, stubTranslator{err: errors.New("unused")}, "fr")
	assert.Equal(t, "Sortie\n", out)
}

type echoChat struct{}

func (echoChat) Send(_ context.Context, req assistant.ChatRequest) (assistant.ChatReply, error) {
	return assistant.ChatReply{Reply: "ok: " + req.Prompt, Provider: "fake"}, nil
}

type scriptDetector struct{}

func (scriptDetector) Detect(_ context.Context, req assistant.DetectionRequest) (assistant.Detection, error) {
	lang := "en"
	if strings.ContainsAny(req.Text, "ПриветПока") {
		lang = "ru"
	}
	return assistant.Detection{Language: &lang, Provider: "fake"}, nil
}

func TestREPLReportsInputLanguageChanges(t *testing.T) {
	color.NoColor = true
	session := conversation.NewSession(echoChat{}, stubTranslator{}, scriptDetector{}, nil)

	var out bytes.Buffer
	in := strings.NewReader("Привет\nПока\nhello\n/quit\n")
	require.NoError(t, repl(context.Background(), in, &out, session, conversation.AskOptions{}))

	text := out.String()
	assert.Contains(t, text, "ok: Привет")
	assert.Contains(t, text, "ok: hello")
	assert.Equal(t, 1, strings.Count(text, "input language: ru"))
	assert.Equal(t, 1, strings.Count(text, "input language: en"))
	assert.Less(t, strings.Index(text, "input language: ru"), strings.Index(text, "input language: en"))

	require.NotNil(t, session.Detected())
	assert.Equal(t, "en", *session.Detected().Language)
}

type clipFetcher struct{ fail bool }

func (f clipFetcher) Call(_ context.Context, req assistant.SpeechRequest) ([]byte, error) {
	if f.fail {
		return nil, errors.New("tts down")
	}
	return []byte("ID3" + req.Text), nil
}

func TestNarrateToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	req := assistant.SpeechRequest{Text: "Hello.", Language: "en"}

	require.NoError(t, narrateToFile(context.Background(), clipFetcher{}, req, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3Hello.", string(data))
}

func TestNarrateToFileRemovesPartialOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	req := assistant.SpeechRequest{Text: "Hello.", Language: "en"}

	assert.Error(t, narrateToFile(context.Background(), clipFetcher{fail: true}, req, path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
