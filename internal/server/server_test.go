package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/translate"
)

type fakeChat struct {
	got []assistant.ChatRequest
	err error
}

func (f *fakeChat) Send(_ context.Context, req assistant.ChatRequest) (assistant.ChatReply, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return assistant.ChatReply{}, f.err
	}
	if err := req.Validate(); err != nil {
		return assistant.ChatReply{}, err
	}
	return assistant.ChatReply{Reply: "echo: " + req.Prompt, Provider: "fake"}, nil
}

type fakeTranslate struct{ err error }

func (f fakeTranslate) Translate(_ context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error) {
	if err := req.Validate(); err != nil {
		return assistant.TranslationResponse{}, err
	}
	if f.err != nil {
		return assistant.TranslationResponse{}, f.err
	}
	return assistant.TranslationResponse{Translation: "hola", Provider: "fake"}, nil
}

type fakeDetect struct{}

func (fakeDetect) Detect(_ context.Context, req assistant.DetectionRequest) (assistant.Detection, error) {
	if err := req.Validate(); err != nil {
		return assistant.Detection{}, err
	}
	return assistant.Detection{Language: assistant.StringPtr("ru"), Provider: "script-guess", Degraded: true}, nil
}

type fakeSpeech struct{ got assistant.SpeechRequest }

func (f *fakeSpeech) Synthesize(_ context.Context, req assistant.SpeechRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.got = req
	return []byte("ID3audio"), nil
}

type fakeOCR struct{ text string }

func (f fakeOCR) Recognize(_ context.Context, req assistant.OCRRequest) (assistant.OCRResult, error) {
	if f.text == "" {
		return assistant.OCRResult{}, assistant.MissingCredential("OCR_SPACE_API_KEY")
	}
	return assistant.OCRResult{Text: f.text, Confidence: 1, Language: req.Language}, nil
}

func newTestServer(chat *fakeChat, speech *fakeSpeech) *Server {
	return New(Config{BodyLimit: 1024, PingMessage: "hello"}, Services{
		Chat:         chat,
		Translate:    fakeTranslate{},
		Detect:       fakeDetect{},
		Speech:       speech,
		OCR:          fakeOCR{},
		Capabilities: []string{"chat"},
	})
}

func doForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPingAndHealth(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})

	rec := do(t, s, http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"hello"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestPreflight(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})
	rec := do(t, s, http.MethodOptions, "/api/chat", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestChat(t *testing.T) {
	chat := &fakeChat{}
	s := newTestServer(chat, &fakeSpeech{})

	rec := do(t, s, http.MethodPost, "/api/chat", `{"prompt":"hi","context":"be nice","fast":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: hi", gjson.Get(rec.Body.String(), "reply").String())
	assert.Equal(t, "fake", gjson.Get(rec.Body.String(), "provider").String())
	assert.False(t, gjson.Get(rec.Body.String(), "degraded").Bool())

	require.Len(t, chat.got, 1)
	assert.True(t, chat.got[0].Fast)
	assert.Equal(t, "be nice", chat.got[0].Context)
}

func TestChatValidation(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})

	rec := do(t, s, http.MethodPost, "/api/chat", `{"prompt":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid prompt"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/chat", `{"prompt":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid prompt"}`, rec.Body.String())
}

func TestChatMissingCredential(t *testing.T) {
	s := newTestServer(&fakeChat{err: assistant.MissingCredential("GOOGLE_API_KEY")}, &fakeSpeech{})

	rec := do(t, s, http.MethodPost, "/api/chat", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Server is missing GOOGLE_API_KEY"}`, rec.Body.String())
}

func TestTranslate(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})

	rec := do(t, s, http.MethodPost, "/api/translate", `{"text":"hello","target":"es"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hola", gjson.Get(rec.Body.String(), "translation").String())

	rec = do(t, s, http.MethodPost, "/api/translate", `{"text":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid target language"}`, rec.Body.String())
}

func TestTranslateFailure(t *testing.T) {
	s := New(Config{}, Services{
		Translate: fakeTranslate{err: &translate.FailedError{Err: errors.New("all down")}},
	})

	rec := do(t, s, http.MethodPost, "/api/translate", `{"text":"hello","target":"es"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Translation failed"}`, rec.Body.String())
}

func TestDetect(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})

	rec := do(t, s, http.MethodPost, "/api/detect-lang", `{"text":"Привет"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "ru", gjson.Get(body, "language").String())
	assert.Equal(t, gjson.Null, gjson.Get(body, "confidence").Type)
	assert.True(t, gjson.Get(body, "degraded").Bool())
}

func TestTTS(t *testing.T) {
	speech := &fakeSpeech{}
	s := newTestServer(&fakeChat{}, speech)

	rec := do(t, s, http.MethodGet, "/api/tts?text=hello&lang=fr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3audio", rec.Body.String())
	assert.Equal(t, "fr", speech.got.Language)

	rec = do(t, s, http.MethodPost, "/api/tts", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", speech.got.Language)

	rec = do(t, s, http.MethodGet, "/api/tts", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTTSPostWithQueryString(t *testing.T) {
	speech := &fakeSpeech{}
	s := newTestServer(&fakeChat{}, speech)

	rec := do(t, s, http.MethodPost, "/api/tts?text=hello&lang=fr", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hello", speech.got.Text)
	assert.Equal(t, "fr", speech.got.Language)
}

func TestFormBodies(t *testing.T) {
	chat := &fakeChat{}
	speech := &fakeSpeech{}
	s := newTestServer(chat, speech)

	rec := doForm(t, s, "/api/translate", url.Values{"text": {"hi"}, "target": {"es"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hola", gjson.Get(rec.Body.String(), "translation").String())

	rec = doForm(t, s, "/api/chat", url.Values{"prompt": {"hi"}, "fast": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, chat.got, 1)
	assert.True(t, chat.got[0].Fast)

	rec = doForm(t, s, "/api/detect-lang", url.Values{"text": {"Привет"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ru", gjson.Get(rec.Body.String(), "language").String())

	rec = doForm(t, s, "/api/tts?lang=de", url.Values{"text": {"hallo"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hallo", speech.got.Text)
	assert.Equal(t, "de", speech.got.Language)

	rec = doForm(t, s, "/api/translate", url.Values{"target": {"es"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid text"}`, rec.Body.String())
}

func TestOCRWithTranslation(t *testing.T) {
	s := New(Config{}, Services{OCR: fakeOCR{text: "Bonjour"}, Translate: fakeTranslate{}})

	rec := do(t, s, http.MethodPost, "/api/ocr", `{"image":"aGk=","language":"fr","target":"es"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "Bonjour", gjson.Get(body, "text").String())
	assert.Equal(t, "hola", gjson.Get(body, "translation").String())
	assert.Equal(t, "fake", gjson.Get(body, "translationProvider").String())

	rec = do(t, s, http.MethodPost, "/api/ocr", `{"image":"aGk=","language":"fr","target":"fr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gjson.Get(rec.Body.String(), "translation").Exists())
}

func TestOCRTranslationFailureKeepsText(t *testing.T) {
	s := New(Config{}, Services{
		OCR:       fakeOCR{text: "Bonjour"},
		Translate: fakeTranslate{err: &translate.FailedError{Err: errors.New("all down")}},
	})

	rec := do(t, s, http.MethodPost, "/api/ocr", `{"image":"aGk=","language":"fr","target":"es"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "Bonjour", gjson.Get(body, "text").String())
	assert.False(t, gjson.Get(body, "translation").Exists())
	assert.Equal(t, "Translation failed", gjson.Get(body, "translationError").String())
}

func TestOCRMissingCredential(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})
	rec := do(t, s, http.MethodPost, "/api/ocr", `{"image":"aGk="}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Server is missing OCR_SPACE_API_KEY"}`, rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(&fakeChat{}, &fakeSpeech{})
	big := `{"image":"` + strings.Repeat("A", 2048) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/ocr", bytes.NewReader([]byte(big)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Request body too large"}`, rec.Body.String())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{assistant.Invalid("text", "Invalid text"), http.StatusBadRequest},
		{assistant.MissingCredential("X"), http.StatusInternalServerError},
		{assistant.ErrExhausted, http.StatusBadGateway},
		{assistant.ErrUnsupported, http.StatusNotImplemented},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
