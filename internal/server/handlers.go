package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/ocr"
	"github.com/ownlingo/unibot/assistant/translate"
	"github.com/ownlingo/unibot/internal/logger"
)

const (
	errTooLarge   = "Request body too large"
	errUnexpected = "Unexpected server error"
	errUpstream   = "Upstream error"
)

type handlers struct {
	svc  Services
	ping string
}

func (h *handlers) register(group *gin.RouterGroup) {
	group.GET("/ping", h.handlePing)
	group.POST("/chat", h.handleChat)
	group.POST("/translate", h.handleTranslate)
	group.POST("/detect-lang", h.handleDetect)
	group.GET("/tts", h.handleTTS)
	group.POST("/tts", h.handleTTS)
	group.POST("/ocr", h.handleOCR)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "capabilities": h.svc.Capabilities})
}

func (h *handlers) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.ping})
}

type chatRequest struct {
	Prompt   string `json:"prompt" form:"prompt"`
	Context  string `json:"context" form:"context"`
	Fast     any    `json:"fast" form:"-"`
	FastForm string `json:"-" form:"fast"`
}

type chatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider,omitempty"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

func (h *handlers) handleChat(c *gin.Context) {
	var req chatRequest
	if !bind(c, &req, "Invalid prompt") {
		return
	}
	reply, err := h.svc.Chat.Send(c.Request.Context(), assistant.ChatRequest{
		Prompt:  req.Prompt,
		Context: req.Context,
		Fast:    truthy(req.Fast) || truthy(req.FastForm),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{
		Reply:    reply.Reply,
		Provider: reply.Provider,
		Degraded: reply.Degraded,
		Reason:   reply.Reason,
	})
}

type translateRequest struct {
	Text   string `json:"text" form:"text"`
	Source string `json:"source" form:"source"`
	Target string `json:"target" form:"target"`
}

func (h *handlers) handleTranslate(c *gin.Context) {
	var req translateRequest
	if !bind(c, &req, "Invalid text") {
		return
	}
	res, err := h.svc.Translate.Translate(c.Request.Context(), assistant.TranslationRequest{
		Text:   req.Text,
		Source: req.Source,
		Target: req.Target,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translation": res.Translation, "provider": res.Provider})
}

type detectRequest struct {
	Text string `json:"text" form:"text"`
}

type detectResponse struct {
	Language   *string  `json:"language"`
	Confidence *float64 `json:"confidence"`
	Provider   string   `json:"provider,omitempty"`
	Degraded   bool     `json:"degraded,omitempty"`
}

func (h *handlers) handleDetect(c *gin.Context) {
	var req detectRequest
	if !bind(c, &req, "Invalid text") {
		return
	}
	det, err := h.svc.Detect.Detect(c.Request.Context(), assistant.DetectionRequest{Text: req.Text})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detectResponse{
		Language:   det.Language,
		Confidence: det.Confidence,
		Provider:   det.Provider,
		Degraded:   det.Degraded,
	})
}

type ttsRequest struct {
	Text string `json:"text" form:"text"`
	Lang string `json:"lang" form:"lang"`
}

// handleTTS accepts ?text=&lang=, a form or a JSON body and returns one MP3
// stream made of every chunk in order
func (h *handlers) handleTTS(c *gin.Context) {
	var req ttsRequest
	if !bind(c, &req, "Invalid text") {
		return
	}
	audio, err := h.svc.Speech.Synthesize(c.Request.Context(), assistant.SpeechRequest{
		Text:     req.Text,
		Language: req.Lang,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

type ocrRequest struct {
	Image    string `json:"image" form:"image"`
	Language string `json:"language" form:"language"`
	Target   string `json:"target" form:"target"`
}

type ocrResponse struct {
	Text                string  `json:"text"`
	Confidence          float64 `json:"confidence"`
	Language            string  `json:"language"`
	Translation         string  `json:"translation,omitempty"`
	TranslationProvider string  `json:"translationProvider,omitempty"`
	TranslationError    string  `json:"translationError,omitempty"`
}

// handleOCR extracts text and, given a target other than the OCR language,
// adds a translation; a failed translation still returns the text
func (h *handlers) handleOCR(c *gin.Context) {
	var req ocrRequest
	if !bind(c, &req, "Missing image data") {
		return
	}
	var tr ocr.Translator
	if h.svc.Translate != nil {
		tr = h.svc.Translate
	}
	res, err := ocr.Extract(c.Request.Context(), h.svc.OCR, tr, assistant.OCRRequest{
		Image:    req.Image,
		Language: req.Language,
	}, req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := ocrResponse{
		Text:                res.Text,
		Confidence:          res.Confidence,
		Language:            res.Language,
		Translation:         res.Translation,
		TranslationProvider: res.Provider,
	}
	if res.TranslateErr != nil {
		_, resp.TranslationError = classify(res.TranslateErr)
	}
	c.JSON(http.StatusOK, resp)
}

// bind decodes a JSON body, or a form body merged with the query string
// for every other content type; a malformed request is answered with invalid
func bind(c *gin.Context, dst any, invalid string) bool {
	if err := c.ShouldBind(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": errTooLarge})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": invalid})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Warnf("HTTP %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, errTooLarge
	case errors.Is(err, assistant.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, assistant.ErrConfiguration):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, translate.ErrFailed):
		return http.StatusBadGateway, translate.ErrFailed.Error()
	case errors.Is(err, assistant.ErrExhausted):
		return http.StatusBadGateway, errUpstream
	case errors.Is(err, assistant.ErrUnsupported):
		return http.StatusNotImplemented, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errUpstream
	}
	return http.StatusInternalServerError, errUnexpected
}

// truthy follows loose JSON truthiness for the fast flag
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case nil:
		return false
	}
	return true
}
