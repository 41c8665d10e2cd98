// Package server exposes the assistant capabilities over HTTP under /api.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ownlingo/unibot/assistant"
)

const defaultAddr = ":8080"

type Chatter interface {
	Send(ctx context.Context, req assistant.ChatRequest) (assistant.ChatReply, error)
}

type Translator interface {
	Translate(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error)
}

type Detector interface {
	Detect(ctx context.Context, req assistant.DetectionRequest) (assistant.Detection, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req assistant.SpeechRequest) ([]byte, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, req assistant.OCRRequest) (assistant.OCRResult, error)
}

// Services are the capability backends behind the routes
type Services struct {
	Chat      Chatter
	Translate Translator
	Detect    Detector
	Speech    Synthesizer
	OCR       Recognizer

	// Capabilities is reported by /healthz
	Capabilities []string
}

type Config struct {
	Addr        string
	BodyLimit   int64
	PingMessage string
}

type Server struct {
	addr    string
	router  *gin.Engine
	handler http.Handler
}

// New builds the router. Every route shares the request id, CORS, access log
// and body limit middleware.
func New(cfg Config, svc Services) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.PingMessage == "" {
		cfg.PingMessage = "ping"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), cors(), requestLogger(), bodyLimit(cfg.BodyLimit))

	h := &handlers{svc: svc, ping: cfg.PingMessage}
	router.GET("/healthz", h.health)
	h.register(router.Group("/api"))

	return &Server{
		addr:    cfg.Addr,
		router:  router,
		handler: otelhttp.NewHandler(router, "unibot"),
	}
}

// Handler returns the instrumented root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
