// Package httpapi exposes the gateway's REST surface.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"toolgate/internal/domain"
	"toolgate/internal/infra/openapi"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/schema"
	"toolgate/internal/infra/telemetry"
	"toolgate/internal/infra/translate"
	"toolgate/internal/infra/upstream"
)

type Options struct {
	Addr            string
	AuthToken       string
	ShutdownTimeout time.Duration
	Registry        prometheus.Gatherer
	Logger          *zap.Logger
}

type Server struct {
	opts        Options
	upstream    *upstream.Client
	routes      *router.Registry
	translator  *translate.Translator
	synthesizer *openapi.Synthesizer
	logger      *zap.Logger
	handler     http.Handler
}

func NewServer(client *upstream.Client, routes *router.Registry, translator *translate.Translator, synthesizer *openapi.Synthesizer, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = domain.DefaultListenAddress
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = time.Duration(domain.DefaultShutdownTimeoutSeconds) * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		opts:        opts,
		upstream:    client,
		routes:      routes,
		translator:  translator,
		synthesizer: synthesizer,
		logger:      logger.Named("httpapi"),
	}
	s.handler = s.buildMux()
	return s
}

// Handler exposes the gateway routes for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.handler,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("gateway server failed to start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("gateway shutdown error", zap.Error(err))
			return err
		}
		s.logger.Info("gateway stopped")
		return nil
	}
}

func (s *Server) buildMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPIJSON)
	mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPIYAML)

	gatherer := s.opts.Registry
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /tools", s.requireAuth(s.handleListTools))
	mux.HandleFunc("POST /tools/{name}", s.requireAuth(s.handleInvoke))
	mux.HandleFunc("GET /tools/{name}/schema", s.requireAuth(s.handleSchema))
	mux.HandleFunc("POST /tools:batch", s.requireAuth(s.handleBatch))

	return s.withRequestID(mux)
}

// withRequestID tags every inbound request for log correlation.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		s.logger.Debug("request",
			telemetry.RequestIDField(requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects calls without the configured bearer token before any
// upstream traffic happens.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.logger.Warn("request rejected",
				telemetry.EventField(telemetry.EventUnauthorized),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusUnauthorized, "authorization required", domain.ErrUnauthorized.Error())
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	upstreamHealthy := s.upstream.Healthy(r.Context())
	stats := s.upstream.Stats()

	status := "ok"
	httpStatus := http.StatusOK
	if !upstreamHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"upstreamStatus": string(stats.State),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.routes.List()
	writeOK(w, "discovered tools", map[string]any{
		"tools": tools,
		"count": len(tools),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	route, ok := s.routes.Route(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool %q", name), domain.ErrToolNotFound.Error())
		return
	}
	writeOK(w, "tool schema", map[string]any{
		"name":   name,
		"schema": schema.Describe(route.Schema),
	})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	args, err := decodeArguments(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object", err.Error())
		return
	}

	// The upstream call is detached from the inbound request: a client that
	// disconnects mid-call does not cancel an already-dispatched upstream
	// request, it just never sees the discarded result.
	callCtx := context.WithoutCancel(r.Context())

	envelope, err := s.translator.Invoke(callCtx, name, args)
	if err != nil {
		s.writeInvokeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Calls []domain.CallDescriptor `json:"calls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "request body must carry a calls array", err.Error())
		return
	}

	callCtx := context.WithoutCancel(r.Context())
	results := s.translator.TranslateBatch(callCtx, payload.Calls)
	writeOK(w, "batch translated", map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc := s.synthesizer.Document(r.Context())
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	doc := s.synthesizer.Document(r.Context())
	raw, err := yaml.Marshal(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render document", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) writeInvokeError(w http.ResponseWriter, name string, err error) {
	code, _ := domain.CodeFrom(err)
	switch code {
	case domain.CodeNotFound:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool %q", name), err.Error())
	case domain.CodeInvalidArgument:
		writeError(w, http.StatusBadRequest, "invalid arguments", err.Error())
	case domain.CodeUnauthenticated:
		writeError(w, http.StatusBadGateway, "upstream rejected credentials", err.Error())
	case domain.CodeUnavailable:
		writeError(w, http.StatusBadGateway, "upstream unavailable", err.Error())
	case domain.CodeDeadlineExceeded:
		writeError(w, http.StatusGatewayTimeout, "upstream timed out", err.Error())
	default:
		s.logger.Error("invoke failed",
			telemetry.EventField(telemetry.EventInvokeError),
			telemetry.ToolField(name),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "tool invocation failed", err.Error())
	}
}

func decodeArguments(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
