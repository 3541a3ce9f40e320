// Package openapi synthesizes the OpenAPI document describing the currently
// discovered tool set.
package openapi

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/schema"
)

// Source is the discovery slice the synthesizer reads from.
type Source interface {
	ListTools(ctx context.Context) ([]domain.ToolDefinition, error)
	Identity() domain.ServerIdentity
}

// Cache is one generation of the synthesized document. Replaced atomically,
// never edited in place.
type Cache struct {
	Document    map[string]any
	GeneratedAt time.Time
	ToolCount   int
}

type Options struct {
	Title     string
	Version   string
	ServerURL string
	TTL       time.Duration
	Logger    *zap.Logger
	Metrics   domain.Metrics
}

type Synthesizer struct {
	source  Source
	opts    Options
	logger  *zap.Logger
	metrics domain.Metrics

	cache atomic.Pointer[Cache]

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

func NewSynthesizer(source Source, opts Options) *Synthesizer {
	if opts.Title == "" {
		opts.Title = domain.DefaultSpecTitle
	}
	if opts.Version == "" {
		opts.Version = domain.DefaultSpecVersion
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Duration(domain.DefaultSpecTTLSeconds) * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &Synthesizer{
		source:  source,
		opts:    opts,
		logger:  logger.Named("openapi"),
		metrics: metrics,
	}
}

// Document returns the cached document while it is younger than the TTL and
// refreshes it otherwise. A failed refresh serves the stale document, or a
// minimal placeholder when no generation exists yet; this read path prefers
// availability over freshness.
func (s *Synthesizer) Document(ctx context.Context) map[string]any {
	if cache := s.cache.Load(); cache != nil && time.Since(cache.GeneratedAt) < s.opts.TTL {
		return cache.Document
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("spec refresh failed, serving stale document", zap.Error(err))
		if cache := s.cache.Load(); cache != nil {
			return cache.Document
		}
		return s.placeholder()
	}
	return s.cache.Load().Document
}

// Generation reports the current cache age and tool count for diagnostics.
func (s *Synthesizer) Generation() (time.Time, int, bool) {
	cache := s.cache.Load()
	if cache == nil {
		return time.Time{}, 0, false
	}
	return cache.GeneratedAt, cache.ToolCount, true
}

// Refresh rebuilds the document from the live tool set. Concurrent refreshes
// join the in-flight call rather than duplicating upstream discovery.
func (s *Synthesizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	s.inflight = call
	s.mu.Unlock()

	call.err = s.rebuild(ctx)
	s.metrics.ObserveSpecRefresh(call.err)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	close(call.done)
	return call.err
}

// RunRefreshLoop refreshes the document on a fixed period until the context
// ends. It never blocks request handling: readers keep the previous
// generation while a rebuild is mid-flight.
func (s *Synthesizer) RunRefreshLoop(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = s.opts.TTL
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("periodic spec refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *Synthesizer) rebuild(ctx context.Context) error {
	tools, err := s.source.ListTools(ctx)
	if err != nil {
		return err
	}

	doc := s.skeleton()
	paths := doc["paths"].(map[string]any)
	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	tagSet := map[string]bool{}

	count := 0
	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}
		count++
		tag := tagFor(tool.Name)
		tagSet[tag] = true

		requestName := schemaName(tool.Name) + "Request"
		schemas[requestName] = schema.Describe(schema.Compile(tool.InputSchema))

		summary := tool.Description
		if summary == "" {
			summary = fmt.Sprintf("Invoke the %s tool", tool.Name)
		}
		paths["/tools/"+tool.Name] = map[string]any{
			"post": map[string]any{
				"tags":        []string{tag},
				"summary":     summary,
				"operationId": "invoke_" + tool.Name,
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{"$ref": "#/components/schemas/" + requestName},
						},
					},
				},
				"responses": envelopeResponses(),
			},
		}
	}

	tags := make([]map[string]any, 0, len(tagSet))
	names := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		names = append(names, tag)
	}
	sort.Strings(names)
	for _, name := range names {
		tags = append(tags, map[string]any{"name": name})
	}
	doc["tags"] = tags

	generatedAt := time.Now().UTC()
	info := doc["info"].(map[string]any)
	info["x-tool-count"] = count
	info["x-generated-at"] = generatedAt.Format(time.RFC3339)

	s.cache.Store(&Cache{
		Document:    doc,
		GeneratedAt: generatedAt,
		ToolCount:   count,
	})
	s.logger.Info("spec document regenerated", zap.Int("tools", count))
	return nil
}

func (s *Synthesizer) skeleton() map[string]any {
	identity := s.source.Identity()
	description := "REST gateway for remote tool invocation"
	if identity.Name != "" {
		description = fmt.Sprintf("REST gateway for tools served by %s", identity.Name)
	}

	servers := []map[string]any{}
	if s.opts.ServerURL != "" {
		servers = append(servers, map[string]any{"url": s.opts.ServerURL})
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       s.opts.Title,
			"version":     s.opts.Version,
			"description": description,
		},
		"servers":  servers,
		"security": []map[string]any{{"bearerAuth": []any{}}},
		"paths": map[string]any{
			"/health": map[string]any{
				"get": map[string]any{
					"tags":      []string{"System"},
					"summary":   "Gateway and upstream health",
					"security":  []any{},
					"responses": map[string]any{"200": map[string]any{"description": "Health report"}},
				},
			},
			"/tools": map[string]any{
				"get": map[string]any{
					"tags":      []string{"System"},
					"summary":   "List discovered tools",
					"responses": envelopeResponses(),
				},
			},
			"/openapi.json": map[string]any{
				"get": map[string]any{
					"tags":      []string{"System"},
					"summary":   "This document",
					"security":  []any{},
					"responses": map[string]any{"200": map[string]any{"description": "OpenAPI document"}},
				},
			},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"Envelope": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"success":       map[string]any{"type": "boolean"},
						"message":       map[string]any{"type": "string"},
						"data":          map[string]any{"type": "object"},
						"error":         map[string]any{"type": "object"},
						"correlationId": map[string]any{"type": "string"},
						"metadata":      map[string]any{"type": "object"},
					},
					"required": []string{"success"},
				},
			},
		},
	}
}

func (s *Synthesizer) placeholder() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":        s.opts.Title,
			"version":      s.opts.Version,
			"description":  "Specification unavailable: tool discovery has not succeeded yet",
			"x-tool-count": 0,
		},
		"paths": map[string]any{},
	}
}

func envelopeResponses() map[string]any {
	return map[string]any{
		"200": map[string]any{
			"description": "Invocation envelope",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/Envelope"},
				},
			},
		},
	}
}

// tagFor groups tools for documentation only; it has no effect on routing.
// The prefix before the first separator wins, with a small keyword table for
// common domain concepts.
func tagFor(name string) string {
	lower := strings.ToLower(name)
	for _, kt := range keywordTags {
		if strings.Contains(lower, kt.keyword) {
			return kt.tag
		}
	}
	for _, sep := range []string{"_", ".", "-"} {
		if idx := strings.Index(name, sep); idx > 0 {
			prefix := name[:idx]
			return strings.ToUpper(prefix[:1]) + prefix[1:]
		}
	}
	return "Tools"
}

var keywordTags = []struct {
	keyword string
	tag     string
}{
	{"task", "Tasks"},
	{"plan", "Plans"},
	{"search", "Search"},
	{"doc", "Documents"},
}

func schemaName(tool string) string {
	parts := strings.FieldsFunc(tool, func(r rune) bool {
		return r == '_' || r == '.' || r == '-'
	})
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return "Tool"
	}
	return b.String()
}
