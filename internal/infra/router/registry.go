// Package router maintains the mapping from tool name to invocation and
// schema-introspection routes, rebuilt wholesale on every refresh.
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/schema"
)

// ToolLister is the discovery slice of the upstream client.
type ToolLister interface {
	ListTools(ctx context.Context) ([]domain.ToolDefinition, error)
}

// Route is one tool's invocation binding.
type Route struct {
	Tool     domain.ToolDefinition
	Schema   *domain.ObjectDescriptor
	Endpoint string
	Method   string
}

// RouteInfo is the outward listing shape for one route.
type RouteInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Endpoint    string         `json:"endpoint"`
	Method      string         `json:"method"`
	Schema      map[string]any `json:"schema"`
}

// Registry holds the live route map. The map is published by atomic pointer
// replacement: readers never block on a refresh and never observe a map that
// is half old, half new.
type Registry struct {
	lister  ToolLister
	logger  *zap.Logger
	metrics domain.Metrics

	routes atomic.Pointer[map[string]*Route]

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

func NewRegistry(lister ToolLister, logger *zap.Logger, metrics domain.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	r := &Registry{
		lister:  lister,
		logger:  logger.Named("router"),
		metrics: metrics,
	}
	empty := map[string]*Route{}
	r.routes.Store(&empty)
	return r
}

// Initialize builds the first route map. A discovery failure here is fatal:
// a registry that cannot discover tools has no valid state to serve.
func (r *Registry) Initialize(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return domain.Wrap(domain.CodeUnavailable, "router.initialize", err)
	}
	return nil
}

// Refresh rebuilds the route map from the current upstream tool list and
// installs it atomically. A refresh requested while one is already in flight
// joins the in-flight call and shares its result.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if call := r.inflight; call != nil {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	r.inflight = call
	r.mu.Unlock()

	call.err = r.rebuild(ctx)

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(call.done)
	return call.err
}

func (r *Registry) rebuild(ctx context.Context) error {
	tools, err := r.lister.ListTools(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]*Route, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			r.logger.Warn("skip tool without name")
			continue
		}
		// A missing schema is a valid, partially-specified tool; Compile
		// degrades it to an empty object shape.
		compiled := schema.Compile(tool.InputSchema)
		if compiled.Permissive {
			r.logger.Warn("tool schema unparseable, using permissive model", zap.String("tool", tool.Name))
		}
		next[tool.Name] = &Route{
			Tool:     tool,
			Schema:   compiled,
			Endpoint: fmt.Sprintf("/tools/%s", tool.Name),
			Method:   "POST",
		}
	}

	r.routes.Store(&next)
	r.metrics.SetRouteCount(len(next))
	r.logger.Info("route map refreshed", zap.Int("routes", len(next)))
	return nil
}

// RunRefreshLoop rebuilds the route map on a fixed period until the context
// ends. Readers keep serving the previous map while a rebuild runs.
func (r *Registry) RunRefreshLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("periodic route refresh failed", zap.Error(err))
			}
		}
	}
}

// Route returns the live route for a tool name.
func (r *Registry) Route(name string) (*Route, bool) {
	routes := *r.routes.Load()
	route, ok := routes[name]
	return route, ok
}

// Schema returns the compiled parameter shape for a tool name. It satisfies
// the translator's lookup contract.
func (r *Registry) Schema(name string) (*domain.ObjectDescriptor, bool) {
	route, ok := r.Route(name)
	if !ok {
		return nil, false
	}
	return route.Schema, true
}

// List returns the live routes sorted by tool name.
func (r *Registry) List() []RouteInfo {
	routes := *r.routes.Load()
	out := make([]RouteInfo, 0, len(routes))
	for _, route := range routes {
		out = append(out, RouteInfo{
			Name:        route.Tool.Name,
			Description: route.Tool.Description,
			Endpoint:    route.Endpoint,
			Method:      route.Method,
			Schema:      schema.Describe(route.Schema),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of live routes.
func (r *Registry) Count() int {
	return len(*r.routes.Load())
}
