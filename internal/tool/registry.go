package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"voicebot/internal/domain"
	"voicebot/internal/metrics"
)

// Registry is the immutable, ordered set of tools offered to the chat model.
// Build it once at startup and share it; it has no mutating methods.
type Registry struct {
	tools   []domain.Tool
	index   map[string]int
	schemas []*jsonschema.Resolved
	defs    []domain.ToolDefinition
	logger  *slog.Logger
}

// NewRegistry validates the tools and precomputes their schemas.
func NewRegistry(logger *slog.Logger, tools ...domain.Tool) (*Registry, error) {
	r := &Registry{
		tools:  make([]domain.Tool, 0, len(tools)),
		index:  make(map[string]int, len(tools)),
		logger: logger,
	}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}

		schema, err := Schema(t.Params())
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("tool %s: resolve schema: %w", name, err)
		}
		params, err := SchemaMap(schema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}

		r.index[name] = len(r.tools)
		r.tools = append(r.tools, t)
		r.schemas = append(r.schemas, resolved)
		r.defs = append(r.defs, domain.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  params,
		})
		logger.Debug("registered tool", "name", name)
	}
	return r, nil
}

// Empty returns a registry that offers no tools.
func Empty(logger *slog.Logger) *Registry {
	return &Registry{index: map[string]int{}, logger: logger}
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []domain.Tool {
	out := make([]domain.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Lookup finds a tool by name. Unknown names yield a KindToolNotFound error.
func (r *Registry) Lookup(name string) (domain.Tool, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, domain.Errorf(domain.KindToolNotFound, "lookup tool", "unknown tool: %s (available: %v)", name, r.Names())
	}
	return r.tools[i], nil
}

// Definitions returns the model-facing catalog in registration order.
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Invoke resolves, validates and runs one model-issued tool call.
func (r *Registry) Invoke(ctx context.Context, call domain.ToolCall) (any, error) {
	t, err := r.Lookup(call.Name)
	if err != nil {
		return nil, err
	}
	op := "tool " + call.Name

	args, err := CoerceArgs(t.Params(), call.Arguments)
	if err != nil {
		return nil, domain.Wrap(domain.KindToolArguments, op, err)
	}
	if err := r.schemas[r.index[call.Name]].Validate(map[string]any(args)); err != nil {
		return nil, domain.Wrap(domain.KindToolArguments, op, err)
	}

	r.logger.Info("executing tool", "tool", call.Name, "call_id", call.ID)
	start := time.Now()
	result, err := t.Execute(ctx, args)
	metrics.ToolExecutions.Inc()
	metrics.ToolCalls(call.Name).Inc()
	metrics.ToolLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolErrors.Inc()
		return nil, domain.Wrap(domain.KindUpstream, op, err)
	}

	r.logger.Debug("tool completed", "tool", call.Name, "elapsed", time.Since(start))
	return result, nil
}
