package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/shubcodes/fw-intellibrowse-agent/internal/observability"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// Registry holds the tools available to the agent. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Definition
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	observability.EnsureRegistered()

	return &Registry{
		tools:   make(map[string]Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger,
	}
}

// Register adds a tool. Names must be unique and match the invocation
// grammar the parser accepts.
func (r *Registry) Register(def Definition) error {
	if !namePattern.MatchString(def.Name) {
		return fmt.Errorf("invalid tool name: %q", def.Name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}

	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.tools[def.Name] = def
	r.schemas[def.Name] = schema

	r.logger.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// compileSchema builds the JSON schema validating a tool's parameters: an
// object of string properties with the required names enforced.
func compileSchema(params []Parameter) (*gojsonschema.Schema, error) {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		properties[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	return def, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns copies of all registered tools sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute validates params against the tool's schema and runs its handler.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]string) (string, error) {
	r.mu.RLock()
	def, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	if err := validate(schema, params); err != nil {
		return "", fmt.Errorf("invalid parameters for %s: %w", name, err)
	}

	start := time.Now()
	output, err := def.Handler(ctx, params)
	observability.RecordToolExecution(name, time.Since(start), err == nil)

	if err != nil {
		r.logger.Warn().Err(err).Str("tool", name).Msg("Tool execution failed")
		return "", err
	}

	r.logger.Debug().
		Str("tool", name).
		Dur("duration", time.Since(start)).
		Msg("Tool executed")
	return output, nil
}

func validate(schema *gojsonschema.Schema, params map[string]string) error {
	if params == nil {
		params = map[string]string{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return fmt.Errorf("%s", strings.Join(issues, "; "))
	}
	return nil
}

// MarshalParams renders params as compact JSON for logs.
func MarshalParams(params map[string]string) string {
	if len(params) == 0 {
		return "{}"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}
