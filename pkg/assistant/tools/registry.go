package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// defaultTimeout bounds a single tool invocation.
const defaultTimeout = 30 * time.Second

// ToolFunc is the handler signature for a registered tool. The returned
// string goes back to the model as the tool message content.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool couples a definition (what the model sees) with its handler.
type Tool struct {
	Definition *assistant.ToolDefinition
	Handler    ToolFunc
	// Timeout overrides defaultTimeout when set.
	Timeout time.Duration
}

// Registry holds the tools available to one session. Registries are cheap,
// a voice session builds its own so handlers can close over the room.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *logrus.Entry
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Entry) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Definition == nil || tool.Definition.Name == "" {
		return fmt.Errorf("tool requires a named definition")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s requires a handler", tool.Definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Definition.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Definition.Name)
	}
	if tool.Timeout == 0 {
		tool.Timeout = defaultTimeout
	}
	r.tools[tool.Definition.Name] = tool
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Definitions lists every registered definition for the chat request.
func (r *Registry) Definitions() []*assistant.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*assistant.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	return defs
}
