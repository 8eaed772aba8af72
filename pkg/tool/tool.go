// Package tool defines the tool abstraction and the registry that dispatches
// tool invocations with parameter validation.
package tool

import "context"

// Handler executes one tool invocation. The returned string becomes the
// observation fed back to the model.
type Handler func(ctx context.Context, params map[string]string) (string, error)

// Parameter describes one tool parameter. All parameters are strings on the
// wire; the description is surfaced to the model in the system prompt.
type Parameter struct {
	Name        string
	Description string
	Required    bool
}

// Definition is a registered tool: its callable name, the description and
// parameters shown to the model, and the handler that runs it.
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}
