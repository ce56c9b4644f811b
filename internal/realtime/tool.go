package realtime

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Tool is a named operation the upstream model can invoke mid-conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g. "book_appointment").
	Name string

	// Description explains what the tool does, helping the model decide
	// when to use it.
	Description string

	// Parameters is the JSON schema for the tool's arguments.
	Parameters map[string]any

	// Handler receives the parsed arguments and returns a JSON-compatible
	// result. A returned error becomes a structured error payload in the
	// tool response; it never terminates the session.
	Handler func(ctx context.Context, args map[string]any) (any, error)
}

// Registry maps operation names to handlers. The tool set is fixed at
// session start; Register is not safe to call after dispatching begins.
type Registry struct {
	tools map[string]Tool
	order []string
	log   zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   log,
	}
}

func (r *Registry) Register(t Tool) {
	if _, dup := r.tools[t.Name]; !dup {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Catalog returns the tool descriptors for the session configuration frame,
// in registration order.
func (r *Registry) Catalog() []ToolDescriptor {
	catalog := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		catalog = append(catalog, ToolDescriptor{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return catalog
}

// errorContent is the structured error payload the model receives when a
// tool cannot produce a result.
type errorContent struct {
	Error string `json:"error"`
}

// Dispatch runs one tool call and always returns exactly one response frame
// carrying the call's correlation id. Unknown names, domain failures and
// even handler panics all become an {error: ...} payload; nothing a handler
// does can escape to the session.
func (r *Registry) Dispatch(ctx context.Context, call ToolCallFrame) (resp ToolResponseFrame) {
	resp = ToolResponseFrame{
		Type:   TypeToolResponse,
		CallID: call.ID,
		Name:   call.Name,
	}

	tool, ok := r.tools[call.Name]
	if !ok {
		r.log.Warn().Str("tool", call.Name).Str("call_id", call.ID).Msg("unknown tool requested")
		resp.Content = errorContent{Error: "Unknown tool"}
		return resp
	}

	defer func() {
		if rec := recover(); rec != nil {
			// Panics are recovered at the same boundary as domain errors but
			// logged at error level so they stand out from expected outcomes.
			r.log.Error().Str("tool", call.Name).Str("call_id", call.ID).
				Interface("panic", rec).Msg("tool handler panicked")
			resp.Content = errorContent{Error: fmt.Sprintf("tool %s failed unexpectedly", call.Name)}
		}
	}()

	result, err := tool.Handler(ctx, call.Content)
	if err != nil {
		r.log.Info().Str("tool", call.Name).Str("call_id", call.ID).
			Err(err).Msg("tool returned error")
		resp.Content = errorContent{Error: err.Error()}
		return resp
	}

	resp.Content = result
	return resp
}
