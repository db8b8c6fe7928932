package agenttools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrInvalidInput = errors.New("invalid tool input")
)

// Result is what a tool hands back to the decision procedure. Error
// results are shown to it so it can correct itself.
type Result struct {
	Content any  `json:"content"`
	IsError bool `json:"is_error,omitempty"`
}

func Success(content any) Result {
	return Result{Content: content}
}

func Errorf(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

func ErrorWithLabel(label string, err error) Result {
	return Result{Content: fmt.Sprintf("%s: %v", label, err), IsError: true}
}

// Text renders the result for the transcript.
func (r Result) Text() string {
	if s, ok := r.Content.(string); ok {
		return s
	}
	data, err := json.Marshal(r.Content)
	if err != nil {
		return fmt.Sprintf("%v", r.Content)
	}
	return string(data)
}

type Handler func(ctx context.Context, args json.RawMessage) Result

// Tool pairs a handler with the JSON Schema its input must satisfy.
type Tool struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Handler     Handler
}

// Func declares a tool whose arguments decode into P.
func Func[P any](name, description, schema string, fn func(ctx context.Context, p P) Result) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Schema:      json.RawMessage(schema),
		Handler: func(ctx context.Context, args json.RawMessage) Result {
			var p P
			if err := json.Unmarshal(args, &p); err != nil {
				return ErrorWithLabel("decode arguments", err)
			}
			return fn(ctx, p)
		},
	}
}

// Spec is the model-facing description of a tool.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type entry struct {
	tool       Tool
	compiled   *jsonschema.Schema
	parameters map[string]any
}

type Registry struct {
	tools map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]*entry{}}
}

func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	schema := t.Schema
	if len(bytes.TrimSpace(schema)) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	var parameters map[string]any
	if err := json.Unmarshal(schema, &parameters); err != nil {
		return fmt.Errorf("tool %s: decode schema: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	url := "https://skyagent.local/tools/" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("tool %s: add schema: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	r.tools[name] = &entry{tool: t, compiled: compiled, parameters: parameters}
	return nil
}

func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Specs lists registered tools sorted by name.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, Spec{Name: e.tool.Name, Description: e.tool.Description, Parameters: e.parameters})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute validates args against the tool's schema and runs it. Unknown
// tools and invalid input are returned as errors; handler failures come
// back as error Results.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (result Result, err error) {
	e, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}

	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := e.compiled.Validate(value); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	defer func() {
		if p := recover(); p != nil {
			result = Errorf("tool %s panicked: %v", name, p)
		}
	}()
	return e.tool.Handler(ctx, args), nil
}
