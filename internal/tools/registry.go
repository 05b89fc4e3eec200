package tools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Skip is the planner sentinel meaning "no tool needed". It is listed in the
// catalog but has no capability behind it.
const Skip = "skip"

var (
	// ErrUnknownTool is returned when executing a name that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArgs wraps argument schema violations.
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// ToolSpec describes a tool to the planner.
type ToolSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Args        map[string]string `json:"args_schema"`
	// InputSchema is an optional JSON Schema applied to resolved arguments.
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Tool is an executable capability.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Func adapts a plain function to Tool.
type Func struct {
	spec ToolSpec
	fn   func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewFunc wraps fn as a Tool described by spec.
func NewFunc(spec ToolSpec, fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)) *Func {
	return &Func{spec: spec, fn: fn}
}

func (f *Func) Spec() ToolSpec { return f.spec }

func (f *Func) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return f.fn(ctx, args)
}

// SkipSpec is the catalog entry for the skip sentinel.
func SkipSpec() ToolSpec {
	return ToolSpec{Name: Skip, Description: "No tool calls are needed.", Args: map[string]string{}}
}

// Registry is the read-only catalog of tools available to plans.
type Registry struct {
	order    []string
	tools    map[string]Tool
	schemas  map[string]*jsonschema.Schema
	checksum string
}

// NewRegistry validates and indexes tools in the given order.
func NewRegistry(list ...Tool) (*Registry, error) {
	reg := &Registry{
		tools:   make(map[string]Tool, len(list)),
		schemas: make(map[string]*jsonschema.Schema),
	}
	for _, t := range list {
		if t == nil {
			return nil, fmt.Errorf("nil tool")
		}
		spec := t.Spec()
		name := strings.TrimSpace(spec.Name)
		if name == "" || name == Skip {
			return nil, fmt.Errorf("invalid tool name %q", spec.Name)
		}
		if _, dup := reg.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		if spec.InputSchema != nil {
			schema, err := compileSchema(name, spec.InputSchema)
			if err != nil {
				return nil, err
			}
			reg.schemas[name] = schema
		}
		reg.order = append(reg.order, name)
		reg.tools[name] = t
	}
	sum, err := ComputeChecksum(reg.Catalog())
	if err != nil {
		return nil, err
	}
	reg.checksum = sum
	return reg, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Known reports whether name is a registered tool or the skip sentinel.
func (r *Registry) Known(name string) bool {
	if name == Skip {
		return true
	}
	_, ok := r.Lookup(name)
	return ok
}

// Catalog lists the registered tools in registration order, followed by skip.
func (r *Registry) Catalog() []ToolSpec {
	if r == nil {
		return []ToolSpec{SkipSpec()}
	}
	out := make([]ToolSpec, 0, len(r.order)+1)
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return append(out, SkipSpec())
}

// Checksum identifies the catalog contents.
func (r *Registry) Checksum() string {
	if r == nil {
		return ""
	}
	return r.checksum
}

// Execute validates args against the tool's schema and invokes it.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if schema := r.schemas[name]; schema != nil {
		doc, err := toJSONValue(args)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
	}
	return t.Invoke(ctx, args)
}

// ComputeChecksum returns a deterministic hash of the catalog.
func ComputeChecksum(specs []ToolSpec) (string, error) {
	normalized, err := json.Marshal(specs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

func compileSchema(name string, schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema: %w", name, err)
	}
	url := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool %s schema: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema: %w", name, err)
	}
	return compiled, nil
}

// toJSONValue round-trips v so the validator only sees JSON-native types.
func toJSONValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
