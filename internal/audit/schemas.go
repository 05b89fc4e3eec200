package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Event types written by the recorder.
const (
	EventRunCompleted   = "run.completed"
	EventQueryCompleted = "query.completed"
	PayloadV1           = "v1"
)

var runCompletedSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["run_id", "flow", "user_text", "plan", "results", "duration_ms"],
  "properties": {
    "run_id": {"type": "string", "minLength": 1},
    "flow": {"type": "string", "enum": ["plan", "route"]},
    "user_text": {"type": "string"},
    "plan": {"type": "object"},
    "results": {"type": "array"},
    "answer": {"type": "string"},
    "error": {"type": "string"},
    "duration_ms": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": true
}`)

var queryCompletedSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["run_id", "prompt", "sql", "duration_ms"],
  "properties": {
    "run_id": {"type": "string", "minLength": 1},
    "prompt": {"type": "string"},
    "table_hint": {"type": "string"},
    "sql": {"type": "string"},
    "row_count": {"type": "integer", "minimum": 0},
    "rejected": {"type": "boolean"},
    "error": {"type": "string"},
    "duration_ms": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": true
}`)

// SchemaRegistry stores compiled JSON Schemas keyed by event type and payload version.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]map[string]*jsonschema.Schema
}

// NewSchemaRegistry constructs a registry holding the audit event schemas.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	r := &SchemaRegistry{schemas: make(map[string]map[string]*jsonschema.Schema)}
	if err := r.Register(EventRunCompleted, PayloadV1, runCompletedSchema); err != nil {
		return nil, err
	}
	if err := r.Register(EventQueryCompleted, PayloadV1, queryCompletedSchema); err != nil {
		return nil, err
	}
	return r, nil
}

// Register compiles and stores a JSON schema for the given event type and version.
func (r *SchemaRegistry) Register(eventType, version string, schemaBytes []byte) error {
	if eventType == "" || version == "" {
		return fmt.Errorf("event type and version are required")
	}
	url := eventType + "." + version + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[eventType]; !ok {
		r.schemas[eventType] = make(map[string]*jsonschema.Schema)
	}
	r.schemas[eventType][version] = compiled
	return nil
}

// Validate checks payload bytes against the registered schema for event type/version.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	r.mu.RLock()
	schema := r.schemas[eventType][version]
	r.mu.RUnlock()
	if schema == nil {
		return fmt.Errorf("no schema registered for event %q version %q", eventType, version)
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s %s: %w", eventType, version, err)
	}
	return nil
}
