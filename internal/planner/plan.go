package planner

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/mohammad-safakhou/advisor/internal/tools"
)

// MaxSteps bounds the number of tool calls in one plan.
const MaxSteps = 3

// FallbackRationale is reported when the model output could not be used.
const FallbackRationale = "fallback"

// Step is a single tool invocation. Args may contain {{placeholders}}.
type Step struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// Plan is the ordered list of steps proposed for one request.
type Plan struct {
	Steps      []Step  `json:"plan"`
	Rationale  string  `json:"why"`
	Confidence float64 `json:"confidence"`
}

// Fallback is the empty plan used when the model output is unusable.
func Fallback() Plan {
	return Plan{Steps: []Step{}, Rationale: FallbackRationale}
}

// Empty reports whether the plan calls no tools.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// KnownFunc reports whether a tool name is registered.
type KnownFunc func(name string) bool

var simpleDecimal = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParsePlan validates a decoded {"plan","why","confidence"} object.
// Only the first MaxSteps raw entries are considered; entries that are not
// objects, name an unknown tool or name skip are dropped and described in
// the returned notes.
func ParsePlan(obj map[string]interface{}, known KnownFunc) (Plan, []string) {
	if obj == nil {
		return Fallback(), nil
	}
	raw, ok := obj["plan"]
	if !ok {
		return Fallback(), nil
	}
	plan := Plan{
		Steps:      []Step{},
		Rationale:  stringField(obj, "why"),
		Confidence: Confidence(obj["confidence"]),
	}
	entries, _ := raw.([]interface{})
	if len(entries) > MaxSteps {
		entries = entries[:MaxSteps]
	}
	var notes []string
	for i, entry := range entries {
		step, ok := entry.(map[string]interface{})
		if !ok {
			notes = append(notes, fmt.Sprintf("step %d: not an object", i))
			continue
		}
		name, _ := step["tool"].(string)
		if name == "" {
			name = tools.Skip
		}
		if name == tools.Skip {
			continue
		}
		if known == nil || !known(name) {
			notes = append(notes, fmt.Sprintf("step %d: unknown tool %q", i, name))
			continue
		}
		plan.Steps = append(plan.Steps, Step{Tool: name, Args: argsField(step)})
	}
	return plan, notes
}

// ParseDecision validates a decoded single-step {"tool","args","why","confidence"}
// object into a plan of zero or one steps.
func ParseDecision(obj map[string]interface{}, known KnownFunc) (Plan, []string) {
	if obj == nil {
		return Fallback(), nil
	}
	plan := Plan{
		Steps:      []Step{},
		Rationale:  stringField(obj, "why"),
		Confidence: Confidence(obj["confidence"]),
	}
	name, _ := obj["tool"].(string)
	if name == "" || name == tools.Skip {
		return plan, nil
	}
	if known == nil || !known(name) {
		return plan, []string{fmt.Sprintf("unknown tool %q", name)}
	}
	plan.Steps = append(plan.Steps, Step{Tool: name, Args: argsField(obj)})
	return plan, nil
}

// Confidence accepts only values whose text form is a plain non-negative
// decimal ("0.8", "1", ".5"); anything else is 0. The result is capped at 1.
func Confidence(v interface{}) float64 {
	var text string
	switch c := v.(type) {
	case string:
		text = c
	case float64:
		text = strconv.FormatFloat(c, 'f', -1, 64)
	case fmt.Stringer:
		text = c.String()
	default:
		return 0
	}
	if !simpleDecimal.MatchString(text) {
		return 0
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func argsField(obj map[string]interface{}) map[string]interface{} {
	if args, ok := obj["args"].(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}
