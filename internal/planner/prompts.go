package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/advisor/internal/tools"
)

// ReasoningInstructions is the system prompt of the routing model.
const ReasoningInstructions = "You are a financial assistant that decides which tool calls are needed to answer a client's question and give financial advice. " +
	"The tools can read the client's profile, the client's transaction history and the catalog of investment packages. " +
	"When no tool is needed, answer with skip. " +
	"Clients and investment packages share one discrete risk scale: 'usor' (low), 'mediu' (medium), 'ridicat' (high). " +
	"When recommending or looking up packages, align the package risk with the client's risk whenever it is known."

// CatalogText renders one line per tool for the routing prompt.
func CatalogText(specs []tools.ToolSpec) string {
	lines := make([]string, 0, len(specs))
	for _, spec := range specs {
		args := spec.Args
		if args == nil {
			args = map[string]string{}
		}
		raw, _ := json.Marshal(args)
		lines = append(lines, fmt.Sprintf("- %s: %s | args: %s", spec.Name, spec.Description, raw))
	}
	return strings.Join(lines, "\n")
}

func toolNames(specs []tools.ToolSpec) string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, fmt.Sprintf("%q", spec.Name))
	}
	return strings.Join(names, " | ")
}

// PlanPrompt asks for a multi-step plan of up to MaxSteps tool calls.
func PlanPrompt(specs []tools.ToolSpec, userText string) string {
	return fmt.Sprintf(`You are a tool-routing planner.

TOOLS AVAILABLE:
%s

Reply with STRICT JSON only, no prose, using this shape:
{
  "plan": [{"tool": %s, "args": {}}],
  "why": "short reason",
  "confidence": 0.0
}

Rules:
- Use as few steps as possible (0..%d).
- When the question can be answered without tools, return an empty plan (skip).
- When a step needs a client attribute that is not known yet (for example the risk category), first schedule "database_info" to fetch it, then reference its output with a placeholder, e.g. "investment_packages" with {"risk": "{{database_info.risk_profile}}"}. {{last.<field>}} refers to the previous step's output.
- Only use tools from the list above. Keep args short and omit defaults.
- Do NOT write anything outside the JSON.

User message:
"""%s"""`, CatalogText(specs), toolNames(specs), MaxSteps, userText)
}

// DecisionPrompt asks for a single tool choice.
func DecisionPrompt(specs []tools.ToolSpec, userText string) string {
	return fmt.Sprintf(`You are a tool-routing planner.

TOOLS AVAILABLE:
%s

Reply with STRICT JSON only, no prose, using this shape:
{
  "tool": %s,
  "args": {},
  "why": "short reason",
  "confidence": 0.0
}

Decision rules:
- Choose "skip" when the question can be answered well without current client data.
- Choose "database_info" for the client profile needed to tailor advice.
- Choose "transaction_history" when recent activity is needed for a precise answer.
- Choose "investment_packages" when the user asks which packages exist or wants product details; include {"risk": "usor|mediu|ridicat"} when the client's risk is known or stated.

User message:
"""%s"""`, CatalogText(specs), toolNames(specs), userText)
}
