package agent

import (
	"fmt"
	"strings"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// DefaultPreamble opens the system prompt when no override is configured.
const DefaultPreamble = "You are IntelliBrowse, an autonomous assistant that completes tasks by " +
	"controlling a web browser, parsing screenshots, and analyzing documents."

// BuildSystemPrompt renders the fixed instructions prompt: the preamble, the
// response grammar, and the enumeration of currently registered tools. It is
// derived from the live registry at session creation so the model is only
// ever told about tools that are actually callable.
func BuildSystemPrompt(preamble string, defs []tool.Definition) string {
	if preamble == "" {
		preamble = DefaultPreamble
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")
	b.WriteString("Work in repeated Thought / Action / Observation steps:\n")
	b.WriteString("1. Reason about the next step in a line starting with \"Thought:\".\n")
	b.WriteString("2. To use a tool, write exactly one line of the form:\n")
	b.WriteString("   Action: tool.name(param=\"value\", other=\"value\")\n")
	b.WriteString("   Every parameter value must be double-quoted; escape embedded quotes as \\\".\n")
	b.WriteString("3. The system will reply with a line starting \"Observation:\" containing the tool result. Never write an Observation yourself.\n")
	b.WriteString("4. When you can answer the user, reply without any Action line; that reply is the final answer.\n")

	if len(defs) == 0 {
		b.WriteString("\nNo tools are available; answer from your own knowledge.\n")
		return b.String()
	}

	b.WriteString("\nAvailable tools:\n")
	for _, def := range defs {
		b.WriteString(fmt.Sprintf("- %s: %s", def.Name, def.Description))
		if len(def.Parameters) > 0 {
			names := make([]string, 0, len(def.Parameters))
			for _, p := range def.Parameters {
				name := p.Name
				if p.Required {
					name += " (required)"
				}
				names = append(names, name)
			}
			b.WriteString(fmt.Sprintf(" Parameters: %s.", strings.Join(names, ", ")))
		}
		b.WriteString("\n")
	}

	return b.String()
}
