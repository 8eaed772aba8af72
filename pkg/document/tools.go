package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// observationTextCap keeps document observations within a size the model
// context can absorb.
const observationTextCap = 16000

// RegisterTools adds the document.analyze tool backed by the inliner.
func RegisterTools(registry *tool.Registry, inliner *Inliner) error {
	def := tool.Definition{
		Name:        "document.analyze",
		Description: "Load a document from a file path or URL and return its content for analysis.",
		Parameters: []tool.Parameter{
			{Name: "source", Description: "File path or http(s) URL of the document.", Required: true},
			{Name: "question", Description: "Optional question to keep in mind while reading."},
		},
		Handler: func(ctx context.Context, params map[string]string) (string, error) {
			doc, err := inliner.Inline(ctx, params["source"])
			if err != nil {
				return "", err
			}
			return render(doc, params["question"]), nil
		},
	}

	if err := registry.Register(def); err != nil {
		return fmt.Errorf("register %s: %w", def.Name, err)
	}
	return nil
}

func render(doc *Document, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document %s (%s, %d bytes)", doc.Source, doc.MIME, doc.Size)
	if question != "" {
		fmt.Fprintf(&b, "\nQuestion: %s", question)
	}

	if doc.Text != "" {
		content := doc.Text
		if len(content) > observationTextCap {
			content = content[:observationTextCap] + "\n[truncated]"
		}
		fmt.Fprintf(&b, "\nContent:\n%s", content)
		return b.String()
	}

	b.WriteString("\nThe document is binary; its content cannot be shown as text.")
	return b.String()
}
