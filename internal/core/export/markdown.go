package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(session *models.Session, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", session.DisplayTitle())

	if session.Model != "" {
		_, _ = fmt.Fprintf(w, "**Model:** %s  \n", session.Model)
	}
	if session.SharedFrom != "" {
		_, _ = fmt.Fprintf(w, "**Shared from:** %s  \n", session.SharedFrom)
	}
	if !session.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", session.CreatedAt.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))
	_, _ = fmt.Fprintf(w, "---\n\n")

	ordered := session.Ordered()
	for i, msg := range ordered {
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}
		label := "You"
		if msg.Role == models.RoleAssistant {
			label = "Assistant"
		}
		if msg.Failed {
			label += " (failed)"
		}

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", label, timestamp, escapeMarkdown(msg.Content))

		if len(msg.Sources) > 0 {
			_, _ = fmt.Fprintf(w, "Sources:\n")
			for _, src := range msg.Sources {
				name := src.Name
				if name == "" {
					name = src.DocumentID
				}
				_, _ = fmt.Fprintf(w, "- %s\n", name)
			}
			_, _ = fmt.Fprintf(w, "\n")
		}

		if i < len(ordered)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes emphasis markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false

	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}

	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
