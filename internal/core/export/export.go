// Package export writes a session to a file format
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/pkg/transcript"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session *models.Session, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for md, json or yaml
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, yaml)", format)
	}
}

// ToTranscript converts a session to the shared transcript shape, which
// the importer reads back
func ToTranscript(s *models.Session) *transcript.Transcript {
	t := &transcript.Transcript{ChatID: s.ID, History: []transcript.Entry{}}
	for _, m := range s.Ordered() {
		e := transcript.Entry{Content: m.Content, Role: string(m.Role)}
		if !m.Timestamp.IsZero() {
			e.Timestamp = &transcript.Time{Time: m.Timestamp.UTC().Truncate(time.Millisecond)}
		}
		for _, src := range m.Sources {
			e.UsedDocuments = append(e.UsedDocuments, transcript.Document{ID: src.DocumentID, Name: src.Name, Snippet: src.Snippet})
		}
		t.History = append(t.History, e)
	}
	return t
}
