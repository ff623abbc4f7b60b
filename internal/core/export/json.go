package export

import (
	"encoding/json"
	"io"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// JSONExporter writes the transcript form, pretty-printed
type JSONExporter struct{}

func (e *JSONExporter) Export(session *models.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToTranscript(session))
}

func (e *JSONExporter) Extension() string {
	return "json"
}
