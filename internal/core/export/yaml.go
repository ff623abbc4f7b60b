package export

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// YAMLExporter writes the full session with messages in display order
type YAMLExporter struct{}

type yamlSession struct {
	ID         string            `yaml:"id"`
	Title      string            `yaml:"title"`
	Model      string            `yaml:"model,omitempty"`
	SharedFrom string            `yaml:"shared_from,omitempty"`
	CreatedAt  time.Time         `yaml:"created_at"`
	UpdatedAt  time.Time         `yaml:"updated_at"`
	Messages   []*models.Message `yaml:"messages"`
}

func (e *YAMLExporter) Export(session *models.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(yamlSession{
		ID:         session.ID,
		Title:      session.DisplayTitle(),
		Model:      session.Model,
		SharedFrom: session.SharedFrom,
		CreatedAt:  session.CreatedAt,
		UpdatedAt:  session.UpdatedAt,
		Messages:   session.Ordered(),
	})
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
