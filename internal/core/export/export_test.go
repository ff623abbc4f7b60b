package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/pkg/transcript"
)

func sampleSession() *models.Session {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	s := models.NewSession("s1", "llama3", now)
	s.Title = "Deploy checklist"
	s.Messages["b"] = &models.Message{ID: "b", Role: models.RoleAssistant, Content: "Run **migrations** first.", Position: 1,
		Timestamp: now.Add(time.Minute), Status: models.StatusSettled, Sources: []models.SourceRef{{Name: "runbook.md"}}}
	s.Messages["a"] = &models.Message{ID: "a", Role: models.RoleHuman, Content: "How do I deploy?", Position: 0,
		Timestamp: now, Status: models.StatusSettled}
	return s
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"md", "md", false},
		{"markdown", "md", false},
		{"json", "json", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := NewExporter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewExporter(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if err == nil && exp.Extension() != tt.wantExt {
				t.Errorf("Extension() = %v, want %v", exp.Extension(), tt.wantExt)
			}
		})
	}
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleSession(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{"# Deploy checklist", "**Model:** llama3", "**You:**", "**Assistant:**", `\*\*migrations\*\*`, "- runbook.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "How do I deploy?") > strings.Index(out, "Run ") {
		t.Error("messages out of order")
	}
}

func TestJSONExporter_IsImportable(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleSession(), &buf); err != nil {
		t.Fatal(err)
	}

	tr, err := transcript.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("exported JSON does not parse as a transcript: %v", err)
	}
	if tr.ChatID != "s1" || len(tr.History) != 2 {
		t.Fatalf("transcript = %+v", tr)
	}
	if tr.History[0].Role != "human" || tr.History[1].UsedDocuments[0].Name != "runbook.md" {
		t.Errorf("history = %+v", tr.History)
	}
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(sampleSession(), &buf); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		ID       string `yaml:"id"`
		Title    string `yaml:"title"`
		Messages []struct {
			ID   string `yaml:"id"`
			Role string `yaml:"role"`
		} `yaml:"messages"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Title != "Deploy checklist" || len(decoded.Messages) != 2 || decoded.Messages[0].ID != "a" {
		t.Errorf("decoded = %+v", decoded)
	}
}
