package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/repository"
	"github.com/neilberkman/ragchat/pkg/transcript"
)

var (
	ErrTranscriptNotFound  = transcript.ErrNotFound
	ErrMalformedTranscript = transcript.ErrMalformed
)

// ImportError reports a shared chat that could not be brought in
type ImportError struct {
	ExternalID string
	Err        error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.ExternalID, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Fetcher downloads a shared transcript by its external identifier
type Fetcher interface {
	FetchShare(ctx context.Context, id string) (*transcript.Transcript, error)
}

// Sessions is the part of the repository the importer needs
type Sessions interface {
	Get(id string) (*models.Session, bool)
	InsertSession(s *models.Session) error
}

// Importer turns shared transcripts into local sessions
type Importer struct {
	repo        Sessions
	fetcher     Fetcher
	logger      *zap.Logger
	now         func() time.Time
	titleMaxLen int
}

type Option func(*Importer)

func WithLogger(l *zap.Logger) Option {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

func WithTitleMaxLen(n int) Option {
	return func(i *Importer) { i.titleMaxLen = n }
}

// New creates an importer. fetcher may be nil when only files are imported.
func New(repo Sessions, fetcher Fetcher, opts ...Option) *Importer {
	i := &Importer{
		repo:        repo,
		fetcher:     fetcher,
		logger:      zap.NewNop(),
		now:         time.Now,
		titleMaxLen: models.DefaultTitleMaxLen,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import brings in the shared chat with the given identifier. If a session
// with that identifier already exists it is returned with created=false and
// nothing is fetched. A *repository.PersistError alongside a session means
// the import succeeded in memory but was not saved.
func (i *Importer) Import(ctx context.Context, externalID string) (*models.Session, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, false, &ImportError{Err: ErrTranscriptNotFound}
	}
	if s, ok := i.repo.Get(externalID); ok {
		return s, false, nil
	}
	if i.fetcher == nil {
		return nil, false, &ImportError{ExternalID: externalID, Err: errors.New("no share endpoint configured")}
	}

	tr, err := i.fetcher.FetchShare(ctx, externalID)
	if err != nil {
		i.logger.Warn("failed to fetch shared chat", zap.String("id", externalID), zap.Error(err))
		return nil, false, &ImportError{ExternalID: externalID, Err: err}
	}
	return i.insert(externalID, tr)
}

// ImportFile imports a transcript saved on disk, keyed by its chatId
func (i *Importer) ImportFile(path string) (*models.Session, bool, error) {
	tr, err := transcript.ParseFile(path)
	if err != nil {
		return nil, false, &ImportError{ExternalID: path, Err: err}
	}
	if s, ok := i.repo.Get(tr.ChatID); ok {
		return s, false, nil
	}
	return i.insert(tr.ChatID, tr)
}

func (i *Importer) insert(id string, tr *transcript.Transcript) (*models.Session, bool, error) {
	if err := tr.Validate(); err != nil {
		return nil, false, &ImportError{ExternalID: id, Err: err}
	}

	s := ToSession(id, tr, i.now(), i.titleMaxLen)
	err := i.repo.InsertSession(s)
	switch {
	case errors.Is(err, repository.ErrDuplicateSession):
		// Imported concurrently; keep the first copy
		if existing, ok := i.repo.Get(id); ok {
			return existing, false, nil
		}
		return nil, false, &ImportError{ExternalID: id, Err: err}
	case repository.IsWarning(err):
		i.logger.Warn("imported shared chat was not saved", zap.String("id", id), zap.Error(err))
		return s, true, err
	case err != nil:
		return nil, false, &ImportError{ExternalID: id, Err: err}
	}

	i.logger.Info("imported shared chat", zap.String("id", id), zap.Int("messages", len(s.Messages)))
	return s, true, nil
}

// ToSession maps a transcript onto a session. Message ids come from the
// entry position since the wire format has none.
func ToSession(id string, tr *transcript.Transcript, now time.Time, titleMaxLen int) *models.Session {
	s := models.NewSession(id, "", now)
	s.SharedFrom = id

	var first, last time.Time
	for pos, e := range tr.History {
		m := &models.Message{
			ID:       MessageID(pos),
			Role:     importRole(e.Role),
			Content:  e.Content,
			Position: pos,
			Status:   models.StatusSettled,
		}
		if e.Timestamp != nil && !e.Timestamp.IsZero() {
			m.Timestamp = e.Timestamp.Time
			if first.IsZero() {
				first = m.Timestamp
			}
			last = m.Timestamp
		}
		for _, d := range e.UsedDocuments {
			m.Sources = append(m.Sources, models.SourceRef{DocumentID: d.ID, Name: d.Name, Snippet: d.Snippet})
		}
		s.Messages[m.ID] = m
	}

	if !first.IsZero() {
		s.CreatedAt = first
		s.UpdatedAt = last
	}
	s.Title = s.DeriveTitle(titleMaxLen)
	return s
}

// MessageID names the message at a transcript position
func MessageID(pos int) string {
	return fmt.Sprintf("msg-%04d", pos+1)
}

// Only an explicit "assistant" label is the assistant
func importRole(label string) models.Role {
	if label == string(models.RoleAssistant) {
		return models.RoleAssistant
	}
	return models.RoleHuman
}

// Stats summarises a batch import
type Stats struct {
	Imported int
	Existing int
	Failed   int
}

// ImportMany imports each identifier in turn, reporting progress after
// each one. Failures do not stop the batch; they are joined into the
// returned error.
func (i *Importer) ImportMany(ctx context.Context, ids []string, progress ProgressCallback) (Stats, error) {
	var (
		stats Stats
		errs  []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		s, created, err := i.Import(ctx, id)
		switch {
		case s == nil:
			stats.Failed++
			errs = append(errs, err)
		case created:
			stats.Imported++
			if err != nil {
				errs = append(errs, err)
			}
		default:
			stats.Existing++
		}

		if progress != nil {
			title, firstMsg := id, ""
			if s != nil {
				title = s.DisplayTitle()
				if m := s.FirstHumanMessage(); m != nil {
					firstMsg = models.TruncateTitle(m.Content, 100)
				}
			}
			progress.Update(title, firstMsg)
		}
	}
	if progress != nil {
		progress.Finish()
	}
	return stats, errors.Join(errs...)
}
