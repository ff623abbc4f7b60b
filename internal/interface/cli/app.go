package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/backend"
	"github.com/neilberkman/ragchat/internal/core/config"
	"github.com/neilberkman/ragchat/internal/core/importer"
	"github.com/neilberkman/ragchat/internal/core/logging"
	"github.com/neilberkman/ragchat/internal/core/repository"
	"github.com/neilberkman/ragchat/internal/core/session"
	"github.com/neilberkman/ragchat/internal/core/store"
)

// app bundles everything a command needs
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	repo     *repository.Repository
	client   *backend.Client
	importer *importer.Importer
	coord    *session.Coordinator
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// openApp loads config and wires the session store. console enables the
// stderr log core; the TUI never sets it.
func openApp(console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		File:    cfg.Log.File,
		Verbose: verbose || cfg.Log.Verbose,
		Console: console && verbose,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	repo := repository.New(st,
		repository.WithLogger(logger),
		repository.WithAutoTitleOverridesRename(cfg.Chat.AutoTitleOverridesRename),
		repository.WithTitleMaxLen(cfg.Chat.TitleMaxLen),
	)
	if err := repo.Init(); err != nil {
		if !repository.IsWarning(err) {
			_ = st.Close()
			return nil, err
		}
		warn("Saved chats could not be fully loaded: %v", err)
	}

	client := backend.FromConfig(cfg, logger)
	imp := importer.New(repo, client,
		importer.WithLogger(logger),
		importer.WithTitleMaxLen(cfg.Chat.TitleMaxLen),
	)
	coord := session.New(repo, client, imp,
		session.WithLogger(logger),
		session.WithDefaultModel(cfg.Chat.DefaultModel),
		session.WithShareLink(cfg.Share.LinkTemplate, cfg.Share.BaseURL),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		repo:     repo,
		client:   client,
		importer: imp,
		coord:    coord,
	}, nil
}

func (a *app) Close() {
	a.coord.Close()
	_ = a.repo.Dispose()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// resolve returns the session id matching an exact id, a unique id prefix
// or a 1-based list index
func (a *app) resolve(ref string) (string, error) {
	if a.repo.Has(ref) {
		return ref, nil
	}
	order := a.repo.Order()
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx >= 1 && idx <= len(order) {
			return order[idx-1], nil
		}
	}
	var match string
	for _, id := range order {
		if len(ref) >= 4 && strings.HasPrefix(id, ref) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one session", ref)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%s: %w", ref, repository.ErrSessionNotFound)
	}
	return match, nil
}

// warn prints a non-fatal problem in yellow
func warn(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.YellowString("Warning: "+format, args...))
}

// report prints err as a warning when it is a storage warning and returns
// nil, otherwise returns err unchanged
func report(err error) error {
	if err != nil && repository.IsWarning(err) {
		warn("%v (changes will be lost when ragchat exits)", err)
		return nil
	}
	return err
}

// truncate shortens s to maxLen runes on a word boundary
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i > len(cut)-20 && i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
