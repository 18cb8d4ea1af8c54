package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// App is everything a front end needs; Close releases it.
type App struct {
	Config  Config
	DB      *sql.DB
	Journal *Journal
	Service *Service
}

func (a *App) Close() {
	a.Journal.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// Init creates directories, opens the DB and the journal, loads the
// catalog and the LLM client, and syncs the catalog into the DB.
func Init(ctx context.Context, cfg Config) (*App, error) {
	mustEnsureDirs(cfg)

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	journal := NewJournal(cfg)

	fail := func(err error) (*App, error) {
		journal.Close()
		_ = db.Close()
		return nil, err
	}

	catalog, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return fail(err)
	}

	llm, err := NewLLM(ctx, cfg)
	if err != nil {
		if !errors.Is(err, ErrNoLLM) {
			return fail(fmt.Errorf("llm: %w", err))
		}
		log.Warn().Msg("no LLM API key set; quizzes and questions use built-in defaults")
		llm = nil
	}

	svc, err := NewService(cfg, db, catalog, llm, journal)
	if err != nil {
		return fail(err)
	}
	if err := svc.SyncCatalog(ctx); err != nil {
		return fail(err)
	}
	log.Info().Int("videos", len(catalog.Videos())).Str("db", cfg.DBPath).Msg("catalog loaded")

	return &App{Config: cfg, DB: db, Journal: journal, Service: svc}, nil
}
