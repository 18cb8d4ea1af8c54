package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Service holds everything the HTTP API, the pages and the terminal front
// end share. llm may be nil; every LLM-backed operation then degrades to
// its static default.
type Service struct {
	cfg       Config
	db        *sql.DB
	catalog   *Catalog
	llm       LLM
	journal   *Journal
	quizCache *lru.Cache[string, []Question]
	// served quizzes by id, backed by the served_quizzes table
	servedQuizzes *lru.Cache[string, Quiz]
	now           func() time.Time
}

func NewService(cfg Config, db *sql.DB, catalog *Catalog, llm LLM, journal *Journal) (*Service, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	size := cfg.QuizCacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, []Question](size)
	if err != nil {
		return nil, fmt.Errorf("quiz cache: %w", err)
	}
	served, err := lru.New[string, Quiz](size)
	if err != nil {
		return nil, fmt.Errorf("served quiz cache: %w", err)
	}
	return &Service{
		cfg:           cfg,
		db:            db,
		catalog:       catalog,
		llm:           llm,
		journal:       journal,
		quizCache:     cache,
		servedQuizzes: served,
		now:           time.Now,
	}, nil
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) HasLLM() bool { return s.llm != nil }

func (s *Service) clock() time.Time { return s.now().In(s.cfg.Location) }

func (s *Service) journalRecord(event string, fields map[string]any) {
	if err := s.journal.Record(event, fields); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("journal write failed")
	}
}

// SyncCatalog copies the in-memory catalog into the videos table.
func (s *Service) SyncCatalog(ctx context.Context) error {
	return syncVideos(ctx, s.db, s.catalog.Videos(), s.clock())
}

// LookupVideo is the topic -> link table lookup with the default link.
func (s *Service) LookupVideo(topic string) string {
	return s.catalog.LookupVideo(topic)
}

// Videos lists the stored catalog.
func (s *Service) Videos(ctx context.Context) ([]Video, error) {
	return listVideos(ctx, s.db)
}

// Search returns catalog videos matching query, best first.
func (s *Service) Search(ctx context.Context, query string) ([]Video, error) {
	videos, err := searchVideos(ctx, s.db, query, s.cfg.SearchLimit, s.cfg.SearchCoursesOnly)
	if err != nil {
		return nil, err
	}
	s.journalRecord("search", map[string]any{"query": query, "results": len(videos)})
	return videos, nil
}

// Stats summarizes graded attempts; an empty videoID covers all videos.
func (s *Service) Stats(ctx context.Context, videoID string) (AttemptStats, error) {
	return loadAttemptStats(ctx, s.db, videoID)
}
