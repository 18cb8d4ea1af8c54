package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger from cfg.
func SetupLogging(cfg Config, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.LogFormat != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Journal appends learner activity (searches, served quizzes, grades,
// evaluations) to one JSONL file per day. When the day changes, files
// older than KeepJournalDays are moved into ArchiveDir.
type Journal struct {
	cfg        Config
	file       *os.File
	currentDay string

	mu             sync.Mutex
	lastArchiveDay string
	now            func() time.Time
}

func NewJournal(cfg Config) *Journal {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Journal{
		cfg: cfg,
		now: time.Now,
	}
}

func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		_ = j.file.Close()
		j.file = nil
	}
}

// Record writes one event. Nil journals are a no-op so callers and tests
// can run without a journal directory.
func (j *Journal) Record(event string, fields map[string]any) error {
	if j == nil {
		return nil
	}
	now := j.now().In(j.cfg.Location)
	today := now.Format("2006-01-02")

	rec := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = sanitizeUTF8(s)
		}
		rec[k] = v
	}
	rec["event"] = event
	rec["ts"] = now.Format(time.RFC3339)

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	var archive bool

	j.mu.Lock()
	if j.currentDay != "" && j.currentDay != today {
		if j.file != nil {
			_ = j.file.Close()
			j.file = nil
		}
		j.currentDay = ""
		if j.lastArchiveDay != today {
			archive = true
			j.lastArchiveDay = today
		}
	}

	if j.file == nil {
		if err := os.MkdirAll(j.cfg.JournalDir, 0755); err != nil {
			j.mu.Unlock()
			return err
		}
		f, err := os.OpenFile(
			filepath.Join(j.cfg.JournalDir, today+".jsonl"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY,
			0644,
		)
		if err != nil {
			j.mu.Unlock()
			return err
		}
		j.file = f
		j.currentDay = today
	}
	j.mu.Unlock()

	// archiving touches other files only; do not hold the lock
	if archive {
		if n, err := archiveJournal(j.cfg, now); err != nil {
			log.Warn().Err(err).Msg("journal archive failed")
		} else if n > 0 {
			log.Info().Int("files", n).Msg("journal archived")
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return fmt.Errorf("journal file not open")
	}
	_, err = j.file.Write(append(b, '\n'))
	return err
}

// archiveJournal moves day files older than KeepJournalDays into ArchiveDir.
func archiveJournal(cfg Config, now time.Time) (int, error) {
	if cfg.KeepJournalDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(cfg.JournalDir)
	if err != nil {
		return 0, err
	}
	cutoff := now.AddDate(0, 0, -cfg.KeepJournalDays).Format("2006-01-02")

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		day := strings.TrimSuffix(name, ".jsonl")
		if _, err := time.Parse("2006-01-02", day); err != nil {
			continue
		}
		// ISO dates compare lexically
		if day < cutoff {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return 0, nil
	}
	sort.Strings(names)

	if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
		return 0, err
	}
	moved := 0
	for _, name := range names {
		if err := os.Rename(filepath.Join(cfg.JournalDir, name), filepath.Join(cfg.ArchiveDir, name)); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
