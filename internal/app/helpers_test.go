package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	pythonVideoID = "rfscVS0vtbw"
	goVideoID     = "YS4e4q9oBaU"
	sqlVideoID    = "HXV3zeQKqGY"
)

// fakeLLM replays canned answers in order; the last one repeats.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	deltas    []string
	err       error
	calls     []ChatRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

func (f *fakeLLM) Stream(ctx context.Context, req ChatRequest, onDelta func(string)) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err, deltas := f.err, append([]string(nil), f.deltas...)
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	for _, d := range deltas {
		if onDelta != nil {
			onDelta(d)
		}
	}
	return strings.Join(deltas, ""), nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) lastCall() ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		BaseDir:                  dir,
		JournalDir:               filepath.Join(dir, "journal"),
		ArchiveDir:               filepath.Join(dir, "journal", "archive"),
		DBPath:                   filepath.Join(dir, "learnbot.sqlite"),
		HistoryFile:              filepath.Join(dir, "history"),
		Location:                 time.UTC,
		KeepJournalDays:          30,
		QuizCacheSize:            16,
		SearchLimit:              10,
		SearchCoursesOnly:        true,
		HTTPAddr:                 "127.0.0.1:0",
		HTTPMaxConcurrentStreams: 2,
		HTTPMaxInputBytes:        1024,
		CORSOrigins:              []string{"*"},
		SQLiteBusyTimeoutMS:      1000,
		SQLiteJournalMode:        "WAL",
		SQLiteSynchronous:        "NORMAL",
		SQLiteMaxOpenConns:       1,
		LogLevel:                 "error",
	}
}

// newTestService builds a Service on a temp SQLite file with the built-in
// catalog. Pass a nil LLM (untyped) to run without a provider.
func newTestService(t *testing.T, llm LLM) *Service {
	t.Helper()
	return newTestServiceWithConfig(t, testConfig(t), llm)
}

func newTestServiceWithConfig(t *testing.T, cfg Config, llm LLM) *Service {
	t.Helper()
	db, err := openDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	journal := NewJournal(cfg)
	t.Cleanup(journal.Close)

	svc, err := NewService(cfg, db, catalog, llm, journal)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	require.NoError(t, svc.SyncCatalog(context.Background()))
	return svc
}

const validQuizJSON = `[
  {"question": "What does ownership prevent?", "options": ["Data races", "Typos", "Slow builds", "Nothing"], "correct_answer": "Data races"},
  {"question": "Who frees memory?", "options": ["The owner going out of scope", "A GC", "The OS", "Nobody"], "correct_answer": "The owner going out of scope"},
  {"question": "What is a borrow?", "options": ["A reference", "A copy", "A move", "A clone"], "correct_answer": "A reference"}
]`
