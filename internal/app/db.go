package app

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS videos (
  id TEXT PRIMARY KEY,
  topic TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  link TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT '',
  duration TEXT NOT NULL DEFAULT '',
  views TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  thumbnail TEXT NOT NULL DEFAULT '',
  tags TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);

/*
================================================
Generated quizzes, keyed by sha256(title, description)
================================================
*/
CREATE TABLE IF NOT EXISTS quiz_cache (
  cache_key TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  json TEXT NOT NULL,
  created_at TEXT NOT NULL
);

/*
================================================
Quizzes as served to a learner, graded by id
================================================
*/
CREATE TABLE IF NOT EXISTS served_quizzes (
  id TEXT PRIMARY KEY,
  video_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  json TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_served_quizzes_created
  ON served_quizzes(created_at);

/*
================================================
Graded attempts
================================================
*/
CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  video_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  percentage REAL NOT NULL,
  answers_json TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_video_created
  ON quiz_attempts(video_id, created_at);

/*
================================================
Open question evaluations
================================================
*/
CREATE TABLE IF NOT EXISTS qa_evaluations (
  id TEXT PRIMARY KEY,
  question TEXT NOT NULL,
  answer TEXT NOT NULL,
  score REAL NOT NULL,
  feedback TEXT NOT NULL,
  concepts_json TEXT NOT NULL,
  created_at TEXT NOT NULL
);
`

func openDB(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// single writer by default; pragmas ride on the DSN so every pooled
	// connection gets them
	maxConns := cfg.SQLiteMaxOpenConns
	if maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// sqliteDSN appends the configured pragmas as modernc _pragma parameters.
// journal_mode and synchronous take no bound parameters; only known
// literals pass.
func sqliteDSN(cfg Config) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	if cfg.SQLiteBusyTimeoutMS > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.SQLiteBusyTimeoutMS))
	}
	if jm := strings.ToUpper(strings.TrimSpace(cfg.SQLiteJournalMode)); isPragmaWord(jm, "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF") {
		q.Add("_pragma", "journal_mode("+jm+")")
	}
	if sync := strings.ToUpper(strings.TrimSpace(cfg.SQLiteSynchronous)); isPragmaWord(sync, "OFF", "NORMAL", "FULL", "EXTRA") {
		q.Add("_pragma", "synchronous("+sync+")")
	}
	return cfg.DBPath + "?" + q.Encode()
}

func isPragmaWord(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
