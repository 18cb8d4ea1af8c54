package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =========================
// videos
// =========================

// syncVideos upserts the catalog into the videos table.
func syncVideos(ctx context.Context, db *sql.DB, videos []Video, now time.Time) error {
	ts := now.Format(time.RFC3339)
	return withTx(ctx, db, func(tx *sql.Tx) error {
		for _, v := range videos {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO videos(
				  id, topic, title, link, channel, duration, views,
				  description, thumbnail, tags, updated_at
				)
				VALUES(?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET
				  topic=excluded.topic,
				  title=excluded.title,
				  link=excluded.link,
				  channel=excluded.channel,
				  duration=excluded.duration,
				  views=excluded.views,
				  description=excluded.description,
				  thumbnail=excluded.thumbnail,
				  tags=excluded.tags,
				  updated_at=excluded.updated_at
			`, v.ID, normalizeKey(v.Topic), v.Title, v.Link, v.Channel, v.Duration, v.Views,
				v.Description, v.Thumbnail, strings.Join(v.Tags, ","), ts)
			if err != nil {
				return fmt.Errorf("upsert video %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

const videoColumns = `id, topic, title, link, channel, duration, views, description, thumbnail, tags`

func scanVideo(rows *sql.Rows) (Video, error) {
	var v Video
	var tags string
	if err := rows.Scan(&v.ID, &v.Topic, &v.Title, &v.Link, &v.Channel, &v.Duration,
		&v.Views, &v.Description, &v.Thumbnail, &tags); err != nil {
		return Video{}, err
	}
	if tags != "" {
		v.Tags = strings.Split(tags, ",")
	}
	return v, nil
}

func listVideos(ctx context.Context, db dbTX) ([]Video, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type searchHit struct {
	video Video
	score int
}

// searchVideos ranks videos by how many query tokens appear in their
// title, topic, channel, tags or description.
func searchVideos(ctx context.Context, db dbTX, query string, limit int, coursesOnly bool) ([]Video, error) {
	tokens := strings.Fields(normalizeKey(query))
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}

	var where []string
	var args []any
	for _, t := range tokens {
		like := "%" + escapeLike(t) + "%"
		where = append(where, `(lower(title) LIKE ? ESCAPE '\' OR topic LIKE ? ESCAPE '\' OR lower(channel) LIKE ? ESCAPE '\' OR lower(tags) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like, like, like)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE `+strings.Join(where, " OR "), args...)
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}
	defer rows.Close()

	var hits []searchHit
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		if coursesOnly && !isCourseTitle(v.Title) {
			continue
		}
		hits = append(hits, searchHit{video: v, score: videoScore(v, tokens)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].video.Title < hits[j].video.Title
	})

	out := make([]Video, 0, min(limit, len(hits)))
	for i := 0; i < len(hits) && i < limit; i++ {
		out = append(out, hits[i].video)
	}
	return out, nil
}

// isCourseTitle keeps playlist and course style entries only.
func isCourseTitle(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "playlist") || strings.Contains(t, "course")
}

// videoScore counts the query tokens found in any searchable field.
func videoScore(v Video, tokens []string) int {
	text := strings.ToLower(strings.Join([]string{
		v.Title, v.Topic, v.Channel, strings.Join(v.Tags, " "), v.Description,
	}, "\n"))

	score := 0
	for _, t := range tokens {
		if strings.Contains(text, t) {
			score++
		}
	}
	return score
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =========================
// quiz_cache
// =========================

func loadCachedQuiz(ctx context.Context, db dbTX, key string) ([]Question, bool, error) {
	var js string
	err := db.QueryRowContext(ctx, `SELECT json FROM quiz_cache WHERE cache_key=?`, key).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cached quiz: %w", err)
	}
	var qs []Question
	if err := json.Unmarshal([]byte(js), &qs); err != nil {
		return nil, false, fmt.Errorf("decode cached quiz: %w", err)
	}
	return qs, true, nil
}

func storeCachedQuiz(ctx context.Context, db dbTX, key, title string, qs []Question, now time.Time) error {
	b, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO quiz_cache(cache_key, title, json, created_at)
		VALUES(?,?,?,?)
		ON CONFLICT(cache_key) DO UPDATE SET
		  json=excluded.json,
		  title=excluded.title,
		  created_at=excluded.created_at
	`, key, title, string(b), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store cached quiz: %w", err)
	}
	return nil
}

// =========================
// served_quizzes
// =========================

// servedQuizTTL bounds how long a served quiz can still be submitted.
const servedQuizTTL = 7 * 24 * time.Hour

func storeServedQuiz(ctx context.Context, db dbTX, q Quiz, now time.Time) error {
	b, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO served_quizzes(id, video_id, title, source, json, created_at)
		VALUES(?,?,?,?,?,?)
	`, q.ID, q.VideoID, q.Title, q.Source, string(b), now.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("store served quiz: %w", err)
	}
	cutoff := now.Add(-servedQuizTTL).UTC().Format(time.RFC3339)
	if _, err := db.ExecContext(ctx, `DELETE FROM served_quizzes WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune served quizzes: %w", err)
	}
	return nil
}

func loadServedQuiz(ctx context.Context, db dbTX, id string) (Quiz, bool, error) {
	q := Quiz{ID: id}
	var js string
	err := db.QueryRowContext(ctx,
		`SELECT video_id, title, source, json FROM served_quizzes WHERE id=?`, id,
	).Scan(&q.VideoID, &q.Title, &q.Source, &js)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, false, nil
	}
	if err != nil {
		return Quiz{}, false, fmt.Errorf("load served quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(js), &q.Questions); err != nil {
		return Quiz{}, false, fmt.Errorf("decode served quiz: %w", err)
	}
	return q, true, nil
}

// =========================
// quiz_attempts
// =========================

func insertAttempt(ctx context.Context, db dbTX, a attemptRecord) error {
	b, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO quiz_attempts(
		  id, video_id, title, source, score, total, percentage, answers_json, created_at
		)
		VALUES(?,?,?,?,?,?,?,?,?)
	`, a.ID, a.VideoID, a.Title, a.Source, a.Score, a.Total, a.Percentage, string(b), a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

type attemptRecord struct {
	ID         string
	VideoID    string
	Title      string
	Source     string
	Score      int
	Total      int
	Percentage float64
	Answers    map[int]string
	CreatedAt  time.Time
}

// AttemptStats summarizes graded attempts, for one video or for all when
// VideoID is empty.
type AttemptStats struct {
	VideoID  string  `json:"video_id,omitempty"`
	Attempts int     `json:"attempts"`
	Best     float64 `json:"best_percentage"`
	Average  float64 `json:"average_percentage"`
	LastAt   string  `json:"last_attempt_at,omitempty"`
}

func loadAttemptStats(ctx context.Context, db dbTX, videoID string) (AttemptStats, error) {
	q := `SELECT COUNT(*), COALESCE(MAX(percentage),0), COALESCE(AVG(percentage),0), COALESCE(MAX(created_at),'') FROM quiz_attempts`
	var args []any
	if videoID != "" {
		q += ` WHERE video_id=?`
		args = append(args, videoID)
	}

	st := AttemptStats{VideoID: videoID}
	if err := db.QueryRowContext(ctx, q, args...).Scan(&st.Attempts, &st.Best, &st.Average, &st.LastAt); err != nil {
		return AttemptStats{}, fmt.Errorf("attempt stats: %w", err)
	}
	return st, nil
}

// =========================
// qa_evaluations
// =========================

func insertEvaluation(ctx context.Context, db dbTX, id, question, answer string, ev Evaluation, now time.Time) error {
	concepts := ev.ConceptsCovered
	if concepts == nil {
		concepts = []string{}
	}
	b, err := json.Marshal(concepts)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO qa_evaluations(id, question, answer, score, feedback, concepts_json, created_at)
		VALUES(?,?,?,?,?,?,?)
	`, id, question, answer, ev.Score, ev.Feedback, string(b), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}
