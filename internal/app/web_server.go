package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type apiChatReq struct {
	VideoID string `json:"video_id"`
	Input   string `json:"input"`
}

type apiTextResp struct {
	Text string `json:"text"`
}

type apiGradeReq struct {
	QuizID  string         `json:"quiz_id"`
	Answers map[int]string `json:"answers"`
}

type apiEvaluateReq struct {
	Question OpenQuestion `json:"question"`
	Answer   string       `json:"answer"`
}

type apiQuizResp struct {
	QuizID string     `json:"quiz_id,omitempty"`
	Quiz   []Question `json:"quiz"`
}

type apiErrorResp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

const maxJSONBodyBytes = 1 << 20 // 1MB

const (
	testQuizTitle       = "Python Programming Basics"
	testQuizDescription = "Learn the fundamentals of Python programming language"
)

// Server wires the Service to HTTP: the JSON API and the form pages.
type Server struct {
	cfg       Config
	svc       *Service
	pages     *pageRenderer
	streamSem chan struct{}
}

func NewServer(cfg Config, svc *Service) (*Server, error) {
	pages, err := newPageRenderer()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		svc:       svc,
		pages:     pages,
		streamSem: make(chan struct{}, max(1, cfg.HTTPMaxConcurrentStreams)),
	}, nil
}

// ============================================================
// StartWeb
// ============================================================

func StartWeb(ctx context.Context, cfg Config, svc *Service) error {
	// Safe-by-default: refuse non-loopback bind unless an auth token is set,
	// or insecure remote bind is explicitly allowed.
	if !cfg.HTTPAllowInsecureRemote && cfg.HTTPAuthToken == "" && !isLoopbackListenAddr(cfg.HTTPAddr) {
		return fmt.Errorf("refusing to bind to %s without auth; set LEARNBOT_HTTP_AUTH_TOKEN or LEARNBOT_HTTP_ALLOW_INSECURE_REMOTE=1", cfg.HTTPAddr)
	}

	s, err := NewServer(cfg, svc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // SSE
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("web listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	r.Use(apiGuard(s.cfg))
	r.Use(middleware.Compress(5, "application/json", "text/html", "text/css"))

	// pages
	r.Get("/", s.handleIndex)
	r.Get("/player", s.handlePlayer)
	r.Post("/player", s.handlePlayerSubmit)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS()))))

	// public json
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/search", s.handleSearch)
	r.Get("/quiz", s.handleQuiz)
	r.Get("/quiz/{videoID}", s.handleVideoQuiz)
	r.Get("/test-quiz", s.handleTestQuiz)
	r.Get("/qa", s.handleOpenQuestions)

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", s.handleVideos)
		r.Get("/videos/lookup", s.handleVideoLookup)
		r.Get("/quiz/lookup", s.handleQuizLookup)
		r.Post("/quiz/grade", s.handleGrade)
		r.Get("/quiz/stats", s.handleStats)
		r.Post("/qa/evaluate", s.handleEvaluate)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Post("/command", s.handleCommand)
	})
	return r
}

// =========================
// catalog
// =========================

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.svc.Videos(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if videos == nil {
		videos = []Video{}
	}
	writeJSON(w, http.StatusOK, videos)
}

func (s *Server) handleVideoLookup(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	writeJSON(w, http.StatusOK, map[string]string{
		"topic": topic,
		"link":  s.svc.LookupVideo(topic),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	videos, err := s.svc.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// =========================
// quiz
// =========================

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quiz := s.svc.QuizFor(r.Context(), q.Get("video"), q.Get("title"), q.Get("description"))
	// the body stays a bare question list; the id needed for grading rides in a header
	w.Header().Set("X-Quiz-Id", quiz.ID)
	writeJSON(w, http.StatusOK, quiz.Questions)
}

func (s *Server) handleVideoQuiz(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quiz := s.svc.QuizFor(r.Context(), chi.URLParam(r, "videoID"), q.Get("title"), q.Get("description"))
	writeJSON(w, http.StatusOK, apiQuizResp{QuizID: quiz.ID, Quiz: quiz.Questions})
}

func (s *Server) handleTestQuiz(w http.ResponseWriter, r *http.Request) {
	quiz := s.svc.QuizFor(r.Context(), "", testQuizTitle, testQuizDescription)
	writeJSON(w, http.StatusOK, apiQuizResp{QuizID: quiz.ID, Quiz: quiz.Questions})
}

func (s *Server) handleQuizLookup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LookupQuiz(r.URL.Query().Get("key")))
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req apiGradeReq
	if err := decodeJSONLimited(w, r, &req, maxJSONBodyBytes); err != nil {
		writeJSONError(w, statusForDecode(err), "invalid json")
		return
	}
	if strings.TrimSpace(req.QuizID) == "" {
		writeJSONError(w, http.StatusBadRequest, "quiz_id is required")
		return
	}
	res, _, err := s.svc.SubmitQuiz(r.Context(), req.QuizID, req.Answers)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), r.URL.Query().Get("video"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// =========================
// open questions
// =========================

func (s *Server) handleOpenQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.svc.OpenQuestionsFor(r.Context(), q.Get("video"), q.Get("title"), q.Get("description")))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req apiEvaluateReq
	if err := decodeJSONLimited(w, r, &req, maxJSONBodyBytes); err != nil {
		writeJSONError(w, statusForDecode(err), "invalid json")
		return
	}
	if strings.TrimSpace(req.Question.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "question is required")
		return
	}
	if s.tooLarge(req.Answer) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "answer too large")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.EvaluateAnswer(r.Context(), req.Question, req.Answer))
}

// =========================
// chat / commands
// =========================

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req apiChatReq
	if err := decodeJSONLimited(w, r, &req, maxJSONBodyBytes); err != nil {
		writeJSONError(w, statusForDecode(err), "invalid json")
		return
	}
	handled, out, err := HandleCommand(r.Context(), s.svc, req.Input)
	if !handled {
		writeJSONError(w, http.StatusBadRequest, "not a command")
		return
	}
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiTextResp{Text: out})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}

	if strings.HasPrefix(req.Input, "/") {
		if handled, out, err := HandleCommand(r.Context(), s.svc, req.Input); handled {
			if err != nil {
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, apiTextResp{Text: out})
			return
		}
	}

	ans, err := s.svc.AskTutor(r.Context(), req.VideoID, req.Input)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiTextResp{Text: ans})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// ping
	_, _ = w.Write([]byte(":ok\n\n"))
	fl.Flush()

	if strings.HasPrefix(req.Input, "/") {
		if handled, out, err := HandleCommand(r.Context(), s.svc, req.Input); handled {
			if err != nil {
				_ = writeSSE(w, fl, map[string]string{"error": err.Error()})
				return
			}
			_ = writeSSE(w, fl, map[string]string{"delta": out})
			_ = writeSSE(w, fl, map[string]string{"done": "1"})
			return
		}
	}

	select {
	case s.streamSem <- struct{}{}:
		defer func() { <-s.streamSem }()
	default:
		_ = writeSSE(w, fl, map[string]string{"error": "too many concurrent streams"})
		_ = writeSSE(w, fl, map[string]string{"done": "1"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_, err := s.svc.StreamTutor(ctx, req.VideoID, req.Input, func(delta string) {
		if ctx.Err() != nil {
			return
		}
		if err := writeSSE(w, fl, map[string]string{"delta": delta}); err != nil {
			cancel()
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		_ = writeSSE(w, fl, map[string]string{"error": err.Error()})
		return
	}
	_ = writeSSE(w, fl, map[string]string{"done": "1"})
}

func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (apiChatReq, bool) {
	var req apiChatReq
	if err := decodeJSONLimited(w, r, &req, maxJSONBodyBytes); err != nil {
		writeJSONError(w, statusForDecode(err), "invalid json")
		return req, false
	}
	req.Input = strings.TrimSpace(req.Input)
	if req.Input == "" {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return req, false
	}
	if s.tooLarge(req.Input) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "input too large")
		return req, false
	}
	return req, true
}

func (s *Server) tooLarge(text string) bool {
	return s.cfg.HTTPMaxInputBytes > 0 && len(text) > s.cfg.HTTPMaxInputBytes
}

// ============================================================
// helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiErrorResp{OK: false, Error: msg})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrVideoNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoLLM):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func statusForDecode(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func decodeJSONLimited(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	// reject trailing tokens (except whitespace)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid json")
	}
	return nil
}

func writeSSE(w http.ResponseWriter, fl http.Flusher, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	fl.Flush()
	return nil
}
