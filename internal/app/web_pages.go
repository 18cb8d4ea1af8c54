package app

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed web/templates/*.html
var templatesFS embed.FS

//go:embed web/static/*
var staticEmbedFS embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(staticEmbedFS, "web/static")
	if err != nil {
		panic(err)
	}
	return sub
}

type pageRenderer struct {
	templates *template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	// raw HTML in descriptions is dropped (goldmark default)
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	funcMap := template.FuncMap{
		"markdown": func(s string) template.HTML {
			var buf bytes.Buffer
			if err := md.Convert([]byte(s), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(s))
			}
			return template.HTML(buf.String())
		},
		"playerURL": playerURL,
		"inc":       func(i int) int { return i + 1 },
		"pct":       func(f float64) string { return fmt.Sprintf("%.0f%%", f) },
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "web/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &pageRenderer{templates: tmpl}, nil
}

// render executes into a buffer so a template error never leaves a half
// written page.
func (p *pageRenderer) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("template error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func playerURL(v Video) string {
	q := url.Values{}
	q.Set("video", v.ID)
	q.Set("title", v.Title)
	q.Set("description", v.ShortDescription())
	return "/player?" + q.Encode()
}

type indexPage struct {
	Query   string
	Videos  []Video
	Error   string
	Topics  []string
	Default string
}

type playerPage struct {
	VideoID     string
	EmbedURL    string
	Title       string
	Description string
	Quiz        Quiz
	Error       string
}

type resultPage struct {
	playerPage
	Result GradeResult
	Retry  string
}

// --- Page Handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexPage{
		Query:   strings.TrimSpace(r.URL.Query().Get("q")),
		Topics:  s.svc.Catalog().Topics(),
		Default: s.svc.Catalog().DefaultLink(),
	}
	if data.Query != "" {
		videos, err := s.svc.Search(r.Context(), data.Query)
		if err != nil {
			data.Error = err.Error()
		}
		data.Videos = videos
	}
	s.pages.render(w, http.StatusOK, "index.html", data)
}

// resolvePlayer accepts a video id, a YouTube link or a catalog topic.
func (s *Server) resolvePlayer(video, title, description string) (playerPage, bool) {
	p := playerPage{Title: strings.TrimSpace(title), Description: strings.TrimSpace(description)}

	id := strings.TrimSpace(video)
	if v, ok := s.svc.Catalog().FindVideo(id); ok {
		id = v.ID
		if p.Title == "" {
			p.Title, p.Description = v.Title, v.ShortDescription()
		}
	} else if linkID, ok := VideoID(id); ok {
		id = linkID
	}
	if !validVideoID(id) {
		p.Error = "Invalid or missing video. Pick one from the search page."
		return p, false
	}
	p.VideoID = id
	p.EmbedURL = EmbedURL(id)
	return p, true
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, ok := s.resolvePlayer(q.Get("video"), q.Get("title"), q.Get("description"))
	if !ok {
		s.pages.render(w, http.StatusBadRequest, "player.html", p)
		return
	}
	p.Quiz = s.svc.QuizFor(r.Context(), p.VideoID, p.Title, p.Description)
	s.pages.render(w, http.StatusOK, "player.html", p)
}

func (s *Server) handlePlayerSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	p, ok := s.resolvePlayer(r.PostForm.Get("video"), r.PostForm.Get("title"), r.PostForm.Get("description"))
	if !ok {
		s.pages.render(w, http.StatusBadRequest, "player.html", p)
		return
	}

	answers := make(map[int]string)
	for i := 0; i < 64; i++ {
		if v := r.PostForm.Get(fmt.Sprintf("q%d", i)); v != "" {
			answers[i] = v
		}
	}

	res, quiz, err := s.svc.SubmitQuiz(r.Context(), r.PostForm.Get("quiz_id"), answers)
	if errors.Is(err, ErrQuizNotFound) {
		p.Error = "This quiz has expired. Open the video again to get a new one."
		s.pages.render(w, http.StatusNotFound, "player.html", p)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("submit quiz")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	p.Quiz = quiz
	s.pages.render(w, http.StatusOK, "result.html", resultPage{
		playerPage: p,
		Result:     res,
		Retry:      playerURL(Video{ID: p.VideoID, Title: p.Title, Description: p.Description}),
	})
}
