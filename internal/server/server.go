package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/takak2166/notionblog/internal/config"
	"github.com/takak2166/notionblog/internal/models"
)

// PostStore is the read side of the exported content store
type PostStore interface {
	ListPosts() ([]models.Post, error)
	GetPost(slug string) (models.PostRecord, error)
}

// Server serves exported posts over HTTP
type Server struct {
	router          chi.Router
	store           PostStore
	postsPerPage    int
	maxVisiblePages int
}

// New creates the server and its routes
func New(store PostStore, cfg config.Config) *Server {
	s := &Server{
		store:           store,
		postsPerPage:    cfg.PostsPerPage,
		maxVisiblePages: cfg.MaxVisiblePages,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", s.handleListPosts)
		r.Get("/{slug}", s.handleGetPost)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "not found", http.StatusNotFound)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
