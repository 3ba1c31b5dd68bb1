package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/takak2166/notionblog/internal/logger"
	"github.com/takak2166/notionblog/internal/models"
	"github.com/takak2166/notionblog/internal/outline"
	"github.com/takak2166/notionblog/internal/pagination"
	"github.com/takak2166/notionblog/internal/store"
)

type postListResponse struct {
	Posts      []models.Post       `json:"posts"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"totalPages"`
	Pager      []models.PageMarker `json:"pager"`
}

type postResponse struct {
	Post       models.Post          `json:"post"`
	Outline    []models.OutlineNode `json:"outline"`
	HeadingIDs []string             `json:"headingIds"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListPosts()
	if err != nil {
		logger.Error("Failed to list posts", err)
		jsonError(w, "failed to list posts", http.StatusInternalServerError)
		return
	}

	totalPages := pagination.TotalPages(len(posts), s.postsPerPage)
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	resp := postListResponse{
		Posts:      pagination.Slice(posts, page, s.postsPerPage),
		Page:       page,
		TotalPages: totalPages,
		Pager:      pagination.Window(page, totalPages, s.maxVisiblePages),
	}
	if resp.Posts == nil {
		resp.Posts = []models.Post{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	rec, err := s.store.GetPost(slug)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to get post", err, logger.Fields{"slug": slug})
		jsonError(w, "failed to get post", http.StatusInternalServerError)
		return
	}

	resp := postResponse{
		Post:       rec.Post,
		Outline:    rec.Outline,
		HeadingIDs: outline.Flatten(rec.Outline),
	}
	if resp.Outline == nil {
		resp.Outline = []models.OutlineNode{}
	}
	if resp.HeadingIDs == nil {
		resp.HeadingIDs = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", logger.Fields{"error": err.Error()})
	}
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
