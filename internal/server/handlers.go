package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
)

// MilestoneList is the body of GET /api/milestones
type MilestoneList struct {
	Milestones []models.Milestone `json:"milestones"`
	Range      timeline.DateRange `json:"range"`
}

type uploadRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	CategoryID  string             `json:"categoryId"`
	Files       []models.LocalFile `json:"files"`
}

type milestonePatch struct {
	Name       *string `json:"name"`
	CategoryID *string `json:"categoryId"`
	Important  *bool   `json:"isImportant"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type categoryPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"milestones": s.tl.Len(),
	})
}

func (s *Server) view(r *http.Request) MilestoneList {
	q := r.URL.Query()
	ms, rng := s.tl.ViewInRange(q.Get("q"), timeline.ParseRange(q.Get("range")), s.now())
	return MilestoneList{Milestones: ms, Range: rng}
}

func (s *Server) handleListMilestones(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.view(r))
}

func (s *Server) handleGetMilestone(w http.ResponseWriter, r *http.Request) {
	m, ok := s.tl.Get(pathVar(r, "id"))
	if !ok {
		s.writeError(w, timeline.ErrMilestoneNotFound)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.tl.Categories())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "summaries are not configured")
		return
	}
	view := s.view(r)
	if len(view.Milestones) == 0 {
		writeErrorResponse(w, http.StatusNotFound, "no milestones to summarize")
		return
	}
	summary, err := s.summarizer.Summarize(r.Context(), view.Milestones)
	if err != nil {
		s.log.Error().Err(err).Msg("summary failed")
		writeErrorResponse(w, http.StatusBadGateway, "summary failed")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleSelectCard(w http.ResponseWriter, r *http.Request) {
	n, err := s.syncer.SelectCard(r.Context(), pathVar(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"loaded": n})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.syncer.Upload(r.Context(), timeline.LocalSource{
		Name:        req.Name,
		Description: req.Description,
		Category:    models.Category{ID: req.CategoryID},
		Files:       req.Files,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMilestone(w http.ResponseWriter, r *http.Request) {
	var patch milestonePatch
	if !decode(w, r, &patch) {
		return
	}
	m, err := s.tl.Update(pathVar(r, "id"), timeline.MilestonePatch{
		Name:       patch.Name,
		CategoryID: patch.CategoryID,
		Important:  patch.Important,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.tl.AddTag(pathVar(r, "id"), req.Tag)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	m, err := s.tl.RemoveTag(pathVar(r, "id"), pathVar(r, "tag"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, m)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.tl.AddCategoryWithColor(req.Name, req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch categoryPatch
	if !decode(w, r, &patch) {
		return
	}
	c, err := s.tl.UpdateCategory(pathVar(r, "id"), timeline.CategoryPatch{
		Name:  patch.Name,
		Color: patch.Color,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, c)
}

// pathVar returns a route variable decoded. Routes match on the encoded path
// so a tag like "ui/ux" can travel as one segment.
func pathVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeError maps domain errors onto status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validation *timeline.ValidationError
		fetch      *timeline.SourceFetchError
	)
	switch {
	case errors.Is(err, timeline.ErrMilestoneNotFound), errors.Is(err, timeline.ErrCategoryNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fetch):
		writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeErrorResponse(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}
