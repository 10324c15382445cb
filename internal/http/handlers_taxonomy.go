package http

import (
	"net/http"

	"duitku/internal/core"
	"duitku/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("includeArchived") != "true"
	cats, err := s.taxonomy.ListCategories(r.Context(), activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	cat, err := s.taxonomy.CreateCategory(r.Context(), body.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch services.CategoryPatch
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	cat, err := s.taxonomy.UpdateCategory(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cat)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := core.SourceKind(q.Get("kind"))
	if kind != "" && !kind.IsValid() {
		respondError(w, r, &core.ValidationError{Field: "kind", Reason: "must be income or funding"})
		return
	}
	activeOnly := q.Get("includeArchived") != "true"

	sources, err := s.taxonomy.ListSources(r.Context(), kind, activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sources)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string          `json:"name"`
		Kind core.SourceKind `json:"kind"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	src, err := s.taxonomy.CreateSource(r.Context(), body.Name, body.Kind)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, src)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var patch services.SourcePatch
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	src, err := s.taxonomy.UpdateSource(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, src)
}
