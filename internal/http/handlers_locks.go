package http

import (
	"net/http"
	"strconv"
)

func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request) {
	all, err := s.locks.AllLocks(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	month, err := requireMonth(r.PathValue("month"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	locked, err := s.locks.IsLocked(r.Context(), month)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"month":  month,
		"locked": locked,
	})
}

func (s *Server) handleUnlockMonth(w http.ResponseWriter, r *http.Request) {
	month, err := requireMonth(r.PathValue("month"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var body struct {
		Reason   string `json:"reason"`
		Initials string `json:"initials"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.locks.Unlock(r.Context(), month, body.Reason, body.Initials); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"month":  month,
		"locked": false,
	})
}

func (s *Server) handleRelockMonth(w http.ResponseWriter, r *http.Request) {
	month, err := requireMonth(r.PathValue("month"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var body struct {
		Initials string `json:"initials"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			respondError(w, r, err)
			return
		}
	}
	actor := body.Initials
	if actor == "" {
		actor = "manual"
	}

	if err := s.locks.Relock(r.Context(), month, actor); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"month":  month,
		"locked": true,
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := s.locks.Reconcile(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, r, validationErr("limit", "must be an integer between 1 and 1000"))
			return
		}
		limit = n
	}

	entries, err := s.locks.AuditTrail(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
