package http

import (
	"net/http"

	"duitku/internal/services"
	"duitku/internal/storage"
)

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.IncomeFilter{
		YearMonth: q.Get("month"),
		SourceID:  q.Get("sourceId"),
		FromMonth: q.Get("from"),
		ToMonth:   q.Get("to"),
	}
	if filter.YearMonth != "" {
		if _, err := requireMonth(filter.YearMonth); err != nil {
			respondError(w, r, err)
			return
		}
	}

	entries, err := s.ledger.ListIncome(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var in services.IncomeInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	entry, err := s.ledger.CreateIncome(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.GetIncome(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var patch services.IncomePatch
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	entry, err := s.ledger.UpdateIncome(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteIncome(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	respondJSON(w, http.StatusNoContent, nil)
}
