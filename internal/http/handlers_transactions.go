package http

import (
	"net/http"

	"duitku/internal/services"
	"duitku/internal/storage"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TransactionFilter{
		YearMonth:  q.Get("month"),
		CategoryID: q.Get("categoryId"),
		FromMonth:  q.Get("from"),
		ToMonth:    q.Get("to"),
	}
	if filter.YearMonth != "" {
		if _, err := requireMonth(filter.YearMonth); err != nil {
			respondError(w, r, err)
			return
		}
	}

	txs, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	respondJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch services.TransactionPatch
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	respondJSON(w, http.StatusNoContent, nil)
}
