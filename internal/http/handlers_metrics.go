package http

import (
	"log/slog"
	"net/http"

	"duitku/internal/core"
	"duitku/internal/metrics"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = s.clock.CurrentMonth()
	}
	if _, err := requireMonth(month); err != nil {
		respondError(w, r, err)
		return
	}

	if cached, found := s.summaryCache.Get(month); found {
		slog.DebugContext(r.Context(), "summary cache hit", "month", month)
		respondJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.metrics.MonthlySummary(r.Context(), month)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Set(month, summary)
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := entryKindParam(q.Get("kind"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	granularity := q.Get("granularity")
	if granularity == "" {
		granularity = metrics.GranularityMonthly
	}

	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		respondError(w, r, validationErr("from", "from and to are required"))
		return
	}

	points, err := s.metrics.Trend(r.Context(), kind, from, to, granularity, q.Get("categoryId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := entryKindParam(q.Get("kind"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	month := q.Get("month")
	if month == "" {
		month = s.clock.CurrentMonth()
	}
	if _, err := requireMonth(month); err != nil {
		respondError(w, r, err)
		return
	}

	buckets, err := s.metrics.Breakdown(r.Context(), kind, month)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}

func entryKindParam(value string) (core.EntryKind, error) {
	if value == "" {
		return core.EntryTransaction, nil
	}
	kind := core.EntryKind(value)
	if !kind.IsValid() {
		return "", validationErr("kind", "must be transaction or income")
	}
	return kind, nil
}
