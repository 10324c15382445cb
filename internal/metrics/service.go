package metrics

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"duitku/internal/civiltime"
	"duitku/internal/core"
	"duitku/internal/storage"
)

const (
	GranularityMonthly = "monthly"
	GranularityDaily   = "daily"
)

// MonthlySummary is the dashboard headline for one month: expense and
// income totals with their month-over-month changes, net savings, savings
// rate and year-over-year comparison against the same month a year earlier.
type MonthlySummary struct {
	Month                 string   `json:"month"`
	TotalExpense          int64    `json:"totalExpense"`
	TotalExpensePrevMonth int64    `json:"totalExpensePrevMonth"`
	MoMPct                *float64 `json:"momPct"`
	TotalIncome           int64    `json:"totalIncome"`
	TotalIncomePrevMonth  int64    `json:"totalIncomePrevMonth"`
	IncomeMoMPct          *float64 `json:"incomeMomPct"`
	NetSavings            int64    `json:"netSavings"`
	SavingsMoMPct         *float64 `json:"savingsMomPct"`
	SavingsRate           float64  `json:"savingsRate"`
	YoYPriorYearMonth     string   `json:"yoyPriorYearMonth"`
	YoYCurrentTotal       int64    `json:"yoyCurrentTotal"`
	YoYPrevYearTotal      int64    `json:"yoyPrevYearTotal"`
	YoYPct                *float64 `json:"yoyPct"`
}

// TrendPoint is one bucket of a trend series: a month or day plus its total.
type TrendPoint struct {
	Bucket string `json:"bucket"`
	Total  int64  `json:"total"`
}

// Service computes metrics by fetching rows from the store and reducing
// them with the pure helpers in this package. Read-only: it never writes.
type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// MonthTotal sums all amounts of the given kind in a year-month.
func (s *Service) MonthTotal(ctx context.Context, kind core.EntryKind, yearMonth string) (int64, error) {
	switch kind {
	case core.EntryTransaction:
		rows, err := s.store.ListTransactions(ctx, storage.TransactionFilter{YearMonth: yearMonth})
		if err != nil {
			return 0, fmt.Errorf("month total: %w", err)
		}
		var total int64
		for _, t := range rows {
			total += t.AmountRp
		}
		return total, nil
	case core.EntryIncome:
		rows, err := s.store.ListIncome(ctx, storage.IncomeFilter{YearMonth: yearMonth})
		if err != nil {
			return 0, fmt.Errorf("month total: %w", err)
		}
		var total int64
		for _, i := range rows {
			total += i.AmountRp
		}
		return total, nil
	default:
		return 0, &core.ValidationError{Field: "kind", Reason: "must be transaction or income"}
	}
}

// DayTotal sums all amounts of the given kind on a WIB calendar day.
func (s *Service) DayTotal(ctx context.Context, kind core.EntryKind, date string) (int64, error) {
	points, err := s.Trend(ctx, kind, date, date, GranularityDaily, "")
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range points {
		total += p.Total
	}
	return total, nil
}

// MonthlySummary builds the summary for one month. The five row sets it
// needs have no data dependency on each other, so they are fetched
// concurrently.
func (s *Service) MonthlySummary(ctx context.Context, month string) (MonthlySummary, error) {
	if !core.ValidYearMonth(month) {
		return MonthlySummary{}, &core.ValidationError{Field: "month", Reason: "must be YYYY-MM"}
	}

	prevMonth, err := civiltime.PreviousMonth(month)
	if err != nil {
		return MonthlySummary{}, err
	}
	yoyMonth, err := civiltime.SameMonthPriorYear(month)
	if err != nil {
		return MonthlySummary{}, err
	}

	var (
		totalExpense, prevExpense, yoyExpense int64
		totalIncome, prevIncome               int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totalExpense, err = s.MonthTotal(gctx, core.EntryTransaction, month)
		return err
	})
	g.Go(func() (err error) {
		prevExpense, err = s.MonthTotal(gctx, core.EntryTransaction, prevMonth)
		return err
	})
	g.Go(func() (err error) {
		yoyExpense, err = s.MonthTotal(gctx, core.EntryTransaction, yoyMonth)
		return err
	})
	g.Go(func() (err error) {
		totalIncome, err = s.MonthTotal(gctx, core.EntryIncome, month)
		return err
	})
	g.Go(func() (err error) {
		prevIncome, err = s.MonthTotal(gctx, core.EntryIncome, prevMonth)
		return err
	})
	if err := g.Wait(); err != nil {
		return MonthlySummary{}, err
	}

	netSavings := totalIncome - totalExpense
	prevNetSavings := prevIncome - prevExpense

	return MonthlySummary{
		Month:                 month,
		TotalExpense:          totalExpense,
		TotalExpensePrevMonth: prevExpense,
		MoMPct:                PercentChange(totalExpense, prevExpense),
		TotalIncome:           totalIncome,
		TotalIncomePrevMonth:  prevIncome,
		IncomeMoMPct:          PercentChange(totalIncome, prevIncome),
		NetSavings:            netSavings,
		SavingsMoMPct:         savingsMoM(netSavings, prevNetSavings),
		SavingsRate:           SavingsRate(totalIncome, totalExpense),
		YoYPriorYearMonth:     yoyMonth,
		YoYCurrentTotal:       totalExpense,
		YoYPrevYearTotal:      yoyExpense,
		YoYPct:                PercentChange(totalExpense, yoyExpense),
	}, nil
}

// Trend produces an ascending, zero-filled series of per-month or per-day
// totals between from and to inclusive, regardless of row arrival order.
// A non-empty categoryID narrows a transaction trend to that category.
func (s *Service) Trend(ctx context.Context, kind core.EntryKind, from, to, granularity, categoryID string) ([]TrendPoint, error) {
	if categoryID != "" && kind != core.EntryTransaction {
		return nil, &core.ValidationError{Field: "categoryId", Reason: "only applies to transaction trends"}
	}
	switch granularity {
	case GranularityMonthly:
		return s.monthlyTrend(ctx, kind, from, to, categoryID)
	case GranularityDaily:
		return s.dailyTrend(ctx, kind, from, to, categoryID)
	default:
		return nil, &core.ValidationError{Field: "granularity", Reason: "must be monthly or daily"}
	}
}

func (s *Service) monthlyTrend(ctx context.Context, kind core.EntryKind, from, to, categoryID string) ([]TrendPoint, error) {
	if !core.ValidYearMonth(from) || !core.ValidYearMonth(to) {
		return nil, &core.ValidationError{Field: "from/to", Reason: "must be YYYY-MM"}
	}

	buckets, err := civiltime.MonthRange(from, to)
	if err != nil {
		return nil, err
	}
	grouped, err := s.groupedByBucket(ctx, kind, from, to, categoryID, func(ym, _ string) string { return ym })
	if err != nil {
		return nil, err
	}
	return fillSeries(buckets, grouped), nil
}

func (s *Service) dailyTrend(ctx context.Context, kind core.EntryKind, from, to, categoryID string) ([]TrendPoint, error) {
	if !core.ValidDay(from) || !core.ValidDay(to) {
		return nil, &core.ValidationError{Field: "from/to", Reason: "must be YYYY-MM-DD"}
	}

	buckets, err := civiltime.DayRange(from, to)
	if err != nil {
		return nil, err
	}
	grouped, err := s.groupedByBucket(ctx, kind, from[:7], to[:7], categoryID, func(_, dateISO string) string {
		day, err := civiltime.DayOf(dateISO)
		if err != nil {
			return ""
		}
		return day
	})
	if err != nil {
		return nil, err
	}
	return fillSeries(buckets, grouped), nil
}

// groupedByBucket fetches rows of the kind inside the month span and groups
// their totals by the key derived from each row's year-month and date.
func (s *Service) groupedByBucket(ctx context.Context, kind core.EntryKind, fromMonth, toMonth, categoryID string, key func(yearMonth, dateISO string) string) (map[string]int64, error) {
	grouped := make(map[string]int64)
	switch kind {
	case core.EntryTransaction:
		rows, err := s.store.ListTransactions(ctx, storage.TransactionFilter{FromMonth: fromMonth, ToMonth: toMonth, CategoryID: categoryID})
		if err != nil {
			return nil, fmt.Errorf("trend rows: %w", err)
		}
		for _, t := range rows {
			if k := key(t.YearMonth, t.DateISO); k != "" {
				grouped[k] += t.AmountRp
			}
		}
	case core.EntryIncome:
		rows, err := s.store.ListIncome(ctx, storage.IncomeFilter{FromMonth: fromMonth, ToMonth: toMonth})
		if err != nil {
			return nil, fmt.Errorf("trend rows: %w", err)
		}
		for _, i := range rows {
			if k := key(i.YearMonth, i.DateISO); k != "" {
				grouped[k] += i.AmountRp
			}
		}
	default:
		return nil, &core.ValidationError{Field: "kind", Reason: "must be transaction or income"}
	}
	return grouped, nil
}

// Breakdown groups one month's rows by category (transactions) or source
// (income). Bucket order follows first occurrence; the sum per key is
// deterministic.
func (s *Service) Breakdown(ctx context.Context, kind core.EntryKind, month string) ([]Bucket, error) {
	if !core.ValidYearMonth(month) {
		return nil, &core.ValidationError{Field: "month", Reason: "must be YYYY-MM"}
	}

	switch kind {
	case core.EntryTransaction:
		rows, err := s.store.ListTransactions(ctx, storage.TransactionFilter{YearMonth: month})
		if err != nil {
			return nil, fmt.Errorf("breakdown rows: %w", err)
		}
		return GroupAndSum(rows,
			func(t core.Transaction) string { return t.CategoryID },
			func(t core.Transaction) int64 { return t.AmountRp }), nil
	case core.EntryIncome:
		rows, err := s.store.ListIncome(ctx, storage.IncomeFilter{YearMonth: month})
		if err != nil {
			return nil, fmt.Errorf("breakdown rows: %w", err)
		}
		return GroupAndSum(rows,
			func(i core.Income) string { return i.SourceID },
			func(i core.Income) int64 { return i.AmountRp }), nil
	default:
		return nil, &core.ValidationError{Field: "kind", Reason: "must be transaction or income"}
	}
}

// savingsMoM compares net savings month over month. Net savings can be
// negative, so the baseline is its absolute value; a zero baseline means no
// percentage.
func savingsMoM(current, previous int64) *float64 {
	if previous == 0 {
		return nil
	}
	pct := float64(current-previous) / math.Abs(float64(previous)) * 100
	return &pct
}

func fillSeries(buckets []string, grouped map[string]int64) []TrendPoint {
	out := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, TrendPoint{Bucket: b, Total: grouped[b]})
	}
	return out
}
