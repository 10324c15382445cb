package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"duitku/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// SQLStore implements Store over database/sql. The same statements serve
// both backends; only placeholder syntax and constraint messages differ.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// OpenSQLite opens (creating if needed) the SQLite database at dbPath and
// applies migrations.
func OpenSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db, dialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Opened SQLite ledger store", "path", dbPath)
	return &SQLStore{db: db, dialect: dialectSQLite}, nil
}

// OpenPostgres connects to the Postgres database at dsn via the pgx stdlib
// driver and applies migrations.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db, dialectPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Opened Postgres ledger store")
	return &SQLStore{db: db, dialect: dialectPostgres}, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for Postgres. Statements are
// written with ? so both dialects share one set of queries.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// isUniqueViolation detects unique-constraint errors from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // modernc sqlite
		strings.Contains(msg, "SQLSTATE 23505") || // pgx
		strings.Contains(msg, "duplicate key value")
}

// --- transactions ---

func (s *SQLStore) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := s.exec(ctx, `
		INSERT INTO transactions
			(id, date_iso, year_month, category_id, source_id, description, amount_rp, created_at_iso, updated_at_iso)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.DateISO, t.YearMonth, t.CategoryID, nullable(t.SourceID),
		t.Description, t.AmountRp, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := s.queryRow(ctx, `
		SELECT id, date_iso, year_month, category_id, source_id, description, amount_rp, created_at_iso, updated_at_iso
		FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

func (s *SQLStore) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := s.exec(ctx, `
		UPDATE transactions
		SET date_iso = ?, year_month = ?, category_id = ?, source_id = ?, description = ?, amount_rp = ?, updated_at_iso = ?
		WHERE id = ?`,
		t.DateISO, t.YearMonth, t.CategoryID, nullable(t.SourceID),
		t.Description, t.AmountRp, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLStore) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `
		SELECT id, date_iso, year_month, category_id, source_id, description, amount_rp, created_at_iso, updated_at_iso
		FROM transactions`
	where, args := buildWhere(map[string]string{
		"year_month =":  f.YearMonth,
		"category_id =": f.CategoryID,
		"year_month >=": f.FromMonth,
		"year_month <=": f.ToMonth,
	})
	rows, err := s.query(ctx, query+where+` ORDER BY date_iso DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- income ---

func (s *SQLStore) InsertIncome(ctx context.Context, i core.Income) error {
	_, err := s.exec(ctx, `
		INSERT INTO income
			(id, date_iso, year_month, source_id, description, amount_rp, created_at_iso, updated_at_iso)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.DateISO, i.YearMonth, i.SourceID, i.Description, i.AmountRp, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (s *SQLStore) GetIncome(ctx context.Context, id string) (core.Income, error) {
	row := s.queryRow(ctx, `
		SELECT id, date_iso, year_month, source_id, description, amount_rp, created_at_iso, updated_at_iso
		FROM income WHERE id = ?`, id)
	return scanIncome(row)
}

func (s *SQLStore) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := s.exec(ctx, `
		UPDATE income
		SET date_iso = ?, year_month = ?, source_id = ?, description = ?, amount_rp = ?, updated_at_iso = ?
		WHERE id = ?`,
		i.DateISO, i.YearMonth, i.SourceID, i.Description, i.AmountRp, i.UpdatedAt, i.ID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLStore) DeleteIncome(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM income WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLStore) ListIncome(ctx context.Context, f IncomeFilter) ([]core.Income, error) {
	query := `
		SELECT id, date_iso, year_month, source_id, description, amount_rp, created_at_iso, updated_at_iso
		FROM income`
	where, args := buildWhere(map[string]string{
		"year_month =":  f.YearMonth,
		"source_id =":   f.SourceID,
		"year_month >=": f.FromMonth,
		"year_month <=": f.ToMonth,
	})
	rows, err := s.query(ctx, query+where+` ORDER BY date_iso DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// --- categories ---

func (s *SQLStore) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := s.exec(ctx, `INSERT INTO categories (id, name, archived) VALUES (?, ?, ?)`,
		c.ID, c.Name, boolToInt(c.Archived))
	if isUniqueViolation(err) {
		return core.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *SQLStore) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var (
		c        core.Category
		archived int64
	)
	err := s.queryRow(ctx, `SELECT id, name, archived FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Archived = archived != 0
	return c, nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := s.exec(ctx, `UPDATE categories SET name = ?, archived = ? WHERE id = ?`,
		c.Name, boolToInt(c.Archived), c.ID)
	if isUniqueViolation(err) {
		return core.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLStore) ListCategories(ctx context.Context, activeOnly bool) ([]core.Category, error) {
	query := `SELECT id, name, archived FROM categories`
	if activeOnly {
		query += ` WHERE archived = 0`
	}
	rows, err := s.query(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c        core.Category
			archived int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &archived); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Archived = archived != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- sources ---

func (s *SQLStore) InsertSource(ctx context.Context, src core.Source) error {
	_, err := s.exec(ctx, `INSERT INTO sources (id, name, kind, archived) VALUES (?, ?, ?, ?)`,
		src.ID, src.Name, string(src.Kind), boolToInt(src.Archived))
	if isUniqueViolation(err) {
		return core.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSource(ctx context.Context, id string) (core.Source, error) {
	var (
		src      core.Source
		kind     string
		archived int64
	)
	err := s.queryRow(ctx, `SELECT id, name, kind, archived FROM sources WHERE id = ?`, id).
		Scan(&src.ID, &src.Name, &kind, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Source{}, core.ErrNotFound
	}
	if err != nil {
		return core.Source{}, fmt.Errorf("get source: %w", err)
	}
	src.Kind = core.SourceKind(kind)
	src.Archived = archived != 0
	return src, nil
}

func (s *SQLStore) UpdateSource(ctx context.Context, src core.Source) error {
	res, err := s.exec(ctx, `UPDATE sources SET name = ?, archived = ? WHERE id = ?`,
		src.Name, boolToInt(src.Archived), src.ID)
	if isUniqueViolation(err) {
		return core.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLStore) ListSources(ctx context.Context, kind core.SourceKind, activeOnly bool) ([]core.Source, error) {
	query := `SELECT id, name, kind, archived FROM sources WHERE 1=1`
	var args []any
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	if activeOnly {
		query += ` AND archived = 0`
	}
	rows, err := s.query(ctx, query+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []core.Source
	for rows.Next() {
		var (
			src      core.Source
			k        string
			archived int64
		)
		if err := rows.Scan(&src.ID, &src.Name, &k, &archived); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Kind = core.SourceKind(k)
		src.Archived = archived != 0
		out = append(out, src)
	}
	return out, rows.Err()
}

// --- month locks ---

func (s *SQLStore) GetMonthLock(ctx context.Context, yearMonth string) (core.MonthLock, error) {
	var (
		lock                          core.MonthLock
		status                        string
		lockedAt, unlockedAt, reconAt sql.NullString
	)
	err := s.queryRow(ctx, `
		SELECT year_month, status, locked_at_iso, unlocked_at_iso, last_reconciled_at_iso
		FROM month_locks WHERE year_month = ?`, yearMonth).
		Scan(&lock.YearMonth, &status, &lockedAt, &unlockedAt, &reconAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthLock{}, core.ErrNotFound
	}
	if err != nil {
		return core.MonthLock{}, fmt.Errorf("get month lock: %w", err)
	}
	lock.Status = core.LockStatus(status)
	lock.LockedAtISO = lockedAt.String
	lock.UnlockedAtISO = unlockedAt.String
	lock.ReconciledAtISO = reconAt.String
	return lock, nil
}

func (s *SQLStore) UpsertMonthLock(ctx context.Context, lock core.MonthLock) error {
	_, err := s.exec(ctx, `
		INSERT INTO month_locks (year_month, status, locked_at_iso, unlocked_at_iso, last_reconciled_at_iso)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (year_month) DO UPDATE SET
			status = excluded.status,
			locked_at_iso = excluded.locked_at_iso,
			unlocked_at_iso = excluded.unlocked_at_iso,
			last_reconciled_at_iso = excluded.last_reconciled_at_iso`,
		lock.YearMonth, string(lock.Status), nullable(lock.LockedAtISO),
		nullable(lock.UnlockedAtISO), nullable(lock.ReconciledAtISO))
	if err != nil {
		return fmt.Errorf("upsert month lock: %w", err)
	}
	return nil
}

func (s *SQLStore) ListMonthLocks(ctx context.Context) ([]core.MonthLock, error) {
	rows, err := s.query(ctx, `
		SELECT year_month, status, locked_at_iso, unlocked_at_iso, last_reconciled_at_iso
		FROM month_locks ORDER BY year_month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list month locks: %w", err)
	}
	defer rows.Close()

	var out []core.MonthLock
	for rows.Next() {
		var (
			lock                          core.MonthLock
			status                        string
			lockedAt, unlockedAt, reconAt sql.NullString
		)
		if err := rows.Scan(&lock.YearMonth, &status, &lockedAt, &unlockedAt, &reconAt); err != nil {
			return nil, fmt.Errorf("scan month lock: %w", err)
		}
		lock.Status = core.LockStatus(status)
		lock.LockedAtISO = lockedAt.String
		lock.UnlockedAtISO = unlockedAt.String
		lock.ReconciledAtISO = reconAt.String
		out = append(out, lock)
	}
	return out, rows.Err()
}

// --- audit log ---

func (s *SQLStore) AppendAuditEntry(ctx context.Context, e core.AuditLogEntry) error {
	_, err := s.exec(ctx, `
		INSERT INTO audit_log (id, ts_iso, actor, action, month, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TsISO, e.Actor, string(e.Action), e.Month, nullable(e.Reason))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *SQLStore) ListAuditEntries(ctx context.Context, limit int) ([]core.AuditLogEntry, error) {
	query := `SELECT id, ts_iso, actor, action, month, reason FROM audit_log ORDER BY ts_iso DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []core.AuditLogEntry
	for rows.Next() {
		var (
			e      core.AuditLogEntry
			action string
			reason sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TsISO, &e.Actor, &action, &e.Month, &reason); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = core.AuditAction(action)
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		sourceID sql.NullString
	)
	err := r.Scan(&t.ID, &t.DateISO, &t.YearMonth, &t.CategoryID, &sourceID,
		&t.Description, &t.AmountRp, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.SourceID = sourceID.String
	return t, nil
}

func scanIncome(r rowScanner) (core.Income, error) {
	var i core.Income
	err := r.Scan(&i.ID, &i.DateISO, &i.YearMonth, &i.SourceID,
		&i.Description, &i.AmountRp, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, core.ErrNotFound
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("scan income: %w", err)
	}
	return i, nil
}

// buildWhere assembles a WHERE clause from condition fragments whose values
// are non-empty. Conditions are appended in a fixed order so prepared
// statements stay stable.
func buildWhere(conds map[string]string) (string, []any) {
	order := []string{"year_month =", "category_id =", "source_id =", "year_month >=", "year_month <="}
	var (
		parts []string
		args  []any
	)
	for _, c := range order {
		if v, ok := conds[c]; ok && v != "" {
			parts = append(parts, c+" ?")
			args = append(args, v)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
