/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.Store, leave.TxStore, and leave.Directory using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The ledger table is append-only:
  - No UPDATE statements on leave_transactions
  - No DELETE statements on leave_transactions
  - Corrections via compensating transactions only

KEY TABLES:
  leave_transactions: Immutable ledger of all balance changes
  members:            Ledger owners with join dates
  leave_policies:     Versioned policy configurations (one active)
  leave_balances:     Cached balance projections (rewritten on replay)

INDEXES:
  - idx_leave_tx_member_date: Balance replay (hot path)
  - idx_leave_tx_request:     Reversal lookup by request id
  - idx_leave_tx_reference:   Grant linkage and legacy reversal fallback
  - leave_transactions.idempotency_key UNIQUE: daily-update idempotency

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sable/leave-engine/leave"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Leave transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS leave_transactions (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		grant_date TEXT,
		expire_date TEXT,
		reference_id TEXT,
		request_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance replay (hot path)
	CREATE INDEX IF NOT EXISTS idx_leave_tx_member_date
		ON leave_transactions(member_id, effective_at, created_at);

	-- Reversal lookup by request id
	CREATE INDEX IF NOT EXISTS idx_leave_tx_request
		ON leave_transactions(request_id) WHERE request_id IS NOT NULL;

	-- Grant linkage and legacy reversal fallback
	CREATE INDEX IF NOT EXISTS idx_leave_tx_reference
		ON leave_transactions(reference_id) WHERE reference_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_leave_tx_type
		ON leave_transactions(tx_type);

	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		join_date TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_active
		ON members(active);

	-- Policies (versioned, single active)
	CREATE TABLE IF NOT EXISTS leave_policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		first_year_monthly_grant REAL NOT NULL,
		first_year_max_days REAL NOT NULL,
		base_annual_days REAL NOT NULL,
		increment_years INTEGER NOT NULL,
		increment_days REAL NOT NULL,
		max_annual_days REAL NOT NULL,
		expire_after_months INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_policies_active
		ON leave_policies(is_active);

	-- Cached balance projections
	CREATE TABLE IF NOT EXISTS leave_balances (
		member_id TEXT PRIMARY KEY,
		total_granted TEXT NOT NULL,
		total_used TEXT NOT NULL,
		total_expired TEXT NOT NULL,
		total_adjusted TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		last_updated TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (leave.Store interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx leave.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) appendTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, tx leave.Transaction) error {
	query := `
		INSERT INTO leave_transactions
		(id, member_id, tx_type, amount, effective_at, grant_date, expire_date,
		 reference_id, request_id, status, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.MemberID,
		string(tx.Type),
		tx.Amount.String(),
		tx.EffectiveAt.Format(time.RFC3339),
		nullTime(tx.GrantDate),
		nullTime(tx.ExpireDate),
		nullString(tx.ReferenceID),
		nullString(tx.RequestID),
		string(tx.Status),
		tx.Reason,
		nullString(tx.IdempotencyKey),
		tx.CreatedBy,
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []leave.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if keys[tx.IdempotencyKey] {
				return leave.ErrDuplicateIdempotencyKey
			}
			keys[tx.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

const txColumns = `id, member_id, tx_type, amount, effective_at, grant_date, expire_date,
	       reference_id, request_id, status, reason, idempotency_key, created_by, created_at`

// Load returns all transactions for a member, chronologically.
func (s *Store) Load(ctx context.Context, memberID string) ([]leave.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + txColumns + `
		FROM leave_transactions
		WHERE member_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`

	return s.queryTransactions(ctx, query, memberID)
}

// UsageByRequest returns transactions linked to a leave request id.
func (s *Store) UsageByRequest(ctx context.Context, requestID string) ([]leave.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + txColumns + `
		FROM leave_transactions
		WHERE request_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`

	return s.queryTransactions(ctx, query, requestID)
}

// UsageByReference returns transactions whose reference column holds the
// given id. Legacy usage rows referenced the leave request here.
func (s *Store) UsageByReference(ctx context.Context, referenceID string) ([]leave.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + txColumns + `
		FROM leave_transactions
		WHERE reference_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`

	return s.queryTransactions(ctx, query, referenceID)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]leave.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []leave.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (leave.Transaction, error) {
	var (
		tx             leave.Transaction
		txType         string
		amount         string
		effectiveAt    string
		grantDate      sql.NullString
		expireDate     sql.NullString
		referenceID    sql.NullString
		requestID      sql.NullString
		status         string
		reason         sql.NullString
		idempotencyKey sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.MemberID, &txType, &amount, &effectiveAt,
		&grantDate, &expireDate, &referenceID, &requestID,
		&status, &reason, &idempotencyKey, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Type = leave.TransactionType(txType)
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		// A balance-bearing field must never be silently zeroed.
		return tx, fmt.Errorf("corrupt amount %q on transaction %s: %w", amount, tx.ID, err)
	}
	tx.EffectiveAt, _ = time.Parse(time.RFC3339, effectiveAt)
	tx.GrantDate = parseNullTime(grantDate)
	tx.ExpireDate = parseNullTime(expireDate)
	tx.ReferenceID = referenceID.String
	tx.RequestID = requestID.String
	tx.Status = leave.TransactionStatus(status)
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) Append(ctx context.Context, tx leave.Transaction) error {
	return ts.parent.appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []leave.Transaction) error {
	for _, tx := range txs {
		if err := ts.parent.appendTx(ctx, ts.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Load(ctx context.Context, memberID string) ([]leave.Transaction, error) {
	return ts.queryTx(ctx, `
		SELECT `+txColumns+`
		FROM leave_transactions
		WHERE member_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`, memberID)
}

func (ts *txStore) UsageByRequest(ctx context.Context, requestID string) ([]leave.Transaction, error) {
	return ts.queryTx(ctx, `
		SELECT `+txColumns+`
		FROM leave_transactions
		WHERE request_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`, requestID)
}

func (ts *txStore) UsageByReference(ctx context.Context, referenceID string) ([]leave.Transaction, error) {
	return ts.queryTx(ctx, `
		SELECT `+txColumns+`
		FROM leave_transactions
		WHERE reference_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`, referenceID)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := ts.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (ts *txStore) queryTx(ctx context.Context, query string, args ...any) ([]leave.Transaction, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []leave.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// DIRECTORY (leave.Directory interface)
// =============================================================================

// SaveMember inserts or updates a member record.
func (s *Store) SaveMember(ctx context.Context, m leave.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, name, email, join_date, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			join_date = excluded.join_date,
			active = excluded.active
	`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Email,
		m.JoinDate.Format(time.RFC3339),
		m.Active,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// Member returns a member by id.
func (s *Store) Member(ctx context.Context, id string) (*leave.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, join_date, active, created_at
		FROM members WHERE id = ?
	`, id)

	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ActiveMembers returns every member the daily update should process.
func (s *Store) ActiveMembers(ctx context.Context) ([]leave.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, join_date, active, created_at
		FROM members WHERE active = TRUE ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []leave.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*leave.Member, error) {
	var (
		m        leave.Member
		email    sql.NullString
		joinDate string
		created  string
	)
	if err := row.Scan(&m.ID, &m.Name, &email, &joinDate, &m.Active, &created); err != nil {
		return nil, err
	}
	m.Email = email.String
	m.JoinDate, _ = time.Parse(time.RFC3339, joinDate)
	m.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &m, nil
}

// SavePolicy inserts a policy version. New policies start inactive;
// use ActivatePolicy to switch over.
func (s *Store) SavePolicy(ctx context.Context, p leave.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_policies
		(id, name, first_year_monthly_grant, first_year_max_days, base_annual_days,
		 increment_years, increment_days, max_annual_days, expire_after_months,
		 is_active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			first_year_monthly_grant = excluded.first_year_monthly_grant,
			first_year_max_days = excluded.first_year_max_days,
			base_annual_days = excluded.base_annual_days,
			increment_years = excluded.increment_years,
			increment_days = excluded.increment_days,
			max_annual_days = excluded.max_annual_days,
			expire_after_months = excluded.expire_after_months,
			version = leave_policies.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name,
		p.FirstYearMonthlyGrant, p.FirstYearMaxDays,
		p.BaseAnnualDays, p.IncrementYears, p.IncrementDays, p.MaxAnnualDays,
		p.ExpireAfterMonths,
		p.IsActive, p.Version, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// ActivatePolicy makes the given policy the single active one.
func (s *Store) ActivatePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := sqlTx.ExecContext(ctx,
		"UPDATE leave_policies SET is_active = FALSE, updated_at = ? WHERE is_active = TRUE", now,
	); err != nil {
		return fmt.Errorf("failed to deactivate policies: %w", err)
	}

	res, err := sqlTx.ExecContext(ctx,
		"UPDATE leave_policies SET is_active = TRUE, updated_at = ? WHERE id = ?", now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to activate policy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrPolicyNotFound
	}

	return sqlTx.Commit()
}

// ActivePolicy returns the single active policy.
func (s *Store) ActivePolicy(ctx context.Context) (*leave.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, first_year_monthly_grant, first_year_max_days, base_annual_days,
		       increment_years, increment_days, max_annual_days, expire_after_months,
		       is_active, version, created_at, updated_at
		FROM leave_policies WHERE is_active = TRUE
	`)

	var (
		p       leave.Policy
		created string
		updated string
	)
	err := row.Scan(
		&p.ID, &p.Name,
		&p.FirstYearMonthlyGrant, &p.FirstYearMaxDays, &p.BaseAnnualDays,
		&p.IncrementYears, &p.IncrementDays, &p.MaxAnnualDays, &p.ExpireAfterMonths,
		&p.IsActive, &p.Version, &created, &updated,
	)
	if err == sql.ErrNoRows {
		return nil, leave.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active policy: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &p, nil
}

// UpsertBalance rewrites a member's cached balance row.
func (s *Store) UpsertBalance(ctx context.Context, b leave.BalanceSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_balances
		(member_id, total_granted, total_used, total_expired, total_adjusted,
		 current_balance, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			total_granted = excluded.total_granted,
			total_used = excluded.total_used,
			total_expired = excluded.total_expired,
			total_adjusted = excluded.total_adjusted,
			current_balance = excluded.current_balance,
			last_updated = excluded.last_updated
	`

	_, err := s.db.ExecContext(ctx, query,
		b.MemberID,
		b.TotalGranted.String(),
		b.TotalUsed.String(),
		b.TotalExpired.String(),
		b.TotalAdjusted.String(),
		b.CurrentBalance.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// CachedBalance returns the stored projection without replaying, for
// drift checks against the ledger.
func (s *Store) CachedBalance(ctx context.Context, memberID string) (*leave.BalanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT member_id, total_granted, total_used, total_expired, total_adjusted,
		       current_balance, last_updated
		FROM leave_balances WHERE member_id = ?
	`, memberID)

	var (
		b                                             leave.BalanceSummary
		granted, used, expired, adjusted, current, at string
	)
	err := row.Scan(&b.MemberID, &granted, &used, &expired, &adjusted, &current, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached balance: %w", err)
	}
	fields := []struct {
		dst  *decimal.Decimal
		name string
		raw  string
	}{
		{&b.TotalGranted, "total_granted", granted},
		{&b.TotalUsed, "total_used", used},
		{&b.TotalExpired, "total_expired", expired},
		{&b.TotalAdjusted, "total_adjusted", adjusted},
		{&b.CurrentBalance, "current_balance", current},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s for member %s: %w", f.name, b.MemberID, err)
		}
		*f.dst = d
	}
	b.LastUpdated, _ = time.Parse(time.RFC3339, at)
	return &b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
