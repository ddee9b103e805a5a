/*
Package sqlite provides the SQLite-backed payment store.

PURPOSE:
  Implements all persistence the payment engine needs using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  reconcile.DistributionSource: Working-set loads
  reconcile.ComputerStore:      Reconciliation reads/writes
  plus payment-selection and advance-cheque persistence for the
  allocation workflow.

KEY TABLES:
  payment_selections: One row per grower's pending consolidated payment
  advance_cheques:    Outstanding cash advances per grower
  distributions:      Payment distributions and their lifecycle status
  distribution_lines: Recorded disbursement entries per distribution
  source_entries:     Authoritative source records per distribution
  reports:            Reconciliation reports (line detail as JSON)

MONEY:
  All amounts are stored as TEXT in decimal string form and parsed back
  with shopspring/decimal. No REAL columns for money.

COMPLETION:
  MarkCompleted is a guarded UPDATE: it only fires on a row that is not
  already completed, and stamps completed_by/completed_at for audit.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  coordinator := reconcile.NewCoordinator(store, reconcile.NewStoreComputer(store), nil)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - reconcile/computer.go: ComputerStore contract
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/harvestpoint/payment-engine/grower"
	"github.com/harvestpoint/payment-engine/reconcile"
)

// Store implements the payment engine's storage interfaces using SQLite.
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
	-- Payment selections (one pending consolidated payment per grower)
	CREATE TABLE IF NOT EXISTS payment_selections (
		grower_number TEXT PRIMARY KEY,
		grower_name TEXT NOT NULL,
		consolidated_amount TEXT NOT NULL,
		deduct_from_this_transaction TEXT NOT NULL,
		remaining_deductions TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Advance cheques (outstanding cash advances)
	CREATE TABLE IF NOT EXISTS advance_cheques (
		cheque_number TEXT PRIMARY KEY,
		grower_number TEXT NOT NULL,
		issued_at TEXT NOT NULL,
		current_advance_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_advance_cheques_grower
		ON advance_cheques(grower_number);

	-- Payment distributions and their lifecycle status
	CREATE TABLE IF NOT EXISTS distributions (
		id TEXT PRIMARY KEY,
		grower_number TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'finalized',
		finalized_at TEXT NOT NULL,
		completed_at TEXT,
		completed_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_distributions_status
		ON distributions(status);
	CREATE INDEX IF NOT EXISTS idx_distributions_grower
		ON distributions(grower_number);

	-- Recorded disbursement entries per distribution
	CREATE TABLE IF NOT EXISTS distribution_lines (
		distribution_id TEXT NOT NULL,
		grower_number TEXT NOT NULL,
		reference TEXT NOT NULL,
		amount TEXT NOT NULL,
		UNIQUE(distribution_id, reference)
	);

	CREATE INDEX IF NOT EXISTS idx_distribution_lines_distribution
		ON distribution_lines(distribution_id);

	-- Authoritative source records per distribution
	CREATE TABLE IF NOT EXISTS source_entries (
		distribution_id TEXT NOT NULL,
		grower_number TEXT NOT NULL,
		reference TEXT NOT NULL,
		amount TEXT NOT NULL,
		UNIQUE(distribution_id, reference)
	);

	CREATE INDEX IF NOT EXISTS idx_source_entries_distribution
		ON source_entries(distribution_id);

	-- Reconciliation reports (line detail as JSON)
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		distribution_id TEXT NOT NULL,
		matched_json TEXT NOT NULL,
		discrepancies_json TEXT NOT NULL,
		recorded_total TEXT NOT NULL,
		source_total TEXT NOT NULL,
		total_discrepancy TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_distribution
		ON reports(distribution_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PAYMENT SELECTIONS
// =============================================================================

// SavePaymentSelection inserts or replaces a grower's pending payment.
func (s *Store) SavePaymentSelection(ctx context.Context, sel *grower.PaymentSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payment_selections
		(grower_number, grower_name, consolidated_amount, deduct_from_this_transaction,
		 remaining_deductions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(grower_number) DO UPDATE SET
			grower_name = excluded.grower_name,
			consolidated_amount = excluded.consolidated_amount,
			deduct_from_this_transaction = excluded.deduct_from_this_transaction,
			remaining_deductions = excluded.remaining_deductions,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		sel.GrowerNumber,
		sel.GrowerName,
		sel.ConsolidatedAmount.String(),
		sel.DeductFromThisTransaction.String(),
		sel.RemainingDeductions.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save payment selection: %w", err)
	}
	return nil
}

// GetPaymentSelection returns one grower's pending payment.
func (s *Store) GetPaymentSelection(ctx context.Context, growerNumber string) (*grower.PaymentSelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT grower_number, grower_name, consolidated_amount,
		       deduct_from_this_transaction, remaining_deductions
		FROM payment_selections
		WHERE grower_number = ?
	`

	var (
		sel          grower.PaymentSelection
		consolidated string
		deduct       string
		remaining    string
	)
	err := s.db.QueryRowContext(ctx, query, growerNumber).Scan(
		&sel.GrowerNumber, &sel.GrowerName, &consolidated, &deduct, &remaining,
	)
	if err == sql.ErrNoRows {
		return nil, grower.ErrGrowerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment selection: %w", err)
	}

	if sel.ConsolidatedAmount, err = decimal.NewFromString(consolidated); err != nil {
		return nil, fmt.Errorf("malformed consolidated amount for grower %s: %w", growerNumber, err)
	}
	if sel.DeductFromThisTransaction, err = decimal.NewFromString(deduct); err != nil {
		return nil, fmt.Errorf("malformed deduction for grower %s: %w", growerNumber, err)
	}
	if sel.RemainingDeductions, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("malformed remaining deductions for grower %s: %w", growerNumber, err)
	}
	return &sel, nil
}

// =============================================================================
// ADVANCE CHEQUES
// =============================================================================

// SaveAdvanceCheque inserts or replaces an advance cheque.
func (s *Store) SaveAdvanceCheque(ctx context.Context, cheque grower.AdvanceCheque) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO advance_cheques
		(cheque_number, grower_number, issued_at, current_advance_amount, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cheque_number) DO UPDATE SET
			current_advance_amount = excluded.current_advance_amount
	`

	_, err := s.db.ExecContext(ctx, query,
		cheque.ChequeNumber,
		cheque.GrowerNumber,
		cheque.IssuedAt.UTC().Format(time.RFC3339),
		cheque.CurrentAdvanceAmount.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save advance cheque: %w", err)
	}
	return nil
}

// AdvancesByGrower returns a grower's outstanding advances, oldest first.
func (s *Store) AdvancesByGrower(ctx context.Context, growerNumber string) ([]grower.AdvanceCheque, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT cheque_number, grower_number, issued_at, current_advance_amount
		FROM advance_cheques
		WHERE grower_number = ?
		ORDER BY issued_at ASC, cheque_number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, growerNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query advance cheques: %w", err)
	}
	defer rows.Close()

	var advances []grower.AdvanceCheque
	for rows.Next() {
		var (
			cheque   grower.AdvanceCheque
			issuedAt string
			amount   string
		)
		if err := rows.Scan(&cheque.ChequeNumber, &cheque.GrowerNumber, &issuedAt, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan advance cheque: %w", err)
		}
		cheque.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
		if cheque.CurrentAdvanceAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("malformed advance amount on cheque %s: %w", cheque.ChequeNumber, err)
		}
		advances = append(advances, cheque)
	}
	return advances, rows.Err()
}

// =============================================================================
// DISTRIBUTIONS (reconcile.DistributionSource interface)
// =============================================================================

// SaveDistribution inserts or replaces a payment distribution.
func (s *Store) SaveDistribution(ctx context.Context, dist reconcile.PaymentDistribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO distributions
		(id, grower_number, amount, status, finalized_at, completed_at, completed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			status = excluded.status,
			completed_at = excluded.completed_at,
			completed_by = excluded.completed_by
	`

	var completedAt sql.NullString
	if dist.CompletedAt != nil {
		completedAt = sql.NullString{String: dist.CompletedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		dist.ID,
		dist.GrowerNumber,
		dist.Amount.String(),
		string(dist.Status),
		dist.FinalizedAt.UTC().Format(time.RFC3339),
		completedAt,
		nullString(dist.CompletedBy),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save distribution: %w", err)
	}
	return nil
}

// GetAllDistributions returns every known distribution regardless of status.
func (s *Store) GetAllDistributions(ctx context.Context) ([]reconcile.PaymentDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, grower_number, amount, status, finalized_at, completed_at, completed_by
		FROM distributions
		ORDER BY finalized_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var distributions []reconcile.PaymentDistribution
	for rows.Next() {
		dist, err := scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		distributions = append(distributions, dist)
	}
	return distributions, rows.Err()
}

// GetDistribution returns one distribution, or nil if unknown.
func (s *Store) GetDistribution(ctx context.Context, distributionID string) (*reconcile.PaymentDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, grower_number, amount, status, finalized_at, completed_at, completed_by
		FROM distributions
		WHERE id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	dist, err := scanDistribution(rows)
	if err != nil {
		return nil, err
	}
	return &dist, nil
}

func scanDistribution(rows *sql.Rows) (reconcile.PaymentDistribution, error) {
	var (
		dist        reconcile.PaymentDistribution
		amount      string
		status      string
		finalizedAt string
		completedAt sql.NullString
		completedBy sql.NullString
	)

	err := rows.Scan(&dist.ID, &dist.GrowerNumber, &amount, &status,
		&finalizedAt, &completedAt, &completedBy)
	if err != nil {
		return dist, fmt.Errorf("failed to scan distribution: %w", err)
	}

	if dist.Amount, err = decimal.NewFromString(amount); err != nil {
		return dist, fmt.Errorf("malformed amount on distribution %s: %w", dist.ID, err)
	}
	dist.Status = reconcile.Status(status)
	dist.FinalizedAt, _ = time.Parse(time.RFC3339, finalizedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		dist.CompletedAt = &t
	}
	dist.CompletedBy = completedBy.String
	return dist, nil
}

// =============================================================================
// DISTRIBUTION LINES AND SOURCE ENTRIES
// =============================================================================

// AddDistributionLine records one disbursement entry for a distribution.
func (s *Store) AddDistributionLine(ctx context.Context, line reconcile.PaymentLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO distribution_lines (distribution_id, grower_number, reference, amount)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		line.DistributionID, line.GrowerNumber, line.Reference, line.Amount.String())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("duplicate reference %s on distribution %s", line.Reference, line.DistributionID)
		}
		return fmt.Errorf("failed to add distribution line: %w", err)
	}
	return nil
}

// AddSourceEntry records one authoritative source entry for a distribution.
func (s *Store) AddSourceEntry(ctx context.Context, entry reconcile.SourceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO source_entries (distribution_id, grower_number, reference, amount)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.DistributionID, entry.GrowerNumber, entry.Reference, entry.Amount.String())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("duplicate reference %s on distribution %s", entry.Reference, entry.DistributionID)
		}
		return fmt.Errorf("failed to add source entry: %w", err)
	}
	return nil
}

// DistributionLines returns the recorded disbursement entries for a
// distribution, in reference order.
func (s *Store) DistributionLines(ctx context.Context, distributionID string) ([]reconcile.PaymentLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT distribution_id, grower_number, reference, amount
		FROM distribution_lines
		WHERE distribution_id = ?
		ORDER BY reference ASC
	`

	rows, err := s.db.QueryContext(ctx, query, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution lines: %w", err)
	}
	defer rows.Close()

	var lines []reconcile.PaymentLine
	for rows.Next() {
		var (
			line   reconcile.PaymentLine
			amount string
		)
		if err := rows.Scan(&line.DistributionID, &line.GrowerNumber, &line.Reference, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan distribution line: %w", err)
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("malformed amount on line %s: %w", line.Reference, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// SourceEntries returns the authoritative source records for a
// distribution, in reference order.
func (s *Store) SourceEntries(ctx context.Context, distributionID string) ([]reconcile.SourceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT distribution_id, grower_number, reference, amount
		FROM source_entries
		WHERE distribution_id = ?
		ORDER BY reference ASC
	`

	rows, err := s.db.QueryContext(ctx, query, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query source entries: %w", err)
	}
	defer rows.Close()

	var entries []reconcile.SourceEntry
	for rows.Next() {
		var (
			entry  reconcile.SourceEntry
			amount string
		)
		if err := rows.Scan(&entry.DistributionID, &entry.GrowerNumber, &entry.Reference, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan source entry: %w", err)
		}
		if entry.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("malformed amount on entry %s: %w", entry.Reference, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// REPORTS AND COMPLETION (reconcile.ComputerStore interface)
// =============================================================================

// SaveReport persists the report and marks its distribution reconciled in
// one database transaction.
func (s *Store) SaveReport(ctx context.Context, report *reconcile.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matchedJSON, err := json.Marshal(report.Matched)
	if err != nil {
		return fmt.Errorf("failed to encode matched lines: %w", err)
	}
	discrepanciesJSON, err := json.Marshal(report.Discrepancies)
	if err != nil {
		return fmt.Errorf("failed to encode discrepancies: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO reports
		(id, distribution_id, matched_json, discrepancies_json,
		 recorded_total, source_total, total_discrepancy, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.DistributionID,
		string(matchedJSON),
		string(discrepanciesJSON),
		report.RecordedTotal.String(),
		report.SourceTotal.String(),
		report.TotalDiscrepancy.String(),
		report.GeneratedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx, `
		UPDATE distributions SET status = ? WHERE id = ? AND status != ?
	`, string(reconcile.StatusReconciled), report.DistributionID, string(reconcile.StatusCompleted))
	if err != nil {
		return fmt.Errorf("failed to mark distribution reconciled: %w", err)
	}

	return sqlTx.Commit()
}

// MarkCompleted closes out a distribution, stamping the acting identity
// and completion time. A guarded UPDATE; completing an already-completed
// or unknown distribution fails.
func (s *Store) MarkCompleted(ctx context.Context, distributionID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE distributions
		SET status = ?, completed_at = ?, completed_by = ?
		WHERE id = ? AND status != ?
	`,
		string(reconcile.StatusCompleted),
		time.Now().UTC().Format(time.RFC3339),
		actorID,
		distributionID,
		string(reconcile.StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("failed to mark distribution completed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check completion result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("distribution %s is not open for completion", distributionID)
	}
	return nil
}

// GetReport returns a persisted report by ID, or nil if unknown.
func (s *Store) GetReport(ctx context.Context, reportID string) (*reconcile.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, distribution_id, matched_json, discrepancies_json,
		       recorded_total, source_total, total_discrepancy, generated_at
		FROM reports
		WHERE id = ?
	`

	var (
		report            reconcile.Report
		matchedJSON       string
		discrepanciesJSON string
		recordedTotal     string
		sourceTotal       string
		totalDiscrepancy  string
		generatedAt       string
	)
	err := s.db.QueryRowContext(ctx, query, reportID).Scan(
		&report.ID, &report.DistributionID, &matchedJSON, &discrepanciesJSON,
		&recordedTotal, &sourceTotal, &totalDiscrepancy, &generatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	if err := json.Unmarshal([]byte(matchedJSON), &report.Matched); err != nil {
		return nil, fmt.Errorf("malformed matched lines on report %s: %w", reportID, err)
	}
	if err := json.Unmarshal([]byte(discrepanciesJSON), &report.Discrepancies); err != nil {
		return nil, fmt.Errorf("malformed discrepancies on report %s: %w", reportID, err)
	}
	if report.RecordedTotal, err = decimal.NewFromString(recordedTotal); err != nil {
		return nil, fmt.Errorf("malformed recorded total on report %s: %w", reportID, err)
	}
	if report.SourceTotal, err = decimal.NewFromString(sourceTotal); err != nil {
		return nil, fmt.Errorf("malformed source total on report %s: %w", reportID, err)
	}
	if report.TotalDiscrepancy, err = decimal.NewFromString(totalDiscrepancy); err != nil {
		return nil, fmt.Errorf("malformed total discrepancy on report %s: %w", reportID, err)
	}
	report.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	return &report, nil
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

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
