/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements activity.TxStore (which embeds every schedule store
  interface) using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  payment_schedules: Recurrence/cost configuration per activity
  schedule_prices:   Time-bounded per-unit prices for one schedule
  payments:          The payment ledger rows
  rates:             Shared named rates
  rate_periods:      Validity partition per rate
  exclusion_dates:   Precomputed holiday/extra exclusions
  activities:        Case activities with their supersedes links
  service_providers: VAT factor source

PAID-PAYMENT ENFORCEMENT:
  Deletes and amount updates carry "AND paid = 0" so paid history can
  never be rewritten, even by a buggy caller.

DATE UNIQUENESS:
  A partial unique index on (schedule_id, date) WHERE paid = 0 backs
  the invariant that no two unpaid payments share a due date.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, plus WAL mode for better
  read concurrency. Synchronization of one schedule runs entirely
  inside WithTx, which serializes double-submitted saves.

USAGE:
  store, err := sqlite.New("./data/payments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  service := activity.NewPaymentService(store)

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/activity"
	"github.com/munipay/payment-engine/schedule"
)

// Store implements activity.TxStore using SQLite.
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
	CREATE TABLE IF NOT EXISTS payment_schedules (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		recipient_type TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		method TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		frequency TEXT NOT NULL,
		cost_type TEXT NOT NULL,
		fixed_amount TEXT,
		units TEXT NOT NULL DEFAULT '0',
		rate_id TEXT,
		day_of_month INTEGER NOT NULL DEFAULT 0,
		one_time_date TEXT,
		fictive BOOLEAN NOT NULL DEFAULT FALSE,
		activity_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_rate
		ON payment_schedules(rate_id) WHERE rate_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_schedules_activity
		ON payment_schedules(activity_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_payment_id
		ON payment_schedules(payment_id);

	CREATE TABLE IF NOT EXISTS schedule_prices (
		schedule_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_prices_schedule
		ON schedule_prices(schedule_id, start_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_date TEXT,
		paid_amount TEXT,
		recipient_type TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		fictive BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_payments_schedule_date
		ON payments(schedule_id, date);

	-- CRITICAL: No two unpaid payments on the same day for a schedule.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_unique_unpaid_date
		ON payments(schedule_id, date) WHERE paid = 0;

	CREATE TABLE IF NOT EXISTS rates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		needs_recalculation BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_rates_needs_recalculation
		ON rates(needs_recalculation);

	CREATE TABLE IF NOT EXISTS rate_periods (
		rate_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_periods_rate
		ON rate_periods(rate_id, start_date);

	CREATE TABLE IF NOT EXISTS exclusion_dates (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		appropriation_id TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		modifies_id TEXT,
		provider_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activities_modifies
		ON activities(modifies_id) WHERE modifies_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS service_providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		vat_factor TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (activity.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(activity.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transaction-bound view handed to WithTx callbacks.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

func (s *Store) GetSchedule(ctx context.Context, id schedule.ScheduleID) (*schedule.ScheduleParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSchedule(ctx, s.db, id)
}

func (ts *txStore) GetSchedule(ctx context.Context, id schedule.ScheduleID) (*schedule.ScheduleParams, error) {
	return getSchedule(ctx, ts.tx, id)
}

func getSchedule(ctx context.Context, q dbtx, id schedule.ScheduleID) (*schedule.ScheduleParams, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, payment_id, recipient_type, recipient_id, recipient_name, method,
		       payment_type, frequency, cost_type, fixed_amount, units, rate_id,
		       day_of_month, one_time_date, fictive, activity_id
		FROM payment_schedules WHERE id = ?`, id)
	return scanSchedule(ctx, q, row)
}

func (s *Store) SaveSchedule(ctx context.Context, p schedule.ScheduleParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSchedule(ctx, s.db, p)
}

func (ts *txStore) SaveSchedule(ctx context.Context, p schedule.ScheduleParams) error {
	return saveSchedule(ctx, ts.tx, p)
}

func saveSchedule(ctx context.Context, q dbtx, p schedule.ScheduleParams) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payment_schedules
		(id, payment_id, recipient_type, recipient_id, recipient_name, method,
		 payment_type, frequency, cost_type, fixed_amount, units, rate_id,
		 day_of_month, one_time_date, fictive, activity_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payment_id = excluded.payment_id,
			recipient_type = excluded.recipient_type,
			recipient_id = excluded.recipient_id,
			recipient_name = excluded.recipient_name,
			method = excluded.method,
			payment_type = excluded.payment_type,
			frequency = excluded.frequency,
			cost_type = excluded.cost_type,
			fixed_amount = excluded.fixed_amount,
			units = excluded.units,
			rate_id = excluded.rate_id,
			day_of_month = excluded.day_of_month,
			one_time_date = excluded.one_time_date,
			fictive = excluded.fictive,
			activity_id = excluded.activity_id`,
		p.ID, p.PaymentID, p.RecipientType, p.RecipientID, p.RecipientName, p.Method,
		p.Type, p.Frequency, p.CostType, nullDecimal(p.FixedAmount), p.Units.String(),
		nullString(string(p.RateID)), p.DayOfMonth, nullDate(p.OneTimeDate), p.Fictive, p.ActivityID,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM schedule_prices WHERE schedule_id = ?", p.ID); err != nil {
		return err
	}
	if p.Price != nil {
		for _, period := range p.Price.Periods {
			_, err := q.ExecContext(ctx,
				"INSERT INTO schedule_prices (schedule_id, start_date, end_date, amount) VALUES (?, ?, ?, ?)",
				p.ID, period.Start.String(), nullDate(period.End), period.Amount.String())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) ListSchedulesByRate(ctx context.Context, rateID schedule.RateID) ([]schedule.ScheduleParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSchedulesByRate(ctx, s.db, rateID)
}

func (ts *txStore) ListSchedulesByRate(ctx context.Context, rateID schedule.RateID) ([]schedule.ScheduleParams, error) {
	return listSchedulesByRate(ctx, ts.tx, rateID)
}

func listSchedulesByRate(ctx context.Context, q dbtx, rateID schedule.RateID) ([]schedule.ScheduleParams, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, payment_id, recipient_type, recipient_id, recipient_name, method,
		       payment_type, frequency, cost_type, fixed_amount, units, rate_id,
		       day_of_month, one_time_date, fictive, activity_id
		FROM payment_schedules WHERE rate_id = ? ORDER BY id`, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var result []schedule.ScheduleParams
	for rows.Next() {
		p, err := scanScheduleRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Per-unit prices live in their own table.
	for i := range result {
		if result[i].CostType == schedule.CostPerUnit {
			price, err := loadPrice(ctx, q, result[i].ID)
			if err != nil {
				return nil, err
			}
			result[i].Price = price
		}
	}
	return result, nil
}

func (s *Store) ScheduleByActivity(ctx context.Context, id schedule.ActivityID) (*schedule.ScheduleParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scheduleByActivity(ctx, s.db, id)
}

func (ts *txStore) ScheduleByActivity(ctx context.Context, id schedule.ActivityID) (*schedule.ScheduleParams, error) {
	return scheduleByActivity(ctx, ts.tx, id)
}

func scheduleByActivity(ctx context.Context, q dbtx, id schedule.ActivityID) (*schedule.ScheduleParams, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, payment_id, recipient_type, recipient_id, recipient_name, method,
		       payment_type, frequency, cost_type, fixed_amount, units, rate_id,
		       day_of_month, one_time_date, fictive, activity_id
		FROM payment_schedules WHERE activity_id = ?`, id)
	return scanSchedule(ctx, q, row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(ctx context.Context, q dbtx, row *sql.Row) (*schedule.ScheduleParams, error) {
	p, err := scanScheduleRows(row)
	if err != nil {
		return nil, err
	}
	if p.CostType == schedule.CostPerUnit {
		p.Price, err = loadPrice(ctx, q, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func scanScheduleRows(row rowScanner) (*schedule.ScheduleParams, error) {
	var (
		p           schedule.ScheduleParams
		fixedAmount sql.NullString
		units       string
		rateID      sql.NullString
		oneTimeDate sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.PaymentID, &p.RecipientType, &p.RecipientID, &p.RecipientName, &p.Method,
		&p.Type, &p.Frequency, &p.CostType, &fixedAmount, &units, &rateID,
		&p.DayOfMonth, &oneTimeDate, &p.Fictive, &p.ActivityID,
	)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	if fixedAmount.Valid {
		amount, err := decimal.NewFromString(fixedAmount.String)
		if err != nil {
			return nil, err
		}
		p.FixedAmount = &amount
	}
	p.Units, err = decimal.NewFromString(units)
	if err != nil {
		return nil, err
	}
	p.RateID = schedule.RateID(rateID.String)
	if oneTimeDate.Valid {
		d, err := schedule.ParseDate(oneTimeDate.String)
		if err != nil {
			return nil, err
		}
		p.OneTimeDate = &d
	}
	return &p, nil
}

func loadPrice(ctx context.Context, q dbtx, id schedule.ScheduleID) (*schedule.Price, error) {
	periods, err := loadPeriods(ctx, q,
		"SELECT start_date, end_date, amount FROM schedule_prices WHERE schedule_id = ? ORDER BY start_date", string(id))
	if err != nil {
		return nil, err
	}
	return &schedule.Price{Periods: periods}, nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (s *Store) PaymentsBySchedule(ctx context.Context, id schedule.ScheduleID) ([]schedule.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsBySchedule(ctx, s.db, id)
}

func (ts *txStore) PaymentsBySchedule(ctx context.Context, id schedule.ScheduleID) ([]schedule.Payment, error) {
	return paymentsBySchedule(ctx, ts.tx, id)
}

func paymentsBySchedule(ctx context.Context, q dbtx, id schedule.ScheduleID) ([]schedule.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, schedule_id, date, amount, paid, paid_date, paid_amount,
		       recipient_type, recipient_id, recipient_name, fictive
		FROM payments WHERE schedule_id = ? ORDER BY date ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var result []schedule.Payment
	for rows.Next() {
		var (
			p          schedule.Payment
			date       string
			amount     string
			paidDate   sql.NullString
			paidAmount sql.NullString
		)
		err := rows.Scan(&p.ID, &p.ScheduleID, &date, &amount, &p.Paid, &paidDate, &paidAmount,
			&p.RecipientType, &p.RecipientID, &p.RecipientName, &p.Fictive)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Date, err = schedule.ParseDate(date); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if paidDate.Valid {
			d, err := schedule.ParseDate(paidDate.String)
			if err != nil {
				return nil, err
			}
			p.PaidDate = &d
		}
		if paidAmount.Valid {
			a, err := decimal.NewFromString(paidAmount.String)
			if err != nil {
				return nil, err
			}
			p.PaidAmount = &a
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) InsertPayments(ctx context.Context, payments []schedule.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayments(ctx, s.db, payments)
}

func (ts *txStore) InsertPayments(ctx context.Context, payments []schedule.Payment) error {
	return insertPayments(ctx, ts.tx, payments)
}

func insertPayments(ctx context.Context, q dbtx, payments []schedule.Payment) error {
	for _, p := range payments {
		if p.ID == "" {
			p.ID = schedule.PaymentRecordID(uuid.NewString())
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO payments
			(id, schedule_id, date, amount, paid, paid_date, paid_amount,
			 recipient_type, recipient_id, recipient_name, fictive)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ScheduleID, p.Date.String(), p.Amount.String(), p.Paid,
			nullDate(p.PaidDate), nullDecimal(p.PaidAmount),
			p.RecipientType, p.RecipientID, p.RecipientName, p.Fictive,
		)
		if err != nil {
			// The partial unique index on unpaid (schedule_id, date)
			// fires when the unpaid set changed between planning and
			// commit, typically a double-submitted synchronize.
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return fmt.Errorf("payment for %s on %s: %w",
					p.ScheduleID, p.Date, schedule.ErrConcurrentModification)
			}
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}
	return nil
}

func (s *Store) DeletePayments(ctx context.Context, ids []schedule.PaymentRecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayments(ctx, s.db, ids)
}

func (ts *txStore) DeletePayments(ctx context.Context, ids []schedule.PaymentRecordID) error {
	return deletePayments(ctx, ts.tx, ids)
}

func deletePayments(ctx context.Context, q dbtx, ids []schedule.PaymentRecordID) error {
	for _, id := range ids {
		// paid = 0 guard: paid payments are immutable history.
		if _, err := q.ExecContext(ctx, "DELETE FROM payments WHERE id = ? AND paid = 0", id); err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}
	}
	return nil
}

func (s *Store) UpdateAmounts(ctx context.Context, updates []schedule.AmountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAmounts(ctx, s.db, updates)
}

func (ts *txStore) UpdateAmounts(ctx context.Context, updates []schedule.AmountUpdate) error {
	return updateAmounts(ctx, ts.tx, updates)
}

func updateAmounts(ctx context.Context, q dbtx, updates []schedule.AmountUpdate) error {
	for _, u := range updates {
		_, err := q.ExecContext(ctx,
			"UPDATE payments SET amount = ? WHERE id = ? AND paid = 0",
			u.Amount.String(), u.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to update payment amount: %w", err)
		}
	}
	return nil
}

func (s *Store) MarkPaid(ctx context.Context, id schedule.PaymentRecordID, paidDate schedule.Date, paidAmount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markPaid(ctx, s.db, id, paidDate, paidAmount)
}

func (ts *txStore) MarkPaid(ctx context.Context, id schedule.PaymentRecordID, paidDate schedule.Date, paidAmount decimal.Decimal) error {
	return markPaid(ctx, ts.tx, id, paidDate, paidAmount)
}

func markPaid(ctx context.Context, q dbtx, id schedule.PaymentRecordID, paidDate schedule.Date, paidAmount decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		"UPDATE payments SET paid = 1, paid_date = ?, paid_amount = ? WHERE id = ?",
		paidDate.String(), paidAmount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to mark payment paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %s not found", id)
	}
	return nil
}

// =============================================================================
// RATE STORE
// =============================================================================

func (s *Store) GetRate(ctx context.Context, id schedule.RateID) (*schedule.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRate(ctx, s.db, id)
}

func (ts *txStore) GetRate(ctx context.Context, id schedule.RateID) (*schedule.Rate, error) {
	return getRate(ctx, ts.tx, id)
}

func getRate(ctx context.Context, q dbtx, id schedule.RateID) (*schedule.Rate, error) {
	var r schedule.Rate
	err := q.QueryRowContext(ctx,
		"SELECT id, name, needs_recalculation FROM rates WHERE id = ?", id,
	).Scan(&r.ID, &r.Name, &r.NeedsRecalculation)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rate: %w", err)
	}

	r.Periods, err = loadPeriods(ctx, q,
		"SELECT start_date, end_date, amount FROM rate_periods WHERE rate_id = ? ORDER BY start_date", string(id))
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SaveRate(ctx context.Context, r *schedule.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRate(ctx, s.db, r)
}

func (ts *txStore) SaveRate(ctx context.Context, r *schedule.Rate) error {
	return saveRate(ctx, ts.tx, r)
}

func saveRate(ctx context.Context, q dbtx, r *schedule.Rate) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO rates (id, name, needs_recalculation) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			needs_recalculation = excluded.needs_recalculation`,
		r.ID, r.Name, r.NeedsRecalculation)
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM rate_periods WHERE rate_id = ?", r.ID); err != nil {
		return err
	}
	for _, p := range r.Periods {
		_, err := q.ExecContext(ctx,
			"INSERT INTO rate_periods (rate_id, start_date, end_date, amount) VALUES (?, ?, ?, ?)",
			r.ID, p.Start.String(), nullDate(p.End), p.Amount.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListRatesNeedingRecalculation(ctx context.Context) ([]*schedule.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRatesNeedingRecalculation(ctx, s.db)
}

func (ts *txStore) ListRatesNeedingRecalculation(ctx context.Context) ([]*schedule.Rate, error) {
	return listRatesNeedingRecalculation(ctx, ts.tx)
}

func listRatesNeedingRecalculation(ctx context.Context, q dbtx) ([]*schedule.Rate, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM rates WHERE needs_recalculation = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var ids []schedule.RateID
	for rows.Next() {
		var id schedule.RateID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var result []*schedule.Rate
	for _, id := range ids {
		r, err := getRate(ctx, q, id)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) ClearRecalculationFlag(ctx context.Context, id schedule.RateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clearRecalculationFlag(ctx, s.db, id)
}

func (ts *txStore) ClearRecalculationFlag(ctx context.Context, id schedule.RateID) error {
	return clearRecalculationFlag(ctx, ts.tx, id)
}

func clearRecalculationFlag(ctx context.Context, q dbtx, id schedule.RateID) error {
	_, err := q.ExecContext(ctx, "UPDATE rates SET needs_recalculation = 0 WHERE id = ?", id)
	return err
}

// =============================================================================
// EXCLUSION STORE
// =============================================================================

func (s *Store) ListExclusions(ctx context.Context) ([]schedule.Exclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listExclusions(ctx, s.db)
}

func (ts *txStore) ListExclusions(ctx context.Context) ([]schedule.Exclusion, error) {
	return listExclusions(ctx, ts.tx)
}

func listExclusions(ctx context.Context, q dbtx) ([]schedule.Exclusion, error) {
	rows, err := q.QueryContext(ctx, "SELECT date, name FROM exclusion_dates ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()

	var result []schedule.Exclusion
	for rows.Next() {
		var date, name string
		if err := rows.Scan(&date, &name); err != nil {
			return nil, err
		}
		d, err := schedule.ParseDate(date)
		if err != nil {
			return nil, err
		}
		result = append(result, schedule.Exclusion{Date: d, Name: name})
	}
	return result, rows.Err()
}

func (s *Store) SaveExclusions(ctx context.Context, exclusions []schedule.Exclusion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveExclusions(ctx, s.db, exclusions)
}

func (ts *txStore) SaveExclusions(ctx context.Context, exclusions []schedule.Exclusion) error {
	return saveExclusions(ctx, ts.tx, exclusions)
}

func saveExclusions(ctx context.Context, q dbtx, exclusions []schedule.Exclusion) error {
	for _, e := range exclusions {
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO exclusion_dates (date, name) VALUES (?, ?)",
			e.Date.String(), e.Name)
		if err != nil {
			return fmt.Errorf("failed to save exclusion: %w", err)
		}
	}
	return nil
}

// =============================================================================
// ACTIVITY STORE
// =============================================================================

func (s *Store) GetActivity(ctx context.Context, id schedule.ActivityID) (*activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getActivity(ctx, s.db, id)
}

func (ts *txStore) GetActivity(ctx context.Context, id schedule.ActivityID) (*activity.Activity, error) {
	return getActivity(ctx, ts.tx, id)
}

func getActivity(ctx context.Context, q dbtx, id schedule.ActivityID) (*activity.Activity, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, appropriation_id, status, start_date, end_date, modifies_id, provider_id
		FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrActivityNotFound
	}
	return a, err
}

func scanActivity(row rowScanner) (*activity.Activity, error) {
	var (
		a          activity.Activity
		start      string
		end        sql.NullString
		modifies   sql.NullString
		providerID sql.NullString
	)
	err := row.Scan(&a.ID, &a.AppropriationID, &a.Status, &start, &end, &modifies, &providerID)
	if err != nil {
		return nil, err
	}
	if a.Start, err = schedule.ParseDate(start); err != nil {
		return nil, err
	}
	if end.Valid {
		d, err := schedule.ParseDate(end.String)
		if err != nil {
			return nil, err
		}
		a.End = &d
	}
	a.ModifiesID = schedule.ActivityID(modifies.String)
	a.ProviderID = providerID.String
	return &a, nil
}

func (s *Store) SaveActivity(ctx context.Context, a activity.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveActivity(ctx, s.db, a)
}

func (ts *txStore) SaveActivity(ctx context.Context, a activity.Activity) error {
	return saveActivity(ctx, ts.tx, a)
}

func saveActivity(ctx context.Context, q dbtx, a activity.Activity) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO activities (id, appropriation_id, status, start_date, end_date, modifies_id, provider_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			appropriation_id = excluded.appropriation_id,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			modifies_id = excluded.modifies_id,
			provider_id = excluded.provider_id`,
		a.ID, a.AppropriationID, a.Status, a.Start.String(), nullDate(a.End),
		nullString(string(a.ModifiesID)), nullString(a.ProviderID))
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivities(ctx context.Context) ([]activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActivities(ctx, s.db)
}

func (ts *txStore) ListActivities(ctx context.Context) ([]activity.Activity, error) {
	return listActivities(ctx, ts.tx)
}

func listActivities(ctx context.Context, q dbtx) ([]activity.Activity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, appropriation_id, status, start_date, end_date, modifies_id, provider_id
		FROM activities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var result []activity.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// =============================================================================
// SERVICE PROVIDER STORE
// =============================================================================

func (s *Store) GetProvider(ctx context.Context, id string) (*activity.ServiceProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProvider(ctx, s.db, id)
}

func (ts *txStore) GetProvider(ctx context.Context, id string) (*activity.ServiceProvider, error) {
	return getProvider(ctx, ts.tx, id)
}

func getProvider(ctx context.Context, q dbtx, id string) (*activity.ServiceProvider, error) {
	var (
		p   activity.ServiceProvider
		vat string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, name, vat_factor FROM service_providers WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &vat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider: %w", err)
	}
	if p.VATFactor, err = decimal.NewFromString(vat); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProvider(ctx context.Context, p activity.ServiceProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveProvider(ctx, s.db, p)
}

func (ts *txStore) SaveProvider(ctx context.Context, p activity.ServiceProvider) error {
	return saveProvider(ctx, ts.tx, p)
}

func saveProvider(ctx context.Context, q dbtx, p activity.ServiceProvider) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO service_providers (id, name, vat_factor) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			vat_factor = excluded.vat_factor`,
		p.ID, p.Name, p.VATFactor.String())
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func loadPeriods(ctx context.Context, q dbtx, query, ownerID string) (schedule.Periods, error) {
	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods schedule.Periods
	for rows.Next() {
		var (
			start  string
			end    sql.NullString
			amount string
		)
		if err := rows.Scan(&start, &end, &amount); err != nil {
			return nil, err
		}
		p := schedule.RatePeriod{}
		if p.Start, err = schedule.ParseDate(start); err != nil {
			return nil, err
		}
		if end.Valid {
			d, err := schedule.ParseDate(end.String)
			if err != nil {
				return nil, err
			}
			p.End = &d
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d *schedule.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
