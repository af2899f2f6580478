// Package store provides in-memory schedule.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	schedules  map[schedule.ScheduleID]schedule.ScheduleParams
	payments   map[schedule.ScheduleID][]schedule.Payment
	rates      map[schedule.RateID]*schedule.Rate
	exclusions map[schedule.Date]schedule.Exclusion
}

func NewMemory() *Memory {
	return &Memory{
		schedules:  make(map[schedule.ScheduleID]schedule.ScheduleParams),
		payments:   make(map[schedule.ScheduleID][]schedule.Payment),
		rates:      make(map[schedule.RateID]*schedule.Rate),
		exclusions: make(map[schedule.Date]schedule.Exclusion),
	}
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

func (m *Memory) GetSchedule(_ context.Context, id schedule.ScheduleID) (*schedule.ScheduleParams, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.schedules[id]
	if !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	return &p, nil
}

func (m *Memory) SaveSchedule(_ context.Context, p schedule.ScheduleParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.schedules[p.ID] = p
	return nil
}

func (m *Memory) ListSchedulesByRate(_ context.Context, rateID schedule.RateID) ([]schedule.ScheduleParams, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []schedule.ScheduleParams
	for _, p := range m.schedules {
		if p.RateID == rateID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (m *Memory) PaymentsBySchedule(_ context.Context, id schedule.ScheduleID) ([]schedule.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]schedule.Payment, len(m.payments[id]))
	copy(result, m.payments[id])
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) InsertPayments(_ context.Context, payments []schedule.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range payments {
		if p.ID == "" {
			p.ID = schedule.PaymentRecordID(uuid.NewString())
		}
		m.payments[p.ScheduleID] = append(m.payments[p.ScheduleID], p)
	}
	return nil
}

func (m *Memory) DeletePayments(_ context.Context, ids []schedule.PaymentRecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doomed := make(map[schedule.PaymentRecordID]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	for sid, payments := range m.payments {
		kept := payments[:0]
		for _, p := range payments {
			// Paid payments are immutable history.
			if doomed[p.ID] && !p.Paid {
				continue
			}
			kept = append(kept, p)
		}
		m.payments[sid] = kept
	}
	return nil
}

func (m *Memory) UpdateAmounts(_ context.Context, updates []schedule.AmountUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	amounts := make(map[schedule.PaymentRecordID]decimal.Decimal, len(updates))
	for _, u := range updates {
		amounts[u.PaymentID] = u.Amount
	}
	for sid, payments := range m.payments {
		for i, p := range payments {
			if amount, ok := amounts[p.ID]; ok && !p.Paid {
				payments[i].Amount = amount
			}
		}
		m.payments[sid] = payments
	}
	return nil
}

func (m *Memory) MarkPaid(_ context.Context, id schedule.PaymentRecordID, paidDate schedule.Date, paidAmount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sid, payments := range m.payments {
		for i, p := range payments {
			if p.ID == id {
				payments[i].Paid = true
				payments[i].PaidDate = &paidDate
				payments[i].PaidAmount = &paidAmount
				m.payments[sid] = payments
				return nil
			}
		}
	}
	return schedule.ErrScheduleNotFound
}

// =============================================================================
// RATE STORE
// =============================================================================

func (m *Memory) GetRate(_ context.Context, id schedule.RateID) (*schedule.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rates[id]
	if !ok {
		return nil, schedule.ErrRateNotFound
	}
	cp := *r
	cp.Periods = append(schedule.Periods(nil), r.Periods...)
	return &cp, nil
}

func (m *Memory) SaveRate(_ context.Context, r *schedule.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	cp.Periods = append(schedule.Periods(nil), r.Periods...)
	m.rates[r.ID] = &cp
	return nil
}

func (m *Memory) ListRatesNeedingRecalculation(_ context.Context) ([]*schedule.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*schedule.Rate
	for _, r := range m.rates {
		if r.NeedsRecalculation {
			cp := *r
			cp.Periods = append(schedule.Periods(nil), r.Periods...)
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) ClearRecalculationFlag(_ context.Context, id schedule.RateID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rates[id]
	if !ok {
		return schedule.ErrRateNotFound
	}
	r.NeedsRecalculation = false
	return nil
}

// =============================================================================
// EXCLUSION STORE
// =============================================================================

func (m *Memory) ListExclusions(_ context.Context) ([]schedule.Exclusion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]schedule.Exclusion, 0, len(m.exclusions))
	for _, e := range m.exclusions {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) SaveExclusions(_ context.Context, exclusions []schedule.Exclusion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range exclusions {
		m.exclusions[e.Date] = e
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot + rollback on error.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	schedules  map[schedule.ScheduleID]schedule.ScheduleParams
	payments   map[schedule.ScheduleID][]schedule.Payment
	rates      map[schedule.RateID]*schedule.Rate
	exclusions map[schedule.Date]schedule.Exclusion
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		schedules:  make(map[schedule.ScheduleID]schedule.ScheduleParams, len(tm.schedules)),
		payments:   make(map[schedule.ScheduleID][]schedule.Payment, len(tm.payments)),
		rates:      make(map[schedule.RateID]*schedule.Rate, len(tm.rates)),
		exclusions: make(map[schedule.Date]schedule.Exclusion, len(tm.exclusions)),
	}
	for k, v := range tm.schedules {
		s.schedules[k] = v
	}
	for k, v := range tm.payments {
		s.payments[k] = append([]schedule.Payment{}, v...)
	}
	for k, v := range tm.rates {
		cp := *v
		cp.Periods = append(schedule.Periods(nil), v.Periods...)
		s.rates[k] = &cp
	}
	for k, v := range tm.exclusions {
		s.exclusions[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.schedules = s.schedules
	tm.payments = s.payments
	tm.rates = s.rates
	tm.exclusions = s.exclusions
}
