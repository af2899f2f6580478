package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
	"github.com/munipay/payment-engine/schedule/store"
)

func payment(schedID schedule.ScheduleID, d schedule.Date, amount int64) schedule.Payment {
	return schedule.Payment{
		ScheduleID:    schedID,
		Date:          d,
		Amount:        decimal.NewFromInt(amount),
		RecipientType: schedule.RecipientPerson,
		RecipientID:   "cpr-1",
		RecipientName: "Jens Hansen",
	}
}

func TestMemory_InsertAssignsIDs(t *testing.T) {
	// GIVEN: Payments without record IDs
	// WHEN: Inserting
	// THEN: Each stored payment has a unique ID

	m := store.NewMemory()
	ctx := context.Background()

	err := m.InsertPayments(ctx, []schedule.Payment{
		payment("sch-1", schedule.NewDate(2025, time.March, 3), 500),
		payment("sch-1", schedule.NewDate(2025, time.April, 1), 500),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payments, err := m.PaymentsBySchedule(ctx, "sch-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	if payments[0].ID == "" || payments[1].ID == "" {
		t.Error("inserted payments should have IDs assigned")
	}
	if payments[0].ID == payments[1].ID {
		t.Error("payment IDs should be unique")
	}
}

func TestMemory_DeleteSkipsPaid(t *testing.T) {
	// GIVEN: A paid and an unpaid payment
	// WHEN: Deleting both by ID
	// THEN: Only the unpaid one is removed

	m := store.NewMemory()
	ctx := context.Background()

	err := m.InsertPayments(ctx, []schedule.Payment{
		payment("sch-1", schedule.NewDate(2025, time.March, 3), 500),
		payment("sch-1", schedule.NewDate(2025, time.April, 1), 500),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payments, _ := m.PaymentsBySchedule(ctx, "sch-1")
	err = m.MarkPaid(ctx, payments[0].ID, schedule.NewDate(2025, time.March, 3), decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = m.DeletePayments(ctx, []schedule.PaymentRecordID{payments[0].ID, payments[1].ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining, _ := m.PaymentsBySchedule(ctx, "sch-1")
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining payment, got %d", len(remaining))
	}
	if !remaining[0].Paid {
		t.Error("the surviving payment should be the paid one")
	}
}

func TestMemory_UpdateAmountsSkipsPaid(t *testing.T) {
	// GIVEN: A paid payment
	// WHEN: Updating its amount
	// THEN: The recorded amount is unchanged

	m := store.NewMemory()
	ctx := context.Background()

	if err := m.InsertPayments(ctx, []schedule.Payment{
		payment("sch-1", schedule.NewDate(2025, time.March, 3), 500),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payments, _ := m.PaymentsBySchedule(ctx, "sch-1")
	if err := m.MarkPaid(ctx, payments[0].ID, schedule.NewDate(2025, time.March, 3), decimal.NewFromInt(500)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := m.UpdateAmounts(ctx, []schedule.AmountUpdate{
		{PaymentID: payments[0].ID, Amount: decimal.NewFromInt(999)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := m.PaymentsBySchedule(ctx, "sch-1")
	if !after[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("paid amount must not change, got %s", after[0].Amount)
	}
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that writes then fails
	// WHEN: The callback returns an error
	// THEN: All writes inside the transaction are rolled back

	tm := store.NewTxMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := tm.WithTx(ctx, func(s schedule.Store) error {
		if err := s.InsertPayments(ctx, []schedule.Payment{
			payment("sch-1", schedule.NewDate(2025, time.March, 3), 500),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	payments, _ := tm.PaymentsBySchedule(ctx, "sch-1")
	if len(payments) != 0 {
		t.Errorf("expected rollback, found %d payments", len(payments))
	}
}
