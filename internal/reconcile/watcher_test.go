package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/factorydesk/internal/clock"
	"github.com/mmeshcher/factorydesk/internal/model"
	"github.com/mmeshcher/factorydesk/internal/statev"
	"github.com/mmeshcher/factorydesk/internal/store"
)

const testVban = "409856"

type stubFeed struct {
	accounts    []model.Account
	accountsErr error
	page        *statev.TransactionPage
	pageErr     error
}

func (f *stubFeed) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *stubFeed) ListTransactions(ctx context.Context, bankID string, limit, offset int) (*statev.TransactionPage, error) {
	return f.page, f.pageErr
}

type nopNotifier struct{}

func (nopNotifier) PaymentsMatched(int) {}
func (nopNotifier) OrdersCompleted(int) {}
func (nopNotifier) OrdersArchived(int)  {}

func newTestWatcher(feed Feed, orders *Orders, settings *store.Store[model.Settings], clk clock.Clock) *Watcher {
	return NewWatcher(feed, orders, settings, nopNotifier{}, clk, zap.NewNop(), testVban, 0, time.Minute)
}

func enabledSettings(lastCheck string) *store.Store[model.Settings] {
	return store.New("settings", model.Settings{
		AutoPayment: model.AutoPaymentSettings{Enabled: true, LastCheck: lastCheck},
	})
}

func TestRunPass_MatchesPayment(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)

	orders, active, _ := newTestOrders(model.Order{ID: "o1", ReferenceCode: "SD-1234", Status: model.OrderStatusOpen})

	feed := &stubFeed{
		accounts: []model.Account{
			{ID: "acc-other", Vban: "111111"},
			{ID: "acc-home", Vban: testVban},
		},
		page: &statev.TransactionPage{
			Total: 1,
			Transactions: []model.Transaction{
				{ReceiverVban: testVban, Purpose: "Auftrag SD-1234", Timestamp: now.Add(-time.Minute).Format(time.RFC3339Nano)},
			},
		},
	}

	settings := enabledSettings("")
	w := newTestWatcher(feed, orders, settings, clk)

	w.RunPass(context.Background())

	got := active.Get().Orders[0]
	if got.Status != model.OrderStatusPaid {
		t.Fatalf("order status = %s, want PAID", got.Status)
	}
	if got.PaidAt == nil {
		t.Fatalf("paidAt not set")
	}

	lastCheck := settings.Get().AutoPayment.LastCheck
	if lastCheck == "" {
		t.Fatalf("checkpoint not recorded")
	}
	recorded, err := time.Parse(time.RFC3339Nano, lastCheck)
	if err != nil {
		t.Fatalf("parse checkpoint: %v", err)
	}
	if !recorded.Equal(now) {
		t.Fatalf("checkpoint = %v, want pass start %v", recorded, now)
	}
}

func TestRunPass_CheckpointIsStrict(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	checkpoint := now.Add(-time.Hour)
	clk := clock.NewManual(now)

	orders, active, _ := newTestOrders(model.Order{ID: "o1", ReferenceCode: "SD-1234", Status: model.OrderStatusOpen})

	// Транзакция ровно на контрольной точке уже обработана прошлым проходом.
	feed := &stubFeed{
		accounts: []model.Account{{ID: "acc", Vban: testVban}},
		page: &statev.TransactionPage{
			Transactions: []model.Transaction{
				{ReceiverVban: testVban, Purpose: "SD-1234", Timestamp: checkpoint.Format(time.RFC3339Nano)},
			},
		},
	}

	settings := enabledSettings(checkpoint.Format(time.RFC3339Nano))
	w := newTestWatcher(feed, orders, settings, clk)

	w.RunPass(context.Background())

	if got := active.Get().Orders[0].Status; got != model.OrderStatusOpen {
		t.Fatalf("transaction at checkpoint must not be reprocessed, status = %s", got)
	}

	recorded, err := time.Parse(time.RFC3339Nano, settings.Get().AutoPayment.LastCheck)
	if err != nil {
		t.Fatalf("parse checkpoint: %v", err)
	}
	if recorded.Before(checkpoint) {
		t.Fatalf("checkpoint moved backwards: %v -> %v", checkpoint, recorded)
	}
}

func TestRunPass_UnparsableTimestampIncluded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)

	orders, active, _ := newTestOrders(model.Order{ID: "o1", ReferenceCode: "SD-1234", Status: model.OrderStatusOpen})

	feed := &stubFeed{
		accounts: []model.Account{{ID: "acc", Vban: testVban}},
		page: &statev.TransactionPage{
			Transactions: []model.Transaction{
				{ReceiverVban: testVban, Purpose: "SD-1234", Timestamp: "gestern"},
			},
		},
	}

	settings := enabledSettings(now.Add(-time.Minute).Format(time.RFC3339Nano))
	w := newTestWatcher(feed, orders, settings, clk)

	w.RunPass(context.Background())

	if got := active.Get().Orders[0].Status; got != model.OrderStatusPaid {
		t.Fatalf("unparsable timestamp must be treated as new, status = %s", got)
	}
}

func TestRunPass_FeedFailureStillAdvancesLifecycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-time.Hour)
	clk := clock.NewManual(now)

	orders, active, _ := newTestOrders(model.Order{ID: "o1", Status: model.OrderStatusPaid, PaidAt: &paidAt})

	feed := &stubFeed{accountsErr: errors.New("connection refused")}
	settings := enabledSettings("")
	w := newTestWatcher(feed, orders, settings, clk)

	w.RunPass(context.Background())

	if got := active.Get().Orders[0].Status; got != model.OrderStatusCompleted {
		t.Fatalf("feed failure must not block lifecycle scan, status = %s", got)
	}
	if settings.Get().AutoPayment.LastCheck == "" {
		t.Fatalf("checkpoint must be recorded even after feed failure")
	}
}

func TestRunPass_DisabledDoesNothing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-time.Hour)
	clk := clock.NewManual(now)

	orders, active, _ := newTestOrders(model.Order{ID: "o1", Status: model.OrderStatusPaid, PaidAt: &paidAt})

	settings := store.New("settings", model.Settings{})
	w := newTestWatcher(&stubFeed{}, orders, settings, clk)

	w.RunPass(context.Background())

	if got := active.Get().Orders[0].Status; got != model.OrderStatusPaid {
		t.Fatalf("disabled watcher must not touch orders, status = %s", got)
	}
	if settings.Get().AutoPayment.LastCheck != "" {
		t.Fatalf("disabled watcher must not record checkpoint")
	}
}

func TestRunPass_RepeatedPassIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-time.Hour)
	clk := clock.NewManual(now)

	orders, active, _ := newTestOrders(model.Order{ID: "o1", Status: model.OrderStatusPaid, PaidAt: &paidAt})

	feed := &stubFeed{accounts: []model.Account{}}
	settings := enabledSettings("")
	w := newTestWatcher(feed, orders, settings, clk)

	w.RunPass(context.Background())
	finishedAt := *active.Get().Orders[0].FinishedAt

	clk.Advance(time.Second)
	w.RunPass(context.Background())

	if got := *active.Get().Orders[0].FinishedAt; !got.Equal(finishedAt) {
		t.Fatalf("second pass re-applied transition: %v -> %v", finishedAt, got)
	}
}
