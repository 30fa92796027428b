package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/factorydesk/internal/clock"
	"github.com/mmeshcher/factorydesk/internal/match"
	"github.com/mmeshcher/factorydesk/internal/model"
	"github.com/mmeshcher/factorydesk/internal/statev"
)

const fetchLimit = 100

// Feed описывает контракт внешнего источника транзакций.
type Feed interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListTransactions(ctx context.Context, bankID string, limit, offset int) (*statev.TransactionPage, error)
}

// Settings отдаёт настройки сверки и принимает обновление контрольной точки.
type Settings interface {
	Get() model.Settings
	Update(fn func(model.Settings) model.Settings)
}

// Notifier получает уведомления об успешных действиях цикла сверки.
// Сбои не рапортуются: фоновый процесс не должен шуметь.
type Notifier interface {
	PaymentsMatched(count int)
	OrdersCompleted(count int)
	OrdersArchived(count int)
}

// LogNotifier пишет уведомления в журнал.
type LogNotifier struct {
	Logger *zap.Logger
}

// PaymentsMatched сообщает о числе сопоставленных платежей.
func (n LogNotifier) PaymentsMatched(count int) {
	n.Logger.Info("payments matched", zap.Int("count", count))
}

// OrdersCompleted сообщает о числе автоматически завершённых заказов.
func (n LogNotifier) OrdersCompleted(count int) {
	n.Logger.Info("orders completed", zap.Int("count", count))
}

// OrdersArchived сообщает о числе заархивированных заказов.
func (n LogNotifier) OrdersArchived(count int) {
	n.Logger.Info("orders archived", zap.Int("count", count))
}

// Watcher — координатор цикла сверки: получение транзакций, сопоставление
// платежей, продвижение жизненного цикла, архивация и запись контрольной
// точки. Шаги изолированы по сбоям: неудача одного не прерывает остальные.
type Watcher struct {
	feed     Feed
	orders   *Orders
	settings Settings
	notifier Notifier
	clock    clock.Clock
	logger   *zap.Logger

	homeVban        string
	startupDelay    time.Duration
	defaultInterval time.Duration
}

// NewWatcher создаёт координатор сверки.
func NewWatcher(feed Feed, orders *Orders, settings Settings, notifier Notifier, clk clock.Clock, logger *zap.Logger, homeVban string, startupDelay, interval time.Duration) *Watcher {
	return &Watcher{
		feed:            feed,
		orders:          orders,
		settings:        settings,
		notifier:        notifier,
		clock:           clk,
		logger:          logger,
		homeVban:        homeVban,
		startupDelay:    startupDelay,
		defaultInterval: interval,
	}
}

// Run запускает циклы сверки до отмены контекста. Первый проход выполняется
// после стартовой задержки, чтобы зависимые контейнеры успели загрузиться.
func (w *Watcher) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.startupDelay):
	}

	w.RunPass(ctx)

	for {
		timer := time.NewTimer(w.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.RunPass(ctx)
		}
	}
}

// Интервал из настроек имеет приоритет над конфигурацией процесса.
func (w *Watcher) interval() time.Duration {
	if iv := w.settings.Get().AutoPayment.Interval; iv > 0 {
		return iv
	}
	return w.defaultInterval
}

// RunPass выполняет один проход сверки. Проход идемпотентен: повторный
// запуск на тех же заказах не порождает повторных переходов.
func (w *Watcher) RunPass(ctx context.Context) {
	s := w.settings.Get()
	if !s.AutoPayment.Enabled {
		return
	}

	start := w.clock.Now()

	if n := w.matchPayments(ctx, s.AutoPayment.LastCheck); n > 0 {
		w.notifier.PaymentsMatched(n)
	}

	if n := w.orders.CompleteExpired(start, s.TestMode); n > 0 {
		w.notifier.OrdersCompleted(n)
	}

	if n := w.orders.ArchiveExpired(start, s.TestMode); n > 0 {
		w.notifier.OrdersArchived(n)
	}

	w.recordCheckpoint(start)
}

// Шаги 1–4: счёт, транзакции, отбор новых, сопоставление с заказами.
func (w *Watcher) matchPayments(ctx context.Context, lastCheck string) int {
	accounts, err := w.feed.ListAccounts(ctx)
	if err != nil {
		w.logger.Error("fetch accounts failed", zap.Error(err))
		return 0
	}

	bankID := ""
	for _, a := range accounts {
		if a.Vban == w.homeVban {
			bankID = a.ID
			break
		}
	}
	if bankID == "" {
		w.logger.Warn("home bank account not found", zap.String("vban", w.homeVban))
		return 0
	}

	page, err := w.feed.ListTransactions(ctx, bankID, fetchLimit, 0)
	if err != nil {
		w.logger.Error("fetch transactions failed", zap.Error(err))
		return 0
	}

	txs := page.Transactions
	if lastCheck != "" {
		if since, perr := time.Parse(time.RFC3339Nano, lastCheck); perr == nil {
			txs = newerThan(txs, since)
		}
	}

	relevant := match.Relevant(txs, w.homeVban)
	matches := match.Associate(relevant, w.orders.Active())

	count := 0
	for _, m := range matches {
		if w.orders.MarkPaid(m.OrderID, w.clock.Now()) {
			count++
		}
	}
	return count
}

// Отбор строго более новых транзакций. Неразборчивая метка времени — не повод
// терять платёж: такая транзакция проверяется ещё раз.
func newerThan(txs []model.Transaction, since time.Time) []model.Transaction {
	var res []model.Transaction
	for _, t := range txs {
		ts, err := time.Parse(time.RFC3339Nano, t.Timestamp)
		if err != nil {
			res = append(res, t)
			continue
		}
		if ts.After(since) {
			res = append(res, t)
		}
	}
	return res
}

// Шаг 7: контрольная точка не движется назад даже при рассинхронизации часов.
func (w *Watcher) recordCheckpoint(start time.Time) {
	w.settings.Update(func(s model.Settings) model.Settings {
		if prev, err := time.Parse(time.RFC3339Nano, s.AutoPayment.LastCheck); err == nil && prev.After(start) {
			return s
		}
		s.AutoPayment.LastCheck = start.UTC().Format(time.RFC3339Nano)
		return s
	})
}
