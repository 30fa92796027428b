// Package reconcile реализует жизненный цикл заказов и цикл автоматической
// сверки платежей.
package reconcile

import (
	"time"

	"github.com/mmeshcher/factorydesk/internal/model"
	"github.com/mmeshcher/factorydesk/internal/store"
)

// Пороги переходов жизненного цикла. Тестовый режим сокращает ожидание,
// чтобы цикл можно было наблюдать вживую.
const (
	completionThreshold     = 30 * time.Minute
	completionThresholdTest = 30 * time.Second
	archiveThreshold        = 24 * time.Hour
	archiveThresholdTest    = time.Minute
)

// CompletionThreshold возвращает порог перехода «оплачен → завершён».
func CompletionThreshold(testMode bool) time.Duration {
	if testMode {
		return completionThresholdTest
	}
	return completionThreshold
}

// ArchiveThreshold возвращает порог перехода «завершён → архив».
func ArchiveThreshold(testMode bool) time.Duration {
	if testMode {
		return archiveThresholdTest
	}
	return archiveThreshold
}

// Orders управляет жизненным циклом заказов поверх контейнеров активных
// и архивных заказов. Статус движется только вперёд; каждая метка времени
// выставляется один раз, в момент применения перехода.
// Переходы копируют срез заказов перед изменением: срезы, выданные Active
// и Archived ранее, остаются неизменными.
type Orders struct {
	active  *store.Store[model.OrdersState]
	archive *store.Store[model.ArchiveState]
}

// NewOrders создаёт управление заказами поверх указанных контейнеров.
func NewOrders(active *store.Store[model.OrdersState], archive *store.Store[model.ArchiveState]) *Orders {
	return &Orders{active: active, archive: archive}
}

// Active возвращает активные заказы.
func (o *Orders) Active() []model.Order {
	return o.active.Get().Orders
}

// Archived возвращает архивные заказы.
func (o *Orders) Archived() []model.Order {
	return o.archive.Get().Orders
}

// Add добавляет новый заказ в активный контейнер.
func (o *Orders) Add(order model.Order) {
	o.active.Update(func(s model.OrdersState) model.OrdersState {
		s.Orders = append(s.Orders, order)
		return s
	})
}

// MarkPaid переводит открытый заказ в статус «оплачен». Возвращает false,
// если заказ не найден или уже прошёл этот статус.
func (o *Orders) MarkPaid(id string, now time.Time) bool {
	changed := false
	o.active.Update(func(s model.OrdersState) model.OrdersState {
		for i, ord := range s.Orders {
			if ord.ID == id && ord.Status == model.OrderStatusOpen {
				paidAt := now
				orders := append([]model.Order(nil), s.Orders...)
				orders[i].Status = model.OrderStatusPaid
				orders[i].PaidAt = &paidAt
				s.Orders = orders
				changed = true
				break
			}
		}
		return s
	})
	return changed
}

// CompleteExpired переводит оплаченные заказы, выдержавшие порог, в статус
// «завершён». Возвращает число переходов.
func (o *Orders) CompleteExpired(now time.Time, testMode bool) int {
	limit := CompletionThreshold(testMode)
	count := 0
	o.active.Update(func(s model.OrdersState) model.OrdersState {
		orders := append([]model.Order(nil), s.Orders...)
		for i, ord := range orders {
			if ord.Status != model.OrderStatusPaid || ord.PaidAt == nil {
				continue
			}
			if now.Sub(*ord.PaidAt) >= limit {
				finishedAt := now
				orders[i].Status = model.OrderStatusCompleted
				orders[i].FinishedAt = &finishedAt
				count++
			}
		}
		if count > 0 {
			s.Orders = orders
		}
		return s
	})
	return count
}

// ArchiveExpired переносит завершённые заказы, выдержавшие порог, в архивный
// контейнер. Архив — терминальное состояние. Возвращает число переносов.
func (o *Orders) ArchiveExpired(now time.Time, testMode bool) int {
	limit := ArchiveThreshold(testMode)
	var moved []model.Order

	o.active.Update(func(s model.OrdersState) model.OrdersState {
		remaining := make([]model.Order, 0, len(s.Orders))
		for _, ord := range s.Orders {
			if ord.Status == model.OrderStatusCompleted && ord.FinishedAt != nil && now.Sub(*ord.FinishedAt) >= limit {
				archivedAt := now
				ord.Status = model.OrderStatusArchived
				ord.ArchivedAt = &archivedAt
				moved = append(moved, ord)
				continue
			}
			remaining = append(remaining, ord)
		}
		s.Orders = remaining
		return s
	})

	if len(moved) > 0 {
		o.archive.Update(func(s model.ArchiveState) model.ArchiveState {
			s.Orders = append(s.Orders, moved...)
			return s
		})
	}
	return len(moved)
}
