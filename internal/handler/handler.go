// Package handler содержит HTTP-обработчики API консоли factorydesk.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/factorydesk/internal/clock"
	"github.com/mmeshcher/factorydesk/internal/match"
	"github.com/mmeshcher/factorydesk/internal/model"
	"github.com/mmeshcher/factorydesk/internal/store"
	"github.com/mmeshcher/factorydesk/internal/syncgw"
)

// Orders определяет контракт управления заказами, используемый обработчиками.
type Orders interface {
	Active() []model.Order
	Archived() []model.Order
	Add(order model.Order)
}

// Settings определяет контракт доступа к настройкам консоли.
type Settings interface {
	Get() model.Settings
	Update(fn func(model.Settings) model.Settings)
}

// Sync определяет контракт управления движком синхронизации.
type Sync interface {
	Wake()
	ClientID() string
}

// Remote отдаёт закэшированную доступность удалённого хранилища.
type Remote interface {
	Availability() syncgw.Availability
}

// Handler реализует HTTP-обработчики API консоли factorydesk.
type Handler struct {
	orders   Orders
	settings Settings
	sync     Sync
	remote   Remote
	stores   map[string]store.Container
	clock    clock.Clock
	logger   *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(orders Orders, settings Settings, sync Sync, remote Remote, containers []store.Container, clk clock.Clock, logger *zap.Logger) *Handler {
	byName := make(map[string]store.Container, len(containers))
	for _, c := range containers {
		byName[c.Name()] = c
	}

	return &Handler{
		orders:   orders,
		settings: settings,
		sync:     sync,
		remote:   remote,
		stores:   byName,
		clock:    clk,
		logger:   logger,
	}
}

// Health отвечает на проверку живости.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetOrders возвращает активные заказы.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.orders.Active())
}

// GetArchive возвращает архивные заказы.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.orders.Archived())
}

type createOrderRequest struct {
	ReferenceCode string  `json:"referenceCode"`
	Customer      string  `json:"customer"`
	Item          string  `json:"item"`
	Price         float64 `json:"price"`
}

// CreateOrder создаёт новый открытый заказ с кодом для сверки платежей.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	code := match.Normalize(req.ReferenceCode)
	if code == "" {
		http.Error(w, "invalid reference code", http.StatusBadRequest)
		return
	}

	for _, o := range h.orders.Active() {
		if match.Normalize(o.ReferenceCode) == code {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
	}

	order := model.Order{
		ID:            uuid.NewString(),
		ReferenceCode: code,
		Customer:      req.Customer,
		Item:          req.Item,
		Price:         req.Price,
		Status:        model.OrderStatusOpen,
		CreatedAt:     h.clock.Now(),
	}
	h.orders.Add(order)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.writeBody(w, order)
}

// GetSettings возвращает настройки консоли.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.settings.Get())
}

type patchSettingsRequest struct {
	TestMode            *bool          `json:"testMode,omitempty"`
	SyncEnabled         *bool          `json:"syncEnabled,omitempty"`
	AutoPaymentEnabled  *bool          `json:"autoPaymentEnabled,omitempty"`
	AutoPaymentInterval *time.Duration `json:"autoPaymentInterval,omitempty"`
}

// PatchSettings выборочно обновляет настройки консоли.
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var req patchSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.settings.Update(func(s model.Settings) model.Settings {
		if req.TestMode != nil {
			s.TestMode = *req.TestMode
		}
		if req.SyncEnabled != nil {
			s.SyncEnabled = *req.SyncEnabled
		}
		if req.AutoPaymentEnabled != nil {
			s.AutoPayment.Enabled = *req.AutoPaymentEnabled
		}
		if req.AutoPaymentInterval != nil {
			s.AutoPayment.Interval = *req.AutoPaymentInterval
		}
		return s
	})

	h.writeJSON(w, h.settings.Get())
}

// TriggerSyncPull запускает внеочередной цикл вытягивания.
func (h *Handler) TriggerSyncPull(w http.ResponseWriter, r *http.Request) {
	h.sync.Wake()
	w.WriteHeader(http.StatusAccepted)
}

type syncStatusResponse struct {
	Enabled      bool   `json:"enabled"`
	ClientID     string `json:"clientId"`
	Availability string `json:"availability"`
}

// GetSyncStatus возвращает состояние движка синхронизации.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	avail := "unknown"
	switch h.remote.Availability() {
	case syncgw.AvailabilityAvailable:
		avail = "available"
	case syncgw.AvailabilityUnavailable:
		avail = "unavailable"
	}

	h.writeJSON(w, syncStatusResponse{
		Enabled:      h.settings.Get().SyncEnabled,
		ClientID:     h.sync.ClientID(),
		Availability: avail,
	})
}

// GetState возвращает снимок зарегистрированного контейнера по имени.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request, name string) {
	c, ok := h.stores[name]
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	snap, err := c.Snapshot()
	if err != nil {
		h.logger.Error("state snapshot error", zap.String("store", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(snap)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	h.writeBody(w, v)
}

func (h *Handler) writeBody(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
