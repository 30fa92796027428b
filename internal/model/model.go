// Package model содержит доменные сущности консоли factorydesk.
package model

import "time"

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusArchived  OrderStatus = "ARCHIVED"
)

// Order описывает заказ мастерской с кодом для сверки платежей.
// Метки времени выставляются ровно один раз при переходе в соответствующий статус.
type Order struct {
	ID            string      `json:"id"`
	ReferenceCode string      `json:"referenceCode"`
	Customer      string      `json:"customer,omitempty"`
	Item          string      `json:"item,omitempty"`
	Price         float64     `json:"price,omitempty"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	PaidAt        *time.Time  `json:"paidAt,omitempty"`
	FinishedAt    *time.Time  `json:"finishedAt,omitempty"`
	ArchivedAt    *time.Time  `json:"archivedAt,omitempty"`
}

// Account описывает банковский счёт мастерской во внешней платёжной системе.
type Account struct {
	ID      string  `json:"id"`
	Vban    string  `json:"vban"`
	Balance float64 `json:"balance"`
	Note    string  `json:"note"`
}

// Transaction описывает банковскую транзакцию из внешней системы.
// Timestamp хранится строкой как есть: формат времени внешней системы ненадёжен,
// разбор выполняется на стороне сверки.
type Transaction struct {
	SenderVban   string  `json:"senderVban"`
	ReceiverVban string  `json:"receiverVban"`
	Reference    string  `json:"reference"`
	Purpose      string  `json:"purpose,omitempty"`
	Amount       float64 `json:"amount"`
	Timestamp    string  `json:"timestamp"`
}

// PurposeText возвращает назначение платежа: поле purpose, а при его отсутствии reference.
func (t Transaction) PurposeText() string {
	if t.Purpose != "" {
		return t.Purpose
	}
	return t.Reference
}

// AutoPaymentSettings содержит настройки автоматической сверки платежей.
type AutoPaymentSettings struct {
	Enabled   bool          `json:"enabled"`
	Interval  time.Duration `json:"interval"`
	LastCheck string        `json:"lastCheck,omitempty"`
}

// Settings содержит глобальные настройки консоли. Хранятся в собственном
// контейнере состояния и синхронизируются наравне с остальными.
type Settings struct {
	TestMode    bool                `json:"testMode"`
	SyncEnabled bool                `json:"syncEnabled"`
	AutoPayment AutoPaymentSettings `json:"autoPayment"`
}

// OrdersState описывает состояние контейнера активных заказов.
type OrdersState struct {
	Orders []Order `json:"orders"`
}

// ArchiveState описывает состояние контейнера архивных заказов.
type ArchiveState struct {
	Orders []Order `json:"orders"`
}

// Invoice описывает выставленный счёт.
type Invoice struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId,omitempty"`
	Amount    float64   `json:"amount"`
	Paid      bool      `json:"paid"`
	CreatedAt time.Time `json:"createdAt"`
}

// InvoiceState описывает состояние контейнера счетов.
type InvoiceState struct {
	Invoices []Invoice `json:"invoices"`
}

// InventoryItem описывает позицию складского остатка.
type InventoryItem struct {
	Name       string  `json:"name"`
	Amount     int     `json:"amount"`
	UnitWeight float64 `json:"unitWeight,omitempty"`
}

// InventoryState описывает состояние контейнера склада.
type InventoryState struct {
	Items []InventoryItem `json:"items"`
}

// BankState описывает локально закэшированные банковские данные.
type BankState struct {
	Accounts  []Account `json:"accounts"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Employee описывает сотрудника мастерской.
type Employee struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// EmployeeState описывает состояние контейнера сотрудников.
type EmployeeState struct {
	Employees []Employee `json:"employees"`
}

// Contract описывает долгосрочный контракт с партнёром (коды CTR-).
type Contract struct {
	ID            string    `json:"id"`
	ReferenceCode string    `json:"referenceCode"`
	Partner       string    `json:"partner,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ContractState описывает состояние контейнера контрактов.
type ContractState struct {
	Contracts []Contract `json:"contracts"`
}

// TransportOrder описывает транспортный заказ (Fahrbefehl).
type TransportOrder struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Cargo       string    `json:"cargo,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TransportState описывает состояние контейнера транспортных заказов.
type TransportState struct {
	Orders []TransportOrder `json:"orders"`
}

// MaterialUsage описывает расход материала в расчёте цены.
type MaterialUsage struct {
	Material string  `json:"material"`
	Quantity float64 `json:"quantity"`
	UnitCost float64 `json:"unitCost"`
}

// PricedProduct описывает сохранённый результат расчёта: готовое изделие
// с себестоимостью и отпускной ценой.
type PricedProduct struct {
	Name      string  `json:"name"`
	CostPrice float64 `json:"costPrice"`
	SalePrice float64 `json:"salePrice"`
}

// CalculatorState описывает состояние калькулятора цен.
type CalculatorState struct {
	Ingredients []MaterialUsage `json:"ingredients"`
	Margin      float64         `json:"margin"`
	Products    []PricedProduct `json:"products"`
}
