// Package match реализует сопоставление банковских транзакций с заказами
// по коду в назначении платежа.
package match

import (
	"regexp"
	"strings"

	"github.com/mmeshcher/factorydesk/internal/model"
)

// Внешние платёжные интерфейсы вольно обращаются с пробелами и дефисами,
// поэтому шаблон допускает "SD-1234", "sd 12345" и "CTR9999".
var referencePattern = regexp.MustCompile(`(?i)(SD|CTR)\s?-?\s?(\d{4,})`)

// MatchedPayment связывает входящую транзакцию с конкретным заказом.
type MatchedPayment struct {
	OrderID     string
	Transaction model.Transaction
}

// Relevant отбирает входящие транзакции с кодом заказа или контракта
// в назначении платежа. Учитываются только поступления на счёт homeVban.
func Relevant(txs []model.Transaction, homeVban string) []model.Transaction {
	var res []model.Transaction
	for _, t := range txs {
		if t.ReceiverVban != homeVban {
			continue
		}
		purpose := t.PurposeText()
		if purpose == "" {
			continue
		}
		if referencePattern.MatchString(purpose) {
			res = append(res, t)
		}
	}
	return res
}

// Associate сопоставляет отобранные транзакции с открытыми заказами.
// Код из назначения платежа сравнивается с кодом заказа строго после
// нормализации: частичное совпадение номера (SD-1234 против SD-12345)
// платежом не считается.
func Associate(txs []model.Transaction, openOrders []model.Order) []MatchedPayment {
	byCode := make(map[string]string, len(openOrders))
	for _, o := range openOrders {
		if o.Status != model.OrderStatusOpen {
			continue
		}
		if code := Normalize(o.ReferenceCode); code != "" {
			byCode[code] = o.ID
		}
	}

	var res []MatchedPayment
	for _, t := range txs {
		m := referencePattern.FindStringSubmatch(t.PurposeText())
		if m == nil {
			continue
		}
		code := strings.ToUpper(m[1]) + "-" + m[2]
		if id, ok := byCode[code]; ok {
			res = append(res, MatchedPayment{OrderID: id, Transaction: t})
		}
	}
	return res
}

// Normalize приводит код заказа к каноническому виду PREFIX-ЦИФРЫ.
// Пустая строка означает, что код не распознан.
func Normalize(code string) string {
	m := referencePattern.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1]) + "-" + m[2]
}
