package match

import (
	"testing"

	"github.com/mmeshcher/factorydesk/internal/model"
)

const homeVban = "409856"

func TestRelevant_PurposePatterns(t *testing.T) {
	tests := []struct {
		name     string
		purpose  string
		relevant bool
	}{
		{
			name:     "order code with hyphen",
			purpose:  "SD-1234",
			relevant: true,
		},
		{
			name:     "lowercase with space",
			purpose:  "sd 12345",
			relevant: true,
		},
		{
			name:     "contract code without separator",
			purpose:  "CTR9999",
			relevant: true,
		},
		{
			name:     "code embedded in text",
			purpose:  "Zahlung Auftrag SD - 4711 danke",
			relevant: true,
		},
		{
			name:     "plain text",
			purpose:  "Rent payment",
			relevant: false,
		},
		{
			name:     "too few digits",
			purpose:  "SD-12",
			relevant: false,
		},
		{
			name:     "empty purpose",
			purpose:  "",
			relevant: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := []model.Transaction{
				{ReceiverVban: homeVban, Purpose: tt.purpose},
			}
			got := Relevant(txs, homeVban)
			if (len(got) == 1) != tt.relevant {
				t.Fatalf("Relevant(%q) = %d matches, want relevant=%v", tt.purpose, len(got), tt.relevant)
			}
		})
	}
}

func TestRelevant_WrongReceiverExcluded(t *testing.T) {
	txs := []model.Transaction{
		{ReceiverVban: "111111", Purpose: "SD-1234"},
	}
	if got := Relevant(txs, homeVban); len(got) != 0 {
		t.Fatalf("expected no matches for foreign receiver, got %d", len(got))
	}
}

func TestRelevant_FallsBackToReference(t *testing.T) {
	txs := []model.Transaction{
		{ReceiverVban: homeVban, Reference: "CTR-5555"},
	}
	if got := Relevant(txs, homeVban); len(got) != 1 {
		t.Fatalf("expected reference field to be considered, got %d matches", len(got))
	}
}

func TestAssociate_ExactCodeEquality(t *testing.T) {
	orders := []model.Order{
		{ID: "a", ReferenceCode: "SD-1234", Status: model.OrderStatusOpen},
		{ID: "b", ReferenceCode: "SD-12345", Status: model.OrderStatusOpen},
	}
	txs := []model.Transaction{
		{ReceiverVban: homeVban, Purpose: "Auftrag sd 12345"},
	}

	got := Associate(txs, orders)
	if len(got) != 1 {
		t.Fatalf("expected exactly one association, got %d", len(got))
	}
	if got[0].OrderID != "b" {
		t.Fatalf("matched order %q, want %q (no prefix matching)", got[0].OrderID, "b")
	}
}

func TestAssociate_SkipsNonOpenOrders(t *testing.T) {
	orders := []model.Order{
		{ID: "a", ReferenceCode: "SD-1234", Status: model.OrderStatusPaid},
	}
	txs := []model.Transaction{
		{ReceiverVban: homeVban, Purpose: "SD-1234"},
	}

	if got := Associate(txs, orders); len(got) != 0 {
		t.Fatalf("paid order must not be matched again, got %d associations", len(got))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sd 1234", "SD-1234"},
		{"SD- 9876", "SD-9876"},
		{"CTR4711", "CTR-4711"},
		{"SD-12", ""},
		{"nonsense", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
