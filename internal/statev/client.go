// Package statev предоставляет клиент для внешней платёжной системы StateV.
package statev

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/factorydesk/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с API StateV.
type Client struct {
	baseURL    string
	apiKey     string
	factoryID  string
	httpClient *http.Client
}

// TransactionPage описывает страницу транзакций одного банковского счёта.
type TransactionPage struct {
	Total        int                 `json:"totalTransactions"`
	Transactions []model.Transaction `json:"transactions"`
}

// NewClient создаёт HTTP-клиент для обращения к API StateV по указанному адресу.
func NewClient(baseURL, apiKey, factoryID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		factoryID: factoryID,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// ListAccounts возвращает банковские счета мастерской.
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := c.get(ctx, fmt.Sprintf("/factory/bankaccounts/%s", c.factoryID), &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListTransactions возвращает последние транзакции указанного счёта.
func (c *Client) ListTransactions(ctx context.Context, bankID string, limit, offset int) (*TransactionPage, error) {
	var page TransactionPage
	if err := c.get(ctx, fmt.Sprintf("/factory/transactions/%s/%d/%d", bankID, limit, offset), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("statev client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
