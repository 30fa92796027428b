// Package syncgw предоставляет шлюз к удалённому key-value хранилищу
// синхронизации. Шлюз никогда не возвращает ошибку наружу: любой сбой
// транспорта превращается в пустой или отрицательный результат.
package syncgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Availability описывает закэшированную доступность удалённой таблицы.
type Availability int32

const (
	AvailabilityUnknown Availability = iota
	AvailabilityAvailable
	AvailabilityUnavailable
)

// Gateway выполняет запросы к REST-интерфейсу таблицы синхронизации.
// Результат первой проверки доступности кэшируется на время жизни процесса,
// чтобы не опрашивать заведомо отсутствующую инфраструктуру каждый цикл.
type Gateway struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
	logger     *zap.Logger

	availability atomic.Int32
}

// New создаёт шлюз для указанного адреса хранилища и имени таблицы.
func New(baseURL, apiKey, table string, logger *zap.Logger) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   table,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Availability возвращает закэшированное состояние доступности.
func (g *Gateway) Availability() Availability {
	return Availability(g.availability.Load())
}

// Probe проверяет существование таблицы через корневой OpenAPI-документ
// хранилища. Результат кэшируется: повторные вызовы не ходят в сеть.
func (g *Gateway) Probe(ctx context.Context) bool {
	if a := g.Availability(); a != AvailabilityUnknown {
		return a == AvailabilityAvailable
	}

	found := g.probe(ctx)
	if found {
		g.availability.Store(int32(AvailabilityAvailable))
	} else {
		g.availability.Store(int32(AvailabilityUnavailable))
	}
	return found
}

func (g *Gateway) probe(ctx context.Context) bool {
	if g.baseURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/", nil)
	if err != nil {
		return false
	}
	g.setHeaders(req)
	req.Header.Set("Accept", "application/openapi+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug("sync storage probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	return bytes.Contains(body, []byte(g.table))
}

// Get возвращает значение по ключу. Отсутствие записи и любой сбой
// транспорта одинаково выражаются как (nil, false).
func (g *Gateway) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if g.Availability() != AvailabilityAvailable {
		return nil, false
	}

	u := fmt.Sprintf("%s/%s?key=eq.%s&select=value&limit=1", g.baseURL, g.table, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false
	}
	g.setHeaders(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.markUnavailable("get", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.markUnavailable("get", fmt.Errorf("unexpected status: %d", resp.StatusCode))
		return nil, false
	}

	var rows []struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}

	return rows[0].Value, true
}

// Upsert записывает значение по ключу. Возвращает признак успеха.
func (g *Gateway) Upsert(ctx context.Context, key string, value any) bool {
	if g.Availability() != AvailabilityAvailable {
		return false
	}

	record := struct {
		Key       string `json:"key"`
		Value     any    `json:"value"`
		UpdatedAt string `json:"updated_at"`
	}{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(record)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/"+g.table, bytes.NewReader(body))
	if err != nil {
		return false
	}
	g.setHeaders(req)
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.markUnavailable("upsert", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.markUnavailable("upsert", fmt.Errorf("unexpected status: %d", resp.StatusCode))
		return false
	}

	return true
}

func (g *Gateway) setHeaders(req *http.Request) {
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// Сбой рабочего запроса переводит шлюз в unavailable: таблица либо исчезла,
// либо недостижима, и дальнейшие обращения бессмысленны до новой сессии.
func (g *Gateway) markUnavailable(op string, err error) {
	g.availability.Store(int32(AvailabilityUnavailable))
	g.logger.Debug("sync storage unavailable", zap.String("op", op), zap.Error(err))
}
