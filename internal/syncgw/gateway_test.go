package syncgw

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestProbe_ResultIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"paths":{"/kv_store":{}}}`))
	}))
	defer srv.Close()

	g := New(srv.URL, "key", "kv_store", zap.NewNop())

	for i := 0; i < 3; i++ {
		if !g.Probe(context.Background()) {
			t.Fatalf("probe %d: table must be found", i)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("probe hit the network %d times, want 1", got)
	}
	if g.Availability() != AvailabilityAvailable {
		t.Fatalf("availability = %v, want available", g.Availability())
	}
}

func TestProbe_TableMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paths":{"/other_table":{}}}`))
	}))
	defer srv.Close()

	g := New(srv.URL, "key", "kv_store", zap.NewNop())

	if g.Probe(context.Background()) {
		t.Fatalf("probe must fail when table is absent from the schema")
	}
	if g.Availability() != AvailabilityUnavailable {
		t.Fatalf("availability = %v, want unavailable", g.Availability())
	}
}

func TestGet_ReturnsStoredValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`kv_store`))
			return
		}
		if r.URL.Path != "/kv_store" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "eq.ws:team:orders" {
			t.Errorf("key filter = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header = %q", got)
		}
		w.Write([]byte(`[{"value":{"data":"{}","clientId":"abc","timestamp":1}}]`))
	}))
	defer srv.Close()

	g := New(srv.URL, "secret", "kv_store", zap.NewNop())
	if !g.Probe(context.Background()) {
		t.Fatalf("probe failed")
	}

	raw, ok := g.Get(context.Background(), "ws:team:orders")
	if !ok {
		t.Fatalf("expected a value")
	}
	var env struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if env.ClientID != "abc" {
		t.Fatalf("clientId = %q, want abc", env.ClientID)
	}
}

func TestGet_NoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`kv_store`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := New(srv.URL, "key", "kv_store", zap.NewNop())
	g.Probe(context.Background())

	if _, ok := g.Get(context.Background(), "ws:team:orders"); ok {
		t.Fatalf("missing record must report ok=false")
	}
}

func TestUpsert_SendsMergeHeader(t *testing.T) {
	var gotPrefer string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`kv_store`))
			return
		}
		gotPrefer = r.Header.Get("Prefer")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	g := New(srv.URL, "key", "kv_store", zap.NewNop())
	g.Probe(context.Background())

	if !g.Upsert(context.Background(), "ws:team:orders", map[string]string{"data": "{}"}) {
		t.Fatalf("upsert failed")
	}
	if gotPrefer != "resolution=merge-duplicates,return=minimal" {
		t.Fatalf("prefer header = %q", gotPrefer)
	}

	var record struct {
		Key       string `json:"key"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(gotBody, &record); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if record.Key != "ws:team:orders" {
		t.Fatalf("record key = %q", record.Key)
	}
	if record.UpdatedAt == "" {
		t.Fatalf("updated_at must be set")
	}
}

func TestFailure_MarksUnavailable(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`kv_store`))
			return
		}
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := New(srv.URL, "key", "kv_store", zap.NewNop())
	g.Probe(context.Background())

	fail.Store(true)
	g.Get(context.Background(), "ws:team:orders")

	if g.Availability() != AvailabilityUnavailable {
		t.Fatalf("failed request must mark the gateway unavailable")
	}
	// Дальнейшие вызовы гасятся без обращения к сети.
	if g.Upsert(context.Background(), "ws:team:orders", "x") {
		t.Fatalf("upsert after failure must be refused")
	}
}

func TestGateway_RefusesBeforeProbe(t *testing.T) {
	g := New("http://localhost:1", "key", "kv_store", zap.NewNop())

	if _, ok := g.Get(context.Background(), "k"); ok {
		t.Fatalf("get before a successful probe must fail")
	}
	if g.Upsert(context.Background(), "k", "v") {
		t.Fatalf("upsert before a successful probe must fail")
	}
}
