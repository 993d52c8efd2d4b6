package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nigoertz/demo-cosmos-api/internal/config"
	tracesvc "github.com/nigoertz/demo-cosmos-api/internal/services/traces"
	pebblestore "github.com/nigoertz/demo-cosmos-api/internal/storage/pebble"
	"github.com/nigoertz/demo-cosmos-api/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.MonitoringOrigin = "https://monitoring.example.com"

	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mk := func(name string, limits config.Limits, orderField string) *store.Store {
		st, err := store.New(db, zerolog.Nop(), store.Options{
			Name:              name,
			Capacity:          limits.Capacity,
			EvictionChunkSize: limits.EvictionChunkSize,
			OrderField:        orderField,
		})
		if err != nil {
			t.Fatalf("store %s: %v", name, err)
		}
		return st
	}
	stores := Stores{
		Transactions: mk("transactions", cfg.Collections.Transactions, "start"),
		Steps:        mk("steps", cfg.Collections.Steps, "createdAt"),
		Snapshots:    mk("snapshots", cfg.Collections.Snapshots, "createdAt"),
		Logs:         mk("logs", cfg.Collections.Logs, ""),
	}
	traces := tracesvc.New(stores.Transactions, stores.Steps, stores.Snapshots)
	return New(cfg, stores, traces, zerolog.Nop())
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func postTransaction(t *testing.T, s *Server, id string, start int64) {
	t.Helper()
	body := fmt.Sprintf(`{"id":%q,"start":%d,"end":%d,"sender":"ingest","receiver":["sink"]}`, id, start, start+10)
	if w := do(t, s, http.MethodPost, "/transactions", body); w.Code != http.StatusOK {
		t.Fatalf("post transaction: %d %s", w.Code, w.Body.String())
	}
}

func postStep(t *testing.T, s *Server, id, tx string, createdAt int64) {
	t.Helper()
	body := fmt.Sprintf(`{"id":%q,"topic":"orders","node":{"type":"function","name":"enrich"},"transaction":%q,"createdAt":%d,"snapshotId":"snap-1"}`, id, tx, createdAt)
	if w := do(t, s, http.MethodPost, "/steps", body); w.Code != http.StatusOK {
		t.Fatalf("post step: %d %s", w.Code, w.Body.String())
	}
}

func postSnapshot(t *testing.T, s *Server, id, tx string, createdAt int64) {
	t.Helper()
	body := fmt.Sprintf(`{"id":%q,"transaction":%q,"node":{"type":"debug","name":"tap"},"createdAt":%d,"msg":{"_msgid":"m1","payload":{"n":1},"topic":"orders","_firstnode":"ingest"}}`, id, tx, createdAt)
	if w := do(t, s, http.MethodPost, "/snapshots", body); w.Code != http.StatusOK {
		t.Fatalf("post snapshot: %d %s", w.Code, w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if got := decode[string](t, w); got != "Connected to API" {
		t.Fatalf("body: %q", got)
	}
}

func TestCreateTransactionEchoesRecord(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/transactions",
		`{"id":"tx-1","start":100,"end":200,"sender":"ingest","receiver":["sink"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	resp := decode[map[string]any](t, w)
	if resp["message"] != "Transaction saved" {
		t.Fatalf("message: %v", resp["message"])
	}
	tx, _ := resp["transaction"].(map[string]any)
	if tx["id"] != "tx-1" || tx["sender"] != "ingest" {
		t.Fatalf("echoed record: %v", tx)
	}
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	for _, tc := range []struct {
		path string
		body string
	}{
		{"/transactions", `{"start":100}`},
		{"/transactions", `not json`},
		{"/steps", `{"id":"s1"}`},
		{"/snapshots", `{"id":"n1","transaction":"tx-1","node":{"type":"t","name":"n"},"createdAt":5,"msg":{"_msgid":"m","topic":"o"}}`},
		{"/logs", `{}`},
	} {
		w := do(t, s, http.MethodPost, tc.path, tc.body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("POST %s %s: got %d want 422", tc.path, tc.body, w.Code)
		}
	}
}

func TestGetTransactionWithSteps(t *testing.T) {
	s := newTestServer(t)
	postTransaction(t, s, "tx-1", 100)
	postStep(t, s, "s1", "tx-1", 101)
	postStep(t, s, "s2", "tx-1", 102)
	postStep(t, s, "s3", "tx-other", 103)

	w := do(t, s, http.MethodGet, "/transactions/tx-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	tx := decode[map[string]any](t, w)
	steps, _ := tx["steps"].([]any)
	if len(steps) != 2 {
		t.Fatalf("steps: %v", tx["steps"])
	}
}

func TestGetTransactionZeroStepsIsNotAnError(t *testing.T) {
	s := newTestServer(t)
	postTransaction(t, s, "tx-1", 100)

	w := do(t, s, http.MethodGet, "/transactions/tx-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	tx := decode[map[string]any](t, w)
	steps, ok := tx["steps"].([]any)
	if !ok || len(steps) != 0 {
		t.Fatalf("want empty steps list, got %v", tx["steps"])
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/transactions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
	resp := decode[map[string]string](t, w)
	if resp["detail"] == "" {
		t.Fatalf("expected a human-readable reason, got %s", w.Body.String())
	}
}

func TestListTransactionsPaging(t *testing.T) {
	s := newTestServer(t)
	postTransaction(t, s, "tx-1", 100)
	postTransaction(t, s, "tx-2", 200)
	postTransaction(t, s, "tx-3", 300)

	w := do(t, s, http.MethodGet, "/transactions?count=2&offset=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	txs := decode[[]map[string]any](t, w)
	if len(txs) != 2 || txs[0]["id"] != "tx-2" {
		t.Fatalf("page: %v", txs)
	}

	if w := do(t, s, http.MethodGet, "/transactions?count=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("non-integer count: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/transactions?offset=-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("negative offset: %d", w.Code)
	}
}

func TestTransactionEvictionOverHTTP(t *testing.T) {
	s := newTestServer(t)
	// Reference config: transactions capacity 3, chunk 1.
	for i := 1; i <= 4; i++ {
		postTransaction(t, s, fmt.Sprintf("t%d", i), int64(i))
	}

	if w := do(t, s, http.MethodGet, "/transactions/t1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("t1 should be evicted, got %d", w.Code)
	}
	for _, id := range []string{"t2", "t3", "t4"} {
		if w := do(t, s, http.MethodGet, "/transactions/"+id, ""); w.Code != http.StatusOK {
			t.Fatalf("%s should survive, got %d", id, w.Code)
		}
	}
}

func TestOrphanedStepStillServed(t *testing.T) {
	s := newTestServer(t)
	postTransaction(t, s, "tx-old", 1)
	postStep(t, s, "s1", "tx-old", 2)
	for i := 2; i <= 5; i++ {
		postTransaction(t, s, fmt.Sprintf("tx-%d", i), int64(i))
	}

	if w := do(t, s, http.MethodGet, "/transactions/tx-old", ""); w.Code != http.StatusNotFound {
		t.Fatalf("parent should be gone, got %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/steps/s1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("orphaned step: %d", w.Code)
	}
	step := decode[map[string]any](t, w)
	if step["transaction"] != "tx-old" {
		t.Fatalf("step changed: %v", step)
	}
}

func TestTransactionSnapshots(t *testing.T) {
	s := newTestServer(t)
	postSnapshot(t, s, "n1", "tx-1", 100)
	postSnapshot(t, s, "n2", "tx-1", 101)

	w := do(t, s, http.MethodGet, "/transactions/tx-1/snapshots", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	snaps := decode[[]map[string]any](t, w)
	if len(snaps) != 2 {
		t.Fatalf("snapshots: %v", snaps)
	}

	// Zero matching snapshots is 404 on this endpoint.
	if w := do(t, s, http.MethodGet, "/transactions/tx-2/snapshots", ""); w.Code != http.StatusNotFound {
		t.Fatalf("empty snapshots: %d", w.Code)
	}
}

func TestSnapshotLookups(t *testing.T) {
	s := newTestServer(t)
	postSnapshot(t, s, "n1", "tx-1", 100)

	w := do(t, s, http.MethodGet, "/snapshots", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if snaps := decode[[]map[string]any](t, w); len(snaps) != 1 {
		t.Fatalf("list: %v", snaps)
	}

	w = do(t, s, http.MethodGet, "/snapshots/n1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	snap := decode[map[string]any](t, w)
	msg, _ := snap["msg"].(map[string]any)
	if msg["_msgid"] != "m1" || msg["_firstnode"] != "ingest" {
		t.Fatalf("wire fields lost: %v", msg)
	}

	if w := do(t, s, http.MethodGet, "/snapshots/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/logs/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing log: %d", w.Code)
	}
}

func TestDeleteEntries(t *testing.T) {
	s := newTestServer(t)
	for i := 1; i <= 5; i++ {
		body := fmt.Sprintf(`{"id":"log%d"}`, i)
		if w := do(t, s, http.MethodPost, "/logs", body); w.Code != http.StatusOK {
			t.Fatalf("post log: %d", w.Code)
		}
	}

	w := do(t, s, http.MethodDelete, "/delete?number_of_entries=2&collection_name=logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	resp := decode[map[string]string](t, w)
	if resp["message"] != "2 entries deleted from logs collection" {
		t.Fatalf("message: %q", resp["message"])
	}

	n, err := s.stores.Logs.Count(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("occupancy: %d, %v", n, err)
	}
}

func TestDeleteMoreThanResident(t *testing.T) {
	s := newTestServer(t)
	for i := 1; i <= 3; i++ {
		do(t, s, http.MethodPost, "/logs", fmt.Sprintf(`{"id":"log%d"}`, i))
	}
	w := do(t, s, http.MethodDelete, "/delete?number_of_entries=10&collection_name=logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	resp := decode[map[string]string](t, w)
	if resp["message"] != "3 entries deleted from logs collection" {
		t.Fatalf("message: %q", resp["message"])
	}
}

func TestDeleteUnknownCollection(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/logs", `{"id":"log1"}`)

	w := do(t, s, http.MethodDelete, "/delete?number_of_entries=2&collection_name=widgets", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
	if resp := decode[map[string]string](t, w); resp["detail"] != "Invalid collection name" {
		t.Fatalf("detail: %q", resp["detail"])
	}
	// No store was mutated.
	if n, _ := s.stores.Logs.Count(context.Background()); n != 1 {
		t.Fatalf("logs mutated: %d", n)
	}
}

func TestDeleteMissingCount(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodDelete, "/delete?collection_name=logs", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestCORSHeadersAndPreflight(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/status", "")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://monitoring.example.com" {
		t.Fatalf("origin header: %q", got)
	}

	w = do(t, s, http.MethodOptions, "/transactions", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", w.Code)
	}
}
