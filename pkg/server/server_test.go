package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/sheet"
	"github.com/vango-dev/reactive/pkg/store"
	"github.com/vango-dev/reactive/pkg/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv *Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T, st store.Store, config *Config, opts ...reactive.RuntimeOption) *testEnv {
	t.Helper()
	rt := reactive.NewRuntime(append([]reactive.RuntimeOption{reactive.WithLogger(discardLogger())}, opts...)...)
	sh := sheet.New(rt.NewScope())
	if config == nil {
		config = &Config{}
	}
	config.CallTimeout = 2 * time.Second

	srv := New(config, rt, sh, st)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testEnv{srv: srv, ts: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) put(t *testing.T, name, raw string) CellJSON {
	t.Helper()
	resp := e.do(t, http.MethodPut, "/cells/"+name, putRequest{Raw: raw})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT %s: expected 200, got %d", name, resp.StatusCode)
	}
	return decode[CellJSON](t, resp)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestPutAndGet(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	env.put(t, "A", "1")
	c := env.put(t, "B", "=A*2")
	if c.Value.Kind != "number" || c.Value.Number == nil || *c.Value.Number != 2 {
		t.Fatalf("expected B=2, got %+v", c.Value)
	}

	env.put(t, "A", "20")
	resp := env.do(t, http.MethodGet, "/cells/B", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decode[CellJSON](t, resp); got.Value.Display != "40" || got.Raw != "=A*2" {
		t.Errorf("expected B=40 from =A*2, got %+v", got)
	}

	resp = env.do(t, http.MethodGet, "/cells", nil)
	cells := decode[[]CellJSON](t, resp)
	if len(cells) != 2 || cells[0].Name != "A" || cells[1].Name != "B" {
		t.Errorf("expected sorted [A B], got %+v", cells)
	}
}

func TestRequestErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing cell", http.MethodGet, "/cells/Nope", nil, http.StatusNotFound},
		{"invalid name", http.MethodPut, "/cells/SUM", putRequest{Raw: "1"}, http.StatusBadRequest},
		{"bad body", http.MethodPut, "/cells/A", "not an object", http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/cells/Nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if e := decode[errorResponse](t, resp); e.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestPutReportsCycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	env.put(t, "A", "=B+1")
	c := env.put(t, "B", "=A+1")
	if c.Code != reactive.CodeCyclicDependency {
		t.Errorf("expected code %s, got %q (%s)", reactive.CodeCyclicDependency, c.Code, c.Error)
	}
	if c.Value.Code != sheet.CodeCycle {
		t.Errorf("expected #CYCLE, got %+v", c.Value)
	}

	// Breaking the cycle recovers both entries.
	env.put(t, "B", "5")
	resp := env.do(t, http.MethodGet, "/cells/A", nil)
	if got := decode[CellJSON](t, resp); got.Value.Display != "6" {
		t.Errorf("expected A=6, got %+v", got.Value)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.put(t, "A", "1")
	env.put(t, "B", "=A+1")

	resp := env.do(t, http.MethodDelete, "/cells/A", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/cells/A", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/cells/B", nil)
	if got := decode[CellJSON](t, resp); got.Value.Code != sheet.CodeRef {
		t.Errorf("expected #REF for dangling reference, got %+v", got.Value)
	}
}

func TestPersistence(t *testing.T) {
	st := store.NewMemoryStore()
	env := newTestEnv(t, st, nil)
	env.put(t, "A", "3")
	env.put(t, "B", "=A*A")

	data, err := st.Load(context.Background(), "sheet.json")
	if err != nil || data == nil {
		t.Fatalf("expected saved snapshot, got %v %v", data, err)
	}
	snap, err := store.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if snap.Entries["A"] != "3" || snap.Entries["B"] != "=A*A" {
		t.Errorf("unexpected snapshot %v", snap.Entries)
	}

	// A second server over the same store starts where the first left off.
	env2 := newTestEnv(t, st, nil)
	resp := env2.do(t, http.MethodGet, "/cells/B", nil)
	if got := decode[CellJSON](t, resp); got.Value.Display != "9" {
		t.Errorf("expected restored B=9, got %+v", got.Value)
	}
}

func TestMutateAbandonedByCallerChangesNothing(t *testing.T) {
	st := store.NewMemoryStore()
	env := newTestEnv(t, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := env.srv.mutate(ctx, func() error {
		return env.srv.sheet.Set("A", "1")
	})
	if !rejected(err) {
		t.Fatalf("expected a rejected mutation, got %v", err)
	}

	// A later request is served after the abandoned item, so the runtime
	// has already skipped it.
	if resp := env.do(t, http.MethodGet, "/cells/A", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected A to be absent, got %d", resp.StatusCode)
	}
	if data, _ := st.Load(context.Background(), "sheet.json"); data != nil {
		t.Errorf("expected no snapshot, got %s", data)
	}
}

func TestStartRejectsCorruptSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	st.Save(context.Background(), "sheet.json", []byte("{not json"))

	rt := reactive.NewRuntime(reactive.WithLogger(discardLogger()))
	srv := New(nil, rt, sheet.New(rt.NewScope()), st)
	if err := srv.Start(context.Background()); err == nil {
		srv.Close()
		t.Fatal("expected Start to fail on a corrupt snapshot")
	}
	if srv.running() {
		t.Error("expected server to be stopped after failed start")
	}
}

func TestNotStarted(t *testing.T) {
	rt := reactive.NewRuntime(reactive.WithLogger(discardLogger()))
	srv := New(nil, rt, sheet.New(rt.NewScope()), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cells", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 health, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, nil, &Config{Gatherer: reg},
		reactive.WithObserver(telemetry.NewMetrics(telemetry.WithRegistry(reg))))
	env.put(t, "A", "1")
	env.put(t, "A", "2")

	resp := env.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/metrics", nil)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "reactive_flushes_total") {
		t.Errorf("expected engine metrics, got:\n%s", body)
	}
}

type wsMessage struct {
	Type    string    `json:"type"`
	Name    string    `json:"name"`
	Value   ValueJSON `json:"value"`
	Removed bool      `json:"removed"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
}

func dial(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsMessage) bool) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.put(t, "A", "1")

	conn := dial(t, env)
	first := readUntil(t, conn, func(m wsMessage) bool { return m.Type == msgUpdate })
	if first.Name != "A" || first.Value.Display != "1" {
		t.Fatalf("expected initial A=1, got %+v", first)
	}

	if err := conn.WriteJSON(Command{Op: opSet, Name: "B", Raw: "=A+1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, func(m wsMessage) bool { return m.Name == "B" && m.Value.Display == "2" })

	// A change made over HTTP reaches the socket, dependents included.
	env.put(t, "A", "10")
	readUntil(t, conn, func(m wsMessage) bool { return m.Name == "B" && m.Value.Display == "11" })

	if err := conn.WriteJSON(Command{Op: opRemove, Name: "B"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, func(m wsMessage) bool { return m.Name == "B" && m.Removed })

	if err := conn.WriteJSON(Command{Op: "explode"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, func(m wsMessage) bool { return m.Type == msgError })
	if msg.Message != "unknown op" {
		t.Errorf("unexpected error message %+v", msg)
	}
}

func TestWebSocketCommandErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	conn := dial(t, env)

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	msg := readUntil(t, conn, func(m wsMessage) bool { return m.Type == msgError })
	if !strings.HasPrefix(msg.Message, "invalid command") {
		t.Errorf("unexpected message %q", msg.Message)
	}

	conn.WriteJSON(Command{Op: opSet, Name: "A", Raw: "=B+1"})
	conn.WriteJSON(Command{Op: opSet, Name: "B", Raw: "=A+1"})
	msg = readUntil(t, conn, func(m wsMessage) bool { return m.Type == msgError })
	if msg.Code != reactive.CodeCyclicDependency || msg.Name != "B" {
		t.Errorf("expected cycle error for B, got %+v", msg)
	}
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	conn := dial(t, env)

	// Wait for the server side to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Hub().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	env.srv.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	h := NewHub(1, discardLogger())
	c := &client{hub: h, send: make(chan []byte, 1), done: make(chan struct{})}
	h.clients[c] = struct{}{}

	h.Broadcast(UpdateMessage{Type: msgUpdate, Name: "A"})
	if h.Len() != 1 {
		t.Fatalf("expected client to stay after one message")
	}
	h.Broadcast(UpdateMessage{Type: msgUpdate, Name: "A"})
	if h.Len() != 0 {
		t.Errorf("expected slow client to be dropped")
	}
	select {
	case <-c.done:
	default:
		t.Error("expected dropped client to be closed")
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://evil.com", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(r); got != tt.want {
			t.Errorf("SameOriginCheck(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
