package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/seniorcare/opscentre/internal/schema"
	"github.com/seniorcare/opscentre/internal/store"
	"github.com/seniorcare/opscentre/internal/sync"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeSyncer struct {
	mu   gosync.Mutex
	reqs []sync.Request
	res  sync.Result
	err  error
	last *sync.Result
}

func (f *fakeSyncer) TriggerNow(ctx context.Context, req sync.Request) (sync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return sync.Result{}, f.err
	}
	res := f.res
	res.Mode = req.Mode
	f.last = &res
	return res, nil
}

func (f *fakeSyncer) Last() (sync.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return sync.Result{}, false
	}
	return *f.last, true
}

func (f *fakeSyncer) PollInterval() time.Duration { return time.Minute }

type fakeStats struct {
	stats store.Stats
	err   error
}

func (f *fakeStats) Stats(ctx context.Context, today time.Time) (store.Stats, error) {
	return f.stats, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer starts a server on a free loopback port.
func startTestServer(t *testing.T, syncer Syncer, stats StatsSource) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:   0,
		Syncer: syncer,
		Stats:  stats,
		Now:    func() time.Time { return testNow },
		Logger: testLogger(),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

// dial connects a client and consumes the welcome message.
func dial(t *testing.T, ctx context.Context, server *Server) (*websocket.Conn, Message) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn, readMessage(t, ctx, conn)
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func sampleStats() store.Stats {
	return store.Stats{
		Tasks: 3,
		ByStatus: map[schema.Status]int{
			schema.StatusPending:    2,
			schema.StatusInProgress: 1,
			schema.StatusCompleted:  0,
			schema.StatusStuck:      0,
		},
		Overdue:  1,
		DueToday: 1,
		Notes:    2,
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: testLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("GetAddr() = %q, want a bound address", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketWelcomeCarriesStats(t *testing.T) {
	server := startTestServer(t, nil, &fakeStats{stats: sampleStats()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, welcome := dial(t, ctx, server)
	if welcome.Type != MessageTypeStats {
		t.Fatalf("welcome type = %s, want %s", welcome.Type, MessageTypeStats)
	}

	var stats store.Stats
	if err := json.Unmarshal(welcome.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Tasks != 3 || stats.Overdue != 1 || stats.ByStatus[schema.StatusPending] != 2 {
		t.Errorf("welcome stats = %+v", stats)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startTestServer(t, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	for i := 0; i < numClients; i++ {
		dial(t, ctx, server)
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestHandlerOnResult(t *testing.T) {
	server := startTestServer(t, nil, &fakeStats{stats: sampleStats()})
	handler := NewHandler(server, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(t, ctx, server)

	handler.OnResult(sync.Result{
		Mode:     sync.ModeAutoPull,
		Outcome:  sync.OutcomePulled,
		RemoteID: "aaaaaaaaaabbbbbbbbbb",
		Duration: 120 * time.Millisecond,
	})

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncComplete {
		t.Fatalf("Expected message type %s, got %s", MessageTypeSyncComplete, msg.Type)
	}
	if !msg.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, testNow)
	}
	var data SyncCompleteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal sync data: %v", err)
	}
	if data.Outcome != sync.OutcomePulled || data.RemoteID != "aaaaaaaaaabbbbbbbbbb" {
		t.Errorf("sync data = %+v", data)
	}

	// A pull changed local data, so fresh stats follow.
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeStats {
		t.Errorf("Expected message type %s, got %s", MessageTypeStats, msg.Type)
	}
}

func TestHandlerOnResultNoopSkipsStats(t *testing.T) {
	server := startTestServer(t, nil, &fakeStats{stats: sampleStats()})
	handler := NewHandler(server, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(t, ctx, server)

	handler.OnResult(sync.Result{Mode: sync.ModeAutoPull, Outcome: sync.OutcomeNoop})
	handler.OnResult(sync.Result{Mode: sync.ModePush, Outcome: sync.OutcomeFailed, Reason: sync.ReasonUnauthorized})

	first := readMessage(t, ctx, conn)
	second := readMessage(t, ctx, conn)
	if first.Type != MessageTypeSyncComplete || second.Type != MessageTypeSyncComplete {
		t.Fatalf("got %s then %s, want two sync_complete messages", first.Type, second.Type)
	}

	var data SyncCompleteData
	if err := json.Unmarshal(second.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal sync data: %v", err)
	}
	if data.Reason != sync.ReasonUnauthorized {
		t.Errorf("Reason = %q, want %q", data.Reason, sync.ReasonUnauthorized)
	}
}

func TestHealth(t *testing.T) {
	server := startTestServer(t, nil, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /health = %d %v", resp.StatusCode, body)
	}
}

func TestStatus(t *testing.T) {
	syncer := &fakeSyncer{res: sync.Result{Outcome: sync.OutcomePushed, RemoteID: "aaaaaaaaaabbbbbbbbbb"}}
	server := startTestServer(t, syncer, &fakeStats{stats: sampleStats()})
	base := "http://" + server.GetAddr()

	var before StatusResponse
	getJSON(t, base+"/status", &before)
	if before.LastSync != nil {
		t.Errorf("LastSync = %+v before any run, want nil", before.LastSync)
	}
	if before.Stats == nil || before.Stats.Tasks != 3 {
		t.Errorf("Stats = %+v, want 3 tasks", before.Stats)
	}
	if before.PollInterval != "1m0s" {
		t.Errorf("PollInterval = %q, want 1m0s", before.PollInterval)
	}

	resp, err := http.Post(base+"/sync/push", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /sync/push failed: %v", err)
	}
	resp.Body.Close()

	var after StatusResponse
	getJSON(t, base+"/status", &after)
	if after.LastSync == nil || after.LastSync.Outcome != sync.OutcomePushed {
		t.Errorf("LastSync = %+v, want pushed", after.LastSync)
	}
}

func TestStatusStatsError(t *testing.T) {
	server := startTestServer(t, nil, &fakeStats{err: errors.New("database is closed")})

	resp, err := http.Get("http://" + server.GetAddr() + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSyncEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		res        sync.Result
		err        error
		wantStatus int
		wantCall   bool
		wantMode   sync.Mode
		wantForce  bool
	}{
		{
			name:       "push",
			path:       "/sync/push",
			res:        sync.Result{Outcome: sync.OutcomePushed},
			wantStatus: http.StatusOK,
			wantCall:   true,
			wantMode:   sync.ModePush,
		},
		{
			name:       "forced push",
			path:       "/sync/push",
			body:       `{"force":true}`,
			res:        sync.Result{Outcome: sync.OutcomePushed},
			wantStatus: http.StatusOK,
			wantCall:   true,
			wantMode:   sync.ModePush,
			wantForce:  true,
		},
		{
			name:       "forced push by query",
			path:       "/sync/push?force=true",
			res:        sync.Result{Outcome: sync.OutcomePushed},
			wantStatus: http.StatusOK,
			wantCall:   true,
			wantMode:   sync.ModePush,
			wantForce:  true,
		},
		{
			name:       "pull ignores force",
			path:       "/sync/pull",
			body:       `{"force":true}`,
			res:        sync.Result{Outcome: sync.OutcomeNoop},
			wantStatus: http.StatusOK,
			wantCall:   true,
			wantMode:   sync.ModePull,
		},
		{
			name:       "busy",
			path:       "/sync/pull",
			res:        sync.Result{Outcome: sync.OutcomeSkipped, Reason: sync.ReasonBusy},
			wantStatus: http.StatusConflict,
			wantCall:   true,
			wantMode:   sync.ModePull,
		},
		{
			name:       "failed",
			path:       "/sync/push",
			res:        sync.Result{Outcome: sync.OutcomeFailed, Reason: sync.ReasonNetwork},
			wantStatus: http.StatusBadGateway,
			wantCall:   true,
			wantMode:   sync.ModePush,
		},
		{
			name:       "scheduler stopped",
			path:       "/sync/push",
			err:        errors.New("scheduler is not running"),
			wantStatus: http.StatusServiceUnavailable,
			wantCall:   true,
			wantMode:   sync.ModePush,
		},
		{
			name:       "oversized body",
			path:       "/sync/push",
			body:       `{"force":true,"pad":"` + strings.Repeat("x", maxSyncBody) + `"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad body",
			path:       "/sync/push",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{res: tt.res, err: tt.err}
			server := startTestServer(t, syncer, nil)

			resp, err := http.Post("http://"+server.GetAddr()+tt.path, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !tt.wantCall {
				if len(syncer.reqs) != 0 {
					t.Errorf("syncer called %d times, want 0", len(syncer.reqs))
				}
				return
			}
			if len(syncer.reqs) != 1 {
				t.Fatalf("syncer called %d times, want 1", len(syncer.reqs))
			}
			if got := syncer.reqs[0]; got.Mode != tt.wantMode || got.Force != tt.wantForce {
				t.Errorf("request = %+v, want mode %v force %v", got, tt.wantMode, tt.wantForce)
			}
		})
	}
}

func TestSyncWithoutSyncer(t *testing.T) {
	server := startTestServer(t, nil, nil)

	resp, err := http.Post("http://"+server.GetAddr()+"/sync/pull", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSyncRequiresPost(t *testing.T) {
	server := startTestServer(t, &fakeSyncer{}, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/sync/push")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode %s: %v", url, err)
	}
}
