package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/recognizer"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/foxseedlab/kikitori/internal/summarizer"
	"github.com/gorilla/websocket"
)

type mockController struct {
	mu          sync.Mutex
	startErr    error
	summary     string
	summaryErr  error
	snapshot    session.Snapshot
	permission  session.Permission
	startCalls  int
	stopCalls   int
	cancelCalls int
	updates     chan session.Snapshot
}

func (m *mockController) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	return m.startErr
}

func (m *mockController) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *mockController) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
}

func (m *mockController) Snapshot() session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *mockController) Subscribe(_ int) (<-chan session.Snapshot, func()) {
	return m.updates, func() {}
}

func (m *mockController) CheckPermissions(_ context.Context) session.Permission {
	return m.permission
}

func (m *mockController) Summarize(_ context.Context) (string, error) {
	return m.summary, m.summaryErr
}

type mockPacketSink struct {
	mu      sync.Mutex
	packets [][]byte
}

func (m *mockPacketSink) WritePacket(packet []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, packet)
}

func (m *mockPacketSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

func newTestServer(ctrl *mockController, ingest PacketSink) *httptest.Server {
	return httptest.NewServer(NewServer(":0", ctrl, ingest).Handler())
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	server := newTestServer(&mockController{}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestStart_StatusByErrorKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "ok", err: nil, status: http.StatusNoContent},
		{name: "audio route", err: &session.StartError{Kind: session.AudioRouteUnavailable, Err: &audio.CaptureError{Kind: audio.DeviceBusy}}, status: http.StatusConflict, kind: "audio_route_unavailable"},
		{name: "engine", err: &session.StartError{Kind: session.EngineUnavailable, Err: recognizer.ErrNotAuthorized}, status: http.StatusServiceUnavailable, kind: "engine_unavailable"},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError, kind: "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{startErr: tt.err}
			server := newTestServer(ctrl, nil)
			defer server.Close()

			resp := post(t, server.URL+"/v1/session/start")
			if resp.StatusCode != tt.status {
				t.Fatalf("unexpected status: %d", resp.StatusCode)
			}
			if tt.kind != "" {
				if body := decodeError(t, resp); body.Error != tt.kind {
					t.Fatalf("unexpected error kind: %q", body.Error)
				}
			} else {
				_ = resp.Body.Close()
			}
		})
	}
}

func TestStopAndCancel(t *testing.T) {
	ctrl := &mockController{}
	server := newTestServer(ctrl, nil)
	defer server.Close()

	for _, path := range []string{"/v1/session/stop", "/v1/session/cancel"} {
		resp := post(t, server.URL+path)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("%s: unexpected status %d", path, resp.StatusCode)
		}
	}
	if ctrl.stopCalls != 1 || ctrl.cancelCalls != 1 {
		t.Fatalf("unexpected calls: stop=%d cancel=%d", ctrl.stopCalls, ctrl.cancelCalls)
	}
}

func TestSnapshot(t *testing.T) {
	ctrl := &mockController{snapshot: session.Snapshot{
		State:      session.Recording,
		Recording:  true,
		Transcript: "a b",
		RequestID:  4,
		Revision:   9,
	}}
	server := newTestServer(ctrl, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/session")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var body snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := snapshotResponse{State: "recording", Recording: true, Transcript: "a b", RequestID: 4, Revision: 9}
	if body != want {
		t.Fatalf("unexpected snapshot: %+v", body)
	}
}

func TestPermissions(t *testing.T) {
	ctrl := &mockController{permission: session.Permission{Granted: false, Status: recognizer.Denied}}
	server := newTestServer(ctrl, nil)
	defer server.Close()

	resp := post(t, server.URL+"/v1/permissions")
	defer func() {
		_ = resp.Body.Close()
	}()
	var body permissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Granted || body.Status != "denied" {
		t.Fatalf("unexpected permission: %+v", body)
	}
}

func TestSummarize_StatusByErrorKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "unconfigured", err: session.ErrSummarizerUnavailable, status: http.StatusServiceUnavailable, kind: "summarizer_unavailable"},
		{name: "empty", err: session.ErrEmptyTranscript, status: http.StatusConflict, kind: "empty_transcript"},
		{name: "unauthorized", err: &summarizer.Error{Kind: summarizer.Unauthorized}, status: http.StatusUnauthorized, kind: "unauthorized"},
		{name: "malformed", err: &summarizer.Error{Kind: summarizer.MalformedResponse}, status: http.StatusBadGateway, kind: "malformed_response"},
		{name: "network", err: &summarizer.Error{Kind: summarizer.NetworkFailure}, status: http.StatusBadGateway, kind: "network_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&mockController{summaryErr: tt.err}, nil)
			defer server.Close()

			resp := post(t, server.URL+"/v1/session/summarize")
			if resp.StatusCode != tt.status {
				t.Fatalf("unexpected status: %d", resp.StatusCode)
			}
			if body := decodeError(t, resp); body.Error != tt.kind {
				t.Fatalf("unexpected error kind: %q", body.Error)
			}
		})
	}
}

func TestSummarize_Success(t *testing.T) {
	server := newTestServer(&mockController{summary: "hello world"}, nil)
	defer server.Close()

	resp := post(t, server.URL+"/v1/session/summarize")
	defer func() {
		_ = resp.Body.Close()
	}()
	var body summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Summary != "hello world" {
		t.Fatalf("unexpected summary: %q", body.Summary)
	}
}

func TestEvents_StreamsSnapshots(t *testing.T) {
	ctrl := &mockController{updates: make(chan session.Snapshot, 2)}
	ctrl.updates <- session.Snapshot{State: session.Recording, Recording: true, Transcript: "(listening)", Revision: 1}
	ctrl.updates <- session.Snapshot{State: session.Idle, Transcript: "a b.", Revision: 2}
	server := newTestServer(ctrl, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/session/events")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	var transcripts []string
	for len(transcripts) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var snap snapshotResponse
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			t.Fatalf("bad event payload %q: %v", data, err)
		}
		transcripts = append(transcripts, snap.Transcript)
	}
	if transcripts[0] != "(listening)" || transcripts[1] != "a b." {
		t.Fatalf("unexpected transcripts: %q", transcripts)
	}
}

func TestIngest_NotMountedWithoutSink(t *testing.T) {
	server := newTestServer(&mockController{}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/audio/ingest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestIngest_ForwardsBinaryMessages(t *testing.T) {
	sink := &mockPacketSink{}
	server := newTestServer(&mockController{}, sink)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/audio/ingest"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xfc, 0xff, 0xfe}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ignored")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xfc, 0x00}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 packets, got %d", sink.count())
	}
}
