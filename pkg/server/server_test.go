package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicebridge/voicebridge/pkg/agentstore"
	"github.com/voicebridge/voicebridge/pkg/kv"
	"github.com/voicebridge/voicebridge/pkg/relay"
	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

const answerSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

type staticTokens struct{}

func (staticTokens) Token(_ context.Context, scope string) (string, error) {
	return "token-for-" + scope, nil
}

// fakeUpstream stands in for the Voice Live service. With autoAnswer set it
// replies to avatar connect commands with an encoded SDP answer.
type fakeUpstream struct {
	srv        *httptest.Server
	frames     chan map[string]any
	conns      chan *websocket.Conn
	autoAnswer atomic.Bool
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{
		frames: make(chan map[string]any, 64),
		conns:  make(chan *websocket.Conn, 8),
	}
	var upgrader websocket.Upgrader
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		u.conns <- conn
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			u.frames <- frame
			if u.autoAnswer.Load() && frame["type"] == voicelive.TypeAvatarConnect {
				doc, _ := json.Marshal(map[string]string{"type": "answer", "sdp": answerSDP})
				conn.WriteJSON(map[string]any{
					"type":       voicelive.TypeAvatarConnecting,
					"server_sdp": base64.StdEncoding.EncodeToString(doc),
				})
			}
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *fakeUpstream) config() *voicelive.Config {
	return &voicelive.Config{
		Endpoint:              u.srv.URL,
		APIVersion:            "2025-05-01-preview",
		AgentID:               "agent-123",
		AgentConnectionString: "region;sub;rg;project",
		Voice:                 "en-US-AvaNeural",
		AvatarCharacter:       "lisa",
		AvatarStyle:           "casual-sitting",
		AvatarWidth:           1280,
		AvatarHeight:          720,
		AvatarBitrate:         1000000,
	}
}

func (u *fakeUpstream) nextFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case f := <-u.frames:
		return f
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upstream frame")
		return nil
	}
}

type fakeCreator struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCreator) CreateAgent(context.Context, string, string, string) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("asst_%d", n), nil
}

type testEnv struct {
	api      *httptest.Server
	upstream *fakeUpstream
	registry *relay.Registry
	creator  *fakeCreator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	up := newFakeUpstream(t)
	registry := relay.NewRegistry(up.config(), staticTokens{})
	t.Cleanup(registry.Shutdown)
	creator := &fakeCreator{}
	srv := New(Config{
		Registry: registry,
		Agents:   agentstore.New(kv.NewMemory()),
		Creator:  creator,
	})
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)
	return &testEnv{api: api, upstream: up, registry: registry, creator: creator}
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(e.api.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.api.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func (e *testEnv) delete(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodDelete, e.api.URL+path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	status, body := e.post(t, "/api/session", nil)
	if status != http.StatusOK {
		t.Fatalf("create session status = %d", status)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("create session returned no id: %v", body)
	}
	return id
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	status, body := e.get(t, "/health")
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health = %d %v", status, body)
	}
}

func TestSessionStatusRoute(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	status, body := e.get(t, "/api/session/"+id)
	if status != http.StatusOK || body["status"] != "active" {
		t.Fatalf("status route = %d %v", status, body)
	}

	status, _ = e.get(t, "/api/session/unknown")
	if status != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", status)
	}
}

func TestTextMessageRoute(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	status, body := e.post(t, "/api/session/"+id+"/message", map[string]string{"text": "hello"})
	if status != http.StatusOK || body["status"] != "queued" {
		t.Fatalf("message route = %d %v", status, body)
	}

	e.upstream.nextFrame(t) // session.update
	if frame := e.upstream.nextFrame(t); frame["type"] != voicelive.TypeConversationItemCreate {
		t.Fatalf("upstream frame = %v", frame["type"])
	}
	if frame := e.upstream.nextFrame(t); frame["type"] != voicelive.TypeResponseCreate {
		t.Fatalf("upstream frame = %v", frame["type"])
	}
}

func TestCommitAudioRoute(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	status, body := e.post(t, "/sessions/"+id+"/commit-audio", nil)
	if status != http.StatusOK || body["status"] != "committed" {
		t.Fatalf("commit route = %d %v", status, body)
	}
	e.upstream.nextFrame(t)
	if frame := e.upstream.nextFrame(t); frame["type"] != voicelive.TypeInputAudioBufferCommit {
		t.Fatalf("upstream frame = %v", frame["type"])
	}
}

func TestAvatarConnectRoute(t *testing.T) {
	e := newTestEnv(t)
	e.upstream.autoAnswer.Store(true)
	id := e.createSession(t)

	status, body := e.post(t, "/api/session/"+id+"/avatar/connect",
		map[string]string{"client_sdp": "v=0\r\noffer\r\n"})
	if status != http.StatusOK {
		t.Fatalf("avatar connect = %d %v", status, body)
	}
	if body["server_sdp"] != answerSDP {
		t.Fatalf("server_sdp = %q", body["server_sdp"])
	}

	// Connecting again while attached is an error surfaced as 500.
	status, body = e.post(t, "/api/session/"+id+"/avatar/connect",
		map[string]string{"client_sdp": "v=0\r\noffer\r\n"})
	if status != http.StatusInternalServerError {
		t.Fatalf("second connect = %d %v", status, body)
	}

	status, _ = e.post(t, "/api/session/"+id+"/avatar/disconnect", nil)
	if status != http.StatusOK {
		t.Fatalf("avatar disconnect = %d", status)
	}
}

func TestAvatarConnectValidation(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	status, _ := e.post(t, "/api/session/"+id+"/avatar/connect", map[string]string{})
	if status != http.StatusBadRequest {
		t.Fatalf("missing client_sdp = %d, want 400", status)
	}
	status, _ = e.post(t, "/api/session/unknown/avatar/connect", map[string]string{"client_sdp": "v=0"})
	if status != http.StatusNotFound {
		t.Fatalf("unknown session = %d, want 404", status)
	}
}

func wsURL(api *httptest.Server, sessionID string) string {
	return "ws" + strings.TrimPrefix(api.URL, "http") + "/api/ws/" + sessionID
}

func TestSessionSocket(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(e.api, id), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var ready relay.Event
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatalf("read session_ready: %v", err)
	}
	if ready.Type != relay.EventSessionReady || ready.SessionID != id {
		t.Fatalf("first frame = %+v", ready)
	}

	// Client command flows through to the upstream.
	if err := conn.WriteJSON(map[string]string{"type": "audio_chunk", "audio": "AAAA"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	e.upstream.nextFrame(t) // session.update
	frame := e.upstream.nextFrame(t)
	if frame["type"] != voicelive.TypeInputAudioBufferAppend || frame["audio"] != "AAAA" {
		t.Fatalf("upstream frame = %v", frame)
	}

	// Unknown client frames are ignored, the socket stays usable.
	if err := conn.WriteJSON(map[string]string{"type": "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "commit_audio"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := e.upstream.nextFrame(t); frame["type"] != voicelive.TypeInputAudioBufferCommit {
		t.Fatalf("upstream frame = %v", frame["type"])
	}

	// Upstream events come back normalized on the same socket.
	select {
	case upConn := <-e.upstream.conns:
		if err := upConn.WriteJSON(map[string]string{"type": voicelive.TypeInputSpeechStarted}); err != nil {
			t.Fatalf("upstream write: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upstream connection")
	}
	var ev relay.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != relay.EventSpeechStarted {
		t.Fatalf("event type = %s, want %s", ev.Type, relay.EventSpeechStarted)
	}
}

func TestSessionSocketUnknownSession(t *testing.T) {
	e := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(e.api, "unknown"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != closeSessionNotFound {
		t.Fatalf("read = %v, want close %d", err, closeSessionNotFound)
	}
}

func TestConfigDefaults(t *testing.T) {
	e := newTestEnv(t)
	status, body := e.get(t, "/api/config")
	if status != http.StatusOK {
		t.Fatalf("get config = %d", status)
	}
	if body["model"] != defaultModel || body["agent_id"] != "" {
		t.Fatalf("config defaults = %v", body)
	}
}

func TestUpdateConfigCreatesAndReuses(t *testing.T) {
	e := newTestEnv(t)
	req := map[string]string{"model": "gpt-4o", "agent_name": "helper", "instructions": "be brief"}

	status, body := e.post(t, "/api/config", req)
	if status != http.StatusOK || body["status"] != "success" {
		t.Fatalf("create = %d %v", status, body)
	}
	agentID := body["agent_id"].(string)
	if agentID == "" {
		t.Fatal("no agent_id in response")
	}

	// Identical configuration reuses the stored agent.
	status, body = e.post(t, "/api/config", req)
	if status != http.StatusOK || body["agent_id"] != agentID {
		t.Fatalf("reuse = %d %v", status, body)
	}
	if n := e.creator.calls.Load(); n != 1 {
		t.Fatalf("creator calls = %d, want 1", n)
	}

	status, body = e.get(t, "/api/config")
	if status != http.StatusOK || body["agent_id"] != agentID {
		t.Fatalf("get config after create = %d %v", status, body)
	}
}

func TestAgentActivateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	_, first := e.post(t, "/api/config", map[string]string{"model": "m", "agent_name": "a", "instructions": "i"})
	_, second := e.post(t, "/api/config", map[string]string{"model": "m", "agent_name": "b", "instructions": "i"})
	firstID := first["agent_id"].(string)
	secondID := second["agent_id"].(string)

	status, body := e.get(t, "/api/agents")
	if status != http.StatusOK || body["total_count"].(float64) != 2 || body["current_agent_id"] != secondID {
		t.Fatalf("list agents = %d %v", status, body)
	}

	status, _ = e.post(t, "/api/agents/"+firstID+"/activate", nil)
	if status != http.StatusOK {
		t.Fatalf("activate = %d", status)
	}
	_, body = e.get(t, "/api/agents")
	if body["current_agent_id"] != firstID {
		t.Fatalf("current after activate = %v", body["current_agent_id"])
	}

	status, _ = e.post(t, "/api/agents/nope/activate", nil)
	if status != http.StatusNotFound {
		t.Fatalf("activate unknown = %d, want 404", status)
	}

	status, _ = e.delete(t, "/api/agents/"+firstID)
	if status != http.StatusOK {
		t.Fatalf("delete = %d", status)
	}
	_, body = e.get(t, "/api/agents")
	if body["current_agent_id"] != "" || body["total_count"].(float64) != 1 {
		t.Fatalf("after delete = %v", body)
	}

	status, _ = e.delete(t, "/api/config/agent")
	if status != http.StatusOK {
		t.Fatalf("reset agent = %d", status)
	}
}
