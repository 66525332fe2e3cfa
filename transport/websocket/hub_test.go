package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playcities/citiesgame/game/catalog"
	"github.com/playcities/citiesgame/game/registry"
)

func newTestServer(t *testing.T) (*registry.Registry, *httptest.Server) {
	t.Helper()

	cat, err := catalog.New([]string{"Москва", "Астана", "Анкара", "Амман", "Норильск"})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	reg := registry.New(cat, "Основная")

	mux := http.NewServeMux()
	mux.Handle("/ws", NewHandler(reg))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd map[string]any) {
	t.Helper()

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write command: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope %q: %v", data, err)
	}
	return env
}

func TestJoinOverWebSocket(t *testing.T) {
	reg, srv := newTestServer(t)
	conn := dial(t, srv)

	sendCommand(t, conn, map[string]any{
		"type":        "command",
		"command":     "join",
		"player_name": "Анна",
	})

	// The room broadcast is enqueued before the reply, so it arrives first.
	state := readEnvelope(t, conn)
	if state["type"] != "room_state" {
		t.Fatalf("first envelope type = %v, want room_state", state["type"])
	}
	reply := readEnvelope(t, conn)
	if reply["type"] != "success" {
		t.Fatalf("reply type = %v, want success: %v", reply["type"], reply)
	}

	if !reg.Registered("Анна") {
		t.Error("player not registered after join")
	}
}

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reply := readEnvelope(t, conn)
	if reply["type"] != "error" {
		t.Fatalf("reply type = %v, want error", reply["type"])
	}
	if reply["message"] != "malformed message" {
		t.Errorf("message = %v, want malformed message", reply["message"])
	}

	// The connection survives and accepts a valid command.
	sendCommand(t, conn, map[string]any{
		"type":        "command",
		"command":     "join",
		"player_name": "Борис",
	})
	state := readEnvelope(t, conn)
	if state["type"] != "room_state" {
		t.Fatalf("envelope type = %v, want room_state", state["type"])
	}
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	reg, srv := newTestServer(t)
	conn := dial(t, srv)

	sendCommand(t, conn, map[string]any{
		"type":        "command",
		"command":     "join",
		"player_name": "Вера",
	})
	readEnvelope(t, conn) // room_state
	readEnvelope(t, conn) // success

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Registered("Вера") {
		if time.Now().After(deadline) {
			t.Fatal("player still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// A connection carries one player identity. A second join would leave the
// first name registered with no connection behind it once the socket drops.
func TestSecondJoinOnBoundConnectionRejected(t *testing.T) {
	reg, srv := newTestServer(t)
	conn := dial(t, srv)

	sendCommand(t, conn, map[string]any{
		"type": "command", "command": "join", "player_name": "Анна",
	})
	readEnvelope(t, conn) // room_state
	readEnvelope(t, conn) // success

	sendCommand(t, conn, map[string]any{
		"type": "command", "command": "join", "player_name": "Борис",
	})
	reply := readEnvelope(t, conn)
	if reply["type"] != "error" {
		t.Fatalf("reply type = %v, want error: %v", reply["type"], reply)
	}
	msg, _ := reply["message"].(string)
	if !strings.Contains(msg, "already joined as Анна") {
		t.Errorf("message = %q, want it to name the bound player", msg)
	}

	if reg.Registered("Борис") {
		t.Error("second name registered despite rejection")
	}
	if !reg.Registered("Анна") {
		t.Error("original name lost after rejected join")
	}

	// Disconnect still frees the original name.
	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for reg.Registered("Анна") {
		if time.Now().After(deadline) {
			t.Fatal("player still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGameFlowOverWebSocket(t *testing.T) {
	_, srv := newTestServer(t)
	anna := dial(t, srv)
	boris := dial(t, srv)

	sendCommand(t, anna, map[string]any{
		"type": "command", "command": "join", "player_name": "Анна",
	})
	readEnvelope(t, anna) // room_state
	readEnvelope(t, anna) // success

	sendCommand(t, boris, map[string]any{
		"type": "command", "command": "join", "player_name": "Борис",
	})
	readEnvelope(t, anna)  // room_state broadcast from Борис joining
	readEnvelope(t, boris) // room_state
	readEnvelope(t, boris) // success

	sendCommand(t, anna, map[string]any{
		"type": "command", "command": "start", "player_name": "Анна", "city": "Москва",
	})
	state := readEnvelope(t, anna)
	if state["type"] != "room_state" {
		t.Fatalf("envelope type = %v, want room_state", state["type"])
	}
	if state["last_letter"] != "а" {
		t.Errorf("last_letter = %v, want а", state["last_letter"])
	}
	if state["current_player"] != "Борис" {
		t.Errorf("current_player = %v, want Борис", state["current_player"])
	}
	reply := readEnvelope(t, anna)
	if reply["type"] != "success" {
		t.Fatalf("start reply type = %v: %v", reply["type"], reply)
	}

	readEnvelope(t, boris) // room_state broadcast from start

	sendCommand(t, boris, map[string]any{
		"type": "command", "command": "add_city", "player_name": "Борис", "city": "Астана",
	})
	state = readEnvelope(t, boris)
	if state["type"] != "room_state" {
		t.Fatalf("envelope type = %v, want room_state", state["type"])
	}
	reply = readEnvelope(t, boris)
	if reply["type"] != "success" {
		t.Fatalf("add_city reply type = %v: %v", reply["type"], reply)
	}
}

func TestSendOnClosedClient(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), closed: true}
	if err := c.Send(map[string]string{"type": "success"}); err == nil {
		t.Error("Send on closed client returned nil error")
	}
}
