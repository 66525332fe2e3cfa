package tcpserver

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/playcities/citiesgame/game/catalog"
	"github.com/playcities/citiesgame/game/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	cat, err := catalog.New([]string{"Москва", "Астана", "Анкара"})
	if err != nil {
		t.Fatalf("Failed to build test catalog: %v", err)
	}
	return registry.New(cat, "Основная")
}

// startWorker wires a worker to one end of an in-memory pipe and returns
// the client end.
func startWorker(t *testing.T, g *registry.Registry) net.Conn {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	w := NewWorker(serverConn, g)
	go w.Run()

	t.Cleanup(func() { clientConn.Close() })
	return clientConn
}

func readEnvelope(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		t.Fatalf("Failed to decode envelope %q: %v", line, err)
	}
	return env
}

func envType(env map[string]any) string {
	s, _ := env["type"].(string)
	return s
}

func TestWorker_JoinRepliesAfterBroadcast(t *testing.T) {
	g := testRegistry(t)
	client := startWorker(t, g)
	r := bufio.NewReader(client)

	if _, err := client.Write([]byte(`{"type":"command","command":"join","player_name":"Anna"}` + "\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// The join's effect (room snapshot) arrives before the command reply.
	first := readEnvelope(t, r)
	if envType(first) != "room_state" {
		t.Fatalf("Expected room_state first, got %q", envType(first))
	}
	if first["room_name"] != "Основная" {
		t.Errorf("Expected snapshot of the default room, got %v", first["room_name"])
	}

	second := readEnvelope(t, r)
	if envType(second) != "success" {
		t.Fatalf("Expected success reply, got %q", envType(second))
	}
	if second["room_name"] != "Основная" {
		t.Errorf("Expected reply to carry the room name, got %v", second["room_name"])
	}
}

func TestWorker_PartialReads(t *testing.T) {
	g := testRegistry(t)
	client := startWorker(t, g)
	r := bufio.NewReader(client)

	full := `{"type":"command","command":"join","player_name":"Anna"}` + "\n"
	half := len(full) / 2

	if _, err := client.Write([]byte(full[:half])); err != nil {
		t.Fatalf("First chunk write failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := client.Write([]byte(full[half:])); err != nil {
		t.Fatalf("Second chunk write failed: %v", err)
	}

	if got := envType(readEnvelope(t, r)); got != "room_state" {
		t.Errorf("Expected room_state, got %q", got)
	}
	if got := envType(readEnvelope(t, r)); got != "success" {
		t.Errorf("Expected success, got %q", got)
	}
}

func TestWorker_MultipleRecordsInOneWrite(t *testing.T) {
	g := testRegistry(t)
	client := startWorker(t, g)
	r := bufio.NewReader(client)

	batch := `{"command":"join","player_name":"Anna"}` + "\n" +
		`{"command":"list_rooms","player_name":"Anna"}` + "\n"

	go client.Write([]byte(batch))

	types := []string{
		envType(readEnvelope(t, r)),
		envType(readEnvelope(t, r)),
		envType(readEnvelope(t, r)),
	}
	want := []string{"room_state", "success", "rooms_list"}
	for i, w := range want {
		if types[i] != w {
			t.Errorf("Envelope %d: expected %q, got %q (all: %v)", i, w, types[i], types)
		}
	}
}

func TestWorker_EmptyRecordsSkipped(t *testing.T) {
	g := testRegistry(t)
	client := startWorker(t, g)
	r := bufio.NewReader(client)

	go client.Write([]byte("\n   \n" + `{"command":"join","player_name":"Anna"}` + "\n"))

	// No replies for the blank records; the first envelope is the join's
	// broadcast.
	if got := envType(readEnvelope(t, r)); got != "room_state" {
		t.Errorf("Expected room_state, got %q", got)
	}
}

func TestWorker_MalformedKeepsConnectionOpen(t *testing.T) {
	g := testRegistry(t)
	client := startWorker(t, g)
	r := bufio.NewReader(client)

	if _, err := client.Write([]byte("this is not json\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	env := readEnvelope(t, r)
	if envType(env) != "error" {
		t.Fatalf("Expected error envelope for malformed record, got %q", envType(env))
	}

	// The connection is still usable.
	if _, err := client.Write([]byte(`{"command":"join","player_name":"Anna"}` + "\n")); err != nil {
		t.Fatalf("Write after protocol error failed: %v", err)
	}
	if got := envType(readEnvelope(t, r)); got != "room_state" {
		t.Errorf("Expected room_state after recovery, got %q", got)
	}
}

// A connection carries one player identity. A second join would leave the
// first name registered with no connection behind it once the socket drops.
func TestWorker_SecondJoinOnBoundConnectionRejected(t *testing.T) {
	g := testRegistry(t)
	client := startWorker(t, g)
	r := bufio.NewReader(client)

	client.Write([]byte(`{"command":"join","player_name":"Anna"}` + "\n"))
	readEnvelope(t, r) // room_state
	readEnvelope(t, r) // success

	if _, err := client.Write([]byte(`{"command":"join","player_name":"Boris"}` + "\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	env := readEnvelope(t, r)
	if envType(env) != "error" {
		t.Fatalf("Expected error for second join, got %q", envType(env))
	}
	msg, _ := env["message"].(string)
	if !strings.Contains(msg, "already joined as Anna") {
		t.Errorf("Expected rejection to name the bound player, got %q", msg)
	}

	if g.Registered("Boris") {
		t.Error("Expected Boris to stay unregistered")
	}
	if !g.Registered("Anna") {
		t.Error("Expected Anna to remain registered")
	}

	// Disconnect still frees the original name.
	client.Close()
	deadline := time.Now().Add(2 * time.Second)
	for g.Registered("Anna") {
		if time.Now().After(deadline) {
			t.Fatal("Expected Anna to be unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorker_DisconnectIsImplicitLeave(t *testing.T) {
	g := testRegistry(t)

	annaClient := startWorker(t, g)
	annaReader := bufio.NewReader(annaClient)
	borisClient := startWorker(t, g)
	borisReader := bufio.NewReader(borisClient)

	annaClient.Write([]byte(`{"command":"join","player_name":"Anna"}` + "\n"))
	readEnvelope(t, annaReader) // room_state
	readEnvelope(t, annaReader) // success

	go borisClient.Write([]byte(`{"command":"join","player_name":"Boris"}` + "\n"))
	// Boris's join broadcasts to Anna too.
	go func() {
		annaReader.ReadString('\n')
	}()
	readEnvelope(t, borisReader) // room_state
	readEnvelope(t, borisReader) // success

	// Anna's peer vanishes.
	annaClient.Close()

	// Boris receives the shrunken room.
	env := readEnvelope(t, borisReader)
	if envType(env) != "room_state" {
		t.Fatalf("Expected room_state after disconnect, got %q", envType(env))
	}
	players, _ := env["players"].([]any)
	if len(players) != 1 || players[0] != "Boris" {
		t.Errorf("Expected players [Boris], got %v", players)
	}

	// The name frees up once teardown finishes.
	deadline := time.Now().Add(2 * time.Second)
	for g.Registered("Anna") {
		if time.Now().After(deadline) {
			t.Fatal("Expected Anna to be unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
