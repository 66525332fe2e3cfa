package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playcities/citiesgame/game/catalog"
	"github.com/playcities/citiesgame/game/registry"
)

type nopConn struct{}

func (nopConn) Send(v any) error { return nil }

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()

	cat, err := catalog.New([]string{"Москва", "Астана", "Анкара"})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	reg := registry.New(cat, "Основная")
	return NewServer(reg), reg
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, "GET", "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestListRooms(t *testing.T) {
	s, reg := newTestServer(t)

	if err := reg.Register("Анна", nopConn{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.CreateRoom("Турнир"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	rec := doRequest(t, s, "GET", "/api/rooms")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := decodeBody(t, rec)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	rooms, ok := body["rooms"].([]interface{})
	if !ok || len(rooms) != 2 {
		t.Fatalf("rooms = %v, want 2 entries", body["rooms"])
	}
	first := rooms[0].(map[string]interface{})
	if first["name"] != "Основная" {
		t.Errorf("first room = %v, want Основная", first["name"])
	}
}

func TestListRoomsLimit(t *testing.T) {
	s, reg := newTestServer(t)

	if err := reg.CreateRoom("Турнир"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	rec := doRequest(t, s, "GET", "/api/rooms?limit=1")
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestGetRoom(t *testing.T) {
	s, reg := newTestServer(t)

	if err := reg.Register("Анна", nopConn{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("Борис", nopConn{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rm, ok := reg.RoomByName("Основная")
	if !ok {
		t.Fatal("default room missing")
	}
	if _, err := rm.Start("Анна", "Москва"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec := doRequest(t, s, "GET", "/api/rooms/Основная")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := decodeBody(t, rec)
	if body["room_name"] != "Основная" {
		t.Errorf("room_name = %v", body["room_name"])
	}
	if body["game_started"] != true {
		t.Errorf("game_started = %v, want true", body["game_started"])
	}
	if body["current_player"] != "Борис" {
		t.Errorf("current_player = %v, want Борис", body["current_player"])
	}
	if body["last_letter"] != "а" {
		t.Errorf("last_letter = %v, want а", body["last_letter"])
	}
}

func TestGetRoomNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, "GET", "/api/rooms/нет")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	body := decodeBody(t, rec)
	if body["error"] != "room not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, "POST", "/api/rooms")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
