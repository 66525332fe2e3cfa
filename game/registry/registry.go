package registry

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playcities/citiesgame/game/catalog"
	"github.com/playcities/citiesgame/game/room"
	"github.com/playcities/citiesgame/protocol"
)

var (
	ErrNameTaken     = errors.New("player name already taken")
	ErrRoomExists    = errors.New("room already exists")
	ErrNotInRoom     = errors.New("player is not in a room")
	ErrNotRegistered = errors.New("player is not registered")
)

// Conn is a live connection handle owned by a transport. Send delivers one
// outbound envelope; it may block on the peer and must therefore never be
// called while registry or room locks are held.
type Conn interface {
	Send(v any) error
}

// Registry is the server-wide directory: rooms by name, player→room and
// player→connection bindings. Directory state is guarded by its own mutex;
// each room serializes itself. The directory lock is always acquired before
// any room lock and released before any network write.
type Registry struct {
	catalog     *catalog.Catalog
	defaultRoom string

	mu          sync.RWMutex
	rooms       map[string]*room.Room
	playerRooms map[string]string
	conns       map[string]Conn
}

// New creates a registry with the default room already present, so the
// auto-join target always exists.
func New(cat *catalog.Catalog, defaultRoom string) *Registry {
	r := &Registry{
		catalog:     cat,
		defaultRoom: defaultRoom,
		rooms:       make(map[string]*room.Room),
		playerRooms: make(map[string]string),
		conns:       make(map[string]Conn),
	}
	r.rooms[defaultRoom] = room.New(defaultRoom, cat)
	return r
}

// DefaultRoom returns the name of the auto-join room.
func (g *Registry) DefaultRoom() string {
	return g.defaultRoom
}

// Register binds id to conn and auto-joins the default room. The id must be
// unique among currently connected players; an existing binding is left
// untouched on failure.
func (g *Registry) Register(id string, conn Conn) error {
	g.mu.Lock()
	if _, taken := g.conns[id]; taken {
		g.mu.Unlock()
		return ErrNameTaken
	}
	g.conns[id] = conn
	g.mu.Unlock()

	return g.JoinRoom(id, g.defaultRoom)
}

// JoinRoom moves id into roomName, creating the room on demand. If id is
// already a member of a room it is removed from it first, and both rooms'
// members receive fresh snapshots.
func (g *Registry) JoinRoom(id, roomName string) error {
	g.mu.Lock()

	target, ok := g.rooms[roomName]
	if !ok {
		target = room.New(roomName, g.catalog)
		g.rooms[roomName] = target
		log.Printf("registry: created room %q", roomName)
	}

	oldName, hadOld := g.playerRooms[id]
	if hadOld {
		if old, ok := g.rooms[oldName]; ok {
			old.RemovePlayer(id)
		}
	}

	if err := target.AddPlayer(id); err != nil {
		// Rejoining the room you were just removed from cannot collide;
		// any other membership error leaves the player roomless.
		delete(g.playerRooms, id)
		g.mu.Unlock()
		if hadOld {
			g.BroadcastRoomState(oldName)
		}
		return fmt.Errorf("join room %q: %w", roomName, err)
	}
	g.playerRooms[id] = roomName

	g.mu.Unlock()

	if hadOld && oldName != roomName {
		g.BroadcastRoomState(oldName)
	}
	g.BroadcastRoomState(roomName)
	return nil
}

// CreateRoom inserts an empty room.
func (g *Registry) CreateRoom(roomName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.rooms[roomName]; exists {
		return ErrRoomExists
	}
	g.rooms[roomName] = room.New(roomName, g.catalog)
	log.Printf("registry: created room %q", roomName)
	return nil
}

// ListRooms returns one consistent snapshot of every room's name, member
// count, and started flag.
func (g *Registry) ListRooms() []protocol.RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	infos := make([]protocol.RoomInfo, 0, len(g.rooms))
	for name, rm := range g.rooms {
		snap := rm.Snapshot()
		infos = append(infos, protocol.RoomInfo{
			Name:        name,
			Players:     len(snap.Players),
			GameStarted: snap.GameStarted,
		})
	}
	return infos
}

// LeaveRoom removes id from its current room and clears the room binding.
// A roomless id is a no-op without error. Remaining members are notified.
func (g *Registry) LeaveRoom(id string) {
	g.mu.Lock()
	roomName, ok := g.playerRooms[id]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.playerRooms, id)
	if rm, exists := g.rooms[roomName]; exists {
		rm.RemovePlayer(id)
	}
	g.mu.Unlock()

	g.BroadcastRoomState(roomName)
}

// Unregister is the implicit-leave teardown used by transports when a
// connection dies or a player explicitly leaves: the room membership and
// both bindings are dropped, and the former room is notified.
func (g *Registry) Unregister(id string) {
	g.LeaveRoom(id)

	g.mu.Lock()
	delete(g.conns, id)
	g.mu.Unlock()
}

// Registered reports whether id is bound to a live connection.
func (g *Registry) Registered(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.conns[id]
	return ok
}

// RoomOf returns the room id currently belongs to.
func (g *Registry) RoomOf(id string) (*room.Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	roomName, ok := g.playerRooms[id]
	if !ok {
		return nil, ErrNotInRoom
	}
	rm, exists := g.rooms[roomName]
	if !exists {
		return nil, ErrNotInRoom
	}
	return rm, nil
}

// RoomByName looks up a room by its name.
func (g *Registry) RoomByName(name string) (*room.Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rm, ok := g.rooms[name]
	return rm, ok
}

// RelayChat delivers a chat notice from id to every connected member of its
// room, stamped with the server-side time of relay. Delivery is
// best-effort: per-recipient failures are logged and isolated, and are not
// reported back to the sender.
func (g *Registry) RelayChat(id, text string) error {
	g.mu.RLock()
	roomName, ok := g.playerRooms[id]
	if !ok {
		g.mu.RUnlock()
		return ErrNotInRoom
	}
	recipients := g.roomRecipientsLocked(roomName)
	g.mu.RUnlock()

	msg := protocol.ChatMessage{
		Type:      protocol.TypeChatMessage,
		Sender:    id,
		Message:   text,
		Timestamp: time.Now().Format("15:04:05"),
	}
	g.deliver(roomName, msg, recipients)
	return nil
}

// BroadcastRoomState computes the room's snapshot once and sends it to
// every currently connected member. Per-recipient send failures are
// isolated exactly as for chat.
func (g *Registry) BroadcastRoomState(roomName string) {
	g.mu.RLock()
	rm, exists := g.rooms[roomName]
	if !exists {
		g.mu.RUnlock()
		return
	}
	recipients := g.roomRecipientsLocked(roomName)
	g.mu.RUnlock()

	snap := rm.Snapshot()
	state := protocol.RoomState{
		Type:          protocol.TypeRoomState,
		RoomName:      snap.RoomName,
		Players:       snap.Players,
		UsedCities:    snap.UsedCities,
		LastLetter:    snap.LastLetter,
		GameStarted:   snap.GameStarted,
		CurrentPlayer: snap.CurrentPlayer,
		UsedCount:     snap.UsedCount,
		Scores:        snap.Scores,
	}
	g.deliver(roomName, state, recipients)
}

// roomRecipientsLocked collects the live connections of a room's members.
// Callers must hold at least the read lock.
func (g *Registry) roomRecipientsLocked(roomName string) map[string]Conn {
	rm, exists := g.rooms[roomName]
	if !exists {
		return nil
	}

	recipients := make(map[string]Conn)
	for _, member := range rm.Snapshot().Players {
		if conn, ok := g.conns[member]; ok {
			recipients[member] = conn
		}
	}
	return recipients
}

// deliver fans msg out to recipients with no locks held. Each recipient's
// outcome is independent; failures are counted and logged, never
// propagated.
func (g *Registry) deliver(roomName string, msg any, recipients map[string]Conn) {
	failed := 0
	for member, conn := range recipients {
		if err := conn.Send(msg); err != nil {
			failed++
			log.Printf("registry: send to %s in room %q failed: %v", member, roomName, err)
		}
	}
	if failed > 0 {
		log.Printf("registry: room %q fan-out: %d/%d sends failed", roomName, failed, len(recipients))
	}
}
