package room

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/playcities/citiesgame/game/catalog"
)

var (
	ErrAlreadyStarted = errors.New("game already started")
	ErrNotStarted     = errors.New("game not started")
	ErrInvalidCity    = errors.New("city not found in the catalog")
	ErrAlreadyUsed    = errors.New("city already used")
	ErrAlreadyMember  = errors.New("player already in the room")
	ErrNotMember      = errors.New("player not in the room")
)

// NotYourTurnError reports a submission by somebody other than the current
// turn holder.
type NotYourTurnError struct {
	Current string
}

func (e *NotYourTurnError) Error() string {
	return fmt.Sprintf("it is %s's turn now", e.Current)
}

// WrongLetterError reports a submission that does not open with the room's
// continuation letter.
type WrongLetterError struct {
	Letter string
}

func (e *WrongLetterError) Error() string {
	return fmt.Sprintf("city must start with the letter '%s'", strings.ToUpper(e.Letter))
}

// MoveResult describes an accepted move: whose turn is next and which
// letter their city must open with.
type MoveResult struct {
	NextPlayer string
	NextLetter string
}

// Snapshot is a consistent read of a room's state.
type Snapshot struct {
	RoomName      string
	Players       []string
	UsedCities    []string
	LastLetter    string
	GameStarted   bool
	CurrentPlayer string
	UsedCount     int
	Scores        map[string]int
}

// Room is a single game session: a player rotation, the accepted city
// chain, and per-player scores. All mutating operations and Snapshot run
// under the room's own mutex.
//
// The turn holder is tracked by player identity rather than rotation index,
// so removing a member never silently shifts whose turn it is.
type Room struct {
	name    string
	catalog *catalog.Catalog

	mu         sync.Mutex
	players    []string
	usedCities []string
	usedKeys   map[string]struct{}
	lastLetter string
	started    bool
	current    string
	scores     map[string]int
}

// New creates an empty room in the Lobby state.
func New(name string, cat *catalog.Catalog) *Room {
	return &Room{
		name:     name,
		catalog:  cat,
		usedKeys: make(map[string]struct{}),
		scores:   make(map[string]int),
	}
}

// Name returns the room's name.
func (r *Room) Name() string {
	return r.name
}

// AddPlayer appends id to the rotation. Joining mid-game appends at the end
// without altering whose turn it is.
func (r *Room) AddPlayer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isMemberLocked(id) {
		return ErrAlreadyMember
	}
	r.players = append(r.players, id)
	return nil
}

// RemovePlayer deletes id from the rotation. If the game is in progress and
// id holds the turn, the turn passes to the next member first. An emptied
// room is reset back to the Lobby state; membership-independent state such
// as scores of departed players survives until the next reset.
func (r *Room) RemovePlayer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isMemberLocked(id) {
		return ErrNotMember
	}

	if r.started && r.current == id {
		r.current = r.nextAfterLocked(id)
	}

	for i, p := range r.players {
		if p == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}

	if len(r.players) == 0 {
		r.resetLocked()
	}
	return nil
}

// Start opens the chain with the first city. Valid only in the Lobby state
// and only for a room member. On success the room transitions to
// InProgress, the starter scores a point, and the turn passes to the player
// after the starter in join order.
func (r *Room) Start(starter, city string) (*MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil, ErrAlreadyStarted
	}
	if !r.isMemberLocked(starter) {
		return nil, ErrNotMember
	}
	if !r.catalog.Exists(city) {
		return nil, ErrInvalidCity
	}
	if r.isUsedLocked(city) {
		// Unreachable on the first move; kept for symmetry with Submit.
		return nil, ErrAlreadyUsed
	}

	r.acceptLocked(city)
	r.started = true
	r.current = r.nextAfterLocked(starter)
	r.scores[starter]++

	return &MoveResult{NextPlayer: r.current, NextLetter: r.lastLetter}, nil
}

// Submit plays one city for the current turn holder. Checks run in order:
// turn ownership, catalog membership, repeat, then the first-letter rule.
// On success the chain grows, the submitter scores a point, and the turn
// advances circularly.
func (r *Room) Submit(player, city string) (*MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil, ErrNotStarted
	}
	if player != r.current {
		return nil, &NotYourTurnError{Current: r.current}
	}
	if !r.catalog.Exists(city) {
		return nil, ErrInvalidCity
	}
	if r.isUsedLocked(city) {
		return nil, ErrAlreadyUsed
	}
	if catalog.FirstLetter(city) != r.lastLetter {
		return nil, &WrongLetterError{Letter: r.lastLetter}
	}

	r.acceptLocked(city)
	r.current = r.nextAfterLocked(player)
	r.scores[player]++

	return &MoveResult{NextPlayer: r.current, NextLetter: r.lastLetter}, nil
}

// Reset returns the room to the Lobby state: chain, continuation letter,
// turn holder, and scores are cleared; membership is untouched.
func (r *Room) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

// Snapshot returns a consistent copy of the room's state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]string, len(r.players))
	copy(players, r.players)

	cities := make([]string, len(r.usedCities))
	copy(cities, r.usedCities)

	scores := make(map[string]int, len(r.scores))
	for k, v := range r.scores {
		scores[k] = v
	}

	return Snapshot{
		RoomName:      r.name,
		Players:       players,
		UsedCities:    cities,
		LastLetter:    r.lastLetter,
		GameStarted:   r.started,
		CurrentPlayer: r.current,
		UsedCount:     len(r.usedCities),
		Scores:        scores,
	}
}

// PlayerCount returns the current rotation size.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Started reports whether the game is in progress.
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Room) isMemberLocked(id string) bool {
	for _, p := range r.players {
		if p == id {
			return true
		}
	}
	return false
}

func (r *Room) isUsedLocked(city string) bool {
	_, ok := r.usedKeys[strings.ToLower(strings.TrimSpace(city))]
	return ok
}

func (r *Room) acceptLocked(city string) {
	r.usedCities = append(r.usedCities, city)
	r.usedKeys[strings.ToLower(strings.TrimSpace(city))] = struct{}{}
	r.lastLetter = r.catalog.ContinuationLetter(city)
}

// nextAfterLocked returns the member following id in join order,
// circularly. The rotation must be non-empty and contain id.
func (r *Room) nextAfterLocked(id string) string {
	for i, p := range r.players {
		if p == id {
			return r.players[(i+1)%len(r.players)]
		}
	}
	return r.players[0]
}

func (r *Room) resetLocked() {
	r.usedCities = nil
	r.usedKeys = make(map[string]struct{})
	r.lastLetter = ""
	r.started = false
	r.current = ""
	r.scores = make(map[string]int)
}
