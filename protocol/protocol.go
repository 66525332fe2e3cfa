package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope type discriminators. Every message on the wire carries exactly
// one of these in its "type" field.
const (
	TypeCommand     = "command"
	TypeSuccess     = "success"
	TypeError       = "error"
	TypeRoomState   = "room_state"
	TypeRoomsList   = "rooms_list"
	TypeChatMessage = "chat_message"
)

// Command names accepted from clients.
const (
	CmdJoin       = "join"
	CmdJoinRoom   = "join_room"
	CmdCreateRoom = "create_room"
	CmdListRooms  = "list_rooms"
	CmdStart      = "start"
	CmdAddCity    = "add_city"
	CmdReset      = "reset"
	CmdLeave      = "leave"
	CmdChat       = "chat"
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownCommand = errors.New("unknown command")
)

// MissingFieldError reports a command that arrived without one of its
// required fields.
type MissingFieldError struct {
	Command string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("command %q requires field %q", e.Command, e.Field)
}

// Command is the inbound envelope. Fields beyond Command and PlayerName are
// command-specific; Validate reports which ones a given command requires.
type Command struct {
	Type       string `json:"type"`
	Command    string `json:"command"`
	PlayerName string `json:"player_name"`
	RoomName   string `json:"room_name,omitempty"`
	City       string `json:"city,omitempty"`
	Message    string `json:"message,omitempty"`
}

// requiredFields lists the command-specific fields each command must carry.
// player_name is required by every command and checked separately.
var requiredFields = map[string][]string{
	CmdJoin:       {},
	CmdJoinRoom:   {"room_name"},
	CmdCreateRoom: {"room_name"},
	CmdListRooms:  {},
	CmdStart:      {"city"},
	CmdAddCity:    {"city"},
	CmdReset:      {},
	CmdLeave:      {},
	CmdChat:       {"message"},
}

// Validate checks that the command is known and carries every field it
// requires. It does not inspect game state.
func (c *Command) Validate() error {
	fields, ok := requiredFields[c.Command]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Command)
	}

	if c.PlayerName == "" {
		return &MissingFieldError{Command: c.Command, Field: "player_name"}
	}

	for _, f := range fields {
		var present bool
		switch f {
		case "room_name":
			present = c.RoomName != ""
		case "city":
			present = c.City != ""
		case "message":
			present = c.Message != ""
		}
		if !present {
			return &MissingFieldError{Command: c.Command, Field: f}
		}
	}

	return nil
}

// Success is the positive reply to a command.
type Success struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	RoomName string `json:"room_name,omitempty"`
}

// Error is the negative reply to a command. The connection stays open.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RoomState is the broadcast snapshot of a single room.
type RoomState struct {
	Type          string         `json:"type"`
	RoomName      string         `json:"room_name"`
	Players       []string       `json:"players"`
	UsedCities    []string       `json:"used_cities"`
	LastLetter    string         `json:"last_letter"`
	GameStarted   bool           `json:"game_started"`
	CurrentPlayer string         `json:"current_player"`
	UsedCount     int            `json:"used_count"`
	Scores        map[string]int `json:"scores"`
}

// RoomInfo is one entry of a RoomsList.
type RoomInfo struct {
	Name        string `json:"name"`
	Players     int    `json:"players"`
	GameStarted bool   `json:"game_started"`
}

// RoomsList is the reply to a list_rooms command.
type RoomsList struct {
	Type  string     `json:"type"`
	Rooms []RoomInfo `json:"rooms"`
}

// ChatMessage is relayed to every member of the sender's room.
type ChatMessage struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewSuccess builds a success envelope. roomName may be empty.
func NewSuccess(message, roomName string) Success {
	return Success{Type: TypeSuccess, Message: message, RoomName: roomName}
}

// NewError builds an error envelope.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// Encode marshals one envelope and appends the record terminator. JSON
// string escaping guarantees the body itself never contains a raw newline.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeCommand parses one record into a command envelope. Surrounding
// whitespace is ignored. Returns ErrMalformed for anything that is not a
// JSON object.
func DecodeCommand(record []byte) (*Command, error) {
	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return nil, ErrMalformed
	}

	var cmd Command
	if err := json.Unmarshal(record, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &cmd, nil
}

// NextRecord extracts the first newline-terminated record from buf. It
// returns the record without its terminator, the remaining buffer, and
// whether a complete record was present.
func NextRecord(buf []byte) (record, rest []byte, ok bool) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, buf, false
	}
	return buf[:i], buf[i+1:], true
}
