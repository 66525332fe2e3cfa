package registry

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/playcities/citiesgame/protocol"
)

// Dispatch translates one decoded command into registry and room
// operations. Every decodable command yields exactly one reply envelope:
// unknown commands and missing fields become error envelopes, and a panic
// in any handler is recovered into a generic one.
func (g *Registry) Dispatch(cmd *protocol.Command, conn Conn) (reply any) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("registry: panic handling %q from %q: %v", cmd.Command, cmd.PlayerName, p)
			reply = protocol.NewError("internal server error")
		}
	}()

	if err := cmd.Validate(); err != nil {
		return protocol.NewError(err.Error())
	}

	switch cmd.Command {
	case protocol.CmdJoin:
		return g.handleJoin(cmd, conn)
	case protocol.CmdJoinRoom:
		return g.handleJoinRoom(cmd)
	case protocol.CmdCreateRoom:
		return g.handleCreateRoom(cmd)
	case protocol.CmdListRooms:
		return protocol.RoomsList{Type: protocol.TypeRoomsList, Rooms: g.ListRooms()}
	case protocol.CmdStart:
		return g.handleStart(cmd)
	case protocol.CmdAddCity:
		return g.handleAddCity(cmd)
	case protocol.CmdReset:
		return g.handleReset(cmd)
	case protocol.CmdLeave:
		return g.handleLeave(cmd)
	case protocol.CmdChat:
		return g.handleChat(cmd)
	default:
		// Validate has already rejected unknown names; kept as a guard for
		// commands added to the protocol table but not wired here.
		return protocol.NewError(fmt.Sprintf("unknown command %q", cmd.Command))
	}
}

func (g *Registry) handleJoin(cmd *protocol.Command, conn Conn) any {
	if err := g.Register(cmd.PlayerName, conn); err != nil {
		return protocol.NewError(err.Error())
	}

	log.Printf("registry: player %q joined", cmd.PlayerName)
	msg := fmt.Sprintf("Player %s joined. Joined room '%s'", cmd.PlayerName, g.defaultRoom)
	return protocol.NewSuccess(msg, g.defaultRoom)
}

func (g *Registry) handleJoinRoom(cmd *protocol.Command) any {
	if !g.Registered(cmd.PlayerName) {
		return protocol.NewError(ErrNotRegistered.Error())
	}
	if err := g.JoinRoom(cmd.PlayerName, cmd.RoomName); err != nil {
		return protocol.NewError(err.Error())
	}

	msg := fmt.Sprintf("Joined room '%s'", cmd.RoomName)
	return protocol.NewSuccess(msg, cmd.RoomName)
}

func (g *Registry) handleCreateRoom(cmd *protocol.Command) any {
	if !g.Registered(cmd.PlayerName) {
		return protocol.NewError(ErrNotRegistered.Error())
	}
	if err := g.CreateRoom(cmd.RoomName); err != nil {
		return protocol.NewError(err.Error())
	}
	if err := g.JoinRoom(cmd.PlayerName, cmd.RoomName); err != nil {
		return protocol.NewError(err.Error())
	}

	msg := fmt.Sprintf("Room '%s' created. Joined room '%s'", cmd.RoomName, cmd.RoomName)
	return protocol.NewSuccess(msg, cmd.RoomName)
}

func (g *Registry) handleStart(cmd *protocol.Command) any {
	rm, err := g.RoomOf(cmd.PlayerName)
	if err != nil {
		return protocol.NewError(err.Error())
	}

	res, err := rm.Start(cmd.PlayerName, cmd.City)
	if err != nil {
		return protocol.NewError(err.Error())
	}

	g.BroadcastRoomState(rm.Name())
	msg := fmt.Sprintf("Game started! Next turn: %s. Letter: '%s'",
		res.NextPlayer, strings.ToUpper(res.NextLetter))
	return protocol.NewSuccess(msg, "")
}

func (g *Registry) handleAddCity(cmd *protocol.Command) any {
	rm, err := g.RoomOf(cmd.PlayerName)
	if err != nil {
		return protocol.NewError(err.Error())
	}

	res, err := rm.Submit(cmd.PlayerName, cmd.City)
	if err != nil {
		return protocol.NewError(err.Error())
	}

	g.BroadcastRoomState(rm.Name())
	msg := fmt.Sprintf("Accepted! Next turn: %s. Letter: '%s'",
		res.NextPlayer, strings.ToUpper(res.NextLetter))
	return protocol.NewSuccess(msg, "")
}

func (g *Registry) handleReset(cmd *protocol.Command) any {
	rm, err := g.RoomOf(cmd.PlayerName)
	if err != nil {
		return protocol.NewError(err.Error())
	}

	rm.Reset()
	g.BroadcastRoomState(rm.Name())
	return protocol.NewSuccess("Game reset", "")
}

func (g *Registry) handleLeave(cmd *protocol.Command) any {
	if !g.Registered(cmd.PlayerName) {
		return protocol.NewError(ErrNotRegistered.Error())
	}

	g.Unregister(cmd.PlayerName)
	log.Printf("registry: player %q left", cmd.PlayerName)
	return protocol.NewSuccess("Left the game", "")
}

func (g *Registry) handleChat(cmd *protocol.Command) any {
	if err := g.RelayChat(cmd.PlayerName, cmd.Message); err != nil {
		if errors.Is(err, ErrNotInRoom) {
			return protocol.NewError(ErrNotInRoom.Error())
		}
		return protocol.NewError(err.Error())
	}
	return protocol.NewSuccess("Message sent", "")
}
