package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/playcities/citiesgame/game/catalog"
	"github.com/playcities/citiesgame/game/registry"
)

// Server exposes read-only inspection tools over MCP. It observes the same
// registry the TCP and websocket transports mutate, so a connected tool
// always sees live game state. No tool mutates anything; play happens over
// the game protocol.
type Server struct {
	registry  *registry.Registry
	catalog   *catalog.Catalog
	mcpServer *server.MCPServer
}

// NewServer creates the MCP inspection server.
func NewServer(reg *registry.Registry, cat *catalog.Catalog) *Server {
	s := &Server{
		registry: reg,
		catalog:  cat,
	}

	s.initMCPServer()
	return s
}

func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"Cities Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Cities Game - MCP Interface

A turn-based word-chain game: players take turns naming cities, and each
city must start with the continuation letter of the previous one.

AVAILABLE TOOLS:
- list_rooms: List all rooms with player counts and game status
- room_state: Full state of one room (players, chain, turn, scores)
- check_city: Look up a city in the catalog and its continuation letter

All tools are read-only. Gameplay happens over the TCP/WebSocket protocol.`),
	)

	s.registerTools()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all game rooms with player counts and game status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListRooms)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Get the full state of a room: players, used cities, current turn and scores",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the room to inspect",
				},
			},
			Required: []string{"room_name"},
		},
	}, s.handleRoomState)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "check_city",
		Description: "Check whether a city is in the catalog and what letter the next city would have to start with",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"city": map[string]interface{}{
					"type":        "string",
					"description": "City name to look up",
				},
			},
			Required: []string{"city"},
		},
	}, s.handleCheckCity)
}

// GetMCPServer returns the underlying MCP server for serving.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks, serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Tool handlers

func (s *Server) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := s.registry.ListRooms()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	var b strings.Builder
	fmt.Fprintf(&b, "Rooms (%d):\n\n", len(infos))
	for _, info := range infos {
		status := "lobby"
		if info.GameStarted {
			status = "in progress"
		}
		fmt.Fprintf(&b, "- %s: %d player(s), %s\n", info.Name, info.Players, status)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleRoomState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	roomName, _ := args["room_name"].(string)
	if roomName == "" {
		return mcp.NewToolResultError("room_name is required"), nil
	}

	rm, ok := s.registry.RoomByName(roomName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("room %q not found", roomName)), nil
	}
	snap := rm.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", snap.RoomName)
	fmt.Fprintf(&b, "Players: %s\n", strings.Join(snap.Players, ", "))
	if snap.GameStarted {
		fmt.Fprintf(&b, "Game: in progress\n")
		fmt.Fprintf(&b, "Current turn: %s\n", snap.CurrentPlayer)
		fmt.Fprintf(&b, "Next letter: %s\n", snap.LastLetter)
	} else {
		fmt.Fprintf(&b, "Game: lobby\n")
	}
	fmt.Fprintf(&b, "Used cities (%d): %s\n", snap.UsedCount, strings.Join(snap.UsedCities, " -> "))
	if len(snap.Scores) > 0 {
		names := make([]string, 0, len(snap.Scores))
		for name := range snap.Scores {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("Scores:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %d\n", name, snap.Scores[name])
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleCheckCity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	city, _ := args["city"].(string)
	if city == "" {
		return mcp.NewToolResultError("city is required"), nil
	}

	if !s.catalog.Exists(city) {
		return mcp.NewToolResultText(fmt.Sprintf("%q is not in the catalog.", city)), nil
	}

	letter := s.catalog.ContinuationLetter(city)
	return mcp.NewToolResultText(fmt.Sprintf(
		"%q is a valid city. The next city must start with %q.", city, strings.ToUpper(letter))), nil
}
