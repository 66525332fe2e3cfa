// Package mcp exposes the game over the Model Context Protocol.
//
// The server offers read-only inspection tools backed directly by the room
// registry: listing rooms, dumping a room's state, and checking a city name
// against the catalog. It is meant for observing live games from MCP-aware
// tooling; all gameplay still goes through the TCP or websocket transports.
package mcp
