// Package api provides a read-only REST view of the game: room listings
// and room state, plus a health check. It never mutates game state; all
// play goes through the TCP and websocket transports.
package api
