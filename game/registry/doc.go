// Package registry owns the server-wide directory of rooms and players.
//
// It tracks three maps: room name → room, player → room name, and player →
// live connection. A player identifier is unique across the server while
// connected and is bound to exactly one connection and at most one room.
//
// Rooms are created lazily on first reference and never destroyed; an
// emptied room resets to the Lobby state and waits for new members.
//
// Dispatch is the single entry point for transports: one decoded command
// in, exactly one reply envelope out, with room-state broadcasts fanned
// out to the affected room's members along the way.
//
// Locking: the directory mutex is acquired before any room mutex and both
// are released before any network write, so a slow or dead recipient can
// never stall an unrelated room or the directory. Per-recipient send
// failures during fan-out are counted and logged, never propagated.
package registry
