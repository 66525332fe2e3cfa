// Package room implements the per-room state machine of the word-chain
// game.
//
// A room moves between two states: Lobby (initial, and after every reset)
// and InProgress (after a successful Start). There is no terminal state; a
// room is never closed, only reset, and it keeps its membership across
// resets.
//
// Rules enforced here:
//   - only the current turn holder may submit a city;
//   - the city must exist in the catalog;
//   - a city is accepted at most once per room, case-insensitively, until
//     the next reset;
//   - the city must open with the continuation letter of the previous one.
//
// Each accepted move scores one point for its player and passes the turn
// to the next member in join order, circularly.
//
// Every operation runs under the room's own mutex, so concurrent Submit
// and RemovePlayer calls on the same room never interleave, and Snapshot
// never observes a half-applied move.
package room
