// Package tcpserver is the primary transport: a raw TCP listener speaking
// the newline-delimited JSON protocol.
//
// One goroutine accepts connections; every accepted connection gets its
// own Worker goroutine. A worker keeps a growable read buffer, extracts
// complete newline-terminated records as they arrive (partial reads are
// simply buffered until the terminator shows up), and dispatches each
// decoded command to the registry. Empty records are skipped; malformed
// ones are answered with an error envelope without closing the connection.
//
// A read error or peer close tears the worker down as an implicit leave:
// the bound player is removed from their room, the room's remaining
// members are notified, and the registry bindings are dropped.
package tcpserver
