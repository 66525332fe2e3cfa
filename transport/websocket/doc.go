// Package websocket serves the game protocol over WebSocket connections.
//
// Each connection is one player seat. Inbound text messages carry the same
// JSON command envelopes as the TCP transport, one envelope per message,
// and every reply and room broadcast goes back as a text message. The
// package implements:
//   - Connection upgrade and per-client read/write pumps
//   - Command dispatch through the shared room registry
//   - Implicit leave when the connection drops
package websocket
