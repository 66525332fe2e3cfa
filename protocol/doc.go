// Package protocol defines the wire format spoken between clients and the
// cities game server.
//
// Every message is a single self-contained JSON object terminated by one
// newline character. Inbound messages are command envelopes (Command);
// outbound messages are one of Success, Error, RoomState, RoomsList, or
// ChatMessage, each tagged by its "type" field.
//
// The package also provides the framing helper NextRecord used by stream
// transports to split a growable read buffer into complete records, and
// Command.Validate, which checks command names and required fields before
// any game state is touched.
//
// Usage:
//
//	cmd, err := protocol.DecodeCommand(line)
//	if err != nil {
//		// malformed record: reply with an error envelope, keep the
//		// connection open
//	}
//	if err := cmd.Validate(); err != nil {
//		// unknown command or missing field
//	}
//
//	reply, _ := protocol.Encode(protocol.NewSuccess("joined", "Основная"))
//	conn.Write(reply)
package protocol
