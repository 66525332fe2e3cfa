package tcpserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/playcities/citiesgame/game/registry"
	"github.com/playcities/citiesgame/protocol"
)

const (
	// readChunkSize is the size of a single read from the connection.
	readChunkSize = 1024

	// maxRecordSize bounds how much unterminated input a peer may buffer
	// server-side before the connection is dropped.
	maxRecordSize = 64 * 1024
)

// Worker owns one client connection: it reads the stream, frames it into
// newline-terminated records, dispatches decoded commands, and writes
// replies and broadcasts. Writes are serialized by a mutex because
// registry fan-outs and command replies land on the same connection
// concurrently.
type Worker struct {
	id   string
	conn net.Conn
	reg  *registry.Registry

	writeMu sync.Mutex

	mu     sync.Mutex
	player string
}

// NewWorker wraps an accepted connection.
func NewWorker(conn net.Conn, reg *registry.Registry) *Worker {
	return &Worker{
		id:   uuid.NewString(),
		conn: conn,
		reg:  reg,
	}
}

// Send implements registry.Conn: one envelope, one newline-terminated
// record.
func (w *Worker) Send(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_, err = w.conn.Write(data)
	return err
}

// Run is the worker's read loop. It returns when the peer closes, a read
// fails, or the peer overruns the record size limit; teardown treats any
// of those as an implicit leave.
func (w *Worker) Run() {
	defer w.teardown()

	log.Printf("tcpserver: worker %s: connection from %s", w.id, w.conn.RemoteAddr())

	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		n, err := w.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = w.drain(buf)

			if len(buf) > maxRecordSize {
				log.Printf("tcpserver: worker %s: record exceeds %d bytes, dropping connection", w.id, maxRecordSize)
				w.Send(protocol.NewError("message too large"))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("tcpserver: worker %s: read error: %v", w.id, err)
			}
			return
		}
	}
}

// drain processes every complete record currently in buf and returns the
// unconsumed remainder.
func (w *Worker) drain(buf []byte) []byte {
	for {
		record, rest, ok := protocol.NextRecord(buf)
		if !ok {
			return buf
		}
		buf = rest
		w.handleRecord(record)
	}
}

// handleRecord decodes one framed record and dispatches it. Malformed
// records get an error reply and the connection stays open.
func (w *Worker) handleRecord(record []byte) {
	if len(bytes.TrimSpace(record)) == 0 {
		return
	}

	cmd, err := protocol.DecodeCommand(record)
	if err != nil {
		log.Printf("tcpserver: worker %s: malformed record: %v", w.id, err)
		if sendErr := w.Send(protocol.NewError("malformed message")); sendErr != nil {
			log.Printf("tcpserver: worker %s: reply failed: %v", w.id, sendErr)
		}
		return
	}

	// One identity per connection: a second join would orphan the first
	// name in the registry, since teardown unbinds only one player.
	if cmd.Command == protocol.CmdJoin {
		if bound := w.boundPlayer(); bound != "" {
			if err := w.Send(protocol.NewError(fmt.Sprintf("connection already joined as %s", bound))); err != nil {
				log.Printf("tcpserver: worker %s: reply failed: %v", w.id, err)
			}
			return
		}
	}

	reply := w.reg.Dispatch(cmd, w)
	w.trackBinding(cmd, reply)

	if err := w.Send(reply); err != nil {
		log.Printf("tcpserver: worker %s: reply failed: %v", w.id, err)
	}
}

// boundPlayer returns the player this connection currently speaks for, or
// "" before a successful join and after a leave.
func (w *Worker) boundPlayer() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.player
}

// trackBinding remembers which player this connection speaks for, so
// teardown can run the implicit leave.
func (w *Worker) trackBinding(cmd *protocol.Command, reply any) {
	if _, ok := reply.(protocol.Success); !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch cmd.Command {
	case protocol.CmdJoin:
		w.player = cmd.PlayerName
	case protocol.CmdLeave:
		w.player = ""
	}
}

// teardown closes the connection and, if a player was bound to it, removes
// them from their room and drops the registry bindings. The peer is gone,
// so no reply is attempted.
func (w *Worker) teardown() {
	w.conn.Close()

	w.mu.Lock()
	player := w.player
	w.player = ""
	w.mu.Unlock()

	if player != "" {
		w.reg.Unregister(player)
		log.Printf("tcpserver: worker %s: player %q disconnected", w.id, player)
	} else {
		log.Printf("tcpserver: worker %s: disconnected", w.id)
	}
}
