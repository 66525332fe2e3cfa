package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/playcities/citiesgame/game/registry"
)

// Server accepts TCP connections and runs one Worker per connection.
type Server struct {
	addr     string
	registry *registry.Registry

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a server that will listen on addr ("host:port").
func New(addr string, reg *registry.Registry) *Server {
	return &Server{addr: addr, registry: reg}
}

// Listen binds the listening socket. Separate from Serve so callers can
// learn the bound address before accepting.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	log.Printf("tcpserver: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, spawning one worker
// goroutine per connection. It waits for in-flight workers on return.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("tcpserver: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Printf("tcpserver: accept error: %v", err)
			continue
		}

		worker := NewWorker(conn, s.registry)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			worker.Run()
		}()
	}

	s.wg.Wait()
	log.Printf("tcpserver: stopped")
	return nil
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
