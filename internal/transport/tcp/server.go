// Package tcp serves the game over raw TCP with 4-byte length-prefixed JSON frames.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/quyht-dev/tienlen/internal/app"
	"github.com/quyht-dev/tienlen/internal/protocol"
	"github.com/quyht-dev/tienlen/internal/transport"
)

// Server accepts connections and runs one read loop goroutine per connection.
type Server struct {
	dispatcher *app.Dispatcher
	maxFrame   int
	queueSize  int
	log        *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(d *app.Dispatcher, maxFrame, queueSize int, logger *slog.Logger) *Server {
	if maxFrame <= 0 {
		maxFrame = protocol.MaxFrameSize
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: d,
		maxFrame:   maxFrame,
		queueSize:  queueSize,
		log:        logger.With("transport", "tcp"),
		conns:      make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. On cancellation it closes the listener and
// every open connection, then waits for their read loops to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		if ctx.Err() != nil {
			_ = conn.Close()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	fw := protocol.NewFrameWriter(conn)
	out := transport.NewOutbound(s.queueSize, conn.Close, s.log)
	sess := s.dispatcher.Connect(out)
	log := s.log.With("player", sess.ID, "remote", conn.RemoteAddr().String())

	go func() {
		for {
			select {
			case data := <-out.Queue():
				if err := fw.WriteFrame(data); err != nil {
					log.Debug("write failed", "error", err)
					_ = out.Close()
					return
				}
			case <-out.Done():
				return
			}
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("read loop panic", "panic", r)
		}
		_ = out.Close()
		s.dispatcher.Disconnect(sess)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		body, err := protocol.ReadFrame(conn, s.maxFrame)
		if err != nil {
			if errors.Is(err, protocol.ErrBadFrameLength) {
				log.Warn("bad frame", "error", err)
				if data, encErr := protocol.Encode(protocol.TypeError, nil, protocol.ErrorPayload{
					Code:    protocol.CodeBadFrame,
					Message: err.Error(),
				}); encErr == nil {
					_ = fw.WriteFrame(data)
				}
			}
			return
		}
		s.dispatcher.HandleFrame(sess, body)
	}
}
