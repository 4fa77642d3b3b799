// Package ws serves the game over WebSocket: one text message carries one envelope.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/quyht-dev/tienlen/internal/app"
	"github.com/quyht-dev/tienlen/internal/protocol"
	"github.com/quyht-dev/tienlen/internal/transport"
)

const writeTimeout = 5 * time.Second

// Handler upgrades requests and runs a read loop per connection.
type Handler struct {
	dispatcher *app.Dispatcher
	maxMessage int64
	queueSize  int
	log        *slog.Logger
}

func NewHandler(d *app.Dispatcher, maxMessage, queueSize int, logger *slog.Logger) *Handler {
	if maxMessage <= 0 {
		maxMessage = protocol.MaxFrameSize
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher: d,
		maxMessage: int64(maxMessage),
		queueSize:  queueSize,
		log:        logger.With("transport", "ws"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Debug("upgrade failed", "error", err)
		return
	}
	c.SetReadLimit(h.maxMessage)

	// Cancelling ctx makes the pending Read fail and tears the connection down.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := transport.NewOutbound(h.queueSize, func() error { cancel(); return nil }, h.log)
	sess := h.dispatcher.Connect(out)
	log := h.log.With("player", sess.ID, "remote", r.RemoteAddr)

	go func() {
		for {
			select {
			case data := <-out.Queue():
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := c.Write(wctx, websocket.MessageText, data)
				wcancel()
				if err != nil {
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
		if rec := recover(); rec != nil {
			log.Error("read loop panic", "panic", rec)
		}
		_ = out.Close()
		h.dispatcher.Disconnect(sess)
		_ = c.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusMessageTooBig {
				log.Warn("message too big")
			}
			return
		}
		h.dispatcher.HandleFrame(sess, data)
	}
}
