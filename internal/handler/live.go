package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the display may be served from another origin
	},
}

// LiveMessage is pushed to display clients on every tick.
type LiveMessage struct {
	Type     string              `json:"type"` // snapshot or idle
	Snapshot *domain.Snapshot    `json:"snapshot,omitempty"`
	Status   service.MeterStatus `json:"status"`
}

// LiveHandler streams snapshots over a websocket and accepts provider events
// from the same connection.
type LiveHandler struct {
	meterService *service.MeterService
	interval     time.Duration
	log          logrus.FieldLogger
}

// NewLiveHandler creates a new LiveHandler pushing a snapshot every interval.
func NewLiveHandler(meterService *service.MeterService, interval time.Duration, log logrus.FieldLogger) *LiveHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &LiveHandler{
		meterService: meterService,
		interval:     interval,
		log:          log,
	}
}

// Serve handles GET /v1/meter/live
func (h *LiveHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan service.ProviderEvent, 16)
	go service.NewPump(h.meterService, h.log).Run(ctx, events)
	go h.readLoop(ctx, cancel, conn, events)

	h.writeLoop(ctx, conn)
}

// readLoop decodes provider events sent by the client until the connection
// fails. It owns the events channel.
func (h *LiveHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events chan<- service.ProviderEvent) {
	defer close(events)
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		var ev service.ProviderEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			h.log.WithError(err).Debug("ignoring malformed live message")
			continue
		}
		if ev.Fix == nil && ev.Code == "" {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (h *LiveHandler) writeLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := h.push(ctx, conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := h.push(ctx, conn); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) push(ctx context.Context, conn *websocket.Conn) error {
	msg := LiveMessage{Type: "idle", Status: h.meterService.Status(ctx)}

	snap, err := h.meterService.Snapshot()
	switch {
	case err == nil:
		msg.Type = "snapshot"
		msg.Snapshot = &snap
	case !errors.Is(err, meter.ErrNoActiveRide):
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
