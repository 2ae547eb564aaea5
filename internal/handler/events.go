package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/gorilla/websocket"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// EventsHandler serves the event history and the live event stream.
type EventsHandler struct {
	log      *events.Log
	hub      *events.Hub
	upgrader websocket.Upgrader
	done     <-chan struct{}
	logger   *slog.Logger
}

// NewEventsHandler creates a new EventsHandler. Open streams are closed when
// done is closed; a nil done keeps them open until the client leaves.
func NewEventsHandler(log *events.Log, hub *events.Hub, done <-chan struct{}, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		log:    log,
		hub:    hub,
		done:   done,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// eventListResponse is the JSON response for GET /events.
type eventListResponse struct {
	Events []events.Message `json:"events"`
	Next   uint64           `json:"next"`
}

// List handles GET /events?after=seq&limit=n.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if s := r.URL.Query().Get("after"); s != "" {
		var err error
		after, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "after must be a non-negative integer")
			return
		}
	}
	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil {
		mapError(w, err)
		return
	}
	if limit < 1 || limit > maxEventLimit {
		WriteError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 1000")
		return
	}

	evs := h.log.After(after, limit)
	msgs := make([]events.Message, len(evs))
	next := after
	for i, ev := range evs {
		msgs[i] = events.Encode(ev)
		next = ev.Seq
	}
	WriteJSON(w, http.StatusOK, eventListResponse{Events: msgs, Next: next})
}

// Stream handles GET /events/stream, upgrading to a websocket that receives
// every new event, or only those of one trade when trade_id is given.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var filter func(domain.Event) bool
	if s := r.URL.Query().Get("trade_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "trade_id must be a non-negative integer")
			return
		}
		filter = func(ev domain.Event) bool {
			return ev.Type.TradeScoped() && ev.TradeID == id
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sub := h.hub.Subscribe(filter)
	closed := make(chan struct{})
	defer func() {
		sub.Close()
		conn.Close()
		<-closed
	}()

	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("event stream closed", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscriber fell behind"))
				return
			}
			if err := conn.WriteJSON(events.Encode(ev)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-h.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
