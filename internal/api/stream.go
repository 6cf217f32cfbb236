package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"routedesk/internal/events"
)

var heartbeatEvery = 15 * time.Second

// RouteEventsHandler handles GET /v1/routes/{id}/events/stream (SSE).
// id "*" streams every route.
func (s *Server) RouteEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != events.AllRoutes {
		if _, err := s.Store.GetRoute(r.Context(), id); err != nil {
			writeError(w, r, "Route not found", err)
			return
		}
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"routeId\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// WSMessage is the frame exchanged on /v1/ws. Clients send connection_init,
// subscribe (payload {"routeId": ...}), complete and ping; the server answers
// with connection_ack, next (payload is the event), error, complete and pong.
type WSMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribe struct {
	RouteID string `json:"routeId"`
}

// EventsWSHandler handles GET /v1/ws
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(m WSMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}
	errPayload := func(msg string) json.RawMessage {
		b, _ := json.Marshal(map[string]string{"message": msg})
		return b
	}

	type sub struct {
		routeID string
		ch      chan events.Event
	}
	subs := map[string]sub{}
	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		for id, s0 := range subs {
			s.Broker.Unsubscribe(s0.routeID, s0.ch)
			delete(subs, id)
		}
		wg.Wait()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws read")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch msg.Type {
		case "connection_init":
			_ = write(WSMessage{Type: "connection_ack"})
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(WSMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(WSMessage{Type: "pong"})
		case "pong":
		case "subscribe":
			var pl wsSubscribe
			_ = json.Unmarshal(msg.Payload, &pl)
			if msg.ID == "" || pl.RouteID == "" {
				_ = write(WSMessage{Type: "error", ID: msg.ID, Payload: errPayload("id and routeId required")})
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				_ = write(WSMessage{Type: "error", ID: msg.ID, Payload: errPayload("subscription id in use")})
				continue
			}
			ch := s.Broker.Subscribe(pl.RouteID)
			subs[msg.ID] = sub{routeID: pl.RouteID, ch: ch}
			wg.Add(1)
			go func(id string, c chan events.Event) {
				defer wg.Done()
				for evt := range c {
					payload, _ := json.Marshal(evt)
					if err := write(WSMessage{Type: "next", ID: id, Payload: payload}); err != nil {
						return
					}
				}
				_ = write(WSMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.routeID, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			_ = write(WSMessage{Type: "error", ID: msg.ID, Payload: errPayload("unknown message type " + msg.Type)})
		}
	}
}
