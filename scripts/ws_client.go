// Package main watches route events over the API WebSocket and prints them.
//
//	go run ./scripts -addr localhost:8080 -route '*'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "API host:port")
	route := flag.String("route", "*", "route id to watch, * for all routes")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/v1/ws"}
	c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", u.String()).Msg("dial")
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal().Err(err).Msg("init")
	}
	pl, _ := json.Marshal(map[string]string{"routeId": *route})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal().Err(err).Msg("subscribe")
	}
	log.Info().Str("route", *route).Msg("watching")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Warn().Err(err).Msg("read")
				return
			}
			switch m.Type {
			case "next":
				var evt struct {
					Type    string         `json:"type"`
					RouteID string         `json:"routeId"`
					Data    map[string]any `json:"data"`
				}
				_ = json.Unmarshal(m.Payload, &evt)
				log.Info().Str("type", evt.Type).Str("route", evt.RouteID).Interface("data", evt.Data).Msg("event")
			default:
				log.Debug().Str("type", m.Type).RawJSON("payload", nonEmpty(m.Payload)).Msg("frame")
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = c.WriteJSON(wsMessage{Type: "complete", ID: "1"})
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}

func nonEmpty(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
