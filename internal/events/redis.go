package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis implements Broker over Redis pub/sub so several API replicas share
// one event stream.
type Redis struct {
	rdb *redis.Client
	mu  sync.Mutex
	ps  map[chan Event]*redis.PubSub
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedisFromClient(rdb), nil
}

func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, ps: map[chan Event]*redis.PubSub{}}
}

func (b *Redis) Subscribe(routeID string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, chanName(routeID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		log.Warn().Err(err).Str("route", routeID).Msg("redis subscribe")
	}
	b.mu.Lock()
	b.ps[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the underlying subscription; ch is closed once the
// reader goroutine drains.
func (b *Redis) Unsubscribe(routeID string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.ps[ch]
	delete(b.ps, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *Redis) Publish(routeID string, evt Event) {
	if evt.RouteID == "" {
		evt.RouteID = routeID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, topic := range topics(routeID) {
		if err := b.rdb.Publish(ctx, chanName(topic), data).Err(); err != nil {
			log.Warn().Err(err).Str("route", routeID).Str("type", evt.Type).Msg("redis publish")
		}
	}
}

func (b *Redis) Close() error { return b.rdb.Close() }

func chanName(routeID string) string { return "route:" + routeID }
