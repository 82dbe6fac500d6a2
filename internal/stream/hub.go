package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/registry"

	"github.com/redis/go-redis/v9"
)

// Hub fans walk and activity facts out to websocket subscribers,
// keyed by dog name. With redis configured, facts also cross process
// boundaries through dogs:{name}:events channels.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Dog  string
	Send chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(dog string) *Client {
	client := &Client{
		Dog:  dog,
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[dog] == nil {
		h.clients[dog] = map[*Client]struct{}{}
	}
	h.clients[dog][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if dogClients, ok := h.clients[client.Dog]; ok {
		delete(dogClients, client)
		if len(dogClients) == 0 {
			delete(h.clients, client.Dog)
		}
	}
	close(client.Send)
}

// Publish satisfies registry.Sink. Subscriptions are keyed by the
// case-insensitive dog key; slow subscribers are skipped, never
// blocked on.
func (h *Hub) Publish(f registry.Fact) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("fact marshal error: %v", err)
		return
	}
	h.Broadcast(dog.Key(f.Dog), payload)
}

func (h *Hub) Broadcast(dog string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[dog]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(dog), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "dogs:*:events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		dog := dogFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[dog]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- []byte(msg.Payload):
			default:
			}
		}
	}
}

func redisChannel(dog string) string {
	return "dogs:" + dog + ":events"
}

func dogFromChannel(ch string) string {
	// dogs:{name}:events
	const prefix = "dogs:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
