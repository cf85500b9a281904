// Package stream fans live run snapshots out to websocket clients. With redis
// configured, snapshots travel through pub/sub so every instance serves them.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const channelPattern = "run:*:snapshots"

type Hub struct {
	redis    *redis.Client
	pubsub   *redis.PubSub
	log      *slog.Logger
	interval time.Duration

	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	limiters map[string]*rate.Limiter
}

type Client struct {
	RunID string
	Send  chan []byte
}

// NewHub publishes at most one snapshot per run every minInterval, except
// forced ones. A zero interval disables throttling.
func NewHub(redisClient *redis.Client, minInterval time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		log:      logger,
		interval: minInterval,
		clients:  map[string]map[*Client]struct{}{},
		limiters: map[string]*rate.Limiter{},
	}

	if redisClient != nil {
		ctx := context.Background()
		pubsub := redisClient.PSubscribe(ctx, channelPattern)
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Warn("redis subscribe failed, streaming locally only", "error", err)
			_ = pubsub.Close()
		} else {
			h.redis = redisClient
			h.pubsub = pubsub
			go h.subscribeRedis(pubsub)
		}
	}
	return h
}

func (h *Hub) Register(runID string) *Client {
	client := &Client{
		RunID: runID,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runID] == nil {
		h.clients[runID] = map[*Client]struct{}{}
	}
	h.clients[runID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if runClients, ok := h.clients[client.RunID]; ok {
		delete(runClients, client)
		if len(runClients) == 0 {
			delete(h.clients, client.RunID)
		}
	}
	close(client.Send)
}

func (h *Hub) ClientCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[runID])
}

// Publish encodes v as JSON and broadcasts it. Unforced snapshots inside the
// run's throttle window are dropped and Publish returns false.
func (h *Hub) Publish(runID string, v any, force bool) bool {
	if !force && !h.allow(runID) {
		return false
	}
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode snapshot failed", "run_id", runID, "error", err)
		return false
	}
	h.Broadcast(runID, payload)
	return true
}

// Forget drops per-run throttle state once a run ends.
func (h *Hub) Forget(runID string) {
	h.mu.Lock()
	delete(h.limiters, runID)
	h.mu.Unlock()
}

func (h *Hub) Broadcast(runID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(runID), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", "run_id", runID, "error", err)
	}
	h.deliver(runID, payload)
}

func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

func (h *Hub) allow(runID string) bool {
	if h.interval <= 0 {
		return true
	}
	h.mu.Lock()
	lim, ok := h.limiters[runID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(h.interval), 1)
		h.limiters[runID] = lim
	}
	h.mu.Unlock()
	return lim.Allow()
}

func (h *Hub) deliver(runID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[runID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		runID := runIDFromChannel(msg.Channel)
		if runID == "" {
			continue
		}
		h.deliver(runID, []byte(msg.Payload))
	}
}

func redisChannel(runID string) string {
	return "run:" + runID + ":snapshots"
}

func runIDFromChannel(ch string) string {
	// run:{id}:snapshots
	const prefix = "run:"
	const suffix = ":snapshots"
	if len(ch) <= len(prefix)+len(suffix) || !strings.HasPrefix(ch, prefix) || !strings.HasSuffix(ch, suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
