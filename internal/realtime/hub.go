package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const (
	outboundBuffer    = 32
	heartbeatInterval = 15 * time.Second
)

// SSEClient is one open event stream. Outbound is closed by CloseClient.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage

	seq  uint64
	done chan struct{}
	once sync.Once
	log  *logger.Logger
}

// SSEHub fans pipeline and job events out to the streams subscribed to each channel.
type SSEHub struct {
	mu     sync.RWMutex
	log    *logger.Logger
	subs   map[string]map[*SSEClient]struct{}
	online int
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:  log.With("component", "SSEHub"),
		subs: make(map[string]map[*SSEClient]struct{}),
	}
}

func (hub *SSEHub) NewSSEClient(userID uuid.UUID) *SSEClient {
	id := uuid.New()
	hub.mu.Lock()
	hub.online++
	hub.mu.Unlock()
	return &SSEClient{
		ID:       id,
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan SSEMessage, outboundBuffer),
		done:     make(chan struct{}),
		log:      hub.log.With("client_id", id),
	}
}

// Subscribe opens a client on the user's own channel.
func (hub *SSEHub) Subscribe(userID uuid.UUID) *SSEClient {
	c := hub.NewSSEClient(userID)
	hub.AddChannel(c, userID.String())
	return c
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	client.Channels[channel] = true
	set, ok := hub.subs[channel]
	if !ok {
		set = make(map[*SSEClient]struct{})
		hub.subs[channel] = set
	}
	set[client] = struct{}{}
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.detach(client)
}

func (hub *SSEHub) detach(client *SSEClient) {
	for ch := range client.Channels {
		if set, ok := hub.subs[ch]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(hub.subs, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

// Connected reports how many streams are open on this process.
func (hub *SSEHub) Connected() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.online
}

// Broadcast never blocks; a slow client loses messages rather than stalling producers.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for c := range hub.subs[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			c.log.Warn("Dropping SSE message; outbound buffer full", "event", msg.Event)
		}
	}
}

// ServeHTTP streams client's messages until the request ends or the client is closed.
func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			if err := client.writeEvent(w, msg); err != nil {
				client.log.Warn("SSE write failed", "event", msg.Event, "error", err)
				continue
			}
			flusher.Flush()
		}
	}
}

// writeEvent frames msg with a per-stream sequence id.
func (c *SSEClient) writeEvent(w io.Writer, msg SSEMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.seq++
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", c.seq, msg.Event, raw)
	return err
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	client.once.Do(func() {
		hub.mu.Lock()
		hub.detach(client)
		hub.online--
		hub.mu.Unlock()
		close(client.done)
		close(client.Outbound)
	})
}
