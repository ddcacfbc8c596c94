package services

import (
	"context"
	"sync"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
	"github.com/pandoapps/videoSoryBoard/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// BusEmitter publishes through the shared bus so every API process can forward it.
type BusEmitter struct {
	Bus bus.Bus
	Log *logger.Logger
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	if err := e.Bus.Publish(ctx, msg); err != nil && e.Log != nil {
		e.Log.Warn("event publish failed", "event", msg.Event, "error", err)
	}
}

// RecordingEmitter keeps every message; used by tests.
type RecordingEmitter struct {
	mu       sync.Mutex
	Messages []realtime.SSEMessage
}

func (e *RecordingEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Messages = append(e.Messages, msg)
}

func (e *RecordingEmitter) Events() []realtime.SSEEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]realtime.SSEEvent, 0, len(e.Messages))
	for _, m := range e.Messages {
		out = append(out, m.Event)
	}
	return out
}
