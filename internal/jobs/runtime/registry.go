package runtime

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// TimeoutHandler overrides DefaultTimeout for one job type.
type TimeoutHandler interface {
	Timeout() time.Duration
}

// DefaultTimeout bounds a single handler run.
const DefaultTimeout = 600 * time.Second

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func TimeoutFor(h Handler) time.Duration {
	if th, ok := h.(TimeoutHandler); ok {
		if d := th.Timeout(); d > 0 {
			return d
		}
	}
	return DefaultTimeout
}
