// Package registry hands out one queue engine per agent name, so only
// one watcher and one lock exist per mailbox within a process.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mtoda/cairn/internal/core/mailbox"
	"github.com/mtoda/cairn/internal/core/message"
	"github.com/mtoda/cairn/internal/core/queue"
)

// Registry is a process-lifetime cache of queue engines keyed by agent
// name. Entries are created lazily and never evicted automatically;
// Remove and Clear exist for dynamic agent populations.
type Registry struct {
	agentsRoot string
	opts       []queue.Option

	mu     sync.RWMutex
	queues map[string]*queue.Queue
}

// New creates a registry rooted at the agents directory. The options
// are applied to every queue the registry creates.
func New(agentsRoot string, opts ...queue.Option) *Registry {
	return &Registry{
		agentsRoot: agentsRoot,
		opts:       opts,
		queues:     make(map[string]*queue.Queue),
	}
}

// Get returns the queue engine for an agent, creating and caching it
// on first request.
func (r *Registry) Get(agent string) (*queue.Queue, error) {
	r.mu.RLock()
	q, ok := r.queues[agent]
	r.mu.RUnlock()
	if ok {
		return q, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have created it between the two locks
	if q, ok := r.queues[agent]; ok {
		return q, nil
	}

	mbox, err := mailbox.New(r.agentsRoot, agent)
	if err != nil {
		return nil, err
	}
	q, err = queue.New(mbox, r.opts...)
	if err != nil {
		return nil, err
	}
	r.queues[agent] = q
	return q, nil
}

// Send builds a message from the given parts and enqueues it on the
// recipient's queue, returning the message ID. ReplyTo defaults to the
// sender so the recipient can route a response without knowing more.
func (r *Registry) Send(ctx context.Context, from, to, msgType string, payload any, priority message.Priority) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	m := message.New(from, to, msgType, raw)
	if priority != "" {
		m.Priority = priority
	}
	if from != "" {
		m.ReplyTo = from
	}

	q, err := r.Get(to)
	if err != nil {
		return "", err
	}
	return q.Enqueue(ctx, m)
}

// Agents returns the names of all agents with cached queues.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	return names
}

// Remove evicts one agent's queue, closing its watcher.
func (r *Registry) Remove(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[agent]; ok {
		_ = q.Close()
		delete(r.queues, agent)
	}
}

// Clear evicts every cached queue.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, q := range r.queues {
		_ = q.Close()
		delete(r.queues, name)
	}
}
