package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mtoda/cairn/internal/core/mailbox"
	"github.com/mtoda/cairn/internal/core/message"
)

// Handler is invoked for each new record appearing in the inbox.
// Handlers run on their own goroutines; a panicking handler is
// isolated and cannot stop event delivery to the others.
type Handler func(*message.Message)

// Subscription removes one handler when cancelled. Cancelling it never
// affects other handlers or the watch loop.
type Subscription struct {
	cancel func()
}

// Cancel unregisters the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// watcherHandle wraps the lazily started filesystem watcher.
type watcherHandle struct {
	fs *fsnotify.Watcher
}

// eventBuffer bounds the change-event channel between the watcher and
// the consumer loop. Events beyond the bound are dropped and logged,
// never allowed to block the watcher.
const eventBuffer = 64

// Subscribe registers a handler for new inbox records. The underlying
// filesystem watcher starts on the first subscription and runs until
// the queue is closed.
func (q *Queue) Subscribe(handler Handler) (*Subscription, error) {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	if q.closed {
		return nil, errors.New("queue is closed")
	}
	if q.watcher.fs == nil {
		if err := q.startWatcher(); err != nil {
			return nil, err
		}
	}

	id := q.nextSub
	q.nextSub++
	q.subs[id] = handler

	return &Subscription{cancel: func() {
		q.subMu.Lock()
		defer q.subMu.Unlock()
		delete(q.subs, id)
	}}, nil
}

// Close stops the inbox watcher and drops all subscriptions. The queue
// remains usable for everything except Subscribe.
func (q *Queue) Close() error {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.subs = nil

	if q.watcher.fs != nil {
		err := q.watcher.fs.Close()
		q.watcher.fs = nil
		return err
	}
	return nil
}

func (q *Queue) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	if err := w.Add(q.mbox.AreaPath(mailbox.AreaInbox)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch inbox: %w", err)
	}
	q.watcher.fs = w

	events := make(chan fsnotify.Event, eventBuffer)
	go q.forwardEvents(w, events)
	go q.consumeEvents(events)
	return nil
}

// forwardEvents filters raw watcher events down to record creations
// and pushes them onto the bounded channel.
func (q *Queue) forwardEvents(w *fsnotify.Watcher, events chan<- fsnotify.Event) {
	defer close(events)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			base := filepath.Base(ev.Name)
			if !strings.HasSuffix(base, message.Extension) || strings.HasPrefix(base, ".") {
				continue
			}
			select {
			case events <- ev:
			default:
				q.log.Warn("dropping inbox change event", "agent", q.mbox.Agent(), "file", base)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			q.log.Error("inbox watcher error", "agent", q.mbox.Agent(), "error", err)
		}
	}
}

// consumeEvents drains the bounded channel one event at a time: wait
// for the record to settle, parse it, dispatch pending records to
// every handler.
func (q *Queue) consumeEvents(events <-chan fsnotify.Event) {
	for ev := range events {
		time.Sleep(q.settleDelay)

		data, err := os.ReadFile(ev.Name)
		if err != nil {
			continue // record claimed or removed before we got to it
		}
		m, err := message.Unmarshal(data)
		if err != nil {
			q.log.Warn("skipping corrupt record", "agent", q.mbox.Agent(), "file", filepath.Base(ev.Name), "error", err)
			continue
		}
		// Atomic writes surface as creations, so in-place rewrites
		// (claims, terminal transitions) arrive here too. Only records
		// still pending are genuinely new to subscribers.
		if m.Status != message.StatusPending {
			continue
		}
		q.dispatch(m)
	}
}

// dispatch invokes every registered handler on its own goroutine with
// panic isolation.
func (q *Queue) dispatch(m *message.Message) {
	q.subMu.Lock()
	handlers := make([]Handler, 0, len(q.subs))
	for _, h := range q.subs {
		handlers = append(handlers, h)
	}
	q.subMu.Unlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					q.log.Error("subscriber panicked", "agent", q.mbox.Agent(), "id", m.ID, "panic", r)
				}
			}()
			h(m)
		}(h)
	}
}
