package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtoda/cairn/internal/core/mailbox"
	"github.com/mtoda/cairn/internal/core/message"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()

	mbox, err := mailbox.New(t.TempDir(), "worker")
	if err != nil {
		t.Fatalf("Failed to create mailbox: %v", err)
	}
	q, err := New(mbox, WithSettleDelay(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func enqueueAt(t *testing.T, q *Queue, msgType string, priority message.Priority, at time.Time) *message.Message {
	t.Helper()

	m := message.New("sender", "worker", msgType, nil)
	m.Priority = priority
	m.CreatedAt = at
	if _, err := q.Enqueue(context.Background(), m); err != nil {
		t.Fatalf("Failed to enqueue %s: %v", msgType, err)
	}
	return m
}

func TestDequeuePriorityOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	m1 := enqueueAt(t, q, "normal-first", message.PriorityNormal, base)
	m2 := enqueueAt(t, q, "high-later", message.PriorityHigh, base.Add(10*time.Second))

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got == nil || got.ID != m2.ID {
		t.Fatalf("Expected high-priority message first, got %+v", got)
	}

	got, err = q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got == nil || got.ID != m1.ID {
		t.Fatalf("Expected normal message second, got %+v", got)
	}

	got, err = q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected empty queue, got %+v", got)
	}
}

func TestDequeueFIFOWithinPriorityBand(t *testing.T) {
	q := newTestQueue(t)
	base := time.Now().Add(-time.Minute)

	early := enqueueAt(t, q, "early", message.PriorityNormal, base)
	enqueueAt(t, q, "late", message.PriorityNormal, base.Add(5*time.Second))

	got, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got.ID != early.ID {
		t.Errorf("Expected earlier message first, got %s", got.Type)
	}
}

func TestEnqueueRoundTrip(t *testing.T) {
	q := newTestQueue(t)

	payload := json.RawMessage(`{"goal":"draft","n":7}`)
	m := message.New("planner", "worker", "task", payload)
	m.ReplyTo = "planner"
	m.TimeToLive = message.Duration(time.Hour)

	id, err := q.Enqueue(context.Background(), m)
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	data, found, err := q.Mailbox().ReadFile(mailbox.AreaInbox, m.Filename())
	if err != nil || !found {
		t.Fatalf("Record not written: found=%v err=%v", found, err)
	}
	got, err := message.Unmarshal(data)
	if err != nil {
		t.Fatalf("Failed to parse record: %v", err)
	}

	if got.ID != id || got.FromAgent != "planner" || got.ToAgent != "worker" || got.Type != "task" {
		t.Errorf("Fields changed on round trip: %+v", got)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("Payload changed: %s", got.Payload)
	}
	if got.ReplyTo != "planner" || got.TimeToLive != m.TimeToLive {
		t.Errorf("Routing fields changed: %+v", got)
	}
	if got.Status != message.StatusPending {
		t.Errorf("Expected pending status after enqueue, got %s", got.Status)
	}
}

func TestDequeueMarksProcessingInPlace(t *testing.T) {
	q := newTestQueue(t)
	m := enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	got, err := q.Dequeue(context.Background())
	if err != nil || got == nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got.Status != message.StatusProcessing {
		t.Errorf("Expected processing status, got %s", got.Status)
	}

	// Record keeps its filename, now with processing status
	data, found, err := q.Mailbox().ReadFile(mailbox.AreaInbox, m.Filename())
	if err != nil || !found {
		t.Fatalf("Record moved unexpectedly: found=%v err=%v", found, err)
	}
	onDisk, err := message.Unmarshal(data)
	if err != nil {
		t.Fatalf("Failed to parse record: %v", err)
	}
	if onDisk.Status != message.StatusProcessing {
		t.Errorf("Expected processing on disk, got %s", onDisk.Status)
	}
}

func TestPeekDoesNotMutate(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	m := enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	for i := 0; i < 2; i++ {
		got, err := q.Peek(ctx)
		if err != nil {
			t.Fatalf("Failed to peek: %v", err)
		}
		if got == nil || got.ID != m.ID || got.Status != message.StatusPending {
			t.Fatalf("Unexpected peek result: %+v", got)
		}
	}

	// Still dequeueable after peeking
	got, err := q.Dequeue(ctx)
	if err != nil || got == nil || got.ID != m.ID {
		t.Fatalf("Peek consumed the message: %+v, %v", got, err)
	}

	// An empty inbox peeks as nil
	got, err = q.Peek(ctx)
	if err != nil || got != nil {
		t.Fatalf("Expected nil peek on empty queue: %+v, %v", got, err)
	}
}

func TestListPendingOrder(t *testing.T) {
	q := newTestQueue(t)
	base := time.Now().Add(-time.Minute)

	low := enqueueAt(t, q, "low", message.PriorityLow, base)
	critical := enqueueAt(t, q, "critical", message.PriorityCritical, base.Add(10*time.Second))
	normal := enqueueAt(t, q, "normal", message.PriorityNormal, base.Add(5*time.Second))

	pending, err := q.ListPending(context.Background())
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Expected 3 pending, got %d", len(pending))
	}
	want := []string{critical.ID, normal.ID, low.ID}
	for i, m := range pending {
		if m.ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s (%s)", i, want[i], m.ID, m.Type)
		}
	}
}

func TestCompleteMovesToProcessed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	m := enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}

	ok, err := q.Complete(ctx, m.ID)
	if err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	if !ok {
		t.Fatal("Complete reported message not found")
	}

	if exists, _ := q.Mailbox().Exists(mailbox.AreaInbox, m.Filename()); exists {
		t.Error("Record still in inbox after complete")
	}
	data, found, err := q.Mailbox().ReadFile(mailbox.AreaProcessed, m.Filename())
	if err != nil || !found {
		t.Fatalf("Record not in processed area: found=%v err=%v", found, err)
	}
	got, err := message.Unmarshal(data)
	if err != nil {
		t.Fatalf("Failed to parse terminal record: %v", err)
	}
	if got.Status != message.StatusCompleted {
		t.Errorf("Expected completed status, got %s", got.Status)
	}

	// The transition lands in the queue log
	logData, found, err := q.Mailbox().ReadFile(mailbox.AreaLogs, queueLog)
	if err != nil || !found {
		t.Fatalf("Queue log missing: found=%v err=%v", found, err)
	}
	if !strings.Contains(string(logData), m.ID) {
		t.Errorf("Queue log does not mention %s: %s", m.ID, logData)
	}
}

func TestCompleteAndFailUnknownID(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	ok, err := q.Complete(ctx, "no-such-id")
	if err != nil || ok {
		t.Errorf("Complete(unknown) = (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = q.Fail(ctx, "no-such-id", "whatever")
	if err != nil || ok {
		t.Errorf("Fail(unknown) = (%v, %v), want (false, nil)", ok, err)
	}

	// Inbox left untouched
	pending, err := q.ListPending(ctx)
	if err != nil || len(pending) != 1 {
		t.Errorf("Inbox changed by unknown-id transition: %d pending, %v", len(pending), err)
	}
}

func TestFailRecordsReason(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	m := enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	got, err := q.Dequeue(ctx)
	if err != nil || got == nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}

	ok, err := q.Fail(ctx, got.ID, "boom")
	if err != nil {
		t.Fatalf("Failed to fail: %v", err)
	}
	if !ok {
		t.Fatal("Fail reported message not found")
	}

	// The message never comes back
	again, err := q.Dequeue(ctx)
	if err != nil || again != nil {
		t.Fatalf("Failed message dequeued again: %+v, %v", again, err)
	}

	data, found, err := q.Mailbox().ReadFile(mailbox.AreaFailed, m.Filename())
	if err != nil || !found {
		t.Fatalf("Record not in failed area: found=%v err=%v", found, err)
	}
	terminal, err := message.Unmarshal(data)
	if err != nil {
		t.Fatalf("Failed to parse terminal record: %v", err)
	}
	if terminal.Status != message.StatusFailed {
		t.Errorf("Expected failed status, got %s", terminal.Status)
	}
	if terminal.Metadata["error"] != "boom" {
		t.Errorf("Expected error metadata, got %v", terminal.Metadata)
	}
	if terminal.Metadata["failed_at"] == "" {
		t.Error("Expected failed_at metadata")
	}
}

func TestExpiredMessages(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	// Created an hour ago with a one-second TTL: long expired
	expired := message.New("sender", "worker", "stale", nil)
	expired.CreatedAt = time.Now().Add(-time.Hour)
	expired.TimeToLive = message.Duration(time.Second)
	if _, err := q.Enqueue(ctx, expired); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	fresh := enqueueAt(t, q, "fresh", message.PriorityNormal, time.Now().Add(-time.Minute))

	pending, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != fresh.ID {
		t.Errorf("Expired message visible in ListPending: %v", pending)
	}

	got, err := q.Peek(ctx)
	if err != nil || got == nil || got.ID != fresh.ID {
		t.Errorf("Peek returned expired message: %+v, %v", got, err)
	}

	removed, err := q.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("Failed to cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if exists, _ := q.Mailbox().Exists(mailbox.AreaInbox, expired.Filename()); exists {
		t.Error("Expired record still present after cleanup")
	}

	// Nothing left to sweep
	removed, err = q.CleanupExpired(ctx)
	if err != nil || removed != 0 {
		t.Errorf("Second cleanup: removed=%d err=%v", removed, err)
	}
}

func TestCorruptRecordsAreSkipped(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	first := enqueueAt(t, q, "first", message.PriorityNormal, base)
	second := enqueueAt(t, q, "second", message.PriorityNormal, base.Add(5*time.Second))
	if err := q.Mailbox().WriteFile(mailbox.AreaInbox, "20250101000000_zzz.json", []byte("{not json")); err != nil {
		t.Fatalf("Failed to plant corrupt record: %v", err)
	}

	pending, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending raised on corrupt record: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Errorf("Unexpected pending set: %v", pending)
	}

	// The sweep survives corruption too
	if _, err := q.CleanupExpired(ctx); err != nil {
		t.Errorf("CleanupExpired raised on corrupt record: %v", err)
	}
}

func TestCancelledRecordsAreNotSelected(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	m := enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	// An external caller rewrites the record; the engine itself never
	// produces this status
	m.Status = message.StatusCancelled
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if err := q.Mailbox().WriteFile(mailbox.AreaInbox, m.Filename(), data); err != nil {
		t.Fatalf("Failed to rewrite record: %v", err)
	}

	got, err := q.Dequeue(ctx)
	if err != nil || got != nil {
		t.Errorf("Cancelled record dequeued: %+v, %v", got, err)
	}
}

func TestDequeueHonorsCancelledContext(t *testing.T) {
	q := newTestQueue(t)
	m := enqueueAt(t, q, "task", message.PriorityNormal, time.Now().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}

	// The scan was abandoned before any mutation
	data, _, _ := q.Mailbox().ReadFile(mailbox.AreaInbox, m.Filename())
	onDisk, err := message.Unmarshal(data)
	if err != nil {
		t.Fatalf("Failed to parse record: %v", err)
	}
	if onDisk.Status != message.StatusPending {
		t.Errorf("Cancelled dequeue mutated the record: %s", onDisk.Status)
	}
}

func TestTerminalArea(t *testing.T) {
	tests := []struct {
		status message.Status
		area   mailbox.Area
		ok     bool
	}{
		{message.StatusCompleted, mailbox.AreaProcessed, true},
		{message.StatusFailed, mailbox.AreaFailed, true},
		{message.StatusCancelled, "", false},
		{message.StatusPending, "", false},
		{message.StatusProcessing, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			area, ok := TerminalArea(tt.status)
			if area != tt.area || ok != tt.ok {
				t.Errorf("TerminalArea(%s) = (%s, %v), want (%s, %v)", tt.status, area, ok, tt.area, tt.ok)
			}
		})
	}
}

func TestPublishResultAndListOutbox(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	var ids []string
	for i, name := range []string{"r1", "r2", "r3"} {
		m := message.New("worker", "planner", name, nil)
		m.CreatedAt = base.Add(time.Duration(i*5) * time.Second)
		id, err := q.PublishResult(ctx, m)
		if err != nil {
			t.Fatalf("Failed to publish %s: %v", name, err)
		}
		ids = append(ids, id)
	}

	// Newest first
	results, err := q.ListOutbox(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list outbox: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].ID != ids[2] || results[2].ID != ids[0] {
		t.Errorf("Unexpected order: %s %s %s", results[0].Type, results[1].Type, results[2].Type)
	}

	// Limit caps the listing
	limited, err := q.ListOutbox(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("Expected 2 limited results, got %d (%v)", len(limited), err)
	}
	if limited[0].ID != ids[2] {
		t.Errorf("Limited listing lost recency order: %s", limited[0].Type)
	}

	// Publishing never touches the inbox
	pending, err := q.ListPending(ctx)
	if err != nil || len(pending) != 0 {
		t.Errorf("PublishResult leaked into inbox: %v", pending)
	}
}

func TestPublishResultDefaultsRecipient(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	m := message.New("", "", "report", nil)
	id, err := q.PublishResult(ctx, m)
	if err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	results, err := q.ListOutbox(ctx, 1)
	if err != nil || len(results) != 1 {
		t.Fatalf("Failed to list outbox: %v", err)
	}
	got := results[0]
	if got.ID != id || got.FromAgent != "worker" {
		t.Errorf("Unexpected result record: %+v", got)
	}
	if got.ToAgent != "worker" {
		t.Errorf("Expected recipient to default to the publisher, got %q", got.ToAgent)
	}
}

func TestSubscribeDeliversNewMessages(t *testing.T) {
	q := newTestQueue(t)

	received := make(chan *message.Message, 1)
	sub, err := q.Subscribe(func(m *message.Message) {
		select {
		case received <- m:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Cancel()

	m := enqueueAt(t, q, "task", message.PriorityHigh, time.Now())

	select {
	case got := <-received:
		if got.ID != m.ID {
			t.Errorf("Expected %s, got %s", m.ID, got.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Handler never invoked")
	}
}

func TestSubscribeIgnoresRewrites(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	statuses := make(chan message.Status, 8)
	sub, err := q.Subscribe(func(m *message.Message) {
		statuses <- m.Status
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Cancel()

	enqueueAt(t, q, "task", message.PriorityNormal, time.Now())

	select {
	case s := <-statuses:
		if s != message.StatusPending {
			t.Fatalf("Expected pending notification, got %s", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Handler never invoked")
	}

	// The claim and terminal transitions rewrite the record in place,
	// which the watcher also observes; none of that is a new message
	got, err := q.Dequeue(ctx)
	if err != nil || got == nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if _, err := q.Complete(ctx, got.ID); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}

	select {
	case s := <-statuses:
		t.Errorf("Handler re-invoked for a rewrite with status %s", s)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSubscribeIsolatesPanickingHandlers(t *testing.T) {
	q := newTestQueue(t)

	panicking, err := q.Subscribe(func(m *message.Message) {
		panic("handler bug")
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer panicking.Cancel()

	received := make(chan struct{}, 1)
	healthy, err := q.Subscribe(func(m *message.Message) {
		select {
		case received <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer healthy.Cancel()

	enqueueAt(t, q, "task", message.PriorityNormal, time.Now())

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("Panicking handler blocked the healthy one")
	}
}

func TestSubscriptionCancelRemovesOnlyThatHandler(t *testing.T) {
	q := newTestQueue(t)

	first := make(chan struct{}, 4)
	sub1, err := q.Subscribe(func(m *message.Message) { first <- struct{}{} })
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	second := make(chan struct{}, 4)
	sub2, err := q.Subscribe(func(m *message.Message) { second <- struct{}{} })
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub2.Cancel()

	sub1.Cancel()
	sub1.Cancel() // cancelling twice is harmless

	enqueueAt(t, q, "task", message.PriorityNormal, time.Now())

	select {
	case <-second:
	case <-time.After(3 * time.Second):
		t.Fatal("Remaining handler never invoked")
	}
	select {
	case <-first:
		t.Error("Cancelled handler still invoked")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if _, err := q.Subscribe(func(*message.Message) {}); err == nil {
		t.Error("Expected error subscribing to a closed queue")
	}

	// Close is idempotent and the queue still serves reads
	if err := q.Close(); err != nil {
		t.Errorf("Second close errored: %v", err)
	}
	if _, err := q.Peek(context.Background()); err != nil {
		t.Errorf("Peek after close errored: %v", err)
	}
}
