// Package queue implements the mailbox queue protocol: enqueue,
// priority-ordered dequeue, completion and failure transitions, expiry
// sweeps and change notification. State lives entirely in the
// filesystem; every operation re-derives it by scanning the inbox.
package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/mtoda/cairn/internal/core/logger"
	"github.com/mtoda/cairn/internal/core/mailbox"
	"github.com/mtoda/cairn/internal/core/message"
)

// ErrLockTimeout is returned when the inbox claim lock cannot be
// acquired within the configured timeout.
var ErrLockTimeout = errors.New("timeout acquiring inbox lock")

// recordPattern matches message record files in an area.
const recordPattern = "*" + message.Extension

// lockFile is the inbox claim lock. Dotfiles never match
// recordPattern, so the lock is invisible to scans.
const lockFile = ".lock"

// queueLog is the log file terminal transitions are recorded to.
const queueLog = "queue.log"

// Queue is the queue engine for one agent's mailbox.
//
// Read-modify-write sequences over the inbox (Dequeue, Complete, Fail,
// CleanupExpired) are serialized by an in-process mutex and a file
// lock on the inbox, so two consumers cannot claim the same record
// even from separate processes.
type Queue struct {
	mbox *mailbox.Mailbox
	log  logger.Logger

	mu          sync.Mutex
	flk         *flock.Flock
	lockTimeout time.Duration

	settleDelay time.Duration

	subMu   sync.Mutex
	subs    map[int]Handler
	nextSub int
	watcher watcherHandle
	closed  bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for corrupt-record and watcher
// diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// WithLockTimeout sets the maximum time to wait for the inbox lock.
func WithLockTimeout(d time.Duration) Option {
	return func(q *Queue) {
		q.lockTimeout = d
	}
}

// WithSettleDelay sets the pause between a file-creation notification
// and the read of the new record, to avoid observing a partial write.
func WithSettleDelay(d time.Duration) Option {
	return func(q *Queue) {
		q.settleDelay = d
	}
}

// New creates a queue engine over a mailbox, creating the mailbox
// structure if absent.
func New(mbox *mailbox.Mailbox, opts ...Option) (*Queue, error) {
	q := &Queue{
		mbox:        mbox,
		log:         logger.Nop(),
		lockTimeout: 5 * time.Second,
		settleDelay: 100 * time.Millisecond,
		subs:        make(map[int]Handler),
	}
	for _, opt := range opts {
		opt(q)
	}
	if ok := mbox.EnsureStructure(); !ok {
		return nil, fmt.Errorf("failed to prepare mailbox structure for %s", mbox.Agent())
	}
	q.flk = flock.New(filepath.Join(mbox.AreaPath(mailbox.AreaInbox), lockFile))
	return q, nil
}

// Mailbox returns the underlying mailbox.
func (q *Queue) Mailbox() *mailbox.Mailbox {
	return q.mbox
}

// lockInbox acquires the in-process mutex and the cross-process file
// lock. The returned release function must run on every exit path.
func (q *Queue) lockInbox(ctx context.Context) (func(), error) {
	q.mu.Lock()

	lockCtx, cancel := context.WithTimeout(ctx, q.lockTimeout)
	defer cancel()

	locked, err := q.flk.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("failed to acquire inbox lock: %w", err)
	}
	if !locked {
		q.mu.Unlock()
		return nil, ErrLockTimeout
	}
	return func() {
		_ = q.flk.Unlock()
		q.mu.Unlock()
	}, nil
}

// Enqueue writes a message into the recipient's inbox as Pending and
// returns its ID. Missing ID, creation time and priority are filled
// in; the mailbox structure is created lazily if needed.
func (q *Queue) Enqueue(ctx context.Context, m *message.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = message.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Priority == "" {
		m.Priority = message.PriorityNormal
	}
	if m.ToAgent == "" {
		m.ToAgent = q.mbox.Agent()
	}
	m.Status = message.StatusPending

	data, err := m.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}
	if err := q.mbox.WriteFile(mailbox.AreaInbox, m.Filename(), data); err != nil {
		return "", err
	}
	return m.ID, nil
}

// Dequeue claims and returns the highest-priority pending message, or
// nil when the inbox has no dequeueable record. The claimed record is
// rewritten in place as Processing before it is returned, under the
// inbox lock, so no other consumer can observe it as Pending.
func (q *Queue) Dequeue(ctx context.Context) (*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release, err := q.lockInbox(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	candidates, err := q.scanPending()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	head := candidates[0]
	head.Status = message.StatusProcessing
	data, err := head.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}
	if err := q.mbox.WriteFile(mailbox.AreaInbox, head.Filename(), data); err != nil {
		return nil, err
	}
	return head, nil
}

// Peek returns the message Dequeue would claim next, without mutating
// anything.
func (q *Queue) Peek(ctx context.Context) (*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates, err := q.scanPending()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// ListPending returns all dequeueable messages in dequeue order.
func (q *Queue) ListPending(ctx context.Context) ([]*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return q.scanPending()
}

// CleanupExpired deletes every inbox record whose time to live has
// elapsed, regardless of status, and returns how many were removed.
// Corrupt records never abort the sweep.
func (q *Queue) CleanupExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	release, err := q.lockInbox(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	names, err := q.mbox.ListFiles(mailbox.AreaInbox, recordPattern)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	removed := 0
	for _, name := range names {
		m, ok := q.readRecord(mailbox.AreaInbox, name)
		if !ok || !m.IsExpired(now) {
			continue
		}
		deleted, err := q.mbox.DeleteFile(mailbox.AreaInbox, name)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// scanPending lists, parses, filters and orders the inbox: Pending and
// unexpired records only, highest priority first, FIFO within a
// priority band. Corrupt records are skipped and logged.
func (q *Queue) scanPending() ([]*message.Message, error) {
	names, err := q.mbox.ListFiles(mailbox.AreaInbox, recordPattern)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	candidates := make([]*message.Message, 0, len(names))
	for _, name := range names {
		m, ok := q.readRecord(mailbox.AreaInbox, name)
		if !ok {
			continue
		}
		if m.Status != message.StatusPending || m.IsExpired(now) {
			continue
		}
		candidates = append(candidates, m)
	}

	// Names list lexically, i.e. by arrival; the stable sort keeps that
	// order inside each priority band
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority.Weight() != candidates[j].Priority.Weight() {
			return candidates[i].Priority.Weight() > candidates[j].Priority.Weight()
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates, nil
}

// readRecord loads and parses one record. Corrupt or vanished records
// report ok=false and are excluded from whatever scan is running.
func (q *Queue) readRecord(area mailbox.Area, name string) (*message.Message, bool) {
	data, found, err := q.mbox.ReadFile(area, name)
	if err != nil || !found {
		return nil, false
	}
	m, err := message.Unmarshal(data)
	if err != nil {
		q.log.Warn("skipping corrupt record", "agent", q.mbox.Agent(), "file", name, "error", err)
		return nil, false
	}
	return m, true
}
