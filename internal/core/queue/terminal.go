package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/mtoda/cairn/internal/core/mailbox"
	"github.com/mtoda/cairn/internal/core/message"
)

// TerminalArea maps a terminal status to the inbox sub-area its record
// is relocated to. Cancelled records have no destination; they stay
// wherever the external caller left them.
func TerminalArea(s message.Status) (mailbox.Area, bool) {
	switch s {
	case message.StatusCompleted:
		return mailbox.AreaProcessed, true
	case message.StatusFailed:
		return mailbox.AreaFailed, true
	}
	return "", false
}

// Complete marks the message with the given ID as Completed and moves
// its record into the processed area. It reports false when no inbox
// record carries that ID.
func (q *Queue) Complete(ctx context.Context, id string) (bool, error) {
	return q.finish(ctx, id, message.StatusCompleted, nil)
}

// Fail marks the message with the given ID as Failed, records the
// reason in its metadata, and moves its record into the failed area.
// It reports false when no inbox record carries that ID.
func (q *Queue) Fail(ctx context.Context, id, reason string) (bool, error) {
	meta := map[string]string{
		"failed_at": time.Now().Format(time.RFC3339),
	}
	if reason != "" {
		meta["error"] = reason
	}
	return q.finish(ctx, id, message.StatusFailed, meta)
}

// finish performs a terminal transition: rewrite the record in place
// with the new status, then relocate it with a single atomic rename so
// no duplicate or loss window exists between the two steps.
func (q *Queue) finish(ctx context.Context, id string, status message.Status, meta map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dest, ok := TerminalArea(status)
	if !ok {
		return false, fmt.Errorf("status %q has no terminal area", status)
	}

	release, err := q.lockInbox(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	name, m := q.findByID(id)
	if m == nil {
		return false, nil
	}

	m.Status = status
	for k, v := range meta {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata[k] = v
	}

	data, err := m.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to serialize message: %w", err)
	}
	if err := q.mbox.WriteFile(mailbox.AreaInbox, name, data); err != nil {
		return false, err
	}
	if err := q.mbox.Move(mailbox.AreaInbox, name, dest); err != nil {
		return false, err
	}

	if err := q.mbox.AppendToLog(queueLog, fmt.Sprintf("%s %s (type=%s)", status, id, m.Type)); err != nil {
		q.log.Warn("failed to record transition", "agent", q.mbox.Agent(), "id", id, "error", err)
	}
	return true, nil
}

// findByID scans inbox filenames for the one whose embedded ID matches
// and loads it. IDs are not indexed; the linear scan is the lookup.
func (q *Queue) findByID(id string) (string, *message.Message) {
	names, err := q.mbox.ListFiles(mailbox.AreaInbox, recordPattern)
	if err != nil {
		return "", nil
	}
	for _, name := range names {
		embedded, ok := message.IDFromFilename(name)
		if !ok || embedded != id {
			continue
		}
		if m, ok := q.readRecord(mailbox.AreaInbox, name); ok {
			return name, m
		}
		return "", nil
	}
	return "", nil
}
