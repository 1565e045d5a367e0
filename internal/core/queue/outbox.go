package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/mtoda/cairn/internal/core/mailbox"
	"github.com/mtoda/cairn/internal/core/message"
)

// PublishResult writes a message into the agent's own outbox as a
// terminal artifact and returns its ID. Missing ID, creation time,
// sender and recipient are filled in; a result without an explicit
// recipient is addressed to the publishing agent itself. Published
// results never enter the pending/processing lifecycle; this is a
// one-way write.
func (q *Queue) PublishResult(ctx context.Context, m *message.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = message.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.FromAgent == "" {
		m.FromAgent = q.mbox.Agent()
	}
	if m.ToAgent == "" {
		m.ToAgent = q.mbox.Agent()
	}
	if m.Status == "" {
		m.Status = message.StatusCompleted
	}

	data, err := m.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}
	if err := q.mbox.WriteFile(mailbox.AreaOutbox, m.Filename(), data); err != nil {
		return "", err
	}
	return m.ID, nil
}

// ListOutbox returns the most recent outbox entries, newest first,
// bounded by limit (0 means all). Filenames sort by creation time, so
// the reverse of the lexical listing is the recency order. Corrupt
// entries are skipped.
func (q *Queue) ListOutbox(ctx context.Context, limit int) ([]*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := q.mbox.ListFiles(mailbox.AreaOutbox, recordPattern)
	if err != nil {
		return nil, err
	}

	var results []*message.Message
	for i := len(names) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		if m, ok := q.readRecord(mailbox.AreaOutbox, names[i]); ok {
			results = append(results, m)
		}
	}
	return results, nil
}
