// Package message defines the record exchanged between agents through
// their mailboxes. A message is written once by its sender and moves
// through a small status lifecycle driven by the queue engine.
package message

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extension is the file extension for persisted message records.
const Extension = ".json"

// timestampLayout is the compact, lexically sortable timestamp used as
// the filename prefix. Lexical filename order equals arrival order.
const timestampLayout = "20060102150405"

// Message is a single work item or result exchanged between agents.
// The payload schema is owned by sender and receiver; the queue never
// interprets it.
type Message struct {
	// ID is a short opaque token, unique within a mailbox
	ID string `json:"id"`
	// CreatedAt is when the message was built
	CreatedAt time.Time `json:"created_at"`
	// FromAgent is the sending agent; empty means an external or system sender
	FromAgent string `json:"from_agent,omitempty"`
	// ToAgent is the recipient agent
	ToAgent string `json:"to_agent"`
	// Type identifies the action or topic
	Type string `json:"type"`
	// Payload is an opaque structured value, preserved byte for byte
	Payload json.RawMessage `json:"payload,omitempty"`
	// Priority orders dequeueing; higher priorities are taken first
	Priority Priority `json:"priority"`
	// Status is the lifecycle state
	Status Status `json:"status"`
	// CorrelationID links a reply to its originating message
	CorrelationID string `json:"correlation_id,omitempty"`
	// ReplyTo is the agent responses should be sent to
	ReplyTo string `json:"reply_to,omitempty"`
	// Metadata carries free-form annotations, e.g. failure causes
	Metadata map[string]string `json:"metadata,omitempty"`
	// TimeToLive bounds how long the message stays dequeueable
	TimeToLive Duration `json:"time_to_live,omitempty"`
}

// New creates a message with a generated ID, the current time, normal
// priority and pending status.
func New(from, to, msgType string, payload json.RawMessage) *Message {
	return &Message{
		ID:        NewID(),
		CreatedAt: time.Now(),
		FromAgent: from,
		ToAgent:   to,
		Type:      msgType,
		Payload:   payload,
		Priority:  PriorityNormal,
		Status:    StatusPending,
	}
}

// NewID generates a short opaque message ID.
func NewID() string {
	return uuid.New().String()[:8]
}

// Reply builds a response to m. The correlation ID defaults to m's ID
// and the recipient to m's ReplyTo, falling back to its sender.
func (m *Message) Reply(msgType string, payload json.RawMessage) *Message {
	to := m.ReplyTo
	if to == "" {
		to = m.FromAgent
	}
	r := New(m.ToAgent, to, msgType, payload)
	r.CorrelationID = m.ID
	return r
}

// IsExpired reports whether the message's time to live has elapsed.
func (m *Message) IsExpired(now time.Time) bool {
	if m.TimeToLive <= 0 {
		return false
	}
	return now.After(m.CreatedAt.Add(time.Duration(m.TimeToLive)))
}

// Filename returns the record file name for this message:
// {timestamp}_{id}.json. This name is the message's stable address
// within its mailbox.
func (m *Message) Filename() string {
	return fmt.Sprintf("%s_%s%s", m.CreatedAt.Format(timestampLayout), m.ID, Extension)
}

// IDFromFilename recovers the message ID embedded in a record file
// name. It returns false when the name does not follow the
// {timestamp}_{id}.json convention.
func IDFromFilename(name string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(name), Extension)
	i := strings.Index(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", false
	}
	return base[i+1:], true
}

// Marshal serializes the message for persistence. The payload is
// embedded verbatim so an enqueue/read-back round trip preserves it
// byte for byte.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal parses a persisted record. Unknown fields are ignored for
// forward compatibility.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse message record: %w", err)
	}
	return &m, nil
}
