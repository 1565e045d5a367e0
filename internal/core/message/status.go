package message

import "fmt"

// Priority orders messages within an inbox. Values are persisted as
// their textual names so records remain human-greppable.
type Priority string

const (
	// PriorityLow is taken after everything else
	PriorityLow Priority = "low"
	// PriorityNormal is the default priority
	PriorityNormal Priority = "normal"
	// PriorityHigh is taken before normal traffic
	PriorityHigh Priority = "high"
	// PriorityCritical preempts all other priorities
	PriorityCritical Priority = "critical"
)

// priorityWeights defines the dequeue ordering: higher weight first.
var priorityWeights = map[Priority]int{
	PriorityLow:      0,
	PriorityNormal:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Weight returns the ordering rank of the priority. Unknown or empty
// priorities rank as normal so records written by newer senders still
// dequeue.
func (p Priority) Weight() int {
	if w, ok := priorityWeights[p]; ok {
		return w
	}
	return priorityWeights[PriorityNormal]
}

// ParsePriority converts a textual priority name.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if _, ok := priorityWeights[p]; !ok {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Status is the lifecycle state of a message.
// Pending -> Processing -> {Completed, Failed}. Cancelled is part of
// the vocabulary but no queue operation transitions into it; only an
// external caller rewriting the record can produce it.
type Status string

const (
	// StatusPending means the message is waiting in an inbox
	StatusPending Status = "pending"
	// StatusProcessing means a consumer has claimed the message
	StatusProcessing Status = "processing"
	// StatusCompleted is the successful terminal state
	StatusCompleted Status = "completed"
	// StatusFailed is the unsuccessful terminal state
	StatusFailed Status = "failed"
	// StatusCancelled is a terminal state reachable only externally
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition occurs from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
