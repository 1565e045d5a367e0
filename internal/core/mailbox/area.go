// Package mailbox provides the per-agent directory layout and the
// primitive file operations scoped to it. It knows nothing about
// message semantics; the queue engine layers those on top.
package mailbox

// Area is a named storage location inside an agent's mailbox.
type Area string

const (
	// AreaInbox holds pending and processing messages addressed to the agent
	AreaInbox Area = "inbox"
	// AreaOutbox holds results the agent publishes
	AreaOutbox Area = "outbox"
	// AreaMemory holds durable cross-session notes
	AreaMemory Area = "memory"
	// AreaWorkspace is a scratch area that may be wiped at any time
	AreaWorkspace Area = "workspace"
	// AreaLogs holds append-only log files
	AreaLogs Area = "logs"

	// AreaProcessed is the terminal sub-area for completed messages,
	// created lazily on the first terminal transition
	AreaProcessed Area = "inbox/.processed"
	// AreaFailed is the terminal sub-area for failed messages
	AreaFailed Area = "inbox/.failed"
)

// primaryAreas are the areas created by EnsureStructure. The terminal
// sub-areas are created lazily by EnsureArea.
var primaryAreas = []Area{AreaInbox, AreaOutbox, AreaMemory, AreaWorkspace, AreaLogs}

// Info is a read-only size snapshot of one area.
type Info struct {
	// FileCount is the number of regular files in the area
	FileCount int
	// TotalSize is the combined size of those files in bytes
	TotalSize int64
}
