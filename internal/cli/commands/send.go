package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
	"github.com/mtoda/cairn/internal/core/message"
)

// Flags for send command
var (
	sendPriority string
	sendTTL      time.Duration
	sendFile     string
)

var sendCmd = &cobra.Command{
	Use:   "send <from> <to> <type> [payload]",
	Short: "Enqueue a message into an agent's inbox",
	Long: `Enqueue a message into the recipient agent's inbox.

The payload can be provided as:
- A command line argument (JSON, or plain text wrapped as a JSON string)
- From a file with -f/--file
- From stdin (when no payload argument is provided)

Examples:
  # Send a work item
  cairn send planner builder task '{"goal": "draft the report"}'
  # Send with priority and a time to live
  cairn send planner builder task --priority high --ttl 30m
  # Send a payload from a file
  cairn send planner builder review --file findings.json`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendPriority, "priority", "p", string(message.PriorityNormal), "Message priority (low, normal, high, critical)")
	sendCmd.Flags().DurationVar(&sendTTL, "ttl", 0, "Time to live, e.g. 30s, 10m (0 = no expiry)")
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "Read payload from file")
}

func runSend(cmd *cobra.Command, args []string) error {
	from, to, msgType := args[0], args[1], args[2]

	priority, err := message.ParsePriority(sendPriority)
	if err != nil {
		return err
	}
	payload, err := readPayload(args[3:], sendFile)
	if err != nil {
		return err
	}

	reg, err := newRegistry()
	if err != nil {
		return err
	}

	m := message.New(from, to, msgType, payload)
	m.Priority = priority
	m.ReplyTo = from
	if sendTTL > 0 {
		m.TimeToLive = message.Duration(sendTTL)
	}

	q, err := reg.Get(to)
	if err != nil {
		return err
	}
	id, err := q.Enqueue(cmd.Context(), m)
	if err != nil {
		return err
	}

	ui.Success("Message %s sent to %s", id, to)
	return nil
}
