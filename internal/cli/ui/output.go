package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/mtoda/cairn/internal/core/message"
)

// Print functions for consistent output

func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorIcon, ErrorStyle.Render(fmt.Sprintf(format, args...)))
}

func Success(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", SuccessIcon, SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

func Info(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", InfoIcon, InfoStyle.Render(fmt.Sprintf(format, args...)))
}

func Warning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", WarningIcon, WarningStyle.Render(fmt.Sprintf(format, args...)))
}

// OutputLine prints a formatted line to stdout.
func OutputLine(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

// PrintMessage displays a single message with formatting.
func PrintMessage(m *message.Message) {
	fmt.Printf("%s %s %s %s\n",
		MessageIcon,
		BoldStyle.Render(m.Type),
		DimStyle.Render(fmt.Sprintf("(%s)", m.ID)),
		DimStyle.Render(fmt.Sprintf("%s, %s", m.Priority, m.Status)),
	)

	if m.FromAgent != "" {
		fmt.Printf("   %s %s\n", DimStyle.Render("From:"), m.FromAgent)
	}
	fmt.Printf("   %s %s\n", DimStyle.Render("To:"), m.ToAgent)
	fmt.Printf("   %s %s\n", DimStyle.Render("Created:"), FormatTime(m.CreatedAt))
	if m.CorrelationID != "" {
		fmt.Printf("   %s %s\n", DimStyle.Render("Correlates:"), m.CorrelationID)
	}
	if m.ReplyTo != "" {
		fmt.Printf("   %s %s\n", DimStyle.Render("Reply to:"), m.ReplyTo)
	}
	if m.TimeToLive > 0 {
		fmt.Printf("   %s %s\n", DimStyle.Render("TTL:"), time.Duration(m.TimeToLive))
	}
	for k, v := range m.Metadata {
		fmt.Printf("   %s %s=%s\n", DimStyle.Render("Meta:"), k, v)
	}
	if len(m.Payload) > 0 {
		fmt.Printf("   %s %s\n", DimStyle.Render("Payload:"), string(m.Payload))
	}
}

// FormatTime formats a timestamp for display.
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// FormatAge formats a duration as a compact age string.
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// FormatSize formats a byte count for display.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
