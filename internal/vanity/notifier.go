package vanity

import (
	"context"
	"fmt"
	"time"
)

// TimestampLayout renders notification times, always in UTC
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// Notifier delivers the one-shot availability message.
//
//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/stacklok/boostsync/internal/vanity Notifier
type Notifier interface {
	NotifyAvailable(ctx context.Context, code string, at time.Time) error
}

// FormatTimestamp formats t in UTC with TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatNotification builds the operator-facing availability message
func FormatNotification(code string, at time.Time) string {
	return fmt.Sprintf("🚨 **VANITY AVAILABLE** 🚨\n\n"+
		"👉 discord.gg/%s appears to be free as of %s.\n"+
		"Try to claim it manually right away.", code, FormatTimestamp(at))
}
