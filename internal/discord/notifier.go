package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/stacklok/boostsync/internal/vanity"
)

// DirectMessenger sends a DM to a user
type DirectMessenger interface {
	SendDM(ctx context.Context, userID, content string) error
}

// DMNotifier delivers vanity notifications as direct messages to one user
type DMNotifier struct {
	messenger DirectMessenger
	userID    string
}

// NewDMNotifier creates a notifier that messages userID
func NewDMNotifier(messenger DirectMessenger, userID string) *DMNotifier {
	return &DMNotifier{messenger: messenger, userID: userID}
}

// NotifyAvailable implements vanity.Notifier
func (n *DMNotifier) NotifyAvailable(ctx context.Context, code string, at time.Time) error {
	if n.userID == "" {
		return fmt.Errorf("no notification recipient configured for %s", code)
	}
	return n.messenger.SendDM(ctx, n.userID, vanity.FormatNotification(code, at))
}
