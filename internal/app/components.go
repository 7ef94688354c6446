package app

import (
	"context"

	"github.com/stacklok/boostsync/internal/bot"
	"github.com/stacklok/boostsync/internal/discord"
	"github.com/stacklok/boostsync/internal/membership"
	"github.com/stacklok/boostsync/internal/reconcile"
	"github.com/stacklok/boostsync/internal/vanity"
)

// Gateway is the platform connection: event source, member lookups, role
// mutations and outbound messages.
type Gateway interface {
	membership.Provider
	membership.RoleEditor
	discord.DirectMessenger
	bot.Replier

	Open(ctx context.Context, sink discord.EventSink) error
	Close() error
	Ready() bool
}

// Components groups the long-running parts of the bot
//
//nolint:revive // This name is fine
type Components struct {
	Gateway    Gateway
	Dispatcher *bot.Dispatcher
	Poller     vanity.Poller
	Reconciler reconcile.Reconciler
}
