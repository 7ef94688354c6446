// Package discord adapts a discordgo session to the membership, vanity and
// bot interfaces. Gateway events become bot events; REST calls back the
// membership lookups and role mutations.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/stacklok/boostsync/internal/bot"
	"github.com/stacklok/boostsync/internal/membership"
)

// Intents are the gateway intents the bot subscribes to
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsDirectMessages

// EventSink receives translated gateway events
type EventSink interface {
	Submit(ctx context.Context, ev bot.Event) error
}

// restSession is the REST surface of *discordgo.Session used by the client
type restSession interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Client is the platform adapter
type Client struct {
	session *discordgo.Session
	rest    restSession

	ready atomic.Bool

	mu      sync.Mutex
	sink    EventSink
	baseCtx context.Context
	selfID  string
}

// New creates a client for token. The gateway is not opened until Open.
func New(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.LogLevel = discordgo.LogWarning
	session.StateEnabled = true

	c := &Client{session: session, rest: session, baseCtx: context.Background()}

	session.AddHandler(c.onReady)
	session.AddHandler(c.onResumed)
	session.AddHandler(c.onDisconnect)
	session.AddHandler(c.onMemberUpdate)
	session.AddHandler(c.onMemberAdd)
	session.AddHandler(c.onMessageCreate)

	return c, nil
}

// Open connects the gateway and starts forwarding events to sink. Handlers
// submit with ctx, so cancelling it stops event delivery.
func (c *Client) Open(ctx context.Context, sink EventSink) error {
	if c.session == nil {
		return fmt.Errorf("client has no gateway session")
	}

	c.mu.Lock()
	c.sink = sink
	c.baseCtx = ctx
	c.mu.Unlock()

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return nil
}

// Close disconnects the gateway
func (c *Client) Close() error {
	c.ready.Store(false)
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// Ready reports whether the gateway session is established
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Snapshot returns the member's roles and boost start in guildID
func (c *Client) Snapshot(ctx context.Context, guildID, userID string) (*membership.Snapshot, error) {
	m, err := c.rest.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, "failed to get member %s in guild %s", userID, guildID)
	}
	return snapshotFromMember(m), nil
}

// ListMembers returns one page of guild members ordered by id
func (c *Client) ListMembers(ctx context.Context, guildID, after string, limit int) ([]membership.Member, error) {
	page, err := c.rest.GuildMembers(guildID, after, limit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, "failed to list members of guild %s", guildID)
	}

	out := make([]membership.Member, 0, len(page))
	for _, m := range page {
		if m == nil || m.User == nil {
			continue
		}
		out = append(out, membership.Member{UserID: m.User.ID, Snapshot: snapshotFromMember(m)})
	}
	return out, nil
}

// AddRole grants roleID to the member
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.rest.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classifyError(err, "failed to add role %s to %s", roleID, userID)
	}
	return nil
}

// RemoveRole revokes roleID. An unknown member or role counts as removed.
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.rest.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	err = classifyError(err, "failed to remove role %s from %s", roleID, userID)
	if errors.Is(err, membership.ErrNotFound) {
		return nil
	}
	return err
}

// SendDM opens a direct channel to userID and posts content
func (c *Client) SendDM(ctx context.Context, userID, content string) error {
	ch, err := c.rest.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classifyError(err, "failed to open DM channel with %s", userID)
	}
	return c.Reply(ctx, ch.ID, content)
}

// Reply posts content to channelID
func (c *Client) Reply(ctx context.Context, channelID, content string) error {
	if _, err := c.rest.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return classifyError(err, "failed to send message to channel %s", channelID)
	}
	return nil
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	c.mu.Lock()
	if r.User != nil {
		c.selfID = r.User.ID
	}
	c.mu.Unlock()

	c.ready.Store(true)
	slog.Info("Gateway session ready", "guilds", len(r.Guilds), "session_id", r.SessionID)
}

func (c *Client) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.ready.Store(true)
	slog.Info("Gateway session resumed")
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.ready.Store(false)
	slog.Warn("Gateway disconnected")
}

func (c *Client) onMemberUpdate(_ *discordgo.Session, u *discordgo.GuildMemberUpdate) {
	change, ok := changeFromUpdate(u)
	if !ok {
		return
	}
	c.submit(bot.MemberChanged{Change: change})
}

func (c *Client) onMemberAdd(_ *discordgo.Session, a *discordgo.GuildMemberAdd) {
	if a.Member == nil || a.User == nil {
		return
	}
	c.submit(bot.MemberJoined{GuildID: a.GuildID, UserID: a.User.ID})
}

func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	c.mu.Lock()
	selfID := c.selfID
	c.mu.Unlock()

	cmd, ok := commandFromMessage(m, selfID)
	if !ok {
		return
	}
	c.submit(cmd)
}

func (c *Client) submit(ev bot.Event) {
	c.mu.Lock()
	sink, ctx := c.sink, c.baseCtx
	c.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink.Submit(ctx, ev); err != nil {
		slog.Warn("Dropping gateway event", "event", ev.Kind(), "error", err)
	}
}

// snapshotFromMember converts a platform member
func snapshotFromMember(m *discordgo.Member) *membership.Snapshot {
	if m == nil {
		return nil
	}
	return membership.NewSnapshot(m.Roles, m.PremiumSince)
}

// changeFromUpdate builds a Change. BeforeUpdate is nil when the member was
// not cached, which leaves Before unknown.
func changeFromUpdate(u *discordgo.GuildMemberUpdate) (membership.Change, bool) {
	if u == nil || u.Member == nil || u.User == nil {
		return membership.Change{}, false
	}
	return membership.Change{
		GuildID: u.GuildID,
		UserID:  u.User.ID,
		Before:  snapshotFromMember(u.BeforeUpdate),
		After:   snapshotFromMember(u.Member),
	}, true
}

// commandFromMessage keeps direct messages from humans other than the bot
func commandFromMessage(m *discordgo.MessageCreate, selfID string) (bot.Command, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return bot.Command{}, false
	}
	if m.GuildID != "" || m.Author.Bot || m.Author.ID == selfID {
		return bot.Command{}, false
	}
	return bot.Command{
		AuthorID:  m.Author.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}, true
}

// classifyError maps a 404 response onto membership.ErrNotFound and wraps
// everything else with context
func classifyError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", msg, membership.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
