package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/boostsync/internal/bot"
	"github.com/stacklok/boostsync/internal/membership"
)

func notFound() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember, Message: "Unknown Member"},
	}
}

func forbidden() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
	}
}

type fakeREST struct {
	members    map[string]*discordgo.Member
	page       []*discordgo.Member
	err        error
	added      []string
	removed    []string
	sent       map[string]string
	dmChannels map[string]string
}

func (f *fakeREST) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.members[userID]
	if !ok {
		return nil, notFound()
	}
	return m, nil
}

func (f *fakeREST) GuildMembers(_, _ string, _ int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeREST) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, userID+":"+roleID)
	return nil
}

func (f *fakeREST) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, userID+":"+roleID)
	return nil
}

func (f *fakeREST) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Channel{ID: f.dmChannels[recipientID]}, nil
}

func (f *fakeREST) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[channelID] = content
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func newTestClient(rest restSession) *Client {
	return &Client{rest: rest, baseCtx: context.Background()}
}

func TestClient_Snapshot(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rest := &fakeREST{members: map[string]*discordgo.Member{
		"u1": {User: &discordgo.User{ID: "u1"}, Roles: []string{"r2", "r1"}, PremiumSince: &since},
	}}
	c := newTestClient(rest)

	snap, err := c.Snapshot(context.Background(), "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, snap.RoleList())
	require.NotNil(t, snap.SubscribedSince)
	assert.Equal(t, since, *snap.SubscribedSince)

	_, err = c.Snapshot(context.Background(), "g", "ghost")
	require.ErrorIs(t, err, membership.ErrNotFound)
}

func TestClient_SnapshotOtherErrors(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeREST{err: forbidden()})

	_, err := c.Snapshot(context.Background(), "g", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, membership.ErrNotFound)

	var restErr *discordgo.RESTError
	require.ErrorAs(t, err, &restErr)
	assert.Equal(t, http.StatusForbidden, restErr.Response.StatusCode)
}

func TestClient_ListMembers(t *testing.T) {
	t.Parallel()

	rest := &fakeREST{page: []*discordgo.Member{
		{User: &discordgo.User{ID: "1"}, Roles: []string{"a"}},
		nil,
		{User: nil},
		{User: &discordgo.User{ID: "2"}},
	}}
	c := newTestClient(rest)

	members, err := c.ListMembers(context.Background(), "g", "", 1000)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "1", members[0].UserID)
	assert.True(t, members[0].Snapshot.HasRole("a"))
	assert.Equal(t, "2", members[1].UserID)
}

func TestClient_RoleMutations(t *testing.T) {
	t.Parallel()

	rest := &fakeREST{}
	c := newTestClient(rest)
	ctx := context.Background()

	require.NoError(t, c.AddRole(ctx, "g", "u1", "access"))
	require.NoError(t, c.RemoveRole(ctx, "g", "u1", "denied"))
	assert.Equal(t, []string{"u1:access"}, rest.added)
	assert.Equal(t, []string{"u1:denied"}, rest.removed)
}

func TestClient_RemoveRoleNotFoundIsSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeREST{err: notFound()})
	require.NoError(t, c.RemoveRole(context.Background(), "g", "ghost", "denied"))
}

func TestClient_AddRoleFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeREST{err: forbidden()})
	err := c.AddRole(context.Background(), "g", "u1", "access")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add role access to u1")
}

func TestClient_SendDM(t *testing.T) {
	t.Parallel()

	rest := &fakeREST{dmChannels: map[string]string{"op": "dm-1"}}
	c := newTestClient(rest)

	require.NoError(t, c.SendDM(context.Background(), "op", "hello"))
	assert.Equal(t, "hello", rest.sent["dm-1"])
}

func TestDMNotifier(t *testing.T) {
	t.Parallel()

	rest := &fakeREST{dmChannels: map[string]string{"op": "dm-1"}}
	c := newTestClient(rest)
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	require.NoError(t, NewDMNotifier(c, "op").NotifyAvailable(context.Background(), "vanityteen", at))
	assert.Contains(t, rest.sent["dm-1"], "discord.gg/vanityteen")
	assert.Contains(t, rest.sent["dm-1"], "2026-10-19 08:30:00 UTC")

	err := NewDMNotifier(c, "").NotifyAvailable(context.Background(), "vanityteen", at)
	require.Error(t, err)
}

func TestChangeFromUpdate(t *testing.T) {
	t.Parallel()

	update := &discordgo.GuildMemberUpdate{
		Member:       &discordgo.Member{GuildID: "g", User: &discordgo.User{ID: "u1"}, Roles: []string{"booster"}},
		BeforeUpdate: &discordgo.Member{GuildID: "g", User: &discordgo.User{ID: "u1"}},
	}
	change, ok := changeFromUpdate(update)
	require.True(t, ok)
	assert.Equal(t, "g", change.GuildID)
	assert.Equal(t, "u1", change.UserID)
	require.NotNil(t, change.Before)
	assert.Empty(t, change.Before.RoleList())
	assert.True(t, change.After.HasRole("booster"))

	// Uncached members have no before snapshot
	update.BeforeUpdate = nil
	change, ok = changeFromUpdate(update)
	require.True(t, ok)
	assert.Nil(t, change.Before)

	_, ok = changeFromUpdate(&discordgo.GuildMemberUpdate{})
	assert.False(t, ok)
}

func TestCommandFromMessage(t *testing.T) {
	t.Parallel()

	msg := func(guildID string, author *discordgo.User) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID:   guildID,
			ChannelID: "c1",
			Content:   "!vanitystatus",
			Author:    author,
		}}
	}

	tests := []struct {
		name   string
		msg    *discordgo.MessageCreate
		wantOK bool
	}{
		{name: "direct message", msg: msg("", &discordgo.User{ID: "op"}), wantOK: true},
		{name: "guild message", msg: msg("g", &discordgo.User{ID: "op"})},
		{name: "bot author", msg: msg("", &discordgo.User{ID: "other", Bot: true})},
		{name: "own message", msg: msg("", &discordgo.User{ID: "self"})},
		{name: "no author", msg: msg("", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, ok := commandFromMessage(tt.msg, "self")
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, bot.Command{AuthorID: "op", ChannelID: "c1", Content: "!vanitystatus"}, cmd)
			}
		})
	}
}

type sinkFunc func(ctx context.Context, ev bot.Event) error

func (f sinkFunc) Submit(ctx context.Context, ev bot.Event) error { return f(ctx, ev) }

func TestClient_HandlersSubmitEvents(t *testing.T) {
	t.Parallel()

	var got []bot.Event
	c := newTestClient(&fakeREST{})
	c.sink = sinkFunc(func(_ context.Context, ev bot.Event) error {
		got = append(got, ev)
		return errors.New("queue closed")
	})

	c.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "self"}})
	assert.True(t, c.Ready())

	c.onMemberAdd(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "t", User: &discordgo.User{ID: "u2"}}})
	c.onMemberUpdate(nil, &discordgo.GuildMemberUpdate{Member: &discordgo.Member{GuildID: "s", User: &discordgo.User{ID: "u1"}}})
	c.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{Author: &discordgo.User{ID: "self"}}})

	require.Len(t, got, 2)
	assert.Equal(t, bot.MemberJoined{GuildID: "t", UserID: "u2"}, got[0])
	assert.IsType(t, bot.MemberChanged{}, got[1])

	c.onDisconnect(nil, &discordgo.Disconnect{})
	assert.False(t, c.Ready())
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ERROR", slogLevel(discordgo.LogError).String())
	assert.Equal(t, "WARN", slogLevel(discordgo.LogWarning).String())
	assert.Equal(t, "INFO", slogLevel(discordgo.LogInformational).String())
	assert.Equal(t, "DEBUG", slogLevel(discordgo.LogDebug).String())
}
