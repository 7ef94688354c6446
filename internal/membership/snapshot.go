// Package membership models a member's view of a community at one instant
// and the boost predicate computed from it.
package membership

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned by a Provider when the member (or the community)
// is unknown. It is an expected outcome, not a failure.
var ErrNotFound = errors.New("member not found")

// Snapshot is a member's role set and subscription start in one community.
type Snapshot struct {
	// Roles is the set of role ids the member holds
	Roles map[string]struct{}

	// SubscribedSince is when the member started boosting, nil if not boosting
	SubscribedSince *time.Time
}

// NewSnapshot builds a Snapshot from a role list.
func NewSnapshot(roles []string, subscribedSince *time.Time) *Snapshot {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return &Snapshot{
		Roles:           set,
		SubscribedSince: subscribedSince,
	}
}

// HasRole reports whether the snapshot contains roleID. A nil snapshot has no roles.
func (s *Snapshot) HasRole(roleID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Roles[roleID]
	return ok
}

// RoleList returns the role ids in sorted order.
func (s *Snapshot) RoleList() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Roles))
	for r := range s.Roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Member pairs a user id with its snapshot, as returned by bulk listings.
type Member struct {
	UserID   string
	Snapshot *Snapshot
}

// Provider looks up live membership state.
type Provider interface {
	// Snapshot returns the member's current state in guildID, or ErrNotFound
	Snapshot(ctx context.Context, guildID, userID string) (*Snapshot, error)

	// ListMembers returns up to limit members of guildID with ids greater than after
	ListMembers(ctx context.Context, guildID, after string, limit int) ([]Member, error)
}

// RoleEditor mutates a member's roles. RemoveRole must treat an absent role
// (or absent member) as success.
type RoleEditor interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}
