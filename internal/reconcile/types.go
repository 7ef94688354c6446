// Package reconcile drives a member's roles in the source and target guilds
// toward the state implied by their boost status.
package reconcile

import (
	"time"
)

// Triggers label what started a reconciliation in logs and metrics
const (
	TriggerBoostChange = "boost-change"
	TriggerJoin        = "join"
	TriggerForce       = "force"
	TriggerStartup     = "startup"
)

// DefaultPageSize is the member page size used by ReconcileAll
const DefaultPageSize = 1000

// Config names the two guilds and four roles the reconciler manages
type Config struct {
	SourceGuildID string
	TargetGuildID string

	// BoosterRoleID is the platform-managed subscriber role in the source guild
	BoosterRoleID string
	// CustomRoleID is the bot-managed booster role in the source guild; optional
	CustomRoleID string
	// AccessRoleID and DeniedRoleID live in the target guild
	AccessRoleID string
	DeniedRoleID string

	PageSize int
}

// AccessState is a member's derived standing in the target guild
type AccessState string

const (
	// AccessGranted means the member holds only the access role
	AccessGranted AccessState = "ACCESS"
	// AccessDenied means the member holds only the denied role
	AccessDenied AccessState = "DENIED"
	// AccessUnknown covers absent members and members holding neither or both roles
	AccessUnknown AccessState = "UNKNOWN"
)

// RoleChange is one role mutation that was performed
type RoleChange struct {
	GuildID string
	RoleID  string
}

// Result describes what a reconciliation did
type Result struct {
	UserID        string
	Boosting      bool
	TargetPresent bool
	Added         []RoleChange
	Removed       []RoleChange
}

// Mutations returns the number of role changes performed
func (r *Result) Mutations() int {
	if r == nil {
		return 0
	}
	return len(r.Added) + len(r.Removed)
}

func (r *Result) merge(other *Result) {
	if other == nil {
		return
	}
	r.Added = append(r.Added, other.Added...)
	r.Removed = append(r.Removed, other.Removed...)
	r.TargetPresent = r.TargetPresent || other.TargetPresent
}

// Report is the read-only view used by the checkboost command
type Report struct {
	UserID          string
	InSource        bool
	Boosting        bool
	HasBoosterRole  bool
	SubscribedSince *time.Time
	HasCustomRole   bool
	InTarget        bool
	HasAccessRole   bool
	HasDeniedRole   bool
	Access          AccessState
}

// Summary aggregates a bulk reconciliation pass
type Summary struct {
	Scanned   int
	InTarget  int
	Mutations int
	Failures  int
}

// Error represents a failed lookup or role addition
type Error struct {
	Err     error
	Message string
	GuildID string
	UserID  string
	RoleID  string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
