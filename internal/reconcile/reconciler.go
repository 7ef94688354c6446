package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/boostsync/internal/membership"
	"github.com/stacklok/boostsync/internal/telemetry"
)

// Reconciler converges member roles toward their boost status. Every
// operation is idempotent: repeating it with the same desired state
// performs no further mutations.
type Reconciler interface {
	// SyncCustomRole adds or removes the custom booster role in the source guild
	SyncCustomRole(ctx context.Context, userID string, source *membership.Snapshot, desired bool) (*Result, error)

	// SyncTargetAccess sets the access/denied role pair in the target guild.
	// Members absent from the target guild are left alone
	SyncTargetAccess(ctx context.Context, userID string, desired bool) (*Result, error)

	// HandleBoostChange reconciles only when the boost predicate flipped
	HandleBoostChange(ctx context.Context, change membership.Change) (*Result, error)

	// HandleJoin applies the join-time policy for a new target guild member
	HandleJoin(ctx context.Context, userID string) (*Result, error)

	// Resync recomputes the desired state from the live source snapshot
	Resync(ctx context.Context, userID string) (*Result, error)

	// Inspect reports a member's computed state without mutating anything
	Inspect(ctx context.Context, userID string) (*Report, error)

	// ReconcileAll walks every source member once to correct drift
	ReconcileAll(ctx context.Context) (*Summary, error)
}

// Option is a function that configures the reconciler
type Option func(*defaultReconciler)

// WithMetrics sets the reconcile metrics
func WithMetrics(metrics *telemetry.ReconcileMetrics) Option {
	return func(r *defaultReconciler) {
		r.metrics = metrics
	}
}

type defaultReconciler struct {
	cfg      Config
	provider membership.Provider
	editor   membership.RoleEditor
	metrics  *telemetry.ReconcileMetrics
}

// New creates a Reconciler backed by provider and editor
func New(cfg Config, provider membership.Provider, editor membership.RoleEditor, opts ...Option) Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	r := &defaultReconciler{
		cfg:      cfg,
		provider: provider,
		editor:   editor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncCustomRole adds the custom role when desired and absent, removes it when
// undesired and present
func (r *defaultReconciler) SyncCustomRole(
	ctx context.Context, userID string, source *membership.Snapshot, desired bool,
) (*Result, error) {
	result := &Result{UserID: userID, Boosting: desired}
	if r.cfg.CustomRoleID == "" || source == nil {
		return result, nil
	}

	has := source.HasRole(r.cfg.CustomRoleID)
	switch {
	case desired && !has:
		if err := r.addRole(ctx, r.cfg.SourceGuildID, userID, r.cfg.CustomRoleID, result); err != nil {
			return result, err
		}
	case !desired && has:
		r.removeRole(ctx, r.cfg.SourceGuildID, userID, r.cfg.CustomRoleID, result)
	}
	return result, nil
}

// SyncTargetAccess resolves the target membership and applies the role pair
func (r *defaultReconciler) SyncTargetAccess(ctx context.Context, userID string, desired bool) (*Result, error) {
	result := &Result{UserID: userID, Boosting: desired}

	target, err := r.provider.Snapshot(ctx, r.cfg.TargetGuildID, userID)
	if errors.Is(err, membership.ErrNotFound) {
		slog.Debug("Member not in target guild, access is set on join", "user_id", userID)
		return result, nil
	}
	if err != nil {
		return result, &Error{
			Err:     err,
			Message: fmt.Sprintf("failed to look up target member %s: %v", userID, err),
			GuildID: r.cfg.TargetGuildID,
			UserID:  userID,
		}
	}

	result.TargetPresent = true
	return result, r.applyAccess(ctx, userID, target, desired, result)
}

// applyAccess grants one of the access/denied pair and revokes the other.
// The grant happens first so the member never holds neither role.
func (r *defaultReconciler) applyAccess(
	ctx context.Context, userID string, target *membership.Snapshot, desired bool, result *Result,
) error {
	grant, revoke := r.cfg.DeniedRoleID, r.cfg.AccessRoleID
	if desired {
		grant, revoke = r.cfg.AccessRoleID, r.cfg.DeniedRoleID
	}

	if !target.HasRole(grant) {
		if err := r.addRole(ctx, r.cfg.TargetGuildID, userID, grant, result); err != nil {
			return err
		}
	}
	if target.HasRole(revoke) {
		r.removeRole(ctx, r.cfg.TargetGuildID, userID, revoke, result)
	}
	return nil
}

// HandleBoostChange reconciles a membership-changed event from the source guild
func (r *defaultReconciler) HandleBoostChange(ctx context.Context, change membership.Change) (*Result, error) {
	if change.GuildID != "" && change.GuildID != r.cfg.SourceGuildID {
		return &Result{UserID: change.UserID}, nil
	}

	tr := membership.DetectTransition(change, r.cfg.BoosterRoleID)
	if !tr.Changed() {
		return &Result{UserID: change.UserID, Boosting: tr.IsBoosting}, nil
	}

	slog.Info("Boost state changed",
		"user_id", change.UserID,
		"was_boosting", tr.WasBoosting,
		"is_boosting", tr.IsBoosting,
		"before_unknown", tr.BeforeUnknown)

	return r.timed(ctx, TriggerBoostChange, func() (*Result, error) {
		return r.syncBoth(ctx, change.UserID, change.After, tr.IsBoosting)
	})
}

// HandleJoin grants access to boosters and denies everyone else. A failed
// source lookup fails closed to denied.
func (r *defaultReconciler) HandleJoin(ctx context.Context, userID string) (*Result, error) {
	return r.timed(ctx, TriggerJoin, func() (*Result, error) {
		source, err := r.provider.Snapshot(ctx, r.cfg.SourceGuildID, userID)
		switch {
		case errors.Is(err, membership.ErrNotFound):
			source = nil
		case err != nil:
			slog.Warn("Source lookup failed on join, denying access",
				"user_id", userID,
				"error", err)
			source = nil
		}

		desired := membership.IsBoosting(source, r.cfg.BoosterRoleID)

		result, err := r.SyncTargetAccess(ctx, userID, desired)
		if err != nil {
			return result, err
		}

		custom, err := r.SyncCustomRole(ctx, userID, source, desired)
		result.merge(custom)
		return result, err
	})
}

// Resync is the forced reconciliation used by the admin command
func (r *defaultReconciler) Resync(ctx context.Context, userID string) (*Result, error) {
	return r.timed(ctx, TriggerForce, func() (*Result, error) {
		source, err := r.provider.Snapshot(ctx, r.cfg.SourceGuildID, userID)
		if err != nil && !errors.Is(err, membership.ErrNotFound) {
			return &Result{UserID: userID}, &Error{
				Err:     err,
				Message: fmt.Sprintf("failed to look up source member %s: %v", userID, err),
				GuildID: r.cfg.SourceGuildID,
				UserID:  userID,
			}
		}
		if err != nil {
			source = nil
		}
		return r.syncBoth(ctx, userID, source, membership.IsBoosting(source, r.cfg.BoosterRoleID))
	})
}

// syncBoth runs both entry points and reports every failure
func (r *defaultReconciler) syncBoth(
	ctx context.Context, userID string, source *membership.Snapshot, desired bool,
) (*Result, error) {
	result, customErr := r.SyncCustomRole(ctx, userID, source, desired)
	target, targetErr := r.SyncTargetAccess(ctx, userID, desired)
	result.merge(target)
	return result, errors.Join(customErr, targetErr)
}

// Inspect builds a Report from live snapshots of both guilds
func (r *defaultReconciler) Inspect(ctx context.Context, userID string) (*Report, error) {
	report := &Report{UserID: userID, Access: AccessUnknown}

	source, err := r.provider.Snapshot(ctx, r.cfg.SourceGuildID, userID)
	switch {
	case err == nil:
		report.InSource = true
		report.Boosting = membership.IsBoosting(source, r.cfg.BoosterRoleID)
		report.HasBoosterRole = source.HasRole(r.cfg.BoosterRoleID)
		report.SubscribedSince = source.SubscribedSince
		report.HasCustomRole = r.cfg.CustomRoleID != "" && source.HasRole(r.cfg.CustomRoleID)
	case !errors.Is(err, membership.ErrNotFound):
		return nil, fmt.Errorf("failed to look up source member: %w", err)
	}

	target, err := r.provider.Snapshot(ctx, r.cfg.TargetGuildID, userID)
	switch {
	case err == nil:
		report.InTarget = true
		report.HasAccessRole = target.HasRole(r.cfg.AccessRoleID)
		report.HasDeniedRole = target.HasRole(r.cfg.DeniedRoleID)
		report.Access = r.accessState(target)
	case !errors.Is(err, membership.ErrNotFound):
		return nil, fmt.Errorf("failed to look up target member: %w", err)
	}

	return report, nil
}

// accessState maps the role pair onto AccessState
func (r *defaultReconciler) accessState(target *membership.Snapshot) AccessState {
	access := target.HasRole(r.cfg.AccessRoleID)
	denied := target.HasRole(r.cfg.DeniedRoleID)
	switch {
	case access && !denied:
		return AccessGranted
	case denied && !access:
		return AccessDenied
	default:
		return AccessUnknown
	}
}

// ReconcileAll pages through the source guild and reconciles each member.
// Per-member failures are counted and the pass continues. Pages only supply
// ids; each decision uses a fresh snapshot because live events are handled
// concurrently with the pass.
func (r *defaultReconciler) ReconcileAll(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	after := ""

	slog.Info("Starting bulk reconciliation", "source_guild", r.cfg.SourceGuildID)

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		members, err := r.provider.ListMembers(ctx, r.cfg.SourceGuildID, after, r.cfg.PageSize)
		if err != nil {
			r.metrics.RecordReconcile(ctx, TriggerStartup, time.Since(start), false)
			return summary, fmt.Errorf("failed to list source members after %q: %w", after, err)
		}

		for _, m := range members {
			summary.Scanned++
			result, err := r.reconcileListed(ctx, m.UserID)
			summary.Mutations += result.Mutations()
			if result.TargetPresent {
				summary.InTarget++
			}
			if err != nil {
				summary.Failures++
				slog.Error("Bulk reconciliation failed for member", "user_id", m.UserID, "error", err)
			}
		}

		if len(members) < r.cfg.PageSize {
			break
		}
		after = members[len(members)-1].UserID
	}

	r.metrics.RecordReconcile(ctx, TriggerStartup, time.Since(start), summary.Failures == 0)
	slog.Info("Bulk reconciliation complete",
		"scanned", summary.Scanned,
		"in_target", summary.InTarget,
		"mutations", summary.Mutations,
		"failures", summary.Failures,
		"duration", time.Since(start))

	return summary, nil
}

// reconcileListed re-reads a listed member before syncing both guilds
func (r *defaultReconciler) reconcileListed(ctx context.Context, userID string) (*Result, error) {
	source, err := r.provider.Snapshot(ctx, r.cfg.SourceGuildID, userID)
	switch {
	case errors.Is(err, membership.ErrNotFound):
		source = nil
	case err != nil:
		return &Result{UserID: userID}, &Error{
			Err:     err,
			Message: fmt.Sprintf("failed to look up source member %s: %v", userID, err),
			GuildID: r.cfg.SourceGuildID,
			UserID:  userID,
		}
	}
	return r.syncBoth(ctx, userID, source, membership.IsBoosting(source, r.cfg.BoosterRoleID))
}

// addRole performs an addition whose failure fails the reconciliation
func (r *defaultReconciler) addRole(ctx context.Context, guildID, userID, roleID string, result *Result) error {
	if err := r.editor.AddRole(ctx, guildID, userID, roleID); err != nil {
		slog.Error("Failed to add role",
			"guild_id", guildID,
			"user_id", userID,
			"role_id", roleID,
			"error", err)
		return &Error{
			Err:     err,
			Message: fmt.Sprintf("failed to add role %s to %s in guild %s: %v", roleID, userID, guildID, err),
			GuildID: guildID,
			UserID:  userID,
			RoleID:  roleID,
		}
	}
	result.Added = append(result.Added, RoleChange{GuildID: guildID, RoleID: roleID})
	r.metrics.RecordMutation(ctx, "add", roleID)
	return nil
}

// removeRole is best-effort: the desired end state may already hold
func (r *defaultReconciler) removeRole(ctx context.Context, guildID, userID, roleID string, result *Result) {
	if err := r.editor.RemoveRole(ctx, guildID, userID, roleID); err != nil {
		slog.Warn("Failed to remove role, continuing",
			"guild_id", guildID,
			"user_id", userID,
			"role_id", roleID,
			"error", err)
		return
	}
	result.Removed = append(result.Removed, RoleChange{GuildID: guildID, RoleID: roleID})
	r.metrics.RecordMutation(ctx, "remove", roleID)
}

// timed records duration and outcome for one reconciliation
func (r *defaultReconciler) timed(ctx context.Context, trigger string, fn func() (*Result, error)) (*Result, error) {
	start := time.Now()
	result, err := fn()
	r.metrics.RecordReconcile(ctx, trigger, time.Since(start), err == nil)

	if err != nil {
		slog.Error("Reconciliation failed", "trigger", trigger, "error", err)
	} else if result.Mutations() > 0 {
		slog.Info("Reconciliation applied",
			"trigger", trigger,
			"user_id", result.UserID,
			"boosting", result.Boosting,
			"added", len(result.Added),
			"removed", len(result.Removed))
	}
	return result, err
}
