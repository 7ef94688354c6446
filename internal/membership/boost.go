package membership

// IsBoosting combines the two upstream boost signals. The booster role and
// the subscription timestamp propagate independently, so either one counts.
func IsBoosting(s *Snapshot, boosterRoleID string) bool {
	if s == nil {
		return false
	}
	return s.HasRole(boosterRoleID) || s.SubscribedSince != nil
}

// Change is a membership-changed event for one user in one guild.
// Before is nil when the platform had no cached prior state.
type Change struct {
	GuildID string
	UserID  string
	Before  *Snapshot
	After   *Snapshot
}

// Transition is the result of comparing a Change's boost state.
type Transition struct {
	WasBoosting   bool
	IsBoosting    bool
	BeforeUnknown bool
}

// Changed reports whether the change needs reconciling.
func (t Transition) Changed() bool {
	return t.BeforeUnknown || t.WasBoosting != t.IsBoosting
}

// DetectTransition evaluates the boost predicate on both sides of a change.
func DetectTransition(c Change, boosterRoleID string) Transition {
	return Transition{
		WasBoosting:   IsBoosting(c.Before, boosterRoleID),
		IsBoosting:    IsBoosting(c.After, boosterRoleID),
		BeforeUnknown: c.Before == nil,
	}
}
