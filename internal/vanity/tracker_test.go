package vanity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func observeAll(tr *Tracker, threshold int, seq ...Observation) (confirmations int) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i, obs := range seq {
		if tr.Observe(obs, threshold, at.Add(time.Duration(i)*time.Second)) {
			confirmations++
		}
	}
	return confirmations
}

func repeat(obs Observation, n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		out[i] = obs
	}
	return out
}

func TestTracker_Observe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		sequence          []Observation
		wantMisses        int
		wantNotified      bool
		wantConfirmations int
	}{
		{
			name:       "taken resets the counter",
			sequence:   append(append(repeat(ObservationMissing, 4), ObservationTaken), repeat(ObservationMissing, 4)...),
			wantMisses: 4,
		},
		{
			name:              "five consecutive misses confirm",
			sequence:          repeat(ObservationMissing, 5),
			wantMisses:        5,
			wantNotified:      true,
			wantConfirmations: 1,
		},
		{
			name:       "error freezes the counter",
			sequence:   []Observation{ObservationMissing, ObservationMissing, ObservationError, ObservationMissing},
			wantMisses: 3,
		},
		{
			name:              "observations after confirmation are ignored",
			sequence:          append(repeat(ObservationMissing, 5), ObservationTaken, ObservationMissing),
			wantMisses:        5,
			wantNotified:      true,
			wantConfirmations: 1,
		},
		{
			name:       "only errors",
			sequence:   repeat(ObservationError, 10),
			wantMisses: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := &Tracker{Code: "vanityteen"}
			confirmations := observeAll(tr, DefaultRequiredMisses, tt.sequence...)

			assert.Equal(t, tt.wantMisses, tr.ConsecutiveMisses)
			assert.Equal(t, tt.wantNotified, tr.Notified)
			assert.Equal(t, tt.wantConfirmations, confirmations)
		})
	}
}

func TestTracker_ConfirmsOnFifthObservation(t *testing.T) {
	t.Parallel()

	tr := &Tracker{Code: "vanityteen"}
	at := time.Now()
	for i := 1; i <= 4; i++ {
		assert.False(t, tr.Observe(ObservationMissing, 5, at), "observation %d must not confirm", i)
		assert.Equal(t, StateArmed, tr.State())
	}
	assert.True(t, tr.Observe(ObservationMissing, 5, at))
	assert.Equal(t, StateConfirmed, tr.State())
	assert.NotNil(t, tr.NotifiedAt)
}

func TestTracker_Reset(t *testing.T) {
	t.Parallel()

	tr := &Tracker{Code: "vanityteen"}
	observeAll(tr, 5, repeat(ObservationMissing, 5)...)
	assert.Equal(t, StateConfirmed, tr.State())
	before := tr.Generation()

	tr.Reset()

	assert.False(t, tr.Notified)
	assert.Equal(t, 0, tr.ConsecutiveMisses)
	assert.Nil(t, tr.NotifiedAt)
	assert.Equal(t, StateArmed, tr.State())
	assert.NotEqual(t, before, tr.Generation())
}

func TestFormatNotification(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	msg := FormatNotification("vanityteen", at)

	assert.Contains(t, msg, "discord.gg/vanityteen")
	assert.Contains(t, msg, "2026-03-04 04:06:07 UTC")
	assert.Equal(t, "2026-03-04 04:06:07 UTC", FormatTimestamp(at))
}
