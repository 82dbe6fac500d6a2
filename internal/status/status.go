// Package status derives the well-being classification for a dog. It
// is a pure function of the published snapshot inputs; nothing here is
// cached or stored.
package status

import (
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/walk"
)

// Overall is the priority-ordered classification; higher is worse.
type Overall string

const (
	Excellent      Overall = "excellent"
	Good           Overall = "good"
	NeedsAttention Overall = "needs_attention"
	Concern        Overall = "concern"
	Emergency      Overall = "emergency"
)

// Priority orders Overall values; larger means more urgent.
func (o Overall) Priority() int {
	switch o {
	case Emergency:
		return 4
	case Concern:
		return 3
	case NeedsAttention:
		return 2
	case Good:
		return 1
	case Excellent:
		return 0
	}
	return -1
}

// Activity flags reported independently of the overall status.
const (
	FlagNeedsFeeding   = "needs_feeding"
	FlagNeedsWalk      = "needs_walk"
	FlagWalkInProgress = "walk_in_progress"
	FlagAllDone        = "all_done"
	FlagPartiallyDone  = "partially_done"
)

// Health flags carried on the derived status.
const (
	HealthFlagConcern   = "health_concern"
	HealthFlagEmergency = "emergency"
)

// Derived is the recomputed status. Never persisted.
type Derived struct {
	Overall        Overall  `json:"overall_status"`
	Activity       []string `json:"activity_status"`
	NeedsAttention bool     `json:"needs_attention"`
	HealthFlags    []string `json:"health_flags,omitempty"`
}

// Tuning holds the schedule thresholds, immutable after startup.
type Tuning struct {
	// FeedingGrace is how far past a configured meal slot a missing
	// feeding becomes overdue.
	FeedingGrace time.Duration
	// WalkCutoffHour is the local hour after which a day without a
	// completed walk needs attention.
	WalkCutoffHour int
}

func DefaultTuning() Tuning {
	return Tuning{FeedingGrace: 90 * time.Minute, WalkCutoffHour: 18}
}

// Input is the read-only snapshot Evaluate works from.
type Input struct {
	Profile     dog.Profile
	Session     *walk.Session // active session, nil while idle
	Counters    activity.Counters
	HealthFlags map[string]bool
	Now         time.Time
}

// Evaluate recomputes the derived status.
func Evaluate(in Input, tuning Tuning) Derived {
	d := Derived{}

	feedingOutstanding := mealsOutstanding(in.Profile, in.Counters, in.Now, 0)
	feedingOverdue := mealsOutstanding(in.Profile, in.Counters, in.Now, tuning.FeedingGrace)
	walkOutstanding := in.Counters.WalkCount == 0 && !in.Session.Active()
	walkOverdue := in.Counters.WalkCount == 0 && in.Now.Hour() >= tuning.WalkCutoffHour

	if in.Session.Active() {
		d.Activity = append(d.Activity, FlagWalkInProgress)
	}
	if feedingOutstanding {
		d.Activity = append(d.Activity, FlagNeedsFeeding)
	}
	if walkOutstanding {
		d.Activity = append(d.Activity, FlagNeedsWalk)
	}
	if !feedingOutstanding && !walkOutstanding && in.Counters.WalkCount > 0 {
		d.Activity = append(d.Activity, FlagAllDone)
	} else if !feedingOutstanding || in.Counters.WalkCount > 0 {
		d.Activity = append(d.Activity, FlagPartiallyDone)
	}

	if in.HealthFlags[HealthFlagConcern] {
		d.HealthFlags = append(d.HealthFlags, HealthFlagConcern)
	}
	if in.HealthFlags[HealthFlagEmergency] {
		d.HealthFlags = append(d.HealthFlags, HealthFlagEmergency)
	}

	d.NeedsAttention = feedingOverdue || walkOverdue || in.HealthFlags[HealthFlagConcern]

	switch {
	case in.HealthFlags[HealthFlagEmergency]:
		d.Overall = Emergency
	case in.HealthFlags[HealthFlagConcern]:
		d.Overall = Concern
	case d.NeedsAttention:
		d.Overall = NeedsAttention
	case in.Counters.WalkCount > 0 && !feedingOutstanding:
		d.Overall = Excellent
	default:
		d.Overall = Good
	}
	return d
}

// mealsOutstanding reports whether any configured meal slot earlier
// than now (plus grace) has no matching feeding yet today.
func mealsOutstanding(p dog.Profile, counters activity.Counters, now time.Time, grace time.Duration) bool {
	for slot, clock := range p.FeedingTimes {
		offset, err := dog.ParseClock(clock)
		if err != nil {
			continue
		}
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		due := day.Add(offset).Add(grace)
		if now.After(due) && counters.Meals[slot] == 0 {
			return true
		}
	}
	return false
}
