package registry

import (
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/status"
	"github.com/Bigdaddy1990/paw-control/internal/walk"
)

// Manual commands accepted by SubmitCommand.
const (
	CmdStartWalk     = "start_walk"
	CmdEndWalk       = "end_walk"
	CmdFeed          = "feed"
	CmdHealthCheck   = "health_check"
	CmdStartTraining = "start_training"
	CmdEndTraining   = "end_training"
	CmdStartPlaytime = "start_playtime"
	CmdEndPlaytime   = "end_playtime"
	CmdLogMedication = "log_medication"
	CmdDailyReset    = "daily_reset"
)

// Command carries a manual service call and its parameters. Unused
// fields stay zero.
type Command struct {
	Name      string    `json:"command"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// feed
	MealType string  `json:"meal_type,omitempty"`
	AmountG  float64 `json:"amount_g,omitempty"`

	// end_walk
	Rating      int    `json:"rating,omitempty"`
	DurationMin int    `json:"duration_min,omitempty"`
	Notes       string `json:"notes,omitempty"`

	// training / playtime
	TrainingType string `json:"training_type,omitempty"`
	PlayType     string `json:"play_type,omitempty"`

	// health_check
	WeightKg     float64 `json:"weight_kg,omitempty"`
	TemperatureC float64 `json:"temperature_c,omitempty"`
	Symptoms     string  `json:"symptoms,omitempty"`
	Concern      bool    `json:"concern,omitempty"`
	Emergency    bool    `json:"emergency,omitempty"`

	// log_medication
	MedicationName string `json:"medication_name,omitempty"`
	Dose           string `json:"dose,omitempty"`
}

// ProfilePatch carries a partial profile update. Nil fields keep
// their current value; the name is immutable.
type ProfilePatch struct {
	Breed           *string           `json:"breed,omitempty"`
	AgeYears        *int              `json:"age_years,omitempty"`
	WeightKg        *float64          `json:"weight_kg,omitempty"`
	HomeLat         *float64          `json:"home_lat,omitempty"`
	HomeLng         *float64          `json:"home_lng,omitempty"`
	GeofenceRadiusM *float64          `json:"geofence_radius_m,omitempty"`
	AutoWalkDetect  *bool             `json:"auto_walk_detection,omitempty"`
	FeedingTimes    map[string]string `json:"feeding_times,omitempty"`
	ResetTime       *string           `json:"reset_time,omitempty"`
}

// Snapshot is the published read model for one dog. Immutable; a new
// snapshot replaces it after every mutation.
type Snapshot struct {
	Profile    dog.Profile       `json:"profile"`
	Session    *walk.Session     `json:"session,omitempty"`
	LastFix    *walk.Fix         `json:"last_fix,omitempty"`
	FixQuality string            `json:"fix_quality,omitempty"`
	Counters   activity.Counters `json:"counters"`
	Status     status.Derived    `json:"status"`
	WalkStreak int               `json:"walk_streak"`
	StaleFixes int               `json:"stale_fixes"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Fact kinds emitted to sinks.
const (
	FactWalkStarted    = "walk_started"
	FactWalkEnded      = "walk_ended"
	FactActivityLogged = "activity_logged"
	FactStatusAlert    = "status_alert"
)

// Fact is a notification-worthy occurrence handed to the egress
// collaborators. The core never formats user-facing text.
type Fact struct {
	Dog     string    `json:"dog"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Sink consumes facts. Implementations doing I/O must not block; the
// registry calls Publish from the per-dog dispatch goroutine.
type Sink interface {
	Publish(Fact)
}

// Tuning bundles the global engine parameters, immutable after
// startup.
type Tuning struct {
	Walk             walk.Tuning
	Status           status.Tuning
	ReminderInterval time.Duration
}

func DefaultTuning() Tuning {
	return Tuning{
		Walk:             walk.DefaultTuning(),
		Status:           status.DefaultTuning(),
		ReminderInterval: 5 * time.Minute,
	}
}
