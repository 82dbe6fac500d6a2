package walk

import "time"

// Fix is a single GPS reading. Immutable once accepted.
type Fix struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  float64   `json:"accuracy_m"`
	Source     string    `json:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Session is one walk, automatic or manual. Closed sessions are
// immutable.
type Session struct {
	ID           string        `json:"id"`
	Dog          string        `json:"dog"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at,omitempty"`
	Route        []Fix         `json:"route,omitempty"`
	DistanceM    float64       `json:"distance_m"`
	Duration     time.Duration `json:"duration_sec"`
	AvgSpeedMps  float64       `json:"avg_speed_mps"`
	CaloriesKcal float64       `json:"calories_kcal"`
	Rating       int           `json:"rating,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Source       string        `json:"source"`
	PointCount   int           `json:"point_count"`
	RoutePruned  bool          `json:"route_pruned,omitempty"`
}

// Session sources.
const (
	SourceAutomatic = "automatic"
	SourceManual    = "manual"
)

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s != nil && s.EndedAt.IsZero()
}

// Outcome classifies what happened to a submitted fix.
type Outcome int

const (
	// Accepted means the fix was usable and fed the state machine.
	Accepted Outcome = iota
	// Invalid means the coordinates were malformed; nothing changed.
	Invalid
	// Stale means the timestamp regressed; dropped silently.
	Stale
	// LowAccuracy means only the last known position was updated.
	LowAccuracy
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Invalid:
		return "invalid"
	case Stale:
		return "stale"
	case LowAccuracy:
		return "low_accuracy"
	}
	return "unknown"
}

// Transition describes a state change produced by a fix or command.
type Transition int

const (
	NoTransition Transition = iota
	WalkStarted
	WalkEnded
)

// Zone is a circular geofence around the home point.
type Zone struct {
	Lat     float64
	Lng     float64
	RadiusM float64
}

// Tuning holds the global detection parameters, immutable after
// startup.
type Tuning struct {
	// MaxAccuracyM is the accuracy ceiling; coarser fixes never drive
	// transitions.
	MaxAccuracyM float64
	// ConfirmFixes and ConfirmWindow form the boundary debounce: a
	// crossing counts once either threshold is sustained.
	ConfirmFixes  int
	ConfirmWindow time.Duration
	// CaloriesPerKgKm scales energy estimation by dog weight.
	CaloriesPerKgKm float64
	// MaxRoutePoints caps the retained route; distance keeps accruing
	// after the cap.
	MaxRoutePoints int
}

// DefaultTuning mirrors the integration's conservative defaults.
func DefaultTuning() Tuning {
	return Tuning{
		MaxAccuracyM:    50,
		ConfirmFixes:    3,
		ConfirmWindow:   2 * time.Minute,
		CaloriesPerKgKm: 0.8,
		MaxRoutePoints:  2048,
	}
}
