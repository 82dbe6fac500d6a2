package activity

import "time"

// Kind tags the event variant.
type Kind string

const (
	KindFeeding     Kind = "feeding"
	KindWalk        Kind = "walk"
	KindTraining    Kind = "training"
	KindPlay        Kind = "play"
	KindHealthCheck Kind = "health_check"
	KindMedication  Kind = "medication"
)

// Event is one completed activity. Exactly one payload pointer is set,
// matching Kind.
type Event struct {
	ID   string    `json:"id"`
	Dog  string    `json:"dog"`
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	Feeding     *FeedingDetails     `json:"feeding,omitempty"`
	Walk        *WalkDetails        `json:"walk,omitempty"`
	Training    *TrainingDetails    `json:"training,omitempty"`
	Play        *PlayDetails        `json:"play,omitempty"`
	HealthCheck *HealthCheckDetails `json:"health_check,omitempty"`
	Medication  *MedicationDetails  `json:"medication,omitempty"`
}

type FeedingDetails struct {
	MealType string  `json:"meal_type"`
	AmountG  float64 `json:"amount_g"`
}

type WalkDetails struct {
	SessionID    string        `json:"session_id"`
	DistanceM    float64       `json:"distance_m"`
	Duration     time.Duration `json:"duration_sec"`
	AvgSpeedMps  float64       `json:"avg_speed_mps"`
	CaloriesKcal float64       `json:"calories_kcal"`
	Rating       int           `json:"rating,omitempty"`
	Source       string        `json:"source"`
	Notes        string        `json:"notes,omitempty"`
}

type TrainingDetails struct {
	TrainingType string        `json:"training_type,omitempty"`
	Duration     time.Duration `json:"duration_sec"`
	Notes        string        `json:"notes,omitempty"`
}

type PlayDetails struct {
	PlayType string        `json:"play_type,omitempty"`
	Duration time.Duration `json:"duration_sec"`
}

type HealthCheckDetails struct {
	WeightKg     float64 `json:"weight_kg,omitempty"`
	TemperatureC float64 `json:"temperature_c,omitempty"`
	Symptoms     string  `json:"symptoms,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Concern      bool    `json:"concern,omitempty"`
	Emergency    bool    `json:"emergency,omitempty"`
}

type MedicationDetails struct {
	Name string `json:"name"`
	Dose string `json:"dose,omitempty"`
}

// Counters is the per-day derived aggregate for one dog.
type Counters struct {
	Date string `json:"date"` // YYYY-MM-DD

	Meals      map[string]int `json:"meals"`
	FoodGrams  float64        `json:"food_grams"`
	WalkCount  int            `json:"walk_count"`
	WalkDistM  float64        `json:"walk_distance_m"`
	WalkTime   time.Duration  `json:"walk_duration_sec"`
	WalkKcal   float64        `json:"walk_calories_kcal"`
	Trainings  int            `json:"training_sessions"`
	PlaytimeS  int            `json:"play_sessions"`
	HealthLogs int            `json:"health_checks"`
	MedDoses   int            `json:"medication_doses"`
}

// NewCounters starts a fresh counting window for the given day.
func NewCounters(day time.Time) Counters {
	return Counters{
		Date:  day.Format("2006-01-02"),
		Meals: map[string]int{},
	}
}

// Apply folds one event into the counters.
func (c *Counters) Apply(ev Event) {
	switch ev.Kind {
	case KindFeeding:
		if ev.Feeding != nil {
			c.Meals[ev.Feeding.MealType]++
			c.FoodGrams += ev.Feeding.AmountG
		}
	case KindWalk:
		c.WalkCount++
		if ev.Walk != nil {
			c.WalkDistM += ev.Walk.DistanceM
			c.WalkTime += ev.Walk.Duration
			c.WalkKcal += ev.Walk.CaloriesKcal
		}
	case KindTraining:
		c.Trainings++
	case KindPlay:
		c.PlaytimeS++
	case KindHealthCheck:
		c.HealthLogs++
	case KindMedication:
		c.MedDoses++
	}
}

// Clone returns an independent copy safe to publish in snapshots.
func (c Counters) Clone() Counters {
	out := c
	out.Meals = make(map[string]int, len(c.Meals))
	for slot, n := range c.Meals {
		out.Meals[slot] = n
	}
	return out
}
