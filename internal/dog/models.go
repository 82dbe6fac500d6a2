package dog

import "time"

// Profile holds the configuration for one registered dog. The name is
// the stable identifier and never changes after registration.
type Profile struct {
	Name            string            `json:"name"`
	Breed           string            `json:"breed,omitempty"`
	AgeYears        int               `json:"age_years,omitempty"`
	WeightKg        float64           `json:"weight_kg,omitempty"`
	HomeLat         float64           `json:"home_lat,omitempty"`
	HomeLng         float64           `json:"home_lng,omitempty"`
	GeofenceRadiusM float64           `json:"geofence_radius_m,omitempty"`
	AutoWalkDetect  bool              `json:"auto_walk_detection"`
	FeedingTimes    map[string]string `json:"feeding_times,omitempty"`
	ResetTime       string            `json:"reset_time,omitempty"`
	Active          bool              `json:"active"`
	CreatedAt       time.Time         `json:"created_at,omitempty"`
}

const (
	MinNameLength = 2
	MaxNameLength = 50
	MinWeightKg   = 0.5
	MaxWeightKg   = 100.0
	MaxAgeYears   = 25

	MinGeofenceRadiusM     = 10.0
	MaxGeofenceRadiusM     = 1000.0
	DefaultGeofenceRadiusM = 100.0

	DefaultResetTime = "00:00"
)

// Feeding slots and their default times of day.
var DefaultFeedingTimes = map[string]string{
	"morning": "07:00",
	"lunch":   "12:00",
	"evening": "18:00",
	"snack":   "15:00",
}

// FeedingSlots lists the known meal slots in day order.
var FeedingSlots = []string{"morning", "lunch", "evening", "snack"}
