package dog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/shared/geo"
)

var ErrInvalidProfile = errors.New("invalid dog profile")

// Normalize fills defaults on a freshly submitted profile.
func Normalize(p Profile) Profile {
	p.Name = strings.TrimSpace(p.Name)
	if p.FeedingTimes == nil {
		p.FeedingTimes = make(map[string]string, len(DefaultFeedingTimes))
		for slot, at := range DefaultFeedingTimes {
			p.FeedingTimes[slot] = at
		}
	}
	if p.ResetTime == "" {
		p.ResetTime = DefaultResetTime
	}
	if p.AutoWalkDetect && p.GeofenceRadiusM == 0 {
		p.GeofenceRadiusM = DefaultGeofenceRadiusM
	}
	p.Active = true
	return p
}

// Validate checks the profile's own invariants. Name format and range
// validation beyond these checks belongs to the configuration surface.
func Validate(p Profile) error {
	if len(p.Name) < MinNameLength || len(p.Name) > MaxNameLength {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrInvalidProfile, MinNameLength, MaxNameLength)
	}
	if p.WeightKg != 0 && (p.WeightKg < MinWeightKg || p.WeightKg > MaxWeightKg) {
		return fmt.Errorf("%w: weight out of range", ErrInvalidProfile)
	}
	if p.AgeYears < 0 || p.AgeYears > MaxAgeYears {
		return fmt.Errorf("%w: age out of range", ErrInvalidProfile)
	}
	if p.AutoWalkDetect {
		if !geo.ValidCoordinates(p.HomeLat, p.HomeLng) {
			return fmt.Errorf("%w: home coordinates out of range", ErrInvalidProfile)
		}
		if p.GeofenceRadiusM < MinGeofenceRadiusM || p.GeofenceRadiusM > MaxGeofenceRadiusM {
			return fmt.Errorf("%w: geofence radius out of range", ErrInvalidProfile)
		}
	}
	for slot, at := range p.FeedingTimes {
		if _, err := ParseClock(at); err != nil {
			return fmt.Errorf("%w: feeding time %q for slot %q", ErrInvalidProfile, at, slot)
		}
	}
	if _, err := ParseClock(p.ResetTime); err != nil {
		return fmt.Errorf("%w: reset time %q", ErrInvalidProfile, p.ResetTime)
	}
	return nil
}

// HasHomeZone reports whether GPS-driven walk detection is enabled.
// Dogs without a configured zone never auto-detect walks.
func (p Profile) HasHomeZone() bool {
	return p.AutoWalkDetect && p.GeofenceRadiusM > 0
}

// Key returns the case-insensitive registry key for the profile name.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseClock parses an HH:MM time-of-day string.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// NextOccurrence returns the next wall-clock occurrence of an HH:MM
// time strictly after now, in now's location.
func NextOccurrence(clock string, now time.Time) time.Time {
	offset, err := ParseClock(clock)
	if err != nil {
		offset = 0
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	at := day.Add(offset)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}
