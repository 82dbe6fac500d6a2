package walk

import (
	"errors"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/shared/geo"

	"github.com/google/uuid"
)

var ErrInvalidFix = errors.New("invalid fix")

// Machine is the per-dog walk detection state machine. It is not safe
// for concurrent use; the registry serializes all calls per dog.
type Machine struct {
	dog      string
	zone     *Zone
	weightKg float64
	tuning   Tuning

	session   *Session
	lastPoint *Fix

	lastKnown      *Fix
	lastAcceptedAt time.Time
	staleCount     int

	// opening debounce: usable fixes seen outside the zone while idle
	pendingOut []Fix

	// closing debounce: consecutive usable fixes back inside the zone
	insideCount int
	insideSince time.Time

	// manual-start sessions only auto-close after the dog has actually
	// been observed outside the zone
	leftZone bool
}

func NewMachine(dogName string, zone *Zone, weightKg float64, tuning Tuning) *Machine {
	if tuning.ConfirmFixes <= 0 {
		tuning.ConfirmFixes = 1
	}
	return &Machine{dog: dogName, zone: zone, weightKg: weightKg, tuning: tuning}
}

// SetZone swaps the home zone on a profile update. An in-progress walk
// keeps running; the new zone applies from the next fix.
func (m *Machine) SetZone(zone *Zone) { m.zone = zone }

// SetWeight updates the weight used for calorie estimation.
func (m *Machine) SetWeight(kg float64) { m.weightKg = kg }

func (m *Machine) Walking() bool { return m.session.Active() }

// Current returns a copy of the active session, or nil while idle.
func (m *Machine) Current() *Session {
	if !m.session.Active() {
		return nil
	}
	return copySession(m.session)
}

// LastKnown returns the most recent position, usable or not.
func (m *Machine) LastKnown() *Fix {
	if m.lastKnown == nil {
		return nil
	}
	f := *m.lastKnown
	return &f
}

// StaleCount reports how many out-of-order fixes were dropped.
func (m *Machine) StaleCount() int { return m.staleCount }

// Ingest validates and applies one GPS fix. The returned session is
// non-nil only when the fix closed a walk.
func (m *Machine) Ingest(fix Fix) (Outcome, Transition, *Session, error) {
	if !geo.ValidCoordinates(fix.Lat, fix.Lng) || fix.AccuracyM <= 0 {
		return Invalid, NoTransition, nil, ErrInvalidFix
	}
	if !fix.RecordedAt.After(m.lastAcceptedAt) {
		m.staleCount++
		return Stale, NoTransition, nil, nil
	}
	m.lastAcceptedAt = fix.RecordedAt
	m.lastKnown = &fix

	if !geo.Usable(fix.AccuracyM, m.tuning.MaxAccuracyM) {
		// Too coarse to trust for zone crossings or distance.
		return LowAccuracy, NoTransition, nil, nil
	}

	if m.session.Active() {
		m.appendFix(fix)
		if closed := m.maybeAutoClose(fix); closed != nil {
			return Accepted, WalkEnded, closed, nil
		}
		return Accepted, NoTransition, nil, nil
	}

	if tr := m.maybeAutoOpen(fix); tr == WalkStarted {
		return Accepted, WalkStarted, nil, nil
	}
	return Accepted, NoTransition, nil, nil
}

func (m *Machine) maybeAutoOpen(fix Fix) Transition {
	if m.zone == nil {
		return NoTransition
	}
	if geo.InZone(fix.Lat, fix.Lng, m.zone.Lat, m.zone.Lng, m.zone.RadiusM) {
		m.pendingOut = nil
		return NoTransition
	}

	m.pendingOut = append(m.pendingOut, fix)
	if !m.confirmed(len(m.pendingOut), m.pendingOut[0].RecordedAt, fix.RecordedAt) {
		return NoTransition
	}

	pending := m.pendingOut
	m.open(pending[0].RecordedAt, SourceAutomatic)
	m.leftZone = true
	for _, fix := range pending {
		m.appendFix(fix)
	}
	return WalkStarted
}

func (m *Machine) maybeAutoClose(fix Fix) *Session {
	if m.zone == nil {
		return nil
	}
	if !geo.InZone(fix.Lat, fix.Lng, m.zone.Lat, m.zone.Lng, m.zone.RadiusM) {
		m.leftZone = true
		m.insideCount = 0
		return nil
	}
	if !m.leftZone {
		// Manual start with the dog still at home; wait for an actual
		// departure before zone re-entry can end the walk.
		return nil
	}

	if m.insideCount == 0 {
		m.insideSince = fix.RecordedAt
	}
	m.insideCount++
	if !m.confirmed(m.insideCount, m.insideSince, fix.RecordedAt) {
		return nil
	}
	return m.close(fix.RecordedAt)
}

// confirmed applies the debounce: a crossing holds once enough fixes or
// enough elapsed time support it.
func (m *Machine) confirmed(fixes int, first, latest time.Time) bool {
	if fixes >= m.tuning.ConfirmFixes {
		return true
	}
	return m.tuning.ConfirmWindow > 0 && latest.Sub(first) >= m.tuning.ConfirmWindow
}

// StartManual opens a walk regardless of position. A no-op while
// already walking.
func (m *Machine) StartManual(at time.Time) Transition {
	if m.session.Active() {
		return NoTransition
	}
	m.open(at, SourceManual)
	return WalkStarted
}

// EndManual closes the active walk immediately. A no-op while idle.
func (m *Machine) EndManual(at time.Time, rating int, durationOverride time.Duration, notes string) (Transition, *Session) {
	if !m.session.Active() {
		return NoTransition, nil
	}
	closed := m.close(at)
	if rating >= 1 && rating <= 5 {
		closed.Rating = rating
	}
	closed.Notes = notes
	if durationOverride > 0 {
		closed.Duration = durationOverride
		closed.AvgSpeedMps = avgSpeed(closed.DistanceM, durationOverride)
	}
	return WalkEnded, closed
}

func (m *Machine) open(at time.Time, source string) {
	m.session = &Session{
		ID:        uuid.NewString(),
		Dog:       m.dog,
		StartedAt: at,
		Source:    source,
	}
	m.lastPoint = nil
	m.leftZone = false
	m.insideCount = 0
	m.pendingOut = nil
}

func (m *Machine) close(at time.Time) *Session {
	s := m.session
	s.EndedAt = at
	s.Duration = at.Sub(s.StartedAt)
	s.AvgSpeedMps = avgSpeed(s.DistanceM, s.Duration)
	s.CaloriesKcal = m.calories(s.DistanceM)
	m.session = nil
	m.lastPoint = nil
	m.insideCount = 0
	m.leftZone = false
	return s
}

func (m *Machine) appendFix(fix Fix) {
	s := m.session
	if m.lastPoint != nil {
		s.DistanceM += geo.DistanceM(m.lastPoint.Lat, m.lastPoint.Lng, fix.Lat, fix.Lng)
	}
	if m.tuning.MaxRoutePoints > 0 && len(s.Route) >= m.tuning.MaxRoutePoints {
		s.RoutePruned = true
	} else {
		s.Route = append(s.Route, fix)
	}
	s.PointCount++
	s.Duration = fix.RecordedAt.Sub(s.StartedAt)
	s.AvgSpeedMps = avgSpeed(s.DistanceM, s.Duration)
	s.CaloriesKcal = m.calories(s.DistanceM)
	m.lastPoint = &fix
}

func (m *Machine) calories(distanceM float64) float64 {
	if m.weightKg <= 0 {
		return 0
	}
	return distanceM / 1000 * m.weightKg * m.tuning.CaloriesPerKgKm
}

func avgSpeed(distanceM float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return distanceM / d.Seconds()
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Route = append([]Fix(nil), s.Route...)
	return &out
}
