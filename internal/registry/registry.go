// Package registry coordinates all per-dog state. Every mutating call
// for one dog runs on that dog's dispatch goroutine in submission
// order; dogs never share state, so different dogs proceed in
// parallel. Reads are lock-free against the last published snapshot.
package registry

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/shared/geo"
	"github.com/Bigdaddy1990/paw-control/internal/status"
	"github.com/Bigdaddy1990/paw-control/internal/walk"

	"github.com/google/uuid"
)

var (
	ErrDuplicateDog   = errors.New("dog already registered")
	ErrUnknownDog     = errors.New("unknown dog")
	ErrUnknownCommand = errors.New("unknown command")
)

type Registry struct {
	mu     sync.RWMutex
	dogs   map[string]*entry
	tuning Tuning
	clock  func() time.Time
	sinks  []Sink
}

type entry struct {
	key     string
	profile dog.Profile
	machine *walk.Machine
	ledger  *activity.Ledger

	counters    activity.Counters
	healthFlags map[string]bool
	derived     status.Derived
	lastClosed  *walk.Session

	trainingStart time.Time
	playStart     time.Time

	tasks    chan task
	stop     chan struct{}
	stopOnce sync.Once

	qmu     sync.Mutex
	stopped bool

	timerMu sync.Mutex
	reset   *time.Timer

	snapshot atomic.Pointer[Snapshot]
}

type task struct {
	fn  func() error
	res chan error
}

func New(tuning Tuning, sinks ...Sink) *Registry {
	return NewWithClock(tuning, time.Now, sinks...)
}

// NewWithClock injects the clock; tests drive time without waiting.
func NewWithClock(tuning Tuning, clock func() time.Time, sinks ...Sink) *Registry {
	return &Registry{
		dogs:   map[string]*entry{},
		tuning: tuning,
		clock:  clock,
		sinks:  sinks,
	}
}

// RegisterDog adds a dog and starts its dispatch queue and timers.
// The identifier is the profile name, matched case-insensitively.
func (r *Registry) RegisterDog(p dog.Profile) (dog.Profile, error) {
	p = dog.Normalize(p)
	if err := dog.Validate(p); err != nil {
		return dog.Profile{}, err
	}
	p.CreatedAt = r.clock()

	key := dog.Key(p.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dogs[key]; ok {
		return dog.Profile{}, ErrDuplicateDog
	}

	e := &entry{
		key:         key,
		profile:     p,
		machine:     walk.NewMachine(p.Name, zoneOf(p), p.WeightKg, r.tuning.Walk),
		ledger:      activity.NewLedger(),
		counters:    activity.NewCounters(r.clock()),
		healthFlags: map[string]bool{},
		tasks:       make(chan task, 64),
		stop:        make(chan struct{}),
	}
	e.derived = r.evaluate(e)
	e.snapshot.Store(r.buildSnapshot(e))
	r.dogs[key] = e

	go e.loop(r)
	r.scheduleReset(e)
	go r.reminderLoop(e)
	return p, nil
}

// Deactivate cancels the dog's timers and stops its queue. History
// already handed to the archive boundary is unaffected.
func (r *Registry) Deactivate(name string) error {
	r.mu.Lock()
	e, ok := r.dogs[dog.Key(name)]
	if ok {
		delete(r.dogs, dog.Key(name))
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownDog
	}

	// Timer cancellation goes through the queue so it cannot race an
	// in-flight mutation.
	_ = e.do(func() error {
		e.profile.Active = false
		e.timerMu.Lock()
		if e.reset != nil {
			e.reset.Stop()
		}
		e.timerMu.Unlock()
		return nil
	})
	e.qmu.Lock()
	e.stopped = true
	e.qmu.Unlock()
	e.stopOnce.Do(func() { close(e.stop) })
	return nil
}

// Close deactivates every dog.
func (r *Registry) Close() {
	r.mu.RLock()
	names := make([]string, 0, len(r.dogs))
	for _, e := range r.dogs {
		names = append(names, e.profile.Name)
	}
	r.mu.RUnlock()
	for _, name := range names {
		_ = r.Deactivate(name)
	}
}

// Dogs lists the registered profiles.
func (r *Registry) Dogs() []dog.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dog.Profile, 0, len(r.dogs))
	for _, e := range r.dogs {
		out = append(out, e.snapshot.Load().Profile)
	}
	return out
}

// UpdateProfile applies an options change as a serialized mutation.
// Nil patch fields leave the current value untouched; the name is
// immutable.
func (r *Registry) UpdateProfile(name string, patch ProfilePatch) (dog.Profile, error) {
	e, err := r.lookup(name)
	if err != nil {
		return dog.Profile{}, err
	}
	var updated dog.Profile
	err = e.do(func() error {
		next := e.profile
		if patch.Breed != nil {
			next.Breed = *patch.Breed
		}
		if patch.AgeYears != nil {
			next.AgeYears = *patch.AgeYears
		}
		if patch.WeightKg != nil {
			next.WeightKg = *patch.WeightKg
		}
		if patch.HomeLat != nil {
			next.HomeLat = *patch.HomeLat
		}
		if patch.HomeLng != nil {
			next.HomeLng = *patch.HomeLng
		}
		if patch.GeofenceRadiusM != nil {
			next.GeofenceRadiusM = *patch.GeofenceRadiusM
		}
		if patch.AutoWalkDetect != nil {
			next.AutoWalkDetect = *patch.AutoWalkDetect
			if next.AutoWalkDetect && next.GeofenceRadiusM == 0 {
				next.GeofenceRadiusM = dog.DefaultGeofenceRadiusM
			}
		}
		if patch.FeedingTimes != nil {
			next.FeedingTimes = patch.FeedingTimes
		}
		if patch.ResetTime != nil {
			next.ResetTime = *patch.ResetTime
		}
		if err := dog.Validate(next); err != nil {
			return err
		}
		e.profile = next
		e.machine.SetZone(zoneOf(next))
		e.machine.SetWeight(next.WeightKg)
		r.refreshStatus(e)
		updated = next
		return nil
	})
	return updated, err
}

// SubmitFix routes one GPS fix through the dog's queue.
func (r *Registry) SubmitFix(name string, fix walk.Fix) (walk.Outcome, error) {
	e, err := r.lookup(name)
	if err != nil {
		return walk.Invalid, err
	}
	outcome := walk.Invalid
	err = e.do(func() error {
		var tr walk.Transition
		var closed *walk.Session
		var err error
		outcome, tr, closed, err = e.machine.Ingest(fix)
		switch {
		case err != nil:
			return err
		case outcome == walk.Stale:
			// expected GPS jitter, diagnostics only
			log.Printf("stale fix dropped for %s (total %d)", e.profile.Name, e.machine.StaleCount())
			return nil
		}
		switch tr {
		case walk.WalkStarted:
			r.publish(Fact{Dog: e.profile.Name, Kind: FactWalkStarted, At: fix.RecordedAt, Payload: e.machine.Current()})
		case walk.WalkEnded:
			r.finalizeWalk(e, closed)
		}
		r.refreshStatus(e)
		return nil
	})
	return outcome, err
}

// SubmitCommand applies a manual service call. Outdated commands
// ("end walk" while idle, "start" while walking) are no-op successes.
func (r *Registry) SubmitCommand(name string, cmd Command) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}
	return e.do(func() error {
		at := cmd.Timestamp
		if at.IsZero() {
			at = r.clock()
		}
		switch cmd.Name {
		case CmdStartWalk:
			if tr := e.machine.StartManual(at); tr == walk.WalkStarted {
				r.publish(Fact{Dog: e.profile.Name, Kind: FactWalkStarted, At: at, Payload: e.machine.Current()})
			}
		case CmdEndWalk:
			tr, closed := e.machine.EndManual(at, cmd.Rating, time.Duration(cmd.DurationMin)*time.Minute, cmd.Notes)
			if tr == walk.WalkEnded {
				r.finalizeWalk(e, closed)
			}
		case CmdFeed:
			meal := cmd.MealType
			if meal == "" {
				meal = defaultMealSlot(at)
			}
			return r.appendEvent(e, activity.Event{
				Kind:    activity.KindFeeding,
				At:      at,
				Feeding: &activity.FeedingDetails{MealType: meal, AmountG: cmd.AmountG},
			})
		case CmdHealthCheck:
			e.healthFlags[status.HealthFlagConcern] = cmd.Concern
			e.healthFlags[status.HealthFlagEmergency] = cmd.Emergency
			return r.appendEvent(e, activity.Event{
				Kind: activity.KindHealthCheck,
				At:   at,
				HealthCheck: &activity.HealthCheckDetails{
					WeightKg:     cmd.WeightKg,
					TemperatureC: cmd.TemperatureC,
					Symptoms:     cmd.Symptoms,
					Notes:        cmd.Notes,
					Concern:      cmd.Concern,
					Emergency:    cmd.Emergency,
				},
			})
		case CmdStartTraining:
			if e.trainingStart.IsZero() {
				e.trainingStart = at
			}
		case CmdEndTraining:
			if e.trainingStart.IsZero() {
				return nil
			}
			d := at.Sub(e.trainingStart)
			e.trainingStart = time.Time{}
			return r.appendEvent(e, activity.Event{
				Kind:     activity.KindTraining,
				At:       at,
				Training: &activity.TrainingDetails{TrainingType: cmd.TrainingType, Duration: d, Notes: cmd.Notes},
			})
		case CmdStartPlaytime:
			if e.playStart.IsZero() {
				e.playStart = at
			}
		case CmdEndPlaytime:
			if e.playStart.IsZero() {
				return nil
			}
			d := at.Sub(e.playStart)
			e.playStart = time.Time{}
			return r.appendEvent(e, activity.Event{
				Kind: activity.KindPlay,
				At:   at,
				Play: &activity.PlayDetails{PlayType: cmd.PlayType, Duration: d},
			})
		case CmdLogMedication:
			return r.appendEvent(e, activity.Event{
				Kind:       activity.KindMedication,
				At:         at,
				Medication: &activity.MedicationDetails{Name: cmd.MedicationName, Dose: cmd.Dose},
			})
		case CmdDailyReset:
			r.resetCounters(e)
		default:
			return ErrUnknownCommand
		}
		r.refreshStatus(e)
		return nil
	})
}

// DailyReset starts a fresh counting window. Ledger history and an
// in-progress walk are untouched.
func (r *Registry) DailyReset(name string) error {
	return r.SubmitCommand(name, Command{Name: CmdDailyReset})
}

// Snapshot returns the last published read model for the dog.
func (r *Registry) Snapshot(name string) (Snapshot, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}
	return *e.snapshot.Load(), nil
}

// QueryEvents reads a window of the dog's ledger through its queue so
// the slice is consistent with applied mutations.
func (r *Registry) QueryEvents(name string, from, to time.Time) ([]activity.Event, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	var out []activity.Event
	err = e.do(func() error {
		for ev := range e.ledger.QueryRange(from, to) {
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.dogs[dog.Key(name)]
	if !ok {
		return nil, ErrUnknownDog
	}
	return e, nil
}

// do runs fn on the dog's dispatch goroutine and waits for the result.
// Every task that makes it onto the queue gets an answer: a mutation
// that actually ran reports its real result even when the dog is
// deactivated concurrently.
func (e *entry) do(fn func() error) error {
	t := task{fn: fn, res: make(chan error, 1)}
	e.qmu.Lock()
	if e.stopped {
		e.qmu.Unlock()
		return ErrUnknownDog
	}
	e.tasks <- t
	e.qmu.Unlock()
	return <-t.res
}

func (e *entry) loop(r *Registry) {
	for {
		select {
		case t := <-e.tasks:
			err := t.fn()
			e.snapshot.Store(r.buildSnapshot(e))
			t.res <- err
		case <-e.stop:
			// tasks still queued never ran; fail them instead of
			// leaving their callers hanging
			for {
				select {
				case t := <-e.tasks:
					t.res <- ErrUnknownDog
				default:
					return
				}
			}
		}
	}
}

func (r *Registry) scheduleReset(e *entry) {
	next := dog.NextOccurrence(e.profile.ResetTime, r.clock())
	timer := time.AfterFunc(next.Sub(r.clock()), func() {
		// reschedule inside the task so the profile read is serialized
		_ = e.do(func() error {
			r.resetCounters(e)
			r.refreshStatus(e)
			r.scheduleReset(e)
			return nil
		})
	})
	e.timerMu.Lock()
	e.reset = timer
	e.timerMu.Unlock()
}

func (r *Registry) reminderLoop(e *entry) {
	if r.tuning.ReminderInterval <= 0 {
		return
	}
	tick := time.NewTicker(r.tuning.ReminderInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			_ = e.do(func() error {
				r.refreshStatus(e)
				return nil
			})
		case <-e.stop:
			return
		}
	}
}

// finalizeWalk records a closed session in the ledger and counters and
// emits the walk_ended fact.
func (r *Registry) finalizeWalk(e *entry, closed *walk.Session) {
	e.lastClosed = closed
	ev := activity.Event{
		Kind: activity.KindWalk,
		At:   closed.EndedAt,
		Walk: &activity.WalkDetails{
			SessionID:    closed.ID,
			DistanceM:    closed.DistanceM,
			Duration:     closed.Duration,
			AvgSpeedMps:  closed.AvgSpeedMps,
			CaloriesKcal: closed.CaloriesKcal,
			Rating:       closed.Rating,
			Source:       closed.Source,
			Notes:        closed.Notes,
		},
	}
	if err := r.appendEvent(e, ev); err != nil {
		log.Printf("walk event append for %s: %v", e.profile.Name, err)
	}
	r.publish(Fact{Dog: e.profile.Name, Kind: FactWalkEnded, At: closed.EndedAt, Payload: closed})
}

func (r *Registry) appendEvent(e *entry, ev activity.Event) error {
	ev.ID = uuid.NewString()
	ev.Dog = e.profile.Name
	if err := e.ledger.Append(ev); err != nil {
		return err
	}
	e.counters.Apply(ev)
	r.publish(Fact{Dog: e.profile.Name, Kind: FactActivityLogged, At: ev.At, Payload: ev})
	r.refreshStatus(e)
	return nil
}

func (r *Registry) resetCounters(e *entry) {
	e.counters = activity.NewCounters(r.clock())
}

// refreshStatus recomputes the derived status and emits a fact when it
// escalates into concern or emergency territory.
func (r *Registry) refreshStatus(e *entry) {
	prev := e.derived
	e.derived = r.evaluate(e)
	if e.derived.Overall.Priority() > prev.Overall.Priority() &&
		e.derived.Overall.Priority() >= status.Concern.Priority() {
		r.publish(Fact{Dog: e.profile.Name, Kind: FactStatusAlert, At: r.clock(), Payload: e.derived})
	}
}

func (r *Registry) evaluate(e *entry) status.Derived {
	return status.Evaluate(status.Input{
		Profile:     e.profile,
		Session:     e.machine.Current(),
		Counters:    e.counters,
		HealthFlags: e.healthFlags,
		Now:         r.clock(),
	}, r.tuning.Status)
}

func (r *Registry) buildSnapshot(e *entry) *Snapshot {
	s := &Snapshot{
		Profile:    e.profile,
		Session:    e.machine.Current(),
		LastFix:    e.machine.LastKnown(),
		Counters:   e.counters.Clone(),
		Status:     e.derived,
		WalkStreak: e.ledger.Streak(activity.KindWalk, r.clock()),
		StaleFixes: e.machine.StaleCount(),
		UpdatedAt:  r.clock(),
	}
	if s.Session == nil && e.lastClosed != nil {
		closed := *e.lastClosed
		s.Session = &closed
	}
	if s.LastFix != nil {
		s.FixQuality = geo.AccuracyLabel(s.LastFix.AccuracyM)
	}
	return s
}

func (r *Registry) publish(fact Fact) {
	for _, sink := range r.sinks {
		sink.Publish(fact)
	}
}

func zoneOf(p dog.Profile) *walk.Zone {
	if !p.HasHomeZone() {
		return nil
	}
	return &walk.Zone{Lat: p.HomeLat, Lng: p.HomeLng, RadiusM: p.GeofenceRadiusM}
}

// defaultMealSlot picks the slot a feeding without an explicit meal
// type falls into, by local hour.
func defaultMealSlot(at time.Time) string {
	switch {
	case at.Hour() < 10:
		return "morning"
	case at.Hour() < 16:
		return "lunch"
	default:
		return "evening"
	}
}
