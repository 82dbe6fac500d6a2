package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/status"
	"github.com/Bigdaddy1990/paw-control/internal/walk"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureSink struct {
	mu    sync.Mutex
	facts []Fact
}

func (s *captureSink) Publish(f Fact) {
	s.mu.Lock()
	s.facts = append(s.facts, f)
	s.mu.Unlock()
}

func (s *captureSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.facts))
	for i, f := range s.facts {
		out[i] = f.Kind
	}
	return out
}

func (s *captureSink) count(kind string) int {
	n := 0
	for _, k := range s.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

var testStart = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func testTuning() Tuning {
	t := DefaultTuning()
	t.Walk.ConfirmFixes = 1
	t.ReminderInterval = 0 // no background sweeps in tests
	return t
}

func newTestRegistry(t *testing.T, clock *fakeClock, sinks ...Sink) *Registry {
	t.Helper()
	r := NewWithClock(testTuning(), clock.Now, sinks...)
	t.Cleanup(r.Close)
	return r
}

func buddy() dog.Profile {
	return dog.Profile{
		Name:            "Buddy",
		WeightKg:        20,
		AutoWalkDetect:  true,
		HomeLat:         52.0,
		HomeLng:         8.0,
		GeofenceRadiusM: 100,
	}
}

func TestRegisterDuplicateAndUnknown(t *testing.T) {
	r := newTestRegistry(t, newClock(testStart))

	if _, err := r.RegisterDog(buddy()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.RegisterDog(dog.Profile{Name: "BUDDY"}); err != ErrDuplicateDog {
		t.Fatalf("expected case-insensitive duplicate, got %v", err)
	}
	if _, err := r.Snapshot("rex"); err != ErrUnknownDog {
		t.Fatalf("expected unknown dog, got %v", err)
	}
	if _, err := r.RegisterDog(dog.Profile{Name: ""}); err == nil {
		t.Fatalf("expected registration failure without identifier")
	}
}

func TestFeedTwiceCountsTwoMeals(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	if err := r.SubmitCommand("buddy", Command{Name: CmdFeed, MealType: "morning", AmountG: 200}); err != nil {
		t.Fatalf("feed: %v", err)
	}
	clock.Advance(time.Minute)
	if err := r.SubmitCommand("buddy", Command{Name: CmdFeed, MealType: "morning", AmountG: 200}); err != nil {
		t.Fatalf("feed: %v", err)
	}

	snap, err := r.Snapshot("buddy")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Counters.Meals["morning"] != 2 {
		t.Fatalf("expected 2 morning meals, got %d", snap.Counters.Meals["morning"])
	}
	if snap.Counters.FoodGrams != 400 {
		t.Fatalf("expected 400 grams, got %v", snap.Counters.FoodGrams)
	}

	events, err := r.QueryEvents("buddy", testStart.Add(-time.Hour), testStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].At.Equal(events[1].At) {
		t.Fatalf("expected distinct timestamps")
	}
}

func TestAutomaticWalkLifecycle(t *testing.T) {
	clock := newClock(testStart)
	sink := &captureSink{}
	r := newTestRegistry(t, clock, sink)
	r.RegisterDog(buddy())

	fix := func(lat float64, at time.Time) walk.Fix {
		return walk.Fix{Lat: lat, Lng: 8.0, AccuracyM: 10, RecordedAt: at}
	}

	// departure ~150m from home opens a walk
	outcome, err := r.SubmitFix("buddy", fix(52.00135, testStart))
	if err != nil || outcome != walk.Accepted {
		t.Fatalf("fix: %v %v", outcome, err)
	}
	snap, _ := r.Snapshot("buddy")
	if snap.Session == nil || !snap.Session.Active() {
		t.Fatalf("expected active session in snapshot")
	}

	r.SubmitFix("buddy", fix(52.0025, testStart.Add(time.Minute)))

	// sustained return home closes it (confirm count 1 in tests)
	_, err = r.SubmitFix("buddy", fix(52.0, testStart.Add(10*time.Minute)))
	if err != nil {
		t.Fatalf("fix: %v", err)
	}

	snap, _ = r.Snapshot("buddy")
	if snap.Session == nil || snap.Session.Active() {
		t.Fatalf("expected closed session in snapshot")
	}
	if snap.Counters.WalkCount != 1 {
		t.Fatalf("expected 1 walk counted, got %d", snap.Counters.WalkCount)
	}
	if snap.WalkStreak != 1 {
		t.Fatalf("expected walk streak 1, got %d", snap.WalkStreak)
	}

	// closing appended exactly one walk event
	events, _ := r.QueryEvents("buddy", testStart, testStart.Add(time.Hour))
	walks := 0
	for _, ev := range events {
		if ev.Kind == activity.KindWalk {
			walks++
		}
	}
	if walks != 1 {
		t.Fatalf("expected exactly one walk event, got %d", walks)
	}

	if sink.count(FactWalkStarted) != 1 || sink.count(FactWalkEnded) != 1 {
		t.Fatalf("expected start and end facts, got %v", sink.kinds())
	}
}

func TestManualEndWalkIdempotent(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	if err := r.SubmitCommand("buddy", Command{Name: CmdStartWalk}); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if err := r.SubmitCommand("buddy", Command{Name: CmdEndWalk, Rating: 5}); err != nil {
		t.Fatalf("end: %v", err)
	}
	// second end is a no-op success
	if err := r.SubmitCommand("buddy", Command{Name: CmdEndWalk}); err != nil {
		t.Fatalf("repeated end must not error: %v", err)
	}

	snap, _ := r.Snapshot("buddy")
	if snap.Counters.WalkCount != 1 {
		t.Fatalf("expected exactly one closed walk, got %d", snap.Counters.WalkCount)
	}
	if snap.Session.Rating != 5 {
		t.Fatalf("expected rating on closed session")
	}
}

func TestTrainingAndPlaySessions(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	r.SubmitCommand("buddy", Command{Name: CmdStartTraining, TrainingType: "obedience"})
	// repeated start keeps the original start time
	clock.Advance(5 * time.Minute)
	r.SubmitCommand("buddy", Command{Name: CmdStartTraining})
	clock.Advance(10 * time.Minute)
	if err := r.SubmitCommand("buddy", Command{Name: CmdEndTraining, TrainingType: "obedience"}); err != nil {
		t.Fatalf("end training: %v", err)
	}
	// ending again is a no-op
	if err := r.SubmitCommand("buddy", Command{Name: CmdEndTraining}); err != nil {
		t.Fatalf("repeated end training: %v", err)
	}

	r.SubmitCommand("buddy", Command{Name: CmdStartPlaytime, PlayType: "fetch"})
	clock.Advance(15 * time.Minute)
	r.SubmitCommand("buddy", Command{Name: CmdEndPlaytime})

	snap, _ := r.Snapshot("buddy")
	if snap.Counters.Trainings != 1 || snap.Counters.PlaytimeS != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}

	events, _ := r.QueryEvents("buddy", testStart, testStart.Add(time.Hour))
	for _, ev := range events {
		if ev.Kind == activity.KindTraining && ev.Training.Duration != 15*time.Minute {
			t.Fatalf("expected 15m training, got %v", ev.Training.Duration)
		}
	}
}

func TestHealthCheckEscalation(t *testing.T) {
	clock := newClock(testStart)
	sink := &captureSink{}
	r := newTestRegistry(t, clock, sink)
	r.RegisterDog(buddy())

	if err := r.SubmitCommand("buddy", Command{Name: CmdHealthCheck, Symptoms: "limping", Concern: true}); err != nil {
		t.Fatalf("health check: %v", err)
	}
	snap, _ := r.Snapshot("buddy")
	if snap.Status.Overall != status.Concern {
		t.Fatalf("expected concern, got %s", snap.Status.Overall)
	}
	if sink.count(FactStatusAlert) != 1 {
		t.Fatalf("expected one status alert, got %v", sink.kinds())
	}

	// escalate to emergency: a second alert
	r.SubmitCommand("buddy", Command{Name: CmdHealthCheck, Emergency: true})
	snap, _ = r.Snapshot("buddy")
	if snap.Status.Overall != status.Emergency {
		t.Fatalf("expected emergency, got %s", snap.Status.Overall)
	}
	if sink.count(FactStatusAlert) != 2 {
		t.Fatalf("expected second alert on escalation")
	}

	// recovery clears the flags without another alert
	r.SubmitCommand("buddy", Command{Name: CmdHealthCheck})
	snap, _ = r.Snapshot("buddy")
	if snap.Status.Overall == status.Emergency || snap.Status.Overall == status.Concern {
		t.Fatalf("expected recovery, got %s", snap.Status.Overall)
	}
	if sink.count(FactStatusAlert) != 2 {
		t.Fatalf("recovery must not alert")
	}
}

func TestDailyResetKeepsHistoryAndOpenWalk(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	r.SubmitCommand("buddy", Command{Name: CmdFeed, MealType: "morning", AmountG: 150})
	r.SubmitCommand("buddy", Command{Name: CmdStartWalk})

	if err := r.DailyReset("buddy"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	snap, _ := r.Snapshot("buddy")
	if snap.Counters.Meals["morning"] != 0 {
		t.Fatalf("expected counters zeroed")
	}
	if snap.Session == nil || !snap.Session.Active() {
		t.Fatalf("reset must not touch an open walk")
	}
	events, _ := r.QueryEvents("buddy", testStart.Add(-time.Hour), testStart.Add(time.Hour))
	if len(events) != 1 {
		t.Fatalf("reset must not touch ledger history, got %d events", len(events))
	}
}

func TestScheduledResetFiresAtBoundary(t *testing.T) {
	clock := newClock(time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC))
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())
	r.SubmitCommand("buddy", Command{Name: CmdFeed, MealType: "evening", AmountG: 100})

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, _ := r.Snapshot("buddy")
		if snap.Counters.Meals["evening"] == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduled reset did not fire")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUpdateProfileSerialized(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	weight := 25.0
	radius := 200.0
	updated, err := r.UpdateProfile("buddy", ProfilePatch{WeightKg: &weight, GeofenceRadiusM: &radius})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.WeightKg != 25 || updated.GeofenceRadiusM != 200 {
		t.Fatalf("unexpected profile: %+v", updated)
	}
	if updated.Name != "Buddy" {
		t.Fatalf("name must be immutable")
	}
	if !updated.AutoWalkDetect {
		t.Fatalf("omitted fields must keep their value")
	}

	bad := 9999.0
	if _, err := r.UpdateProfile("buddy", ProfilePatch{GeofenceRadiusM: &bad}); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestDeactivateStopsDispatch(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	if err := r.Deactivate("buddy"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := r.Deactivate("buddy"); err != ErrUnknownDog {
		t.Fatalf("expected unknown after deactivation, got %v", err)
	}
	if _, err := r.Snapshot("buddy"); err != ErrUnknownDog {
		t.Fatalf("expected unknown snapshot, got %v", err)
	}
	if err := r.SubmitCommand("buddy", Command{Name: CmdFeed}); err != ErrUnknownDog {
		t.Fatalf("expected unknown command target, got %v", err)
	}
}

func TestDeactivateReportsInFlightResult(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())
	e, err := r.lookup("buddy")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	// hold the dispatch loop mid-mutation while the dog is deactivated
	running := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- e.do(func() error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	deactivated := make(chan error, 1)
	go func() { deactivated <- r.Deactivate("buddy") }()
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("mutation that ran must report its result, got %v", err)
	}
	if err := <-deactivated; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := e.do(func() error { return nil }); err != ErrUnknownDog {
		t.Fatalf("expected dispatch refused after stop, got %v", err)
	}
}

func TestDogsIsolatedUnderConcurrency(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())
	rex := buddy()
	rex.Name = "Rex"
	r.RegisterDog(rex)

	var wg sync.WaitGroup
	for _, name := range []string{"buddy", "rex"} {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(name string, i int) {
				defer wg.Done()
				_ = r.SubmitCommand(name, Command{
					Name:      CmdFeed,
					MealType:  "snack",
					AmountG:   10,
					Timestamp: testStart.Add(time.Duration(i) * time.Second),
				})
			}(name, i)
		}
	}
	wg.Wait()

	for _, name := range []string{"buddy", "rex"} {
		snap, err := r.Snapshot(name)
		if err != nil {
			t.Fatalf("snapshot %s: %v", name, err)
		}
		if snap.Counters.Meals["snack"] != 20 {
			t.Fatalf("%s: expected 20 snacks, got %d", name, snap.Counters.Meals["snack"])
		}
		if snap.Counters.FoodGrams != 200 {
			t.Fatalf("%s: expected 200 grams, got %v", name, snap.Counters.FoodGrams)
		}
	}
}

func TestSubmitFixErrors(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	if _, err := r.SubmitFix("rex", walk.Fix{}); err != ErrUnknownDog {
		t.Fatalf("expected unknown dog, got %v", err)
	}
	if _, err := r.SubmitFix("buddy", walk.Fix{Lat: 95, Lng: 8, AccuracyM: 10, RecordedAt: testStart}); err != walk.ErrInvalidFix {
		t.Fatalf("expected invalid fix, got %v", err)
	}

	// stale fixes are dropped silently, not surfaced
	r.SubmitFix("buddy", walk.Fix{Lat: 52, Lng: 8, AccuracyM: 10, RecordedAt: testStart})
	outcome, err := r.SubmitFix("buddy", walk.Fix{Lat: 52, Lng: 8, AccuracyM: 10, RecordedAt: testStart.Add(-time.Second)})
	if err != nil || outcome != walk.Stale {
		t.Fatalf("expected silent stale drop, got %v %v", outcome, err)
	}
	snap, _ := r.Snapshot("buddy")
	if snap.StaleFixes != 1 {
		t.Fatalf("expected stale diagnostic counter 1, got %d", snap.StaleFixes)
	}
}

func TestUnknownCommand(t *testing.T) {
	clock := newClock(testStart)
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	if err := r.SubmitCommand("buddy", Command{Name: "teleport"}); err != ErrUnknownCommand {
		t.Fatalf("expected unknown command, got %v", err)
	}
}

func TestFeedDefaultsMealSlotByHour(t *testing.T) {
	clock := newClock(time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC))
	r := newTestRegistry(t, clock)
	r.RegisterDog(buddy())

	r.SubmitCommand("buddy", Command{Name: CmdFeed, AmountG: 100})
	snap, _ := r.Snapshot("buddy")
	if snap.Counters.Meals["morning"] != 1 {
		t.Fatalf("expected morning slot by hour, got %+v", snap.Counters.Meals)
	}
}
