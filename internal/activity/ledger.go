package activity

import (
	"errors"
	"iter"
	"time"
)

var ErrOutOfOrderEvent = errors.New("event timestamp out of order")

// SkewTolerance is how far behind the newest recorded event an append
// may be before it is rejected.
const SkewTolerance = 2 * time.Minute

// Ledger is the append-only per-dog activity record. Not safe for
// concurrent use; the registry serializes access per dog.
type Ledger struct {
	events []Event
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records an event. Timestamps may lag the newest event by up
// to the skew tolerance; events inside the tolerance are insert-sorted
// so reads stay timestamp-ordered, ties keep insertion order.
func (l *Ledger) Append(ev Event) error {
	if n := len(l.events); n > 0 {
		last := l.events[n-1].At
		if ev.At.Before(last.Add(-SkewTolerance)) {
			return ErrOutOfOrderEvent
		}
	}

	pos := len(l.events)
	for pos > 0 && l.events[pos-1].At.After(ev.At) {
		pos--
	}
	l.events = append(l.events, Event{})
	copy(l.events[pos+1:], l.events[pos:])
	l.events[pos] = ev
	return nil
}

// Len reports the number of recorded events.
func (l *Ledger) Len() int { return len(l.events) }

// Last returns the most recent event of the given kind, if any.
func (l *Ledger) Last(kind Kind) (Event, bool) {
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return Event{}, false
}

// QueryRange yields events with from <= At < to in timestamp order.
// Each call returns a fresh, restartable sequence.
func (l *Ledger) QueryRange(from, to time.Time) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, ev := range l.events {
			if ev.At.Before(from) {
				continue
			}
			if !ev.At.Before(to) {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Streak counts consecutive calendar days, ending today, with at least
// one event of the given kind. A streak survives a still-young today:
// if today has no qualifying event yet but yesterday does, counting
// starts from yesterday. Days follow now's location.
func (l *Ledger) Streak(kind Kind, now time.Time) int {
	days := map[string]bool{}
	for _, ev := range l.events {
		if ev.Kind == kind {
			days[ev.At.In(now.Location()).Format("2006-01-02")] = true
		}
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !days[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
		if !days[day.Format("2006-01-02")] {
			return 0
		}
	}

	streak := 0
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// RebuildCounters recomputes the counters for one calendar day from
// the ledger.
func (l *Ledger) RebuildCounters(day time.Time) Counters {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	counters := NewCounters(start)
	for ev := range l.QueryRange(start, start.AddDate(0, 0, 1)) {
		counters.Apply(ev)
	}
	return counters
}
