// Package archive persists closed walk sessions and activity events
// to postgres. The in-memory engine stays authoritative for the
// current day; the archive serves long-term history queries.
package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/db"
	"github.com/Bigdaddy1990/paw-control/internal/dog"
	"github.com/Bigdaddy1990/paw-control/internal/walk"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) SaveSession(ctx context.Context, sess walk.Session) error {
	route, err := json.Marshal(sess.Route)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO walk_sessions (id, dog_key, source, started_at, ended_at, distance_m, duration_sec, avg_speed_mps, calories_kcal, rating, notes, point_count, route)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING
	`, sess.ID, dog.Key(sess.Dog), sess.Source, sess.StartedAt, sess.EndedAt,
		sess.DistanceM, int64(sess.Duration.Seconds()), sess.AvgSpeedMps, sess.CaloriesKcal,
		sess.Rating, sess.Notes, sess.PointCount, route)
	return err
}

func (s *Service) SaveEvent(ctx context.Context, ev activity.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO activity_events (id, dog_key, kind, occurred_at, payload)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, dog.Key(ev.Dog), string(ev.Kind), ev.At, payload)
	return err
}

func (s *Service) Sessions(ctx context.Context, name string, from, to time.Time) ([]walk.Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, source, started_at, ended_at, distance_m, duration_sec, avg_speed_mps, calories_kcal, rating, notes, point_count
		FROM walk_sessions
		WHERE dog_key=$1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at
	`, dog.Key(name), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []walk.Session
	for rows.Next() {
		var sess walk.Session
		var durationSec int64
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.StartedAt, &sess.EndedAt,
			&sess.DistanceM, &durationSec, &sess.AvgSpeedMps, &sess.CaloriesKcal,
			&sess.Rating, &sess.Notes, &sess.PointCount); err != nil {
			return nil, err
		}
		sess.Dog = name
		sess.Duration = time.Duration(durationSec) * time.Second
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *Service) Events(ctx context.Context, name string, from, to time.Time) ([]activity.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT payload
		FROM activity_events
		WHERE dog_key=$1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at
	`, dog.Key(name), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []activity.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev activity.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
