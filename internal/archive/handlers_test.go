package archive

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/walk"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func TestHistoryWalksEndpoint(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	cols := []string{"id", "source", "started_at", "ended_at", "distance_m", "duration_sec", "avg_speed_mps", "calories_kcal", "rating", "notes", "point_count"}
	mock.ExpectQuery(`SELECT id, source, started_at, ended_at`).
		WithArgs("buddy", archiveStart, archiveStart.Add(24*time.Hour)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("walk-1", walk.SourceAutomatic, archiveStart, archiveStart.Add(time.Hour), 2500.0, int64(3600), 0.69, 40.0, 5, "", 120))

	app := fiber.New()
	RegisterRoutes(app.Group("/history"), NewService(mock))

	target := fmt.Sprintf("/history/buddy/walks?from=%s&to=%s",
		archiveStart.Format(time.RFC3339), archiveStart.Add(24*time.Hour).Format(time.RFC3339))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sessions []walk.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "walk-1" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestHistoryEventsEndpoint(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	payload := []byte(`{"id":"ev-1","dog":"Buddy","kind":"medication","at":"2025-03-10T09:00:00Z","medication":{"name":"heartgard","dose":"1 tablet"}}`)
	mock.ExpectQuery(`SELECT payload`).
		WithArgs("buddy", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	app := fiber.New()
	RegisterRoutes(app.Group("/history"), NewService(mock))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/history/buddy/events", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHistoryBadRange(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	app := fiber.New()
	RegisterRoutes(app.Group("/history"), NewService(mock))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/history/buddy/walks?from=yesterday", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
