package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/presence.report/internal/db"
	"github.com/banshee-data/presence.report/internal/presence"
)

// stubMux satisfies the scanmux interface with a canned stream error for
// exercising the sniffer health reporting.
type stubMux struct {
	err error
}

func (s *stubMux) Subscribe() (string, chan string)     { return "", nil }
func (s *stubMux) Unsubscribe(string)                   {}
func (s *stubMux) SendCommand(string) error             { return nil }
func (s *stubMux) Monitor(context.Context) error        { return nil }
func (s *stubMux) Close() error                         { return nil }
func (s *stubMux) Err() error                           { return s.err }
func (s *stubMux) Initialize() error                    { return nil }
func (s *stubMux) AttachAdminRoutes(mux *http.ServeMux) {}

func newTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "presence_test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(&stubMux{}, database, "test-room"), database
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before the first cycle, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("error body was not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message in the body")
	}
}

func TestStatusAfterCycle(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetLatest(presence.CycleResult{
		People: 2,
		Devices: []presence.DeviceReading{
			{Address: "aa:bb:cc:dd:ee:ff", RawRSSI: -50, SmoothedRSSI: -50},
		},
		Groups: [][]float64{{1.0, 1.1}, {4.5}},
	})

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Label != "test-room" {
		t.Errorf("label: got %q", body.Label)
	}
	if body.Latest == nil || body.Latest.People != 2 {
		t.Errorf("latest cycle missing or wrong: %+v", body.Latest)
	}
	if body.UpdatedAt.IsZero() {
		t.Error("updated_at should be set")
	}
	if body.Sniffer != "ok" {
		t.Errorf("sniffer health: got %q", body.Sniffer)
	}
}

func TestStatusReportsSnifferFailure(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "presence_test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	s := NewServer(&stubMux{err: errors.New("device disconnected")}, database, "test-room")
	s.SetLatest(presence.CycleResult{})

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Sniffer != "failed: device disconnected" {
		t.Errorf("sniffer health: got %q", body.Sniffer)
	}
}

func TestListCounts(t *testing.T) {
	s, database := newTestServer(t)
	runID := db.NewRunID()
	for i := 0; i < 5; i++ {
		if err := database.RecordCount(runID, "test-room", "chained", i, i); err != nil {
			t.Fatal(err)
		}
	}

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/counts?limit=3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var counts []db.PresenceCount
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(counts) != 3 {
		t.Errorf("expected 3 counts with limit=3, got %d", len(counts))
	}
}

func TestListSightings(t *testing.T) {
	s, database := newTestServer(t)
	distance := 0.8
	err := database.RecordSighting(db.DeviceSighting{
		RunID:          db.NewRunID(),
		Address:        "aa:bb:cc:dd:ee:ff",
		RawRSSI:        -48,
		SmoothedRSSI:   -49.2,
		DistanceMetres: &distance,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/sightings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sightings []db.DeviceSighting
	if err := json.NewDecoder(rec.Body).Decode(&sightings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sightings) != 1 || sightings[0].Address != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("unexpected sightings: %+v", sightings)
	}
}

func TestCountChart(t *testing.T) {
	s, database := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/counts/chart", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no counts, got %d", rec.Code)
	}

	if err := database.RecordCount(db.NewRunID(), "test-room", "chained", 4, 2); err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest("GET", "/counts/chart", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with counts present, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected an HTML chart, got content type %q", ct)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"?limit=7", 7},
		{"?limit=0", 100},
		{"?limit=-2", 100},
		{"?limit=notanumber", 100},
		{"?limit=99999", 100},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/counts"+tc.query, nil)
		if got := parseLimit(r, 100); got != tc.want {
			t.Errorf("parseLimit(%q): got %d, want %d", tc.query, got, tc.want)
		}
	}
}
