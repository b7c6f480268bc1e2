package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"taximeter/internal/app"
	"taximeter/internal/domain"
	"taximeter/internal/handler"
	"taximeter/internal/service"
)

// ──────────────────────────────────────────────
// HTTP API
// ──────────────────────────────────────────────

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	*meterFixture
	idem   *MockIdempotencyStore
	router *gin.Engine
}

func newAPIFixture() *apiFixture {
	f := newMeterFixture()
	idem := NewMockIdempotencyStore()

	history := service.NewHistoryService(f.trips, f.logger)
	receipts := service.NewReceiptService(f.trips, time.UTC)

	router := app.NewRouter(app.RouterDeps{
		MeterHandler:     handler.NewMeterHandler(f.svc),
		LiveHandler:      handler.NewLiveHandler(f.svc, 20*time.Millisecond, f.logger),
		SettingsHandler:  handler.NewSettingsHandler(f.settings),
		TripHandler:      handler.NewTripHandler(history, receipts, f.svc),
		IdempotencyStore: idem,
		Logger:           f.logger,
	})

	return &apiFixture{meterFixture: f, idem: idem, router: router}
}

func (a *apiFixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiFixture) fixBody(lat, lon float64) string {
	b, _ := json.Marshal(a.clock.fix(lat, lon))
	return string(b)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestAPI_Health(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()
	if w := a.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAPI_RideLifecycle(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()

	w := a.do(t, http.MethodPost, "/v1/meter/start", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body)
	}
	if snap := decode[domain.Snapshot](t, w); snap.State != domain.RideStateRunning {
		t.Errorf("expected RUNNING, got %s", snap.State)
	}

	w = a.do(t, http.MethodPost, "/v1/meter/fixes", a.fixBody(0, 0))
	if w.Code != http.StatusOK {
		t.Fatalf("fix: expected 200, got %d: %s", w.Code, w.Body)
	}
	a.clock.Advance(time.Minute)
	w = a.do(t, http.MethodPost, "/v1/meter/fixes", a.fixBody(0, 0.001))
	fix := decode[handler.FixResponse](t, w)
	if fix.Outcome != "accepted" || fix.DistanceDeltaM < 111 || fix.DistanceDeltaM > 112 {
		t.Errorf("unexpected fix response %+v", fix)
	}
	if fix.Snapshot == nil || fix.Snapshot.PointCount != 2 {
		t.Errorf("fix response should carry the live snapshot: %+v", fix.Snapshot)
	}

	if w := a.do(t, http.MethodPost, "/v1/meter/pause", ""); w.Code != http.StatusOK {
		t.Errorf("pause: expected 200, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/meter/pause", ""); w.Code != http.StatusConflict {
		t.Errorf("second pause: expected 409, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/meter/resume", ""); w.Code != http.StatusOK {
		t.Errorf("resume: expected 200, got %d", w.Code)
	}

	w = a.do(t, http.MethodPost, "/v1/meter/end", "")
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d: %s", w.Code, w.Body)
	}
	ended := decode[service.EndRideResult](t, w)
	if !ended.Persisted || ended.Ride == nil {
		t.Fatalf("unexpected end result %+v", ended)
	}

	w = a.do(t, http.MethodGet, "/v1/trips", "")
	list := decode[[]handler.TripSummary](t, w)
	if len(list) != 1 || list[0].ID != ended.Ride.ID {
		t.Errorf("history should list the ended ride: %+v", list)
	}

	w = a.do(t, http.MethodGet, "/v1/trips/"+ended.Ride.ID, "")
	if ride := decode[domain.CompletedRide](t, w); len(ride.Points) != 2 {
		t.Errorf("trip detail should include the track, got %d points", len(ride.Points))
	}
}

func TestAPI_StartWithInvalidBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"name":`, http.StatusBadRequest},
		{"discount above 100 percent", `{"discount":{"type":"percent","value":120}}`, http.StatusBadRequest},
		{"unknown discount type", `{"discount":{"type":"coupon","value":1}}`, http.StatusBadRequest},
		{"named ride with discount", `{"name":"Airport","discount":{"type":"amount","value":2}}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAPIFixture()
			if w := a.do(t, http.MethodPost, "/v1/meter/start", tt.body); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body)
			}
		})
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()

	if w := a.do(t, http.MethodGet, "/v1/meter/snapshot", ""); w.Code != http.StatusConflict {
		t.Errorf("snapshot without ride: expected 409, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/meter/end", ""); w.Code != http.StatusConflict {
		t.Errorf("end without ride: expected 409, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/meter/fixes", `{"lat":95,"lon":0,"timestamp":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid fix: expected 400, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/meter/provider-error", `{"code":"ok"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid provider code: expected 400, got %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/v1/trips/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown trip: expected 404, got %d", w.Code)
	}

	a.locks.Hold(testMeterID, "other")
	if w := a.do(t, http.MethodPost, "/v1/meter/start", ""); w.Code != http.StatusLocked {
		t.Errorf("locked meter: expected 423, got %d", w.Code)
	}

	a.locks.AcquireError = errors.New("redis down")
	if w := a.do(t, http.MethodPost, "/v1/meter/start", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("lock failure: expected 500, got %d", w.Code)
	}
}

func TestAPI_ProviderErrorAndStatus(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()
	a.do(t, http.MethodPost, "/v1/meter/start", "")

	w := a.do(t, http.MethodPost, "/v1/meter/provider-error", `{"code":"permission_denied","message":"location off"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	status := decode[service.MeterStatus](t, a.do(t, http.MethodGet, "/v1/meter/status", ""))
	if status.Provider != service.ProviderPermissionDenied || status.State != domain.RideStateRunning {
		t.Errorf("unexpected status %+v", status)
	}
	if status.MeterID != testMeterID {
		t.Errorf("expected meter id %s, got %s", testMeterID, status.MeterID)
	}
}

func TestAPI_Settings(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()

	rates := decode[domain.RateConfig](t, a.do(t, http.MethodGet, "/v1/settings", ""))
	if rates != domain.DefaultRateConfig() {
		t.Errorf("expected defaults, got %+v", rates)
	}

	w := a.do(t, http.MethodPut, "/v1/settings", `{"per_km":2.2,"rounding":"nearest-0.50"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body)
	}
	rates = decode[domain.RateConfig](t, w)
	if rates.PerKm != 2.2 || rates.Rounding != domain.RoundingNearest50 {
		t.Errorf("update not applied: %+v", rates)
	}
	if rates.BaseFare != 3 {
		t.Errorf("omitted fields should keep their values, base fare %v", rates.BaseFare)
	}

	if w := a.do(t, http.MethodPut, "/v1/settings", `{"night_surcharge_percent":150}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid settings: expected 400, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPut, "/v1/settings", `[`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed settings: expected 400, got %d", w.Code)
	}
}

func TestAPI_ReceiptFormats(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()
	a.trips.AddRide(nightRide())

	w := a.do(t, http.MethodGet, "/v1/trips/ride-night/receipt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected plain text, got %s", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "TOTAL:            15.44") {
		t.Errorf("unexpected receipt:\n%s", w.Body)
	}

	w = a.do(t, http.MethodGet, "/v1/trips/ride-night/receipt", "", "Accept", "application/json")
	receipt := decode[service.Receipt](t, w)
	if receipt.TotalFare != 15.44 || !receipt.Breakdown.Night {
		t.Errorf("unexpected JSON receipt %+v", receipt)
	}
}

func TestAPI_SetPaidAndClear(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()
	a.trips.AddRide(sampleRide("ride-1", 5000000))

	w := a.do(t, http.MethodPost, "/v1/trips/ride-1/paid", `{"paid":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if summary := decode[handler.TripSummary](t, w); !summary.Paid {
		t.Error("ride should be marked paid")
	}

	if w := a.do(t, http.MethodPost, "/v1/trips/ride-1/paid", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing paid flag: expected 400, got %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/v1/trips/missing/paid", `{"paid":true}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown ride: expected 404, got %d", w.Code)
	}

	if w := a.do(t, http.MethodDelete, "/v1/trips", ""); w.Code != http.StatusNoContent {
		t.Errorf("clear: expected 204, got %d", w.Code)
	}
	if list := decode[[]handler.TripSummary](t, a.do(t, http.MethodGet, "/v1/trips", "")); len(list) != 0 {
		t.Errorf("history should be empty, got %d", len(list))
	}
}

func TestAPI_RetryPending(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()
	a.trips.SetSaveError(errors.New("db down"))

	a.do(t, http.MethodPost, "/v1/meter/start", "")
	w := a.do(t, http.MethodPost, "/v1/meter/end", "")
	if ended := decode[service.EndRideResult](t, w); ended.Persisted {
		t.Fatal("ride should not be persisted while storage is down")
	}

	if w := a.do(t, http.MethodPost, "/v1/trips/retry", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("retry while down: expected 503, got %d", w.Code)
	}

	a.trips.SetSaveError(nil)
	w = a.do(t, http.MethodPost, "/v1/trips/retry", "")
	if w.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", w.Code)
	}
	if res := decode[service.RetryResult](t, w); res.Saved != 1 || res.Remaining != 0 {
		t.Errorf("unexpected retry result %+v", res)
	}
}

func TestAPI_IdempotentStartIsReplayed(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()

	first := a.do(t, http.MethodPost, "/v1/meter/start", "", "Idempotency-Key", "start-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := a.do(t, http.MethodPost, "/v1/meter/start", "", "Idempotency-Key", "start-1")
	if second.Code != http.StatusCreated {
		t.Errorf("replay should return the original status, got %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replay header missing")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body, second.Body)
	}
	if a.locks.AcquireCallCount != 1 {
		t.Errorf("ride must be started once, lock taken %d times", a.locks.AcquireCallCount)
	}

	// Without a key the duplicate reaches the meter and conflicts.
	if w := a.do(t, http.MethodPost, "/v1/meter/start", ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestAPI_IdempotencyIgnoresFailures(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()

	w := a.do(t, http.MethodPost, "/v1/meter/pause", "", "Idempotency-Key", "pause-1")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if a.idem.Count() != 0 {
		t.Error("failed responses must not be stored")
	}

	long := strings.Repeat("k", 129)
	if w := a.do(t, http.MethodPost, "/v1/meter/start", "", "Idempotency-Key", long); w.Code != http.StatusBadRequest {
		t.Errorf("long key: expected 400, got %d", w.Code)
	}

	a.idem.GetError = errors.New("redis down")
	if w := a.do(t, http.MethodPost, "/v1/meter/start", "", "Idempotency-Key", "start-2"); w.Code != http.StatusCreated {
		t.Errorf("store outage must not block requests, got %d", w.Code)
	}
}

func TestAPI_LiveFeed(t *testing.T) {
	t.Parallel()

	a := newAPIFixture()
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/meter/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg handler.LiveMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "idle" || msg.Snapshot != nil {
		t.Errorf("expected idle message before start, got %+v", msg)
	}

	a.do(t, http.MethodPost, "/v1/meter/start", "")
	fix := a.clock.fix(50, 8)
	if err := conn.WriteJSON(service.ProviderEvent{Fix: &fix}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("fix never showed up in the live feed: %v", err)
		}
		if msg.Type == "snapshot" && msg.Snapshot != nil && msg.Snapshot.PointCount == 1 {
			break
		}
	}
	if msg.Status.State != domain.RideStateRunning {
		t.Errorf("expected RUNNING status, got %s", msg.Status.State)
	}
}
