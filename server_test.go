package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/at"
	"github.com/S-3moticon/Smart-Bike-Tracker/gps"
	"github.com/S-3moticon/Smart-Bike-Tracker/history"
	"github.com/S-3moticon/Smart-Bike-Tracker/modem"
	"github.com/S-3moticon/Smart-Bike-Tracker/sms"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

// trackerModule scripts a modem that produces fixes and accepts SMS
// transactions, so the whole HTTP surface can be exercised without
// hardware.
type trackerModule struct {
	smsBodies []string
}

func (m *trackerModule) respond(payload string) string {
	switch {
	case payload == "AT+CGNSINF":
		return "\r\n+CGNSINF: 1,1,20250315083000.000,14.599512,120.984222,35.0,4.2,90.0\r\n\r\nOK\r\n"
	case payload == "AT+CREG?":
		return "\r\n+CREG: 0,1\r\n\r\nOK\r\n"
	case strings.HasPrefix(payload, "AT+CMGS="):
		return "\r\n> "
	case strings.HasSuffix(payload, at.CtrlZ):
		m.smsBodies = append(m.smsBodies, strings.TrimSuffix(payload, at.CtrlZ))
		return "\r\n+CMGS: 3\r\n\r\nOK\r\n"
	case payload == at.Esc:
		return ""
	default:
		return "\r\nOK\r\n"
	}
}

type transportDialer struct {
	transport modem.Transport
}

func (d transportDialer) Dial(context.Context) (modem.Transport, error) {
	return d.transport, nil
}

func testServer(t *testing.T, module *trackerModule) *Server {
	t.Helper()

	transport := modem.NewScriptedTransport(module.respond)
	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(transportDialer{transport}).
		WithATTimeout(50 * time.Millisecond).
		WithNetworkTimeout(50 * time.Millisecond).
		WithPollInterval(time.Millisecond).
		WithCancelDelay(time.Millisecond).
		WithLivenessPolling(2, time.Millisecond).
		WithRegistrationPolling(2, time.Millisecond).
		WithRFWaitPolling(1, time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	m := modem.New(modemConfig)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	backing := store.NewMemory()
	hist, err := history.Open(backing)
	if err != nil {
		t.Fatalf("history.Open() error: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	tracker := NewTracker(m, backing, hist, nil, logger, TrackerConfig{
		Defaults:    Settings{PhoneNumber: "+639171234567", SMSInterval: 300, UserPresent: true, AlertsEnabled: true},
		MaxAttempts: 3,
		Acquire: gps.AcquireConfig{
			SettleTime:   time.Millisecond,
			FixTimeout:   50 * time.Millisecond,
			RetryDelay:   time.Millisecond,
			RestoreDelay: time.Millisecond,
		},
		SMS: sms.Config{
			CommandTimeout:       50 * time.Millisecond,
			PromptTimeout:        20 * time.Millisecond,
			FirstConfirmTimeout:  50 * time.Millisecond,
			SecondConfirmTimeout: 50 * time.Millisecond,
			InterMessageDelay:    time.Millisecond,
			NetworkSettleDelay:   time.Millisecond,
		},
	})

	return &Server{Logger: logger, Tracker: tracker}
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestLocationEndpoint(t *testing.T) {
	s := testServer(t, &trackerModule{})

	if rec := doRequest(t, s, http.MethodGet, "/location", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /location before any fix = %d, want 404", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodPost, "/fix", ""); rec.Code != http.StatusOK {
		t.Fatalf("POST /fix = %d, body %s", rec.Code, rec.Body)
	}

	rec := doRequest(t, s, http.MethodGet, "/location", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /location = %d", rec.Code)
	}
	var fix gps.Fix
	if err := json.Unmarshal(rec.Body.Bytes(), &fix); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if fix.Latitude != "14.599512" || !fix.Valid {
		t.Errorf("fix = %+v", fix)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := testServer(t, &trackerModule{})

	for i := 0; i < 3; i++ {
		if rec := doRequest(t, s, http.MethodPost, "/fix", ""); rec.Code != http.StatusOK {
			t.Fatalf("POST /fix = %d", rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/history?page=0&size=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /history = %d", rec.Code)
	}
	var page history.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if page.TotalPoints != 3 || page.TotalPages != 2 || len(page.History) != 2 {
		t.Errorf("page = %+v", page)
	}

	if rec := doRequest(t, s, http.MethodGet, "/history?size=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("GET /history?size=0 = %d, want 400", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t, &trackerModule{})

	rec := doRequest(t, s, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.ModemState != "ready" {
		t.Errorf("modemState = %q", status.ModemState)
	}
}

func TestConfigEndpoint(t *testing.T) {
	s := testServer(t, &trackerModule{})

	rec := doRequest(t, s, http.MethodPut, "/config", `{"phoneNumber":"+639998887777","smsInterval":120,"userPresent":false,"alertsEnabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /config = %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, s, http.MethodGet, "/config", "")
	var settings Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if settings.PhoneNumber != "+639998887777" || settings.SMSInterval != 120 || settings.UserPresent || !settings.AlertsEnabled {
		t.Errorf("settings = %+v", settings)
	}

	if rec := doRequest(t, s, http.MethodPut, "/config", `{"smsInterval":0}`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT /config with zero interval = %d, want 400", rec.Code)
	}
}

func TestReportLocationEndpoint(t *testing.T) {
	s := testServer(t, &trackerModule{})

	rec := doRequest(t, s, http.MethodPost, "/location", `{"lat":14.554729,"lon":121.024445,"speed":12.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /location = %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, s, http.MethodGet, "/history?page=0&size=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /history = %d", rec.Code)
	}
	var page history.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if page.TotalPoints != 1 || len(page.History) != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.History[0].Source != uint8(history.SourcePhone) {
		t.Errorf("src = %d, want phone-reported", page.History[0].Source)
	}

	if rec := doRequest(t, s, http.MethodPost, "/location", `{"lat":0,"lon":0}`); rec.Code != http.StatusBadRequest {
		t.Errorf("POST /location with zero coordinates = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/location", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("POST /location with a bad body = %d, want 400", rec.Code)
	}
}

func TestConcurrentConfigAndStatus(t *testing.T) {
	s := testServer(t, &trackerModule{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rec := doRequest(t, s, http.MethodPut, "/config", `{"phoneNumber":"+639171234567","smsInterval":120,"userPresent":true,"alertsEnabled":true}`)
			if rec.Code != http.StatusOK {
				t.Errorf("PUT /config = %d", rec.Code)
			}
		}()
		go func() {
			defer wg.Done()
			if rec := doRequest(t, s, http.MethodGet, "/status", ""); rec.Code != http.StatusOK {
				t.Errorf("GET /status = %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	settings := s.Tracker.Settings()
	if settings.SMSInterval != 120 {
		t.Errorf("smsInterval = %d, want 120", settings.SMSInterval)
	}
}

func TestTestAlertEndpoint(t *testing.T) {
	module := &trackerModule{}
	s := testServer(t, module)

	rec := doRequest(t, s, http.MethodPost, "/alerts/test", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /alerts/test = %d, body %s", rec.Code, rec.Body)
	}
	if len(module.smsBodies) != 2 {
		t.Fatalf("sent %d SMS bodies, want 2", len(module.smsBodies))
	}
	if !strings.HasPrefix(module.smsBodies[0], "geo:") {
		t.Errorf("first body = %q, want a geo URI", module.smsBodies[0])
	}
}

func TestTestAlertWithoutNumber(t *testing.T) {
	s := testServer(t, &trackerModule{})
	if err := s.Tracker.UpdateSettings(Settings{SMSInterval: 60}); err != nil {
		t.Fatalf("UpdateSettings() error: %v", err)
	}

	if rec := doRequest(t, s, http.MethodPost, "/alerts/test", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /alerts/test without a number = %d, want 503", rec.Code)
	}
}
