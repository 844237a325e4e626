package terneo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/joshp123/terneo-golang/internal/rate"
)

type request struct {
	Cmd  int       `json:"cmd"`
	SN   string    `json:"sn"`
	Par  [][]any   `json:"par"`
	Auth string    `json:"-"`
	Time time.Time `json:"-"`
}

type testDevice struct {
	server   *httptest.Server
	requests []request
	respond  func(req request) string
}

func newTestDevice(t *testing.T, respond func(req request) string) *testDevice {
	t.Helper()
	device := &testDevice{respond: respond}
	device.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api.html":
			w.WriteHeader(http.StatusOK)
		case "/api.cgi":
			if r.Method != http.MethodPost {
				t.Fatalf("expected POST to /api.cgi, got %s", r.Method)
			}
			body, _ := io.ReadAll(r.Body)
			var req request
			if err := json.Unmarshal(body, &req); err != nil {
				t.Fatalf("decode request body: %v", err)
			}
			req.Auth = r.Header.Get("Authorization")
			req.Time = time.Now()
			device.requests = append(device.requests, req)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, device.respond(req))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	t.Cleanup(device.server.Close)
	return device
}

func (d *testDevice) config(t *testing.T) Config {
	t.Helper()
	u, err := url.Parse(d.server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return Config{SerialNumber: "A1B2C3", Host: host, Port: port}
}

// newTestClient builds a client against the fake device with an interval
// guard that never sleeps, so tests run without wall-clock waits.
func newTestClient(t *testing.T, device *testDevice) *Client {
	t.Helper()
	client, err := NewClient(device.config(t))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.guard = rate.NewGuardWithClock("test", time.Second, time.Now,
		func(context.Context, time.Duration) error { return nil })
	return client
}

func statusResponder(fields map[string]string) func(request) string {
	return func(req request) string {
		payload, _ := json.Marshal(fields)
		return string(payload)
	}
}

func TestNewClientPartialCredentials(t *testing.T) {
	_, err := NewClient(Config{SerialNumber: "A1B2C3", Host: "192.0.2.1", Username: "admin"})
	if !errors.Is(err, ErrPartialCredentials) {
		t.Fatalf("expected ErrPartialCredentials, got %v", err)
	}

	_, err = NewClient(Config{SerialNumber: "A1B2C3", Host: "192.0.2.1", Password: "hunter2"})
	if !errors.Is(err, ErrPartialCredentials) {
		t.Fatalf("expected ErrPartialCredentials, got %v", err)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(server.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	server.Close()

	_, err := NewClient(Config{SerialNumber: "A1B2C3", Host: host, Port: port})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestUpdateDecodesStatus(t *testing.T) {
	device := newTestDevice(t, statusResponder(map[string]string{
		"t.1": "320", "t.5": "288", "m.1": "3", "f.0": "1", "f.16": "0",
	}))
	client := newTestClient(t, device)

	ctx := context.Background()
	if err := client.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}

	temperature, err := client.Temperature(ctx)
	if err != nil {
		t.Fatalf("Temperature: %v", err)
	}
	if temperature != 20.0 {
		t.Fatalf("expected temperature 20.0, got %v", temperature)
	}

	setpoint, err := client.Setpoint(ctx)
	if err != nil {
		t.Fatalf("Setpoint: %v", err)
	}
	if setpoint != 18.0 {
		t.Fatalf("expected setpoint 18.0, got %v", setpoint)
	}

	relayOn, err := client.RelayOn(ctx)
	if err != nil {
		t.Fatalf("RelayOn: %v", err)
	}
	if !relayOn {
		t.Fatalf("expected relay on")
	}

	mode, err := client.Mode(ctx)
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if mode != ModeManual {
		t.Fatalf("expected manual mode, got %v", mode)
	}

	// All four properties came from the single Update round-trip.
	if len(device.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(device.requests))
	}
	if client.LastUpdated().IsZero() {
		t.Fatalf("expected LastUpdated to be set")
	}
}

func TestLegacyTemperatureScale(t *testing.T) {
	device := newTestDevice(t, statusResponder(map[string]string{
		"t.1": "2000", "t.5": "1850", "m.1": "0", "f.0": "0", "f.16": "0",
	}))
	cfg := device.config(t)
	cfg.TemperatureScale = LegacyTemperatureScale
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.guard = rate.NewGuardWithClock("test", time.Second, time.Now,
		func(context.Context, time.Duration) error { return nil })

	temperature, err := client.Temperature(context.Background())
	if err != nil {
		t.Fatalf("Temperature: %v", err)
	}
	if temperature != 20.0 {
		t.Fatalf("expected temperature 20.0, got %v", temperature)
	}
}

func TestModeOffViaPowerFlag(t *testing.T) {
	device := newTestDevice(t, statusResponder(map[string]string{
		"t.1": "320", "t.5": "288", "m.1": "3", "f.0": "0", "f.16": "1",
	}))
	client := newTestClient(t, device)

	mode, err := client.Mode(context.Background())
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if mode != ModeOff {
		t.Fatalf("expected ModeOff, got %v", mode)
	}
	if len(device.requests) != 1 {
		t.Fatalf("expected 1 request (no parameter-table fallback), got %d", len(device.requests))
	}
}

func TestModeLegacyFirmwareFallback(t *testing.T) {
	// No f.16 in telemetry: the client resolves the power state through a
	// second round-trip to the parameter table.
	device := newTestDevice(t, func(req request) string {
		if req.Cmd == cmdReadParams {
			return `{"par": [[125, 7, "0"], [23, 2, "1"]]}`
		}
		return `{"t.1": "320", "t.5": "288", "m.1": "0", "f.0": "1"}`
	})
	client := newTestClient(t, device)

	mode, err := client.Mode(context.Background())
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if mode != ModeSchedule {
		t.Fatalf("expected schedule mode, got %v", mode)
	}
	if len(device.requests) != 2 {
		t.Fatalf("expected 2 requests (status + parameter table), got %d", len(device.requests))
	}
}

func TestIsOnParamMissing(t *testing.T) {
	device := newTestDevice(t, func(req request) string {
		return `{"par": [[23, 2, "1"]]}`
	})
	client := newTestClient(t, device)

	_, err := client.IsOn(context.Background())
	if !errors.Is(err, ErrParamMissing) {
		t.Fatalf("expected ErrParamMissing, got %v", err)
	}
}

func TestDeviceTimeout(t *testing.T) {
	device := newTestDevice(t, func(req request) string {
		return `{"status": "timeout"}`
	})
	client := newTestClient(t, device)

	_, err := client.Status(context.Background())
	if !errors.Is(err, ErrDeviceTimeout) {
		t.Fatalf("expected ErrDeviceTimeout, got %v", err)
	}
}

func TestSetModeInvalidIssuesNoRequest(t *testing.T) {
	device := newTestDevice(t, statusResponder(map[string]string{}))
	client := newTestClient(t, device)

	err := client.SetMode(context.Background(), ModeSetting(5))
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if len(device.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(device.requests))
	}
}

func TestSetSetpointPayloadAndCache(t *testing.T) {
	device := newTestDevice(t, func(req request) string {
		return `{"success": "true"}`
	})
	client := newTestClient(t, device)

	if err := client.SetSetpoint(context.Background(), 18.5); err != nil {
		t.Fatalf("SetSetpoint: %v", err)
	}

	if len(device.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(device.requests))
	}
	req := device.requests[0]
	if req.SN != "A1B2C3" {
		t.Fatalf("expected serial in payload, got %q", req.SN)
	}
	want := [][]any{
		{float64(125), float64(7), "0"},
		{float64(2), float64(2), "1"},
		{float64(5), float64(1), "18.5"},
	}
	if len(req.Par) != len(want) {
		t.Fatalf("expected %d parameter writes, got %d", len(want), len(req.Par))
	}
	for i, entry := range want {
		for j, value := range entry {
			if req.Par[i][j] != value {
				t.Fatalf("parameter %d field %d: expected %v, got %v", i, j, value, req.Par[i][j])
			}
		}
	}

	// Confirm-then-cache: the cached setpoint reflects the acknowledged
	// write without another round-trip.
	snapshot := client.Cached()
	if snapshot.Setpoint == nil || *snapshot.Setpoint != 18.5 {
		t.Fatalf("expected cached setpoint 18.5, got %v", snapshot.Setpoint)
	}
}

func TestTurnOffCachesModeOff(t *testing.T) {
	device := newTestDevice(t, func(req request) string {
		return `{"success": "true"}`
	})
	client := newTestClient(t, device)

	if err := client.TurnOff(context.Background()); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	requestsAfterWrite := len(device.requests)

	mode, err := client.Mode(context.Background())
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if mode != ModeOff {
		t.Fatalf("expected ModeOff from cache, got %v", mode)
	}
	if len(device.requests) != requestsAfterWrite {
		t.Fatalf("mode read after TurnOff must not issue a request")
	}
}

func TestUpdateOverwritesCache(t *testing.T) {
	fields := map[string]string{
		"t.1": "320", "t.5": "288", "m.1": "3", "f.0": "1", "f.16": "0",
	}
	device := newTestDevice(t, func(req request) string {
		payload, _ := json.Marshal(fields)
		return string(payload)
	})
	client := newTestClient(t, device)

	ctx := context.Background()
	if err := client.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fields["t.1"] = "336"
	fields["f.0"] = "0"
	if err := client.Update(ctx); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	temperature, err := client.Temperature(ctx)
	if err != nil {
		t.Fatalf("Temperature: %v", err)
	}
	if temperature != 21.0 {
		t.Fatalf("expected refreshed temperature 21.0, got %v", temperature)
	}
	relayOn, err := client.RelayOn(ctx)
	if err != nil {
		t.Fatalf("RelayOn: %v", err)
	}
	if relayOn {
		t.Fatalf("expected refreshed relay off")
	}
	if len(device.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(device.requests))
	}
}

func TestBasicAuthAttached(t *testing.T) {
	device := newTestDevice(t, statusResponder(map[string]string{
		"t.1": "320", "t.5": "288", "m.1": "0", "f.0": "0", "f.16": "0",
	}))
	cfg := device.config(t)
	cfg.Username = "admin"
	cfg.Password = "hunter2"
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.guard = rate.NewGuardWithClock("test", time.Second, time.Now,
		func(context.Context, time.Duration) error { return nil })

	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if device.requests[0].Auth == "" {
		t.Fatalf("expected basic auth header on request")
	}
}

func TestPostSpacing(t *testing.T) {
	device := newTestDevice(t, statusResponder(map[string]string{
		"t.1": "320", "t.5": "288", "m.1": "0", "f.0": "0", "f.16": "0",
	}))
	client, err := NewClient(device.config(t))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	// Virtual clock: sleeps advance time instead of blocking.
	now := time.Unix(1000, 0)
	var slept time.Duration
	client.guard = rate.NewGuardWithClock("test", time.Second,
		func() time.Time { return now },
		func(_ context.Context, d time.Duration) error {
			slept += d
			now = now.Add(d)
			return nil
		})

	ctx := context.Background()
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("first Status: %v", err)
	}
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("second Status: %v", err)
	}
	if slept < 900*time.Millisecond {
		t.Fatalf("expected back-to-back posts to be spaced by ~1s, waited %v", slept)
	}
}
