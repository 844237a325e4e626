package terneo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/joshp123/terneo-golang/internal/rate"
)

const (
	requestTimeout  = 5 * time.Second
	requestInterval = time.Second

	apiEndpoint      = "api"
	livenessEndpoint = "api.html"

	cmdReadParams = 1
	cmdReadStatus = 4
)

// redactedSerial replaces the device serial in logged payloads.
const redactedSerial = "...filtered..."

// capability selects the power-state decoding strategy. Firmware 2.4+
// exposes an explicit power flag in the status payload; older firmware
// needs a second round-trip through the parameter table. Detected once
// from the first status payload, never re-checked per read.
type capability int

const (
	capsUnknown capability = iota
	capsPowerFlag
	capsParamTable
)

// Client talks to a Terneo thermostat's local HTTP API.
//
// All methods are safe for concurrent use. Requests are serialized through
// an interval guard because the device's embedded web server drops
// rapid-fire requests.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	guard      *rate.Guard
	log        *slog.Logger

	mu          sync.Mutex
	caps        capability
	temperature *float64
	setpoint    *float64
	mode        *Mode
	relayOn     *bool
	lastUpdated time.Time
}

// NewClient validates cfg and probes the device landing page. An
// unreachable device fails construction with ErrConnectionFailed.
func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		guard: rate.NewGuard(cfg.Host, requestInterval),
		log:   cfg.Logger,
	}

	if err := c.probe(); err != nil {
		return nil, err
	}
	return c, nil
}

// probe checks the fixed landing endpoint at construction time.
func (c *Client) probe() error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/"+livenessEndpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, HTTPStatusError{Status: resp.StatusCode})
	}
	return nil
}

// Get performs a GET against {endpoint}.cgi with stored credentials and
// returns the raw response. The caller owns the response body.
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setAuth(req)
	return c.httpClient.Do(req)
}

// post sends a command payload to {endpoint}.cgi and decodes the JSON
// response. Calls block until the interval guard allows the request.
// A device-side congestion response maps to ErrDeviceTimeout; the serial
// number is redacted from the logged payload.
func (c *Client) post(ctx context.Context, endpoint string, cmd command) (Status, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	if err := c.guard.Wait(ctx); err != nil {
		return nil, err
	}
	defer c.guard.Record()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, HTTPStatusError{Status: resp.StatusCode, Body: string(payload)}
	}

	var status Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}

	if status.timedOut() {
		cmd.SN = redactedSerial
		redacted, _ := json.Marshal(cmd)
		c.log.Warn("terneo timeout", "payload", string(redacted))
		return nil, ErrDeviceTimeout
	}

	return status, nil
}

// Status reads the full telemetry payload (command 4).
func (c *Client) Status(ctx context.Context) (Status, error) {
	status, err := c.post(ctx, apiEndpoint, command{Cmd: cmdReadStatus, SN: c.cfg.SerialNumber})
	if err != nil {
		return nil, err
	}
	c.observeCapability(status)
	return status, nil
}

// IsOn reads the power state from the parameter table (command 1).
// Needed on firmware before 2.4, which has no power flag in telemetry.
func (c *Client) IsOn(ctx context.Context) (bool, error) {
	status, err := c.post(ctx, apiEndpoint, command{Cmd: cmdReadParams, SN: c.cfg.SerialNumber})
	if err != nil {
		return false, err
	}

	table, ok := status["par"].([]any)
	if !ok {
		return false, fmt.Errorf("%w: par", ErrParamMissing)
	}
	for _, raw := range table {
		entry, ok := raw.([]any)
		if !ok || len(entry) < 3 {
			continue
		}
		id, ok := entry[0].(float64)
		if !ok || int(id) != parPower {
			continue
		}
		value, _ := entry[2].(string)
		return value == "0", nil
	}
	return false, fmt.Errorf("%w: %d", ErrParamMissing, parPower)
}

func (c *Client) observeCapability(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.caps != capsUnknown {
		return
	}
	if _, ok := status.PowerFlag(); ok {
		c.caps = capsPowerFlag
	} else {
		c.caps = capsParamTable
	}
}

func (c *Client) endpointURL(endpoint string) string {
	return c.baseURL + "/" + endpoint + ".cgi"
}

func (c *Client) setAuth(req *http.Request) {
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}

func (c *Client) write(ctx context.Context, pars ...param) error {
	_, err := c.post(ctx, apiEndpoint, command{SN: c.cfg.SerialNumber, Par: pars})
	return err
}
