package terneo

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const collectTimeout = 15 * time.Second

// MetricsCollector collects thermostat telemetry. Each scrape performs one
// Update round-trip; the collect timeout leaves room for the interval guard
// and the legacy-firmware power lookup.
type MetricsCollector struct {
	client *Client

	temperature prometheus.Gauge
	setpoint    prometheus.Gauge
	relayOn     prometheus.Gauge
	mode        prometheus.Gauge
	powerOn     prometheus.Gauge

	lastSuccess prometheus.Gauge
	success     prometheus.Gauge
}

func NewMetricsCollector(client *Client) *MetricsCollector {
	return &MetricsCollector{
		client: client,
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_temperature_celsius",
			Help: "Floor sensor temperature in degrees Celsius",
		}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_setpoint_celsius",
			Help: "Target temperature in degrees Celsius",
		}),
		relayOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_relay_on",
			Help: "Whether the heating relay is energised (1=on, 0=off)",
		}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_mode",
			Help: "Operating mode code (-1=off, 0=schedule, 3=manual, 4=away)",
		}),
		powerOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_power_on",
			Help: "Whether the thermostat is powered on (1=on, 0=off)",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_last_success_timestamp_seconds",
			Help: "Last successful scrape timestamp (epoch seconds)",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terneo_scrape_success",
			Help: "Last scrape success (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.temperature.Describe(ch)
	c.setpoint.Describe(ch)
	c.relayOn.Describe(ch)
	c.mode.Describe(ch)
	c.powerOn.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.success.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	if err := c.client.Update(ctx); err != nil {
		c.success.Set(0)
		c.collectAll(ch)
		return
	}

	c.success.Set(1)
	c.lastSuccess.Set(float64(time.Now().Unix()))

	snapshot := c.client.Cached()
	setGauge(c.temperature, snapshot.Temperature)
	setGauge(c.setpoint, snapshot.Setpoint)
	setGaugeBool(c.relayOn, snapshot.RelayOn)
	if snapshot.Mode != nil {
		c.mode.Set(float64(*snapshot.Mode))
		if *snapshot.Mode == ModeOff {
			c.powerOn.Set(0)
		} else {
			c.powerOn.Set(1)
		}
	}

	c.collectAll(ch)
}

func (c *MetricsCollector) collectAll(ch chan<- prometheus.Metric) {
	c.temperature.Collect(ch)
	c.setpoint.Collect(ch)
	c.relayOn.Collect(ch)
	c.mode.Collect(ch)
	c.powerOn.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.success.Collect(ch)
}

func setGauge(g prometheus.Gauge, value *float64) {
	if value == nil {
		return
	}
	g.Set(*value)
}

func setGaugeBool(g prometheus.Gauge, value *bool) {
	if value == nil {
		return
	}
	if *value {
		g.Set(1)
		return
	}
	g.Set(0)
}
