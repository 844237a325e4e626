// Package mqttbridge publishes thermostat state to an MQTT broker and
// executes commands received on the device's command topics.
package mqttbridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	terneo "github.com/joshp123/terneo-golang"
)

const (
	defaultPrefix       = "terneo"
	defaultPollInterval = 30 * time.Second
	defaultQoS          = 1

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	commandTimeout = 30 * time.Second
)

// Thermostat is the slice of the device client the bridge drives.
type Thermostat interface {
	Update(ctx context.Context) error
	Cached() terneo.Snapshot
	SetSetpoint(ctx context.Context, celsius float64) error
	SetMode(ctx context.Context, setting terneo.ModeSetting) error
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// Config defines broker connection and polling settings.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://broker:1883".
	BrokerURL string

	// ClientID identifies this bridge to the broker. Defaults to
	// "terneo-<serial>".
	ClientID string

	Username string
	Password string

	// TopicPrefix is the first topic segment. Defaults to "terneo".
	TopicPrefix string

	// QoS for state and command messages. Defaults to 1.
	QoS byte

	// PollInterval between device refreshes. Defaults to 30s.
	PollInterval time.Duration

	// Logger for command and publish failures. Defaults to discard.
	Logger *slog.Logger
}

// Bridge mirrors one thermostat onto MQTT. State topics are retained so
// new subscribers see the latest values immediately.
type Bridge struct {
	cfg        Config
	thermostat Thermostat
	topics     Topics
	client     pahomqtt.Client
	log        *slog.Logger
}

// New connects to the broker and returns a bridge ready to Run.
func New(cfg Config, serial string, thermostat Thermostat) (*Bridge, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, fmt.Errorf("mqttbridge broker_url is required")
	}
	if strings.TrimSpace(serial) == "" {
		return nil, fmt.Errorf("mqttbridge serial is required")
	}
	if thermostat == nil {
		return nil, fmt.Errorf("mqttbridge thermostat is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "terneo-" + serial
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultPrefix
	}
	if cfg.QoS == 0 {
		cfg.QoS = defaultQoS
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Bridge{
		cfg:        cfg,
		thermostat: thermostat,
		topics:     Topics{Prefix: cfg.TopicPrefix, Serial: serial},
		log:        cfg.Logger,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetWill(b.topics.Online(), "0", cfg.QoS, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return b, nil
}

// Run subscribes to command topics and polls the device until ctx is
// cancelled. The availability topic is flipped to offline on the way out.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.subscribeCommands(); err != nil {
		return err
	}
	if err := b.publish(b.topics.Online(), "1"); err != nil {
		return err
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	b.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := b.publish(b.topics.Online(), "0"); err != nil {
				b.log.Warn("offline publish failed", "error", err)
			}
			b.client.Disconnect(uint(publishTimeout.Milliseconds()))
			return nil
		case <-ticker.C:
			b.refresh(ctx)
		}
	}
}

func (b *Bridge) refresh(ctx context.Context) {
	if err := b.thermostat.Update(ctx); err != nil {
		b.log.Warn("device refresh failed", "error", err)
		return
	}
	b.publishState(b.thermostat.Cached())
}

func (b *Bridge) publishState(snapshot terneo.Snapshot) {
	if snapshot.Temperature != nil {
		b.publishLogged(b.topics.State(FieldTemperature), formatFloat(*snapshot.Temperature))
	}
	if snapshot.Setpoint != nil {
		b.publishLogged(b.topics.State(FieldSetpoint), formatFloat(*snapshot.Setpoint))
	}
	if snapshot.Mode != nil {
		b.publishLogged(b.topics.State(FieldMode), snapshot.Mode.String())
	}
	if snapshot.RelayOn != nil {
		value := "0"
		if *snapshot.RelayOn {
			value = "1"
		}
		b.publishLogged(b.topics.State(FieldRelay), value)
	}
}

func (b *Bridge) subscribeCommands() error {
	token := b.client.Subscribe(b.topics.AllCommands(), b.cfg.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Topic(), string(msg.Payload()))
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// handleCommand runs on paho's callback goroutine; device writes get their
// own bounded context.
func (b *Bridge) handleCommand(topic, payload string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	field := topic[strings.LastIndex(topic, "/")+1:]
	var err error
	switch field {
	case CommandSetpoint:
		err = b.setSetpoint(ctx, payload)
	case CommandMode:
		err = b.setMode(ctx, payload)
	case CommandPower:
		err = b.setPower(ctx, payload)
	default:
		err = fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, field)
	}
	if err != nil {
		b.log.Warn("command failed", "topic", topic, "error", err)
		return
	}
	b.publishState(b.thermostat.Cached())
}

func (b *Bridge) setSetpoint(ctx context.Context, payload string) error {
	celsius, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, payload)
	}
	return b.thermostat.SetSetpoint(ctx, celsius)
}

func (b *Bridge) setMode(ctx context.Context, payload string) error {
	switch strings.TrimSpace(strings.ToLower(payload)) {
	case "schedule", "0":
		return b.thermostat.SetMode(ctx, terneo.SetSchedule)
	case "manual", "1":
		return b.thermostat.SetMode(ctx, terneo.SetManual)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, payload)
	}
}

func (b *Bridge) setPower(ctx context.Context, payload string) error {
	switch strings.TrimSpace(strings.ToLower(payload)) {
	case "on", "1":
		return b.thermostat.TurnOn(ctx)
	case "off", "0":
		return b.thermostat.TurnOff(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, payload)
	}
}

func (b *Bridge) publishLogged(topic, payload string) {
	if err := b.publish(topic, payload); err != nil {
		b.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

func (b *Bridge) publish(topic, payload string) error {
	token := b.client.Publish(topic, b.cfg.QoS, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
