package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	terneo "github.com/joshp123/terneo-golang"
	"github.com/joshp123/terneo-golang/internal/rate"
	"github.com/joshp123/terneo-golang/mqttbridge"
)

func main() {
	configPath := flag.String("config", "/etc/terneo/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	client, err := terneo.NewClient(terneo.Config{
		SerialNumber:     cfg.Device.SerialNumber,
		Host:             cfg.Device.Host,
		Port:             cfg.Device.Port,
		Username:         cfg.Device.Username,
		Password:         cfg.Device.Password,
		TemperatureScale: cfg.Device.TemperatureScale,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("connect thermostat", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(terneo.NewMetricsCollector(client))
	registry.MustRegister(rate.MetricsCollectors()...)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MQTT.Enabled {
		bridge, err := mqttbridge.New(mqttbridge.Config{
			BrokerURL:    cfg.MQTT.BrokerURL,
			ClientID:     cfg.MQTT.ClientID,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
			TopicPrefix:  cfg.MQTT.TopicPrefix,
			QoS:          byte(cfg.MQTT.QoS),
			PollInterval: time.Duration(cfg.MQTT.PollIntervalSeconds) * time.Second,
			Logger:       logger,
		}, cfg.Device.SerialNumber, client)
		if err != nil {
			logger.Error("mqtt connect", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("mqtt bridge", "error", err)
			}
		}()
	}

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newLogger(cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
