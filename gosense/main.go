package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/gosense/pkg/config"
	"github.com/itohio/gosense/pkg/link"
	"github.com/itohio/gosense/pkg/loop"
	"github.com/itohio/gosense/pkg/metrics"
	"github.com/itohio/gosense/pkg/publish"
	"github.com/itohio/gosense/pkg/sample"
	"github.com/itohio/gosense/pkg/sensor"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	started := time.Now()

	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., /dev/ttyUSB0 or COM3)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use simulated sensors instead of the serial port")
		portsFlag   = flag.Bool("ports", false, "List serial ports and exit")
		verboseFlag = flag.Bool("v", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *portsFlag {
		if err := listPorts(); err != nil {
			fatal(logger, "listing serial ports", err)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatal(logger, "loading configuration", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, started, cfg, *mockFlag, logger); err != nil && ctx.Err() == nil {
		fatal(logger, "gateway stopped", err)
	}
}

func run(ctx context.Context, started time.Time, cfg *config.Config, useMock bool, logger *slog.Logger) error {
	var device sensor.Device
	if useMock {
		logger.Info("using simulated sensors")
		device = sensor.NewMock(&cfg.Mock)
	} else {
		logger.Info("opening sensor board", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)
		device = sensor.New(cfg.Serial.Port, cfg.Serial.BaudRate, logger.With("component", "sensor"))
	}
	if err := device.Connect(); err != nil {
		return fmt.Errorf("connecting sensor: %w", err)
	}
	defer device.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		ln, err := metrics.Listen(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		go func() {
			if err := metrics.Serve(ctx, ln, reg, logger); err != nil {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	netLink := link.NewInterfaces(cfg.Network.Interface)
	if err := link.Wait(ctx, netLink, cfg.Network.PollInterval, logger); err != nil {
		return err
	}

	transport, closeTransport, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	sampler := sample.NewSampler(device, sample.Thresholds{
		Warning: cfg.Sampling.WarningThreshold,
		Risk:    cfg.Sampling.RiskThreshold,
	})
	publisher := publish.New(cfg.Device.ID, netLink, transport, m, logger.With("component", "publish"))

	driver := loop.New(loop.Config{
		SampleInterval:  cfg.Sampling.SampleInterval,
		PublishInterval: cfg.Sampling.PublishInterval,
		Idle:            cfg.Sampling.Idle,
	}, loop.NewClockFrom(started), sampler, publisher, m, logger)

	// A lost sensor board stops the loop rather than publishing stale readings.
	loopCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		if err := sensor.Watch(loopCtx, device, cfg.Network.PollInterval); errors.Is(err, sensor.ErrDisconnected) {
			cancel(err)
		}
	}()

	err = driver.Run(loopCtx)
	if cause := context.Cause(loopCtx); errors.Is(cause, sensor.ErrDisconnected) {
		err = cause
	}

	if s, ok := device.(*sensor.Serial); ok {
		_, lines, dropped := s.Latest()
		logger.Info("sensor board", "lines", lines, "dropped", dropped)
	}

	return err
}

func newTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (publish.Transport, func(), error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		t := publish.NewMQTT(cfg.MQTT, logger.With("component", "mqtt"))
		if err := t.Start(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("publishing over mqtt", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic, "client_id", t.ClientID())
		return t, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := t.Close(shutdownCtx); err != nil {
				logger.Warn("mqtt disconnect", "error", err)
			}
		}, nil
	default:
		if cfg.Backend.APIKey == "" {
			logger.Warn("backend.api_key is empty, requests will be unauthenticated")
		}
		logger.Info("publishing over http", "url", cfg.Backend.URL)
		return publish.NewHTTP(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout), func() {}, nil
	}
}

func listPorts() error {
	ports, err := sensor.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
