package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/wifi-sensing/csi-collector/internal/capture"
	"github.com/wifi-sensing/csi-collector/internal/conn"
	"github.com/wifi-sensing/csi-collector/internal/csi"
	"github.com/wifi-sensing/csi-collector/internal/provision"
	"github.com/wifi-sensing/csi-collector/internal/stats"
	"github.com/wifi-sensing/csi-collector/internal/transport"
	"github.com/wifi-sensing/csi-collector/internal/wifi"
	"github.com/wifi-sensing/csi-collector/internal/wifi/espserial"
	"github.com/wifi-sensing/csi-collector/internal/wifi/sim"
)

// Run wires the capture pipeline and blocks until ctx is cancelled or a
// fatal bring-up error occurs. Only bring-up can fail: once the pipeline
// is running, all failures are local and logged.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := provision.OpenWithRecovery(config.storePath(), func(openErr error) {
		logger.Warn(fmt.Sprintf("provisioning store unusable, erasing and reinitializing: %s", openErr))
	})
	if err != nil {
		return fmt.Errorf("opening provisioning store: %w", err)
	}
	defer store.Close()

	creds, err := resolveCredentials(store, &config.Provision, logger)
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	radio, err := createRadio(&config.Radio, creds, logger)
	if err != nil {
		return fmt.Errorf("creating radio: %w", err)
	}
	defer radio.Close()

	out, err := createTransport(&config.Output)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer out.Close()

	queue, err := csi.NewQueue(config.queueSize())
	if err != nil {
		return fmt.Errorf("creating queue: %w", err)
	}

	counters := stats.NewCounters(queue.Dropped)
	producer := capture.NewProducer(queue, capture.WithCapturedHook(counters.Captured))
	consumer := capture.NewConsumer(queue, out,
		capture.WithLogger(logger),
		capture.WithWrittenHook(counters.Wrote))

	machine := conn.NewMachine(radio,
		conn.WithLogger(logger),
		conn.WithGateRearm(!config.Capture.OneShotGate))
	enabler := conn.NewEnabler(radio, config.csiConfig(), producer.Handle,
		conn.WithEnablerLogger(logger))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(fmt.Sprintf("%s stopped: %s", name, err))
			}
		}()
	}

	start("consumer", consumer.Run)
	start("enabler", func(ctx context.Context) error {
		return enabler.Run(ctx, machine.Gate())
	})

	if interval := time.Duration(config.Stats.Interval); interval > 0 {
		reporter, err := stats.NewReporter(counters, interval, stats.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("creating stats reporter: %w", err)
		}
		start("stats reporter", reporter.Run)
	}

	logger.Info("capture pipeline started",
		slog.String("driver", string(config.Radio.Driver)),
		slog.Int("queueSize", config.queueSize()))

	err = machine.Run(ctx)

	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resolveCredentials seeds the store from the config when the config
// carries credentials, then reads back whatever the store holds. A store
// with no credentials is fine for drivers that keep their own.
func resolveCredentials(store *provision.Store, config *ProvisionConfig, logger *slog.Logger) (wifi.Credentials, error) {
	if config.SSID != "" {
		if err := store.Set(provision.KeySSID, config.SSID); err != nil {
			return wifi.Credentials{}, err
		}
		if err := store.Set(provision.KeyPassword, config.Password); err != nil {
			return wifi.Credentials{}, err
		}
		logger.Info("provisioning store seeded from config", slog.String("ssid", config.SSID))
	}

	ssid, err := store.Get(provision.KeySSID)
	if errors.Is(err, provision.ErrNotFound) {
		return wifi.Credentials{}, nil
	}
	if err != nil {
		return wifi.Credentials{}, err
	}

	password, err := store.Get(provision.KeyPassword)
	if err != nil && !errors.Is(err, provision.ErrNotFound) {
		return wifi.Credentials{}, err
	}

	return wifi.Credentials{SSID: ssid, Password: password}, nil
}

func createRadio(config *RadioConfig, creds wifi.Credentials, logger *slog.Logger) (wifi.Radio, error) {
	switch config.Driver {
	case DriverESPSerial:
		return espserial.New(&config.ESPSerial,
			espserial.WithLogger(logger),
			espserial.WithCredentials(creds))

	case DriverSim:
		return sim.New(config.Sim.toDriver(), sim.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown radio driver: %q", config.Driver)
	}
}

func createTransport(config *OutputConfig) (transport.Transport, error) {
	if config.Stdout {
		return transport.NewWriter(os.Stdout), nil
	}
	return transport.OpenSerial(config.Port, config.BaudRate)
}
