// fanctld - fan control daemon for the platform management controller.
//
// The daemon keeps a live model of platform telemetry reachable over the
// management object bus and drives fan speed targets from a declarative
// policy (zones, fans, groups, events, profiles). Reconfiguration happens on
// SIGHUP; SIGUSR1 requests a diagnostic dump.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/bmcfleet/fanctl/migrations"

	"github.com/bmcfleet/fanctl/internal/bus"
	"github.com/bmcfleet/fanctl/internal/control"
	"github.com/bmcfleet/fanctl/internal/flightrec"
	"github.com/bmcfleet/fanctl/internal/infrastructure/config"
	"github.com/bmcfleet/fanctl/internal/infrastructure/database"
	"github.com/bmcfleet/fanctl/internal/infrastructure/influxdb"
	"github.com/bmcfleet/fanctl/internal/infrastructure/logging"
	"github.com/bmcfleet/fanctl/internal/infrastructure/mqtt"
	"github.com/bmcfleet/fanctl/internal/monitor"
	"github.com/bmcfleet/fanctl/internal/powerstate"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual daemon logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting fanctld",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations (zone thermal-mode persistence)
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Connect to the MQTT broker carrying the management object bus
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	recorder := flightrec.New(cfg.Control.FlightRecorderSize)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		recorder.Add("bus transport reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		recorder.Add("bus transport lost", "error", fmt.Sprint(err))
	})

	// Connect to InfluxDB (optional telemetry)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Object-bus adapter over the MQTT transport
	busClient, err := bus.New(mqttClient, byte(cfg.MQTT.QoS),
		time.Duration(cfg.Bus.RequestTimeout)*time.Second, log)
	if err != nil {
		return fmt.Errorf("creating bus adapter: %w", err)
	}

	// Control core: reactor plus manager
	reactor := control.NewReactor(256)
	manager, err := control.New(control.Options{
		Lookup:         busClient,
		Signals:        busClient,
		Reactor:        reactor,
		PolicyDir:      cfg.Control.PolicyDir,
		DumpPath:       cfg.Control.DumpPath,
		DiscoveryDepth: cfg.Control.DiscoveryDepth,
		Recorder:       recorder,
		Telemetry:      zoneTelemetry(influxClient),
		Modes:          control.NewSQLiteModeStore(db.DB),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating manager: %w", err)
	}

	reactorCtx, stopReactor := context.WithCancel(context.Background())
	defer stopReactor()
	reactorDone := make(chan struct{})
	go func() {
		reactor.Run(reactorCtx)
		close(reactorDone)
	}()

	// Initial policy load is fatal on error: a daemon with no valid policy
	// has nothing to run.
	loadErr := make(chan error, 1)
	reactor.Submit(func() { loadErr <- manager.Load() })
	if err := <-loadErr; err != nil {
		return fmt.Errorf("loading fan control policy: %w", err)
	}
	log.Info("fan control policy loaded", "policy_dir", cfg.Control.PolicyDir)

	// fatal carries errors that must bring the daemon down from callbacks.
	fatal := make(chan error, 1)

	// Power-good watcher: transitions hop onto the reactor.
	watcher := powerstate.New(busClient, mqtt.Topics{}.PowerState(), func(on bool) {
		reactor.Submit(func() {
			if err := manager.PowerStateChanged(on); err != nil {
				select {
				case fatal <- err:
				default:
				}
			}
		})
	}, log)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting power watcher: %w", err)
	}
	defer watcher.Stop()
	log.Info("power state watcher started")

	// Fan health monitor (optional), fed from the loaded policy.
	if cfg.Monitor.Enabled {
		if err := startMonitor(ctx, cfg, manager, reactor, busClient, influxClient, log); err != nil {
			return fmt.Errorf("starting fan monitor: %w", err)
		}
	} else {
		log.Info("fan health monitor disabled")
	}

	// SIGHUP reloads policy; SIGUSR1 requests a diagnostic dump.
	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(reloadCh)
	go func() {
		for sig := range reloadCh {
			switch sig {
			case syscall.SIGHUP:
				log.Info("SIGHUP received, reloading policy")
				reactor.Submit(manager.ReloadConfigs)
			case syscall.SIGUSR1:
				log.Info("SIGUSR1 received, scheduling diagnostic dump")
				manager.RequestDump()
			}
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-fatal:
		log.Error("fatal control error", "error", err)
		stopReactor()
		<-reactorDone
		return err
	}

	stopReactor()
	<-reactorDone

	log.Info("fanctld stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FANCTL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FANCTL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// zoneTelemetry adapts the optional InfluxDB client to the control package's
// Telemetry interface without handing it a typed nil.
func zoneTelemetry(client *influxdb.Client) control.Telemetry {
	if client == nil {
		return nil
	}
	return client
}

// startMonitor builds the fan health monitor from the fans the manager just
// loaded and runs it on its own goroutine.
func startMonitor(ctx context.Context, cfg *config.Config, manager *control.Manager,
	reactor *control.Reactor, busClient *bus.Client, influxClient *influxdb.Client,
	log *logging.Logger) error {

	// Zone state is reactor-confined; fetch the fan layout on the reactor.
	type fanInfo struct {
		name    string
		path    string
		sensors []string
	}
	infoCh := make(chan []fanInfo, 1)
	reactor.Submit(func() {
		var infos []fanInfo
		for _, z := range manager.Zones() {
			for _, f := range z.Fans() {
				infos = append(infos, fanInfo{name: f.Name, path: f.Path(), sensors: f.Sensors})
			}
		}
		infoCh <- infos
	})
	infos := <-infoCh

	if len(infos) == 0 {
		log.Warn("fan health monitor enabled but no fans loaded; skipping")
		return nil
	}

	var telemetry monitor.Telemetry
	if influxClient != nil {
		telemetry = influxClient
	}
	mon := monitor.New(monitor.Options{
		Lookup:           busClient,
		Telemetry:        telemetry,
		Interval:         time.Duration(cfg.Monitor.Interval) * time.Second,
		SensorService:    cfg.Monitor.SensorService,
		FanService:       cfg.Monitor.FanService,
		InventoryService: cfg.Monitor.InventoryService,
		Logger:           log,
	})

	for _, info := range infos {
		sensors := make([]*monitor.TachSensor, 0, len(info.sensors))
		for i, path := range info.sensors {
			sensors = append(sensors, &monitor.TachSensor{
				Name: fmt.Sprintf("rotor%d", i),
				Path: path,
			})
		}
		fan, err := monitor.NewFan(info.name, info.path, "/inventory/fans/"+info.name,
			sensors, cfg.Monitor.Deviation, cfg.Monitor.AllowedNonfunctional)
		if err != nil {
			return err
		}
		mon.AddFan(fan)
	}

	go func() {
		if err := mon.Run(ctx); err != nil {
			log.Error("fan monitor stopped", "error", err)
		}
	}()
	log.Info("fan health monitor started", "fans", len(infos),
		"interval_seconds", cfg.Monitor.Interval)
	return nil
}
