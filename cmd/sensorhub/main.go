// SensorHub - serial telemetry ingestion service
//
// SensorHub watches the serial bus for microcontroller sensor boards, gives
// each board a persistent id keyed on its USB serial number, records every
// reading it streams, and serves the accumulated histories over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/sensorhub/internal/api"
	"github.com/nerrad567/sensorhub/internal/discovery"
	"github.com/nerrad567/sensorhub/internal/handshake"
	"github.com/nerrad567/sensorhub/internal/identity"
	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorhub/internal/ingest"
	"github.com/nerrad567/sensorhub/internal/serialport"
	"github.com/nerrad567/sensorhub/internal/telemetry"
	"github.com/nerrad567/sensorhub/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
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

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SensorHub",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Storage backend
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stores.Close(); closeErr != nil {
			log.Error("error closing storage", "error", closeErr)
		}
	}()
	log.Info("storage opened", "backend", cfg.Storage.Backend)

	registry := identity.NewRegistry(stores.identities)
	registry.SetLogger(log.With("component", "identity"))
	registry.OnChange(m.SetRegisteredDevices)
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading identity registry: %w", loadErr)
	}
	log.Info("identity registry loaded", "devices", registry.Count())

	readings := telemetry.NewStore(stores.histories)
	readings.SetLogger(log.With("component", "telemetry"))
	if loadErr := readings.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading histories: %w", loadErr)
	}

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	sinks := telemetry.MultiSink{hub}
	events := discovery.MultiEvents{hub}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		sinks = append(sinks, ingest.NewMQTTSink(mqttClient, log))
		events = append(events, discovery.NewMQTTStatus(mqttClient, log))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		sinks = append(sinks, ingest.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Discovery and ingestion
	opener := serialport.NewOpener(cfg.Serial.BaudRate)

	prober := handshake.NewProber(opener, cfg.Serial)
	prober.SetLogger(log.With("component", "handshake"))
	prober.SetMetrics(m)

	readerLog := log.With("component", "ingest")
	scanner, err := discovery.NewScanner(cfg.Discovery, cfg.ProbeTimeout(), discovery.Deps{
		Enumerator: serialport.USBEnumerator{},
		Prober:     prober,
		Registry:   registry,
		NewReader: func(deviceID, port string) discovery.Runner {
			r := ingest.NewReader(deviceID, port, opener, cfg.Serial.ReadTimeout, readings)
			r.SetLogger(readerLog.With("device_id", deviceID))
			r.SetSink(sinks)
			r.SetMetrics(m)
			return r
		},
		Events:  events,
		Metrics: m,
		Logger:  log.With("component", "discovery"),
	})
	if err != nil {
		return fmt.Errorf("creating scanner: %w", err)
	}

	if mqttClient != nil {
		rescan := mqtt.Topics{}.CommandRescan()
		if subErr := mqttClient.Subscribe(rescan, byte(cfg.MQTT.QoS), func(string, []byte) error {
			scanner.Nudge()
			return nil
		}); subErr != nil {
			log.Warn("rescan command unavailable", "topic", rescan, "error", subErr)
		}
	}

	if cfg.Discovery.Hotplug {
		watcher := discovery.NewHotplugWatcher(cfg.Discovery.HotplugDir, scanner.Nudge, log.With("component", "hotplug"))
		go func() {
			if watchErr := watcher.Run(ctx); watchErr != nil {
				log.Warn("hotplug detection unavailable, relying on periodic scans", "error", watchErr)
			}
		}()
	}

	// Query service
	apiDeps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Metrics:  cfg.Metrics,
		Logger:   log,
		Store:    readings,
		Registry: registry,
		Ports:    scanner.Active(),
		Hub:      hub,
		Version:  version,
	}
	if m != nil {
		apiDeps.Collector = m.Handler()
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if influxClient != nil {
		apiDeps.InfluxDB = influxClient
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, stores.db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete")

	// Blocks until shutdown. Readers stop with ctx and are not drained.
	if err := scanner.Run(ctx); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	log.Info("SensorHub stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// storage bundles the persistence backends chosen by storage.backend.
type storage struct {
	identities identity.Store
	histories  telemetry.HistoryStore
	db         *database.DB // nil for the json backend
}

// Close releases the database, if any.
func (s *storage) Close() error {
	return s.db.Close()
}

// openStores builds the identity and history stores for the configured backend.
func openStores(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return &storage{
			identities: identity.NewSQLiteStore(db.DB),
			histories:  telemetry.NewSQLiteHistoryStore(db.DB),
			db:         db,
		}, nil

	default:
		return &storage{
			identities: identity.NewFileStore(cfg.Storage.RegistryFile),
			histories:  telemetry.NewFileHistoryStore(cfg.Storage.DataDir),
		}, nil
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil for the json backend)
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
