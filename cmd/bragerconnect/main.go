// BragerConnect Core - Heating Controller Bridge
//
// This is the main entry point for the BragerConnect Core service.
// It bridges BragerConnect cloud heating controllers to local
// infrastructure:
//   - Polls controller state over the cloud WebSocket API
//   - Publishes states and Home Assistant discovery over MQTT
//   - Accepts parameter writes from MQTT commands and the admin API
//   - Persists device metadata and alarm history in SQLite
//   - Optionally records telemetry in InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/marpi82/bragerconnect-core/migrations"

	"github.com/marpi82/bragerconnect-core/internal/api"
	"github.com/marpi82/bragerconnect-core/internal/brager"
	"github.com/marpi82/bragerconnect-core/internal/bridge"
	"github.com/marpi82/bragerconnect-core/internal/device"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/config"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/database"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/influxdb"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/logging"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/mqtt"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BragerConnect Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Connect to MQTT broker
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the BragerConnect cloud
	cloudClient, err := brager.Connect(ctx, brager.Config{
		Host:              cfg.Cloud.Host,
		Username:          cfg.Cloud.Username,
		Password:          cfg.Cloud.Password,
		Language:          cfg.Cloud.Language,
		CallTimeout:       cfg.GetCallTimeout(),
		ReconnectInterval: time.Duration(cfg.Cloud.Reconnect.InitialDelay) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connecting to BragerConnect cloud: %w", err)
	}
	defer func() {
		log.Info("closing cloud connection")
		if closeErr := cloudClient.Close(); closeErr != nil {
			log.Error("error closing cloud connection", "error", closeErr)
		}
	}()
	cloudClient.SetLogger(log)
	log.Info("cloud connected", "host", cfg.Cloud.Host, "username", cfg.Cloud.Username)

	// Start the cloud bridge
	cloudBridge, err := startBridge(ctx, cfg, cloudClient, mqttClient, deviceRegistry, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		cloudBridge.Stop()
	}()

	// Start the admin API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Registry: deviceRegistry,
		Bridge:   cloudBridge,
		MQTT:     mqttClient,
		DB:       db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, cloudClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Bridge
	// 3. Cloud client
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("BragerConnect Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BRAGER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BRAGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil if disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, cloudClient *brager.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := cloudClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("cloud: %w", err)
	}

	return nil
}

// startBridge wires the cloud client, MQTT, registry and telemetry into
// the bridge and starts it.
func startBridge(ctx context.Context, cfg *config.Config, cloudClient *brager.Client, mqttClient *mqtt.Client, registry *device.Registry, influxClient *influxdb.Client, log *logging.Logger) (*bridge.Bridge, error) {
	// Create MQTT adapter to satisfy the bridge interface
	mqttAdapter := &mqttBridgeAdapter{client: mqttClient, log: log}

	opts := bridge.Options{
		Config:   cfg,
		Cloud:    cloudClient,
		MQTT:     mqttAdapter,
		Registry: registry,
		Logger:   log,
		Version:  version,
	}
	// Leave Metrics as a nil interface when InfluxDB is disabled; a
	// typed nil *influxdb.Client would pass the bridge's nil checks.
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	b, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started",
		"poll_interval", cfg.GetPollInterval(),
		"discovery", cfg.Discovery.Enabled,
	)

	return b, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The primary difference is the Subscribe handler
// signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
	log    *logging.Logger
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
