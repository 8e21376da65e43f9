// dpbridge - dual-protocol DataPoint normalization bridge
//
// This is the main entry point for the bridge. It sits between a
// Zigbee radio front-end (publishing raw tunnelled DataPoint payloads
// and parsed cluster reports over MQTT) and the host platform, and
// turns both protocol paths into one normalized capability stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/packetninja/dpbridge/migrations"

	"github.com/packetninja/dpbridge/internal/api"
	"github.com/packetninja/dpbridge/internal/arbiter"
	"github.com/packetninja/dpbridge/internal/bridge"
	"github.com/packetninja/dpbridge/internal/infrastructure/config"
	"github.com/packetninja/dpbridge/internal/infrastructure/database"
	"github.com/packetninja/dpbridge/internal/infrastructure/influxdb"
	"github.com/packetninja/dpbridge/internal/infrastructure/logging"
	"github.com/packetninja/dpbridge/internal/infrastructure/mqtt"
	"github.com/packetninja/dpbridge/internal/normalize"
	"github.com/packetninja/dpbridge/internal/profile"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting dpbridge",
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

	// Capability profile registry, loaded from YAML profiles on disk
	registry := profile.NewRegistry()
	registry.SetLogger(log)
	loaded, err := profile.LoadDir(registry, cfg.Bridge.ProfilesDir)
	if err != nil {
		return fmt.Errorf("loading capability profiles: %w", err)
	}
	log.Info("capability profiles loaded", "count", loaded, "dir", cfg.Bridge.ProfilesDir)

	// Adaptive scaling learner. With learning disabled the learner
	// still corrects per-reading but nothing is persisted.
	var learnerStore normalize.Store
	if cfg.Bridge.LearningEnabled {
		learnerStore = normalize.NewSQLiteStore(db.DB)
	}
	learner := normalize.NewLearner(learnerStore)
	learner.SetLogger(log)
	if cfg.Bridge.LearningEnabled {
		if err := learner.Preload(ctx); err != nil {
			return fmt.Errorf("preloading learned divisors: %w", err)
		}
	}
	normalizer := normalize.NewNormalizer(learner)
	normalizer.SetLogger(log)

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

	// Bridge manager: the pipeline core
	manager := bridge.NewManager(bridgeOptions(cfg, registry, normalizer, db, mqttClient, influxClient, log))
	defer func() {
		log.Info("closing bridge manager")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing bridge manager", "error", closeErr)
		}
	}()

	if err := manager.RestoreAffinities(ctx); err != nil {
		return fmt.Errorf("restoring affinity decisions: %w", err)
	}

	// Subscribe to the radio front-end's traffic
	if err := subscribeBridgeTopics(manager, mqttClient, byte(cfg.MQTT.QoS), log); err != nil {
		return fmt.Errorf("subscribing to bridge topics: %w", err)
	}
	log.Info("bridge pipeline subscribed")

	// Operational HTTP API + WebSocket relay
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Bridge:   manager,
		Registry: registry,
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, bridge manager, InfluxDB (if enabled), MQTT, database.

	log.Info("dpbridge stopped")
	return nil
}

// bridgeOptions assembles the manager's dependency set from the wired
// infrastructure.
func bridgeOptions(cfg *config.Config, registry *profile.Registry, normalizer *normalize.Normalizer,
	db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) bridge.Options {
	opts := bridge.Options{
		Registry:      registry,
		Normalizer:    normalizer,
		AffinityStore: arbiter.NewSQLiteStore(db.DB),
		Publisher:     mqttClient,
		Logger:        log,
		Window:        cfg.GetArbitrationWindow(),
		QoS:           byte(cfg.MQTT.QoS),
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}
	return opts
}

// subscribeBridgeTopics wires the radio front-end's raw and cluster
// topics into the manager's pipeline handlers.
func subscribeBridgeTopics(manager *bridge.Manager, mqttClient *mqtt.Client, qos byte, log *logging.Logger) error {
	topics := mqtt.Topics{}

	if err := mqttClient.Subscribe(topics.AllRaw(), qos, func(topic string, payload []byte) error {
		if err := manager.HandleRawMessage(topic, payload); err != nil {
			log.Warn("raw message rejected", "topic", topic, "error", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to raw topics: %w", err)
	}

	if err := mqttClient.Subscribe(topics.AllClusters(), qos, func(topic string, payload []byte) error {
		if err := manager.HandleClusterMessage(topic, payload); err != nil {
			log.Warn("cluster message rejected", "topic", topic, "error", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to cluster topics: %w", err)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DPBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DPBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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
	return nil
}
