// Keylock Core - RFID door access coordinator
//
// This is the main entry point for the Keylock Core daemon. It wires
// together the infrastructure (SQLite, MQTT, optional InfluxDB), the
// access decision pipeline, the MQTT device gateway and the admin API,
// then waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/keylock-project/keylock-core/migrations"

	"github.com/keylock-project/keylock-core/internal/access"
	"github.com/keylock-project/keylock-core/internal/api"
	"github.com/keylock-project/keylock-core/internal/gateway"
	"github.com/keylock-project/keylock-core/internal/infrastructure/config"
	"github.com/keylock-project/keylock-core/internal/infrastructure/database"
	"github.com/keylock-project/keylock-core/internal/infrastructure/influxdb"
	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
	"github.com/keylock-project/keylock-core/internal/infrastructure/mqtt"
	"github.com/keylock-project/keylock-core/internal/key"
	"github.com/keylock-project/keylock-core/internal/ledger"
	"github.com/keylock-project/keylock-core/internal/node"
	"github.com/keylock-project/keylock-core/internal/room"
	"github.com/keylock-project/keylock-core/internal/scanstage"
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
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Keylock Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	roomRepo := room.NewSQLiteRepository(db.DB)
	nodeRepo := node.NewSQLiteRepository(db.DB)
	keyRepo := key.NewSQLiteRepository(db.DB)
	permRepo := access.NewSQLitePermissionRepository(db.DB)
	ledgerRepo := ledger.NewSQLiteRepository(db.DB)

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

	// Connect to InfluxDB (optional). Node telemetry degrades to logs
	// when disabled; access decisions are unaffected either way.
	var influxClient *influxdb.Client
	var telemetry node.TelemetrySink
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
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Scan staging cache with its expiry sweeper
	stage := scanstage.NewCache(log)
	stage.Start()
	defer stage.Stop()

	// Decision pipeline
	resolver := access.NewResolver(keyRepo, nodeRepo, permRepo, log)
	tracker := node.NewTracker(nodeRepo, telemetry, log)

	// The hub is created up front so the gateway can broadcast events
	// before the API server starts; main owns its lifecycle.
	hub := api.NewHub(log)
	go hub.Run(ctx)

	// Device gateway
	gw := gateway.New(gateway.Config{
		Client:    mqttClient,
		Namespace: cfg.MQTT.Namespace,
		QoS:       byte(cfg.MQTT.QoS),
		Resolver:  resolver,
		Tracker:   tracker,
		Stage:     stage,
		Ledger:    ledgerRepo,
		Events:    hub,
		Logger:    log,
	})
	gw.Start()
	log.Info("gateway started", "namespace", cfg.MQTT.Namespace)

	// Admin API
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Security:    cfg.Security,
		Logger:      log,
		Rooms:       roomRepo,
		Nodes:       nodeRepo,
		Keys:        keyRepo,
		Perms:       permRepo,
		Ledger:      ledgerRepo,
		Stage:       stage,
		Commander:   gw,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Scan cache sweeper
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Keylock Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KEYLOCK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KEYLOCK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when the integration is disabled.
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
