// Hub Core - Home Integration Hub
//
// This is the main entry point for the Hub Core daemon. Hub Core pairs
// consumer devices and cloud services into one hub:
//   - Local-first device control with cloud fallback
//   - Config-entry lifecycle with background setup retry
//   - REST + WebSocket API for user interfaces
//   - MQTT state mirroring and InfluxDB history
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Lash-L/hubcore/migrations"

	"github.com/Lash-L/hubcore/internal/api"
	"github.com/Lash-L/hubcore/internal/entity"
	"github.com/Lash-L/hubcore/internal/entry"
	"github.com/Lash-L/hubcore/internal/flow"
	"github.com/Lash-L/hubcore/internal/infrastructure/config"
	"github.com/Lash-L/hubcore/internal/infrastructure/database"
	"github.com/Lash-L/hubcore/internal/infrastructure/influxdb"
	"github.com/Lash-L/hubcore/internal/infrastructure/logging"
	"github.com/Lash-L/hubcore/internal/infrastructure/mqtt"
	"github.com/Lash-L/hubcore/internal/integrations/oralb"
	"github.com/Lash-L/hubcore/internal/integrations/roborock"
	"github.com/Lash-L/hubcore/internal/integrations/southernco"
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
	log.Info("starting Hub Core",
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

	// Connect to MQTT broker (optional)
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
	} else {
		log.Info("MQTT disabled")
	}

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

	// Config-entry lifecycle
	entries := entry.NewManager(entry.NewSQLiteRepository(db.DB), cfg.Entries.SetupRetryInterval())
	entries.SetLogger(log)
	defer func() {
		log.Info("unloading config entries")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		entries.Close(shutdownCtx)
	}()

	// Mirror entry lifecycle events onto the bus for external observers
	if mqttClient != nil {
		entries.SetOnStateChange(func(e *entry.Entry, state entry.State) {
			payload, merr := json.Marshal(map[string]any{
				"entry_id": e.ID,
				"title":    e.Title,
				"state":    string(state),
			})
			if merr != nil {
				return
			}
			topic := mqtt.Topics{}.IntegrationEvent(e.Domain)
			if perr := mqttClient.Publish(topic, payload, 0, false); perr != nil {
				log.Debug("publishing entry event failed", "topic", topic, "error", perr)
			}
		})
	}

	// Pairing flows
	flows := flow.NewManager(entries)
	flows.SetLogger(log)

	// WebSocket hub is shared between the API server and the entity
	// registry so state changes reach clients directly.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Entity registry with whatever transports are configured
	var publisher entity.StatePublisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	var metrics entity.MetricWriter
	if influxClient != nil {
		metrics = influxClient
	}
	registry := entity.NewRegistry(publisher, hub, metrics)
	registry.SetLogger(log)

	// Register integrations
	registerIntegrations(cfg, entries, flows, registry, mqttClient, influxClient, log)

	// Set up persisted entries
	if err := entries.SetupAll(ctx); err != nil {
		return fmt.Errorf("setting up config entries: %w", err)
	}
	log.Info("config entries set up")

	// Start API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Flows:       flows,
		Entries:     entries,
		Entities:    registry,
		MQTT:        mqttClient,
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
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Config entries
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Hub Core stopped")
	return nil
}

// registerIntegrations wires every supported integration into the entry
// and flow managers.
func registerIntegrations(
	cfg *config.Config,
	entries *entry.Manager,
	flows *flow.Manager,
	registry *entity.Registry,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	log *logging.Logger,
) {
	// Roborock vacuums
	rr := roborock.New(registry, roborock.Options{
		LocalPort:    cfg.Integrations.Roborock.LocalPort,
		ScanInterval: time.Duration(cfg.Integrations.Roborock.ScanInterval) * time.Second,
	}, log)
	entries.Register(rr)
	flows.Register(roborock.Domain, roborock.NewFlowFactory(cfg.Integrations.Roborock.BaseURL))

	// Southern Company energy accounts
	var sink southernco.StatisticsSink
	if influxClient != nil {
		sink = southernco.NewStatistics(influxClient)
	}
	sc := southernco.New(registry, sink, southernco.Options{
		BaseURL:      cfg.Integrations.SouthernCompany.BaseURL,
		ScanInterval: time.Duration(cfg.Integrations.SouthernCompany.ScanInterval) * time.Minute,
	}, log)
	entries.Register(sc)
	flows.Register(southernco.Domain, southernco.NewFlowFactory(cfg.Integrations.SouthernCompany.BaseURL))

	// Oral-B toothbrushes need an advertisement feed, which arrives over
	// the MQTT bus from scanner proxies.
	if cfg.Integrations.OralB.Enabled {
		if mqttClient == nil {
			log.Warn("oralb integration enabled but MQTT is disabled; skipping")
			return
		}
		source := oralb.NewMQTTSource(mqttClient, log)
		ob := oralb.New(registry, source, log)
		entries.Register(ob)
		flows.Register(oralb.Domain, oralb.NewFlowFactory())
	}
}

// getConfigPath returns the configuration file path.
// Uses HUBCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HUBCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
