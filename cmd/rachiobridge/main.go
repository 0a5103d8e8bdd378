// Rachio Bridge - local control surface for Rachio irrigation controllers.
//
// The bridge keeps a local mirror of the cloud account's controllers and
// zones, exposes them over a LAN REST/WebSocket API and MQTT, and keeps
// the mirror fresh through periodic reconciliation plus cloud webhook
// pushes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/quietlawn/rachio-bridge/migrations"

	"github.com/quietlawn/rachio-bridge/internal/api"
	"github.com/quietlawn/rachio-bridge/internal/bridge"
	"github.com/quietlawn/rachio-bridge/internal/history"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/config"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/database"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/influxdb"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/logging"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/mqtt"
	"github.com/quietlawn/rachio-bridge/internal/rachio"
	"github.com/quietlawn/rachio-bridge/internal/reconcile"
	"github.com/quietlawn/rachio-bridge/internal/webhook"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Rachio Bridge",
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

	// Event history: persistent log of webhook events and outcomes.
	// The recorder buffers writes so state observers never block on SQLite.
	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo, log)
	defer func() {
		log.Info("draining history recorder")
		recorder.Close()
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var publisher *mqtt.Publisher
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

		// Mirrors entity state onto retained topics. The store is wired
		// in below, after the dispatcher exists.
		publisher = mqtt.NewPublisher(mqttClient, nil, byte(cfg.MQTT.QoS), log)
		defer func() {
			log.Info("draining MQTT publisher")
			publisher.Close()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry *influxdb.Telemetry
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

		telemetry = influxdb.NewTelemetry(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, created ahead of the server so it can observe state
	// changes; injected into the API server below.
	hub := api.NewHub(cfg.WebSocket, log)

	// Assemble the observer chain. The dispatcher fans out every accepted
	// change to these while holding the store lock; all of them either
	// return immediately or hand off to their own worker.
	observers := []bridge.Observer{recorder, hub}
	if publisher != nil {
		observers = append(observers, publisher)
	}
	if telemetry != nil {
		observers = append(observers, telemetry)
	}
	dispatcher := bridge.NewDispatcher(observers...)

	// Cloud client and account resolution
	cloud, err := rachio.NewClient(cfg.Rachio)
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}
	cloud.SetLogger(log)

	// Every real quota observation lands in the api_rate_limit series,
	// whether it came from an API response or an inbound webhook.
	if influxClient != nil {
		cloud.RateLimit().SetOnRecord(func(state rachio.RateLimitState, _ rachio.RateLimitSeverity) {
			influxClient.WriteRateLimit(state.Limit, state.Remaining)
		})
	}

	personID, err := cloud.PersonID(ctx)
	if err != nil {
		return fmt.Errorf("resolving account: %w", err)
	}
	log.Info("cloud account resolved", "person_id", personID)

	// Entity store: the local mirror of the account's controllers/zones
	store := bridge.NewStore(personID, dispatcher)
	if publisher != nil {
		publisher.SetStore(store)
	}

	// Webhook event routing. The external ID authenticates inbound cloud
	// POSTs; deriving it from the API key keeps it stable across restarts
	// without another secret to manage.
	externalID := webhook.DeriveExternalID(cfg.Rachio.APIKey)
	webhookRouter := webhook.NewRouter(store, externalID)

	// Register cloud webhooks for each discovered controller
	var onDiscovered func(ctx context.Context, deviceCloudID string)
	if cfg.Webhook.Enabled {
		callbackURL := cfg.Webhook.CallbackURL
		clearAll := cfg.Webhook.ClearAllCallbacks
		onDiscovered = func(ctx context.Context, deviceCloudID string) {
			if hookErr := cloud.EnsureWebhook(ctx, deviceCloudID, callbackURL, externalID, clearAll); hookErr != nil {
				log.Error("webhook registration failed",
					"device_cloud_id", deviceCloudID,
					"error", hookErr,
				)
				return
			}
			log.Info("webhook registered", "device_cloud_id", deviceCloudID)
		}
	} else {
		log.Info("webhook registration disabled, relying on polling only")
	}

	// Reconciliation loop: initial inventory pull, then periodic refresh
	reconciler, err := reconcile.New(reconcile.Deps{
		Client:             cloud,
		Store:              store,
		Dispatcher:         dispatcher,
		PersonID:           personID,
		Interval:           time.Duration(cfg.Rachio.PollingInterval) * time.Second,
		OnDeviceDiscovered: onDiscovered,
		Logger:             log,
	})
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}
	reconciler.Start(ctx)
	defer func() {
		log.Info("stopping reconciler")
		reconciler.Close()
	}()
	log.Info("reconciler started", "interval_seconds", cfg.Rachio.PollingInterval)

	// HTTP server: REST API, webhook endpoint, WebSocket, image proxy
	server, err := api.New(api.Deps{
		Config:         cfg.API,
		WS:             cfg.WebSocket,
		ImageProxy:     cfg.ImageProxy,
		Logger:         log,
		Store:          store,
		Cloud:          cloud,
		Webhooks:       webhookRouter,
		ExternalID:     externalID,
		Sync:           reconciler,
		History:        historyRepo,
		Recorder:       recorder,
		MQTT:           mqttClient,
		DB:             db,
		DefaultRuntime: cfg.Rachio.DefaultRuntime,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	server.SetHub(hub)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server and
	// reconciler stop first so no new changes flow, then the publisher
	// and recorder drain their queues, then the infrastructure
	// connections close.

	log.Info("Rachio Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RACHIOBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RACHIOBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
