// Gray Logic Show Core - Playback Execution Core
//
// This is the main entry point for the show core. It hosts the context
// registry and scheduler, drives the tick loop, and exposes the execution
// state to operators over HTTP, WebSocket and MQTT.
//
// Startup order: config, logging, database and migrations, metrics,
// InfluxDB (optional), execution manager, session recorder, MQTT bridge
// (optional), HTTP API (optional), tick loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/api"
	"github.com/nerrad567/gray-logic-showcore/internal/execution"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-showcore/internal/playback"
	"github.com/nerrad567/gray-logic-showcore/internal/remote"
	"github.com/nerrad567/gray-logic-showcore/internal/session"
	"github.com/nerrad567/gray-logic-showcore/migrations"
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

// pruneInterval is how often finished session records are pruned.
const pruneInterval = 24 * time.Hour

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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is linear but long
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Show Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("site_id", cfg.Site.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	sessionRepo := session.NewSQLiteRepository(db.DB)
	promMetrics := metrics.New()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	var series seriesSink
	if influxClient != nil {
		series = influxClient
	}

	// Execution manager
	manager := execution.NewManager(execution.Options{
		Executor: playback.ExecutorOptions{
			EndCheckInterval:  cfg.Playback.EndCheckInterval(),
			StartGuardTimeout: cfg.Playback.StartGuardTimeout(),
			StartGuardPoll:    cfg.Playback.StartGuardPoll(),
			Logger:            log,
		},
		Recorder: tickRecorder(promMetrics, series),
		Logger:   log,
	})
	defer observeSessions(manager, promMetrics, series)()
	defer observeNotices(manager, promMetrics)()

	// Session workers are stopped only after contexts are released, so
	// the final session ends are still recorded.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	recorder := session.NewRecorder(sessionRepo, session.RecorderOptions{Logger: log})
	detachRecorder := recorder.Attach(manager)
	defer detachRecorder()
	startWorker(&workers, func() { _ = recorder.Run(workerCtx) }) //nolint:errcheck // Run only returns nil

	if retention := cfg.Database.SessionRetention(); retention > 0 {
		startWorker(&workers, func() { pruneSessions(workerCtx, sessionRepo, retention, log) })
	}

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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
		bridge := remote.New(manager, mqttClient, remote.Options{
			QoS:    &qos,
			Logger: log,
			OnCommand: func(a execution.Action) {
				promMetrics.IncCommand("mqtt", string(a))
			},
		})
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting remote bridge: %w", startErr)
		}

		// The bridge drains its queue before the MQTT client closes.
		bridgeCtx, stopBridge := context.WithCancel(context.Background())
		bridgeDone := make(chan struct{})
		go func() {
			defer close(bridgeDone)
			_ = bridge.Run(bridgeCtx) //nolint:errcheck // Run only returns nil
		}()
		defer func() {
			bridge.Stop()
			stopBridge()
			<-bridgeDone
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Playback: cfg.Playback,
			Logger:   log,
			Manager:  manager,
			Sessions: sessionRepo,
			Metrics:  promMetrics,
			DB:       db,
			Version:  version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if influxClient != nil {
			deps.InfluxDB = influxClient
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Tick loop. Releasing contexts is deferred after the loop has exited
	// so no Tick runs against a context being closed.
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = manager.RunLoop(ctx, cfg.Playback.TickInterval()) //nolint:errcheck // RunLoop only returns nil
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	<-loopDone
	manager.ReleaseContexts()
	log.Info("contexts released")

	// Deferred calls run in reverse order: API, bridge drain, MQTT,
	// recorder detach, session workers, notice and session observers,
	// InfluxDB, database.
	log.Info("Gray Logic Show Core stopped")
	return nil
}

// loadConfig loads .env, then the YAML config file. The default config
// path may be absent, in which case built-in defaults are used; an
// explicitly configured path must exist.
func loadConfig() (*config.Config, string, error) {
	if err := config.LoadEnvFile(); err != nil {
		return nil, "", fmt.Errorf("loading env file: %w", err)
	}

	configPath, explicit := getConfigPath()
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, configPath, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}

	cfg, err = config.Default()
	if err != nil {
		return nil, "", fmt.Errorf("loading default config: %w", err)
	}
	return cfg, "(defaults)", nil
}

// getConfigPath returns the configuration file path and whether it was set
// explicitly. Uses SHOWCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() (string, bool) {
	if path := os.Getenv("SHOWCORE_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

func startWorker(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
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
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

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

	return nil
}
