// Haiku Bridge - BigAssFans Haiku Fan Control Bridge
//
// This is the main entry point for the Haiku bridge daemon. The bridge
// speaks the fan controller's UDP line protocol on one side and exposes
// two control surfaces on the other:
//   - A synchronous REST API for request/response control
//   - An MQTT surface with retained state topics and command ingress,
//     suitable for home-automation platforms
//
// Fan state is cached in memory and refreshed by a background poller,
// so reads stay cheap and changes made outside the bridge (the fan's
// remote, the wall control, the vendor app) still surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haikubridge/haikubridge/internal/api"
	"github.com/haikubridge/haikubridge/internal/bridge"
	"github.com/haikubridge/haikubridge/internal/infrastructure/config"
	"github.com/haikubridge/haikubridge/internal/infrastructure/logging"
	"github.com/haikubridge/haikubridge/internal/infrastructure/mqtt"
	"github.com/haikubridge/haikubridge/internal/senseme"
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

var configFlag = flag.String("config", "", "path to the configuration file")

func main() {
	flag.Parse()

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
	log.Info("starting Haiku bridge",
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

	// Open the fan session. A fan that is off the network at startup is
	// a warning, not a failure: the session reconnects lazily on the
	// next operation, and the poller keeps retrying.
	session := senseme.NewSession(senseme.Config{
		Host: cfg.Fan.Host,
		Port: cfg.Fan.Port,
		Name: cfg.Fan.Name,
	})
	session.SetLogger(log)
	if connectErr := session.Connect(); connectErr != nil {
		log.Warn("fan not reachable at startup, will retry on demand", "error", connectErr)
	} else {
		log.Info("fan session established",
			"host", cfg.Fan.Host,
			"port", cfg.Fan.Port,
			"name", session.Name(),
		)
	}
	defer func() {
		log.Info("closing fan session")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing fan session", "error", closeErr)
		}
	}()

	// State cache fills on the first poll cycle or command read-back
	cache := bridge.NewStateCache()

	// Connect to MQTT broker. A broker that is down is degraded mode,
	// not a startup failure: the client retries in the background and
	// the REST API keeps working.
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

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT client started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"connected", mqttClient.IsConnected(),
	)

	// Publisher mirrors state snapshots to retained MQTT topics
	publisher, err := bridge.NewPublisher(mqttClient, mqttClient.Topics())
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	publisher.SetLogger(log)

	// Dispatcher serializes write intents through the fan session
	dispatcher, err := bridge.NewDispatcher(bridge.DispatcherConfig{
		Device:    session,
		Cache:     cache,
		Publisher: publisher,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	dispatcher.SetLogger(log)

	// Command ingress subscribes to the {base}/{field}/set topics
	commands, err := bridge.NewCommands(bridge.CommandsConfig{
		Subscriber: mqttClient,
		Dispatcher: dispatcher,
		Topics:     mqttClient.Topics(),
		QoS:        byte(cfg.MQTT.QoS),
	})
	if err != nil {
		return fmt.Errorf("creating command ingress: %w", err)
	}
	commands.SetLogger(log)
	if err := commands.Start(); err != nil {
		return fmt.Errorf("starting command ingress: %w", err)
	}
	defer func() {
		log.Info("stopping command ingress")
		commands.Stop()
	}()

	// Start the background poller (if enabled)
	if cfg.Poll.Enabled {
		poller, pollErr := bridge.NewPoller(bridge.PollerConfig{
			Device:    session,
			Cache:     cache,
			Publisher: publisher,
			Interval:  cfg.Poll.GetInterval(),
		})
		if pollErr != nil {
			return fmt.Errorf("creating poller: %w", pollErr)
		}
		poller.SetLogger(log)
		poller.Start(ctx)
		defer func() {
			log.Info("stopping poller")
			poller.Stop()
		}()
		log.Info("poller started", "interval", cfg.Poll.GetInterval())
	} else {
		log.Info("polling disabled")
	}

	// Start the REST API server
	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log,
		Device:     session,
		Dispatcher: dispatcher,
		Cache:      cache,
		Broker:     mqttClient,
		Version:    version,
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
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Verify startup health
	if err := healthCheck(ctx, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		log.Warn("MQTT broker not reachable yet, running degraded", "error", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Poller (if enabled)
	// 3. Command ingress
	// 4. MQTT (publishes graceful offline status)
	// 5. Fan session

	log.Info("Haiku bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Precedence: --config flag, HAIKU_CONFIG environment variable, default.
func getConfigPath() string {
	if *configFlag != "" {
		return *configFlag
	}
	if path := os.Getenv("HAIKU_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the bridge's own surfaces are up. The MQTT
// broker and the fan are deliberately excluded: both are external, and
// either being down is a degraded mode, not a startup failure.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, apiServer *api.Server) error {
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
