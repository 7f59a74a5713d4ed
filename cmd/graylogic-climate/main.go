// Gray Logic Climate - climate unit control service
//
// This is the main entry point for the Gray Logic Climate service. It keeps
// an in-memory registry of climate units, sends control commands to the
// upstream climate API with optimistic updates, polls telemetry, runs
// multi-source analyses and pushes every change to presentation clients.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-climate/internal/analysis"
	"github.com/nerrad567/gray-logic-climate/internal/api"
	"github.com/nerrad567/gray-logic-climate/internal/command"
	"github.com/nerrad567/gray-logic-climate/internal/credential"
	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-climate/internal/telemetry"
	"github.com/nerrad567/gray-logic-climate/internal/upstream"
	"github.com/nerrad567/gray-logic-climate/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Climate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Nothing left to log to
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	creds, err := buildCredentials(ctx, cfg, log)
	if err != nil {
		return err
	}
	if creds.db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := creds.db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	httpClient := &http.Client{Timeout: cfg.Upstream.RequestTimeout}
	client, err := upstream.NewClient(cfg.Upstream.BaseURL, creds.provider, httpClient)
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}
	client.SetLogger(log.Component("upstream"))
	weather := upstream.NewWeatherClient(cfg.Upstream.WeatherURL, cfg.Upstream.WeatherAPIKey, cfg.Upstream.WeatherUnits, httpClient)

	units, err := unitConfigs(cfg.Devices.Units)
	if err != nil {
		return err
	}
	multiplier := time.Duration(cfg.Telemetry.StaleMultiplier)
	registry := device.NewRegistry(cfg.Telemetry.PollInterval * multiplier)
	registry.SetLogger(log.Component("registry"))
	registry.SetOutdoorStaleThreshold(cfg.Telemetry.OutdoorInterval * multiplier)
	if loadErr := registry.Load(units); loadErr != nil {
		return fmt.Errorf("loading device registry: %w", loadErr)
	}
	log.Info("device registry initialised", "devices", len(units))

	mqttClient := connectMQTT(cfg, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient := connectInfluxDB(cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	dispatcher := command.NewDispatcher(registry, client, command.Options{
		CommandTimeout: cfg.Upstream.CommandTimeout,
		RetryBackoff:   cfg.Upstream.RetryBackoff,
		MinTemperature: cfg.Devices.MinTemperature,
		MaxTemperature: cfg.Devices.MaxTemperature,
	})
	dispatcher.SetLogger(log.Component("command"))

	poller := telemetry.NewPoller(registry, telemetry.Options{
		FetchTimeout:    cfg.Telemetry.FetchTimeout,
		StaleMultiplier: cfg.Telemetry.StaleMultiplier,
	})
	poller.SetLogger(log.Component("telemetry"))
	sources := telemetrySources(cfg, client, weather)

	orchestrator := analysis.NewOrchestrator(client, registry, cfg.Upstream.AnalysisTimeout)
	orchestrator.SetLogger(log.Component("analysis"))

	deps := api.Deps{
		Config:          cfg.API,
		WS:              cfg.WebSocket,
		Logger:          log.Component("api"),
		Registry:        registry,
		Commands:        recordingCommander{Dispatcher: dispatcher, influx: influxClient},
		Poller:          poller,
		Analysis:        orchestrator,
		Sources:         sources,
		PollInterval:    cfg.Telemetry.PollInterval,
		AnalysisTimeout: cfg.Upstream.AnalysisTimeout,
		Metrics:         promhttp.HandlerFor(metricsRegistry(), promhttp.HandlerOpts{}),
		Checks:          healthChecks(cfg, creds.db, mqttClient, influxClient),
		Version:         version,
	}
	if creds.sessions != nil {
		deps.Sessions = creds.sessions
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	sink := newEventSink(server.Hub(), mqttClient, influxClient, log.Component("events"))
	defer sink.Close() // Flushes queued writes before MQTT and InfluxDB close
	registry.SetOnChange(sink.deviceChanged)
	dispatcher.SetOnFailure(sink.commandFailed)

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Stop producers before the sinks they feed are closed.
	defer func() {
		log.Info("stopping telemetry and command dispatch")
		poller.Close()
		dispatcher.Close()
	}()

	if cfg.Telemetry.AutoStart {
		for _, u := range units {
			if startErr := poller.Start(u.ID, sources(), cfg.Telemetry.PollInterval); startErr != nil {
				log.Warn("auto-start polling failed", "device_id", u.ID, "error", startErr)
			}
		}
		log.Info("telemetry polling started", "devices", len(poller.Active()))
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// credentials is the token source chosen by configuration.
type credentials struct {
	provider credential.Provider
	// sessions is set in static mode; PUT /session writes through it.
	sessions *credential.SessionProvider
	// db is open only when the session is persisted.
	db *database.DB
}

func buildCredentials(ctx context.Context, cfg *config.Config, log *logging.Logger) (credentials, error) {
	logger := log.Component("credential")

	if cfg.Credential.Mode == config.CredentialOAuth2 {
		o := cfg.Credential.OAuth2
		p, err := credential.NewOAuth2Provider(credential.OAuth2Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			TokenURL:     o.TokenURL,
			RefreshToken: o.RefreshToken,
			Scopes:       o.Scopes,
		})
		if err != nil {
			return credentials{}, fmt.Errorf("creating OAuth2 provider: %w", err)
		}
		p.SetLogger(logger)
		log.Info("upstream credentials from OAuth2 refresh grant", "token_url", o.TokenURL)
		return credentials{provider: p}, nil
	}

	var (
		store credential.Store
		db    *database.DB
	)
	if cfg.Credential.PersistSession {
		var err error
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return credentials{}, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // Already failing
			return credentials{}, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("session database ready", "path", db.Path())
		store = credential.NewSQLiteStore(db.DB)
	}

	sessions := credential.NewSessionProvider(cfg.Credential.Token, store)
	sessions.SetLogger(logger)
	if err := sessions.Restore(ctx); err != nil {
		log.Warn("restoring persisted session failed", "error", err)
	}
	return credentials{provider: sessions, sessions: sessions, db: db}, nil
}

// unitConfigs converts configured units. An empty mode means Cool.
func unitConfigs(units []config.UnitConfig) ([]device.UnitConfig, error) {
	out := make([]device.UnitConfig, 0, len(units))
	for _, u := range units {
		mode := device.ModeCool
		if u.Mode != "" {
			m, err := device.ParseMode(u.Mode)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", u.ID, err)
			}
			mode = m
		}
		out = append(out, device.UnitConfig{
			ID:                u.ID,
			Name:              u.Name,
			SystemID:          u.SystemID,
			ZoneID:            u.ZoneID,
			TargetTemperature: u.TargetTemperature,
			Mode:              mode,
			PowerOn:           u.PowerOn,
		})
	}
	return out, nil
}

// telemetrySources returns the source set every subscription starts with.
// Outdoor weather is included once a site location is configured; all
// subscriptions share the one site-wide weather source.
func telemetrySources(cfg *config.Config, client *upstream.Client, weather *upstream.WeatherClient) func() []telemetry.Source {
	loc := cfg.Site.Location
	var outdoor *telemetry.OutdoorWeather
	if loc.Latitude != 0 || loc.Longitude != 0 {
		outdoor = telemetry.NewOutdoorWeather(weather, loc.Latitude, loc.Longitude, cfg.Telemetry.OutdoorInterval)
	}
	return func() []telemetry.Source {
		sources := []telemetry.Source{telemetry.NewIndoorTemperature(client)}
		if cfg.Telemetry.SystemMetrics {
			sources = append(sources, telemetry.NewSystemMetrics(client))
		}
		if outdoor != nil {
			sources = append(sources, outdoor)
		}
		return sources
	}
}

// connectMQTT returns nil when MQTT is disabled or the broker is unreachable.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil
	}
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without event publishing", "error", err)
		return nil
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client
}

// connectInfluxDB returns nil when InfluxDB is disabled or unreachable.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without history", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

// metricsRegistry collects every package's metrics plus the Go runtime.
func metricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	groups := [][]prometheus.Collector{
		api.MetricsCollectors(),
		command.MetricsCollectors(),
		telemetry.MetricsCollectors(),
		analysis.MetricsCollectors(),
		credential.MetricsCollectors(),
		upstream.MetricsCollectors(),
		mqtt.MetricsCollectors(),
		influxdb.MetricsCollectors(),
	}
	for _, group := range groups {
		for _, collector := range group {
			registry.MustRegister(collector)
		}
	}
	return registry
}

// healthChecks covers each enabled dependency. An enabled dependency that
// failed to connect reports as unhealthy.
func healthChecks(cfg *config.Config, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck)
	if db != nil {
		checks["database"] = db.HealthCheck
	}
	if cfg.MQTT.Enabled {
		checks["mqtt"] = func(ctx context.Context) error {
			if mqttClient == nil {
				return mqtt.ErrNotConnected
			}
			return mqttClient.HealthCheck(ctx)
		}
	}
	if cfg.InfluxDB.Enabled {
		checks["influxdb"] = func(ctx context.Context) error {
			if influxClient == nil {
				return influxdb.ErrNotConnected
			}
			return influxClient.HealthCheck(ctx)
		}
	}
	return checks
}
