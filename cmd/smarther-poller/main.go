// Command smarther-poller discovers the chronothermostat modules of a
// Legrand/BTicino account and polls each of them until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/berry-13/bticino-gateway-ha/coordinator"
	"github.com/berry-13/bticino-gateway-ha/observability"
	"github.com/berry-13/bticino-gateway-ha/smarther"
)

var configFile = flag.String("config", "", "Path to the configuration file (optional).")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := buildZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := observability.NewZapLogger(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		zapLogger.Fatal("poller exited with error", zap.Error(err))
	}
}

type config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	BaseURL      string
	ScanInterval time.Duration
	RateLimit    int
	LogLevel     string

	// Presentation-only settings, accepted and passed through to consumers.
	TemperatureStep    float64
	EnableExtraSensors bool
}

func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetDefault("scan_interval", "60s")
	v.SetDefault("rate_limit_per_minute", smarther.DefaultRateLimitPerMinute)
	v.SetDefault("log_level", "info")
	v.SetDefault("temperature_step", 0.5)
	v.SetDefault("enable_extra_sensors", true)

	v.SetEnvPrefix("SMARTHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("smarther-poller")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/smarther-poller")
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional when env vars carry the credentials.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	return &config{
		ClientID:           v.GetString("client_id"),
		ClientSecret:       v.GetString("client_secret"),
		RefreshToken:       v.GetString("refresh_token"),
		BaseURL:            v.GetString("base_url"),
		ScanInterval:       v.GetDuration("scan_interval"),
		RateLimit:          v.GetInt("rate_limit_per_minute"),
		LogLevel:           v.GetString("log_level"),
		TemperatureStep:    v.GetFloat64("temperature_step"),
		EnableExtraSensors: v.GetBool("enable_extra_sensors"),
	}, nil
}

func buildZapLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = lvl
	return zapCfg.Build()
}

func run(ctx context.Context, cfg *config, logger observability.Logger) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return errors.New("client_id, client_secret and refresh_token are required " +
			"(config file or SMARTHER_* environment variables)")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     smarther.OAuth2Endpoint(),
		Scopes:       smarther.OAuth2Scopes,
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	client, err := smarther.NewWithConfig(&smarther.ClientConfig{
		Tokens:             smarther.NewOAuth2TokenProvider(tokenSource),
		BaseURL:            cfg.BaseURL,
		RateLimitPerMinute: cfg.RateLimit,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	registry := coordinator.NewRegistry()
	if err := discover(ctx, client, registry, cfg, logger); err != nil {
		return err
	}
	if registry.Len() == 0 {
		logger.Warn("no chronothermostat modules found in any plant")
		return nil
	}

	for _, c := range registry.All() {
		c.Start(ctx)
		logger.Info("polling started",
			observability.Field{Key: "module_name", Value: c.ModuleName()},
			observability.Field{Key: "interval", Value: c.UpdateInterval()},
		)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	registry.StopAll()
	return nil
}

// discover enumerates plants and registers one coordinator per
// chronothermostat module.
func discover(ctx context.Context, client *smarther.Client, registry *coordinator.Registry, cfg *config, logger observability.Logger) error {
	plants, err := client.ListPlants(ctx)
	if err != nil {
		return err
	}

	for _, plant := range plants {
		topology, err := client.GetPlantTopology(ctx, plant.ID)
		if err != nil {
			logger.Warn("failed to fetch plant topology, skipping plant",
				observability.Field{Key: "plant_id", Value: plant.ID},
				observability.Field{Key: "error", Value: err.Error()},
			)
			continue
		}

		for _, module := range topology.Modules {
			if module.Device != smarther.DeviceTypeChronothermostat {
				continue
			}

			c, err := coordinator.New(coordinator.Config{
				API:            client,
				PlantID:        plant.ID,
				ModuleID:       module.ID,
				ModuleName:     module.Name,
				UpdateInterval: cfg.ScanInterval,
				Logger:         logger,
				OnAuthError: func(err error) {
					logger.Error("re-authorization required",
						observability.Field{Key: "error", Value: err.Error()},
					)
				},
			})
			if err != nil {
				return err
			}
			if err := registry.Add(c); err != nil {
				return err
			}
		}
	}
	return nil
}
