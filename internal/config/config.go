// Package config loads service settings from an optional YAML file with
// environment variables layered on top. Environment always wins, so a
// deployment can override any file setting without editing it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts YAML values like "45s" or "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// GISSource describes one external zone catalog to pull from. Kind is
// "arcgis" (FeatureServer layer URL) or "file" (local GeoJSON path).
// Zone type, dwell budget and depth band apply to every zone the source
// yields unless the feature carries its own.
type GISSource struct {
	Name               string   `yaml:"name"`
	Kind               string   `yaml:"kind"`
	URL                string   `yaml:"url"`
	Path               string   `yaml:"path"`
	ZoneType           string   `yaml:"zoneType"`
	MaxDurationMinutes float64  `yaml:"maxDurationMinutes"`
	DepthMin           *float64 `yaml:"depthMin"`
	DepthMax           *float64 `yaml:"depthMax"`
}

type Config struct {
	Addr          string   `yaml:"addr"`
	DatabaseURL   string   `yaml:"databaseURL"`
	Migrate       bool     `yaml:"migrate"`
	MigrationsDir string   `yaml:"migrationsDir"`
	RedisURL      string   `yaml:"redisURL"`
	KafkaBrokers  []string `yaml:"kafkaBrokers"`
	KafkaTopic    string   `yaml:"kafkaTopic"`
	KafkaEvents   string   `yaml:"kafkaEventsTopic"`
	KafkaGroup    string   `yaml:"kafkaGroup"`

	WarningRatio  float64  `yaml:"warningRatio"`
	SweepInterval Duration `yaml:"sweepInterval"`
	RetentionDays int      `yaml:"retentionDays"`

	ZoneFile        string      `yaml:"zoneFile"`
	GISSyncInterval Duration    `yaml:"gisSyncInterval"`
	GISSources      []GISSource `yaml:"gisSources"`

	RateRPS   float64 `yaml:"rateRPS"`
	RateBurst int     `yaml:"rateBurst"`
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		Migrate:         true,
		MigrationsDir:   "db/migrations",
		KafkaTopic:      "auv.telemetry",
		KafkaEvents:     "auv.compliance",
		KafkaGroup:      "seaguard-compliance",
		WarningRatio:    0.8,
		SweepInterval:   Duration(60 * time.Second),
		RetentionDays:   90,
		GISSyncInterval: Duration(15 * time.Minute),
		RateRPS:         50,
		RateBurst:       100,
	}
}

// Load reads CONFIG_FILE (or ./config.yaml when present) and overlays the
// environment. A missing default file is fine; a missing CONFIG_FILE is not.
func Load() (Config, error) {
	cfg := defaults()
	path := os.Getenv("CONFIG_FILE")
	required := path != ""
	if path == "" {
		path = "config.yaml"
	}
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if required {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	c.Addr = getenv("ADDR", c.Addr)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.Migrate = getenvBool("DB_MIGRATE", c.Migrate)
	c.MigrationsDir = getenv("DB_MIGRATIONS_DIR", c.MigrationsDir)
	c.RedisURL = getenv("REDIS_URL", c.RedisURL)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)
	c.KafkaEvents = getenv("KAFKA_EVENTS_TOPIC", c.KafkaEvents)
	c.KafkaGroup = getenv("KAFKA_GROUP", c.KafkaGroup)
	c.WarningRatio = getenvFloat("WARNING_RATIO", c.WarningRatio)
	c.SweepInterval = Duration(getenvDuration("SWEEP_INTERVAL", c.SweepInterval.Std()))
	c.RetentionDays = getenvInt("RETENTION_DAYS", c.RetentionDays)
	c.ZoneFile = getenv("ZONE_FILE", c.ZoneFile)
	c.GISSyncInterval = Duration(getenvDuration("GIS_SYNC_INTERVAL", c.GISSyncInterval.Std()))
	c.RateRPS = getenvFloat("RATE_RPS", c.RateRPS)
	c.RateBurst = getenvInt("RATE_BURST", c.RateBurst)
}

func (c *Config) validate() error {
	if c.WarningRatio <= 0 || c.WarningRatio >= 1 {
		return fmt.Errorf("warningRatio must be in (0,1), got %v", c.WarningRatio)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays must not be negative, got %d", c.RetentionDays)
	}
	for i, s := range c.GISSources {
		switch s.Kind {
		case "arcgis":
			if s.URL == "" {
				return fmt.Errorf("gisSources[%d] (%s): arcgis source needs url", i, s.Name)
			}
		case "file":
			if s.Path == "" {
				return fmt.Errorf("gisSources[%d] (%s): file source needs path", i, s.Name)
			}
		default:
			return fmt.Errorf("gisSources[%d] (%s): unknown kind %q", i, s.Name, s.Kind)
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v != "false" && v != "0" && v != "no"
}
