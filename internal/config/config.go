package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Detector DetectorConfig `mapstructure:"detector"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type IngestConfig struct {
	// OnMalformed selects the policy for lines that are not valid JSON:
	// "abort" fails the run, "skip" logs the line index and continues.
	OnMalformed string `mapstructure:"on_malformed"`

	// TokenClassifier selects the token-type heuristic: "first_log" or
	// "transfer_log".
	TokenClassifier string `mapstructure:"token_classifier"`
}

type DetectorConfig struct {
	BlocksPerInterval uint64  `mapstructure:"blocks_per_interval"`
	PumpThresholdEth  float64 `mapstructure:"pump_threshold_eth"`
	WhaleCapEth       float64 `mapstructure:"whale_cap_eth"`
	LookbackIntervals int     `mapstructure:"lookback_intervals"`

	// LookbackMode selects how the detector pairs intervals: "positional"
	// compares by index within a token's observed intervals, "interval"
	// compares by actual interval distance with absent intervals counted
	// as zero volume.
	LookbackMode string `mapstructure:"lookback_mode"`
}

type AnomalyConfig struct {
	Contamination float64 `mapstructure:"contamination"`
}

type DatabaseConfig struct {
	// URL enables the Postgres result sink when non-empty.
	URL string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file with environment
// overrides (PUMPWATCH_ prefix). An empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PUMPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ingest.on_malformed", "abort")
	v.SetDefault("ingest.token_classifier", "first_log")
	v.SetDefault("detector.blocks_per_interval", 50)
	v.SetDefault("detector.pump_threshold_eth", 2500.0)
	v.SetDefault("detector.whale_cap_eth", 500.0)
	v.SetDefault("detector.lookback_intervals", 3)
	v.SetDefault("detector.lookback_mode", "positional")
	v.SetDefault("anomaly.contamination", 0.01)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects parameter values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Detector.BlocksPerInterval == 0 {
		return fmt.Errorf("invalid configuration: detector.blocks_per_interval must be > 0")
	}
	if c.Detector.LookbackIntervals < 1 {
		return fmt.Errorf("invalid configuration: detector.lookback_intervals must be >= 1")
	}
	if c.Detector.PumpThresholdEth < 0 {
		return fmt.Errorf("invalid configuration: detector.pump_threshold_eth must be >= 0")
	}
	if c.Detector.WhaleCapEth < 0 {
		return fmt.Errorf("invalid configuration: detector.whale_cap_eth must be >= 0")
	}
	switch c.Detector.LookbackMode {
	case "positional", "interval":
	default:
		return fmt.Errorf("invalid configuration: unknown detector.lookback_mode %q", c.Detector.LookbackMode)
	}
	switch c.Ingest.OnMalformed {
	case "abort", "skip":
	default:
		return fmt.Errorf("invalid configuration: unknown ingest.on_malformed %q", c.Ingest.OnMalformed)
	}
	switch c.Ingest.TokenClassifier {
	case "first_log", "transfer_log":
	default:
		return fmt.Errorf("invalid configuration: unknown ingest.token_classifier %q", c.Ingest.TokenClassifier)
	}
	if c.Anomaly.Contamination < 0 || c.Anomaly.Contamination > 0.5 {
		return fmt.Errorf("invalid configuration: anomaly.contamination must be in [0, 0.5]")
	}
	return nil
}
