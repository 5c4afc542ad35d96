package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can carry "10s" style values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// GeneratorKind selects which narrative generator the composer uses.
type GeneratorKind string

const (
	GeneratorTemplate GeneratorKind = "template"
	GeneratorOpenAI   GeneratorKind = "openai"
)

// OpenAI holds settings for the live narrative generator. The API key comes
// from the environment, never from the config file.
type OpenAI struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

// Archive holds snapshot archive settings. An empty bucket disables
// archiving.
type Archive struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Config is the engine configuration.
type Config struct {
	RetentionDays int           `yaml:"retention_days"`
	HalfLifeDays  int           `yaml:"half_life_days"`
	TopK          int           `yaml:"top_k"`
	MergePolicy   string        `yaml:"merge_policy"`
	IngestTimeout Duration      `yaml:"ingest_timeout"`
	Generator     GeneratorKind `yaml:"generator"`
	OpenAI        OpenAI        `yaml:"openai"`
	DatabaseURL   string        `yaml:"database_url"`
	Archive       Archive       `yaml:"archive"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		RetentionDays: 90,
		HalfLifeDays:  30,
		TopK:          5,
		MergePolicy:   "max",
		IngestTimeout: Duration(10 * time.Second),
		Generator:     GeneratorTemplate,
	}
}

// Load reads a YAML config file, fills in defaults, applies environment
// overrides and validates the result. An empty path yields the defaults plus
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("POWERMAP_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("POWERMAP_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("POWERMAP_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
}

// Retention returns the retention window as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// HalfLife returns the decay half-life as a duration.
func (c Config) HalfLife() time.Duration {
	return time.Duration(c.HalfLifeDays) * 24 * time.Hour
}

// Validate checks the configuration, collecting every violation.
func (c Config) Validate() error {
	v := newValidator("Config")
	v.positive("RetentionDays", c.RetentionDays)
	v.positive("HalfLifeDays", c.HalfLifeDays)
	v.rangeInt("TopK", c.TopK, 1, 100)
	v.oneOf("MergePolicy", c.MergePolicy, []string{"max", "sum", "manual"})
	v.minDuration("IngestTimeout", c.IngestTimeout.Std(), 100*time.Millisecond)
	v.oneOf("Generator", string(c.Generator), []string{string(GeneratorTemplate), string(GeneratorOpenAI)})
	if c.Generator == GeneratorOpenAI {
		v.required("OpenAI.APIKey", c.OpenAI.APIKey)
	}
	return v.result()
}
