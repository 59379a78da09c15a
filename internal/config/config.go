package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
)

type Config struct {
	Server              ServerConfig                  `yaml:"server"`
	Database            DatabaseConfig                `yaml:"database"`
	Hermes              HermesConfig                  `yaml:"hermes"`
	Engine              EngineConfig                  `yaml:"engine"`
	Eligibility         EligibilityConfig             `yaml:"eligibility"`
	Fields              []FieldConfig                 `yaml:"fields" validate:"dive"`
	CategoricalMappings map[string]map[string]float64 `yaml:"categorical_mappings"`
	Report              ReportConfig                  `yaml:"report"`
	Evaluation          EvaluationConfig              `yaml:"evaluation"`
	Logging             LoggingConfig                 `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" validate:"min=1,max=65535"`
	MetricsPort int    `yaml:"metrics_port" validate:"min=1,max=65535"`
	AdminToken  string `yaml:"admin_token"`
	RateLimit   int    `yaml:"rate_limit" validate:"gte=0"`
}

// DatabaseConfig selects the store backend. The sqlite driver takes a file
// path (or ":memory:") as URL.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	URL    string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type EngineConfig struct {
	CostEpsilon          float64 `yaml:"cost_epsilon" validate:"gt=0"`
	DominanceSentinel    float64 `yaml:"dominance_sentinel" validate:"gt=1"`
	ConsistencyThreshold float64 `yaml:"consistency_threshold" validate:"gte=0"`
}

type EligibilityConfig struct {
	Field        string `yaml:"field" validate:"required"`
	ReservedCode int    `yaml:"reserved_code"`
	MaxAge       int    `yaml:"max_age" validate:"gt=0"`
}

type FieldConfig struct {
	Field    string   `yaml:"field" validate:"required"`
	Keywords []string `yaml:"keywords"`
	Kind     string   `yaml:"kind" validate:"oneof=benefit cost"`
}

// ReportConfig holds display labels for coded fields: field -> code -> label.
type ReportConfig struct {
	Labels map[string]map[string]string `yaml:"labels"`
	TopN   int                          `yaml:"top_n" validate:"gte=0"`
}

type EvaluationConfig struct {
	PairwiseName string `yaml:"pairwise_name" validate:"required"`
	ArchiveOnRun bool   `yaml:"archive_on_run"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// NewLogger builds a slog logger writing to w at the configured level and
// format. Unknown levels fall back to info.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// DefaultLabels returns the report labels for the coded applicant fields.
func DefaultLabels() map[string]map[string]string {
	return map[string]map[string]string{
		decision.FieldAge: {
			"1": "<25", "2": "25-35", "3": "36-50", "4": ">50",
		},
		decision.FieldIncome: {
			"1": "<2jt", "2": "2-5jt", "3": "5-10jt", "4": ">10jt",
		},
		decision.FieldJob: {
			"1": "Mahasiswa", "2": "Wiraswasta/Petani", "3": "Karyawan", "4": "PNS",
		},
		decision.FieldCollateral: {
			"1": "-", "2": "BPKB Motor", "3": "BPKB Mobil", "4": "Sertifikat",
		},
	}
}

func Load(path string) (*Config, error) {
	defaults := decision.DefaultOptions()
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "kredit.db",
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Engine: EngineConfig{
			CostEpsilon:          defaults.CostEpsilon,
			DominanceSentinel:    defaults.DominanceSentinel,
			ConsistencyThreshold: defaults.ConsistencyThreshold,
		},
		Eligibility: EligibilityConfig{
			Field:        defaults.Eligibility.Field,
			ReservedCode: defaults.Eligibility.ReservedCode,
			MaxAge:       defaults.Eligibility.MaxAge,
		},
		Report: ReportConfig{
			Labels: DefaultLabels(),
			TopN:   5,
		},
		Evaluation: EvaluationConfig{
			PairwiseName: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EngineOptions converts the engine, eligibility, field and mapping sections
// into scorer options. Empty sections keep the built-in defaults.
func (c *Config) EngineOptions() decision.Options {
	opts := decision.DefaultOptions()
	opts.CostEpsilon = c.Engine.CostEpsilon
	opts.DominanceSentinel = c.Engine.DominanceSentinel
	opts.ConsistencyThreshold = c.Engine.ConsistencyThreshold
	opts.Eligibility = decision.EligibilityRule{
		Field:        c.Eligibility.Field,
		ReservedCode: c.Eligibility.ReservedCode,
		MaxAge:       c.Eligibility.MaxAge,
	}
	if len(c.Fields) > 0 {
		table := make(decision.FieldTable, len(c.Fields))
		for i, f := range c.Fields {
			table[i] = decision.FieldRule{Field: f.Field, Keywords: f.Keywords, Kind: decision.Kind(f.Kind)}
		}
		opts.Fields = table
	}
	for field, codes := range c.CategoricalMappings {
		opts.Categorical[field] = codes
	}
	return opts
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KREDIT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("KREDIT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("KREDIT_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("KREDIT_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("KREDIT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("KREDIT_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("KREDIT_CR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.ConsistencyThreshold = f
		}
	}
	if v := os.Getenv("KREDIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KREDIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
