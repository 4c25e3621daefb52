package config

import (
	"errors"
	"fmt"
	"time"
)

// Parser backends.
const (
	ParserProcess = "process"
	ParserMemory  = "memory"
)

// Transport types.
const (
	TransportStub    = "stub"
	TransportRedis   = "redis"
	TransportWebhook = "webhook"
	TransportNATS    = "nats"
	TransportLode    = "lode"
)

// Archive backends.
const (
	ArchiveFS = "fs"
	ArchiveS3 = "s3"
)

// Config represents a vpd.yaml configuration file.
// All values are optional; CLI flags override them.
type Config struct {
	SystemConfig string          `yaml:"system_config"`
	Parser       ParserConfig    `yaml:"parser"`
	Timers       TimersConfig    `yaml:"timers"`
	Workers      WorkersConfig   `yaml:"workers"`
	Transport    TransportConfig `yaml:"transport"`
	Archive      ArchiveConfig   `yaml:"archive"`
	API          APIConfig       `yaml:"api"`
	Log          LogConfig       `yaml:"log"`
}

// ParserConfig selects how EEPROMs are read and written.
type ParserConfig struct {
	// Backend is process or memory (default process).
	Backend string   `yaml:"backend"`
	Path    string   `yaml:"path"`
	Args    []string `yaml:"args,omitempty"`
	Timeout Duration `yaml:"timeout"`
	// Images is a YAML image file loaded by the memory backend.
	Images string `yaml:"images,omitempty"`
}

// TimersConfig holds collection timer intervals.
type TimersConfig struct {
	CollectionPoll       Duration `yaml:"collection_poll"`
	SystemVPDPoll        Duration `yaml:"system_vpd_poll"`
	SystemVPDMaxAttempts int      `yaml:"system_vpd_max_attempts"`
}

// WorkersConfig bounds collection concurrency.
type WorkersConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	// CollectOnStart defaults to true.
	CollectOnStart *bool `yaml:"collect_on_start,omitempty"`
}

// TransportConfig selects where fault records go.
type TransportConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	Subject   string            `yaml:"subject,omitempty"`
	Codec     string            `yaml:"codec,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
	QueueSize int               `yaml:"queue_size,omitempty"`
}

// ArchiveConfig holds Lode fault archive storage. An empty backend
// disables archiving unless the transport type is lode.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// APIConfig holds the request surface listen address.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "2s", "500ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// CollectOnStart reports whether bring-up collection is enabled.
func (c *Config) CollectOnStart() bool {
	return c.Workers.CollectOnStart == nil || *c.Workers.CollectOnStart
}

// ArchiveEnabled reports whether fault records are archived to Lode.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Backend != "" || c.Transport.Type == TransportLode
}

// Validate checks enumerated values and ranges. Missing values are fine;
// the components apply their own defaults.
func (c *Config) Validate() error {
	var errs []error

	switch c.Parser.Backend {
	case "", ParserProcess, ParserMemory:
	default:
		errs = append(errs, fmt.Errorf("parser.backend: unknown backend %q (want process or memory)", c.Parser.Backend))
	}
	switch c.Transport.Type {
	case "", TransportStub, TransportRedis, TransportWebhook, TransportNATS, TransportLode:
	default:
		errs = append(errs, fmt.Errorf("transport.type: unknown type %q", c.Transport.Type))
	}
	switch c.Archive.Backend {
	case "", ArchiveFS, ArchiveS3:
	default:
		errs = append(errs, fmt.Errorf("archive.backend: unknown backend %q (want fs or s3)", c.Archive.Backend))
	}
	if c.Archive.Backend != "" && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive.path: required when archive.backend is set"))
	}
	if c.Timers.SystemVPDMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("timers.system_vpd_max_attempts: must be >= 0, got %d", c.Timers.SystemVPDMaxAttempts))
	}
	if c.Workers.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("workers.max_concurrent: must be >= 0, got %d", c.Workers.MaxConcurrent))
	}
	if c.Transport.Retries != nil && *c.Transport.Retries < 0 {
		errs = append(errs, fmt.Errorf("transport.retries: must be >= 0, got %d", *c.Transport.Retries))
	}
	return errors.Join(errs...)
}
