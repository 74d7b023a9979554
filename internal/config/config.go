// YAML config loader with CUE validation integration
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE []byte

// ErrInvalid wraps every schema or semantic validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Output formats for the report on stdout.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTUI  = "tui"
)

// LinkConfig describes the telemetry socket.
type LinkConfig struct {
	Listen      string        `yaml:"listen"`
	Remote      string        `yaml:"remote"`
	Broadcast   bool          `yaml:"broadcast"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// GreptimeConfig enables the GreptimeDB sink when Endpoint is set.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
}

// NATSConfig enables the NATS sink when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// OutputConfig selects the report sinks.
type OutputConfig struct {
	Format   string         `yaml:"format"`
	File     string         `yaml:"file"`
	SQLite   string         `yaml:"sqlite"`
	Greptime GreptimeConfig `yaml:"greptime"`
	NATS     NATSConfig     `yaml:"nats"`
}

// AdminConfig enables the status server when Addr is set.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// SimulationConfig points at a fleet scenario to run in-process.
type SimulationConfig struct {
	Scenario string `yaml:"scenario"`
}

// Config is the root configuration of a verification run.
type Config struct {
	LogLevel        string           `yaml:"log_level"`
	LogFile         string           `yaml:"log_file"`
	Manifest        string           `yaml:"manifest"`
	Devices         []uint8          `yaml:"devices"`
	RequesterID     uint8            `yaml:"requester_id"`
	TargetComponent uint8            `yaml:"target_component"`
	Provider        string           `yaml:"provider"`
	RequestDelay    time.Duration    `yaml:"request_delay"`
	RoundDelay      time.Duration    `yaml:"round_delay"`
	Timeout         time.Duration    `yaml:"timeout"`
	Tolerance       float64          `yaml:"tolerance"`
	Link            LinkConfig       `yaml:"link"`
	Output          OutputConfig     `yaml:"output"`
	Admin           AdminConfig      `yaml:"admin"`
	Simulation      SimulationConfig `yaml:"simulation"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		Manifest:        "params.txt",
		Devices:         []uint8{2, 4},
		RequesterID:     255,
		TargetComponent: 1,
		Provider:        "A/P",
		RequestDelay:    10 * time.Millisecond,
		RoundDelay:      2 * time.Second,
		Timeout:         6 * time.Second,
		Tolerance:       0.01,
		Link: LinkConfig{
			Listen:      "0.0.0.0:14550",
			Remote:      "192.168.90.255:14550",
			Broadcast:   true,
			ReadTimeout: 250 * time.Millisecond,
		},
		Output: OutputConfig{
			Format:   FormatText,
			Greptime: GreptimeConfig{Database: "public"},
			NATS:     NATSConfig{SubjectPrefix: "paramcheck"},
		},
	}
}

// Load reads a YAML config, validates it against the CUE schema and overlays it
// on Default. An empty schemaPath uses the built-in schema.
func Load(configPath, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	schema := schemaCUE
	if schemaPath != "" {
		if schema, err = os.ReadFile(schemaPath); err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	if err := ValidateWithCue(configPath, data, schema); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateWithCue checks YAML data against the #Config definition in schema.
func ValidateWithCue(filename string, data, schema []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	ctx := cuecontext.New()

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	configVal := ctx.BuildFile(file)
	if err := configVal.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	schemaVal := ctx.CompileBytes(schema)
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", err)
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("CUE schema has no #Config definition")
	}

	final := def.Unify(configVal)
	if err := final.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ApplyEnv lets the environment point the sinks at services.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Output.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_DATABASE"); v != "" {
		c.Output.Greptime.Database = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Output.NATS.URL = v
	}
}

// Validate checks values the schema cannot express or that flags may have changed.
func (c *Config) Validate() error {
	var errs []error
	if c.Manifest == "" {
		errs = append(errs, errors.New("manifest path is empty"))
	}
	if len(c.Devices) == 0 {
		errs = append(errs, errors.New("no devices configured"))
	}
	for _, d := range c.Devices {
		if d == 0 {
			errs = append(errs, errors.New("device id 0 is reserved"))
			break
		}
	}
	if c.Provider == "" {
		errs = append(errs, errors.New("provider is empty"))
	}
	if c.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("request_delay %s is negative", c.RequestDelay))
	}
	if c.RoundDelay <= 0 {
		errs = append(errs, fmt.Errorf("round_delay %s must be positive", c.RoundDelay))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %s must be positive", c.Timeout))
	}
	if c.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance %g must be positive", c.Tolerance))
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatTUI:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}
	if c.Link.Listen == "" && c.Simulation.Scenario == "" {
		errs = append(errs, errors.New("link.listen is empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
