// Package config loads bioweaver.yaml.
//
// Precedence, lowest first: built-in defaults, the config file, then flags
// the user set explicitly on the command line (applied by the cli package).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when --config is not given.
const DefaultFileName = "bioweaver.yaml"

// Constants for default values.
const (
	DefaultThreads        = 1
	DefaultJobs           = 1
	DefaultInputExtension = "fastq"
	DefaultScriptsDir     = "biobakery_workflows/scripts"
	DefaultCacheDB        = ".bioweaver/tasks.db"
	DefaultLogLevel       = "info"
	DefaultReportFormat   = "pdf"
	DefaultMaxRows        = 20
)

// Databases are the reference databases the workflows need.
type Databases struct {
	Kneaddata  string `yaml:"kneaddata,omitempty"`
	Greengenes string `yaml:"greengenes,omitempty"`
	Silva      string `yaml:"silva,omitempty"`
	RDP        string `yaml:"rdp,omitempty"`
}

// Report configures report generation.
type Report struct {
	Format  string `yaml:"format"`
	MaxRows int    `yaml:"max_rows"`
}

// Config is the resolved configuration.
type Config struct {
	Threads        int       `yaml:"threads"`
	Jobs           int       `yaml:"jobs"`
	InputExtension string    `yaml:"input_extension"`
	ScriptsDir     string    `yaml:"scripts_dir"`
	CacheDB        string    `yaml:"cache_db"` // relative paths resolve under the output folder
	LogLevel       string    `yaml:"log_level"`
	Databases      Databases `yaml:"databases"`
	Report         Report    `yaml:"report"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Threads:        DefaultThreads,
		Jobs:           DefaultJobs,
		InputExtension: DefaultInputExtension,
		ScriptsDir:     DefaultScriptsDir,
		CacheDB:        DefaultCacheDB,
		LogLevel:       DefaultLogLevel,
		Report: Report{
			Format:  DefaultReportFormat,
			MaxRows: DefaultMaxRows,
		},
	}
}

// Load overlays the YAML file at path onto the defaults. With an empty path
// DefaultFileName is tried and its absence is not an error; an explicit path
// that does not exist is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("threads must be >= 1, got %d", c.Threads)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", c.Jobs)
	}
	if c.InputExtension == "" {
		return errors.New("input_extension must not be empty")
	}
	if c.Report.MaxRows < 1 {
		return fmt.Errorf("report.max_rows must be >= 1, got %d", c.Report.MaxRows)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// CachePath resolves the task record database for an output folder.
func (c Config) CachePath(output string) string {
	if filepath.IsAbs(c.CacheDB) {
		return c.CacheDB
	}
	return filepath.Join(output, c.CacheDB)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
