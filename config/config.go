package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/network"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultOutputDir = "."
	DefaultStateFile = "gimme_state.json"
	DefaultRetry     = 3

	// gallery pages of a gallery-of-galleries run are loaded one at a time
	DefaultGalleryJobs = 1
)

// Duration reads Go duration strings like `30s` or `1m30s`.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	value, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %s", text, err)
	}

	*d = Duration(value)

	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Config struct {
	HttpProxy   string   `json:"http_proxy" toml:"http_proxy"`
	JobCount    int      `json:"job_count" toml:"job_count"`
	GalleryJobs int      `json:"gallery_jobs" toml:"gallery_jobs"` // gallery pages loaded at the same time
	RetryCount  int      `json:"retry" toml:"retry"`
	Timeout     Duration `json:"timeout" toml:"timeout"`
	Delay       Duration `json:"delay" toml:"delay"`
	UserAgent   string   `json:"user_agent" toml:"user_agent"`

	OutputDir string `json:"output_dir" toml:"output_dir"`
	RulesFile string `json:"rules_file" toml:"rules_file"`
	State     string `json:"state" toml:"state"`       // JSON file, SQLite file or postgres DSN
	Database  string `json:"database" toml:"database"` // SQLite file of download records

	HeaderFileMap []network.HeaderFilePattern `json:"header_file_map" toml:"header_file_map"`

	ImageFormat string `json:"image_format" toml:"image_format"`
	Zip         bool   `json:"zip" toml:"zip"`
	Render      bool   `json:"render" toml:"render"` // load pages with headless browser
}

// Default returns config used when no config file is given.
func Default() Config {
	return Config{
		RetryCount:  DefaultRetry,
		GalleryJobs: DefaultGalleryJobs,
		Timeout:    -1,
		OutputDir:  DefaultOutputDir,
		State:      DefaultStateFile,
	}
}

// ReadConfigFile reads configuration from JSON or TOML file, format is decided
// by file extension. Relative paths in config are resolved against directory
// of config file.
func ReadConfigFile(filePath string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return c, fmt.Errorf("failed to read config file %s: %s", filePath, err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		err = toml.Unmarshal(data, &c)
	default:
		err = json.Unmarshal(data, &c)
	}

	if err != nil {
		return c, fmt.Errorf("failed to parse config file %s: %s", filePath, err)
	}

	c.resolvePaths(filepath.Dir(filePath))

	return c, nil
}

func (c *Config) resolvePaths(configDir string) {
	c.OutputDir = common.ResolveRelativePath(c.OutputDir, configDir)
	c.RulesFile = common.ResolveRelativePath(c.RulesFile, configDir)
	c.Database = common.ResolveRelativePath(c.Database, configDir)

	if !isDSN(c.State) {
		c.State = common.ResolveRelativePath(c.State, configDir)
	}

	for i := range c.HeaderFileMap {
		c.HeaderFileMap[i].Path = common.ResolveRelativePath(c.HeaderFileMap[i].Path, configDir)
	}
}

// Load reads config file at given path, empty path gives default config.
func Load(filePath string) (Config, error) {
	if filePath == "" {
		return Default(), nil
	}

	return ReadConfigFile(filePath)
}

// CollectorOptions returns HTTP collector settings of this config.
func (c Config) CollectorOptions() network.CollectorOptions {
	return network.CollectorOptions{
		Parallelism: c.JobCount,
		Delay:       time.Duration(c.Delay),
		Timeout:     common.GetDurationOr(time.Duration(c.Timeout), network.DefaultTimeout),
		Proxy:       c.HttpProxy,
		UserAgent:   c.UserAgent,
	}
}

// HeaderSet returns request header lookup built from header file map.
func (c Config) HeaderSet() *network.HeaderSet {
	return network.NewHeaderSet(c.HeaderFileMap)
}

func isDSN(value string) bool {
	return strings.Contains(value, "://")
}
