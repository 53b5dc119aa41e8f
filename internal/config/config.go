package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrylevesque/scanrelay/internal/upload"
)

// Scanner sources.
const (
	SourceKeyboard = "keyboard"
	SourceDir      = "dir"
	SourceDevice   = "device"
	SourceStdin    = "stdin"
)

// ValidSources lists the scanner sources a station can be built from.
var ValidSources = []string{SourceKeyboard, SourceDir, SourceDevice, SourceStdin}

// Config holds the station and receiver configuration.
type Config struct {
	// Upload target
	Endpoint      string `yaml:"endpoint"`
	UploadTimeout string `yaml:"upload_timeout"`

	Scanner ScannerConfig `yaml:"scanner"`
	Camera  CameraConfig  `yaml:"camera"`
	Screen  ScreenConfig  `yaml:"screen"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`

	// Receiver side
	Server ServerConfig `yaml:"server"`
}

// ScannerConfig selects where decoded codes come from.
type ScannerConfig struct {
	Source string `yaml:"source"` // keyboard, dir, device, stdin
	Dir    string `yaml:"dir"`    // frame directory for "dir"
	Device string `yaml:"device"` // tty or FIFO for "device"
}

// CameraConfig decides the permission answer of headless stations.
type CameraConfig struct {
	Granted bool `yaml:"granted"`
}

type ScreenConfig struct {
	Headless bool `yaml:"headless"`
	// AskPermission shows the y/n camera dialog on start instead of
	// assuming access.
	AskPermission bool `yaml:"ask_permission"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics listener
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StorePath string `yaml:"store_path"`
	CertDir   string `yaml:"cert_dir"`
	Domain    string `yaml:"domain"`
	CacheDir  string `yaml:"cache_dir"`
}

// Dir returns ~/.scanrelay, or the working directory when no home is set.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scanrelay"
	}
	return filepath.Join(home, ".scanrelay")
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Endpoint:      upload.DefaultEndpoint,
		UploadTimeout: upload.DefaultTimeout.String(),

		Scanner: ScannerConfig{
			Source: SourceKeyboard,
			Dir:    filepath.Join(dir, "frames"),
		},

		Camera: CameraConfig{Granted: true},

		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dir, "scanrelay.log"),
		},

		Server: ServerConfig{
			Addr:      ":8080",
			StorePath: filepath.Join(dir, "scans.json"),
			CacheDir:  filepath.Join(dir, "autocert"),
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCANRELAY_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("SCANRELAY_SCANNER"); v != "" {
		c.Scanner.Source = v
	}
	if v := os.Getenv("SCANRELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetUploadTimeout returns the upload timeout as a duration.
func (c *Config) GetUploadTimeout() time.Duration {
	d, err := time.ParseDuration(c.UploadTimeout)
	if err != nil || d <= 0 {
		return upload.DefaultTimeout
	}
	return d
}

// Validate checks the station settings.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint not configured (set endpoint or SCANRELAY_ENDPOINT)")
	}
	if c.UploadTimeout != "" {
		if _, err := time.ParseDuration(c.UploadTimeout); err != nil {
			return fmt.Errorf("invalid upload_timeout %q: %w", c.UploadTimeout, err)
		}
	}

	valid := false
	for _, s := range ValidSources {
		if c.Scanner.Source == s {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid scanner source: %s (valid: %v)", c.Scanner.Source, ValidSources)
	}
	if c.Scanner.Source == SourceDir && c.Scanner.Dir == "" {
		return fmt.Errorf("scanner source %q needs scanner.dir", SourceDir)
	}
	if c.Scanner.Source == SourceDevice && c.Scanner.Device == "" {
		return fmt.Errorf("scanner source %q needs scanner.device", SourceDevice)
	}
	return nil
}
