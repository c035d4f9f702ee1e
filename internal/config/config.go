package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dshills/prsignal/internal/risk"
)

const (
	appName   = "prsignal"
	envPrefix = "PRSIGNAL"

	// DefaultMarker identifies the PR comment prsignal owns.
	DefaultMarker = "<!-- prsignal-report -->"
)

// localFiles are searched in the working directory before the user config.
var localFiles = []string{".prsignal.yaml", ".prsignal.yml"}

// Accepted values for the enumerated keys.
var (
	Formats    = []string{"text", "json", "markdown", "sarif"}
	FailOns    = []string{"none", "low", "medium", "high"}
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

// Validation errors.
var (
	ErrInvalidFormat    = errors.New("invalid output format")
	ErrInvalidFailOn    = errors.New("invalid fail-on threshold")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrEmptyMarker      = errors.New("comment marker must not be empty")
	ErrUnknownKey       = errors.New("unknown config key")
	ErrInvalidTTL       = errors.New("cache TTL must not be negative")
	ErrInvalidValue     = errors.New("invalid config value")
)

// Config represents the prsignal configuration.
type Config struct {
	Format         string        `yaml:"format" mapstructure:"format"`
	FailOn         string        `yaml:"failOn" mapstructure:"failOn"`
	IgnorePatterns []string      `yaml:"ignorePatterns" mapstructure:"ignorePatterns"`
	CustomPatterns []risk.Rule   `yaml:"customPatterns,omitempty" mapstructure:"customPatterns"`
	RulesFile      string        `yaml:"rulesFile,omitempty" mapstructure:"rulesFile"`
	MetricsFile    string        `yaml:"metricsFile,omitempty" mapstructure:"metricsFile"`
	LogLevel       string        `yaml:"logLevel" mapstructure:"logLevel"`
	LogFormat      string        `yaml:"logFormat" mapstructure:"logFormat"`
	Comment        CommentConfig `yaml:"comment" mapstructure:"comment"`
	GitHub         GitHubConfig  `yaml:"github" mapstructure:"github"`
	Cache          CacheConfig   `yaml:"cache" mapstructure:"cache"`
}

// CommentConfig controls the PR comment.
type CommentConfig struct {
	Marker string `yaml:"marker" mapstructure:"marker"`
}

// CacheConfig controls the pull request snapshot cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir        string `yaml:"dir,omitempty" mapstructure:"dir"`
	TTLSeconds int    `yaml:"ttlSeconds" mapstructure:"ttlSeconds"`
}

// GitHubConfig holds GitHub API settings. The token is never written to disk.
type GitHubConfig struct {
	APIURL string `yaml:"apiURL,omitempty" mapstructure:"apiURL"`
	Token  string `yaml:"-" mapstructure:"token"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Format:         "text",
		FailOn:         "none",
		IgnorePatterns: []string{"**/vendor/**", "**/node_modules/**", "**/dist/**", "**/*.gen.go"},
		LogLevel:       "warn",
		LogFormat:      "text",
		Comment:        CommentConfig{Marker: DefaultMarker},
		Cache:          CacheConfig{Enabled: true, TTLSeconds: 7 * 24 * 3600},
	}
}

// ConfigDir returns the platform-appropriate config directory for prsignal.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// FindFile returns the first existing config file, checking the working
// directory before the user config. It returns "" when none exists.
func FindFile() string {
	candidates := slices.Clone(localFiles)
	if p, err := ConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func newViper() *viper.Viper {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys get snake_case variables.
	_ = v.BindEnv("failOn", envPrefix+"_FAIL_ON")
	_ = v.BindEnv("ignorePatterns", envPrefix+"_IGNORE_PATTERNS")
	_ = v.BindEnv("rulesFile", envPrefix+"_RULES_FILE")
	_ = v.BindEnv("metricsFile", envPrefix+"_METRICS_FILE")
	_ = v.BindEnv("logLevel", envPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("logFormat", envPrefix+"_LOG_FORMAT")
	_ = v.BindEnv("github.token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("github.apiURL", envPrefix+"_GITHUB_API_URL", "GITHUB_API_URL")
	_ = v.BindEnv("cache.ttlSeconds", envPrefix+"_CACHE_TTL_SECONDS")
	return v
}

func applyDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("format", d.Format)
	v.SetDefault("failOn", d.FailOn)
	v.SetDefault("ignorePatterns", d.IgnorePatterns)
	v.SetDefault("rulesFile", "")
	v.SetDefault("metricsFile", "")
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFormat", d.LogFormat)
	v.SetDefault("comment.marker", d.Comment.Marker)
	v.SetDefault("github.apiURL", "")
	v.SetDefault("github.token", "")
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttlSeconds", d.Cache.TTLSeconds)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// path selects the config file; when empty, FindFile is used and a missing
// file is not an error. The overrides map comes from CLI flags.
func Load(path string, overrides map[string]string) (Config, error) {
	v := newViper()

	if path == "" {
		path = FindFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for k, val := range overrides {
		if val != "" {
			v.Set(k, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads only the config file at path over the defaults, ignoring
// the environment. A missing file yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the enumerated keys.
func (c Config) Validate() error {
	if !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, c.Format, strings.Join(Formats, ", "))
	}
	if !slices.Contains(FailOns, c.FailOn) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFailOn, c.FailOn, strings.Join(FailOns, ", "))
	}
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	if !slices.Contains(LogFormats, c.LogFormat) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	if strings.TrimSpace(c.Comment.Marker) == "" {
		return ErrEmptyMarker
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTTL, c.Cache.TTLSeconds)
	}
	return nil
}

// SetField sets a single config field by key name. List values are
// comma-separated. cfg is left unchanged when the value is rejected.
func SetField(dst *Config, key, value string) error {
	cfg := *dst
	switch key {
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "ignorePatterns":
		cfg.IgnorePatterns = SplitList(value)
	case "rulesFile":
		cfg.RulesFile = value
	case "metricsFile":
		cfg.MetricsFile = value
	case "logLevel":
		cfg.LogLevel = value
	case "logFormat":
		cfg.LogFormat = value
	case "comment.marker":
		cfg.Comment.Marker = value
	case "github.apiURL":
		cfg.GitHub.APIURL = value
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: cache.enabled=%q", ErrInvalidValue, value)
		}
		cfg.Cache.Enabled = b
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: cache.ttlSeconds=%q", ErrInvalidValue, value)
		}
		cfg.Cache.TTLSeconds = n
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	*dst = cfg
	return nil
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
