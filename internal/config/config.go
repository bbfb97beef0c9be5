// Package config handles configuration loading, validation, and management for comboboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"comboboard/internal/combo"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete soundboard configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Listener configures the keyboard tap and the idle window.
	Listener ListenerConfig `toml:"listener" json:"listener" yaml:"listener"`

	// Audio configures the output sink.
	Audio AudioConfig `toml:"audio" json:"audio" yaml:"audio"`

	// Storage configures the trigger history database.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Metrics configures the /metrics and /healthz endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Combos binds key sequences to actions.
	Combos []ComboEntry `toml:"combo" json:"combo" yaml:"combo"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ListenerConfig holds keyboard tap configuration.
type ListenerConfig struct {
	// Backend is "auto", "evdev", "hook" or "terminal".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// IdleWindowMs is the pause after which a partial sequence is dropped.
	IdleWindowMs int `toml:"idle_window_ms" json:"idle_window_ms" yaml:"idle_window_ms"`

	// Devices restricts the evdev backend to these device paths.
	// Empty means every keyboard.
	Devices []string `toml:"devices" json:"devices" yaml:"devices"`

	// QueueSize is the tap's event buffer.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`
}

// AudioConfig holds output configuration.
type AudioConfig struct {
	// Enabled selects the speaker sink; false records plays without sound.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Device must be "default"; named devices are not supported.
	Device string `toml:"device" json:"device" yaml:"device"`

	// SampleDir holds the stock samples. Relative combo files resolve here.
	SampleDir string `toml:"sample_dir" json:"sample_dir" yaml:"sample_dir"`

	SampleRate    int     `toml:"sample_rate" json:"sample_rate" yaml:"sample_rate"`
	BufferMs      int     `toml:"buffer_ms" json:"buffer_ms" yaml:"buffer_ms"`
	InitialVolume float64 `toml:"initial_volume" json:"initial_volume" yaml:"initial_volume"`
	MaxVolume     float64 `toml:"max_volume" json:"max_volume" yaml:"max_volume"`

	// VolumeStep is used by volume combos that give no amount.
	VolumeStep float64 `toml:"volume_step" json:"volume_step" yaml:"volume_step"`
}

// StorageConfig holds trigger history configuration.
type StorageConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr" or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`
}

// ComboEntry binds one key sequence to an action.
type ComboEntry struct {
	// Keys is the textual sequence, e.g. "/ ^ ^" or "mark up up".
	Keys string `toml:"keys" json:"keys" yaml:"keys"`

	// Action is one of quit, clear_audio, toggle_mute, lower_volume,
	// raise_volume, play.
	Action string `toml:"action" json:"action" yaml:"action"`

	// Amount is the volume change for lower_volume and raise_volume.
	Amount float64 `toml:"amount,omitempty" json:"amount,omitempty" yaml:"amount,omitempty"`

	// File is the clip played by play.
	File string `toml:"file,omitempty" json:"file,omitempty" yaml:"file,omitempty"`

	// Name labels the combo in logs and history.
	Name string `toml:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`
}

// Sequence parses Keys.
func (e ComboEntry) Sequence() (combo.Sequence, error) {
	return combo.ParseSequence(e.Keys)
}

// Label returns Name, or the action and file when Name is empty.
func (e ComboEntry) Label() string {
	switch {
	case e.Name != "":
		return e.Name
	case e.File != "":
		return strings.TrimSuffix(filepath.Base(e.File), filepath.Ext(e.File))
	default:
		return e.Action
	}
}

// ResolveFile returns File joined to sampleDir when File is relative.
func (e ComboEntry) ResolveFile(sampleDir string) string {
	f := expandPath(e.File)
	if f == "" || filepath.IsAbs(f) || sampleDir == "" {
		return f
	}
	return filepath.Join(expandPath(sampleDir), f)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Listener: ListenerConfig{
			Backend:      "auto",
			IdleWindowMs: 3000,
			Devices:      []string{},
			QueueSize:    64,
		},
		Audio: AudioConfig{
			Enabled:       true,
			Device:        "default",
			SampleRate:    44100,
			BufferMs:      100,
			InitialVolume: 1,
			MaxVolume:     2,
			VolumeStep:    0.25,
		},
		Storage: StorageConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "history.db"),
			BusyTimeoutMs: 5000,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "comboboard.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Combos: ControlCombos(),
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base data directory.
// COMBOBOARD_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("COMBOBOARD_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// StoragePath returns the history database path with ~ expanded.
func (c *Config) StoragePath() string {
	return expandPath(c.Storage.Path)
}

// LogPath returns the log file path with ~ expanded.
func (c *Config) LogPath() string {
	return expandPath(c.Logging.FilePath)
}

// IdleWindow returns the listener idle window.
func (c *Config) IdleWindow() time.Duration {
	return time.Duration(c.Listener.IdleWindowMs) * time.Millisecond
}

// EffectiveCombos returns the configured combos followed by the stock sound
// combos from Audio.SampleDir whose keys are not already bound.
func (c *Config) EffectiveCombos() []ComboEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := append([]ComboEntry(nil), c.Combos...)
	if c.Audio.SampleDir == "" {
		return out
	}

	bound := make(map[string]bool, len(out))
	for _, e := range out {
		if seq, err := e.Sequence(); err == nil {
			bound[seq.Glyphs()] = true
		}
	}
	for _, e := range SoundCombos() {
		seq, _ := e.Sequence()
		if !bound[seq.Glyphs()] {
			out = append(out, e)
		}
	}
	return out
}

// EnsureDirectories creates the directories the configured paths need.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(expandPath(c.Storage.Path)))
	}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(expandPath(c.Logging.FilePath)))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with COMBOBOARD_ and use underscores.
// Values that do not parse are ignored.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Listener overrides
	if v := os.Getenv("COMBOBOARD_BACKEND"); v != "" {
		c.Listener.Backend = v
	}
	if v := os.Getenv("COMBOBOARD_IDLE_WINDOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Listener.IdleWindowMs = n
		}
	}
	if v := os.Getenv("COMBOBOARD_DEVICES"); v != "" {
		c.Listener.Devices = splitList(v)
	}

	// Audio overrides
	if v := os.Getenv("COMBOBOARD_AUDIO_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Audio.Enabled = b
		}
	}
	if v := os.Getenv("COMBOBOARD_SAMPLE_DIR"); v != "" {
		c.Audio.SampleDir = v
	}
	if v := os.Getenv("COMBOBOARD_VOLUME"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Audio.InitialVolume = f
		}
	}

	// Storage overrides
	if v := os.Getenv("COMBOBOARD_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	// Metrics overrides
	if v := os.Getenv("COMBOBOARD_METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddr = v
	}

	// Logging overrides
	if v := os.Getenv("COMBOBOARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COMBOBOARD_LOG_PATH"); v != "" {
		c.Logging.Output = "file"
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version: c.Version,
		Listener: ListenerConfig{
			Backend:      c.Listener.Backend,
			IdleWindowMs: c.Listener.IdleWindowMs,
			Devices:      append([]string{}, c.Listener.Devices...),
			QueueSize:    c.Listener.QueueSize,
		},
		Audio:   c.Audio,
		Storage: c.Storage,
		Metrics: c.Metrics,
		Logging: c.Logging,
		Combos:  append([]ComboEntry{}, c.Combos...),
	}
}

// encodeTOML renders the configuration with the TOML encoder.
func (c *Config) encodeTOML() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	b.WriteString("# comboboard configuration\n\n")
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
