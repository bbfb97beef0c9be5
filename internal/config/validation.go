package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateListener(&c.Listener)...)
	errs = append(errs, validateAudio(&c.Audio)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, ValidateCombos(c.Combos)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateListener(l *ListenerConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Backend {
	case "auto", "evdev", "hook", "terminal":
	default:
		errs = append(errs, ValidationError{
			Field:   "listener.backend",
			Message: fmt.Sprintf("invalid backend: %s (valid: auto, evdev, hook, terminal)", l.Backend),
		})
	}

	if l.IdleWindowMs < 100 || l.IdleWindowMs > 60000 {
		errs = append(errs, *RangeError("listener.idle_window_ms", 100, 60000))
	}

	if l.QueueSize < 1 || l.QueueSize > 4096 {
		errs = append(errs, *RangeError("listener.queue_size", 1, 4096))
	}

	for i, d := range l.Devices {
		if d == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("listener.devices[%d]", i),
				Message: "device path cannot be empty",
			})
		}
	}

	return errs
}

func validateAudio(a *AudioConfig) ValidationErrors {
	var errs ValidationErrors

	if a.Device != "" && a.Device != "default" {
		errs = append(errs, ValidationError{
			Field:   "audio.device",
			Message: fmt.Sprintf("the device %q could not be found (only \"default\" is supported)", a.Device),
		})
	}

	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		errs = append(errs, *RangeError("audio.sample_rate", 8000, 192000))
	}

	if a.BufferMs < 10 || a.BufferMs > 1000 {
		errs = append(errs, *RangeError("audio.buffer_ms", 10, 1000))
	}

	if a.MaxVolume <= 0 || a.MaxVolume > 8 {
		errs = append(errs, *RangeError("audio.max_volume", "0 (exclusive)", 8))
	}

	if a.InitialVolume < 0 || a.InitialVolume > a.MaxVolume {
		errs = append(errs, *RangeError("audio.initial_volume", 0, "max_volume"))
	}

	if a.VolumeStep <= 0 || a.VolumeStep > a.MaxVolume {
		errs = append(errs, *RangeError("audio.volume_step", "0 (exclusive)", "max_volume"))
	}

	if a.SampleDir != "" {
		if info, err := os.Stat(expandPath(a.SampleDir)); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "audio.sample_dir",
				Message: fmt.Sprintf("not a directory: %s", a.SampleDir),
			})
		}
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if !s.Enabled {
		return errs
	}

	if s.Path == "" {
		errs = append(errs, *RequiredFieldError("storage.path"))
	}

	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if !m.Enabled {
		return errs
	}

	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid address %q: %v", m.ListenAddr, err),
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

//go:embed combos.schema.json
var combosSchemaJSON []byte

const combosSchemaURL = "https://comboboard.local/schemas/combos.json"

var (
	combosSchemaOnce sync.Once
	combosSchema     *jsonschema.Schema
	combosSchemaErr  error
)

func compiledCombosSchema() (*jsonschema.Schema, error) {
	combosSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(combosSchemaURL, bytes.NewReader(combosSchemaJSON)); err != nil {
			combosSchemaErr = fmt.Errorf("add combo schema: %w", err)
			return
		}
		combosSchema, combosSchemaErr = compiler.Compile(combosSchemaURL)
	})
	return combosSchema, combosSchemaErr
}

// ValidateCombos checks the combo table against the embedded JSON schema,
// then checks that every sequence parses and is bound only once.
func ValidateCombos(entries []ComboEntry) ValidationErrors {
	var errs ValidationErrors

	schema, err := compiledCombosSchema()
	if err != nil {
		return append(errs, ValidationError{Field: "combo", Message: err.Error()})
	}

	doc, err := toJSONValue(entries)
	if err != nil {
		return append(errs, ValidationError{Field: "combo", Message: err.Error()})
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, schemaErrors(ve)...)
		} else {
			errs = append(errs, ValidationError{Field: "combo", Message: err.Error()})
		}
	}

	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		field := fmt.Sprintf("combo[%d].keys", i)
		seq, err := e.Sequence()
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
			continue
		}
		if seq.IsEmpty() {
			errs = append(errs, ValidationError{Field: field, Message: "sequence must name at least one input"})
			continue
		}
		if j, dup := seen[seq.Glyphs()]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("sequence %s is already bound by combo[%d]", seq.Glyphs(), j),
			})
			continue
		}
		seen[seq.Glyphs()] = i
	}

	return errs
}

// schemaErrors flattens a schema failure into its leaf causes.
func schemaErrors(ve *jsonschema.ValidationError) ValidationErrors {
	if len(ve.Causes) == 0 {
		return ValidationErrors{{Field: jsonPointerField(ve.InstanceLocation), Message: ve.Message}}
	}
	var errs ValidationErrors
	for _, c := range ve.Causes {
		errs = append(errs, schemaErrors(c)...)
	}
	return errs
}

// jsonPointerField turns "/2/action" into "combo[2].action".
func jsonPointerField(ptr string) string {
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	field := "combo"
	if len(parts) > 0 && parts[0] != "" {
		field += "[" + parts[0] + "]"
	}
	for _, p := range parts[1:] {
		field += "." + p
	}
	return field
}

// toJSONValue round-trips v through encoding/json so the validator sees
// the same shape a JSON config file would produce.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, lo, hi any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", lo, hi),
	}
}
