package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "comboboard"

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/comboboard/
//   - Linux:   ~/.local/share/comboboard/
//   - Windows: %APPDATA%\comboboard\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir("Application Support")
	case "windows":
		return windowsDir("APPDATA", "Roaming")
	default:
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/comboboard/
//   - Linux:   ~/.config/comboboard/
//   - Windows: %APPDATA%\comboboard\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir("Application Support")
	case "windows":
		return windowsDir("APPDATA", "Roaming")
	default:
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir("Logs")
	case "windows":
		return filepath.Join(windowsDir("LOCALAPPDATA", "Local"), "logs")
	default:
		return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"))
	}
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}

func macOSDir(sub string) string {
	return filepath.Join(homeDir(), "Library", sub, appName)
}

// xdgDir follows the XDG Base Directory layout.
func xdgDir(env string, fallback ...string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	parts := append([]string{homeDir()}, fallback...)
	return filepath.Join(append(parts, appName)...)
}

func windowsDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(homeDir(), "AppData", fallback, appName)
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	searchDirs := []string{
		".",
		PlatformConfigDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// ControlCombos returns the stock volume and playback controls. Every one
// starts with the mark key so none can shadow a sound combo.
func ControlCombos() []ComboEntry {
	return []ComboEntry{
		{Keys: "/", Action: "toggle_mute", Name: "mute"},
		{Keys: "/ /", Action: "clear_audio", Name: "clear"},
		{Keys: "/ v", Action: "lower_volume", Amount: 0.25},
		{Keys: "/ ^", Action: "raise_volume", Amount: 0.25},
		{Keys: "/ v v", Action: "lower_volume", Amount: 0.5},
		{Keys: "/ ^ ^", Action: "raise_volume", Amount: 0.5},
		{Keys: "/ ^ > v v v", Action: "quit"},
	}
}

// SoundCombos returns the stock sample bindings. Files are relative to
// the audio sample directory.
func SoundCombos() []ComboEntry {
	return []ComboEntry{
		{Keys: "< ^", Action: "play", File: "spongebob-fail.mp3"},
		{Keys: "< >", Action: "play", File: "vine-boom.mp3"},
		{Keys: "< v", Action: "play", File: "bass-drop.mp3"},
		{Keys: "> ^", Action: "play", File: "taco-bell-bong.mp3"},
		{Keys: "> <", Action: "play", File: "airhorn.mp3"},
		{Keys: "> v", Action: "play", File: "buzzer.mp3"},
		{Keys: "v v", Action: "play", File: "yoda-screaming.mp3"},
		{Keys: "v ^", Action: "play", File: "lego-break.mp3"},
		{Keys: "v <", Action: "play", File: "prowler.mp3"},
		{Keys: "v >", Action: "play", File: "vanish.mp3"},
		{Keys: "^ v", Action: "play", File: "fireball.mp3"},
		{Keys: "^ <", Action: "play", File: "spiderman-reveal.mp3"},
	}
}
