package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"screen-recorder/src/session"
	"screen-recorder/src/singleinstance"
)

const (
	ConfigPathEnvVar = "SCREEN_RECORDER_CONFIG"
	EnvPathEnvVar    = "SCREEN_RECORDER_ENV"
	configFileName   = "recorder.toml"
)

// LoadOptions carries command-line overrides. Zero values leave the loaded
// setting alone.
type LoadOptions struct {
	ConfigPath string
	EnvPath    string

	FrameRate       int
	HighlightCursor *bool
	AudioEnabled    *bool
	AudioDevice     string
	OutputDir       string
	TempDir         string
	FFmpegPath      string
}

type Config struct {
	FrameRate       int    `toml:"frame_rate"`
	HighlightCursor bool   `toml:"highlight_cursor"`
	AudioEnabled    bool   `toml:"audio_enabled"`
	AudioDevice     string `toml:"audio_device"`

	OutputDir    string `toml:"output_dir"`
	TempDir      string `toml:"temp_dir"`
	FFmpegPath   string `toml:"ffmpeg_path"`
	AudioCodec   string `toml:"audio_codec"`
	AudioBitrate string `toml:"audio_bitrate"`
	JPEGQuality  int    `toml:"jpeg_quality"`

	EnableFileLogging   bool   `toml:"enable_file_logging"`
	LogDir              string `toml:"log_dir"`
	HotkeyStart         string `toml:"hotkey_start"`
	HotkeyPause         string `toml:"hotkey_pause"`
	HotkeyStop          string `toml:"hotkey_stop"`
	CopyPathToClipboard bool   `toml:"copy_path_to_clipboard"`
	Notify              bool   `toml:"notify"`

	// Control port range shared by the resident and its clients.
	PortStart int `toml:"singleinstance_port_start"`
	PortEnd   int `toml:"singleinstance_port_end"`

	// ConfigFile is the TOML file that was read, if any.
	ConfigFile string `toml:"-"`
	// Warnings lists settings that were ignored or replaced.
	Warnings []string `toml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		FrameRate:       session.DefaultFrameRate,
		HighlightCursor: true,
		AudioEnabled:    true,
		FFmpegPath:      "ffmpeg",
		AudioCodec:      "aac",
		AudioBitrate:    "192k",
		JPEGQuality:     90,
		HotkeyStart:     "Ctrl+Alt+R",
		HotkeyPause:     "Ctrl+Alt+P",
		HotkeyStop:      "Ctrl+Alt+S",
		Notify:          true,
		PortStart:       singleinstance.DefaultPortRange().Start,
		PortEnd:         singleinstance.DefaultPortRange().End,
	}
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions layers, lowest first: defaults, the TOML file, the .env
// file, process environment, then opts.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	cfg := Default()

	tomlPath, explicit := resolveConfigPath(opts)
	if tomlPath != "" {
		if err := decodeTOML(tomlPath, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			cfg.ConfigFile = tomlPath
		}
	}

	env := newLookup(readDotenvValues(resolveEnvPath(opts)))
	env.int("FRAME_RATE", &cfg.FrameRate, &cfg.Warnings)
	env.bool("HIGHLIGHT_CURSOR", &cfg.HighlightCursor, &cfg.Warnings)
	env.bool("AUDIO_ENABLED", &cfg.AudioEnabled, &cfg.Warnings)
	env.string("AUDIO_DEVICE", &cfg.AudioDevice)
	env.string("OUTPUT_DIR", &cfg.OutputDir)
	env.string("TEMP_DIR", &cfg.TempDir)
	env.string("FFMPEG_PATH", &cfg.FFmpegPath)
	env.string("AUDIO_CODEC", &cfg.AudioCodec)
	env.string("AUDIO_BITRATE", &cfg.AudioBitrate)
	env.int("JPEG_QUALITY", &cfg.JPEGQuality, &cfg.Warnings)
	env.bool("ENABLE_FILE_LOGGING", &cfg.EnableFileLogging, &cfg.Warnings)
	env.string("LOG_DIR", &cfg.LogDir)
	env.string("HOTKEY_START", &cfg.HotkeyStart)
	env.string("HOTKEY_PAUSE", &cfg.HotkeyPause)
	env.string("HOTKEY_STOP", &cfg.HotkeyStop)
	env.bool("COPY_PATH_TO_CLIPBOARD", &cfg.CopyPathToClipboard, &cfg.Warnings)
	env.bool("NOTIFY", &cfg.Notify, &cfg.Warnings)
	env.int("SINGLEINSTANCE_PORT_START", &cfg.PortStart, &cfg.Warnings)
	env.int("SINGLEINSTANCE_PORT_END", &cfg.PortEnd, &cfg.Warnings)

	applyOverrides(&cfg, opts)
	cfg.normalize()
	for _, w := range cfg.Warnings {
		log.Printf("config: %s", w)
	}
	return &cfg, nil
}

// Ports returns the control port range.
func (c *Config) Ports() singleinstance.PortRange {
	return singleinstance.PortRange{Start: c.PortStart, End: c.PortEnd}
}

// Capture returns the per-recording settings.
func (c *Config) Capture() session.CaptureConfig {
	return session.CaptureConfig{
		FrameRate:       c.FrameRate,
		HighlightCursor: c.HighlightCursor,
		AudioEnabled:    c.AudioEnabled,
		AudioDevice:     c.AudioDevice,
	}
}

func (c *Config) normalize() {
	if !session.ValidFrameRate(c.FrameRate) {
		c.Warnings = append(c.Warnings, fmt.Sprintf("frame rate %d not in %v, using %d", c.FrameRate, session.FrameRates, session.DefaultFrameRate))
		c.FrameRate = session.DefaultFrameRate
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("jpeg quality %d out of range, using 90", c.JPEGQuality))
		c.JPEGQuality = 90
	}
	c.AudioDevice = strings.TrimSpace(c.AudioDevice)
	if c.FFmpegPath = strings.TrimSpace(c.FFmpegPath); c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	requested := c.Ports()
	if ports := requested.Normalize(); ports != requested {
		c.Warnings = append(c.Warnings, fmt.Sprintf("control port range %s adjusted to %s", requested, ports))
		c.PortStart, c.PortEnd = ports.Start, ports.End
	}
}

func applyOverrides(cfg *Config, opts LoadOptions) {
	if opts.FrameRate != 0 {
		cfg.FrameRate = opts.FrameRate
	}
	if opts.HighlightCursor != nil {
		cfg.HighlightCursor = *opts.HighlightCursor
	}
	if opts.AudioEnabled != nil {
		cfg.AudioEnabled = *opts.AudioEnabled
	}
	if v := strings.TrimSpace(opts.AudioDevice); v != "" {
		cfg.AudioDevice = v
	}
	if v := strings.TrimSpace(opts.OutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := strings.TrimSpace(opts.TempDir); v != "" {
		cfg.TempDir = v
	}
	if v := strings.TrimSpace(opts.FFmpegPath); v != "" {
		cfg.FFmpegPath = v
	}
}

func decodeTOML(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath reports the TOML path and whether the user named it.
func resolveConfigPath(opts LoadOptions) (string, bool) {
	if p := strings.TrimSpace(opts.ConfigPath); p != "" {
		return p, true
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		return p, true
	}
	if dir := execDir(); dir != "" {
		return filepath.Join(dir, configFileName), false
	}
	return "", false
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPath); p != "" {
		return p
	}
	if dir := execDir(); dir != "" {
		exeEnv := filepath.Join(dir, ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}
	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(execPath)
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		log.Printf("config: read %s: %v", envPath, err)
		return map[string]string{}
	}

	return values
}

// lookup resolves a key from the environment first, then the .env values.
type lookup struct{ dotenv map[string]string }

func newLookup(dotenv map[string]string) lookup { return lookup{dotenv: dotenv} }

func (l lookup) get(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	if v := strings.TrimSpace(l.dotenv[key]); v != "" {
		return v, true
	}
	return "", false
}

func (l lookup) string(key string, dst *string) {
	if v, ok := l.get(key); ok {
		*dst = v
	}
}

func (l lookup) int(key string, dst *int, warnings *[]string) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s=%q is not a number, ignored", key, v))
		return
	}
	*dst = n
}

func (l lookup) bool(key string, dst *bool, warnings *[]string) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s=%q is not a boolean, ignored", key, v))
		return
	}
	*dst = b
}
