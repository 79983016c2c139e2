package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrUnknownKeys   = errors.New("config: unknown keys")
)

// Duration reads and writes Go duration strings ("5s", "50us").
type Duration struct {
	time.Duration
}

func D(d time.Duration) Duration { return Duration{Duration: d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = v
	return nil
}

// Config is the on-disk shape shared by the server and client commands.
type Config struct {
	Role           string   `toml:"role" yaml:"role"`
	Address        string   `toml:"address" yaml:"address"`
	Port           int      `toml:"port" yaml:"port"`
	Family         string   `toml:"family" yaml:"family"`
	Transport      string   `toml:"transport" yaml:"transport"`
	Debug          bool     `toml:"debug" yaml:"debug"`
	AutoAccept     bool     `toml:"auto_accept" yaml:"auto_accept"`
	Backlog        int      `toml:"backlog" yaml:"backlog"`
	ReusePort      bool     `toml:"reuse_port" yaml:"reuse_port"`
	ConnectTimeout Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout" yaml:"write_timeout"`
	ShowIPS        bool     `toml:"show_ips" yaml:"show_ips"`

	Retry   RetryConfig   `toml:"retry" yaml:"retry"`
	Tokens  TokenConfig   `toml:"tokens" yaml:"tokens"`
	Packets PacketConfig  `toml:"packets" yaml:"packets"`
	Image   ImageConfig   `toml:"image" yaml:"image"`
	Log     LogConfig     `toml:"log" yaml:"log"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

type RetryConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled"`
	Interval    Duration `toml:"interval" yaml:"interval"`
	Multiplier  float64  `toml:"multiplier" yaml:"multiplier"`
	MaxInterval Duration `toml:"max_interval" yaml:"max_interval"`
	Jitter      bool     `toml:"jitter" yaml:"jitter"`
	MaxAttempts int      `toml:"max_attempts" yaml:"max_attempts"`
}

type TokenConfig struct {
	Start string `toml:"start" yaml:"start"`
	End   string `toml:"end" yaml:"end"`
}

type PacketConfig struct {
	MaxSize      int      `toml:"max_size" yaml:"max_size"`
	Delay        Duration `toml:"delay" yaml:"delay"`
	MaxFrameSize int      `toml:"max_frame_size" yaml:"max_frame_size"`
}

type ImageConfig struct {
	Codec   string `toml:"codec" yaml:"codec"`
	Quality int    `toml:"quality" yaml:"quality"`
}

type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	JSON    bool   `toml:"json" yaml:"json"`
	NoColor bool   `toml:"no_color" yaml:"no_color"`
	File    string `toml:"file" yaml:"file"`
}

type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Load reads path as TOML or YAML, chosen by extension, on top of Default.
// Keys the file leaves out keep their default value; unknown keys are an
// error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Decode(data, FormatFor(path))
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return ""
	}
}

// Decode overlays data onto Default without validating the result.
func Decode(data []byte, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, fmt.Errorf("%w: %s", ErrUnknownKeys, strings.Join(keys, ", "))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return cfg, nil
}
