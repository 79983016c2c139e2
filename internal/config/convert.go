package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/framewire/internal/channel"
	"github.com/danmuck/framewire/internal/endpoint"
	"github.com/danmuck/framewire/internal/imagecodec"
	"github.com/danmuck/framewire/internal/logging"
	"github.com/danmuck/framewire/internal/protocol/chunk"
	"github.com/danmuck/framewire/internal/protocol/frame"
	"github.com/danmuck/framewire/internal/protocol/session"
)

var ErrInvalidLogLevel = errors.New("config: invalid log level")

// Default mirrors endpoint.DefaultConfig and chunk.DefaultPolicy.
func Default() Config {
	ep := endpoint.DefaultConfig()
	packets := chunk.DefaultPolicy()
	return Config{
		Role:           string(ep.Role),
		Address:        ep.Address,
		Port:           ep.Port,
		Family:         string(ep.Family),
		Transport:      string(ep.Transport),
		AutoAccept:     ep.AutoAccept,
		Backlog:        ep.Backlog,
		ConnectTimeout: D(ep.Session.ConnectTimeout),
		Retry: RetryConfig{
			Enabled:    ep.Session.Retry.Enabled,
			Interval:   D(ep.Session.Retry.Interval),
			Multiplier: ep.Session.Retry.Multiplier,
		},
		Packets: PacketConfig{
			MaxSize:      packets.MaxPacketSize,
			Delay:        D(packets.InterPacketDelay),
			MaxFrameSize: channel.DefaultMaxFrameSize,
		},
		Image: ImageConfig{
			Codec:   "jpeg",
			Quality: imagecodec.DefaultJPEGQuality,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c Config) Validate() error {
	if err := c.EndpointConfig().Validate(); err != nil {
		return err
	}
	if err := c.PacketPolicy().Validate(); err != nil {
		return err
	}
	if c.Packets.MaxFrameSize < 0 {
		return fmt.Errorf("config: negative max_frame_size %d", c.Packets.MaxFrameSize)
	}
	if _, err := c.ImageCodec(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Log.Level) != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
		}
	}
	return nil
}

func (c Config) EndpointConfig() endpoint.Config {
	return endpoint.Config{
		Role:       endpoint.Role(strings.ToLower(strings.TrimSpace(c.Role))),
		Address:    strings.TrimSpace(c.Address),
		Port:       c.Port,
		Family:     endpoint.Family(strings.ToLower(strings.TrimSpace(c.Family))),
		Transport:  endpoint.Transport(strings.ToLower(strings.TrimSpace(c.Transport))),
		Debug:      c.Debug,
		AutoAccept: c.AutoAccept,
		Backlog:    c.Backlog,
		ReusePort:  c.ReusePort,
		Session: session.Config{
			ConnectTimeout: c.ConnectTimeout.Duration,
			ReadTimeout:    c.ReadTimeout.Duration,
			WriteTimeout:   c.WriteTimeout.Duration,
			Retry: session.RetryPolicy{
				Enabled:     c.Retry.Enabled,
				Interval:    c.Retry.Interval.Duration,
				Multiplier:  c.Retry.Multiplier,
				MaxInterval: c.Retry.MaxInterval.Duration,
				Jitter:      c.Retry.Jitter,
				MaxAttempts: c.Retry.MaxAttempts,
			},
		},
	}
}

func (c Config) TokenPair() frame.TokenPair {
	return frame.TokenPair{Start: c.Tokens.Start, End: c.Tokens.End}
}

func (c Config) PacketPolicy() chunk.Policy {
	return chunk.Policy{
		MaxPacketSize:    c.Packets.MaxSize,
		InterPacketDelay: c.Packets.Delay.Duration,
	}
}

func (c Config) ImageCodec() (imagecodec.Codec, error) {
	codec, err := imagecodec.ByName(c.Image.Codec)
	if err != nil {
		return nil, err
	}
	if _, ok := codec.(imagecodec.JPEG); ok && c.Image.Quality > 0 {
		codec = imagecodec.JPEG{Quality: c.Image.Quality}
	}
	return codec, nil
}

func (c Config) ChannelOptions() (channel.Options, error) {
	codec, err := c.ImageCodec()
	if err != nil {
		return channel.Options{}, err
	}
	return channel.Options{
		Tokens:       c.TokenPair(),
		Packets:      c.PacketPolicy(),
		Images:       codec,
		MaxFrameSize: c.Packets.MaxFrameSize,
		Debug:        c.Debug,
	}, nil
}

// LogConfig starts from the runtime profile and applies the [log] table.
// Environment overrides are applied later by logging.ConfigureWith.
func (c Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		cfg.Level = lvl
	}
	cfg.JSON = c.Log.JSON
	cfg.NoColor = c.Log.NoColor
	cfg.File = strings.TrimSpace(c.Log.File)
	return cfg
}
