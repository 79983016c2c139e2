package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/framewire/internal/channel"
	"github.com/danmuck/framewire/internal/endpoint"
	"github.com/danmuck/framewire/internal/imagecodec"
	"github.com/danmuck/framewire/internal/protocol/chunk"
	"github.com/danmuck/framewire/internal/protocol/frame"
	"github.com/rs/zerolog"
)

const sampleTOML = `
role = "client"
address = "10.0.0.7"
port = 12000
read_timeout = "2s"

[retry]
enabled = true
interval = "250ms"
max_attempts = 8

[tokens]
start = "start"
end = "end"

[packets]
delay = "1ms"

[image]
codec = "png"

[log]
level = "debug"
`

const sampleYAML = `
role: server
port: 12001
family: ipv6
address: "::1"
tokens:
  start: "<<"
  end: ">>"
packets:
  max_size: 4096
retry:
  enabled: true
  interval: 3s
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadTOMLOverlaysDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "framewire.toml", sampleTOML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ep := cfg.EndpointConfig()
	if ep.Role != endpoint.RoleClient || ep.Address != "10.0.0.7" || ep.Port != 12000 {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	if ep.Family != endpoint.FamilyIPv4 {
		t.Fatalf("family default lost: %q", ep.Family)
	}
	if ep.Session.ReadTimeout != 2*time.Second {
		t.Fatalf("read timeout: %v", ep.Session.ReadTimeout)
	}
	if ep.Session.ConnectTimeout != 5*time.Second {
		t.Fatalf("connect timeout default lost: %v", ep.Session.ConnectTimeout)
	}
	r := ep.Session.Retry
	if !r.Enabled || r.Interval != 250*time.Millisecond || r.MaxAttempts != 8 || r.Multiplier != 1.0 {
		t.Fatalf("unexpected retry: %+v", r)
	}

	if got := cfg.TokenPair(); got != (frame.TokenPair{Start: "start", End: "end"}) {
		t.Fatalf("tokens: %+v", got)
	}
	p := cfg.PacketPolicy()
	if p.MaxPacketSize != chunk.DefaultMaxPacketSize || p.InterPacketDelay != time.Millisecond {
		t.Fatalf("packets: %+v", p)
	}

	opts, err := cfg.ChannelOptions()
	if err != nil {
		t.Fatalf("channel options: %v", err)
	}
	if _, ok := opts.Images.(imagecodec.PNG); !ok {
		t.Fatalf("expected png codec, got %T", opts.Images)
	}
	if opts.MaxFrameSize != channel.DefaultMaxFrameSize {
		t.Fatalf("max frame size default lost: %d", opts.MaxFrameSize)
	}
	if lc := cfg.LogConfig(); lc.Level != zerolog.DebugLevel {
		t.Fatalf("log level: %v", lc.Level)
	}
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "framewire.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ep := cfg.EndpointConfig()
	if ep.Family != endpoint.FamilyIPv6 || ep.Address != "::1" || ep.Port != 12001 {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	if !ep.AutoAccept {
		t.Fatalf("auto_accept default lost")
	}
	if ep.Session.Retry.Interval != 3*time.Second {
		t.Fatalf("retry interval: %v", ep.Session.Retry.Interval)
	}
	if cfg.PacketPolicy().MaxPacketSize != 4096 {
		t.Fatalf("max size: %d", cfg.PacketPolicy().MaxPacketSize)
	}
	if cfg.TokenPair().Start != "<<" {
		t.Fatalf("tokens: %+v", cfg.TokenPair())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.toml", "role = \"server\"\nbogus = 1\n")); err == nil {
		t.Fatalf("expected unknown toml key error")
	}
	if _, err := Load(writeFile(t, "bad.yaml", "role: server\nbogus: 1\n")); err == nil {
		t.Fatalf("expected unknown yaml key error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"packet size": "[packets]\nmax_size = 70000\n",
		"role":        "role = \"peer\"\n",
		"transport":   "transport = \"datagram\"\n",
		"codec":       "[image]\ncodec = \"gif\"\n",
		"log level":   "[log]\nlevel = \"loud\"\n",
		"duration":    "read_timeout = \"soon\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeFile(t, "c.toml", body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMaxFrameSizeZeroDisablesCap(t *testing.T) {
	cfg, err := Load(writeFile(t, "framewire.toml", "[packets]\nmax_frame_size = 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts, err := cfg.ChannelOptions()
	if err != nil {
		t.Fatalf("channel options: %v", err)
	}
	if opts.MaxFrameSize != 0 {
		t.Fatalf("expected no cap, got %d", opts.MaxFrameSize)
	}
	if _, err := Load(writeFile(t, "framewire.toml", "[packets]\nmax_frame_size = -1\n")); err == nil {
		t.Fatalf("expected negative max_frame_size to fail")
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	if _, err := Load(writeFile(t, "framewire.ini", "role=server")); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	for _, format := range []Format{FormatTOML, FormatYAML} {
		text, err := Template(format)
		if err != nil {
			t.Fatalf("%s template: %v", format, err)
		}
		cfg, err := Decode([]byte(text), format)
		if err != nil {
			t.Fatalf("%s decode: %v\n%s", format, err, text)
		}
		if cfg != Default() {
			t.Fatalf("%s round trip mismatch:\n got=%+v\nwant=%+v", format, cfg, Default())
		}
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framewire.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("load written template: %v", err)
	}
}
