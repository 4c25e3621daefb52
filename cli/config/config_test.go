package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vpd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("VPD_REDIS_URL", "redis://bmc:6379/0")

	path := writeTemp(t, `system_config: /usr/share/vpd/system.json
parser:
  backend: process
  path: /usr/bin/vpd-parser
  args: [--ipz]
  timeout: 20s
timers:
  collection_poll: 2s
  system_vpd_poll: 500ms
  system_vpd_max_attempts: 60
workers:
  max_concurrent: 4
  collect_on_start: false
transport:
  type: redis
  url: ${VPD_REDIS_URL}
  channel: ${VPD_CHANNEL:-vpd:pel}
  codec: msgpack
  retries: 5
archive:
  backend: s3
  dataset: pels
  path: bmc-faults/rack1
  region: us-east-1
  s3_path_style: true
api:
  listen: 0.0.0.0:8470
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"system_config", cfg.SystemConfig, "/usr/share/vpd/system.json"},
		{"parser.backend", cfg.Parser.Backend, ParserProcess},
		{"parser.args", strings.Join(cfg.Parser.Args, ","), "--ipz"},
		{"parser.timeout", cfg.Parser.Timeout.Duration, 20 * time.Second},
		{"timers.collection_poll", cfg.Timers.CollectionPoll.Duration, 2 * time.Second},
		{"timers.system_vpd_poll", cfg.Timers.SystemVPDPoll.Duration, 500 * time.Millisecond},
		{"timers.system_vpd_max_attempts", cfg.Timers.SystemVPDMaxAttempts, 60},
		{"workers.max_concurrent", cfg.Workers.MaxConcurrent, 4},
		{"collect_on_start", cfg.CollectOnStart(), false},
		{"transport.url", cfg.Transport.URL, "redis://bmc:6379/0"},
		{"transport.channel", cfg.Transport.Channel, "vpd:pel"},
		{"transport.codec", cfg.Transport.Codec, "msgpack"},
		{"transport.retries", *cfg.Transport.Retries, 5},
		{"archive.path", cfg.Archive.Path, "bmc-faults/rack1"},
		{"archive.s3_path_style", cfg.Archive.S3PathStyle, true},
		{"archive enabled", cfg.ArchiveEnabled(), true},
		{"api.listen", cfg.API.Listen, "0.0.0.0:8470"},
		{"log.level", cfg.Log.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EmptyConfigDefaults(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.CollectOnStart() {
		t.Error("collect_on_start should default to true")
	}
	if cfg.ArchiveEnabled() {
		t.Error("archive enabled without a backend")
	}
}

func TestLoad_LodeTransportEnablesArchive(t *testing.T) {
	cfg, err := Load(writeTemp(t, "transport:\n  type: lode\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ArchiveEnabled() {
		t.Error("lode transport should enable the archive")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"invalid yaml", "{{invalid yaml", "invalid YAML"},
		{"bad duration", "timers:\n  collection_poll: soon\n", "invalid duration"},
		{"unknown parser", "parser:\n  backend: i2c-dev\n", "parser.backend"},
		{"unknown transport", "transport:\n  type: kafka\n", "transport.type"},
		{"archive without path", "archive:\n  backend: fs\n", "archive.path"},
		{"negative workers", "workers:\n  max_concurrent: -1\n", "workers.max_concurrent"},
		{"negative retries", "transport:\n  retries: -2\n", "transport.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}
