package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/etc/pa-alarm/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/c.json", []byte(`{"store":"sqlite","dataPath":"","fadeInInterval":"10ms"}`), 0o644)
	cfg, err := Load(fs, "/c.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store != StoreSQLite || !strings.HasSuffix(cfg.DataPath, "data.db") {
		t.Fatalf("store = %s path = %s", cfg.Store, cfg.DataPath)
	}
	if time.Duration(cfg.FadeInInterval) != 10*time.Millisecond || cfg.FadeOutSteps != 15 {
		t.Fatalf("fades = %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Audio = AudioNone
	cfg.Addr = ":9000"
	if err := Save(fs, "/c.json", cfg); err != nil {
		t.Fatal(err)
	}
	raw, _ := afero.ReadFile(fs, "/c.json")
	if !strings.Contains(string(raw), `"fadeInInterval": "50ms"`) {
		t.Fatalf("durations not human readable: %s", raw)
	}
	got, err := Load(fs, "/c.json")
	if err != nil {
		t.Fatal(err)
	}
	if got != cfg {
		t.Fatalf("got %+v, want %+v", got, cfg)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"store", func(c *Config) { c.Store = "redis" }},
		{"audio", func(c *Config) { c.Audio = "alsa" }},
		{"steps", func(c *Config) { c.FadeInSteps = -1 }},
		{"interval", func(c *Config) { c.FadeOutInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if _, err := Normalize(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
