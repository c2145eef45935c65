package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// Storage backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Audio outputs.
const (
	AudioBeep = "beep"
	AudioNone = "none"
)

// Duration is a time.Duration written as "50ms" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration must be a string like \"50ms\"")
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds process settings. Alarm data lives in the key/value store,
// not here.
type Config struct {
	DataPath        string   `json:"dataPath"`
	Store           string   `json:"store"`
	SoundsDir       string   `json:"soundsDir"`
	Audio           string   `json:"audio"`
	Addr            string   `json:"addr"`
	FadeInSteps     int      `json:"fadeInSteps"`
	FadeInInterval  Duration `json:"fadeInInterval"`
	FadeOutSteps    int      `json:"fadeOutSteps"`
	FadeOutInterval Duration `json:"fadeOutInterval"`
	// ClipLength is how long a clip lasts on the silent device.
	ClipLength Duration `json:"clipLength"`
}

var (
	// DefaultAddr is where serve listens if not configured.
	DefaultAddr = "127.0.0.1:7071"
)

// DefaultConfig returns the initial configuration.
func DefaultConfig() Config {
	return Config{
		DataPath:        DefaultDataPath(StoreFile),
		Store:           StoreFile,
		Audio:           AudioBeep,
		Addr:            DefaultAddr,
		FadeInSteps:     20,
		FadeInInterval:  Duration(50 * time.Millisecond),
		FadeOutSteps:    15,
		FadeOutInterval: Duration(30 * time.Millisecond),
		ClipLength:      Duration(3 * time.Second),
	}
}

// Load reads the config file at path on fs. A missing file yields defaults;
// fields absent from the file keep their default value.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return Normalize(cfg)
}

// Save writes cfg to path atomically.
func Save(fs afero.Fs, path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
