package config

import (
	"fmt"
	"time"
)

// Normalize fills empty values and rejects invalid ones.
func Normalize(cfg Config) (Config, error) {
	switch cfg.Store {
	case "":
		cfg.Store = StoreFile
	case StoreFile, StoreSQLite:
	default:
		return cfg, fmt.Errorf("store must be %q or %q", StoreFile, StoreSQLite)
	}
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultDataPath(cfg.Store)
	}
	switch cfg.Audio {
	case "":
		cfg.Audio = AudioBeep
	case AudioBeep, AudioNone:
	default:
		return cfg, fmt.Errorf("audio must be %q or %q", AudioBeep, AudioNone)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.FadeInSteps < 0 || cfg.FadeInSteps > 500 || cfg.FadeOutSteps < 0 || cfg.FadeOutSteps > 500 {
		return cfg, fmt.Errorf("fade steps must be between 0 and 500")
	}
	if cfg.FadeInSteps > 0 && time.Duration(cfg.FadeInInterval) < time.Millisecond {
		return cfg, fmt.Errorf("fadeInInterval must be >=1ms")
	}
	if cfg.FadeOutSteps > 0 && time.Duration(cfg.FadeOutInterval) < time.Millisecond {
		return cfg, fmt.Errorf("fadeOutInterval must be >=1ms")
	}
	if cfg.ClipLength <= 0 {
		cfg.ClipLength = DefaultConfig().ClipLength
	}
	return cfg, nil
}
