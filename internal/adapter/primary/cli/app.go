package cli

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"pa-alarm/internal/adapter/secondary/audio"
	"pa-alarm/internal/adapter/secondary/power"
	"pa-alarm/internal/adapter/secondary/repository"
	"pa-alarm/internal/config"
	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
	"pa-alarm/internal/playback"
	"pa-alarm/internal/usecase"
)

// app is one wired instance of the alarm: storage, audio, playback and the
// interactor on top.
type app struct {
	cfg     config.Config
	catalog domain.Catalog
	fs      afero.Fs
	base    string
	device  domain.AudioDevice
	player  *playback.Controller
	uc      usecase.AlarmUseCase
	closers []func() error
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(afero.NewOsFs(), cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = storeFlag
		if !flags.Changed("data") {
			cfg.DataPath = config.DefaultDataPath(storeFlag)
		}
	}
	if flags.Changed("data") {
		cfg.DataPath = dataFlag
	}
	if flags.Changed("sounds") {
		cfg.SoundsDir = soundsFlag
	}
	if flags.Changed("audio") {
		cfg.Audio = audioFlag
	}
	return config.Normalize(cfg)
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, catalog: domain.DefaultCatalog(), fs: afero.NewOsFs()}

	kv, err := a.openStore()
	if err != nil {
		return nil, err
	}

	switch cfg.Audio {
	case config.AudioNone:
		a.device = audio.NewNullDevice(time.Duration(cfg.ClipLength))
	default:
		a.base = cfg.SoundsDir
		if a.base == "" {
			a.base = audio.DetectBasePath(a.fs, a.catalog)
		}
		for _, s := range audio.Missing(a.fs, a.base, a.catalog) {
			logging.Warnf("sound %s: %s not found under %q", s.ID, s.Locator, a.base)
		}
		a.device = audio.NewBeepDevice(a.fs, a.base)
	}

	a.player = playback.NewController(a.device, a.catalog, playback.Options{
		FadeInSteps:     cfg.FadeInSteps,
		FadeInInterval:  time.Duration(cfg.FadeInInterval),
		FadeOutSteps:    cfg.FadeOutSteps,
		FadeOutInterval: time.Duration(cfg.FadeOutInterval),
	})

	a.uc, err = usecase.NewAlarmUseCase(usecase.Deps{
		KV:      kv,
		Player:  a.player,
		Device:  a.device,
		Power:   power.Default("pa-alarm"),
		Catalog: a.catalog,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	logging.Debugf("store=%s data=%s audio=%s", cfg.Store, cfg.DataPath, cfg.Audio)
	return a, nil
}

func (a *app) openStore() (domain.KeyValueStore, error) {
	switch a.cfg.Store {
	case config.StoreSQLite:
		s, err := repository.NewSQLiteStore(a.cfg.DataPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return repository.NewOSFileStore(a.cfg.DataPath)
	}
}

// preload decodes every clip up front for long-running commands.
func (a *app) preload() {
	if d, ok := a.device.(*audio.BeepDevice); ok {
		if err := d.Preload(a.catalog); err != nil {
			logging.Warnf("preload: %v", err)
		}
	}
}

func (a *app) Close() error {
	var result *multierror.Error
	for _, c := range a.closers {
		if err := c(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
