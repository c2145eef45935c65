package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"pa-alarm/internal/adapter/secondary/audio"
	"pa-alarm/internal/config"
	"pa-alarm/internal/domain"
)

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next alarm and the time left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			printNext(cmd.OutOrStdout(), a.uc.Snapshot())
			return nil
		},
	}
}

func printNext(out io.Writer, snap domain.Snapshot) {
	if !snap.HasNext {
		fmt.Fprintln(out, "no enabled schedule")
		return
	}
	n := snap.Next
	fmt.Fprintf(out, "next: %s %s %s (%s, %s)\n",
		n.At.Format("Mon"), n.Schedule.Time, n.Schedule.SoundID,
		domain.FormatCountdown(n.SecondsUntil), humanize.Time(n.At))
}

func newPlayCmd() *cobra.Command {
	var loops int
	cmd := &cobra.Command{
		Use:   "play [sound]",
		Short: "Play a sound through the fades and wait until it ends (Ctrl-C fades out)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sound := a.catalog.First().ID
			if len(args) == 1 {
				sound = domain.SoundID(args[0])
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if err := a.uc.Arm(); err != nil {
				return err
			}
			defer func() {
				disarmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.uc.Disarm(disarmCtx)
			}()

			if err := a.uc.Play(ctx, sound, loops); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "playing %s x%d\n", sound, domain.ClampLoop(loops))

			err = a.player.WaitIdle(ctx)
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.OutOrStdout(), "stopping...")
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return a.uc.Stop(stopCtx)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&loops, "loops", 1, fmt.Sprintf("number of plays (%d-%d)", domain.MinLoopCount, domain.MaxLoopCount))
	return cmd
}

func newVolumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "volume [0-1]",
		Short: "Show or set the playback volume",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if len(args) == 1 {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return &domain.ValidationError{Field: "volume", Reason: fmt.Sprintf("%q is not a number", args[0])}
				}
				if err := a.uc.SetVolume(v); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "volume: %.2f\n", a.uc.Snapshot().Settings.Volume)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write schedules and settings as JSON (stdout if no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			data, err := a.uc.Export()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := afero.WriteFile(a.fs, args[0], data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d schedule(s) to %s\n", len(a.uc.Schedules()), args[0])
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all schedules with those in an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			data, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			res, err := a.uc.Import(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d schedule(s): %d repaired, %d discarded\n",
				len(res.Schedules), res.Repaired, res.Discarded)
			if res.Problems != nil {
				for _, p := range res.Problems.Errors {
					fmt.Fprintf(out, "  %v\n", p)
				}
			}
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored schedules and volume, restoring the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every schedule; pass --yes to confirm")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.uc.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stored data cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func newSoundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sounds",
		Short: "List the sound catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fs := afero.NewOsFs()
			catalog := domain.DefaultCatalog()
			base := cfg.SoundsDir
			if base == "" {
				base = audio.DetectBasePath(fs, catalog)
			}
			missing := map[domain.SoundID]bool{}
			for _, s := range audio.Missing(fs, base, catalog) {
				missing[s.ID] = true
			}
			out := cmd.OutOrStdout()
			for _, s := range catalog.All() {
				status := "ok"
				if missing[s.ID] {
					status = "missing"
				}
				if cfg.Audio == config.AudioNone {
					status = "silent"
				}
				fmt.Fprintf(out, "%-6s %-14s %s (%s)\n", s.ID, s.DisplayName, filepath.Join(base, s.Locator), status)
			}
			return nil
		},
	}
}
