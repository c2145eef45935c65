package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
	"github.com/spf13/cobra"

	"pa-alarm/internal/logging"
)

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start the daemon at login",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Run 'pa-alarm daemon' at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := autostartApp(cmd)
				if err != nil {
					return err
				}
				if app.IsEnabled() {
					fmt.Fprintln(cmd.OutOrStdout(), "autostart already enabled")
					return nil
				}
				if err := app.Enable(); err != nil {
					logging.Errorf("enable autostart: %v", err)
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "autostart enabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop running the daemon at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := autostartApp(cmd)
				if err != nil {
					return err
				}
				if !app.IsEnabled() {
					fmt.Fprintln(cmd.OutOrStdout(), "autostart already disabled")
					return nil
				}
				if err := app.Disable(); err != nil {
					logging.Errorf("disable autostart: %v", err)
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "autostart disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether autostart is enabled",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := autostartApp(cmd)
				if err != nil {
					return err
				}
				state := "disabled"
				if app.IsEnabled() {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "autostart %s: %v\n", state, app.Exec)
				return nil
			},
		},
	)
	return cmd
}

// autostartApp describes this executable running the daemon with the
// current config file.
func autostartApp(cmd *cobra.Command) (*autostart.App, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}
	exec := []string{execPath, "daemon"}
	if cmd.Flags().Changed("config") {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, err
		}
		exec = append(exec, "--config", abs)
	}
	return &autostart.App{
		Name:        "pa-alarm",
		DisplayName: "PA Alarm",
		Exec:        exec,
	}, nil
}
