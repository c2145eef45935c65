package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"pa-alarm/internal/adapter/primary/web"
	"pa-alarm/internal/config"
	"pa-alarm/internal/logging"
	"pa-alarm/internal/usecase"
)

var (
	cfgPath    string
	verbosity  int
	storeFlag  string
	dataFlag   string
	soundsFlag string
	audioFlag  string
)

// NewRootCmd creates the root CLI command.
// This is the primary adapter that translates CLI inputs to use case calls.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pa-alarm",
		Short:        "Weekly alarm that plays PA chimes on schedule",
		Long:         "Recurring weekly alarms with fade-in/fade-out playback, a CLI and a Web UI",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	pf.CountVarP(&verbosity, "verbose", "v", "more logging (-v, -vv, ... up to 4 times)")
	pf.StringVar(&storeFlag, "store", config.StoreFile, "storage backend (file|sqlite)")
	pf.StringVar(&dataFlag, "data", "", "data file path (default depends on --store)")
	pf.StringVar(&soundsFlag, "sounds", "", "directory holding the sound files (auto-detected if empty)")
	pf.StringVar(&audioFlag, "audio", config.AudioBeep, "audio output (beep|none)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("verbose") {
			logging.SetVerbosity(verbosity)
		}
	}

	cmd.AddCommand(
		newDaemonCmd(),
		newServeCmd(),
		newScheduleCmd(),
		newNextCmd(),
		newPlayCmd(),
		newVolumeCmd(),
		newExportCmd(),
		newImportCmd(),
		newResetCmd(),
		newSoundsCmd(),
		newConfigCmd(),
		newAutostartCmd(),
		newShellCmd(),
	)

	return cmd
}

func newDaemonCmd() *cobra.Command {
	var disarmed bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the alarm clock only (no Web UI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			a.preload()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if !disarmed {
				if err := a.uc.Arm(); err != nil {
					return fmt.Errorf("arm: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "PA alarm daemon started")
			printNext(out, a.uc.Snapshot())
			if err := a.uc.Run(ctx); err != nil {
				return err
			}

			fmt.Fprintln(out, "Daemon shutting down...")
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.uc.Disarm(stopCtx)
		},
	}
	cmd.Flags().BoolVar(&disarmed, "disarmed", false, "start without arming")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		addr string
		arm  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alarm clock and the Web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			a.preload()

			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Addr
			}
			if arm {
				if err := a.uc.Arm(); err != nil {
					logging.Warnf("arm: %v", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			srv := web.NewServer(a.uc, addr)
			fmt.Fprintf(cmd.OutOrStdout(), "PA alarm UI running at http://%s\n", addr)
			logging.Infof("PA alarm UI: http://%s", addr)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.uc.Run(gctx) })
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return shutdownServe(shutdownCtx, a.uc, srv)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "HTTP listen address")
	cmd.Flags().BoolVar(&arm, "arm", false, "arm the alarm at start")
	return cmd
}

// shutdownServe disarms, which fades out playback and releases the wake
// lock, then stops the HTTP server.
func shutdownServe(ctx context.Context, uc usecase.AlarmUseCase, srv *web.Server) error {
	if err := uc.Disarm(ctx); err != nil {
		logging.Warnf("disarm: %v", err)
	}
	return srv.Shutdown(ctx)
}

func newShellCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell for the subcommands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveShell(prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "pa-alarm> ", "shell prompt")
	return cmd
}

func runInteractiveShell(prompt string) error {
	historyFile := filepath.Join(os.TempDir(), "pa-alarm-shell.history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	sessionVerbosity := verbosity
	sessionConfig := cfgPath
	fmt.Println("Interactive shell. 'help' for examples, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println()
			continue
		}
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil
		case "help":
			printShellHelp()
			continue
		}
		tokens, err := shlex.Split(line)
		if err != nil {
			fmt.Printf("Parse error: %v\n", err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] == "log" {
			if err := handleShellLog(tokens[1:], &sessionVerbosity); err != nil {
				fmt.Printf("log: %v\n", err)
			}
			continue
		}
		if tokens[0] == "shell" {
			fmt.Println("Already in the shell. Enter another command or 'exit'.")
			continue
		}

		if err := executeArgs(withSession(tokens, sessionConfig, sessionVerbosity)); err != nil {
			fmt.Printf("command error: %v\n", err)
		}
	}
}

// withSession carries the shell's config path and verbosity into a command
// line unless the line sets them itself.
func withSession(tokens []string, config string, verbosity int) []string {
	args := append([]string(nil), tokens...)
	hasConfig, hasVerbose := false, false
	for _, t := range tokens {
		switch {
		case t == "--config" || strings.HasPrefix(t, "--config="):
			hasConfig = true
		case t == "--verbose" || strings.HasPrefix(t, "-v"):
			hasVerbose = true
		}
	}
	if !hasConfig {
		args = append(args, "--config", config)
	}
	if !hasVerbose && verbosity > 0 {
		args = append(args, "-"+strings.Repeat("v", verbosity))
	}
	return args
}

func executeArgs(args []string) error {
	if len(args) == 0 {
		return nil
	}
	root := NewRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func handleShellLog(args []string, sessionVerbosity *int) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var vcount int
	var level string
	var show bool
	fs.CountVarP(&vcount, "verbose", "v", "Increase verbosity (-v... up to 4)")
	fs.StringVar(&level, "level", "", "level (error|warn|info|debug|trace)")
	fs.BoolVarP(&show, "show", "s", false, "show the current level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case show && vcount == 0 && level == "":
		fmt.Printf("log level: %s (-v x%d)\n", logging.CurrentLevel(), logging.Verbosity())
		return nil
	case level != "":
		l, count, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		*sessionVerbosity = count
		logging.SetVerbosity(count)
		// error has no -v count of its own
		logging.SetLevel(l)
	case vcount > 0:
		*sessionVerbosity = vcount
		logging.SetVerbosity(vcount)
	default:
		fmt.Printf("log level: %s (-v x%d)\n", logging.CurrentLevel(), logging.Verbosity())
		return nil
	}

	fmt.Printf("log level set to %s (-v x%d)\n", logging.CurrentLevel(), logging.Verbosity())
	return nil
}

func printShellHelp() {
	fmt.Println(`Examples:
  schedule list                            # show schedules
  schedule add --time 07:30 --days mon-fri # add a schedule
  schedule day 3f2a 6                      # toggle Saturday
  next                                     # time to the next alarm
  play chime --loops 2                     # play through the fades
  volume 0.6                               # set the volume
  export backup.json / import backup.json  # backup and restore
  serve --addr 127.0.0.1:7071 --arm        # Web UI + clock
  log -vv / log --level error              # change logging
  log --show                               # current log level
  exit / quit                              # leave the shell`)
}
