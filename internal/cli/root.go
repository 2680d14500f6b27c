package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"kvm-dashboard/internal/app"
	"kvm-dashboard/internal/config"
)

// ErrNoTerminal is returned by the root command when stdout is not a
// terminal.
var ErrNoTerminal = errors.New("stdout is not a terminal; use 'kvm-dashboard watch' for headless mode")

// Persistent flags
var (
	cfgFile string
	v       = config.New()
)

// isTerminal reports whether stdout is attached to a terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// rootCmd opens the interactive dashboard
var rootCmd = &cobra.Command{
	Use:   "kvm-dashboard",
	Short: "Terminal dashboard for libvirt virtual machines",
	Long: `Show every virtual machine on a libvirt host with its power state and
CPU usage, and start or stop machines from the keyboard.

The list refreshes on a fixed interval. Use 'watch' on hosts without a
terminal.

Examples:
  kvm-dashboard
  kvm-dashboard --uri qemu+ssh://root@host/system
  kvm-dashboard --interval 5s --config ~/.config/kvm-dashboard.yaml`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardCommand(cmd.Context())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	pf.String("uri", "", "libvirt connection URI (default qemu:///system)")
	pf.Duration("interval", 0, "refresh interval (default 2s)")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	if err := bindFlags(v, pf); err != nil {
		panic(err)
	}
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"uri":       "libvirt_uri",
	"interval":  "refresh_interval",
	"log-level": "log_level",
}

// bindFlags binds the persistent flags into v. Only flags set on the
// command line override the file and the environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("flag --%s not defined", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(v, cfgFile)
}

// session is an App plus the log file it writes to.
type session struct {
	*app.App
	closeLog func() error
}

func newSession(interactive bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	out, closeLog, err := app.LogOutput(cfg, interactive)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, app.BuildLogger(cfg, out))
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &session{App: a, closeLog: closeLog}, nil
}

// close releases the App for one-shot commands. The long-running commands
// close it on their own during shutdown.
func (s *session) close(ctx context.Context) error {
	return errors.Join(s.Close(ctx), s.closeLog())
}

func dashboardCommand(ctx context.Context) error {
	if !isTerminal() {
		return ErrNoTerminal
	}
	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.closeLog()
	return s.RunDashboard(ctx)
}

// signalContext cancels on SIGINT or SIGTERM, for the one-shot commands.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
