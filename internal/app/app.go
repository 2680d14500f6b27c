package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"kvm-dashboard/internal/collector"
	"kvm-dashboard/internal/config"
	"kvm-dashboard/internal/controller"
	"kvm-dashboard/internal/libvirt"
	"kvm-dashboard/internal/model"
	"kvm-dashboard/internal/stream"
	"kvm-dashboard/internal/view"
)

// App wires the hypervisor client, the reconciliation loop and a front
// end together.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	conn     *libvirt.ConnManager
	hv       controller.Hypervisor
	exporter *stream.Exporter
	health   *HealthStatus

	programOpts []tea.ProgramOption
}

type Option func(*App)

// WithHypervisor replaces the libvirt client.
func WithHypervisor(hv controller.Hypervisor) Option {
	return func(a *App) {
		a.hv = hv
	}
}

// WithProgramOptions adds options to the dashboard's Bubble Tea program.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(a *App) {
		a.programOpts = append(a.programOpts, opts...)
	}
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	exporter, err := stream.NewExporterFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("event export: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		exporter: exporter,
		health:   NewHealthStatus(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.hv == nil {
		a.conn = libvirt.NewConnManager(cfg.LibvirtURI, logger)
		a.hv = libvirt.NewClient(a.conn, libvirt.Options{
			StopPollInterval:  cfg.StopPollInterval,
			StopRetryInterval: cfg.StopRetryInterval,
		}, logger)
	}
	if a.conn != nil {
		a.health.TrackLibvirt(a.conn)
	}
	if a.exporter != nil {
		a.health.TrackExport(a.exporter)
	}
	return a, nil
}

func (a *App) Health() *HealthStatus {
	return a.health
}

// ListMachines performs a single listing outside the loop.
func (a *App) ListMachines(ctx context.Context) ([]model.MachineInfo, error) {
	return a.hv.ListMachines(ctx)
}

func (a *App) Start(ctx context.Context, name string) error {
	return a.hv.Start(ctx, name)
}

func (a *App) Stop(ctx context.Context, name string) error {
	return a.hv.Stop(ctx, name)
}

// RunDashboard runs the interactive dashboard until the user quits or a
// shutdown signal arrives.
func (a *App) RunDashboard(ctx context.Context) error {
	a.logger.Info("starting dashboard", "libvirt_uri", a.uri())
	return a.runWithSignals(ctx, func(runCtx context.Context) error {
		return a.run(runCtx, a.dashboard())
	})
}

// RunWatch refreshes on a timer without a terminal UI and logs every
// event, until a shutdown signal arrives.
func (a *App) RunWatch(ctx context.Context) error {
	a.logger.Info("starting headless watch", "libvirt_uri", a.uri(), "interval", a.cfg.RefreshInterval)
	return a.runWithSignals(ctx, func(runCtx context.Context) error {
		return a.run(runCtx, a.headless())
	})
}

// frontend drives the loop. start returns the sink the loop reports to and
// a function that blocks until the front end is done producing actions.
type frontend struct {
	start func(ctx context.Context, actions chan<- model.Action) (controller.Sink, func() error)
	// interactive front ends stay up after a fatal loop error so the user
	// can read it.
	interactive bool
}

func (a *App) dashboard() frontend {
	return frontend{
		interactive: true,
		start: func(ctx context.Context, actions chan<- model.Action) (controller.Sink, func() error) {
			m := view.NewModel(a.uri(), actions, a.cfg.RefreshInterval, a.health)
			opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, a.programOpts...)
			p := tea.NewProgram(m, opts...)
			sink := view.NewSink(p)

			return sink, func() error {
				_, err := p.Run()
				sink.Close()
				if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
					return fmt.Errorf("dashboard: %w", err)
				}
				return nil
			}
		},
	}
}

func (a *App) headless() frontend {
	return frontend{
		start: func(ctx context.Context, actions chan<- model.Action) (controller.Sink, func() error) {
			scheduler := collector.NewScheduler(a.logger, actions, a.cfg.RefreshInterval)
			return controller.NewLogSink(a.logger), func() error {
				err := scheduler.Run(ctx)
				a.logger.Info("scheduled refresh stopped", "skipped_ticks", scheduler.Skipped())
				return err
			}
		},
	}
}

func (a *App) uri() string {
	if a.conn != nil {
		return a.conn.URI()
	}
	return a.cfg.LibvirtURI
}

// Close releases the libvirt connection and the export stream.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.exporter != nil {
		if err := a.exporter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event export: %w", err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close libvirt: %w", err))
		}
	}
	return errors.Join(errs...)
}
