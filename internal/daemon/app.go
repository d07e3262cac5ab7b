// Package daemon wires the link power manager to the platform and runs it
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/LeoCommon/linkpm/internal/config"
	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/internal/metrics"
	"github.com/LeoCommon/linkpm/internal/platform/hotplug"
	"github.com/LeoCommon/linkpm/internal/platform/lines"
	"github.com/LeoCommon/linkpm/internal/platform/logind"
	"github.com/LeoCommon/linkpm/internal/platform/portpower"
	"github.com/LeoCommon/linkpm/internal/platform/runtimepm"
	"github.com/LeoCommon/linkpm/internal/platform/usblink"
	"github.com/LeoCommon/linkpm/internal/rpc"
	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/LeoCommon/linkpm/pkg/systemd"
	"github.com/google/gousb"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options switch off the parts that need real hardware or system services
type Options struct {
	Hotplug  bool
	ProbeUSB bool
}

func DefaultOptions() Options {
	return Options{Hotplug: true, ProbeUSB: true}
}

// App contains all services of the daemon
type App struct {
	opts Options

	Conf    *config.Manager
	Manager *linkpm.Manager
	Link    *usblink.Link

	lines    linkpm.SignalLines
	watcher  *lines.Watcher
	hotplug  *hotplug.Monitor
	notifier *logind.Notifier
	registry *prom.Registry
	rpc      *rpc.Server
	listener net.Listener
	metrics  *http.Server
}

// Setup builds every service from the loaded configuration
func Setup(conf *config.Manager, opts Options) (*App, error) {
	app := &App{
		opts:     opts,
		Conf:     conf,
		registry: prom.NewRegistry(),
	}

	hubConf := conf.Hub().C()
	modemConf := conf.Modem().C()

	var err error
	if app.lines, err = newLines(conf.Lines().C()); err != nil {
		return nil, err
	}

	deps := linkpm.Dependencies{
		Lines:    app.lines,
		Recorder: metrics.NewPrometheusRecorder(app.registry),
	}

	var modemDev *runtimepm.Device
	if modemConf.SysfsPath != "" {
		modemDev = runtimepm.NewDevice(modemConf.SysfsPath)
	}
	app.Link = usblink.New(gousb.ID(modemConf.VendorID), gousb.ID(modemConf.ProductID), modemDev)
	deps.Transport = app.Link

	if hubConf.Present {
		uhubctl := portpower.NewUhubctl(hubConf.Location, hubConf.Port)
		if hubConf.UhubctlBinary != "" {
			uhubctl.Binary = hubConf.UhubctlBinary
		}
		deps.PortPower = uhubctl.Power

		if hubConf.RootHubPath != "" {
			deps.RootHub = runtimepm.NewRootHub(runtimepm.NewDevice(hubConf.RootHubPath))
		}
	}

	if conf.Suspend().C().Logind {
		app.notifier, err = logind.Connect(config.ProductName)
		if err != nil {
			log.Warn("could not connect to logind, suspend handling is disabled", zap.Error(err))
		} else {
			deps.PowerNotifier = app.notifier
			deps.SuspendBlocker = app.notifier.Blocker()
		}
	}

	app.Manager, err = linkpm.New(managerConfig(conf), deps)
	if err != nil {
		app.Shutdown()
		return nil, err
	}

	if app.notifier != nil {
		// Any queued call returns only after the suspend work ran before it
		app.notifier.Barrier = func(ctx context.Context) error {
			_, err := app.Manager.Status(ctx)
			return err
		}
	}

	linesConf := conf.Lines().C()
	app.watcher = lines.NewWatcher(app.lines, linkpm.LineID(linesConf.HostWake), linesConf.PollInterval.Value(), app.Manager.OnHostWake)

	if opts.Hotplug {
		app.hotplug = hotplug.NewMonitor(
			hotplug.Device{VendorID: uint16(hubConf.VendorID), ProductID: uint16(hubConf.ProductID)},
			hotplug.Device{VendorID: uint16(modemConf.VendorID), ProductID: uint16(modemConf.ProductID)},
			hotplug.Handlers{
				HubEnumerated: app.Manager.OnHubEnumerated,
				ModemAttached: app.Link.SetAttached,
			})
	}

	if opts.ProbeUSB {
		app.Link.Probe()
	}

	daemonConf := conf.Daemon().C()
	app.listener, err = rpc.Listen(daemonConf.Socket)
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("command socket: %w", err)
	}
	app.rpc = rpc.NewServer(app.Manager, hubConf.ActivationTimeout.Value())

	if daemonConf.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(app.registry))
		app.metrics = &http.Server{
			Addr:              daemonConf.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return app, nil
}

func newLines(conf config.LinesConfig) (linkpm.SignalLines, error) {
	switch conf.Backend {
	case config.LineBackendSerial:
		return lines.OpenSerial(conf.Device)
	case config.LineBackendSysfs:
		return lines.NewSysfs(conf.GPIORoot), nil
	}

	return nil, fmt.Errorf("unsupported line backend %q", conf.Backend)
}

func managerConfig(conf *config.Manager) linkpm.Config {
	hubConf := conf.Hub().C()
	linesConf := conf.Lines().C()

	return linkpm.Config{
		HubPresent: hubConf.Present,
		Lines: linkpm.Lines{
			HostWake:   linkpm.LineID(linesConf.HostWake),
			LinkActive: linkpm.LineID(linesConf.LinkActive),
			SlaveWake:  linkpm.LineID(linesConf.SlaveWake),
		},
		AutosuspendDelay: hubConf.AutosuspendDelay.Value(),
	}
}

// Run blocks until ctx is done or a service failed
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.watcher.Run(ctx)
	})

	if a.hotplug != nil {
		g.Go(func() error {
			// Without udev the hub is never confirmed, keep serving commands anyway
			if err := a.hotplug.Run(ctx); err != nil {
				log.Error("hotplug monitor stopped", zap.Error(err))
			}
			return nil
		})
	}

	if a.notifier != nil {
		g.Go(func() error {
			return a.notifier.Run(ctx)
		})
	}

	g.Go(func() error {
		return a.rpc.Serve(a.listener)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.rpc.Stop()
		return nil
	})

	if a.metrics != nil {
		g.Go(func() error {
			err := a.metrics.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metrics.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return a.retryLoop(ctx)
	})

	if interval := systemd.WatchdogInterval(); interval > 0 {
		g.Go(func() error {
			return watchdogLoop(ctx, interval)
		})
	}

	// Apply the configured autosuspend delay to an already attached modem
	if a.Link.Attached() {
		if err := a.Manager.EnableAutosuspend(ctx); err != nil {
			log.Warn("could not enable modem autosuspend", zap.Error(err))
		}
	}

	if err := systemd.Notify(systemd.NotifyReady); err != nil {
		log.Debug("systemd notify failed", zap.Error(err))
	}
	log.Info("link power manager running")

	return g.Wait()
}

// retryLoop re-probes the modem whenever an activation timed out
func (a *App) retryLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.Link.Retries():
			log.Info("retrying link after activation timeout", zap.Stringer("modem", a.Link))
			if a.opts.ProbeUSB {
				a.Link.Probe()
			}
		}
	}
}

func watchdogLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := systemd.EntertainWatchdog(); err != nil {
				log.Warn("watchdog notify failed", zap.Error(err))
			}
		}
	}
}

// Shutdown stops the manager and releases the platform resources
func (a *App) Shutdown() {
	_ = systemd.Notify(systemd.NotifyStopping)

	if a.Manager != nil {
		if err := a.Manager.Close(); err != nil {
			log.Error("link power manager shutdown", zap.Error(err))
		}
	}

	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			log.Warn("logind shutdown", zap.Error(err))
		}
	}

	// Serve closes it, this covers a daemon that never ran
	if a.listener != nil {
		_ = a.listener.Close()
	}

	if c, ok := a.lines.(io.Closer); ok {
		_ = c.Close()
	}

	log.Sync()
}
