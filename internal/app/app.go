package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/inmemorystore"
	"github.com/vk/jobgridgo/internal/notify"
	"github.com/vk/jobgridgo/internal/packages"
	"github.com/vk/jobgridgo/internal/runtime"
	"github.com/vk/jobgridgo/internal/service"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	service    *service.Service
	hub        *notify.Hub
	remote     *notify.SocketIO
	httpServer *http.Server
	jobID      atomic.Value // string
}

// Option customises an App. Options are mainly used by tests.
type Option func(*options)

type options struct {
	runtime runtime.Runtime
}

// WithRuntime replaces the runtime selected by the configuration.
func WithRuntime(rt runtime.Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. Startup failures
// are fatal and panic.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rt := o.runtime
	if rt == nil {
		var err error
		rt, err = newRuntime(cfg)
		if err != nil {
			panic(fmt.Errorf("failed to create runtime: %w", err))
		}
	}
	logger.Debug("Runtime selected.", "runtime", cfg.Runtime)

	wrapper, err := flow.WrapperByName(cfg.Wrapper)
	if err != nil {
		panic(err)
	}
	manager, err := packages.ManagerByName(cfg.PackageManager)
	if err != nil {
		panic(err)
	}
	catalog, err := packages.LoadCatalog(cfg.PackagesPath)
	if err != nil {
		panic(fmt.Errorf("failed to load package catalog: %w", err))
	}
	logger.Debug("Package catalog loaded.", "packages", catalog.Len(), "manager", string(manager))

	home, _ := os.UserHomeDir()
	a := &App{ctx: ctx, outW: outW, logger: logger, config: cfg, hub: notify.NewHub()}

	relays := notify.Multi{a.hub}
	if cfg.NotifyURL != "" {
		remote, err := notify.NewSocketIO(ctx, notify.SocketIOConfig{URL: cfg.NotifyURL, Namespace: cfg.NotifyNamespace})
		if err != nil {
			logger.Error("Notification relay unavailable, continuing without it.", "error", err)
		} else {
			a.remote = remote
			relays = append(relays, remote)
		}
	}

	svc, err := service.New(service.Options{
		Store:    inmemorystore.New(),
		Runtime:  rt,
		Relay:    relays,
		Packages: packages.Installer{Repository: catalog, Manager: manager},
		Steps:    flow.StepBuilder{Wrapper: wrapper, Home: home},
		Workers:  cfg.WorkerCount,
	})
	if err != nil {
		panic(err)
	}
	a.service = svc

	return a
}

func newRuntime(cfg *Config) (runtime.Runtime, error) {
	switch cfg.Runtime {
	case "docker":
		return runtime.NewDocker(cfg.DockerImage, cfg.TimeoutGrace)
	default:
		return runtime.NewShell(cfg.TimeoutGrace), nil
	}
}

// Service returns the application's job service. This is primarily for testing.
func (a *App) Service() *service.Service {
	return a.service
}

// JobID returns the id of the submitted job, or "" before submission.
func (a *App) JobID() string {
	id, _ := a.jobID.Load().(string)
	return id
}
