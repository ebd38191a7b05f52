package app

import (
	"context"
	"errors"

	"statushub/config"
	"statushub/internal/controllers"
	"statushub/internal/database"
	"statushub/internal/events"
	"statushub/internal/handlers/middleware"
	"statushub/internal/jobs"
	"statushub/internal/repositories"
	"statushub/internal/services"
	"statushub/internal/status"
	"statushub/internal/websockets"
	"statushub/pkg/logger"
)

type App struct {
	Database    database.DB
	Middleware  middleware.Middleware
	Websocket   *websockets.Manager
	Channel     *events.Channel
	Bridge      *events.Bridge
	Aggregator  *status.Aggregator
	Config      config.Config
	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	app, err := Build(config, db)
	if err != nil {
		_ = db.Close()
		return &App{}, err
	}

	return app, nil
}

// Build wires every component around an opened database. The aggregator is
// running when it returns; background services start with Start.
func Build(config config.Config, db database.DB) (*App, error) {
	log := logger.New("app").Function("Build")

	channel := events.NewChannel(config.EventMailboxSize)
	repos := repositories.New(db)
	svc := services.New(db, config, channel, repos)

	opts := status.DefaultOptions()
	opts.DebounceWindow = config.DebounceWindow()
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = status.NO_DEBOUNCE
	}
	opts.DismissalGrace = config.DismissalGrace()
	opts.MailboxSize = config.EventMailboxSize

	aggregator := status.NewAggregator(channel, opts,
		status.WithRecoverer(svc.Recoverer),
		status.WithSessionRecorder(svc.SessionHistory),
		status.WithServices(svc.Scheduler),
	)
	aggregator.Start()

	svc.RecoveryScan = services.NewRecoveryScanService(config, channel, aggregator)
	svc.SnapshotCache = services.NewSnapshotCacheService(db.Cache.General, aggregator)

	var bridge *events.Bridge
	if db.Cache.Events != nil {
		bridge = events.NewBridge(db.Cache.Events, channel, events.DEFAULT_BRIDGE_CHANNEL)
		bridge.Start()
	}

	websocket, err := websockets.New(context.Background(), aggregator)
	if err != nil {
		_ = aggregator.Stop()
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	if err := jobs.RegisterAllJobs(svc.Scheduler, config, svc); err != nil {
		websocket.Close()
		_ = aggregator.Stop()
		return &App{}, log.Err("failed to register jobs", err)
	}

	app := &App{
		Database:    db,
		Config:      config,
		Middleware:  middleware.New(config),
		Websocket:   websocket,
		Channel:     channel,
		Bridge:      bridge,
		Aggregator:  aggregator,
		Services:    svc,
		Repos:       repos,
		Controllers: controllers.New(aggregator, svc, channel),
	}

	if err := app.validate(); err != nil {
		_ = app.Close()
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

// Start runs the background services. The scheduler is started through the
// aggregator so its service flag follows.
func (a *App) Start(ctx context.Context) error {
	log := logger.New("app").Function("Start")

	if err := a.Services.SnapshotCache.Start(ctx); err != nil {
		return log.Err("failed to start snapshot cache", err)
	}

	if !a.Services.Scheduler.Running() {
		if _, err := a.Aggregator.ToggleExternalService(ctx, services.SCHEDULER_SERVICE_NAME); err != nil {
			return log.Err("failed to start scheduler", err)
		}
	}

	return nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	switch {
	case a.Websocket == nil:
		return log.ErrMsg("websocket manager is nil")
	case a.Channel == nil:
		return log.ErrMsg("event channel is nil")
	case a.Aggregator == nil:
		return log.ErrMsg("aggregator is nil")
	case a.Services.Scheduler == nil,
		a.Services.Recoverer == nil,
		a.Services.TempCleanup == nil,
		a.Services.SessionHistory == nil,
		a.Services.RecoveryScan == nil,
		a.Services.SnapshotCache == nil:
		return log.ErrMsg("services are not fully initialized")
	case a.Repos.RecoverySession == nil:
		return log.ErrMsg("recovery session repository is nil")
	case a.Controllers.Status == nil:
		return log.ErrMsg("status controller is nil")
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.Websocket != nil {
		a.Websocket.Close()
	}

	if a.Services.SnapshotCache != nil {
		a.Services.SnapshotCache.Stop()
	}

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if a.Aggregator != nil {
		if closeErr := a.Aggregator.Stop(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Bridge != nil {
		if closeErr := a.Bridge.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Channel != nil {
		if closeErr := a.Channel.Close(); closeErr != nil && !errors.Is(closeErr, events.ErrClosed) {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
