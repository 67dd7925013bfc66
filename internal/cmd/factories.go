package cmd

import (
	"time"

	adapterexecutor "quadro/internal/adapters/executor"
	adaptergit "quadro/internal/adapters/git"
	adaptersound "quadro/internal/adapters/sound"
	adapterstorage "quadro/internal/adapters/storage"
	"quadro/internal/config"
	"quadro/internal/server"
	"quadro/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	// Services
	Broadcaster *services.Broadcaster
	Engine      *services.HookEngine
	Manager     *services.SessionManager
	Scheduler   *services.Scheduler

	// Adapters shared with the server layer
	Sound        *adaptersound.Player
	Store        *adapterstorage.Store
	WorktreeBase string
	Worktrees    *adaptergit.Manager
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(dbPath string, settings *config.Settings) (*Container, error) {
	store, err := adapterstorage.Open(dbPath)
	if err != nil {
		return nil, err
	}

	runner := adapterexecutor.NewRunner()
	player := adaptersound.NewPlayer()
	worktrees := adaptergit.NewManager()

	broadcaster := services.NewBroadcaster()
	manager := services.NewSessionManager(
		runner,
		store.Sessions,
		store.Messages,
		store.Tasks,
		broadcaster,
		settings.Executor(),
	)
	resolver := services.NewChainResolver(store.Hooks, store.Ledger, store.Tasks, broadcaster)
	limiter := services.NewLimiter(store.Ledger, store.Sessions, store.Tasks)
	engine := services.NewHookEngine(
		resolver,
		limiter,
		store.Hooks,
		store.Ledger,
		manager,
		store.Tasks,
		broadcaster,
		player,
		settings.SoundsOn(),
		time.Duration(settings.ScriptHookTimeout())*time.Second,
	)
	scheduler := services.NewScheduler(store.Periodicals, store.Tasks, manager, settings.Intake())

	return &Container{
		Broadcaster:  broadcaster,
		Engine:       engine,
		Manager:      manager,
		Scheduler:    scheduler,
		Sound:        player,
		Store:        store,
		WorktreeBase: config.GetWorktreeBase(settings),
		Worktrees:    worktrees,
	}, nil
}

// ServerDeps builds the dependency set for the HTTP layer
func (c *Container) ServerDeps() server.Deps {
	return server.Deps{
		Broadcaster:  c.Broadcaster,
		Engine:       c.Engine,
		Hooks:        c.Store.Hooks,
		Ledger:       c.Store.Ledger,
		Manager:      c.Manager,
		Messages:     c.Store.Messages,
		Periodicals:  c.Store.Periodicals,
		Sessions:     c.Store.Sessions,
		Tasks:        c.Store.Tasks,
		WorktreeBase: c.WorktreeBase,
		Worktrees:    c.Worktrees,
	}
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
