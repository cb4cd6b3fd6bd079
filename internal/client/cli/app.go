package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	storage "github.com/avdeyev/catchdex/internal/client/client"
	"github.com/avdeyev/catchdex/internal/client/config"
	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/reachability"
	"github.com/avdeyev/catchdex/internal/client/services"
	"github.com/avdeyev/catchdex/internal/client/sync"
	"github.com/avdeyev/catchdex/internal/logging"
)

// App wires the whole client together and exposes the REPL commands.
type App struct {
	config   *config.Config
	repos    *storage.Repositories
	monitor  *reachability.Monitor
	manager  *sync.Manager
	sessions services.SessionStore
	account  services.AccountService
	catalog  services.CatalogService
	owns     services.OwnershipService
	logger   logging.Logger
	reader   *bufio.Reader
}

// NewApp builds the client: local database, gateway, reachability monitor,
// sync manager, and the services on top.
func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	repos, err := storage.InitDatabase(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sessions := services.NewSessionStore(repos.Metadata)
	if err := sessions.Load(ctx); err != nil {
		logger.Warn(ctx, "failed to resume session", "error", err)
	}

	gw := gateway.New(gateway.Options{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.RequestTimeout,
		ProbeTimeout:   cfg.ProbeTimeout,
		Token:          sessions.Token,
		OnUnauthorized: func() { sessions.ClearToken(context.Background()) },
	})

	monitor := reachability.New(reachability.Options{
		Prober:       gw,
		Meta:         repos.Metadata,
		Logger:       logger,
		Interval:     cfg.ProbeInterval,
		ProbeTimeout: cfg.ProbeTimeout,
	})

	manager := sync.New(sync.Options{
		Owned:    repos.Owned,
		Actions:  repos.Actions,
		Gateway:  gw,
		Sessions: sessions,
		Online:   monitor,
		Notifier: monitor,
		Logger:   logger,
		Interval: cfg.SyncInterval,
	})

	catalogSvc := services.NewCatalogService(services.CatalogOptions{
		Store:     repos.Catalog,
		Owned:     repos.Owned,
		Meta:      repos.Metadata,
		Gateway:   gw,
		Sessions:  sessions,
		Online:    monitor,
		Logger:    logger,
		Staleness: cfg.CatalogStaleness,
		PageSize:  cfg.PageSize,
	})

	ownsSvc := services.NewOwnershipService(services.OwnershipOptions{
		DB:       repos.DB,
		Owned:    repos.Owned,
		Actions:  repos.Actions,
		Catalog:  repos.Catalog,
		Gateway:  gw,
		Sessions: sessions,
		Online:   monitor,
		Logger:   logger,
		PageSize: cfg.PageSize,
	})

	accountSvc := services.NewAccountService(services.AccountOptions{
		DB:       repos.DB,
		Owned:    repos.Owned,
		Actions:  repos.Actions,
		Profiles: repos.Profile,
		Gateway:  gw,
		Sessions: sessions,
		Drainer:  manager,
		Logger:   logger,
	})

	return &App{
		config:   cfg,
		repos:    repos,
		monitor:  monitor,
		manager:  manager,
		sessions: sessions,
		account:  accountSvc,
		catalog:  catalogSvc,
		owns:     ownsSvc,
		logger:   logger,
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the background loops and blocks in the REPL until the user
// exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.repos.DB.Close()

	a.monitor.Start(ctx)
	defer a.monitor.Stop()
	go a.manager.Run(ctx)

	// Best effort; offline startups serve whatever is cached.
	if err := a.catalog.Refresh(ctx, false); err != nil {
		a.logger.Warn(ctx, "catalog refresh failed", "error", err)
	}

	printlnFn("CatchDex CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

// status renders the prompt segment: username, mode, connectivity.
func (a *App) status() string {
	sess := a.sessions.Current()
	if !sess.LoggedIn() {
		return "(anonymous)"
	}
	link := "offline"
	if a.monitor.Online() {
		link = "online"
	}
	return fmt.Sprintf("(%s %s %s)", sess.Username, sess.Mode, link)
}

func (a *App) isLoggedIn() bool {
	sess := a.sessions.Current()
	return sess.LoggedIn()
}
