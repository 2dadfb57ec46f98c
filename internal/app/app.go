package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/email"
	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/errorlog"
	"github.com/altafino/imap-message-filter/internal/filter"
	"github.com/altafino/imap-message-filter/internal/scheduler"
	"github.com/altafino/imap-message-filter/internal/types"
)

// ErrSchedulingDisabled is returned by Start when scheduling.enabled is off
var ErrSchedulingDisabled = errors.New("scheduling is disabled, set scheduling.enabled to true")

// Session is a connected mail store
type Session interface {
	engine.MailStore
	Close() error
}

// Connector opens a session for cfg
type Connector func(ctx context.Context, cfg *types.Config, logger *slog.Logger) (Session, error)

// ConnectIMAP is the default Connector
func ConnectIMAP(ctx context.Context, cfg *types.Config, logger *slog.Logger) (Session, error) {
	store := email.NewIMAPStore(cfg.IMAP, cfg.Filters.FetchBody, logger)
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// App runs the rules file against a mailbox, once or on a schedule
type App struct {
	cfg     *types.Config
	logger  *slog.Logger
	connect Connector

	mu    sync.Mutex
	rules filter.RuleSet

	scheduler *scheduler.Scheduler
	watcher   *config.FileWatcher
	wg        sync.WaitGroup
}

// New creates a new application instance and loads the rules file
func New(cfg *types.Config, logger *slog.Logger, connect Connector) *App {
	if connect == nil {
		connect = ConnectIMAP
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		connect: connect,
	}
	a.ReloadRules()
	return a
}

// Rules returns the currently loaded rule set
func (a *App) Rules() filter.RuleSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rules
}

// ReloadRules reads the rules file again. A missing or invalid file
// leaves an empty rule set.
func (a *App) ReloadRules() filter.RuleSet {
	rules := filter.Load(a.cfg.Filters.Path, a.logger)
	a.mu.Lock()
	a.rules = rules
	a.mu.Unlock()
	return rules
}

// NewestFirst orders ids by descending UID
func NewestFirst(ids []engine.MessageID) []engine.MessageID {
	out := make([]engine.MessageID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Run connects, selects params.Folder, searches it and applies the rules
// to the newest messages first. Action failures end up in the summary and
// in the error log; a returned error means the run could not complete.
func (a *App) Run(ctx context.Context, params types.RunParams) (*engine.RunSummary, error) {
	rules := a.Rules()
	if rules.Enabled() == 0 {
		a.logger.Warn("no enabled filters, nothing to do", "path", a.cfg.Filters.Path)
		return &engine.RunSummary{DryRun: params.DryRun}, nil
	}

	session, err := a.connect(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("failed to close connection", "error", err)
		}
	}()

	status, err := session.SelectFolder(ctx, params.Folder)
	if err != nil {
		return nil, err
	}

	ids, err := session.Search(ctx, engine.SearchCriteria{Unseen: params.Search == "unseen"})
	if err != nil {
		return nil, err
	}
	a.logger.Info("searched folder",
		"folder", status.Name,
		"total", status.Total,
		"candidates", len(ids),
		"search", params.Search,
	)

	executor := engine.NewExecutor(session, rules, a.logger)
	summary, runErr := executor.Apply(ctx, NewestFirst(ids), engine.Options{
		DryRun:   params.DryRun,
		RuleName: params.Rule,
		Limit:    params.Limit,
	})

	a.recordErrors(params.Folder, summary)
	return summary, runErr
}

func (a *App) recordErrors(folder string, summary *engine.RunSummary) {
	if summary == nil || len(summary.Errors) == 0 {
		return
	}
	manager, err := errorlog.NewManager(a.cfg, a.logger)
	if err != nil {
		a.logger.Error("failed to initialize error logger", "error", err)
		return
	}
	defer manager.Close()

	if _, err := manager.LogRun(folder, summary); err != nil {
		a.logger.Error("failed to write error log", "error", err)
	}
}

// Start schedules Run with params and reloads the rules file whenever it
// changes
func (a *App) Start(ctx context.Context, params types.RunParams) error {
	if !a.cfg.Scheduling.Enabled {
		return ErrSchedulingDisabled
	}

	watcher, err := config.WatchFile(a.cfg.Filters.Path, a.logger)
	if err != nil {
		a.logger.Warn("rules file will not be reloaded", "error", err)
	} else {
		a.watcher = watcher
		a.wg.Add(1)
		go a.watchRules()
	}

	a.scheduler = scheduler.NewScheduler(a.logger)
	if err := a.scheduler.UpdateJob("apply", a.cfg.Scheduling, func() {
		summary, err := a.Run(ctx, params)
		if err != nil {
			a.logger.Error("scheduled run failed", "error", err)
			return
		}
		a.logger.Info("scheduled run finished",
			"processed", summary.Processed,
			"actions", summary.Actions(),
			"errors", len(summary.Errors),
		)
	}); err != nil {
		return err
	}

	a.scheduler.Start()
	if next, ok := a.scheduler.NextRun("apply"); ok {
		a.logger.Info("scheduler started", "next_run", next)
	}
	return nil
}

// Stop gracefully stops the scheduler and the rules watcher
func (a *App) Stop() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop watcher", "error", err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.wg.Wait()
}

func (a *App) watchRules() {
	defer a.wg.Done()

	for range a.watcher.Changes() {
		rules := a.ReloadRules()
		a.logger.Info("reloaded filters", "total", len(rules), "enabled", rules.Enabled())
	}
}

// Describe renders the connection target for log and CLI output
func Describe(cfg *types.Config) string {
	return fmt.Sprintf("%s@%s:%d", cfg.IMAP.Username, cfg.IMAP.Host, cfg.IMAP.Port)
}
