package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/config"
	"github.com/rustyeddy/killswitch/internal/logger"
	"github.com/rustyeddy/killswitch/internal/metrics"
	"github.com/rustyeddy/killswitch/journal"
	"github.com/rustyeddy/killswitch/orchestrator"
)

// app is everything a command needs once the accounts file is loaded.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	journal journal.Journal
	source  *calendar.FeedSource
	orch    *orchestrator.Orchestrator
}

func (rc *RootConfig) load() (*config.Config, error) {
	cfg, err := config.LoadFromFile(rc.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", rc.ConfigPath, err)
	}
	if rc.LogLevel != "" {
		cfg.LogLevel = rc.LogLevel
	}
	if rc.LogFormat != "" {
		cfg.LogFormat = rc.LogFormat
	}
	return cfg, nil
}

// setup loads the accounts file and builds the shared components. The
// journal is only opened when withJournal is set.
func (rc *RootConfig) setup(withJournal bool) (*app, error) {
	cfg, err := rc.load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	accounts, err := orchestrator.FromConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		journal: journal.Nop{},
		source:  calendar.NewFeedSource(cfg.CalendarURL, cfg.HTTPTimeout.Std()),
	}
	if withJournal {
		j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
	}

	a.orch = orchestrator.New(accounts, log)
	a.orch.Journal = a.journal
	a.orch.Metrics = a.metrics
	a.orch.Parallel = cfg.IsParallel()
	return a, nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		a.log.Error("close journal", zap.String("op", "journal"), zap.Error(err))
	}
	_ = a.log.Sync()
}
