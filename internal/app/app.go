package app

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/handlers"
	"github.com/ternarybob/mapscout/internal/interfaces"
	"github.com/ternarybob/mapscout/internal/services/events"
	"github.com/ternarybob/mapscout/internal/services/history"
	"github.com/ternarybob/mapscout/internal/services/scraper"
	"github.com/ternarybob/mapscout/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	db       *badger.BadgerDB
	RunStore interfaces.RunStore

	EventService   interfaces.EventService
	ScraperService interfaces.ScraperService
	HistoryService *history.Service

	SearchHandler  *handlers.SearchHandler
	ControlHandler *handlers.ControlHandler
	RunsHandler    *handlers.RunsHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler
}

// New wires configuration, storage, services and handlers together
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	// Run history persistence is optional; everything else works without it
	if config.History.Enabled {
		db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.RunStore = badger.NewRunStorage(db, logger)
	}

	a.EventService = events.NewService(logger)
	a.ScraperService = scraper.NewService(config, a.EventService, a.RunStore, logger)

	a.HistoryService = history.NewService(config.History, a.RunStore, logger)
	if err := a.HistoryService.Start(); err != nil {
		return nil, err
	}

	a.SearchHandler = handlers.NewSearchHandler(a.ScraperService, a.EventService, logger)
	a.ControlHandler = handlers.NewControlHandler(a.ScraperService, logger)
	a.RunsHandler = handlers.NewRunsHandler(a.RunStore, logger)
	a.StatusHandler = handlers.NewStatusHandler(a.ScraperService, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger, &config.WebSocket)

	logger.Info().
		Bool("history", config.History.Enabled).
		Bool("scraper_enabled", config.Scraper.Enabled).
		Msg("Application initialized")

	return a, nil
}

// Close releases application resources in reverse dependency order
func (a *App) Close() {
	a.HistoryService.Stop()

	if err := a.ScraperService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Scraper service close failed")
	}
	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Database close failed")
		}
	}

	a.Logger.Info().Msg("Application closed")
}
