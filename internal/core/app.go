package core

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/vkarpal/libro-go/internal/bot"
	"github.com/vkarpal/libro-go/internal/config"
	"github.com/vkarpal/libro-go/internal/converter"
	"github.com/vkarpal/libro-go/internal/db"
	"github.com/vkarpal/libro-go/internal/imaging"
	"github.com/vkarpal/libro-go/internal/ingest"
	"github.com/vkarpal/libro-go/internal/jobs"
	"github.com/vkarpal/libro-go/internal/pipeline"
	"github.com/vkarpal/libro-go/internal/queue"
	"github.com/vkarpal/libro-go/internal/store"
	"github.com/vkarpal/libro-go/internal/translate"
	"github.com/vkarpal/libro-go/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	cfg    *config.Config
	dbConn *sql.DB
	wsHub  *websocket.Hub
	jobMgr *jobs.JobManager

	store      *store.Store
	dispatcher *queue.Dispatcher
	ingest     *ingest.Service
	bot        *bot.Handler
	watcher    *ingest.WatcherService
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, running migrations
// and wiring the processing pipeline to the per-user queue dispatcher.
func New() (*App, error) {
	// Load configuration from config.yml
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize the database connection
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		// Close the DB connection before failing.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return NewFromConfig(cfg, database), nil
}

// NewFromConfig wires an App from an already loaded configuration and an
// open, migrated database. Used directly by tests.
func NewFromConfig(cfg *config.Config, database *sql.DB) *App {
	app := &App{
		cfg:    cfg,
		dbConn: database,
		wsHub:  websocket.NewHub(),
		store:  store.New(database),
	}
	go app.wsHub.Run()

	app.jobMgr = jobs.NewManager(app)
	jobs.RegisterJobs(app.jobMgr)

	engine := converter.New(cfg.Converter.Path, cfg.ConverterTimeout())
	client := translate.New(cfg.Translation.TranslateURL, cfg.Translation.SummaryURL, cfg.TranslationTimeout())

	pl := &pipeline.Pipeline{
		Translator: client,
		Summarizer: client,
		Converter:  engine,
		Recompress: imaging.Recompress,
		TargetLang: cfg.Translation.TargetLanguage,
		APIKey:     cfg.Translation.APIKey,
		Workers:    cfg.Pipeline.Workers,
	}

	app.ingest = ingest.New(app.store, engine)
	notifier := NewNotifier(app.wsHub, cfg.Output.Path)
	app.dispatcher = queue.New(app.store, pl, app.ingest, notifier)
	app.bot = bot.NewHandler(app.store)

	if cfg.DropFolder.Path != "" {
		app.watcher = ingest.NewWatcherService(
			cfg.DropFolder.Path, cfg.DropFolder.OwnerID, cfg.Pipeline.Watermarks,
			app.ingest, app.store, app.dispatcher)
	}

	log.Println("Core application setup complete.")
	return app
}

// Start resumes persisted queues, starts the drop-folder watcher and the
// background job scheduler.
func (a *App) Start() error {
	if err := a.dispatcher.Resume(); err != nil {
		return fmt.Errorf("failed to resume queues: %w", err)
	}
	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			return fmt.Errorf("failed to start drop folder watcher: %w", err)
		}
	}
	jobs.StartJobs(a)
	return nil
}

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.dbConn != nil {
		a.dbConn.Close()
	}
}

func (a *App) Config() *config.Config       { return a.cfg }
func (a *App) DB() *sql.DB                  { return a.dbConn }
func (a *App) WsHub() *websocket.Hub        { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager { return a.jobMgr }
func (a *App) Store() *store.Store          { return a.store }
func (a *App) Dispatcher() *queue.Dispatcher { return a.dispatcher }
func (a *App) Ingest() *ingest.Service      { return a.ingest }
func (a *App) Bot() *bot.Handler            { return a.bot }
