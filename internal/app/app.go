package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/fanout"
	"github.com/ninja0404/whale-signal/internal/notifier"
	"github.com/ninja0404/whale-signal/internal/pipeline"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/server"
	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/internal/source/database"
	kafkasource "github.com/ninja0404/whale-signal/internal/source/kafka"
	"github.com/ninja0404/whale-signal/internal/state"
	"github.com/ninja0404/whale-signal/internal/stats"
	"github.com/ninja0404/whale-signal/internal/whale"
	"github.com/ninja0404/whale-signal/pkg/cache/redis"
	"github.com/ninja0404/whale-signal/pkg/database/polardbx"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	notifierAttempts = 3
	shutdownTimeout  = 15 * time.Second
)

// Application whale alert service: trade sources, the three queue stages, batch jobs and HTTP
type Application struct {
	configManager *config.Manager
	db            *gorm.DB
	caps          Capabilities
	queue         queue.Queue
	pipeline      *pipeline.Pipeline
	server        *server.Server
	stopWatch     chan struct{}
}

func New() *Application {
	return &Application{
		configManager: config.NewManager(),
		stopWatch:     make(chan struct{}),
	}
}

// Initialize loads the configuration and builds every component; nothing runs yet
func (app *Application) Initialize(configPath string, remote bool) error {
	if err := app.configManager.Load(configPath, remote); err != nil {
		return err
	}
	if err := app.configManager.InitLogger(); err != nil {
		return err
	}
	logger.Info("🚀 whale signal initializing",
		logger.String("config_path", configPath),
		logger.Bool("remote_config", remote))

	if err := app.initStores(); err != nil {
		return err
	}
	if err := app.initQueue(); err != nil {
		return err
	}
	if err := app.initPipeline(); err != nil {
		return err
	}
	app.initServer()

	logger.Info("✅ whale signal initialized")
	return nil
}

func (app *Application) initStores() error {
	if err := polardbx.SetupDatabaseFromDefaultConfig(); err != nil {
		return errors.Wrap(err, "setup database")
	}
	db, err := polardbx.GetDb()
	if err != nil {
		return err
	}
	app.db = db
	app.caps = DetectCapabilities(db)

	if err := redis.SetupRedisFromDefaultConfig(); err != nil {
		return errors.Wrap(err, "setup redis")
	}
	logger.Info("📊 stores connected")
	return nil
}

func (app *Application) initQueue() error {
	cfg := app.configManager.GetAppConfig()

	switch cfg.Queue.Backend {
	case "kafka":
		q, err := queue.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.Producer, cfg.Kafka.Consumer)
		if err != nil {
			return err
		}
		app.queue = q
	case "redis", "":
		client, err := redis.GetClient()
		if err != nil {
			return err
		}
		app.queue = queue.NewRedisQueue(client, queue.RedisOptions{
			PopTimeout:   cfg.Queue.PopTimeout.D(),
			RetryBackoff: cfg.Queue.RetryBackoff.D(),
		})
	default:
		return errors.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}

	logger.Info("📮 queue backend ready", logger.String("backend", cfg.Queue.Backend))
	return nil
}

func (app *Application) initPipeline() error {
	cfg := app.configManager.GetAppConfig()
	live := app.configManager.Live()

	client, err := redis.GetClient()
	if err != nil {
		return err
	}
	store := state.NewStore(client)

	positions := repo.NewPositionRepo(app.db)
	statsRepo := repo.NewStatsRepo(app.db)
	signals := repo.NewSignalRepo(app.db)
	markets := marketRepo(repo.NewMarketRepo(app.db), app.caps)
	subscribers := repo.NewSubscriberRepo(app.db)

	app.pipeline = pipeline.NewPipeline(app.queue)
	p := cfg.Pipeline

	if p.EnableWhale {
		engine := whale.NewEngine(positions, statsRepo, signals, live, app.queue, cfg.Queue.WhaleTrade, p.WhaleShards)
		app.pipeline.AddStage(pipeline.Stage{
			Name: "whale", Queue: cfg.Queue.TradeCreated, Workers: p.WhaleWorkers,
			Handler: engine.Handle, Stop: engine.Stop,
		})
	}

	if p.EnableAlert {
		var fetcher alert.TitleFetcher
		if cfg.Market.BaseURL != "" {
			fetcher = alert.NewMarketClient(cfg.Market.BaseURL, cfg.Market.Timeout.D(), cfg.Market.Attempts)
		}
		resolver := alert.NewResolver(store, markets, fetcher, cfg.Market.CacheTTL.D())
		engine := alert.NewEngine(signals, store, resolver, live, app.queue, cfg.Queue.AlertCreated)
		app.pipeline.AddStage(pipeline.Stage{
			Name: "alert", Queue: cfg.Queue.WhaleTrade, Workers: p.AlertWorkers,
			Handler: engine.Handle,
		})
	}

	if p.EnableFanout {
		n := cfg.Notifier
		messenger := notifier.NewRouter(
			notifier.NewTelegramClient(n.TelegramBaseURL, n.TelegramToken, n.Timeout.D(), notifierAttempts),
			notifier.NewLarkClient(n.LarkWebhookURL, n.Timeout.D(), notifierAttempts),
		)
		engine := fanout.NewEngine(subscribers, signals, store, messenger, live, app.queue, fanout.Options{
			Input:            cfg.Queue.AlertCreated,
			Operator:         n.OperatorRecipient,
			TagSecret:        n.TagSecret,
			Parallel:         p.FanoutParallel,
			SmartCollections: app.caps.SmartCollections,
		})
		app.pipeline.AddStage(pipeline.Stage{
			Name: "fanout", Queue: cfg.Queue.AlertCreated, Workers: p.FanoutWorkers,
			Handler: engine.Handle, Stop: engine.Stop,
		})
	}

	if p.EnableStatsJobs {
		scheduler := stats.NewScheduler()
		scheduler.Add(stats.NewJob(statsRepo, positions, cfg.Stats.ActiveWindow.D()), cfg.Stats.Interval.D())
		if app.caps.SmartCollections {
			scheduler.Add(stats.NewSmartJob(statsRepo), cfg.Stats.SmartInterval.D())
		}
		app.pipeline.SetScheduler(scheduler)
	}

	manager, err := app.setupSources()
	if err != nil {
		return err
	}
	app.pipeline.SetSourceManager(manager)
	return nil
}

// setupSources bridges the configured upstream feeds onto the trade queue
func (app *Application) setupSources() (*source.Manager, error) {
	cfg := app.configManager.GetAppConfig()
	manager := source.NewManager(app.queue, cfg.Queue.TradeCreated)

	if db := cfg.Source.Database; db.Enabled {
		if !app.caps.TradesRaw {
			return nil, errors.New("database source enabled but trades_raw is missing")
		}
		sourceConfig := database.SourceConfig{
			QueryInterval: db.QueryInterval.D(),
			InitWindow:    db.InitWindow.D(),
			BatchSize:     db.BatchSize,
		}
		manager.AddSource(database.NewSource(sourceConfig, repo.NewTradeRawRepo(app.db)))
		logger.Info("🗄️ database trade source configured",
			logger.String("query_interval", sourceConfig.QueryInterval.String()),
			logger.String("init_window", sourceConfig.InitWindow.String()),
			logger.Int("batch_size", sourceConfig.BatchSize))
	}

	if k := cfg.Source.Kafka; k.Enabled {
		consumer := cfg.Kafka.Consumer
		if k.GroupId != "" {
			consumer.GroupId = k.GroupId
		}
		manager.AddSource(kafkasource.NewSource(kafkasource.SourceConfig{
			Topic:       k.Topic,
			Brokers:     cfg.Kafka.Brokers,
			KafkaConfig: consumer,
		}))
		logger.Info("📡 kafka trade source configured", logger.String("topic", k.Topic))
	}
	return manager, nil
}

func (app *Application) initServer() {
	cfg := app.configManager.GetAppConfig()
	opts := server.Options{
		Addr:          cfg.Server.Addr,
		Profiles:      repo.NewPositionRepo(app.db),
		Stats:         repo.NewStatsRepo(app.db),
		Names:         alert.NewResolver(nil, marketRepo(repo.NewMarketRepo(app.db), app.caps), nil, 0),
		Pub:           app.queue,
		TradeQueue:    cfg.Queue.TradeCreated,
		PublishDirect: !cfg.Source.Database.Enabled,
		Ready:         app.pipeline.IsInitialDataLoaded,
	}
	if app.caps.TradesRaw {
		opts.Trades = repo.NewTradeRawRepo(app.db)
	}
	app.server = server.New(opts)
}

// Run starts everything and blocks until SIGINT or SIGTERM
func (app *Application) Run() error {
	if err := app.configManager.Watch(app.stopWatch); err != nil {
		logger.Warn("⚠️ config hot reload unavailable", logger.FieldErr(err))
	}
	if err := app.pipeline.Start(); err != nil {
		return err
	}
	app.server.Start()
	logger.Info("🔥 whale signal running")

	app.waitForShutdown()
	return app.Shutdown()
}

func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("📤 shutdown signal received", logger.String("signal", sig.String()))
}

// Shutdown stops intake first, then the stages, then closes the stores
func (app *Application) Shutdown() error {
	logger.Info("🛑 whale signal shutting down")
	var merr *multierror.Error

	close(app.stopWatch)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			merr = multierror.Append(merr, errors.Wrap(err, "http server"))
		}
	}
	if app.pipeline != nil {
		if err := app.pipeline.Stop(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := redis.Stop(); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, "redis"))
	}
	if err := polardbx.Stop(); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, "database"))
	}

	if err := merr.ErrorOrNil(); err != nil {
		logger.Error("❌ shutdown finished with errors", logger.FieldErr(err))
		return err
	}
	logger.Info("✨ whale signal stopped")
	return nil
}

// Start Initialize followed by Run
func (app *Application) Start(configPath string, remote bool) error {
	if err := app.Initialize(configPath, remote); err != nil {
		logger.Error("❌ initialization failed", logger.FieldErr(err))
		return err
	}
	if err := app.Run(); err != nil {
		logger.Error("❌ run failed", logger.FieldErr(err))
		return err
	}
	return nil
}
