package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	"SMCFlow/internal/entitlement"
	"SMCFlow/internal/handler/api"
	mid "SMCFlow/internal/middleware"
	internalrepo "SMCFlow/internal/repository"
	"SMCFlow/internal/service/feed"
	"SMCFlow/internal/storage/postgres"
	"SMCFlow/internal/strategy"
	"SMCFlow/internal/structure"
	"SMCFlow/internal/tracker"
	"SMCFlow/internal/usecase"
	pkgcache "SMCFlow/pkg/cache"
	pkgch "SMCFlow/pkg/clickhouse"
	"SMCFlow/pkg/config"
	pkgkafka "SMCFlow/pkg/kafka"
	applogger "SMCFlow/pkg/logger"
	"SMCFlow/pkg/metrics"
	"SMCFlow/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return repository.NopMetrics{}
	}
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCandleStore creates the ClickHouse candle store and its schema.
func ProvideCandleStore(chClient *pkgch.Client, lgr *applogger.Logger) (repository.CandleStore, error) {
	store := internalrepo.NewCHCandleStore(chClient)
	store.SetLogger(lgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePostgresPool connects to Postgres and ensures the schema.
func ProvidePostgresPool(cfg *config.Config) (*postgres.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return pool, nil
}

// ProvideSignalStore creates the Postgres signal store.
func ProvideSignalStore(pool *postgres.Pool) repository.SignalStore {
	return postgres.NewSignalStore(pool)
}

// ProvideTradeStore creates the Postgres trade store.
func ProvideTradeStore(pool *postgres.Pool) repository.TradeStore {
	return postgres.NewTradeStore(pool)
}

// ProvideGrantStore creates the Postgres grant store.
func ProvideGrantStore(pool *postgres.Pool) repository.GrantStore {
	return postgres.NewGrantStore(pool)
}

// ProvideEquityStore creates the Postgres equity snapshot store.
func ProvideEquityStore(pool *postgres.Pool) repository.EquityStore {
	return postgres.NewEquityStore(pool)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher creates the Kafka signal publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	topic := cfg.Kafka.SignalsTopic
	if topic == "" {
		topic = "smc.signals"
	}
	return internalrepo.NewKafkaSignalPublisher(producer, topic)
}

// ProvideKafkaConsumer creates a Kafka consumer for the candle topic. The
// consumer is only built when Kafka is the configured feed.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideQuotaStore creates the daily quota store: Redis when configured so
// quotas survive restarts and shard across instances, in-memory otherwise.
func ProvideQuotaStore(cfg *config.Config) repository.QuotaStore {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return entitlement.NewRedisQuotaStore(client, "smcflow")
	}
	return entitlement.NewMemoryQuotaStore()
}

// ProvideGate creates the entitlement gate.
func ProvideGate(quotas repository.QuotaStore, m repository.Metrics) *entitlement.Gate {
	return entitlement.NewGate(quotas, m)
}

// ProvideUserPlans converts configured subscriptions into domain plans.
func ProvideUserPlans(cfg *config.Config) []*models.UserPlan {
	plans := make([]*models.UserPlan, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		mods := make([]models.SMCModel, 0, len(u.ModelEntitlements))
		for _, m := range u.ModelEntitlements {
			mods = append(mods, models.SMCModel(m))
		}
		plans = append(plans, &models.UserPlan{
			UserID:            u.UserID,
			AssetEntitlements: u.AssetEntitlements,
			ModelEntitlements: mods,
			DailySignalQuota:  u.DailySignalQuota,
		})
	}
	return plans
}

func engineTimeframes(cfg *config.Config) []models.Timeframe {
	tfs := make([]models.Timeframe, 0, len(cfg.Engine.Timeframes))
	for _, s := range cfg.Engine.Timeframes {
		tfs = append(tfs, models.NormalizeTimeframe(s))
	}
	return tfs
}

// ProvideEngine creates the signal engine.
func ProvideEngine(
	cfg *config.Config,
	plans []*models.UserPlan,
	gate *entitlement.Gate,
	publisher repository.SignalPublisher,
	signals repository.SignalStore,
	trades repository.TradeStore,
	grants repository.GrantStore,
	equitySnaps repository.EquityStore,
	lgr *applogger.Logger,
	m repository.Metrics,
) *usecase.Engine {
	mods := make([]models.SMCModel, 0, len(cfg.Engine.Models))
	for _, s := range cfg.Engine.Models {
		mods = append(mods, models.SMCModel(s))
	}
	return usecase.NewEngine(
		usecase.EngineConfig{
			Timeframes: engineTimeframes(cfg),
			Detector: structure.Config{
				SwingWindow:     cfg.Engine.SwingWindow,
				ATRPeriod:       cfg.Engine.ATRPeriod,
				DisplacementATR: cfg.Engine.DisplacementATR,
			},
			Generator: strategy.GeneratorConfig{
				Cooldown: cfg.Engine.Cooldown,
				Models:   mods,
			},
			Tracker: tracker.Config{
				MaxHolding:  cfg.Engine.MaxHolding,
				Expiry:      cfg.Engine.Expiry,
				RiskPercent: cfg.Engine.RiskPercent,
			},
			StartingCapital: cfg.Engine.StartingCapital,
			QueueSize:       cfg.Engine.QueueSize,
		},
		plans,
		gate,
		publisher,
		usecase.EngineStores{Signals: signals, Trades: trades, Grants: grants, Equity: equitySnaps},
		lgr,
		m,
	)
}

// ProvideCandleProcessor creates the candle processor use case.
func ProvideCandleProcessor(engine *usecase.Engine, store repository.CandleStore, m repository.Metrics) *usecase.CandleProcessor {
	return usecase.NewCandleProcessor(engine, store, m)
}

// ProvideIngestPipeline builds the validation and retry boundary in front of
// the processor.
func ProvideIngestPipeline(proc *usecase.CandleProcessor, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(proc, m, mid.WithBufferSize(2000))
}

// ProvideCandleStream creates the WebSocket candle stream.
func ProvideCandleStream(cfg *config.Config, lgr *applogger.Logger) repository.CandleStream {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Engine.Assets,
		engineTimeframes(cfg),
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		lgr,
	)
}

// ProvideCandleCollector creates the collector that feeds the pipeline from
// the live stream.
func ProvideCandleCollector(stream repository.CandleStream, m repository.Metrics, pipe *mid.IngestPipeline) *usecase.CandleCollector {
	return usecase.NewCandleCollector(stream, m, pipe)
}

// ProvideKafkaCandlesHandler registers the handler for the candle topic.
func ProvideKafkaCandlesHandler(pipe *mid.IngestPipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, pipe, m)
}

// ProvideCacheService creates the report cache: Redis when configured,
// in-process otherwise.
func ProvideCacheService(cfg *config.Config) pkgcache.Service {
	if cfg.Redis.Enabled {
		host, port := splitHostPort(cfg.Redis.Addr)
		c, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
			pkgcache.WithRedisPrefix("smcflow"),
		)
		if err == nil {
			return c
		}
	}
	return pkgcache.NewMemoryCache()
}

// ProvideReportingUseCase creates the query-side use case.
func ProvideReportingUseCase(
	engine *usecase.Engine,
	signals repository.SignalStore,
	trades repository.TradeStore,
	grants repository.GrantStore,
	equitySnaps repository.EquityStore,
	cache pkgcache.Service,
	lgr *applogger.Logger,
	m repository.Metrics,
) *usecase.ReportingUseCase {
	uc := usecase.NewReportingUseCase(engine, signals, trades, grants, equitySnaps, lgr, m)
	uc.SetCache(cache)
	return uc
}

// ProvideCandlesUseCase creates the candle history use case.
func ProvideCandlesUseCase(store repository.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideReportingHandler creates the HTTP handler.
func ProvideReportingHandler(lgr *applogger.Logger, reporting *usecase.ReportingUseCase, candles *usecase.CandlesUseCase) *api.ReportingHandler {
	return api.NewReportingHandler(lgr, reporting, candles)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	engine *usecase.Engine,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	handler *api.ReportingHandler,
	chClient *pkgch.Client,
	pool *postgres.Pool,
	publisher repository.SignalPublisher,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, lgr, engine, collector, consumer, kh, handler, server.Resources{
		ClickHouse: chClient,
		Postgres:   pool,
		Publisher:  publisher,
	})
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return host, 6379
	}
	return host, port
}
