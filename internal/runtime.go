package internal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"

	geocoder_adapter "unification-service/internal/adapters/geocoder"
	logger_adapter "unification-service/internal/adapters/logger"
	metrics_adapter "unification-service/internal/adapters/metrics"
	postgres_adapter "unification-service/internal/adapters/postgres"
	rabbitmq_adapter "unification-service/internal/adapters/rabbitmq"
	"unification-service/internal/configs"
	"unification-service/internal/constants"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/port"
	"unification-service/internal/core/usecase"
	fluentlogger "unification-service/pkg/fluent_logger"
	"unification-service/pkg/postgres"
	"unification-service/pkg/rabbitmq/rabbitmq_common"
	"unification-service/pkg/rabbitmq/rabbitmq_producer"
)

// RuntimeOptions - чем CLI-драйверы отличаются от сервиса
type RuntimeOptions struct {
	// EnvPath - явный .env; пусто - .env из рабочего каталога, если он есть
	EnvPath string
	// LogWriter - куда писать stdout-логи. Интерактивный матчер отдает os.Stderr.
	LogWriter io.Writer
	// Component попадает в поле component базового логгера
	Component string
}

// Runtime - общая проводка: конфиг, логгеры, хранилище, геокодер, слияние, метрики
type Runtime struct {
	Config    *configs.AppConfig
	Logger    port.LoggerPort
	Metrics   *metrics_adapter.PrometheusAdapter
	Sources   *postgres_adapter.SourceRepository
	Canonical *postgres_adapter.CanonicalRepository
	Merger    *merger.Merger

	dbPool         *pgxpool.Pool
	fluentClient   *fluent.Fluent
	connManager    *rabbitmq_common.ConnectionManager
	eventsProducer *rabbitmq_producer.Publisher
}

// NewRuntime поднимает все, что нужно и сервису, и консольным драйверам.
// Ошибка здесь - ошибка конфигурации или хранилища: драйверы выходят с кодом 1.
func NewRuntime(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	appConfig, err := configs.LoadConfig(opts.EnvPath)
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	baseLogger, fluentClient, err := newLogger(appConfig, opts)
	if err != nil {
		return nil, err
	}
	appLogger := baseLogger.WithFields(port.Fields{"component": "runtime"})

	dbPool, err := postgres.NewClient(ctx, postgres.Config{
		DatabaseURL: appConfig.Database.URL,
		Schema:      appConfig.Database.Name,
	})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		closeFluent(fluentClient)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	appLogger.Info("Successfully connected to PostgreSQL pool!", port.Fields{"schema": appConfig.Database.Name})

	rt := &Runtime{
		Config:       appConfig,
		Logger:       baseLogger,
		dbPool:       dbPool,
		fluentClient: fluentClient,
	}

	if err := postgres_adapter.EnsureSchema(ctx, dbPool, appConfig.Database.Name); err != nil {
		appLogger.Error("Failed to ensure database schema", err, nil)
		rt.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	if rt.Sources, err = postgres_adapter.NewSourceRepository(dbPool); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create source repository: %w", err)
	}
	if rt.Canonical, err = postgres_adapter.NewCanonicalRepository(dbPool); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create canonical repository: %w", err)
	}
	appLogger.Info("Postgres repositories initialized.", nil)

	rt.Metrics = metrics_adapter.NewPrometheusAdapter()

	geocoder, err := geocoder_adapter.NewGeocodeMapsAdapter(geocoder_adapter.Config{
		BaseURL:   appConfig.Geocoder.BaseURL,
		APIKey:    appConfig.Geocoder.APIKey,
		UserAgent: appConfig.Geocoder.UserAgent,
		RateSleep: appConfig.Geocoder.RateSleep,
		Timeout:   appConfig.Geocoder.Timeout,
	}, rt.Metrics)
	if err != nil {
		appLogger.Error("Failed to create geocoder adapter", err, nil)
		rt.Close()
		return nil, err
	}
	if appConfig.Geocoder.APIKey == "" {
		appLogger.Warn("GEOCODE_MAPS_API_KEY is not set, addresses will come from sources only", nil)
	}

	rt.Merger = merger.New(geocoder, merger.Options{
		DefaultCity:        appConfig.Matching.DefaultCity,
		DisagreementMeters: appConfig.Matching.CoordinateDisagreementMeters,
	})
	return rt, nil
}

func newLogger(appConfig *configs.AppConfig, opts RuntimeOptions) (port.LoggerPort, *fluent.Fluent, error) {
	var activeLoggers []port.LoggerPort

	writer := opts.LogWriter
	if writer == nil {
		writer = os.Stdout
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Writer:   writer,
		Level:    logger_adapter.ParseLevel(appConfig.StdoutLogger.Level),
		IsJSON:   !appConfig.IsDevelopment() && opts.LogWriter == nil,
		UseColor: appConfig.IsDevelopment(),
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		var err error
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, logger_adapter.ParseLevel(appConfig.FluentBit.Level))
		if err != nil {
			fluentClient.Close()
			return nil, nil, fmt.Errorf("failed to create fluentbit adapter: %w", err)
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		closeFluent(fluentClient)
		return nil, nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	fields := port.Fields{"service_name": appConfig.AppName}
	if opts.Component != "" {
		fields["component"] = opts.Component
	}
	baseLogger := multiLogger.WithFields(fields)
	baseLogger.Debug("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})
	return baseLogger, fluentClient, nil
}

// Events подключается к брокеру и возвращает публикатор событий unification_exchange.
// При RABBITMQ_ENABLED=false возвращает nil: писатель работает без событий.
func (rt *Runtime) Events() (port.UnificationEventsPort, error) {
	if !rt.Config.RabbitMQ.Enabled {
		rt.Logger.Warn("RabbitMQ is disabled: unification events are not published", nil)
		return nil, nil
	}
	if err := rt.Config.RequireRabbitMQ(); err != nil {
		return nil, err
	}
	if rt.connManager == nil {
		connManagerLogger := rt.Logger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
		connManager, err := rabbitmq_common.NewConnectionManager(
			rabbitmq_common.Config{URL: rt.Config.RabbitMQ.URL},
			rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection manager: %w", err)
		}
		rt.connManager = connManager
		rt.Logger.Info("RabbitMQ Connection Manager initialized.", nil)
	}

	if rt.eventsProducer == nil {
		producerLogger := rt.Logger.WithFields(port.Fields{"component": "rabbitmq_producer"})
		eventProducer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: rt.Config.RabbitMQ.URL},
			ExchangeName:             constants.UnificationExchange,
			ExchangeType:             constants.UnificationExchangeType,
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
			Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(producerLogger),
		}, rt.connManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create event producer: %w", err)
		}
		rt.eventsProducer = eventProducer
		rt.Logger.Info("RabbitMQ Event Producer initialized.", nil)
	}

	publisher, err := rabbitmq_adapter.NewUnificationEventsPublisher(rt.eventsProducer)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// ConnectionManager доступен после успешного Events при включенном брокере
func (rt *Runtime) ConnectionManager() *rabbitmq_common.ConnectionManager {
	return rt.connManager
}

// Writer - писатель канонических записей. events может быть nil: события не публикуются.
func (rt *Runtime) Writer(events port.UnificationEventsPort) *usecase.CanonicalWriter {
	return usecase.NewCanonicalWriter(rt.Canonical, rt.Sources, events, rt.Metrics)
}

func (rt *Runtime) MatchProbeUseCase(writer *usecase.CanonicalWriter, createdBy string) *usecase.MatchProbeUseCase {
	return usecase.NewMatchProbeUseCase(
		usecase.NewFindCandidatesUseCase(rt.Sources),
		rt.Sources,
		rt.Canonical,
		rt.Merger,
		writer,
		rt.Metrics,
		createdBy,
	)
}

// Close освобождает брокер, пул и fluent-клиент; повторный вызов безопасен
func (rt *Runtime) Close() {
	if rt.eventsProducer != nil {
		if err := rt.eventsProducer.Close(); err != nil {
			rt.Logger.Error("Error closing event producer", err, nil)
		}
		rt.eventsProducer = nil
	}
	if rt.connManager != nil {
		if err := rt.connManager.Close(); err != nil {
			rt.Logger.Error("Error closing RabbitMQ connection manager", err, nil)
		}
		rt.connManager = nil
	}
	if rt.dbPool != nil {
		rt.dbPool.Close()
		rt.dbPool = nil
		rt.Logger.Info("PostgreSQL pool closed.", nil)
	}
	closeFluent(rt.fluentClient)
	rt.fluentClient = nil
}

func closeFluent(client *fluent.Fluent) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		// fluent может быть уже недоступен
		fmt.Fprintf(os.Stderr, "ERROR: Error closing fluent client: %v\n", err)
	}
}
