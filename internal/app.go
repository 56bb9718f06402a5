package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"unification-service/internal/adapters/console"
	rabbitmq_adapter "unification-service/internal/adapters/rabbitmq"
	"unification-service/internal/adapters/rest"
	"unification-service/internal/constants"
	"unification-service/internal/core/port"
	"unification-service/internal/core/usecase"
	"unification-service/pkg/rabbitmq/rabbitmq_common"
	"unification-service/pkg/rabbitmq/rabbitmq_consumer"
)

const shutdownTimeout = 15 * time.Second

// App – сервисный режим: REST админки, слушатель match_requests и /metrics
type App struct {
	runtime   *Runtime
	apiServer *rest.Server
	logger    port.LoggerPort

	matchRequestListener port.EventListenerPort
}

// NewApp - composition root сервиса
func NewApp() (*App, error) {
	rt, err := NewRuntime(context.Background(), RuntimeOptions{})
	if err != nil {
		return nil, err
	}
	appConfig := rt.Config
	baseLogger := rt.Logger
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})

	application := &App{runtime: rt, logger: appLogger}

	events, err := rt.Events()
	if err != nil {
		appLogger.Error("Failed to initialize unification events publisher", err, nil)
		rt.Close()
		return nil, err
	}

	// ИНИЦИАЛИЗАЦИЯ USE CASES
	writer := rt.Writer(events)
	matchProbeUseCase := rt.MatchProbeUseCase(writer, constants.CreatedByAutoMatcher)
	findCandidatesUseCase := usecase.NewFindCandidatesUseCase(rt.Sources)
	manualMergeUseCase := usecase.NewManualMergeUseCase(rt.Sources, rt.Merger, writer)
	futureProjectUseCase := usecase.NewFutureProjectUseCase(rt.Sources, rt.Canonical, rt.Merger, writer)
	updateUnifiedUseCase := usecase.NewUpdateUnifiedUseCase(rt.Canonical, writer)
	rebuildUseCase := usecase.NewRebuildUseCase(rt.Sources, rt.Canonical, rt.Merger, writer)
	getUnifiedUseCase := usecase.NewGetUnifiedUseCase(rt.Canonical)
	listUnmatchedUseCase := usecase.NewListUnmatchedUseCase(rt.Sources)
	appLogger.Info("All use cases initialized.", nil)

	if appConfig.RabbitMQ.Enabled {
		consumerCfg := rabbitmq_consumer.ConsumerConfig{
			Config:                 rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			QueueName:              constants.QueueMatchRequests,
			DurableQueue:           true,
			DeclareQueue:           true,
			ExchangeNameForBind:    constants.UnificationExchange,
			DeclareExchangeForBind: true,
			ExchangeTypeForBind:    constants.UnificationExchangeType,
			DurableExchangeForBind: true,
			RoutingKeyForBind:      constants.RoutingKeyMatchRequest,
			PrefetchCount:          1,
			ConsumerTag:            "unification-match-requests",

			EnableRetryMechanism: true,
			RetryExchange:        constants.QueueMatchRequests + "_retry_ex",
			RetryQueue:           constants.QueueMatchRequests + "_retry_wait_10s",
			RetryTTL:             10000,
			FinalDLXExchange:     constants.FinalDLXExchange,
			FinalDLQ:             constants.FinalDLQ,
			FinalDLQRoutingKey:   constants.FinalDLQRoutingKey,
			MaxRetries:           3,

			Logger: rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_consumer"})),
		}
		listener, err := rabbitmq_adapter.NewMatchRequestConsumerAdapter(
			consumerCfg,
			rt.ConnectionManager(),
			matchProbeUseCase,
			console.NewBatchDecider(appConfig.Matching.AutoAcceptScore),
			baseLogger,
		)
		if err != nil {
			appLogger.Error("Failed to create match request listener", err, nil)
			application.closeResources()
			return nil, err
		}
		application.matchRequestListener = listener
		appLogger.Info("Match Request Listener initialized.", nil)
	}

	router := rest.NewRouter(
		rest.NewMatchesHandler(manualMergeUseCase, listUnmatchedUseCase, findCandidatesUseCase),
		rest.NewUnifiedHandler(getUnifiedUseCase, updateUnifiedUseCase, rebuildUseCase, futureProjectUseCase),
		rt.Metrics.Handler(),
		appConfig.Rest.CORSAllowedOrigins,
		baseLogger,
	)
	application.apiServer = rest.NewServer(appConfig.Rest.PORT, router, baseLogger)
	appLogger.Info("REST API server configured.", nil)

	return application, nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.apiServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		a.closeResources()
	}()

	a.logger.Info("Application is starting...", nil)

	errorsCh := make(chan error, 2)

	if a.matchRequestListener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listenerLogger := a.logger.WithFields(port.Fields{"listener_name": "Match Request Listener"})
			listenerLogger.Info("Starting listener...", nil)

			if err := a.matchRequestListener.Start(appCtx); err != nil {
				listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
				errorsCh <- fmt.Errorf("match request listener error: %w", err)
			} else {
				listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
			}
		}()
	}

	go func() {
		if err := a.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorsCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case runErr = <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", runErr, nil)
	}

	cancelApp()
	return runErr
}

// closeResources закрывает слушателя, затем runtime (продюсер, брокер, пул, fluent)
func (a *App) closeResources() {
	if a.matchRequestListener != nil {
		if err := a.matchRequestListener.Close(); err != nil {
			a.logger.Error("Error closing match request listener", err, nil)
		}
		a.matchRequestListener = nil
	}
	a.logger.Info("Application shut down gracefully.", nil)
	a.runtime.Close()
}
