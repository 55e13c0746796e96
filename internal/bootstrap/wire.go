//go:build wireinject

package bootstrap

import (
	"context"

	httpserver "bcchrates-service/internal/infrastructure/http"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideStore,
	ProvideRateSource,
	ProvideCatalog,
	ProvideRegistry,
	ProvideMetrics,
	ProvideRunLock,
	ProvideServiceOptions,
)

var serviceSet = wire.NewSet(
	ProvideAggregator,
	ProvideDeriver,
	ProvideSyncEngine,
)

// InitAPI builds the HTTP server with its cleanup.
func InitAPI(ctx context.Context) (*httpserver.Server, func(), error) {
	wire.Build(
		infraSet,
		serviceSet,
		ProvideTriggers,
		ProvideQueryService,
		ProvideHTTPServer,
	)
	return nil, nil, nil
}

// InitWorker builds the scheduler process with its cleanup.
func InitWorker(ctx context.Context) (WorkerApp, func(), error) {
	wire.Build(
		infraSet,
		serviceSet,
		ProvideNotifier,
		ProvideSupervisor,
		ProvideWorkerApp,
	)
	return WorkerApp{}, nil, nil
}
