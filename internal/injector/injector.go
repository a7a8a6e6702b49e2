//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/pipeline"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return log.New(log.LevelDebug)
}

func ProvideEngine(cfg pipeline.Config, sink pipeline.Sink) (*pipeline.Engine, error) {
	wire.Build(log.Provide, pipeline.New)
	return nil, nil
}
