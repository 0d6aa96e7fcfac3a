package middleware

import (
	"context"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/weftlabs/weft/internal/pipeline"
	"github.com/weftlabs/weft/internal/queue"
	"github.com/weftlabs/weft/pkg/query"
	"github.com/weftlabs/weft/pkg/store"
)

// App carries the shared server state. The engine and report are swapped
// atomically after each rebuild; requests always see a consistent pair.
type App struct {
	Store store.GraphStore
	Queue *amqp091.Channel

	// Rebuild runs the pipeline in-process. Used when no queue is
	// configured; otherwise rebuild requests are published to the worker.
	Rebuild func(ctx context.Context, job queue.RebuildJob) (*pipeline.Report, error)

	mu     sync.RWMutex
	engine *query.Engine
	report *pipeline.Report
}

// SetState publishes the engine and report from a finished build.
func (a *App) SetState(engine *query.Engine, report *pipeline.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.engine = engine
	a.report = report
}

// Engine returns the current query engine, nil before the first build.
func (a *App) Engine() *query.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// Report returns the latest build report, nil before the first build.
func (a *App) Report() *pipeline.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
