package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weftlabs/weft/internal/ingest"
	"github.com/weftlabs/weft/internal/pipeline"
	"github.com/weftlabs/weft/internal/queue"
	mid "github.com/weftlabs/weft/internal/server/middleware"
	"github.com/weftlabs/weft/internal/util"
	"github.com/weftlabs/weft/pkg/ai"
	"github.com/weftlabs/weft/pkg/ai/openai"
	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/intent"
	"github.com/weftlabs/weft/pkg/logger"
	"github.com/weftlabs/weft/pkg/plan"
	"github.com/weftlabs/weft/pkg/query"
	"github.com/weftlabs/weft/pkg/store"
	"github.com/weftlabs/weft/pkg/store/memory"
	"github.com/weftlabs/weft/pkg/store/neo4j"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graphStore := newStore(ctx)
	defer graphStore.Close(context.Background())

	fallback := newFallback()

	app := &mid.App{Store: graphStore}
	app.Rebuild = func(ctx context.Context, job queue.RebuildJob) (*pipeline.Report, error) {
		report, err := runPipeline(ctx, graphStore, job)
		if err != nil {
			return nil, err
		}
		catalog := plan.NewNameCatalog(report.Snapshot.Nodes)
		app.SetState(query.NewEngine(graphStore, catalog, fallback), report)
		return report, nil
	}

	if host := util.GetEnv("RABBITMQ_HOST"); host != "" {
		conn := queue.Init()
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.RebuildQueue}); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = ch

		// Rebuilds now run in the worker process, which this server
		// only shares a store with. Poll the store so the name catalog
		// tracks graphs built elsewhere.
		interval := time.Duration(util.GetEnvInt("CATALOG_REFRESH_SECONDS", 30)) * time.Second
		go refreshLoop(ctx, app, graphStore, fallback, interval)
	}

	if dataDir := util.GetEnv("DATA_DIR"); dataDir != "" && util.GetEnvBool("BUILD_ON_START", true) {
		if _, err := app.Rebuild(ctx, queue.RebuildJob{DataDir: dataDir}); err != nil {
			logger.Fatal("Initial build failed", "err", err)
		}
	} else if engine, err := engineFromStore(ctx, graphStore, fallback); err != nil {
		logger.Fatal("Failed to read graph from store", "err", err)
	} else {
		app.SetState(engine, nil)
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// newStore selects the graph engine from the environment: "neo4j" for
// the persistent adapter, anything else for the in-process engine.
func newStore(ctx context.Context) store.GraphStore {
	if util.GetEnv("STORE_ADAPTER") != "neo4j" {
		return memory.New()
	}
	s, err := util.Retry(5, func() (*neo4j.Store, error) {
		return neo4j.New(ctx, neo4j.Config{
			URI:      util.GetEnv("NEO4J_URI"),
			Username: util.GetEnv("NEO4J_USERNAME"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnv("NEO4J_DATABASE"),
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to Neo4j", "err", err)
	}
	return s
}

// newFallback builds the model-backed intent fallback when an API key is
// configured. Without one the classifier stays keyword-only.
func newFallback() intent.Fallback {
	apiKey := util.GetEnv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil
	}
	client := openai.New(openai.Params{
		Model:   util.GetEnvString("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: util.GetEnv("OPENAI_BASE_URL"),
		APIKey:  apiKey,
	})
	// Classification is a small task; it can run on a cheaper model than
	// the one used for extraction.
	if model := util.GetEnv("FALLBACK_MODEL"); model != "" {
		return intent.NewAIFallback(client, ai.WithModel(model))
	}
	return intent.NewAIFallback(client)
}

// runPipeline executes one build with job overrides applied over the
// environment defaults.
func runPipeline(ctx context.Context, s store.GraphStore, job queue.RebuildJob) (*pipeline.Report, error) {
	dataDir := job.DataDir
	if dataDir == "" {
		dataDir = util.GetEnv("DATA_DIR")
	}
	opts := pipeline.Options{
		DataDir:             dataDir,
		Extractor:           newExtractor(),
		RelevanceThreshold:  job.RelevanceThreshold,
		ResolutionThreshold: job.ResolutionThreshold,
	}
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = util.GetEnvNumeric("RELEVANCE_THRESHOLD", pipeline.DefaultRelevanceThreshold)
	}
	if opts.ResolutionThreshold <= 0 {
		opts.ResolutionThreshold = util.GetEnvNumeric("RESOLUTION_THRESHOLD", 0)
	}
	return pipeline.New(s, opts).Run(ctx)
}

// newExtractor picks the text extractor: the model-backed one when
// configured, the deterministic keyword extractor otherwise.
func newExtractor() ingest.Extractor {
	if util.GetEnv("EXTRACTOR_ADAPTER") != "openai" {
		return ingest.KeywordExtractor{}
	}
	client := openai.New(openai.Params{
		Model:   util.GetEnvString("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: util.GetEnv("OPENAI_BASE_URL"),
		APIKey:  util.GetEnv("OPENAI_API_KEY"),
	})
	return ingest.NewAIExtractor(client)
}

// refreshLoop periodically rebuilds the query engine from the store so
// entities published by another process become answerable without a
// restart. Stops when ctx is cancelled.
func refreshLoop(ctx context.Context, app *mid.App, s store.GraphStore, fallback intent.Fallback, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine, err := engineFromStore(ctx, s, fallback)
			if err != nil {
				logger.Error("[Server] Failed to refresh catalog", "err", err)
				continue
			}
			app.SetState(engine, app.Report())
		}
	}
}

// engineFromStore rebuilds the name catalog from a previously published
// graph, so a restarted server can answer without a fresh build.
func engineFromStore(ctx context.Context, s store.GraphStore, fallback intent.Fallback) (*query.Engine, error) {
	types := []string{
		common.TypeProduct, common.TypeSupplier, common.TypePart, common.TypeAssembly,
		common.TypeUser, common.TypeRating, common.TypeIssue, common.TypeFeature,
	}
	var nodes []common.Node
	for _, typ := range types {
		ns, err := s.NodesByType(ctx, typ)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, ns...)
	}
	return query.NewEngine(s, plan.NewNameCatalog(nodes), fallback), nil
}
