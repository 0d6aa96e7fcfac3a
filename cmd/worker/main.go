package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weftlabs/weft/internal/ingest"
	"github.com/weftlabs/weft/internal/pipeline"
	"github.com/weftlabs/weft/internal/queue"
	"github.com/weftlabs/weft/internal/util"
	"github.com/weftlabs/weft/pkg/ai/openai"
	"github.com/weftlabs/weft/pkg/logger"
	"github.com/weftlabs/weft/pkg/logger/console"
	"github.com/weftlabs/weft/pkg/store"
	"github.com/weftlabs/weft/pkg/store/memory"
	"github.com/weftlabs/weft/pkg/store/neo4j"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	graphStore := newStore(ctx)
	defer graphStore.Close(context.Background())

	aiClient := newAIClient()
	extractor := newExtractor(aiClient)
	maxRetries := util.GetEnvInt("REBUILD_MAX_RETRIES", 3)

	// Init rabbitmq
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

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	// One build at a time.
	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.RebuildQueue,
		"rebuild_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "err", err)
	}

	logger.Info("Listening for rebuild jobs")

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed")
					return
				}
				startTime := time.Now()

				if err := processRebuild(ctx, graphStore, extractor, msg.Body); err != nil {
					logger.Error("Error processing rebuild", "err", err)
					queue.HandleProcessingError(consumerCh, msg, queue.RebuildQueue, maxRetries)
					continue
				}

				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Rebuild complete", "duration", time.Since(startTime).Round(time.Millisecond))

				if aiClient.Available() {
					m := aiClient.Metrics()
					logger.Info("AI usage",
						"input_tokens", m.InputTokens,
						"output_tokens", m.OutputTokens,
						"total_tokens", m.TotalTokens,
						"duration_ms", m.DurationMs)
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func processRebuild(ctx context.Context, s store.GraphStore, extractor ingest.Extractor, body []byte) error {
	job, err := queue.ParseRebuildJob(body)
	if err != nil {
		return err
	}
	logger.Info("Received rebuild job", "job_id", job.JobID)

	dataDir := job.DataDir
	if dataDir == "" {
		dataDir = util.GetEnv("DATA_DIR")
	}
	opts := pipeline.Options{
		DataDir:             dataDir,
		Extractor:           extractor,
		RelevanceThreshold:  job.RelevanceThreshold,
		ResolutionThreshold: job.ResolutionThreshold,
	}
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = util.GetEnvNumeric("RELEVANCE_THRESHOLD", pipeline.DefaultRelevanceThreshold)
	}
	if opts.ResolutionThreshold <= 0 {
		opts.ResolutionThreshold = util.GetEnvNumeric("RESOLUTION_THRESHOLD", 0)
	}

	_, err = pipeline.New(s, opts).Run(ctx)
	return err
}

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

// newAIClient builds the chat client when model-backed extraction is
// configured, nil otherwise. Kept separate from the extractor so usage
// metrics can be read after each rebuild.
func newAIClient() *openai.Client {
	if util.GetEnv("EXTRACTOR_ADAPTER") != "openai" {
		return nil
	}
	return openai.New(openai.Params{
		Model:   util.GetEnvString("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: util.GetEnv("OPENAI_BASE_URL"),
		APIKey:  util.GetEnv("OPENAI_API_KEY"),
	})
}

// newExtractor picks the text extractor: the model-backed one when a
// client is configured, the deterministic keyword extractor otherwise.
func newExtractor(client *openai.Client) ingest.Extractor {
	if client == nil {
		return ingest.KeywordExtractor{}
	}
	return ingest.NewAIExtractor(client)
}
