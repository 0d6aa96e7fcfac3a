package openai

import (
	"sync"

	"github.com/weftlabs/weft/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client talks to an OpenAI-compatible chat endpoint. It implements
// ai.Client and accumulates usage metrics across calls.
type Client struct {
	model string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	chat *openai.Client
}

// Params configures a new Client. BaseURL may point at any
// OpenAI-compatible endpoint; empty means the default API.
type Params struct {
	Model   string
	BaseURL string
	APIKey  string
}

// New creates a chat client. A missing API key yields a nil inner client;
// callers that can run without a model check Available first.
func New(params Params) *Client {
	return &Client{
		model: params.Model,
		chat:  newOpenaiClient(params.BaseURL, params.APIKey),
	}
}

// Available reports whether the client was configured with credentials.
func (c *Client) Available() bool {
	return c != nil && c.chat != nil
}

// Metrics returns the accumulated usage across all calls.
func (c *Client) Metrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *Client) addMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
