package openai

import (
	"sync"

	"github.com/ethicase/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// ScorerOpenAIClient implements ai.ScorerAIClient against OpenAI-compatible
// APIs. Separate clients for embeddings and chat allow mixing providers.
type ScorerOpenAIClient struct {
	embeddingModel string
	scoringModel   string

	embeddingURL string
	embeddingKey string
	chatURL      string
	chatKey      string

	timeoutMin int64
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewScorerOpenAIClientParams defines the configuration for creating a
// ScorerOpenAIClient.
type NewScorerOpenAIClientParams struct {
	EmbeddingModel string
	ScoringModel   string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	TimeoutMin            int64
	MaxConcurrentRequests int64
}

// NewScorerOpenAIClient creates a client configured with the provided
// parameters. Leaving a URL empty targets the official OpenAI endpoint.
func NewScorerOpenAIClient(params NewScorerOpenAIClientParams) *ScorerOpenAIClient {
	if params.TimeoutMin <= 0 {
		params.TimeoutMin = 5
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 4
	}

	return &ScorerOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		scoringModel:   params.ScoringModel,

		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,
		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,

		timeoutMin: params.TimeoutMin,
		reqLock:    semaphore.NewWeighted(params.MaxConcurrentRequests),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
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
