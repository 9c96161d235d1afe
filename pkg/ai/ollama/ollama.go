package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/ethicase/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// ScorerOllamaClient implements ai.ScorerAIClient against locally-hosted
// Ollama models.
type ScorerOllamaClient struct {
	embeddingModel string
	scoringModel   string

	timeoutMin int64
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewScorerOllamaClientParams contains configuration options for creating a
// new ScorerOllamaClient.
type NewScorerOllamaClientParams struct {
	EmbeddingModel string
	ScoringModel   string

	BaseURL string
	ApiKey  string

	TimeoutMin            int64
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewScorerOllamaClient creates a new Ollama-based AI client. It connects to
// the Ollama server at the given BaseURL (or the default if empty).
func NewScorerOllamaClient(params NewScorerOllamaClientParams) (*ScorerOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}
	if params.TimeoutMin <= 0 {
		params.TimeoutMin = 5
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	return &ScorerOllamaClient{
		embeddingModel: params.EmbeddingModel,
		scoringModel:   params.ScoringModel,

		timeoutMin: params.TimeoutMin,
		reqLock:    semaphore.NewWeighted(params.MaxConcurrentRequests),

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: api.NewClient(u, httpClient),
	}, nil
}
