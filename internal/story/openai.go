package story

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// OpenAIProvider calls the OpenAI chat completions API.
type OpenAIProvider struct {
	client *resty.Client
	model  string
}

// NewOpenAIProvider builds a provider for the given API base URL
// (normally https://api.openai.com/v1).
func NewOpenAIProvider(baseURL, apiKey, modelName string) *OpenAIProvider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &OpenAIProvider{client: c, model: modelName}
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) DefaultModel() string { return p.model }
func (p *OpenAIProvider) MaxTokens() int       { return 512 }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateStory issues one chat completion and parses the reply.
func (p *OpenAIProvider) GenerateStory(ctx context.Context, req Request) (*Result, error) {
	body := chatRequest{
		Model:     p.model,
		Messages:  []chatMessage{{Role: "user", Content: BuildPrompt(req)}},
		MaxTokens: p.MaxTokens(),
	}

	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&out).
		Post("/chat/completions")
	if cerr := classifyAI(resp, err); cerr != nil {
		return nil, cerr
	}

	if len(out.Choices) == 0 {
		return nil, model.ErrUnparsableResponse
	}
	result, err := ParseResult(out.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	result.TokensUsed = out.Usage.TotalTokens
	result.Provider = p.Name()
	return result, nil
}

// ValidateCredential performs a cheap model listing with the API key.
func (p *OpenAIProvider) ValidateCredential(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get("/models")
	return classifyAI(resp, err)
}
