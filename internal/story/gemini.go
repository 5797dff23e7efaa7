package story

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// GeminiProvider calls the Google Generative Language API.
type GeminiProvider struct {
	client *resty.Client
	apiKey string
	model  string
}

// NewGeminiProvider builds a provider for the given API base URL
// (normally https://generativelanguage.googleapis.com/v1beta).
func NewGeminiProvider(baseURL, apiKey, modelName string) *GeminiProvider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &GeminiProvider{client: c, apiKey: apiKey, model: modelName}
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.model }
func (p *GeminiProvider) MaxTokens() int       { return 512 }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// GenerateStory issues one generation call and parses the reply.
func (p *GeminiProvider) GenerateStory(ctx context.Context, req Request) (*Result, error) {
	body := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(req)}}}},
		GenerationConfig: geminiGenConfig{MaxOutputTokens: p.MaxTokens()},
	}

	var out geminiResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetBody(&body).
		SetResult(&out).
		Post(fmt.Sprintf("/models/%s:generateContent", p.model))
	if cerr := classifyAI(resp, err); cerr != nil {
		return nil, cerr
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, model.ErrUnparsableResponse
	}
	result, err := ParseResult(out.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	result.TokensUsed = out.UsageMetadata.TotalTokenCount
	result.Provider = p.Name()
	return result, nil
}

// ValidateCredential performs a cheap model listing with the API key.
func (p *GeminiProvider) ValidateCredential(ctx context.Context) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		Get("/models")
	return classifyAI(resp, err)
}

// classifyAI maps an AI-provider HTTP outcome onto the failure taxonomy.
func classifyAI(resp *resty.Response, err error) error {
	if err != nil {
		return pkgerrors.Wrap(model.ErrNetwork, err.Error())
	}
	switch {
	case resp.StatusCode() < 300:
		return nil
	case resp.StatusCode() == http.StatusBadRequest:
		return model.ErrMalformedRequest
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return model.ErrInvalidCredential
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &model.ThrottledError{RetryAfter: 0}
	case resp.StatusCode() == http.StatusPaymentRequired:
		return model.ErrQuotaExceeded
	default:
		return pkgerrors.Wrapf(model.ErrNetwork, "provider status %d", resp.StatusCode())
	}
}
