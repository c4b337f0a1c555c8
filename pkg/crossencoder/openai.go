package crossencoder

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client by running a boolean relevance classifier
// per passage and converting the "True" token's log-probability into a
// relevance score. Passages are scored concurrently under a semaphore.
type OpenAIClient struct {
	client    *openai.Client
	config    Config
	semaphore chan struct{}
}

// NewOpenAIClient creates a new OpenAI-backed scorer.
func NewOpenAIClient(config Config) *OpenAIClient {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
	}
}

// Score implements Client.
func (c *OpenAIClient) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}

	scores := make([]float64, len(passages))
	errs := make([]error, len(passages))
	var wg sync.WaitGroup

	for i, passage := range passages {
		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()

			select {
			case c.semaphore <- struct{}{}:
				defer func() { <-c.semaphore }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			scores[idx], errs[idx] = c.scorePassage(ctx, query, p)
		}(i, passage)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: scoring passage %d: %v", ErrScorerUnavailable, i, err)
		}
	}
	return scores, nil
}

func (c *OpenAIClient) scorePassage(ctx context.Context, query, passage string) (float64, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert tasked with determining whether the passage is relevant to the query",
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(`Respond with "True" if PASSAGE is relevant to QUERY and "False" otherwise.
<PASSAGE>
%s
</PASSAGE>
<QUERY>
%s
</QUERY>`, passage, query),
			},
		},
		MaxTokens:   1,
		Temperature: 0,
		LogProbs:    true,
		TopLogProbs: 2,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0.5, nil
	}

	choice := resp.Choices[0]
	if choice.LogProbs != nil && len(choice.LogProbs.Content) > 0 {
		token := choice.LogProbs.Content[0]
		prob := math.Exp(token.LogProb)
		if strings.EqualFold(strings.TrimSpace(token.Token), "true") {
			return prob, nil
		}
		return 1 - prob, nil
	}

	// No logprobs from this backend; fall back to the literal answer.
	if strings.EqualFold(strings.TrimSpace(choice.Message.Content), "true") {
		return 0.8, nil
	}
	return 0.2, nil
}
