package ollama

import (
	"context"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/Septimus4/AgendaFlow/pkg/ai"
)

// GenerateCompletion sends a single-turn prompt to the chat model on Ollama
// and returns the generated completion as plain text.
func (c *EventOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}
	for _, o := range opts {
		o(&options)
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(c.timeoutSec))
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  options.Model,
		Prompt: prompt,
		System: strings.Join(options.SystemPrompts, "\n\n"),
		Stream: &stream,
		Options: map[string]any{
			"temperature": options.Temperature,
		},
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var out strings.Builder
	err := c.Client.Generate(rCtx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		if resp.Done {
			c.modifyMetrics(ai.ModelMetrics{
				InputTokens:  resp.PromptEvalCount,
				OutputTokens: resp.EvalCount,
				TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
				DurationMs:   resp.TotalDuration.Milliseconds(),
			})
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return out.String(), nil
}
