package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ChatConfig configures the chat model used by the conversational path.
type ChatConfig struct {
	Model          string
	BaseURL        string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
}

// ChatEngine generates responses grounded on an assembled patient context.
type ChatEngine struct {
	config ChatConfig
	model  llms.Model
}

func NewChatEngine(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		config.Temperature = 0.2
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a clinical assistant. Answer strictly from the patient record context provided. Cite document sources for every claim."
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize chat model: %w", err)
	}

	return &ChatEngine{config: config, model: model}, nil
}

// Stream generates a response as a pull-based stream of text fragments. The
// returned channel is closed when generation finishes or ctx is cancelled;
// cancelling ctx aborts the underlying collaborator call.
func (ce *ChatEngine) Stream(ctx context.Context, query, contextText string) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf("Patient record context:\n%s", contextText)),
		llms.TextParts(llms.ChatMessageTypeHuman, query),
	}

	go func() {
		defer close(out)
		defer close(errc)

		_, err := ce.model.GenerateContent(ctx, content,
			llms.WithTemperature(ce.config.Temperature),
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case out <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil && ctx.Err() == nil {
			errc <- fmt.Errorf("generate response: %w", err)
		}
	}()

	return out, errc
}
