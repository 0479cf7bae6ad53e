package ai

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"

	genai "github.com/google/generative-ai-go/genai"
)

// ChatTurn is one prior conversation message with its role tag
// ("user" or "assistant").
type ChatTurn struct {
	Role    string
	Content string
}

// StreamChat replays the conversation with the grounding context as the
// system instruction and streams the reply chunk-by-chunk through emit.
// The last turn must be the user message being answered.
func (c *Client) StreamChat(ctx context.Context, turns []ChatTurn, systemContext string, emit func(text string) error) error {
	if len(turns) == 0 {
		return fmt.Errorf("empty conversation")
	}

	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.stream_chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.model),
		attribute.Int("gemini.turns", len(turns)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemContext)},
	}

	cs := model.StartChat()
	for _, turn := range turns[:len(turns)-1] {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	iter := cs.SendMessageStream(ctx, genai.Text(turns[len(turns)-1].Content))
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return err
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				text, ok := part.(genai.Text)
				if !ok {
					continue
				}
				if err := emit(string(text)); err != nil {
					// Client abandoned the stream; stop reading.
					return err
				}
			}
		}
	}

	return nil
}
