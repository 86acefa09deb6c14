// Package openaichat talks to OpenAI-compatible chat-completion endpoints
// (OpenAI, OpenRouter, ollama's compatibility API, ...). One client instance
// is bound to one provider.
package openaichat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vidnote/vidnote/internal/domain/notes"
	"github.com/vidnote/vidnote/internal/types"
)

const (
	maxReplyTokens = 4096

	// retryBackoff spaces the single retry on a rate-limited or failing
	// endpoint. Text calls are cheap to repeat; vision calls are not and are
	// never retried here.
	retryBackoff = 2 * time.Second

	// transcriptCharBudget bounds how much transcript goes into the authoring
	// prompt before truncation.
	transcriptCharBudget = 16000
)

type Client struct {
	api *openai.Client
}

func New(apiKey, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg)}
}

func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.1,
		MaxTokens:   maxReplyTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil && retryable(err) && ctx.Err() == nil {
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		resp, err = c.api.CreateChatCompletion(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return firstChoice(resp)
}

func (c *Client) CompleteVision(ctx context.Context, model string, images [][]byte, prompt string) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.1,
		MaxTokens:   64,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	return firstChoice(resp)
}

// Author asks the model for a Markdown note over the transcript, with one
// screenshot placeholder per key moment for later substitution.
func (c *Client) Author(ctx context.Context, model string, tr types.Transcript, moments []types.KeyMoment) (string, error) {
	reply, err := c.Complete(ctx, model, authorPrompt(tr, moments))
	if err != nil {
		return "", err
	}
	return stripCodeFence(reply), nil
}

func authorPrompt(tr types.Transcript, moments []types.KeyMoment) string {
	var b strings.Builder
	b.WriteString("Write structured Markdown study notes for the following video transcript. ")
	b.WriteString("Use a short title, section headings, and concise bullet points for the substance. ")
	b.WriteString("At each of the listed moments, place its screenshot placeholder token on its own line ")
	b.WriteString("at the matching position in the notes. Output only the Markdown, no code fences.\n\n")

	b.WriteString("Screenshot placeholders:\n")
	for _, m := range moments {
		fmt.Fprintf(&b, "- %s at %s: %s\n", m.ID, notes.TimestampLabel(m.Timestamp), notes.Placeholder(m.ID))
	}

	b.WriteString("\nTranscript:\n")
	used := 0
	for _, seg := range tr.Segments {
		line := fmt.Sprintf("[%s] %s\n", notes.TimestampLabel(seg.Start), strings.TrimSpace(seg.Text))
		if used+len(line) > transcriptCharBudget {
			b.WriteString("[transcript truncated]\n")
			break
		}
		b.WriteString(line)
		used += len(line)
	}
	return b.String()
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable reports whether the error is a 429/5xx-class response worth one
// backed-off retry.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return false
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	}
	if j := strings.LastIndex(t, "```"); j >= 0 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}
