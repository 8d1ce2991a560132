package ai

import "context"

// Purpose labels what a completion is for. Clients may ignore it; the mock
// and the metrics wrapper rely on it.
type Purpose string

const (
	PurposeNudges     Purpose = "nudges"
	PurposeScoreDelta Purpose = "score_delta"
	PurposeSentiment  Purpose = "sentiment"
)

type CompletionOptions struct {
	Purpose     Purpose
	Temperature float64
	MaxTokens   int
}

// Completer is the text-completion collaborator. Output is free text and
// must be parsed defensively by callers.
type Completer interface {
	CompleteChat(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error)
}
