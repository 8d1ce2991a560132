package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/metrics"
	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/internal/utils"
)

const (
	neutralSentimentScore = 0.5
	negativeBelow         = 0.4
	positiveAbove         = 0.6
)

// Analyzer turns conversation text into score and sentiment signals via the
// collaborator. It never fails: unusable answers degrade to a neutral result.
type Analyzer struct {
	Completer ai.Completer
	Logger    zerolog.Logger
	Timeout   time.Duration
}

type ScoreSignal struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

type SentimentResult struct {
	Sentiment models.Sentiment `json:"sentiment"`
	Score     float64          `json:"score"`
}

// ScoreDelta asks how the lead score should move given the latest turns. ok is
// false when the collaborator failed or answered with something unusable.
func (a Analyzer) ScoreDelta(ctx context.Context, turns []models.TranscriptTurn, current float64) (ScoreSignal, bool) {
	user := fmt.Sprintf("Current lead score: %.1f\n\nTRANSCRIPT:\n%s", current, formatTurns(turns))
	raw, err := a.complete(ctx, scoreDeltaSystemPrompt, user, ai.CompletionOptions{
		Purpose:     ai.PurposeScoreDelta,
		Temperature: 0.2,
		MaxTokens:   100,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("score delta request failed")
		return ScoreSignal{}, false
	}

	var res struct {
		Delta  json.Number `json:"delta"`
		Reason string      `json:"reason"`
	}
	if !decodeModelJSON(raw, &res) {
		a.Logger.Warn().Str("raw", truncate(raw, 200)).Msg("score delta response not parseable")
		metrics.CollaboratorRequests.WithLabelValues(string(ai.PurposeScoreDelta), "unparsable").Inc()
		return ScoreSignal{}, false
	}
	delta, err := res.Delta.Float64()
	if err != nil || math.IsNaN(delta) || math.IsInf(delta, 0) {
		a.Logger.Warn().Str("delta", res.Delta.String()).Msg("score delta is not a number")
		return ScoreSignal{}, false
	}
	reason := strings.TrimSpace(res.Reason)
	if reason == "" {
		reason = "conversation signal"
	}
	return ScoreSignal{
		Delta:  math.Max(-maxScoreDelta, math.Min(maxScoreDelta, delta)),
		Reason: truncate(reason, 120),
	}, true
}

// Sentiment classifies one turn. The label always follows the score.
func (a Analyzer) Sentiment(ctx context.Context, turn models.TranscriptTurn) SentimentResult {
	neutral := SentimentResult{Sentiment: models.SentimentNeutral, Score: neutralSentimentScore}

	user := "TRANSCRIPT:\n" + formatTurns([]models.TranscriptTurn{turn})
	raw, err := a.complete(ctx, sentimentSystemPrompt, user, ai.CompletionOptions{
		Purpose:     ai.PurposeSentiment,
		Temperature: 0,
		MaxTokens:   60,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("sentiment request failed")
		return neutral
	}

	var res struct {
		Sentiment string       `json:"sentiment"`
		Score     *json.Number `json:"score"`
	}
	if !decodeModelJSON(raw, &res) {
		a.Logger.Warn().Str("raw", truncate(raw, 200)).Msg("sentiment response not parseable")
		metrics.CollaboratorRequests.WithLabelValues(string(ai.PurposeSentiment), "unparsable").Inc()
		return neutral
	}

	score := math.NaN()
	if res.Score != nil {
		if f, err := res.Score.Float64(); err == nil {
			score = f
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		switch models.Sentiment(strings.ToLower(strings.TrimSpace(res.Sentiment))) {
		case models.SentimentPositive:
			score = 0.75
		case models.SentimentNegative:
			score = 0.25
		default:
			score = neutralSentimentScore
		}
	}
	score = round(math.Max(0, math.Min(1, score)), 2)
	return SentimentResult{Sentiment: SentimentLabel(score), Score: score}
}

// SentimentLabel maps a score in [0,1] to its label.
func SentimentLabel(score float64) models.Sentiment {
	switch {
	case score < negativeBelow:
		return models.SentimentNegative
	case score > positiveAbove:
		return models.SentimentPositive
	default:
		return models.SentimentNeutral
	}
}

func (a Analyzer) complete(ctx context.Context, system, user string, opts ai.CompletionOptions) (string, error) {
	if a.Completer == nil {
		return "", fmt.Errorf("no collaborator configured")
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	return a.Completer.CompleteChat(ctx, system, user, opts)
}

func decodeModelJSON(raw string, v any) bool {
	b, ok := utils.ExtractJSON(raw)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

func formatTurns(turns []models.TranscriptTurn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(t.Content, "\n", " "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
