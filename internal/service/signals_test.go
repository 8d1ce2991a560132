package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/models"
)

type completerFunc func(ctx context.Context, system, user string, opts ai.CompletionOptions) (string, error)

func (f completerFunc) CompleteChat(ctx context.Context, system, user string, opts ai.CompletionOptions) (string, error) {
	return f(ctx, system, user, opts)
}

func staticCompleter(out string, err error) ai.Completer {
	return completerFunc(func(context.Context, string, string, ai.CompletionOptions) (string, error) {
		return out, err
	})
}

func TestSentimentLabelFollowsScore(t *testing.T) {
	a := Analyzer{Completer: staticCompleter(`{"sentiment":"positive","score":0.2}`, nil), Logger: zerolog.Nop()}
	res := a.Sentiment(context.Background(), models.TranscriptTurn{Role: "user", Content: "hmm"})
	if res.Sentiment != models.SentimentNegative || res.Score != 0.2 {
		t.Fatalf("expected negative 0.2, got %+v", res)
	}
}

func TestSentimentFallsBackToNeutral(t *testing.T) {
	cases := []ai.Completer{
		staticCompleter("", errors.New("upstream down")),
		staticCompleter("I think the customer is happy", nil),
	}
	for _, c := range cases {
		a := Analyzer{Completer: c, Logger: zerolog.Nop()}
		res := a.Sentiment(context.Background(), models.TranscriptTurn{Role: "user", Content: "ok"})
		if res.Sentiment != models.SentimentNeutral || res.Score != 0.5 {
			t.Fatalf("expected neutral 0.5, got %+v", res)
		}
	}
}

func TestSentimentLabelOnly(t *testing.T) {
	a := Analyzer{Completer: staticCompleter("```json\n{\"sentiment\":\"Positive\"}\n```", nil), Logger: zerolog.Nop()}
	res := a.Sentiment(context.Background(), models.TranscriptTurn{Role: "user", Content: "yes"})
	if res.Sentiment != models.SentimentPositive || res.Score != 0.75 {
		t.Fatalf("expected positive 0.75, got %+v", res)
	}
}

func TestSentimentLabelBoundaries(t *testing.T) {
	if SentimentLabel(0.4) != models.SentimentNeutral || SentimentLabel(0.6) != models.SentimentNeutral {
		t.Fatalf("expected boundaries to be neutral")
	}
	if SentimentLabel(0.39) != models.SentimentNegative || SentimentLabel(0.61) != models.SentimentPositive {
		t.Fatalf("unexpected labels outside the neutral band")
	}
}

func TestScoreDelta(t *testing.T) {
	var gotUser string
	c := completerFunc(func(_ context.Context, _, user string, opts ai.CompletionOptions) (string, error) {
		gotUser = user
		if opts.Purpose != ai.PurposeScoreDelta {
			t.Fatalf("unexpected purpose %q", opts.Purpose)
		}
		return "Sure! {\"delta\": \"3\", \"reason\": \"asked for a quote\"} hope that helps", nil
	})
	a := Analyzer{Completer: c, Logger: zerolog.Nop()}
	turns := []models.TranscriptTurn{{Role: "user", Content: "can I get a quote"}}
	sig, ok := a.ScoreDelta(context.Background(), turns, 6.5)
	if !ok {
		t.Fatalf("expected a signal")
	}
	if sig.Delta != 1 || sig.Reason != "asked for a quote" {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if want := "Current lead score: 6.5\n\nTRANSCRIPT:\nuser: can I get a quote"; gotUser != want {
		t.Fatalf("unexpected prompt %q", gotUser)
	}
}

func TestScoreDeltaUnusable(t *testing.T) {
	for _, out := range []string{"no json here", `{"delta":"lots"}`, `{"reason":"x"}`} {
		a := Analyzer{Completer: staticCompleter(out, nil), Logger: zerolog.Nop()}
		if _, ok := a.ScoreDelta(context.Background(), nil, 5); ok {
			t.Fatalf("expected no signal for %q", out)
		}
	}
}
