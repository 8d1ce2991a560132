package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/callcoach/backend/internal/utils"
)

// MockCompleter answers every purpose deterministically from keywords in the
// prompt, so the service runs end to end without an LLM.
type MockCompleter struct {
	ModelVersion string
}

var (
	positiveWords = []string{"great", "book", "perfect", "thanks", "thank you", "love", "sounds good", "interested", "awesome", "excellent", "yes", "happy"}
	negativeWords = []string{"cancel", "expensive", "angry", "frustrat", "problem", "terrible", "never", "refund", "complain", "too much", "disappoint", "upset"}
)

type mockNudge struct {
	Keywords []string
	Type     string
	Title    string
	Body     string
	Priority int
}

var mockCatalog = []mockNudge{
	{[]string{"duct", "dust", "allerg", "air quality"}, "upsell", "HVAC Duct Cleaning", "Dust or allergy mentioned: offer a duct cleaning with this visit.", 1},
	{[]string{"ac", "cool", "hot", "hvac", "heat"}, "upsell", "Maintenance Plan", "Offer the annual HVAC maintenance plan; members get priority booking.", 1},
	{[]string{"leak", "water", "pipe", "drain"}, "cross_sell", "Plumbing Check", "Suggest a plumbing inspection while the tech is on site.", 2},
	{[]string{"breaker", "outlet", "power", "electric"}, "cross_sell", "Electrical Safety Check", "Bundle an electrical inspection at a reduced add-on rate.", 2},
	{[]string{"expensive", "price", "cost", "budget"}, "tip", "Acknowledge Budget", "Validate the concern, then mention financing and the member discount.", 1},
	{[]string{"cancel", "reschedule"}, "tip", "Offer Reschedule", "Offer the next open slot before processing a cancellation.", 1},
	{nil, "tip", "Confirm Next Steps", "Recap the booking details and confirm the time window.", 3},
	{nil, "tip", "Ask About Other Systems", "Ask if any other systems in the home need attention.", 3},
}

func (m MockCompleter) CompleteChat(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full := strings.ToLower(userPrompt)
	text := conversation(full)
	pos, neg := countWords(text, positiveWords), countWords(text, negativeWords)

	switch opts.Purpose {
	case PurposeSentiment:
		score := clamp(0.5+0.15*float64(pos)-0.15*float64(neg), 0.05, 0.95)
		label := "neutral"
		if score > 0.6 {
			label = "positive"
		} else if score < 0.4 {
			label = "negative"
		}
		return marshal(map[string]any{"sentiment": label, "score": score})
	case PurposeScoreDelta:
		delta := clamp(0.2*float64(pos)-0.25*float64(neg), -1, 1)
		reason := "No clear buying signal"
		switch {
		case delta > 0:
			reason = "Customer shows buying intent"
		case delta < 0:
			reason = "Customer raised objections"
		}
		return marshal(map[string]any{"delta": delta, "reason": reason})
	case PurposeNudges:
		return marshal(map[string]any{"nudges": pickNudges(text, avoidList(full))})
	default:
		return "", fmt.Errorf("mock completer: unsupported purpose %q", opts.Purpose)
	}
}

func pickNudges(text, avoid string) []map[string]any {
	var out []map[string]any
	add := func(n mockNudge) {
		out = append(out, map[string]any{
			"id":       fmt.Sprintf("n-%d", utils.HashStringToUint64(n.Title)%100000),
			"type":     n.Type,
			"title":    n.Title,
			"body":     n.Body,
			"priority": n.Priority,
		})
	}
	for _, n := range mockCatalog {
		if len(out) == 2 {
			return out
		}
		if n.Keywords != nil && countWords(text, n.Keywords) > 0 && !strings.Contains(avoid, strings.ToLower(n.Title)) {
			add(n)
		}
	}
	if len(out) == 0 {
		var fallback []mockNudge
		for _, n := range mockCatalog {
			if n.Keywords == nil && !strings.Contains(avoid, strings.ToLower(n.Title)) {
				fallback = append(fallback, n)
			}
		}
		if len(fallback) > 0 {
			add(fallback[int(utils.HashStringToUint64(text)%uint64(len(fallback)))])
		}
	}
	return out
}

// conversation narrows a prompt to its transcript section so profile
// context does not trigger keywords.
func conversation(prompt string) string {
	start := strings.LastIndex(prompt, "transcript:")
	if start < 0 {
		return prompt
	}
	text := prompt[start+len("transcript:"):]
	if end := strings.Index(text, "avoid titles:"); end >= 0 {
		text = text[:end]
	}
	return text
}

func avoidList(prompt string) string {
	i := strings.LastIndex(prompt, "avoid titles:")
	if i < 0 {
		return ""
	}
	return prompt[i:]
}

func countWords(text string, words []string) int {
	n := 0
	for _, w := range words {
		if containsWord(text, w) {
			n++
		}
	}
	return n
}

// containsWord matches w at a word start so "ac" does not fire on "back".
func containsWord(text, w string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], w)
		if j < 0 {
			return false
		}
		pos := i + j
		if pos == 0 || !isLetter(text[pos-1]) {
			return true
		}
		i = pos + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
