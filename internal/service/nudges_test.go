package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func twoTurns() NudgeContext {
	return NudgeContext{
		CustomerID: "cust-1",
		LeadScore:  6,
		Transcript: []models.TranscriptTurn{
			{Role: "user", Content: "the house is dusty"},
			{Role: "assistant", Content: "I can help with that"},
		},
	}
}

func newTestPipeline(c ai.Completer, clock *fakeClock) *NudgePipeline {
	p := NewNudgePipeline(c, zerolog.Nop())
	p.Now = clock.Now
	return p
}

const ductNudge = `{"nudges":[{"id":"n1","type":"upsell","title":"HVAC Duct Cleaning","body":"Offer duct cleaning.","priority":1}]}`

func TestNudgeCooldownAfterAck(t *testing.T) {
	clock := &fakeClock{t: refNow}
	var lastPrompt string
	c := completerFunc(func(_ context.Context, _, user string, _ ai.CompletionOptions) (string, error) {
		lastPrompt = user
		return ductNudge, nil
	})
	p := newTestPipeline(c, clock)

	added := p.Generate(context.Background(), twoTurns())
	if len(added) != 1 || added[0].Title != "HVAC Duct Cleaning" {
		t.Fatalf("expected one duct cleaning nudge, got %+v", added)
	}
	if got := p.Latest(); len(got) != 1 || got[0].SID != added[0].SID {
		t.Fatalf("expected latest to return the pending nudge, got %+v", got)
	}
	if got := p.Latest(); len(got) != 1 {
		t.Fatalf("expected repeatable reads, got %d", len(got))
	}

	if n := p.Ack([]string{added[0].SID, "missing"}); n != 1 {
		t.Fatalf("expected 1 acknowledged, got %d", n)
	}
	if got := p.Latest(); len(got) != 0 {
		t.Fatalf("expected acknowledged nudge gone, got %+v", got)
	}

	clock.Advance(30 * time.Second)
	if added := p.Generate(context.Background(), twoTurns()); len(added) != 0 {
		t.Fatalf("expected cooldown to suppress title, got %+v", added)
	}
	if !strings.Contains(lastPrompt, "AVOID TITLES:\nHVAC Duct Cleaning") {
		t.Fatalf("expected title in avoid list, prompt %q", lastPrompt)
	}

	clock.Advance(30 * time.Second)
	added = p.Generate(context.Background(), twoTurns())
	if len(added) != 1 {
		t.Fatalf("expected title to return after 60s, got %+v", added)
	}

	shown := p.Shown()
	if len(shown) != 2 || shown[0].SID == shown[1].SID {
		t.Fatalf("expected delivered and pending nudges with distinct sids, got %+v", shown)
	}
}

func TestNudgePendingTitlesUnique(t *testing.T) {
	clock := &fakeClock{t: refNow}
	out := `{"nudges":[{"type":"tip","title":"Confirm Next Steps","body":"a"},{"type":"tip","title":"Confirm Next Steps","body":"b"}]}`
	p := newTestPipeline(staticCompleter(out, nil), clock)

	if added := p.Generate(context.Background(), twoTurns()); len(added) != 1 {
		t.Fatalf("expected duplicate candidates collapsed, got %+v", added)
	}
	clock.Advance(5 * time.Second)
	if added := p.Generate(context.Background(), twoTurns()); len(added) != 0 {
		t.Fatalf("expected pending title to block, got %+v", added)
	}
	if p.PendingCount() != 1 {
		t.Fatalf("expected 1 pending, got %d", p.PendingCount())
	}
}

func TestNudgeThrottleAndTurnGuard(t *testing.T) {
	clock := &fakeClock{t: refNow}
	var calls atomic.Int32
	c := completerFunc(func(context.Context, string, string, ai.CompletionOptions) (string, error) {
		calls.Add(1)
		return `{"nudges":[]}`, nil
	})
	p := newTestPipeline(c, clock)

	one := twoTurns()
	one.Transcript = one.Transcript[:1]
	p.Generate(context.Background(), one)
	if calls.Load() != 0 {
		t.Fatalf("expected no generation with a single turn")
	}

	p.Generate(context.Background(), twoTurns())
	clock.Advance(time.Second)
	p.Generate(context.Background(), twoTurns())
	if calls.Load() != 1 {
		t.Fatalf("expected throttle to skip second cycle, got %d calls", calls.Load())
	}
	clock.Advance(2 * time.Second)
	p.Generate(context.Background(), twoTurns())
	if calls.Load() != 2 {
		t.Fatalf("expected cycle after throttle window, got %d calls", calls.Load())
	}
}

func TestNudgeSingleFlight(t *testing.T) {
	clock := &fakeClock{t: refNow}
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	c := completerFunc(func(context.Context, string, string, ai.CompletionOptions) (string, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return ductNudge, nil
	})
	p := newTestPipeline(c, clock)
	p.Throttle = time.Nanosecond

	done := make(chan []models.ServerNudge)
	go func() { done <- p.Generate(context.Background(), twoTurns()) }()
	<-entered
	clock.Advance(time.Second)
	if added := p.Generate(context.Background(), twoTurns()); added != nil {
		t.Fatalf("expected overlapping cycle to be skipped, got %+v", added)
	}
	close(release)
	if added := <-done; len(added) != 1 {
		t.Fatalf("expected first cycle to queue a nudge, got %+v", added)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one collaborator call, got %d", calls.Load())
	}
}

func TestNudgeParsingIsDefensive(t *testing.T) {
	clock := &fakeClock{t: refNow}
	p := newTestPipeline(staticCompleter("I cannot help with that.", nil), clock)
	if added := p.Generate(context.Background(), twoTurns()); len(added) != 0 {
		t.Fatalf("expected no nudges from prose, got %+v", added)
	}

	fenced := "Here are some ideas:\n```json\n[{\"type\":\"Cross-Sell\",\"title\":\"" +
		strings.Repeat("x", 60) + "\",\"body\":\"b\",\"priority\":\"7\"},{\"title\":\"\"},{\"title\":\"Second\",\"priority\":0},{\"title\":\"Third\"}]\n```"
	p = newTestPipeline(staticCompleter(fenced, nil), clock)
	added := p.Generate(context.Background(), twoTurns())
	if len(added) != 2 {
		t.Fatalf("expected at most two candidates, got %+v", added)
	}
	first := added[0]
	if first.Type != models.NudgeCrossSell || first.Priority != 3 || len([]rune(first.Title)) != 40 {
		t.Fatalf("unexpected normalization %+v", first)
	}
	if added[1].Title != "Second" || added[1].Type != models.NudgeTip || added[1].Priority != 1 {
		t.Fatalf("unexpected second nudge %+v", added[1])
	}
}

func TestNudgeLatestCapped(t *testing.T) {
	clock := &fakeClock{t: refNow}
	p := newTestPipeline(nil, clock)
	for i := 0; i < 20; i++ {
		p.admit([]models.Nudge{{Title: strings.Repeat("t", i+1), Type: models.NudgeTip, Priority: 2}})
	}
	if got := len(p.Latest()); got != 16 {
		t.Fatalf("expected 16, got %d", got)
	}
	if p.PendingCount() != 20 {
		t.Fatalf("expected 20 pending, got %d", p.PendingCount())
	}
}

func TestNudgeEvictedTitlesEnterCooldown(t *testing.T) {
	clock := &fakeClock{t: refNow}
	p := newTestPipeline(nil, clock)
	p.MaxPending = 2
	for _, title := range []string{"Duct Cleaning", "Filter Plan", "Smart Thermostat"} {
		p.admit([]models.Nudge{{Title: title, Type: models.NudgeTip, Priority: 2}})
	}
	if p.PendingCount() != 2 {
		t.Fatalf("expected 2 pending, got %d", p.PendingCount())
	}
	for _, n := range p.Latest() {
		if n.Title == "Duct Cleaning" {
			t.Fatalf("expected oldest nudge to be evicted")
		}
	}

	clock.Advance(time.Second)
	if added := p.admit([]models.Nudge{{Title: "Duct Cleaning", Type: models.NudgeTip, Priority: 2}}); len(added) != 0 {
		t.Fatalf("expected evicted title to stay in cooldown, got %+v", added)
	}

	clock.Advance(DefaultNudgeCooldown)
	if added := p.admit([]models.Nudge{{Title: "Duct Cleaning", Type: models.NudgeTip, Priority: 2}}); len(added) != 1 {
		t.Fatalf("expected title admitted after cooldown, got %+v", added)
	}
}
