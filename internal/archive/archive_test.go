package archive

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/callcoach/backend/internal/models"
)

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	a := NewMemory()
	if _, err := a.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty archive, got %v", err)
	}

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	older := models.CallSession{CallID: "a", EndTime: base.Add(2 * time.Minute), FinalLeadScore: 6}
	newer := models.CallSession{CallID: "b", EndTime: base.Add(5 * time.Minute)}
	if err := a.Save(ctx, newer); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.Save(ctx, older); err != nil {
		t.Fatalf("save: %v", err)
	}

	latest, err := a.Latest(ctx)
	if err != nil || latest.CallID != "b" {
		t.Fatalf("expected latest b, got %+v (%v)", latest, err)
	}

	// saved sessions are immutable
	if err := a.Save(ctx, models.CallSession{CallID: "a", FinalLeadScore: 9}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := a.Get(ctx, "a")
	if err != nil || got.FinalLeadScore != 6 {
		t.Fatalf("expected original session, got %+v (%v)", got, err)
	}
	if _, err := a.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryArchiveCopiesSessions(t *testing.T) {
	ctx := context.Background()
	a := NewMemory()
	score := 0.8
	session := models.CallSession{
		CallID:           "c",
		CustomerProfile:  &models.ProfileHints{Name: "Ada"},
		Transcript:       []models.TranscriptTurn{{Role: "user", Content: "book it", SentimentScore: &score}},
		NudgesShown:      []models.ServerNudge{{Nudge: models.Nudge{Title: "Duct Cleaning"}}},
		LeadScoreHistory: []models.LeadScorePoint{{Score: 5, Reason: "initial"}},
	}
	if err := a.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	session.CustomerProfile.Name = "changed"
	session.Transcript[0].Content = "changed"
	*session.Transcript[0].SentimentScore = 0.1
	session.NudgesShown[0].Title = "changed"
	session.LeadScoreHistory[0].Score = 9

	got, err := a.Get(ctx, "c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomerProfile.Name != "Ada" || got.Transcript[0].Content != "book it" ||
		*got.Transcript[0].SentimentScore != 0.8 || got.NudgesShown[0].Title != "Duct Cleaning" ||
		got.LeadScoreHistory[0].Score != 5 {
		t.Fatalf("stored session changed through caller copy: %+v", got)
	}

	got.Transcript[0].Content = "mutated"
	again, _ := a.Latest(ctx)
	if again.Transcript[0].Content != "book it" {
		t.Fatalf("stored session changed through returned copy: %+v", again)
	}
}

func TestRedisArchiveIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("redis connect: %v", err)
	}
	a := NewRedis(client, time.Minute)
	defer a.Close()

	id := uuid.NewString()
	session := models.CallSession{CallID: id, CustomerIdentifier: "555-0100", EndTime: time.Now().Add(time.Hour)}
	if err := a.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := a.Get(ctx, id)
	if err != nil || got.CustomerIdentifier != "555-0100" {
		t.Fatalf("unexpected session %+v (%v)", got, err)
	}
	latest, err := a.Latest(ctx)
	if err != nil || latest.CallID != id {
		t.Fatalf("expected latest %s, got %+v (%v)", id, latest, err)
	}
}
