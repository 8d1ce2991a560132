package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/metrics"
	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/internal/profile"
	"github.com/callcoach/backend/internal/utils"
)

const (
	DefaultNudgeThrottle = 2500 * time.Millisecond
	DefaultNudgeCooldown = 60 * time.Second

	nudgeContextTurns    = 12
	maxNudgeCandidates   = 2
	maxLatestNudges      = 16
	defaultMaxPending    = 32
	maxNudgeTitleRunes   = 40
	maxNudgeBodyRunes    = 140
	defaultNudgePriority = 2
)

// NudgeContext is what a generation cycle knows about the call.
type NudgeContext struct {
	CustomerID string
	Profile    *profile.Profile
	LeadScore  float64
	Transcript []models.TranscriptTurn
}

// NudgePipeline owns one call's pending queue and re-show cooldown. All
// methods are safe for concurrent use; at most one generation cycle runs at a
// time.
type NudgePipeline struct {
	Completer  ai.Completer
	Logger     zerolog.Logger
	Now        func() time.Time
	Timeout    time.Duration
	Throttle   time.Duration
	Cooldown   time.Duration
	MaxPending int

	running atomic.Bool

	mu        sync.Mutex
	pending   []models.ServerNudge
	recent    map[string]time.Time
	delivered []models.ServerNudge
	counter   uint64
	lastRun   time.Time
}

func NewNudgePipeline(c ai.Completer, logger zerolog.Logger) *NudgePipeline {
	return &NudgePipeline{
		Completer:  c,
		Logger:     logger,
		Now:        time.Now,
		Throttle:   DefaultNudgeThrottle,
		Cooldown:   DefaultNudgeCooldown,
		MaxPending: defaultMaxPending,
	}
}

// Generate runs one cycle and returns the nudges it queued. A cycle is
// skipped when another is in flight, when the last one ran inside the
// throttle window, or when fewer than two turns exist.
func (p *NudgePipeline) Generate(ctx context.Context, nc NudgeContext) []models.ServerNudge {
	if len(nc.Transcript) < 2 {
		return nil
	}
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer p.running.Store(false)

	p.mu.Lock()
	now := p.now()
	if !p.lastRun.IsZero() && now.Sub(p.lastRun) < p.throttle() {
		p.mu.Unlock()
		return nil
	}
	p.lastRun = now
	p.purgeRecentLocked(now)
	avoid := p.avoidTitlesLocked()
	p.mu.Unlock()

	turns := nc.Transcript
	if len(turns) > nudgeContextTurns {
		turns = turns[len(turns)-nudgeContextTurns:]
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if p.Completer == nil {
		return nil
	}
	raw, err := p.Completer.CompleteChat(ctx, nudgeSystemPrompt, buildNudgePrompt(nc, turns, avoid), ai.CompletionOptions{
		Purpose:     ai.PurposeNudges,
		Temperature: 0.4,
		MaxTokens:   400,
	})
	if err != nil {
		p.Logger.Warn().Err(err).Msg("nudge generation failed")
		return nil
	}
	candidates, ok := parseNudges(raw)
	if !ok {
		p.Logger.Warn().Str("raw", truncate(raw, 200)).Msg("nudge response not parseable")
		metrics.CollaboratorRequests.WithLabelValues(string(ai.PurposeNudges), "unparsable").Inc()
		return nil
	}
	if len(candidates) > maxNudgeCandidates {
		candidates = candidates[:maxNudgeCandidates]
	}
	return p.admit(candidates)
}

// admit queues candidates that are neither pending nor inside the cooldown.
func (p *NudgePipeline) admit(candidates []models.Nudge) []models.ServerNudge {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.purgeRecentLocked(now)

	var added []models.ServerNudge
	for _, c := range candidates {
		if p.blockedLocked(c.Title, now) {
			metrics.NudgesFiltered.Inc()
			continue
		}
		sn := models.ServerNudge{
			Nudge:     c,
			SID:       fmt.Sprintf("%d-%d", now.UnixMilli(), p.counter),
			CreatedAt: now,
		}
		p.counter++
		p.pending = append(p.pending, sn)
		added = append(added, sn)
	}
	if limit := p.maxPending(); len(p.pending) > limit {
		cut := len(p.pending) - limit
		if p.recent == nil {
			p.recent = map[string]time.Time{}
		}
		evicted := make(map[string]bool, cut)
		titles := make([]string, 0, cut)
		for _, n := range p.pending[:cut] {
			// Evicted titles count as shown for the cooldown so they are not
			// regenerated on the next cycle.
			p.recent[n.Title] = now
			evicted[n.SID] = true
			titles = append(titles, n.Title)
		}
		p.pending = append([]models.ServerNudge(nil), p.pending[cut:]...)
		kept := added[:0]
		for _, n := range added {
			if !evicted[n.SID] {
				kept = append(kept, n)
			}
		}
		added = kept
		metrics.NudgesDropped.Add(float64(cut))
		p.Logger.Warn().Int("limit", limit).Strs("titles", titles).Msg("pending nudge queue full, evicted oldest")
	}
	metrics.NudgesGenerated.Add(float64(len(added)))
	return added
}

func (p *NudgePipeline) blockedLocked(title string, now time.Time) bool {
	for _, n := range p.pending {
		if n.Title == title {
			return true
		}
	}
	if t, ok := p.recent[title]; ok && now.Sub(t) < p.cooldown() {
		return true
	}
	return false
}

// Latest returns up to 16 pending nudges without consuming them.
func (p *NudgePipeline) Latest() []models.ServerNudge {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.pending)
	if n > maxLatestNudges {
		n = maxLatestNudges
	}
	return append([]models.ServerNudge{}, p.pending[:n]...)
}

// Ack removes the given sids from the pending queue and starts the cooldown
// for their titles. Unknown sids are ignored. It returns how many were removed.
func (p *NudgePipeline) Ack(sids []string) int {
	if len(sids) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(sids))
	for _, s := range sids {
		want[s] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if p.recent == nil {
		p.recent = map[string]time.Time{}
	}
	kept := p.pending[:0]
	removed := 0
	for _, n := range p.pending {
		if _, ok := want[n.SID]; ok {
			p.recent[n.Title] = now
			p.delivered = append(p.delivered, n)
			removed++
			continue
		}
		kept = append(kept, n)
	}
	p.pending = kept
	metrics.NudgesAcknowledged.Add(float64(removed))
	return removed
}

// Shown lists acknowledged nudges followed by those still pending, ordered by
// creation time.
func (p *NudgePipeline) Shown() []models.ServerNudge {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ServerNudge, 0, len(p.delivered)+len(p.pending))
	out = append(out, p.delivered...)
	out = append(out, p.pending...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (p *NudgePipeline) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *NudgePipeline) purgeRecentLocked(now time.Time) {
	for title, t := range p.recent {
		if now.Sub(t) >= p.cooldown() {
			delete(p.recent, title)
		}
	}
}

func (p *NudgePipeline) avoidTitlesLocked() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, n := range p.pending {
		if _, ok := seen[n.Title]; !ok {
			seen[n.Title] = struct{}{}
			out = append(out, n.Title)
		}
	}
	for title := range p.recent {
		if _, ok := seen[title]; !ok {
			seen[title] = struct{}{}
			out = append(out, title)
		}
	}
	sort.Strings(out)
	return out
}

func (p *NudgePipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *NudgePipeline) throttle() time.Duration {
	if p.Throttle > 0 {
		return p.Throttle
	}
	return DefaultNudgeThrottle
}

func (p *NudgePipeline) cooldown() time.Duration {
	if p.Cooldown > 0 {
		return p.Cooldown
	}
	return DefaultNudgeCooldown
}

func (p *NudgePipeline) maxPending() int {
	if p.MaxPending > 0 {
		return p.MaxPending
	}
	return defaultMaxPending
}

func buildNudgePrompt(nc NudgeContext, turns []models.TranscriptTurn, avoid []string) string {
	var b strings.Builder
	customer := nc.CustomerID
	if customer == "" {
		customer = models.UnknownCustomer
	}
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Lead score: %.1f/10\n", nc.LeadScore)
	if nc.Profile != nil {
		h := nc.Profile.History
		fmt.Fprintf(&b, "History: %d bookings, %d cancelled, average ticket $%.0f, last visit %s\n",
			h.TotalBookings, h.CancelledBookings, h.AvgTicketSize, h.LastBookingDate.Format("2006-01-02"))
		var upcoming []string
		for _, a := range nc.Profile.Appointments {
			if a.Status == models.AppointmentPending {
				upcoming = append(upcoming, fmt.Sprintf("%s on %s", a.Service, a.Date.Format("2006-01-02")))
			}
		}
		if len(upcoming) > 0 {
			fmt.Fprintf(&b, "Upcoming: %s\n", strings.Join(upcoming, "; "))
		}
	}
	b.WriteString("\nTRANSCRIPT:\n")
	b.WriteString(formatTurns(turns))
	b.WriteString("\n\nAVOID TITLES:\n")
	if len(avoid) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(avoid, "\n"))
	}
	return b.String()
}

type rawNudge struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Body     string          `json:"body"`
	Priority json.RawMessage `json:"priority"`
}

// parseNudges accepts {"nudges":[...]} or a bare array. Entries without a
// title are dropped; the rest are normalized.
func parseNudges(raw string) ([]models.Nudge, bool) {
	b, ok := utils.ExtractJSON(raw)
	if !ok {
		return nil, false
	}
	var list []rawNudge
	if err := json.Unmarshal(b, &list); err != nil {
		var wrapped struct {
			Nudges []rawNudge `json:"nudges"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil, false
		}
		list = wrapped.Nudges
	}

	out := make([]models.Nudge, 0, len(list))
	seen := map[string]struct{}{}
	for i, r := range list {
		title := truncate(strings.TrimSpace(r.Title), maxNudgeTitleRunes)
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = fmt.Sprintf("nudge-%d", i+1)
		}
		out = append(out, models.Nudge{
			ID:       id,
			Type:     normalizeNudgeType(r.Type),
			Title:    title,
			Body:     truncate(strings.TrimSpace(r.Body), maxNudgeBodyRunes),
			Priority: normalizePriority(r.Priority),
		})
	}
	return out, true
}

func normalizeNudgeType(t string) models.NudgeType {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, "-", "_"))) {
	case "upsell", "up_sell":
		return models.NudgeUpsell
	case "cross_sell", "crosssell":
		return models.NudgeCrossSell
	default:
		return models.NudgeTip
	}
}

func normalizePriority(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return defaultNudgePriority
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &f); err != nil {
			return defaultNudgePriority
		}
	}
	p := int(f)
	if p < 1 {
		return 1
	}
	if p > 3 {
		return 3
	}
	return p
}
