package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/archive"
	"github.com/callcoach/backend/internal/events"
	"github.com/callcoach/backend/internal/metrics"
	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/internal/profile"
)

var (
	ErrNoActiveCall = errors.New("no active call")
	ErrCallActive   = errors.New("a call is already active")
	ErrInvalidTurn  = errors.New("role and content must be non-empty")
)

type ConflictPolicy string

const (
	// ConflictReject refuses a start while another call is active.
	ConflictReject ConflictPolicy = "reject"
	// ConflictReplace ends and archives the active call, then starts the new one.
	ConflictReplace ConflictPolicy = "replace"
)

const (
	DefaultNudgeInterval       = 3 * time.Second
	DefaultCollaboratorTimeout = 12 * time.Second
	defaultSentimentWorkers    = 4
	scoreContextTurns          = 3
	publishTimeout             = 2 * time.Second
)

type Options struct {
	NudgeInterval        time.Duration
	NudgeThrottle        time.Duration
	NudgeCooldown        time.Duration
	CollaboratorTimeout  time.Duration
	ConflictPolicy       ConflictPolicy
	SentimentConcurrency int
	Now                  func() time.Time
}

func (o Options) withDefaults() Options {
	if o.NudgeInterval <= 0 {
		o.NudgeInterval = DefaultNudgeInterval
	}
	if o.NudgeThrottle <= 0 {
		o.NudgeThrottle = DefaultNudgeThrottle
	}
	if o.NudgeCooldown <= 0 {
		o.NudgeCooldown = DefaultNudgeCooldown
	}
	if o.CollaboratorTimeout <= 0 {
		o.CollaboratorTimeout = DefaultCollaboratorTimeout
	}
	if o.ConflictPolicy != ConflictReplace {
		o.ConflictPolicy = ConflictReject
	}
	if o.SentimentConcurrency <= 0 {
		o.SentimentConcurrency = defaultSentimentWorkers
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Manager owns the single active call. Mutations of a call are serialized by
// the call's own lock; collaborator round-trips happen outside it.
type Manager struct {
	profiles  *profile.Generator
	completer ai.Completer
	archive   archive.Archive
	events    events.Publisher
	logger    zerolog.Logger
	opts      Options

	mu     sync.Mutex
	active *liveCall
}

type liveCall struct {
	mu sync.Mutex

	id         string
	customerID string
	hints      *models.ProfileHints
	profile    *profile.Profile
	start      time.Time
	transcript []models.TranscriptTurn
	score      models.LeadScore
	history    []models.LeadScorePoint
	nudges     *NudgePipeline
	analyzer   Analyzer
	logger     zerolog.Logger

	// closing rejects new turns; ended is set once score workers drained.
	closing bool
	ended   bool

	// ctx bounds nudge generation and is cancelled first on End. Scoring runs
	// on scoreCtx so in-flight adjustments still land before the snapshot.
	ctx          context.Context
	cancel       context.CancelFunc
	scoreCtx     context.Context
	scoreCancel  context.CancelFunc
	timerRunning bool
	timerStop    chan struct{}
	timerDone    chan struct{}
	wg           sync.WaitGroup
}

func NewManager(profiles *profile.Generator, completer ai.Completer, arch archive.Archive, pub events.Publisher, logger zerolog.Logger, opts Options) *Manager {
	if profiles == nil {
		profiles = profile.NewGenerator()
	}
	if arch == nil {
		arch = archive.NewMemory()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Manager{
		profiles:  profiles,
		completer: completer,
		archive:   arch,
		events:    pub,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

type StartRequest struct {
	CustomerID string
	Profile    *models.ProfileHints
	Force      bool
}

type StartResult struct {
	CallID     string               `json:"callId"`
	CustomerID string               `json:"customerId"`
	StartTime  time.Time            `json:"startTime"`
	LeadScore  models.LeadScore     `json:"leadScore"`
	Factors    *models.ScoreFactors `json:"factors,omitempty"`
	Replaced   string               `json:"replacedCallId,omitempty"`
}

// Start begins a call. An empty customer id is treated as unknown and scores
// the base 5.0.
func (m *Manager) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = models.UnknownCustomer
	}

	m.mu.Lock()
	prev := m.active
	if prev != nil && !req.Force && m.opts.ConflictPolicy != ConflictReplace {
		m.mu.Unlock()
		return StartResult{}, ErrCallActive
	}
	lc, factors := m.newLiveCall(customerID, req.Profile)
	m.active = lc
	m.mu.Unlock()

	res := StartResult{
		CallID:     lc.id,
		CustomerID: customerID,
		StartTime:  lc.start,
		LeadScore:  lc.score.Clone(),
		Factors:    factors,
	}
	if prev != nil {
		m.logger.Info().Str("call_id", prev.id).Str("new_call_id", lc.id).Msg("replacing active call")
		m.finalize(ctx, prev)
		res.Replaced = prev.id
	}

	metrics.CallsStarted.Inc()
	metrics.ActiveCalls.Inc()
	lc.logger.Info().Str("customer_id", customerID).Float64("lead_score", lc.score.Score).Msg("call started")
	m.publish(ctx, events.SubjectCallStarted, map[string]any{
		"callId":     lc.id,
		"customerId": customerID,
		"startTime":  lc.start,
		"leadScore":  lc.score.Score,
	})
	return res, nil
}

func (m *Manager) newLiveCall(customerID string, hints *models.ProfileHints) (*liveCall, *models.ScoreFactors) {
	now := m.opts.Now()
	id := uuid.NewString()
	logger := m.logger.With().Str("call_id", id).Logger()

	base := BaseLeadScore
	var (
		factors *models.ScoreFactors
		prof    *profile.Profile
	)
	if p, ok := m.profiles.Lookup(customerID); ok {
		score, f := CalculateInitialLeadScore(p.History, now)
		base = score
		factors, prof = &f, &p
	}

	nudges := NewNudgePipeline(m.completer, logger)
	nudges.Now = m.opts.Now
	nudges.Timeout = m.opts.CollaboratorTimeout
	nudges.Throttle = m.opts.NudgeThrottle
	nudges.Cooldown = m.opts.NudgeCooldown

	ctx, cancel := context.WithCancel(context.Background())
	scoreCtx, scoreCancel := context.WithCancel(context.Background())
	lc := &liveCall{
		id:          id,
		customerID:  customerID,
		hints:       hints,
		profile:     prof,
		start:       now,
		transcript:  []models.TranscriptTurn{},
		score:       NewLeadScore(base, now),
		nudges:      nudges,
		analyzer:    Analyzer{Completer: m.completer, Logger: logger, Timeout: m.opts.CollaboratorTimeout},
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		scoreCtx:    scoreCtx,
		scoreCancel: scoreCancel,
		timerStop:   make(chan struct{}),
		timerDone:   make(chan struct{}),
	}
	lc.history = []models.LeadScorePoint{{Score: lc.score.Score, Timestamp: now, Reason: "initial"}}
	return lc, factors
}

type AppendResult struct {
	TurnCount    int  `json:"turnCount"`
	TimerRunning bool `json:"nudgeTimerRunning"`
}

// AppendTurn adds a transcript turn. Every second turn triggers a background
// score evaluation; the nudge timer starts once two turns exist.
func (m *Manager) AppendTurn(_ context.Context, role, content string) (AppendResult, error) {
	role = strings.TrimSpace(role)
	if role == "" || strings.TrimSpace(content) == "" {
		return AppendResult{}, ErrInvalidTurn
	}
	lc := m.current()
	if lc == nil {
		return AppendResult{}, ErrNoActiveCall
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closing || lc.ended {
		return AppendResult{}, ErrNoActiveCall
	}
	lc.transcript = append(lc.transcript, models.TranscriptTurn{
		Role:      role,
		Content:   content,
		Timestamp: m.opts.Now(),
	})
	count := len(lc.transcript)

	if count%2 == 0 {
		from := count - scoreContextTurns
		if from < 0 {
			from = 0
		}
		turns := append([]models.TranscriptTurn(nil), lc.transcript[from:]...)
		lc.wg.Add(1)
		go m.evaluateScore(lc, turns, lc.score.Score)
	}
	if count >= 2 && !lc.timerRunning {
		lc.timerRunning = true
		go m.runNudgeTimer(lc)
		lc.logger.Debug().Dur("interval", m.opts.NudgeInterval).Msg("nudge timer started")
	}
	return AppendResult{TurnCount: count, TimerRunning: lc.timerRunning}, nil
}

func (m *Manager) evaluateScore(lc *liveCall, turns []models.TranscriptTurn, current float64) {
	defer lc.wg.Done()

	sig, ok := lc.analyzer.ScoreDelta(lc.scoreCtx, turns, current)
	if !ok {
		return
	}

	lc.mu.Lock()
	if lc.ended {
		lc.mu.Unlock()
		return
	}
	now := m.opts.Now()
	applied, changed := ApplyScoreDelta(&lc.score, sig.Delta, sig.Reason, now)
	score := lc.score.Score
	if changed {
		lc.history = append(lc.history, models.LeadScorePoint{Score: score, Timestamp: now, Reason: sig.Reason})
	}
	lc.mu.Unlock()

	if !changed {
		return
	}
	metrics.LeadScoreAdjustments.Inc()
	lc.logger.Debug().Float64("delta", applied).Float64("lead_score", score).Str("reason", sig.Reason).Msg("lead score adjusted")
	m.publish(lc.scoreCtx, events.SubjectLeadScoreAdjusted, map[string]any{
		"callId": lc.id,
		"delta":  round(applied, 2),
		"score":  score,
		"reason": sig.Reason,
	})
}

func (m *Manager) runNudgeTimer(lc *liveCall) {
	defer close(lc.timerDone)
	ticker := time.NewTicker(m.opts.NudgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-lc.timerStop:
			return
		case <-lc.ctx.Done():
			return
		case <-ticker.C:
			m.nudgeCycle(lc)
		}
	}
}

func (m *Manager) nudgeCycle(lc *liveCall) {
	lc.mu.Lock()
	if lc.closing || lc.ended {
		lc.mu.Unlock()
		return
	}
	nc := NudgeContext{
		CustomerID: lc.customerID,
		Profile:    lc.profile,
		LeadScore:  lc.score.Score,
		Transcript: append([]models.TranscriptTurn(nil), lc.transcript...),
	}
	lc.mu.Unlock()

	added := lc.nudges.Generate(lc.ctx, nc)
	if len(added) == 0 {
		return
	}
	titles := make([]string, 0, len(added))
	for _, n := range added {
		titles = append(titles, n.Title)
	}
	lc.logger.Info().Strs("titles", titles).Msg("nudges queued")
	m.publish(lc.ctx, events.SubjectNudgesGenerated, map[string]any{
		"callId": lc.id,
		"nudges": added,
	})
}

// End finalizes and archives the active call.
func (m *Manager) End(ctx context.Context) (models.CallSession, error) {
	m.mu.Lock()
	lc := m.active
	m.active = nil
	m.mu.Unlock()
	if lc == nil {
		return models.CallSession{}, ErrNoActiveCall
	}
	return m.finalize(ctx, lc), nil
}

// finalize stops the nudge timer, lets pending score evaluations apply,
// classifies sentiment and archives the session. The caller must already have
// detached lc from the manager.
func (m *Manager) finalize(ctx context.Context, lc *liveCall) models.CallSession {
	ctx = context.WithoutCancel(ctx)

	lc.mu.Lock()
	lc.closing = true
	timerRunning := lc.timerRunning
	if timerRunning {
		close(lc.timerStop)
	}
	lc.mu.Unlock()

	lc.cancel()
	if timerRunning {
		<-lc.timerDone
	}
	lc.wg.Wait()
	lc.scoreCancel()

	lc.mu.Lock()
	lc.ended = true
	transcript := append([]models.TranscriptTurn(nil), lc.transcript...)
	history := append([]models.LeadScorePoint(nil), lc.history...)
	finalScore := lc.score.Score
	initialScore := lc.score.BaseScore
	lc.mu.Unlock()

	transcript, summary := m.classifyTranscript(ctx, lc.analyzer, transcript)

	end := m.opts.Now()
	session := models.CallSession{
		CallID:             lc.id,
		CustomerIdentifier: lc.customerID,
		CustomerProfile:    lc.hints,
		StartTime:          lc.start,
		EndTime:            end,
		Duration:           end.Sub(lc.start).Milliseconds(),
		Transcript:         transcript,
		NudgesShown:        lc.nudges.Shown(),
		LeadScoreHistory:   history,
		FinalLeadScore:     finalScore,
		InitialLeadScore:   initialScore,
		OverallSentiment:   summary,
	}

	if err := m.archive.Save(ctx, session); err != nil {
		lc.logger.Error().Err(err).Msg("failed to archive call session")
	}
	metrics.CallsEnded.Inc()
	metrics.ActiveCalls.Dec()
	lc.logger.Info().
		Int64("duration_ms", session.Duration).
		Int("turns", len(transcript)).
		Float64("final_lead_score", finalScore).
		Msg("call ended")
	m.publish(ctx, events.SubjectCallEnded, map[string]any{
		"callId":           session.CallID,
		"customerId":       session.CustomerIdentifier,
		"duration":         session.Duration,
		"finalLeadScore":   session.FinalLeadScore,
		"overallSentiment": session.OverallSentiment,
	})
	return session
}

func (m *Manager) classifyTranscript(ctx context.Context, analyzer Analyzer, turns []models.TranscriptTurn) ([]models.TranscriptTurn, models.SentimentSummary) {
	results := make([]SentimentResult, len(turns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.SentimentConcurrency)
	for i := range turns {
		i := i
		g.Go(func() error {
			results[i] = analyzer.Sentiment(gctx, turns[i])
			return nil
		})
	}
	_ = g.Wait()

	var summary models.SentimentSummary
	var total float64
	for i := range turns {
		r := results[i]
		score := r.Score
		turns[i].Sentiment = r.Sentiment
		turns[i].SentimentScore = &score
		total += score
		switch r.Sentiment {
		case models.SentimentPositive:
			summary.Positive++
		case models.SentimentNegative:
			summary.Negative++
		default:
			summary.Neutral++
		}
	}
	if len(turns) > 0 {
		summary.AverageScore = round(total/float64(len(turns)), 2)
	}
	return turns, summary
}

func (m *Manager) current() *liveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// CurrentLeadScore returns the live score; ok is false when no call is active.
func (m *Manager) CurrentLeadScore() (models.LeadScore, bool) {
	lc := m.current()
	if lc == nil {
		return models.LeadScore{}, false
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.score.Clone(), true
}

func (m *Manager) LatestNudges() []models.ServerNudge {
	lc := m.current()
	if lc == nil {
		return []models.ServerNudge{}
	}
	return lc.nudges.Latest()
}

func (m *Manager) AckNudges(sids []string) int {
	lc := m.current()
	if lc == nil {
		return 0
	}
	return lc.nudges.Ack(sids)
}

type CallStatus struct {
	Active        bool                 `json:"active"`
	CallID        string               `json:"callId,omitempty"`
	CustomerID    string               `json:"customerId,omitempty"`
	StartTime     *time.Time           `json:"startTime,omitempty"`
	TurnCount     int                  `json:"turnCount"`
	TimerRunning  bool                 `json:"nudgeTimerRunning"`
	PendingNudges int                  `json:"pendingNudges"`
	LeadScore     *models.LeadScore    `json:"leadScore,omitempty"`
	Profile       *models.ProfileHints `json:"customerProfile,omitempty"`
}

func (m *Manager) Status() CallStatus {
	lc := m.current()
	if lc == nil {
		return CallStatus{}
	}
	lc.mu.Lock()
	start := lc.start
	score := lc.score.Clone()
	st := CallStatus{
		Active:       true,
		CallID:       lc.id,
		CustomerID:   lc.customerID,
		StartTime:    &start,
		TurnCount:    len(lc.transcript),
		TimerRunning: lc.timerRunning,
		LeadScore:    &score,
		Profile:      lc.hints,
	}
	lc.mu.Unlock()
	st.PendingNudges = lc.nudges.PendingCount()
	return st
}

// NudgeTimerRunning reports whether the active call has started its timer.
func (m *Manager) NudgeTimerRunning() bool {
	return m.Status().TimerRunning
}

type CustomerScore struct {
	CustomerID string                 `json:"customerId"`
	Score      float64                `json:"score"`
	Factors    models.ScoreFactors    `json:"factors"`
	History    models.CustomerHistory `json:"history"`
}

// ScoreCustomer computes the initial lead score for any known customer,
// independent of the active call.
func (m *Manager) ScoreCustomer(customerID string) (CustomerScore, bool) {
	p, ok := m.profiles.Lookup(customerID)
	if !ok {
		return CustomerScore{}, false
	}
	score, factors := CalculateInitialLeadScore(p.History, m.opts.Now())
	return CustomerScore{CustomerID: customerID, Score: score, Factors: factors, History: p.History}, true
}

func (m *Manager) Appointments(customerID, status string) ([]models.Appointment, models.AppointmentCounts, bool) {
	appts, ok := m.profiles.Appointments(customerID)
	if !ok {
		return nil, models.AppointmentCounts{}, false
	}
	filtered, counts := profile.FilterAppointments(appts, status)
	return filtered, counts, true
}

func (m *Manager) Session(ctx context.Context, callID string) (models.CallSession, error) {
	return m.archive.Get(ctx, callID)
}

func (m *Manager) LatestSession(ctx context.Context) (models.CallSession, error) {
	return m.archive.Latest(ctx)
}

// Shutdown archives the active call, if any.
func (m *Manager) Shutdown(ctx context.Context) {
	if _, err := m.End(ctx); err != nil && !errors.Is(err, ErrNoActiveCall) {
		m.logger.Error().Err(err).Msg("failed to end active call on shutdown")
	}
}

func (m *Manager) publish(ctx context.Context, subject string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.events.Publish(ctx, subject, payload); err != nil {
		m.logger.Warn().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}
