package models

import "time"

const UnknownCustomer = "unknown"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentPast      AppointmentStatus = "past"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type CustomerHistory struct {
	TotalBookings     int         `json:"totalBookings"`
	CancelledBookings int         `json:"cancelledBookings"`
	AvgTicketSize     float64     `json:"avgTicketSize"`
	LastBookingDate   time.Time   `json:"lastBookingDate"`
	BookingDates      []time.Time `json:"bookingDates"`
}

type Appointment struct {
	ID                 string            `json:"id"`
	Date               time.Time         `json:"date"`
	TimeSlot           string            `json:"timeSlot"`
	Service            string            `json:"service"`
	Status             AppointmentStatus `json:"status"`
	CustomerIdentifier string            `json:"customerIdentifier"`
}

type AppointmentCounts struct {
	Pending   int `json:"pending"`
	Past      int `json:"past"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// ProfileHints are caller-supplied display fields; they never affect scoring.
type ProfileHints struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type ScoreAdjustment struct {
	Delta     float64   `json:"delta"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type LeadScore struct {
	Score       float64           `json:"score"`
	BaseScore   float64           `json:"baseScore"`
	Adjustments []ScoreAdjustment `json:"adjustments"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// Clone returns a deep copy safe to hand out of a locked section.
func (l LeadScore) Clone() LeadScore {
	out := l
	out.Adjustments = append([]ScoreAdjustment(nil), l.Adjustments...)
	return out
}

type ScoreFactors struct {
	Base          float64 `json:"base"`
	Bookings      float64 `json:"bookings"`
	Cancellations float64 `json:"cancellations"`
	TicketSize    float64 `json:"ticketSize"`
	Recency       float64 `json:"recency"`
	Engagement    float64 `json:"engagement"`
}

type NudgeType string

const (
	NudgeUpsell    NudgeType = "upsell"
	NudgeCrossSell NudgeType = "cross_sell"
	NudgeTip       NudgeType = "tip"
)

type Nudge struct {
	ID       string    `json:"id"`
	Type     NudgeType `json:"type"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Priority int       `json:"priority"`
}

type ServerNudge struct {
	Nudge
	SID       string    `json:"sid"`
	CreatedAt time.Time `json:"createdAt"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type TranscriptTurn struct {
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	SentimentScore *float64  `json:"sentimentScore,omitempty"`
}

type LeadScorePoint struct {
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

type SentimentSummary struct {
	Positive     int     `json:"positive"`
	Neutral      int     `json:"neutral"`
	Negative     int     `json:"negative"`
	AverageScore float64 `json:"averageScore"`
}

type CallSession struct {
	CallID             string           `json:"callId"`
	CustomerIdentifier string           `json:"customerIdentifier"`
	CustomerProfile    *ProfileHints    `json:"customerProfile,omitempty"`
	StartTime          time.Time        `json:"startTime"`
	EndTime            time.Time        `json:"endTime"`
	Duration           int64            `json:"duration"`
	Transcript         []TranscriptTurn `json:"transcript"`
	NudgesShown        []ServerNudge    `json:"nudgesShown"`
	LeadScoreHistory   []LeadScorePoint `json:"leadScoreHistory"`
	FinalLeadScore     float64          `json:"finalLeadScore"`
	InitialLeadScore   float64          `json:"initialLeadScore"`
	OverallSentiment   SentimentSummary `json:"overallSentiment"`
}

// Clone returns a copy that shares no slices or pointers with s.
func (s CallSession) Clone() CallSession {
	out := s
	if s.CustomerProfile != nil {
		p := *s.CustomerProfile
		out.CustomerProfile = &p
	}
	if s.Transcript != nil {
		out.Transcript = make([]TranscriptTurn, len(s.Transcript))
		copy(out.Transcript, s.Transcript)
		for i, t := range out.Transcript {
			if t.SentimentScore != nil {
				v := *t.SentimentScore
				out.Transcript[i].SentimentScore = &v
			}
		}
	}
	if s.NudgesShown != nil {
		out.NudgesShown = make([]ServerNudge, len(s.NudgesShown))
		copy(out.NudgesShown, s.NudgesShown)
	}
	if s.LeadScoreHistory != nil {
		out.LeadScoreHistory = make([]LeadScorePoint, len(s.LeadScoreHistory))
		copy(out.LeadScoreHistory, s.LeadScoreHistory)
	}
	return out
}
