package service

import (
	"math"
	"time"

	"github.com/callcoach/backend/internal/models"
)

const (
	BaseLeadScore = 5.0
	MinLeadScore  = 1.0
	MaxLeadScore  = 10.0

	maxScoreDelta = 1.0
	// deltas at or below this magnitude are treated as noise
	minScoreDelta = 0.05

	recencyWindow    = 90 * 24 * time.Hour
	engagementWindow = 365 * 24 * time.Hour
)

// CalculateInitialLeadScore scores a customer from their booking history.
func CalculateInitialLeadScore(h models.CustomerHistory, now time.Time) (float64, models.ScoreFactors) {
	f := models.ScoreFactors{Base: BaseLeadScore}

	f.Bookings = math.Min(float64(h.TotalBookings)*0.5, 2.0)

	if h.TotalBookings > 0 && h.CancelledBookings > 0 {
		cancelRate := float64(h.CancelledBookings) / float64(h.TotalBookings) * 100
		f.Cancellations = -math.Min((cancelRate/10)*0.5, 2.0)
	}

	f.TicketSize = math.Min((h.AvgTicketSize-100)/50*0.1, 1.5)

	var recent, lastYear int
	for _, d := range h.BookingDates {
		age := now.Sub(d)
		if age <= recencyWindow {
			recent++
		}
		if age <= engagementWindow {
			lastYear++
		}
	}
	f.Recency = math.Min(float64(recent)*0.3, 1.5)
	f.Engagement = math.Min(float64(lastYear)*0.2, 1.0)

	total := f.Base + f.Bookings + f.Cancellations + f.TicketSize + f.Recency + f.Engagement

	f.Bookings = round(f.Bookings, 2)
	f.Cancellations = round(f.Cancellations, 2)
	f.TicketSize = round(f.TicketSize, 2)
	f.Recency = round(f.Recency, 2)
	f.Engagement = round(f.Engagement, 2)
	return round(ClampScore(total), 1), f
}

func NewLeadScore(base float64, now time.Time) models.LeadScore {
	base = round(ClampScore(base), 1)
	return models.LeadScore{
		Score:       base,
		BaseScore:   base,
		Adjustments: []models.ScoreAdjustment{},
		LastUpdated: now,
	}
}

// ApplyScoreDelta clamps delta into [-1,1] and applies it unless it is noise.
// It reports the delta actually applied.
func ApplyScoreDelta(ls *models.LeadScore, delta float64, reason string, now time.Time) (float64, bool) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, false
	}
	delta = math.Max(-maxScoreDelta, math.Min(maxScoreDelta, delta))
	if math.Abs(delta) <= minScoreDelta {
		return 0, false
	}
	ls.Score = round(ClampScore(ls.Score+delta), 1)
	ls.Adjustments = append(ls.Adjustments, models.ScoreAdjustment{
		Delta:     round(delta, 2),
		Reason:    reason,
		Timestamp: now,
	})
	ls.LastUpdated = now
	return delta, true
}

func ClampScore(v float64) float64 {
	if v < MinLeadScore {
		return MinLeadScore
	}
	if v > MaxLeadScore {
		return MaxLeadScore
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
