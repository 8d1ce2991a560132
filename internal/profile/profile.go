package profile

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/callcoach/backend/internal/models"
)

var TimeSlots = []string{
	"8:00 AM - 10:00 AM",
	"10:00 AM - 12:00 PM",
	"1:00 PM - 3:00 PM",
	"3:00 PM - 5:00 PM",
}

var Services = []string{
	"HVAC Maintenance",
	"Plumbing Repair",
	"Electrical Inspection",
	"Duct Cleaning",
}

const day = 24 * time.Hour

type Profile struct {
	Identifier   string                 `json:"identifier"`
	History      models.CustomerHistory `json:"history"`
	Appointments []models.Appointment   `json:"appointments"`
	GeneratedAt  time.Time              `json:"generatedAt"`
}

// Generator synthesizes and caches customer profiles. The first generation
// for an identifier wins; later lookups return the cached profile.
type Generator struct {
	Now func() time.Time

	mu    sync.Mutex
	cache map[string]Profile
}

func NewGenerator() *Generator {
	return &Generator{Now: time.Now}
}

// Available reports whether an identifier can be profiled at all.
func Available(identifier string) bool {
	id := strings.TrimSpace(identifier)
	return id != "" && !strings.EqualFold(id, models.UnknownCustomer)
}

func (g *Generator) Lookup(identifier string) (Profile, bool) {
	if !Available(identifier) {
		return Profile{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cache == nil {
		g.cache = map[string]Profile{}
	}
	if p, ok := g.cache[identifier]; ok {
		return p, true
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	p := Generate(identifier, now())
	g.cache[identifier] = p
	return p, true
}

func (g *Generator) History(identifier string) (models.CustomerHistory, bool) {
	p, ok := g.Lookup(identifier)
	return p.History, ok
}

func (g *Generator) Appointments(identifier string) ([]models.Appointment, bool) {
	p, ok := g.Lookup(identifier)
	if !ok {
		return nil, false
	}
	return append([]models.Appointment(nil), p.Appointments...), true
}

// Generate is the uncached synthesis. The same identifier and reference time
// always yield the same profile.
func Generate(identifier string, now time.Time) Profile {
	rng := NewLCG(identifier)

	total := 3 + rng.Intn(6)
	cancelled := rng.Intn(3)
	if cancelled > total {
		cancelled = total
	}
	avgTicket := float64(150 + rng.Intn(251))

	dates := make([]time.Time, 0, total)
	for i := 0; i < total; i++ {
		daysAgo := 90 + rng.Intn(276)
		dates = append(dates, now.Add(-time.Duration(daysAgo)*day))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	history := models.CustomerHistory{
		TotalBookings:     total,
		CancelledBookings: cancelled,
		AvgTicketSize:     avgTicket,
		LastBookingDate:   dates[0],
		BookingDates:      dates,
	}

	var appts []models.Appointment
	next := func(date time.Time, status models.AppointmentStatus) {
		appts = append(appts, models.Appointment{
			ID:                 fmt.Sprintf("APT-%s-%02d", idSlug(identifier), len(appts)+1),
			Date:               date,
			TimeSlot:           TimeSlots[rng.Intn(len(TimeSlots))],
			Service:            Services[rng.Intn(len(Services))],
			Status:             status,
			CustomerIdentifier: identifier,
		})
	}
	for _, d := range dates {
		next(d, models.AppointmentPast)
	}
	for i := 0; i < cancelled; i++ {
		daysAgo := 14 + rng.Intn(76)
		next(now.Add(-time.Duration(daysAgo)*day), models.AppointmentCancelled)
	}
	pending := 1 + rng.Intn(3)
	for i := 0; i < pending; i++ {
		daysAhead := 1 + rng.Intn(30)
		next(now.Add(time.Duration(daysAhead)*day), models.AppointmentPending)
	}
	sort.SliceStable(appts, func(i, j int) bool { return appts[i].Date.After(appts[j].Date) })

	return Profile{
		Identifier:   identifier,
		History:      history,
		Appointments: appts,
		GeneratedAt:  now,
	}
}

// FilterAppointments keeps appointments with the given status; an empty
// status keeps everything. Counts always describe the unfiltered list.
func FilterAppointments(appts []models.Appointment, status string) ([]models.Appointment, models.AppointmentCounts) {
	counts := models.AppointmentCounts{Total: len(appts)}
	out := make([]models.Appointment, 0, len(appts))
	want := models.AppointmentStatus(strings.ToLower(strings.TrimSpace(status)))
	for _, a := range appts {
		switch a.Status {
		case models.AppointmentPending:
			counts.Pending++
		case models.AppointmentPast:
			counts.Past++
		case models.AppointmentCancelled:
			counts.Cancelled++
		}
		if want == "" || a.Status == want {
			out = append(out, a)
		}
	}
	return out, counts
}

func ValidStatus(status string) bool {
	switch models.AppointmentStatus(strings.ToLower(strings.TrimSpace(status))) {
	case "", models.AppointmentPending, models.AppointmentPast, models.AppointmentCancelled:
		return true
	}
	return false
}

func idSlug(identifier string) string {
	var b strings.Builder
	for _, r := range identifier {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return strings.ToUpper(b.String())
}
