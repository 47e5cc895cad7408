package metrics

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"courtbook/internal/bookings/ledger"
	"courtbook/internal/bookings/slots"
	"courtbook/pkg/model"
)

const trailingDays = 7

type Catalog interface {
	Courts() []model.Court
	Sports() []model.Sport
}

type Revenue struct {
	Today int64 `json:"today"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
}

type CourtOccupancy struct {
	CourtID        string `json:"court_id"`
	CourtName      string `json:"court_name"`
	BookedHours    int    `json:"booked_hours"`
	AvailableHours int    `json:"available_hours"`
	Percent        int    `json:"percent"`
}

type DailyPoint struct {
	Date     string         `json:"date"`
	Revenue  int64          `json:"revenue"`
	Bookings map[string]int `json:"bookings"`
}

type SportShare struct {
	SportID   string `json:"sport_id"`
	SportName string `json:"sport_name"`
	Count     int    `json:"count"`
	Percent   int    `json:"percent"`
}

type Dashboard struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Today       string           `json:"today"`
	WeekStart   string           `json:"week_start"`
	Revenue     Revenue          `json:"revenue"`
	Occupancy   []CourtOccupancy `json:"occupancy"`
	Daily       []DailyPoint     `json:"daily"`
	SportShare  []SportShare     `json:"sport_share"`
}

// Aggregator derives dashboard figures from one ledger snapshot.
type Aggregator struct {
	ledger    ledger.Reader
	catalog   Catalog
	window    slots.Window
	weekStart time.Weekday
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(reader ledger.Reader, catalog Catalog, window slots.Window, weekStart time.Weekday, loc *time.Location, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	a := &Aggregator{
		ledger:    reader,
		catalog:   catalog,
		window:    window,
		weekStart: weekStart,
		loc:       loc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Dashboard(ctx context.Context) (*Dashboard, error) {
	snapshot, err := a.ledger.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return a.Compute(snapshot, a.now()), nil
}

// Compute is the pure part of Dashboard. Only booked and completed
// bookings count anywhere in the result.
func (a *Aggregator) Compute(bookings []*model.Booking, now time.Time) *Dashboard {
	local := now.In(a.loc)
	today := civilDay(local)
	todayKey := today.Format(slots.DateLayout)
	weekFrom := today.AddDate(0, 0, -daysSince(today.Weekday(), a.weekStart))
	weekFromKey := weekFrom.Format(slots.DateLayout)
	weekToKey := weekFrom.AddDate(0, 0, 7).Format(slots.DateLayout)
	monthPrefix := today.Format("2006-01")
	trailFromKey := today.AddDate(0, 0, -(trailingDays - 1)).Format(slots.DateLayout)

	courts := a.catalog.Courts()
	daily := make([]DailyPoint, trailingDays)
	dailyIdx := make(map[string]int, trailingDays)
	for i := range daily {
		date := today.AddDate(0, 0, i-(trailingDays-1)).Format(slots.DateLayout)
		counts := make(map[string]int, len(courts))
		for _, c := range courts {
			counts[c.ID] = 0
		}
		daily[i] = DailyPoint{Date: date, Bookings: counts}
		dailyIdx[date] = i
	}

	var revenue Revenue
	hoursByCourt := make(map[string]int)
	countBySport := make(map[string]int)
	total := 0

	for _, b := range bookings {
		if !b.Status.CountsTowardRevenue() {
			continue
		}
		total++
		countBySport[b.SportID]++

		if b.Date == todayKey {
			revenue.Today += b.Amount
		}
		if b.Date >= weekFromKey && b.Date < weekToKey {
			revenue.Week += b.Amount
		}
		if strings.HasPrefix(b.Date, monthPrefix) {
			revenue.Month += b.Amount
		}

		if b.Date >= trailFromKey && b.Date <= todayKey {
			hoursByCourt[b.CourtID] += b.Hours
		}
		if i, ok := dailyIdx[b.Date]; ok {
			daily[i].Revenue += b.Amount
			daily[i].Bookings[b.CourtID]++
		}
	}

	capacity := a.window.Len() * trailingDays
	occupancy := make([]CourtOccupancy, 0, len(courts))
	for _, c := range courts {
		occupancy = append(occupancy, CourtOccupancy{
			CourtID:        c.ID,
			CourtName:      c.Name,
			BookedHours:    hoursByCourt[c.ID],
			AvailableHours: capacity,
			Percent:        percent(hoursByCourt[c.ID], capacity),
		})
	}

	return &Dashboard{
		GeneratedAt: now.UTC(),
		Today:       todayKey,
		WeekStart:   weekFromKey,
		Revenue:     revenue,
		Occupancy:   occupancy,
		Daily:       daily,
		SportShare:  a.sportShare(countBySport, total),
	}
}

func (a *Aggregator) sportShare(counts map[string]int, total int) []SportShare {
	sports := a.catalog.Sports()
	known := make(map[string]bool, len(sports))
	out := make([]SportShare, 0, len(sports))

	for _, s := range sports {
		known[s.ID] = true
		out = append(out, SportShare{
			SportID:   s.ID,
			SportName: s.Name,
			Count:     counts[s.ID],
			Percent:   percent(counts[s.ID], total),
		})
	}

	// Sports retired from the catalog still show up in history.
	var retired []string
	for id := range counts {
		if !known[id] {
			retired = append(retired, id)
		}
	}
	sort.Strings(retired)
	for _, id := range retired {
		out = append(out, SportShare{
			SportID:   id,
			SportName: id,
			Count:     counts[id],
			Percent:   percent(counts[id], total),
		})
	}
	return out
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysSince counts days from the most recent start weekday to day.
func daysSince(day, start time.Weekday) int {
	return (int(day) - int(start) + 7) % 7
}
