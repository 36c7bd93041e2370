// Package report groups, filters and pages turns that were already fetched.
// Nothing here touches storage.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"turnos/internal/domain"
)

const (
	DefaultMinCancellations = 5

	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// PersonTurns is the turns of one person, in the order they were seen.
type PersonTurns struct {
	PersonID       int64         `json:"person_id"`
	PersonName     string        `json:"person_name"`
	IdentityNumber string        `json:"identity_number"`
	Count          int           `json:"count"`
	Turns          []domain.Turn `json:"-"`
}

// GroupByPerson groups turns by owner. Groups follow the first appearance of
// each owner and keep the input order of the turns within them.
func GroupByPerson(turns []domain.Turn) []PersonTurns {
	index := make(map[int64]int)
	groups := make([]PersonTurns, 0)
	for _, t := range turns {
		i, ok := index[t.PersonID]
		if !ok {
			g := PersonTurns{PersonID: t.PersonID}
			if t.Person != nil {
				g.PersonName = t.Person.Name
				g.IdentityNumber = t.Person.IdentityNumber
			}
			i = len(groups)
			index[t.PersonID] = i
			groups = append(groups, g)
		}
		groups[i].Turns = append(groups[i].Turns, t)
		groups[i].Count++
	}
	return groups
}

// CancellationsByPerson keeps the owners with at least minCount cancelled turns,
// most cancellations first, ties broken by person id. Non-cancelled turns in
// the input are ignored.
func CancellationsByPerson(turns []domain.Turn, minCount int) []PersonTurns {
	cancelled := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.State == domain.StateCancelled {
			cancelled = append(cancelled, t)
		}
	}

	out := make([]PersonTurns, 0)
	for _, g := range GroupByPerson(cancelled) {
		if g.Count >= minCount {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}

// CancelledInMonth keeps cancelled turns dated within year/month.
func CancelledInMonth(turns []domain.Turn, year int, month time.Month) []domain.Turn {
	from, to := domain.MonthRange(year, month)
	out := make([]domain.Turn, 0)
	for _, t := range turns {
		d := domain.DateOf(t.Date)
		if t.State == domain.StateCancelled && !d.Before(from) && d.Before(to) {
			out = append(out, t)
		}
	}
	return out
}

// ConfirmedInPeriod keeps confirmed turns with from <= date <= to, sorted by
// date then slot.
func ConfirmedInPeriod(turns []domain.Turn, from, to time.Time) ([]domain.Turn, error) {
	from, to = domain.DateOf(from), domain.DateOf(to)
	if from.After(to) {
		return nil, domain.InvalidInput("from date %s is after to date %s", from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}

	out := make([]domain.Turn, 0)
	for _, t := range turns {
		d := domain.DateOf(t.Date)
		if t.State == domain.StateConfirmed && !d.Before(from) && !d.After(to) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

func StatusOf(enabled, canBook bool) string {
	if enabled && canBook {
		return StatusEnabled
	}
	return StatusDisabled
}

type PersonStatus struct {
	PersonID       int64  `json:"person_id"`
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	Enabled        bool   `json:"enabled"`
	CanBook        bool   `json:"can_book"`
	Status         string `json:"status"`
}

func NewPersonStatus(p domain.Person, canBook bool) PersonStatus {
	return PersonStatus{
		PersonID:       p.ID,
		Name:           p.Name,
		IdentityNumber: p.IdentityNumber,
		Enabled:        p.Enabled,
		CanBook:        canBook,
		Status:         StatusOf(p.Enabled, canBook),
	}
}

// DaySummary counts a date's turns per state. Occupied counts the distinct
// slots held by non-cancelled turns; Occupancy is Occupied/Capacity rounded
// to two places, zero for an empty grid.
type DaySummary struct {
	Date      string                   `json:"date"`
	Total     int                      `json:"total"`
	ByState   map[domain.TurnState]int `json:"by_state"`
	Occupied  int                      `json:"occupied"`
	Capacity  int                      `json:"capacity"`
	Occupancy decimal.Decimal          `json:"occupancy"`
}

func SummarizeDay(date time.Time, turns []domain.Turn, gridSize int) DaySummary {
	s := DaySummary{
		Date:      domain.DateOf(date).Format(domain.DateLayout),
		Total:     len(turns),
		ByState:   make(map[domain.TurnState]int),
		Capacity:  gridSize,
		Occupancy: decimal.Zero,
	}
	held := make(map[string]struct{})
	for _, t := range turns {
		s.ByState[t.State]++
		if t.State != domain.StateCancelled {
			held[t.Slot] = struct{}{}
		}
	}
	s.Occupied = len(held)
	if gridSize > 0 {
		s.Occupancy = decimal.NewFromInt(int64(s.Occupied)).
			Div(decimal.NewFromInt(int64(gridSize))).
			Round(2)
	}
	return s
}
