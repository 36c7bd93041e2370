package reports

import (
	"context"
	"errors"
	"time"

	"turnos/internal/domain"
	"turnos/internal/export"
	"turnos/internal/report"
	"turnos/internal/store"
)

type Eligibility interface {
	CanBook(ctx context.Context, personID int64) (bool, error)
}

type Service struct {
	persons     store.PersonRepository
	turns       store.TurnRepository
	eligibility Eligibility
	schedule    domain.Schedule
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(persons store.PersonRepository, turns store.TurnRepository, eligibility Eligibility, schedule domain.Schedule, opts ...Option) *Service {
	s := &Service{
		persons:     persons,
		turns:       turns,
		eligibility: eligibility,
		schedule:    schedule,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type DateReport struct {
	Summary report.DaySummary            `json:"summary"`
	Turns   report.Page[domain.TurnView] `json:"turns"`
	Persons []report.PersonTurns         `json:"persons"`
	date    time.Time
}

func (r DateReport) Table() export.Table {
	return report.ByDateTable(r.date, r.Persons)
}

// TurnsByDate lists a date's turns a page at a time, together with the
// per-person grouping and the day summary of the whole date.
func (s *Service) TurnsByDate(ctx context.Context, date time.Time, page, size int) (DateReport, error) {
	date = domain.DateOf(date)
	rows, err := s.turns.ListByDate(ctx, date)
	if err != nil {
		return DateReport{}, err
	}

	p, err := report.Paginate(rows, page, size)
	if err != nil {
		return DateReport{}, err
	}
	return DateReport{
		Summary: report.SummarizeDay(date, rows, len(s.schedule.Slots())),
		Turns:   report.MapPage(p, domain.NewTurnView),
		Persons: report.GroupByPerson(rows),
		date:    date,
	}, nil
}

func (r DateReport) SummaryTable(states []domain.TurnState) export.Table {
	return report.DaySummaryTable(r.Summary, states)
}

type MonthReport struct {
	Year      int               `json:"year"`
	Month     time.Month        `json:"month"`
	MonthName string            `json:"month_name"`
	Turns     []domain.TurnView `json:"turns"`
	rows      []domain.Turn
}

func (r MonthReport) Table() export.Table {
	return report.CancelledInMonthTable(r.Year, r.Month, r.rows)
}

func (s *Service) CancelledInMonth(ctx context.Context, year int, month time.Month) (MonthReport, error) {
	if month < time.January || month > time.December {
		return MonthReport{}, domain.InvalidInput("month must be between 1 and 12")
	}
	if year < 1 {
		return MonthReport{}, domain.InvalidInput("year must be positive")
	}

	rows, err := s.turns.ListCancelledInMonth(ctx, year, month)
	if err != nil {
		return MonthReport{}, err
	}
	rows = report.CancelledInMonth(rows, year, month)
	return MonthReport{
		Year:      year,
		Month:     month,
		MonthName: report.MonthName(month),
		Turns:     views(rows),
		rows:      rows,
	}, nil
}

type CancellationsReport struct {
	Min     int                 `json:"min"`
	Persons []CancellationEntry `json:"persons"`
	groups  []report.PersonTurns
}

type CancellationEntry struct {
	report.PersonTurns
	Turns []domain.TurnView `json:"turns"`
}

func (r CancellationsReport) Table() export.Table {
	return report.CancellationsTable(r.groups, r.Min)
}

// Cancellations lists the persons with at least minCount cancelled turns. Zero
// means the default threshold.
func (s *Service) Cancellations(ctx context.Context, minCount int) (CancellationsReport, error) {
	if minCount == 0 {
		minCount = report.DefaultMinCancellations
	}
	if minCount < 1 {
		return CancellationsReport{}, domain.InvalidInput("min must be at least 1")
	}

	rows, err := s.turns.ListByState(ctx, domain.StateCancelled)
	if err != nil {
		return CancellationsReport{}, err
	}
	groups := report.CancellationsByPerson(rows, minCount)

	out := CancellationsReport{Min: minCount, Persons: make([]CancellationEntry, 0, len(groups)), groups: groups}
	for _, g := range groups {
		out.Persons = append(out.Persons, CancellationEntry{PersonTurns: g, Turns: views(g.Turns)})
	}
	return out, nil
}

type PeriodReport struct {
	From  string                       `json:"from"`
	To    string                       `json:"to"`
	Turns report.Page[domain.TurnView] `json:"turns"`
	rows  []domain.Turn
	from  time.Time
	to    time.Time
}

// Table covers the current page only.
func (r PeriodReport) Table() export.Table {
	return report.ConfirmedTable(r.from, r.to, r.rows)
}

func (s *Service) ConfirmedInPeriod(ctx context.Context, from, to time.Time, page, size int) (PeriodReport, error) {
	if _, err := report.ConfirmedInPeriod(nil, from, to); err != nil {
		return PeriodReport{}, err
	}

	rows, err := s.turns.ListByStateBetween(ctx, domain.StateConfirmed, from, to)
	if err != nil {
		return PeriodReport{}, err
	}
	rows, err = report.ConfirmedInPeriod(rows, from, to)
	if err != nil {
		return PeriodReport{}, err
	}

	p, err := report.Paginate(rows, page, size)
	if err != nil {
		return PeriodReport{}, err
	}
	return PeriodReport{
		From:  domain.DateOf(from).Format(domain.DateLayout),
		To:    domain.DateOf(to).Format(domain.DateLayout),
		Turns: report.MapPage(p, domain.NewTurnView),
		rows:  p.Items,
		from:  from,
		to:    to,
	}, nil
}

type HistoryReport struct {
	Person domain.PersonView `json:"person"`
	Total  int               `json:"total"`
	Turns  []domain.TurnView `json:"turns"`
	person domain.Person
	rows   []domain.Turn
}

func (r HistoryReport) Table() export.Table {
	return report.PersonHistoryTable(r.person, r.rows)
}

// PersonHistory lists a person's turns ordered by date and slot, with the
// total count independent of skip/limit.
func (s *Service) PersonHistory(ctx context.Context, personID int64, skip, limit int) (HistoryReport, error) {
	if skip < 0 || limit < 0 {
		return HistoryReport{}, domain.InvalidInput("skip and limit must not be negative")
	}

	person, err := s.persons.Get(ctx, personID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return HistoryReport{}, domain.NotFound("person %d not found", personID)
		}
		return HistoryReport{}, err
	}

	rows, err := s.turns.ListByPerson(ctx, personID, skip, limit)
	if err != nil {
		return HistoryReport{}, err
	}
	total, err := s.turns.CountByPerson(ctx, personID)
	if err != nil {
		return HistoryReport{}, err
	}

	for i := range rows {
		rows[i].Person = &person
	}
	return HistoryReport{
		Person: domain.NewPersonView(person, s.now()),
		Total:  total,
		Turns:  views(rows),
		person: person,
		rows:   rows,
	}, nil
}

type StatusReport struct {
	Persons []report.PersonStatus `json:"persons"`
}

func (r StatusReport) Table() export.Table {
	return report.PersonStatusTable(r.Persons)
}

func (s *Service) PersonStatuses(ctx context.Context) (StatusReport, error) {
	persons, err := s.persons.List(ctx, 0, 0)
	if err != nil {
		return StatusReport{}, err
	}

	out := StatusReport{Persons: make([]report.PersonStatus, 0, len(persons))}
	for _, p := range persons {
		canBook, err := s.eligibility.CanBook(ctx, p.ID)
		if err != nil {
			return StatusReport{}, err
		}
		out.Persons = append(out.Persons, report.NewPersonStatus(p, canBook))
	}
	return out, nil
}

func views(rows []domain.Turn) []domain.TurnView {
	out := make([]domain.TurnView, 0, len(rows))
	for _, t := range rows {
		out = append(out, domain.NewTurnView(t))
	}
	return out
}
