// Package seed loads demo persons and turns covering the reporting scenarios:
// a crowded day for date pagination, a long personal history, a person near
// the cancellation limit and a week of confirmed turns.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"turnos/internal/domain"
	"turnos/internal/store"
)

const (
	TurnsToday   = 25
	HistoryTurns = 25
)

type Result struct {
	PersonsCreated int `json:"persons_created"`
	TurnsCreated   int `json:"turns_created"`
}

type Seeder struct {
	persons  store.PersonRepository
	turns    store.TurnRepository
	schedule domain.Schedule
	log      *slog.Logger
	now      func() time.Time
	result   Result
}

type Option func(*Seeder)

func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

func New(persons store.PersonRepository, turns store.TurnRepository, schedule domain.Schedule, log *slog.Logger, opts ...Option) *Seeder {
	s := &Seeder{
		persons:  persons,
		turns:    turns,
		schedule: schedule,
		log:      log.With(slog.String("component", "seed")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type personData struct {
	first, last    string
	identityNumber string
	email          string
	phone          string
	birthDate      time.Time
	enabled        bool
}

// Run is idempotent: persons are matched by identity number and turns that
// already exist at the same date and slot are skipped.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	s.result = Result{}
	slots := s.schedule.Slots()
	if len(slots) < 2 {
		return Result{}, errors.New("seed needs a schedule with at least two slots")
	}
	today := domain.DateOf(s.now())

	if err := s.fixtures(ctx, today); err != nil {
		return s.result, fmt.Errorf("fixtures: %w", err)
	}

	lucas, err := s.person(ctx, generated(0, "Lucas", "Rodriguez", "11111111", true))
	if err != nil {
		return s.result, err
	}
	sofia, err := s.person(ctx, generated(1, "Sofia", "Martinez", "22222222", true))
	if err != nil {
		return s.result, err
	}
	if _, err := s.person(ctx, generated(2, "Miguel", "Torres", "33333333", false)); err != nil {
		return s.result, err
	}

	var extras []domain.Person
	for i, name := range []string{"Ana", "Carlos", "Elena", "Diego", "Valentina", "Facundo", "Jimena", "Pablo"} {
		p, err := s.person(ctx, generated(3+i, name, "Generico", fmt.Sprintf("444444%02d", i), true))
		if err != nil {
			return s.result, err
		}
		extras = append(extras, p)
	}
	pool := append([]domain.Person{lucas, sofia}, extras...)

	// Slots wrap around the grid so some turns share a slot.
	states := s.schedule.States()
	for i := 0; i < TurnsToday; i++ {
		p := pool[i%len(pool)]
		if err := s.turn(ctx, today, slots[i%len(slots)], states[i%len(states)], p.ID, true); err != nil {
			return s.result, err
		}
	}

	for i := 0; i < HistoryTurns; i++ {
		date := today.AddDate(0, 0, -(i+1)*2)
		if err := s.turn(ctx, date, slots[(i*3)%len(slots)], domain.StateAttended, lucas.ID, false); err != nil {
			return s.result, err
		}
	}

	// Three cancellations this month and three last month.
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := firstOfMonth.AddDate(0, -1, 0)
	for day := 0; day < 3; day++ {
		if err := s.turn(ctx, firstOfMonth.AddDate(0, 0, day), slots[0], domain.StateCancelled, sofia.ID, false); err != nil {
			return s.result, err
		}
		if err := s.turn(ctx, lastMonth.AddDate(0, 0, day), slots[1], domain.StateCancelled, sofia.ID, false); err != nil {
			return s.result, err
		}
	}

	weekStart := today.AddDate(0, 0, -7)
	for i := 0; i < 5; i++ {
		p := extras[i%len(extras)]
		if err := s.turn(ctx, weekStart.AddDate(0, 0, i), "10:00", domain.StateConfirmed, p.ID, false); err != nil {
			return s.result, err
		}
	}

	s.log.Info("seed complete",
		slog.Int("persons_created", s.result.PersonsCreated),
		slog.Int("turns_created", s.result.TurnsCreated),
		slog.String("date", today.Format(domain.DateLayout)),
	)
	return s.result, nil
}

// fixtures adds the hand-written persons and, for those created by this run,
// their turns.
func (s *Seeder) fixtures(ctx context.Context, today time.Time) error {
	people := []personData{
		fixed("Brian", "Rodríguez", "brian@gmail.com", "48351225", "1189521452", 1996, 1, 1, true),
		fixed("Mariano", "Cejas", "mariano.cejas@gmail.com", "42145961", "1173334444", 1990, 6, 15, true),
		fixed("Giovanni", "Salvi", "giovanni.salvi@hotmail.com", "42157896", "1167891234", 1998, 3, 22, true),
		fixed("Martin", "Scarfo", "scarfo.martin@yahoo.com", "39541236", "1155558888", 1985, 12, 5, false),
	}

	type fixtureTurn struct {
		owner int
		days  int
		slot  string
		state domain.TurnState
	}
	turns := []fixtureTurn{
		{0, 0, "09:00", domain.StatePending},
		{1, 0, "09:30", domain.StateConfirmed},
		{0, -30, "10:00", domain.StateCancelled},
		{0, -60, "11:00", domain.StateCancelled},
		{0, -90, "12:00", domain.StateCancelled},
		{0, -120, "13:00", domain.StateCancelled},
		{0, -150, "14:00", domain.StatePending},
		{1, 1, "10:00", domain.StateConfirmed},
		{1, 7, "11:30", domain.StatePending},
		{1, -15, "15:00", domain.StateAttended},
		{2, 3, "16:00", domain.StateConfirmed},
		{3, -10, "16:30", domain.StateCancelled},
	}

	created := make([]bool, len(people))
	ids := make([]int64, len(people))
	for i, data := range people {
		before := s.result.PersonsCreated
		p, err := s.person(ctx, data)
		if err != nil {
			return err
		}
		ids[i] = p.ID
		created[i] = s.result.PersonsCreated > before
	}

	for _, ft := range turns {
		if !created[ft.owner] {
			continue
		}
		t := domain.Turn{
			Date:     today.AddDate(0, 0, ft.days),
			Slot:     ft.slot,
			State:    ft.state,
			PersonID: ids[ft.owner],
		}
		if _, err := s.turns.Create(ctx, t); err != nil {
			return fmt.Errorf("create fixture turn %s %s: %w", t.Date.Format(domain.DateLayout), t.Slot, err)
		}
		s.result.TurnsCreated++
	}
	return nil
}

func (s *Seeder) person(ctx context.Context, data personData) (domain.Person, error) {
	p, err := s.persons.GetByIdentityNumber(ctx, data.identityNumber)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Person{}, fmt.Errorf("lookup person %s: %w", data.identityNumber, err)
	}

	phone := data.phone
	p, err = s.persons.Create(ctx, domain.Person{
		Name:           data.first + " " + data.last,
		Email:          data.email,
		IdentityNumber: data.identityNumber,
		Phone:          &phone,
		BirthDate:      data.birthDate,
		Enabled:        data.enabled,
	})
	if err != nil {
		return domain.Person{}, fmt.Errorf("create person %s: %w", data.identityNumber, err)
	}
	s.result.PersonsCreated++
	s.log.Debug("person registered",
		slog.Int64("person_id", p.ID),
		slog.String("identity_number", p.IdentityNumber),
		slog.Bool("enabled", p.Enabled),
	)
	return p, nil
}

// turn inserts a turn unless one already sits at date and slot. With
// samePerson only a turn of the same person counts as a duplicate.
func (s *Seeder) turn(ctx context.Context, date time.Time, slot string, state domain.TurnState, personID int64, samePerson bool) error {
	existing, err := s.turns.ListByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("list turns on %s: %w", date.Format(domain.DateLayout), err)
	}
	for _, t := range existing {
		if t.Slot == slot && (!samePerson || t.PersonID == personID) {
			return nil
		}
	}

	if _, err := s.turns.Create(ctx, domain.Turn{Date: date, Slot: slot, State: state, PersonID: personID}); err != nil {
		return fmt.Errorf("create turn %s %s: %w", date.Format(domain.DateLayout), slot, err)
	}
	s.result.TurnsCreated++
	return nil
}

func fixed(first, last, email, identityNumber, phone string, year int, month time.Month, day int, enabled bool) personData {
	return personData{
		first:          first,
		last:           last,
		identityNumber: identityNumber,
		email:          email,
		phone:          phone,
		birthDate:      time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		enabled:        enabled,
	}
}

// generated derives contact data and birth date from n so reruns agree.
func generated(n int, first, last, identityNumber string, enabled bool) personData {
	return personData{
		first:          first,
		last:           last,
		identityNumber: identityNumber,
		email:          strings.ToLower(first) + "." + strings.ToLower(last) + "@email.com",
		phone:          fmt.Sprintf("11%08d", 40000000+n*7919),
		birthDate:      time.Date(1980+n%21, time.Month(1+n%12), 1+n%28, 0, 0, 0, 0, time.UTC),
		enabled:        enabled,
	}
}
